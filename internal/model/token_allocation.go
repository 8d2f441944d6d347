package model

import (
	"time"
)

// TokenAllocation 用户对单个提交物的代币分配，零值合法且保留记录
type TokenAllocation struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	PostId int64 `json:"post_id" gorm:"not null;uniqueIndex:idx_allocation_post_user"`
	UserId int64 `json:"user_id" gorm:"not null;uniqueIndex:idx_allocation_post_user"`

	Tokens int `json:"tokens" gorm:"default:0"`
}

// TableName 自定义表名
func (TokenAllocation) TableName() string {
	return "token_allocation"
}
