package model

import (
	"time"
)

// Post 帖子，本服务只关心提交物类型、作者与预算字段
type Post struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Type      PostType `json:"type" gorm:"not null;index"`
	CreatorId int64    `json:"creator_id" gorm:"not null"`
	Title     string   `json:"title"`
	Budget    string   `json:"budget"`
}

// PostType 帖子类型
type PostType string

const (
	PostTypeSubmission PostType = "submission" // 轮次提交物
	PostTypeDiscussion PostType = "discussion" // 普通讨论帖
)

// TableName 自定义表名
func (Post) TableName() string {
	return "post"
}
