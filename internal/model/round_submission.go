package model

import (
	"time"
)

// RoundSubmission 轮次与提交物（post）的关联，一个提交物只属于一个轮次
type RoundSubmission struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	RoundId int64 `json:"round_id" gorm:"not null;index"`
	PostId  int64 `json:"post_id" gorm:"not null;uniqueIndex"`
}

// TableName 自定义表名
func (RoundSubmission) TableName() string {
	return "round_submission"
}
