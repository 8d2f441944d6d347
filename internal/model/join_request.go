package model

import (
	"time"
)

// JoinRequest 投票期加入申请，accepted/rejected 互斥，均为空表示待处理
type JoinRequest struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	RoundId  int64  `json:"round_id" gorm:"not null;index"`
	UserId   int64  `json:"user_id" gorm:"not null;index"`
	Comments string `json:"comments" gorm:"type:text"`

	AcceptedAt *time.Time `json:"accepted_at"`
	RejectedAt *time.Time `json:"rejected_at"`
}

// TableName 自定义表名
func (JoinRequest) TableName() string {
	return "join_request"
}

// Pending 是否仍待处理
func (j *JoinRequest) Pending() bool {
	return j.AcceptedAt == nil && j.RejectedAt == nil
}
