package model

import (
	"time"
)

// RoundParticipant 轮次参与者台账，每个轮次每个用户一行
type RoundParticipant struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	RoundId int64 `json:"round_id" gorm:"not null;uniqueIndex:idx_participant_round_user"`
	UserId  int64 `json:"user_id" gorm:"not null;uniqueIndex:idx_participant_round_user"`

	// 剩余代币 = 发放预算 - 已分配总额
	TokensRemaining int `json:"tokens_remaining" gorm:"default:0"`
}

// TableName 自定义表名
func (RoundParticipant) TableName() string {
	return "round_participant"
}
