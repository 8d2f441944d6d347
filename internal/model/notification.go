package model

import (
	"time"

	"gorm.io/datatypes"
)

// Notification 通知记录，由 notify 协作方异步写入并投递
type Notification struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	Kind     string `json:"kind" gorm:"not null;index"`
	ReaderId int64  `json:"reader_id" gorm:"not null;index"`
	GroupId  int64  `json:"group_id"`
	RoundId  int64  `json:"round_id" gorm:"index"`

	Meta datatypes.JSON `json:"meta"`
}

// 通知类型
const (
	NotifyPhaseTransition     = "fundingRoundPhaseTransition" // 拼接 ":<phase>" 后缀
	NotifyReminder            = "fundingRoundReminder"
	NotifyJoinRequest         = "fundingRoundJoinRequest"
	NotifyJoinRequestAccepted = "fundingRoundJoinRequestAccepted"
	NotifyJoinRequestRejected = "fundingRoundJoinRequestRejected"
)

// TableName 自定义表名
func (Notification) TableName() string {
	return "notification"
}
