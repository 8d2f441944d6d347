package logic

import (
	"github.com/Hylozoic/hylo-sub001/internal/model"
)

// Notifier 通知协作方。所有方法均为即发即忘：
// 投递失败只记录日志，绝不影响调用方的事务。
type Notifier interface {
	// PhaseChanged 轮次进入新阶段（进入 draft/published 不会调用）
	PhaseChanged(roundId int64, phase model.RoundPhase)
	// JoinRequestCreated 通知轮次管理员有新的加入申请（不含申请人）
	JoinRequestCreated(request *model.JoinRequest)
	// JoinRequestAccepted 通知申请人申请已通过
	JoinRequestAccepted(request *model.JoinRequest)
	// JoinRequestRejected 通知申请人申请已拒绝
	JoinRequestRejected(request *model.JoinRequest)
}

// NopNotifier 空实现
type NopNotifier struct{}

func (NopNotifier) PhaseChanged(int64, model.RoundPhase)       {}
func (NopNotifier) JoinRequestCreated(*model.JoinRequest)      {}
func (NopNotifier) JoinRequestAccepted(*model.JoinRequest)     {}
func (NopNotifier) JoinRequestRejected(*model.JoinRequest)     {}
