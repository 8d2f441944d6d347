package notify

import (
	"encoding/json"

	"github.com/Hylozoic/hylo-sub001/internal/logger"
	"github.com/Hylozoic/hylo-sub001/internal/model"
	"github.com/panjf2000/ants/v2"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Notifier 把轮次事件写入通知表并异步投递。
// 所有入口都是即发即忘：投递在协程池里执行，失败只记日志，
// 绝不把错误传回调用方的事务。
type Notifier struct {
	db   *gorm.DB
	pool *ants.Pool
}

// New 创建通知器
func New(db *gorm.DB, poolSize int) (*Notifier, error) {
	if poolSize <= 0 {
		poolSize = 8
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}
	return &Notifier{db: db, pool: pool}, nil
}

// Close 释放协程池
func (n *Notifier) Close() {
	n.pool.Release()
}

// submit 提交异步任务，池满或已关闭时降级为丢弃并记日志
func (n *Notifier) submit(task func()) {
	if err := n.pool.Submit(task); err != nil {
		logger.Error("Failed to submit notification task: %v", err)
	}
}

// PhaseChanged 向轮次全部参与者通知新阶段
func (n *Notifier) PhaseChanged(roundId int64, phase model.RoundPhase) {
	n.submit(func() {
		var round model.FundingRound
		if err := n.db.First(&round, roundId).Error; err != nil {
			logger.Error("Phase notification: round %d not found: %v", roundId, err)
			return
		}

		var participants []model.RoundParticipant
		if err := n.db.Where("round_id = ?", roundId).Find(&participants).Error; err != nil {
			logger.Error("Phase notification: failed to load participants of round %d: %v", roundId, err)
			return
		}

		meta, _ := json.Marshal(map[string]string{"phase": string(phase)})
		for _, participant := range participants {
			n.insert(&model.Notification{
				Kind:     model.NotifyPhaseTransition + ":" + string(phase),
				ReaderId: participant.UserId,
				GroupId:  round.GroupId,
				RoundId:  round.Id,
				Meta:     datatypes.JSON(meta),
			})
		}
	})
}

// JoinRequestCreated 通知轮次所属社群的管理员，不含申请人自己
func (n *Notifier) JoinRequestCreated(request *model.JoinRequest) {
	roundId, userId := request.RoundId, request.UserId
	n.submit(func() {
		var round model.FundingRound
		if err := n.db.First(&round, roundId).Error; err != nil {
			logger.Error("Join request notification: round %d not found: %v", roundId, err)
			return
		}

		var managers []model.GroupMembership
		err := n.db.Where("group_id = ? AND role = ? AND user_id <> ?",
			round.GroupId, model.RoleCoordinator, userId).Find(&managers).Error
		if err != nil {
			logger.Error("Join request notification: failed to load managers of group %d: %v", round.GroupId, err)
			return
		}

		meta, _ := json.Marshal(map[string]int64{"requesterId": userId})
		for _, manager := range managers {
			n.insert(&model.Notification{
				Kind:     model.NotifyJoinRequest,
				ReaderId: manager.UserId,
				GroupId:  round.GroupId,
				RoundId:  round.Id,
				Meta:     datatypes.JSON(meta),
			})
		}
	})
}

// JoinRequestAccepted 通知申请人申请已通过
func (n *Notifier) JoinRequestAccepted(request *model.JoinRequest) {
	n.notifyRequester(request, model.NotifyJoinRequestAccepted)
}

// JoinRequestRejected 通知申请人申请已拒绝
func (n *Notifier) JoinRequestRejected(request *model.JoinRequest) {
	n.notifyRequester(request, model.NotifyJoinRequestRejected)
}

func (n *Notifier) notifyRequester(request *model.JoinRequest, kind string) {
	roundId, userId := request.RoundId, request.UserId
	n.submit(func() {
		var round model.FundingRound
		if err := n.db.First(&round, roundId).Error; err != nil {
			logger.Error("Join request notification: round %d not found: %v", roundId, err)
			return
		}
		n.insert(&model.Notification{
			Kind:     kind,
			ReaderId: userId,
			GroupId:  round.GroupId,
			RoundId:  round.Id,
		})
	})
}

// Reminder 截止提醒，由定时任务筛选出接收人后调用（同步写入，任务本身已在后台）
func (n *Notifier) Reminder(round *model.FundingRound, readerIds []int64, reminderType string) {
	meta, _ := json.Marshal(map[string]string{"reminderType": reminderType})
	for _, readerId := range readerIds {
		n.insert(&model.Notification{
			Kind:     model.NotifyReminder,
			ReaderId: readerId,
			GroupId:  round.GroupId,
			RoundId:  round.Id,
			Meta:     datatypes.JSON(meta),
		})
	}
}

func (n *Notifier) insert(notification *model.Notification) {
	if err := n.db.Create(notification).Error; err != nil {
		logger.Error("Failed to record %s notification for user %d: %v",
			notification.Kind, notification.ReaderId, err)
	}
}
