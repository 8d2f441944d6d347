package logic

import (
	"time"

	"github.com/Hylozoic/hylo-sub001/internal/logger"
	"github.com/Hylozoic/hylo-sub001/internal/model"
	"gorm.io/gorm"
)

// transitionStep 单步阶段转移及其副作用
type transitionStep struct {
	to         model.RoundPhase
	distribute bool // 进入投票期时向全部参与者发放代币
	clear      bool // 撤销代币发放并清零所有分配
	autoAccept bool // 自动通过该轮次所有待处理的加入申请
}

// nextTransition 计算轮次的下一步转移，无转移时返回 nil。
// 每次调用至多推进一步；先按正向规则表匹配，未命中时再按
// 固定优先级检查各时间点被清空触发的回退规则。
func nextTransition(round *model.FundingRound, now time.Time) *transitionStep {
	passed := func(t *time.Time) bool {
		return t != nil && !t.After(now)
	}

	// 正向转移
	switch round.Phase {
	case model.PhaseDraft:
		if passed(round.PublishedAt) {
			return &transitionStep{to: model.PhasePublished}
		}
	case model.PhasePublished:
		if passed(round.SubmissionsOpenAt) {
			return &transitionStep{to: model.PhaseSubmissions}
		}
	case model.PhaseSubmissions:
		if passed(round.SubmissionsCloseAt) {
			return &transitionStep{to: model.PhaseDiscussion}
		}
		if passed(round.VotingOpensAt) {
			return &transitionStep{to: model.PhaseVoting, distribute: true}
		}
	case model.PhaseDiscussion:
		if passed(round.VotingOpensAt) {
			return &transitionStep{to: model.PhaseVoting, distribute: true}
		}
	case model.PhaseVoting:
		if passed(round.VotingClosesAt) {
			return &transitionStep{to: model.PhaseCompleted}
		}
	}

	// 回退转移，按固定优先级
	phase := round.Phase
	switch {
	case round.VotingClosesAt == nil && phase == model.PhaseCompleted:
		return &transitionStep{to: model.PhaseVoting}

	case round.VotingOpensAt == nil &&
		(phase == model.PhaseVoting || phase == model.PhaseCompleted):
		to := model.PhaseSubmissions
		if passed(round.SubmissionsCloseAt) {
			to = model.PhaseDiscussion
		}
		return &transitionStep{to: to, clear: true, autoAccept: true}

	case round.SubmissionsCloseAt == nil &&
		(phase == model.PhaseDiscussion || phase == model.PhaseVoting || phase == model.PhaseCompleted):
		return &transitionStep{to: model.PhaseSubmissions, autoAccept: true}

	case round.SubmissionsOpenAt == nil &&
		(phase == model.PhaseSubmissions || phase == model.PhaseDiscussion ||
			phase == model.PhaseVoting || phase == model.PhaseCompleted):
		return &transitionStep{to: model.PhasePublished}

	case round.PublishedAt == nil && phase != model.PhaseDraft:
		return &transitionStep{to: model.PhaseDraft}
	}

	return nil
}

// transitionOutcome 事务内发生的转移，通知在事务提交后据此补发
type transitionOutcome struct {
	roundId  int64
	phase    model.RoundPhase     // 为空表示无需阶段通知
	accepted []*model.JoinRequest // 回退时自动通过的申请
}

// RunPhaseTransition 幂等地推进轮次阶段。每个写操作结束前都会调用；
// 本身也作为外部操作暴露，供调用方主动对账。
func (l *RoundLogic) RunPhaseTransition(roundId int64) (*model.FundingRound, error) {
	var round *model.FundingRound
	var outcome *transitionOutcome
	err := l.db.Transaction(func(tx *gorm.DB) error {
		r, err := findRound(tx, roundId)
		if err != nil {
			return err
		}
		round = r
		outcome, err = l.runPhaseTransition(tx, r)
		return err
	})
	if err != nil {
		return nil, err
	}
	l.notifyTransition(outcome)
	return round, nil
}

// runPhaseTransition 在当前事务内执行一次转移检查。
// 输入未变化时重复调用不产生任何写入或通知。
// 通知不在这里发：事务可能回滚，由调用方提交后执行 notifyTransition。
func (l *RoundLogic) runPhaseTransition(tx *gorm.DB, round *model.FundingRound) (*transitionOutcome, error) {
	step := nextTransition(round, l.clock.Now())
	if step == nil {
		return nil, nil
	}

	from := round.Phase

	if step.clear {
		if err := l.clearDistribution(tx, round); err != nil {
			return nil, err
		}
	}
	if step.distribute {
		if err := l.distributeTokens(tx, round); err != nil {
			return nil, err
		}
	}

	round.Phase = step.to
	if err := tx.Model(round).Update("phase", step.to).Error; err != nil {
		return nil, err
	}

	outcome := &transitionOutcome{roundId: round.Id}
	if step.autoAccept {
		accepted, err := l.autoAcceptPendingJoinRequests(tx, round)
		if err != nil {
			return nil, err
		}
		outcome.accepted = accepted
	}

	logger.Info("Funding round %d phase transition: %s -> %s", round.Id, from, step.to)

	// 进入 draft / published 不发通知
	if step.to != model.PhaseDraft && step.to != model.PhasePublished {
		outcome.phase = step.to
	}

	return outcome, nil
}

// notifyTransition 事务提交后补发转移产生的通知
func (l *RoundLogic) notifyTransition(outcome *transitionOutcome) {
	if outcome == nil {
		return
	}
	if outcome.phase != "" {
		l.notifier.PhaseChanged(outcome.roundId, outcome.phase)
	}
	for _, request := range outcome.accepted {
		l.notifier.JoinRequestAccepted(request)
	}
}

// distributeTokens 进入投票期时向所有具备投票资格的参与者发放预算
func (l *RoundLogic) distributeTokens(tx *gorm.DB, round *model.FundingRound) error {
	var participants []model.RoundParticipant
	if err := tx.Where("round_id = ?", round.Id).Find(&participants).Error; err != nil {
		return err
	}

	for _, participant := range participants {
		canVote, err := l.perms.CanUserVote(round, participant.UserId)
		if err != nil {
			return err
		}
		if !canVote {
			continue
		}
		if err := tx.Model(&model.RoundParticipant{}).
			Where("id = ?", participant.Id).
			Update("tokens_remaining", round.TotalTokens).Error; err != nil {
			return err
		}
	}
	return nil
}
