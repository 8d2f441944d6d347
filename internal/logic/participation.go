package logic

import (
	"errors"

	"github.com/Hylozoic/hylo-sub001/internal/apperr"
	"github.com/Hylozoic/hylo-sub001/internal/logger"
	"github.com/Hylozoic/hylo-sub001/internal/model"
	"gorm.io/gorm"
)

// Join 加入轮次。投票期的行为由 joinDuringVoting 策略决定，
// 已结束的轮次不可加入
func (l *RoundLogic) Join(userId, roundId int64) (*model.FundingRound, error) {
	var round *model.FundingRound
	var outcome *transitionOutcome

	err := l.db.Transaction(func(tx *gorm.DB) error {
		r, err := findRound(tx, roundId)
		if err != nil {
			return err
		}
		round = r

		member, err := l.perms.IsGroupMember(userId, round.GroupId)
		if err != nil {
			return err
		}
		if !member {
			return apperr.Permission("You must be a member of this group to join the round")
		}

		switch round.Phase {
		case model.PhaseCompleted:
			return apperr.Phase("This round has already completed")
		case model.PhaseVoting:
			switch round.JoinDuringVoting {
			case model.JoinDuringVotingNo:
				return apperr.Phase("This round does not allow joining during voting")
			case model.JoinDuringVotingRequest:
				return apperr.Phase("This round requires a request to join during voting")
			}
			// 允许加入：仅对新建的台账行发放预算，
			// 重复加入不得重置已花费的余额
			created, err := l.joinParticipant(tx, round, userId)
			if err != nil {
				return err
			}
			if created {
				if err := l.grantBudget(tx, round, userId); err != nil {
					return err
				}
			}
		default:
			// 投票前任意阶段均可加入，代币在进入投票期时统一发放
			if _, err := l.joinParticipant(tx, round, userId); err != nil {
				return err
			}
		}

		outcome, err = l.runPhaseTransition(tx, round)
		return err
	})
	if err != nil {
		return nil, err
	}
	l.notifyTransition(outcome)
	return round, nil
}

// joinParticipant 台账层加入：创建零预算的参与者行，已存在则不动作
func (l *RoundLogic) joinParticipant(tx *gorm.DB, round *model.FundingRound, userId int64) (created bool, err error) {
	var participant model.RoundParticipant
	err = tx.Where("round_id = ? AND user_id = ?", round.Id, userId).First(&participant).Error
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}

	participant = model.RoundParticipant{RoundId: round.Id, UserId: userId}
	if err := tx.Create(&participant).Error; err != nil {
		return false, err
	}

	err = tx.Model(&model.FundingRound{}).
		Where("id = ?", round.Id).
		Update("num_participants", gorm.Expr("num_participants + 1")).Error
	if err != nil {
		return false, err
	}
	round.NumParticipants++

	return true, nil
}

// Leave 离开轮次，删除参与者台账行。
// 该设计不做代币对账，未用完的余额直接作废
func (l *RoundLogic) Leave(userId, roundId int64) (*model.FundingRound, error) {
	var round *model.FundingRound
	var outcome *transitionOutcome

	err := l.db.Transaction(func(tx *gorm.DB) error {
		r, err := findRound(tx, roundId)
		if err != nil {
			return err
		}
		round = r

		result := tx.Where("round_id = ? AND user_id = ?", round.Id, userId).
			Delete(&model.RoundParticipant{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected > 0 {
			err = tx.Model(&model.FundingRound{}).
				Where("id = ?", round.Id).
				Update("num_participants", gorm.Expr("num_participants - 1")).Error
			if err != nil {
				return err
			}
			round.NumParticipants--
		}

		outcome, err = l.runPhaseTransition(tx, round)
		return err
	})
	if err != nil {
		return nil, err
	}
	l.notifyTransition(outcome)
	return round, nil
}

// RequestToJoin 投票期内按 request 策略提交加入申请
func (l *RoundLogic) RequestToJoin(userId, roundId int64, comments string) (*model.JoinRequest, error) {
	var request *model.JoinRequest
	var outcome *transitionOutcome

	err := l.db.Transaction(func(tx *gorm.DB) error {
		round, err := findRound(tx, roundId)
		if err != nil {
			return err
		}

		member, err := l.perms.IsGroupMember(userId, round.GroupId)
		if err != nil {
			return err
		}
		if !member {
			return apperr.Permission("You must be a member of this group to request to join")
		}

		if round.Phase != model.PhaseVoting || round.JoinDuringVoting != model.JoinDuringVotingRequest {
			return apperr.Phase("This round does not accept join requests")
		}

		var count int64
		err = tx.Model(&model.RoundParticipant{}).
			Where("round_id = ? AND user_id = ?", round.Id, userId).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count > 0 {
			return apperr.Conflict("You are already participating in this round")
		}

		err = tx.Model(&model.JoinRequest{}).
			Where("round_id = ? AND user_id = ? AND accepted_at IS NULL AND rejected_at IS NULL", round.Id, userId).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count > 0 {
			return apperr.Conflict("You already have a pending request to join this round")
		}

		request = &model.JoinRequest{RoundId: round.Id, UserId: userId, Comments: comments}
		if err := tx.Create(request).Error; err != nil {
			return err
		}

		outcome, err = l.runPhaseTransition(tx, round)
		return err
	})
	if err != nil {
		return nil, err
	}

	l.notifyTransition(outcome)
	l.notifier.JoinRequestCreated(request)
	return request, nil
}

// AcceptJoinRequest 管理员通过加入申请。申请创建时已校验过时机，
// 此处直接在台账层加入；若仍在投票期则立即发放预算
func (l *RoundLogic) AcceptJoinRequest(managerId, requestId int64) (*model.JoinRequest, error) {
	var request *model.JoinRequest
	var outcome *transitionOutcome

	err := l.db.Transaction(func(tx *gorm.DB) error {
		r, round, err := l.findManageableRequest(tx, managerId, requestId)
		if err != nil {
			return err
		}
		request = r

		now := l.clock.Now()
		request.AcceptedAt = &now
		if err := tx.Model(request).Update("accepted_at", &now).Error; err != nil {
			return err
		}

		if _, err := l.joinParticipant(tx, round, request.UserId); err != nil {
			return err
		}
		if round.Phase == model.PhaseVoting {
			if err := l.grantBudget(tx, round, request.UserId); err != nil {
				return err
			}
		}

		outcome, err = l.runPhaseTransition(tx, round)
		return err
	})
	if err != nil {
		return nil, err
	}

	l.notifyTransition(outcome)
	l.notifier.JoinRequestAccepted(request)
	return request, nil
}

// RejectJoinRequest 管理员拒绝加入申请
func (l *RoundLogic) RejectJoinRequest(managerId, requestId int64) (*model.JoinRequest, error) {
	var request *model.JoinRequest
	var outcome *transitionOutcome

	err := l.db.Transaction(func(tx *gorm.DB) error {
		r, round, err := l.findManageableRequest(tx, managerId, requestId)
		if err != nil {
			return err
		}
		request = r

		now := l.clock.Now()
		request.RejectedAt = &now
		if err := tx.Model(request).Update("rejected_at", &now).Error; err != nil {
			return err
		}

		outcome, err = l.runPhaseTransition(tx, round)
		return err
	})
	if err != nil {
		return nil, err
	}

	l.notifyTransition(outcome)
	l.notifier.JoinRequestRejected(request)
	return request, nil
}

// findManageableRequest 查找待处理申请并校验管理权限
func (l *RoundLogic) findManageableRequest(tx *gorm.DB, managerId, requestId int64) (*model.JoinRequest, *model.FundingRound, error) {
	var request model.JoinRequest
	if err := tx.First(&request, requestId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, apperr.NotFound("JoinRequest not found")
		}
		return nil, nil, err
	}
	if !request.Pending() {
		return nil, nil, apperr.Conflict("Join request has already been processed")
	}

	round, err := findRound(tx, request.RoundId)
	if err != nil {
		return nil, nil, err
	}

	ok, err := l.perms.HasManageRounds(managerId, round.GroupId)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, apperr.Permission("You do not have permission to manage join requests")
	}

	return &request, round, nil
}

// autoAcceptPendingJoinRequests 阶段回退时自动通过全部待处理申请，
// 申请人以零预算加入，代币要等投票期重新开启时才发放。
// 返回通过的申请，通知由调用方在事务提交后补发。
func (l *RoundLogic) autoAcceptPendingJoinRequests(tx *gorm.DB, round *model.FundingRound) ([]*model.JoinRequest, error) {
	var pending []model.JoinRequest
	err := tx.Where("round_id = ? AND accepted_at IS NULL AND rejected_at IS NULL", round.Id).
		Find(&pending).Error
	if err != nil {
		return nil, err
	}

	now := l.clock.Now()
	accepted := make([]*model.JoinRequest, 0, len(pending))
	for i := range pending {
		request := &pending[i]
		request.AcceptedAt = &now
		if err := tx.Model(request).Update("accepted_at", &now).Error; err != nil {
			return nil, err
		}
		if _, err := l.joinParticipant(tx, round, request.UserId); err != nil {
			return nil, err
		}
		accepted = append(accepted, request)
	}

	if len(accepted) > 0 {
		logger.Info("Auto-accepted %d pending join requests for round %d", len(accepted), round.Id)
	}
	return accepted, nil
}
