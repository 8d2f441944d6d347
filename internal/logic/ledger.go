package logic

import (
	"errors"

	"github.com/Hylozoic/hylo-sub001/internal/apperr"
	"github.com/Hylozoic/hylo-sub001/internal/logger"
	"github.com/Hylozoic/hylo-sub001/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AllocateResult 分配结果
type AllocateResult struct {
	Allocation      *model.TokenAllocation `json:"allocation"`
	TokensRemaining int                    `json:"tokens_remaining"`
}

// Allocate 把用户对某提交物的代币分配设置为绝对目标值 tokens。
// 减少分配会把差额退回余额；0 是合法目标值，记录保留不删除。
// 参与者台账行持行锁，防止同一用户并发分配时超出预算。
func (l *RoundLogic) Allocate(userId, postId int64, tokens int) (*AllocateResult, error) {
	if postId == 0 {
		return nil, apperr.Validation("postId is required")
	}
	if tokens < 0 {
		return nil, apperr.Validation("tokens must be non-negative")
	}

	var result *AllocateResult
	var outcome *transitionOutcome

	err := l.db.Transaction(func(tx *gorm.DB) error {
		var post model.Post
		if err := tx.First(&post, postId).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("Post not found")
			}
			return err
		}
		if post.Type != model.PostTypeSubmission {
			return apperr.Validation("Post must be a submission")
		}

		var link model.RoundSubmission
		if err := tx.Where("post_id = ?", postId).First(&link).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.Validation("Post is not part of a funding round")
			}
			return err
		}

		round, err := findRound(tx, link.RoundId)
		if err != nil {
			return err
		}

		// 行锁住台账行，读改写期间隔离同一用户的并发分配
		// （sqlite 无 FOR UPDATE 语法，依赖其单写者模型）
		query := tx
		if tx.Dialector.Name() == "postgres" {
			query = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		var participant model.RoundParticipant
		err = query.
			Where("round_id = ? AND user_id = ?", round.Id, userId).
			First(&participant).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.Permission("You must be participating in this round to allocate tokens")
			}
			return err
		}

		canVote, err := l.perms.CanUserVote(round, userId)
		if err != nil {
			return err
		}
		if !canVote {
			return apperr.Permission("You are not eligible to vote in this round")
		}

		if !round.AllowSelfVoting && post.CreatorId == userId {
			return apperr.Permission("You cannot allocate tokens to your own submission")
		}

		if !round.VotingOpen() {
			return apperr.Phase("Voting has not started yet")
		}

		var allocation model.TokenAllocation
		current := 0
		err = tx.Where("post_id = ? AND user_id = ?", postId, userId).First(&allocation).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err == nil {
			current = allocation.Tokens
		}

		delta := tokens - current
		if delta > participant.TokensRemaining {
			return apperr.Budget("Not enough tokens remaining")
		}

		if allocation.Id == 0 {
			allocation = model.TokenAllocation{PostId: postId, UserId: userId, Tokens: tokens}
			if err := tx.Create(&allocation).Error; err != nil {
				return err
			}
		} else if err := tx.Model(&allocation).Update("tokens", tokens).Error; err != nil {
			return err
		}

		participant.TokensRemaining -= delta
		if err := tx.Model(&model.RoundParticipant{}).
			Where("id = ?", participant.Id).
			Update("tokens_remaining", participant.TokensRemaining).Error; err != nil {
			return err
		}

		logger.Debug("User %d allocated %d tokens to post %d (round %d, remaining %d)",
			userId, tokens, postId, round.Id, participant.TokensRemaining)

		result = &AllocateResult{Allocation: &allocation, TokensRemaining: participant.TokensRemaining}

		outcome, err = l.runPhaseTransition(tx, round)
		return err
	})
	if err != nil {
		return nil, err
	}
	l.notifyTransition(outcome)
	return result, nil
}

// grantBudget 若用户具备投票资格，则把其台账余额置为本轮预算；否则不动作。
// 用于进入投票期的统一发放和投票期内的迟到加入。
func (l *RoundLogic) grantBudget(tx *gorm.DB, round *model.FundingRound, userId int64) error {
	canVote, err := l.perms.CanUserVote(round, userId)
	if err != nil {
		return err
	}
	if !canVote {
		return nil
	}

	return tx.Model(&model.RoundParticipant{}).
		Where("round_id = ? AND user_id = ?", round.Id, userId).
		Update("tokens_remaining", round.TotalTokens).Error
}

// clearDistribution 撤销代币发放：清零本轮全部参与者余额与全部分配记录。
// 仅由投票期回退转移调用。
func (l *RoundLogic) clearDistribution(tx *gorm.DB, round *model.FundingRound) error {
	err := tx.Model(&model.RoundParticipant{}).
		Where("round_id = ?", round.Id).
		Update("tokens_remaining", 0).Error
	if err != nil {
		return err
	}

	submissionIds := tx.Model(&model.RoundSubmission{}).
		Select("post_id").
		Where("round_id = ?", round.Id)

	err = tx.Model(&model.TokenAllocation{}).
		Where("post_id IN (?)", submissionIds).
		Update("tokens", 0).Error
	if err != nil {
		return err
	}

	logger.Info("Cleared token distribution for round %d", round.Id)
	return nil
}
