package logic

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"

	"github.com/Hylozoic/hylo-sub001/internal/apperr"
	"github.com/Hylozoic/hylo-sub001/internal/logger"
	"github.com/Hylozoic/hylo-sub001/internal/model"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// RoundLogic 资助轮次业务逻辑：轮次生命周期、代币台账与参与管理
type RoundLogic struct {
	db       *gorm.DB
	perms    PermissionChecker
	notifier Notifier
	clock    Clock
}

// NewRoundLogic 创建轮次业务逻辑
func NewRoundLogic(db *gorm.DB, notifier Notifier) *RoundLogic {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &RoundLogic{
		db:       db,
		perms:    NewPermissions(db),
		notifier: notifier,
		clock:    systemClock{},
	}
}

// findRound 查找未停用的轮次
func findRound(tx *gorm.DB, id int64) (*model.FundingRound, error) {
	var round model.FundingRound
	if err := tx.Where("deactivated_at IS NULL").First(&round, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("FundingRound not found")
		}
		return nil, err
	}
	return &round, nil
}

// CreateRound 创建轮次，初始为草稿阶段；创建后立即做一次阶段检查，
// 若已到发布时间则创建者随即作为参与者加入
func (l *RoundLogic) CreateRound(userId int64, round *model.FundingRound) error {
	if err := l.validateRound(round); err != nil {
		return err
	}

	var group model.Group
	if err := l.db.First(&group, round.GroupId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("Invalid group")
		}
		return err
	}

	ok, err := l.perms.HasManageRounds(userId, round.GroupId)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Permission("You do not have permission to create funding rounds")
	}

	round.Phase = model.PhaseDraft

	var outcome *transitionOutcome
	err = l.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(round).Error; err != nil {
			return err
		}
		outcome, err = l.runPhaseTransition(tx, round)
		if err != nil {
			return err
		}
		// 发布后创建者自动加入
		if round.Phase != model.PhaseDraft {
			if _, err := l.joinParticipant(tx, round, userId); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	l.notifyTransition(outcome)
	return nil
}

// validateRound 校验必填字段
func (l *RoundLogic) validateRound(round *model.FundingRound) error {
	if round.Title == "" {
		return apperr.Validation("title is required")
	}
	if round.GroupId == 0 {
		return apperr.Validation("groupId is required")
	}
	if round.VotingMethod == "" {
		round.VotingMethod = model.VotingMethodTokenConstant
	}
	if round.VotingMethod != model.VotingMethodTokenConstant {
		return apperr.Newf(apperr.KindValidation, "unsupported votingMethod: %s", round.VotingMethod)
	}
	if round.TotalTokens < 0 {
		return apperr.Validation("totalTokens must be non-negative")
	}
	return nil
}

// OptionalTime 可区分"未提供 / 显式置空 / 新值"的时间字段
type OptionalTime struct {
	Set   bool
	Value *time.Time
}

// UnmarshalJSON 字段出现即 Set=true，JSON null 表示清空
func (o *OptionalTime) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(data, []byte("null")) {
		o.Value = nil
		return nil
	}
	var t time.Time
	if err := json.Unmarshal(data, &t); err != nil {
		return err
	}
	o.Value = &t
	return nil
}

// RoundUpdates 轮次部分更新，指针为 nil 表示不修改
type RoundUpdates struct {
	Title                      *string                 `json:"title"`
	Description                *string                 `json:"description"`
	Criteria                   *string                 `json:"criteria"`
	BannerUrl                  *string                 `json:"banner_url"`
	TokenType                  *string                 `json:"token_type"`
	TotalTokens                *int                    `json:"total_tokens"`
	MinTokenAllocation         *int                    `json:"min_token_allocation"`
	MaxTokenAllocation         *int                    `json:"max_token_allocation"`
	AllowSelfVoting            *bool                   `json:"allow_self_voting"`
	JoinDuringVoting           *model.JoinDuringVoting `json:"join_during_voting"`
	SubmitterRoles             *[]string               `json:"submitter_roles"`
	VoterRoles                 *[]string               `json:"voter_roles"`
	SubmissionDescriptor       *string                 `json:"submission_descriptor"`
	SubmissionDescriptorPlural *string                 `json:"submission_descriptor_plural"`

	PublishedAt        OptionalTime `json:"published_at"`
	SubmissionsOpenAt  OptionalTime `json:"submissions_open_at"`
	SubmissionsCloseAt OptionalTime `json:"submissions_close_at"`
	VotingOpensAt      OptionalTime `json:"voting_opens_at"`
	VotingClosesAt     OptionalTime `json:"voting_closes_at"`
}

// UpdateRound 更新轮次。自投票被关闭时先执行代币回收，
// 属性落库后在同一事务内重新做阶段检查
func (l *RoundLogic) UpdateRound(userId, roundId int64, updates *RoundUpdates) (*model.FundingRound, error) {
	var round *model.FundingRound
	var outcome *transitionOutcome

	err := l.db.Transaction(func(tx *gorm.DB) error {
		r, err := findRound(tx, roundId)
		if err != nil {
			return err
		}
		round = r

		ok, err := l.perms.HasManageRounds(userId, round.GroupId)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.Permission("You do not have permission to update funding rounds")
		}

		columns, err := l.applyUpdates(round, updates)
		if err != nil {
			return err
		}
		if len(columns) == 0 {
			return apperr.Validation("no fields to update")
		}

		// 自投票从开启变为关闭，且已进入投票期：先回收自投代币
		if updates.AllowSelfVoting != nil && !*updates.AllowSelfVoting && round.VotingOpen() {
			var wasAllowed bool
			if err := tx.Model(&model.FundingRound{}).Select("allow_self_voting").
				Where("id = ?", round.Id).Scan(&wasAllowed).Error; err != nil {
				return err
			}
			if wasAllowed {
				if err := l.clawbackSelfVotes(tx, round); err != nil {
					return err
				}
			}
		}

		if err := tx.Model(round).Updates(columns).Error; err != nil {
			return err
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

// applyUpdates 把更新写到内存结构上并生成落库的列映射（nil 值写 NULL）
func (l *RoundLogic) applyUpdates(round *model.FundingRound, updates *RoundUpdates) (map[string]interface{}, error) {
	columns := make(map[string]interface{})

	if updates.Title != nil {
		if *updates.Title == "" {
			return nil, apperr.Validation("title is required")
		}
		round.Title = *updates.Title
		columns["title"] = *updates.Title
	}
	if updates.Description != nil {
		round.Description = *updates.Description
		columns["description"] = *updates.Description
	}
	if updates.Criteria != nil {
		round.Criteria = *updates.Criteria
		columns["criteria"] = *updates.Criteria
	}
	if updates.BannerUrl != nil {
		round.BannerUrl = *updates.BannerUrl
		columns["banner_url"] = *updates.BannerUrl
	}
	if updates.TokenType != nil {
		round.TokenType = *updates.TokenType
		columns["token_type"] = *updates.TokenType
	}
	if updates.TotalTokens != nil {
		if *updates.TotalTokens < 0 {
			return nil, apperr.Validation("totalTokens must be non-negative")
		}
		round.TotalTokens = *updates.TotalTokens
		columns["total_tokens"] = *updates.TotalTokens
	}
	if updates.MinTokenAllocation != nil {
		round.MinTokenAllocation = *updates.MinTokenAllocation
		columns["min_token_allocation"] = *updates.MinTokenAllocation
	}
	if updates.MaxTokenAllocation != nil {
		round.MaxTokenAllocation = *updates.MaxTokenAllocation
		columns["max_token_allocation"] = *updates.MaxTokenAllocation
	}
	if updates.AllowSelfVoting != nil {
		round.AllowSelfVoting = *updates.AllowSelfVoting
		columns["allow_self_voting"] = *updates.AllowSelfVoting
	}
	if updates.JoinDuringVoting != nil {
		switch *updates.JoinDuringVoting {
		case model.JoinDuringVotingNo, model.JoinDuringVotingYes, model.JoinDuringVotingRequest:
		default:
			return nil, apperr.Newf(apperr.KindValidation, "invalid joinDuringVoting: %s", *updates.JoinDuringVoting)
		}
		round.JoinDuringVoting = *updates.JoinDuringVoting
		columns["join_during_voting"] = *updates.JoinDuringVoting
	}
	if updates.SubmitterRoles != nil {
		encoded, err := json.Marshal(*updates.SubmitterRoles)
		if err != nil {
			return nil, err
		}
		round.SubmitterRoles = datatypes.JSON(encoded)
		columns["submitter_roles"] = round.SubmitterRoles
	}
	if updates.VoterRoles != nil {
		encoded, err := json.Marshal(*updates.VoterRoles)
		if err != nil {
			return nil, err
		}
		round.VoterRoles = datatypes.JSON(encoded)
		columns["voter_roles"] = round.VoterRoles
	}
	if updates.SubmissionDescriptor != nil {
		round.SubmissionDescriptor = *updates.SubmissionDescriptor
		columns["submission_descriptor"] = *updates.SubmissionDescriptor
	}
	if updates.SubmissionDescriptorPlural != nil {
		round.SubmissionDescriptorPlural = *updates.SubmissionDescriptorPlural
		columns["submission_descriptor_plural"] = *updates.SubmissionDescriptorPlural
	}

	if updates.PublishedAt.Set {
		round.PublishedAt = updates.PublishedAt.Value
		columns["published_at"] = updates.PublishedAt.Value
	}
	if updates.SubmissionsOpenAt.Set {
		round.SubmissionsOpenAt = updates.SubmissionsOpenAt.Value
		columns["submissions_open_at"] = updates.SubmissionsOpenAt.Value
	}
	if updates.SubmissionsCloseAt.Set {
		round.SubmissionsCloseAt = updates.SubmissionsCloseAt.Value
		columns["submissions_close_at"] = updates.SubmissionsCloseAt.Value
	}
	if updates.VotingOpensAt.Set {
		round.VotingOpensAt = updates.VotingOpensAt.Value
		columns["voting_opens_at"] = updates.VotingOpensAt.Value
	}
	if updates.VotingClosesAt.Set {
		round.VotingClosesAt = updates.VotingClosesAt.Value
		columns["voting_closes_at"] = updates.VotingClosesAt.Value
	}

	return columns, nil
}

// clawbackSelfVotes 回收所有作者对自己提交物的非零分配：
// 代币退回参与者余额，分配记录清零
func (l *RoundLogic) clawbackSelfVotes(tx *gorm.DB, round *model.FundingRound) error {
	var allocations []model.TokenAllocation
	err := tx.
		Joins("JOIN round_submission ON round_submission.post_id = token_allocation.post_id").
		Joins("JOIN post ON post.id = token_allocation.post_id").
		Where("round_submission.round_id = ?", round.Id).
		Where("post.creator_id = token_allocation.user_id").
		Where("token_allocation.tokens > 0").
		Find(&allocations).Error
	if err != nil {
		return err
	}

	for _, allocation := range allocations {
		err := tx.Model(&model.RoundParticipant{}).
			Where("round_id = ? AND user_id = ?", round.Id, allocation.UserId).
			Update("tokens_remaining", gorm.Expr("tokens_remaining + ?", allocation.Tokens)).Error
		if err != nil {
			return err
		}
		err = tx.Model(&model.TokenAllocation{}).
			Where("id = ?", allocation.Id).
			Update("tokens", 0).Error
		if err != nil {
			return err
		}
		logger.Info("Clawed back %d self-allocated tokens from user %d in round %d",
			allocation.Tokens, allocation.UserId, round.Id)
	}
	return nil
}

// DeleteRound 软删除轮次
func (l *RoundLogic) DeleteRound(userId, roundId int64) error {
	round, err := findRound(l.db, roundId)
	if err != nil {
		return err
	}

	ok, err := l.perms.HasManageRounds(userId, round.GroupId)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Permission("You do not have permission to delete funding rounds")
	}

	now := l.clock.Now()
	return l.db.Model(round).Update("deactivated_at", &now).Error
}

// GetRound 获取轮次详情
func (l *RoundLogic) GetRound(roundId int64) (*model.FundingRound, error) {
	return findRound(l.db, roundId)
}

// ListRounds 获取轮次列表（排除已停用）
func (l *RoundLogic) ListRounds(groupId int64, page, pageSize int) ([]model.FundingRound, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 10
	}

	query := l.db.Model(&model.FundingRound{}).Where("deactivated_at IS NULL")
	if groupId != 0 {
		query = query.Where("group_id = ?", groupId)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rounds []model.FundingRound
	err := query.Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&rounds).Error
	if err != nil {
		return nil, 0, err
	}

	return rounds, total, nil
}
