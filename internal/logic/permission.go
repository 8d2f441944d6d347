package logic

import (
	"encoding/json"
	"errors"

	"github.com/Hylozoic/hylo-sub001/internal/model"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PermissionChecker 权限协作方，轮次引擎只消费布尔判定
type PermissionChecker interface {
	HasManageRounds(userId, groupId int64) (bool, error)
	IsGroupMember(userId, groupId int64) (bool, error)
	CanUserVote(round *model.FundingRound, userId int64) (bool, error)
	CanUserSubmit(round *model.FundingRound, userId int64) (bool, error)
}

// Permissions 基于社群成员表的默认实现
type Permissions struct {
	db *gorm.DB
}

// NewPermissions 创建权限检查器
func NewPermissions(db *gorm.DB) *Permissions {
	return &Permissions{db: db}
}

// HasManageRounds 是否持有轮次管理能力（coordinator 角色）
func (p *Permissions) HasManageRounds(userId, groupId int64) (bool, error) {
	membership, err := p.membership(userId, groupId)
	if err != nil || membership == nil {
		return false, err
	}
	return membership.Role == model.RoleCoordinator, nil
}

// IsGroupMember 是否为社群成员
func (p *Permissions) IsGroupMember(userId, groupId int64) (bool, error) {
	membership, err := p.membership(userId, groupId)
	if err != nil {
		return false, err
	}
	return membership != nil, nil
}

// CanUserVote 是否具备投票资格：须为成员，且满足 voterRoles 角色限制（为空则不限制）
func (p *Permissions) CanUserVote(round *model.FundingRound, userId int64) (bool, error) {
	return p.matchesRoleFilter(round.VoterRoles, userId, round.GroupId)
}

// CanUserSubmit 是否具备提交资格：须为成员，且满足 submitterRoles 角色限制
func (p *Permissions) CanUserSubmit(round *model.FundingRound, userId int64) (bool, error) {
	return p.matchesRoleFilter(round.SubmitterRoles, userId, round.GroupId)
}

func (p *Permissions) matchesRoleFilter(filter datatypes.JSON, userId, groupId int64) (bool, error) {
	membership, err := p.membership(userId, groupId)
	if err != nil || membership == nil {
		return false, err
	}

	roles, err := parseRoleList(filter)
	if err != nil {
		return false, err
	}
	if len(roles) == 0 {
		return true, nil
	}
	for _, role := range roles {
		if role == membership.Role {
			return true, nil
		}
	}
	return false, nil
}

func (p *Permissions) membership(userId, groupId int64) (*model.GroupMembership, error) {
	var membership model.GroupMembership
	err := p.db.Where("group_id = ? AND user_id = ?", groupId, userId).First(&membership).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &membership, nil
}

// parseRoleList 解析角色限制 JSON，空值视为无限制
func parseRoleList(filter datatypes.JSON) ([]string, error) {
	if len(filter) == 0 {
		return nil, nil
	}
	var roles []string
	if err := json.Unmarshal(filter, &roles); err != nil {
		return nil, err
	}
	return roles, nil
}
