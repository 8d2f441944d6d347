package model

import (
	"time"

	"gorm.io/datatypes"
)

// FundingRound 资助轮次模型
type FundingRound struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// 基本信息
	GroupId     int64  `json:"group_id" gorm:"not null;index" binding:"required"`
	Title       string `json:"title" gorm:"not null" binding:"required"`
	Description string `json:"description" gorm:"type:text"`
	Criteria    string `json:"criteria" gorm:"type:text"`
	BannerUrl   string `json:"banner_url"`

	// 投票配置
	VotingMethod       VotingMethod     `json:"voting_method" gorm:"not null;default:'token_allocation_constant'"`
	TokenType          string           `json:"token_type"`
	TotalTokens        int              `json:"total_tokens" gorm:"default:0"`
	MinTokenAllocation int              `json:"min_token_allocation" gorm:"default:0"`
	MaxTokenAllocation int              `json:"max_token_allocation" gorm:"default:0"`
	AllowSelfVoting    bool             `json:"allow_self_voting" gorm:"default:false"`
	JoinDuringVoting   JoinDuringVoting `json:"join_during_voting" gorm:"default:'no'"`

	// 角色限制，由权限协作方解释的角色名列表
	SubmitterRoles datatypes.JSON `json:"submitter_roles"`
	VoterRoles     datatypes.JSON `json:"voter_roles"`

	// 提交物文案
	SubmissionDescriptor       string `json:"submission_descriptor"`
	SubmissionDescriptorPlural string `json:"submission_descriptor_plural"`

	// 阶段时间点，均可清空
	PublishedAt        *time.Time `json:"published_at"`
	SubmissionsOpenAt  *time.Time `json:"submissions_open_at"`
	SubmissionsCloseAt *time.Time `json:"submissions_close_at"`
	VotingOpensAt      *time.Time `json:"voting_opens_at"`
	VotingClosesAt     *time.Time `json:"voting_closes_at"`

	// 状态
	Phase         RoundPhase `json:"phase" gorm:"default:'draft'"`
	DeactivatedAt *time.Time `json:"deactivated_at" gorm:"index"`

	// 计数缓存
	NumSubmissions  int `json:"num_submissions" gorm:"default:0"`
	NumParticipants int `json:"num_participants" gorm:"default:0"`
}

// RoundPhase 轮次阶段
type RoundPhase string

const (
	PhaseDraft       RoundPhase = "draft"       // 草稿
	PhasePublished   RoundPhase = "published"   // 已发布
	PhaseSubmissions RoundPhase = "submissions" // 提交期
	PhaseDiscussion  RoundPhase = "discussion"  // 讨论期
	PhaseVoting      RoundPhase = "voting"      // 投票期
	PhaseCompleted   RoundPhase = "completed"   // 已结束
)

// VotingMethod 投票方式
type VotingMethod string

const (
	VotingMethodTokenConstant VotingMethod = "token_allocation_constant" // 每人固定代币预算
)

// JoinDuringVoting 投票期加入策略
type JoinDuringVoting string

const (
	JoinDuringVotingNo      JoinDuringVoting = "no"      // 禁止加入
	JoinDuringVotingYes     JoinDuringVoting = "yes"     // 允许加入并立即发放代币
	JoinDuringVotingRequest JoinDuringVoting = "request" // 需要申请，由管理员审批
)

// TableName 自定义表名
func (FundingRound) TableName() string {
	return "funding_round"
}

// VotingOpen 投票是否已开放（投票期或已结束仍可调整分配）
func (r *FundingRound) VotingOpen() bool {
	return r.Phase == PhaseVoting || r.Phase == PhaseCompleted
}
