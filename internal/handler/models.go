package handler

import (
	"time"

	"github.com/Hylozoic/hylo-sub001/internal/model"
)

// 通用响应结构
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// 分页信息结构
type Pagination struct {
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
	Total    int64 `json:"total"`
}

// CreateRoundRequest 创建轮次请求
type CreateRoundRequest struct {
	Title                      string     `json:"title"`
	GroupId                    int64      `json:"group_id"`
	Description                string     `json:"description"`
	Criteria                   string     `json:"criteria"`
	BannerUrl                  string     `json:"banner_url"`
	VotingMethod               string     `json:"voting_method"`
	TokenType                  string     `json:"token_type"`
	TotalTokens                int        `json:"total_tokens"`
	MinTokenAllocation         int        `json:"min_token_allocation"`
	MaxTokenAllocation         int        `json:"max_token_allocation"`
	AllowSelfVoting            bool       `json:"allow_self_voting"`
	JoinDuringVoting           string     `json:"join_during_voting"`
	SubmitterRoles             []string   `json:"submitter_roles"`
	SubmissionDescriptor       string     `json:"submission_descriptor"`
	SubmissionDescriptorPlural string     `json:"submission_descriptor_plural"`
	VoterRoles                 []string   `json:"voter_roles"`
	PublishedAt                *time.Time `json:"published_at"`
	SubmissionsOpenAt          *time.Time `json:"submissions_open_at"`
	SubmissionsCloseAt         *time.Time `json:"submissions_close_at"`
	VotingOpensAt              *time.Time `json:"voting_opens_at"`
	VotingClosesAt             *time.Time `json:"voting_closes_at"`
}

// RequestToJoinRequest 加入申请请求
type RequestToJoinRequest struct {
	Comments string `json:"comments"`
}

// AllocateTokensRequest 代币分配请求，tokens 为绝对目标值
type AllocateTokensRequest struct {
	Tokens *int `json:"tokens" binding:"required"`
}

// RoundResponse 轮次响应模型
type RoundResponse struct {
	Id                 int64      `json:"id"`
	GroupId            int64      `json:"groupId"`
	Title              string     `json:"title"`
	Description        string     `json:"description"`
	Criteria           string     `json:"criteria"`
	VotingMethod       string     `json:"votingMethod"`
	TotalTokens        int        `json:"totalTokens"`
	AllowSelfVoting    bool       `json:"allowSelfVoting"`
	JoinDuringVoting   string     `json:"joinDuringVoting"`
	Phase              string     `json:"phase"`
	PublishedAt        *time.Time `json:"publishedAt"`
	SubmissionsOpenAt  *time.Time `json:"submissionsOpenAt"`
	SubmissionsCloseAt *time.Time `json:"submissionsCloseAt"`
	VotingOpensAt      *time.Time `json:"votingOpensAt"`
	VotingClosesAt     *time.Time `json:"votingClosesAt"`
	NumSubmissions     int        `json:"numSubmissions"`
	NumParticipants    int        `json:"numParticipants"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

// ToRoundResponse 将数据库模型转换为响应模型
func ToRoundResponse(round *model.FundingRound) RoundResponse {
	return RoundResponse{
		Id:                 round.Id,
		GroupId:            round.GroupId,
		Title:              round.Title,
		Description:        round.Description,
		Criteria:           round.Criteria,
		VotingMethod:       string(round.VotingMethod),
		TotalTokens:        round.TotalTokens,
		AllowSelfVoting:    round.AllowSelfVoting,
		JoinDuringVoting:   string(round.JoinDuringVoting),
		Phase:              string(round.Phase),
		PublishedAt:        round.PublishedAt,
		SubmissionsOpenAt:  round.SubmissionsOpenAt,
		SubmissionsCloseAt: round.SubmissionsCloseAt,
		VotingOpensAt:      round.VotingOpensAt,
		VotingClosesAt:     round.VotingClosesAt,
		NumSubmissions:     round.NumSubmissions,
		NumParticipants:    round.NumParticipants,
		CreatedAt:          round.CreatedAt,
		UpdatedAt:          round.UpdatedAt,
	}
}

// ToRoundResponseList 将数据库模型列表转换为响应模型列表
func ToRoundResponseList(rounds []model.FundingRound) []RoundResponse {
	result := make([]RoundResponse, len(rounds))
	for i := range rounds {
		result[i] = ToRoundResponse(&rounds[i])
	}
	return result
}
