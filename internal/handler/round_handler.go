package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/Hylozoic/hylo-sub001/internal/logic"
	"github.com/Hylozoic/hylo-sub001/internal/model"
	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type RoundHandler struct {
	roundLogic *logic.RoundLogic
}

func NewRoundHandler(db *gorm.DB, notifier logic.Notifier) *RoundHandler {
	return &RoundHandler{
		roundLogic: logic.NewRoundLogic(db, notifier),
	}
}

// Logic 暴露业务逻辑，供参与/分配 handler 复用同一实例
func (h *RoundHandler) Logic() *logic.RoundLogic {
	return h.roundLogic
}

// CreateRound 创建轮次
func (h *RoundHandler) CreateRound(c *gin.Context) {
	var req CreateRoundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	round := model.FundingRound{
		GroupId:                    req.GroupId,
		Title:                      req.Title,
		Description:                req.Description,
		Criteria:                   req.Criteria,
		BannerUrl:                  req.BannerUrl,
		VotingMethod:               model.VotingMethod(req.VotingMethod),
		TokenType:                  req.TokenType,
		TotalTokens:                req.TotalTokens,
		MinTokenAllocation:         req.MinTokenAllocation,
		MaxTokenAllocation:         req.MaxTokenAllocation,
		AllowSelfVoting:            req.AllowSelfVoting,
		JoinDuringVoting:           model.JoinDuringVoting(req.JoinDuringVoting),
		SubmissionDescriptor:       req.SubmissionDescriptor,
		SubmissionDescriptorPlural: req.SubmissionDescriptorPlural,
		PublishedAt:                req.PublishedAt,
		SubmissionsOpenAt:          req.SubmissionsOpenAt,
		SubmissionsCloseAt:         req.SubmissionsCloseAt,
		VotingOpensAt:              req.VotingOpensAt,
		VotingClosesAt:             req.VotingClosesAt,
	}
	if req.JoinDuringVoting == "" {
		round.JoinDuringVoting = model.JoinDuringVotingNo
	}
	if req.SubmitterRoles != nil {
		encoded, _ := json.Marshal(req.SubmitterRoles)
		round.SubmitterRoles = datatypes.JSON(encoded)
	}
	if req.VoterRoles != nil {
		encoded, _ := json.Marshal(req.VoterRoles)
		round.VoterRoles = datatypes.JSON(encoded)
	}

	if err := h.roundLogic.CreateRound(CurrentUserId(c), &round); err != nil {
		FailWithError(c, err)
		return
	}

	SuccessResponse(c, http.StatusCreated, "funding round created", ToRoundResponse(&round))
}

// GetRounds 获取轮次列表
func (h *RoundHandler) GetRounds(c *gin.Context) {
	groupId, _ := strconv.ParseInt(c.Query("group_id"), 10, 64)
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))

	rounds, total, err := h.roundLogic.ListRounds(groupId, page, pageSize)
	if err != nil {
		FailWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"rounds":     ToRoundResponseList(rounds),
		"pagination": Pagination{Page: page, PageSize: pageSize, Total: total},
	})
}

// GetRound 获取轮次详情
func (h *RoundHandler) GetRound(c *gin.Context) {
	roundId, err := parseIdParam(c, "id")
	if err != nil {
		return
	}

	round, err := h.roundLogic.GetRound(roundId)
	if err != nil {
		FailWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"round": ToRoundResponse(round)})
}

// UpdateRound 更新轮次，日期字段传 null 表示清空
func (h *RoundHandler) UpdateRound(c *gin.Context) {
	roundId, err := parseIdParam(c, "id")
	if err != nil {
		return
	}

	var updates logic.RoundUpdates
	if err := c.ShouldBindJSON(&updates); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	round, err := h.roundLogic.UpdateRound(CurrentUserId(c), roundId, &updates)
	if err != nil {
		FailWithError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "funding round updated", ToRoundResponse(round))
}

// DeleteRound 软删除轮次
func (h *RoundHandler) DeleteRound(c *gin.Context) {
	roundId, err := parseIdParam(c, "id")
	if err != nil {
		return
	}

	if err := h.roundLogic.DeleteRound(CurrentUserId(c), roundId); err != nil {
		FailWithError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "funding round deleted", nil)
}

// RunPhaseTransition 主动触发一次阶段检查（幂等）
func (h *RoundHandler) RunPhaseTransition(c *gin.Context) {
	roundId, err := parseIdParam(c, "id")
	if err != nil {
		return
	}

	round, err := h.roundLogic.RunPhaseTransition(roundId)
	if err != nil {
		FailWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"round": ToRoundResponse(round)})
}

var errInvalidId = errors.New("invalid id")

// parseIdParam 解析路径中的数字ID，非法时直接写出 400
func parseIdParam(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		ErrorResponse(c, http.StatusBadRequest, "invalid id")
		return 0, errInvalidId
	}
	return id, nil
}
