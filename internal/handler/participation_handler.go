package handler

import (
	"net/http"

	"github.com/Hylozoic/hylo-sub001/internal/logic"
	"github.com/gin-gonic/gin"
)

type ParticipationHandler struct {
	roundLogic *logic.RoundLogic
}

func NewParticipationHandler(roundLogic *logic.RoundLogic) *ParticipationHandler {
	return &ParticipationHandler{roundLogic: roundLogic}
}

// JoinRound 加入轮次
func (h *ParticipationHandler) JoinRound(c *gin.Context) {
	roundId, err := parseIdParam(c, "id")
	if err != nil {
		return
	}

	round, err := h.roundLogic.Join(CurrentUserId(c), roundId)
	if err != nil {
		FailWithError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "joined funding round", ToRoundResponse(round))
}

// LeaveRound 离开轮次
func (h *ParticipationHandler) LeaveRound(c *gin.Context) {
	roundId, err := parseIdParam(c, "id")
	if err != nil {
		return
	}

	round, err := h.roundLogic.Leave(CurrentUserId(c), roundId)
	if err != nil {
		FailWithError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "left funding round", ToRoundResponse(round))
}

// RequestToJoinRound 投票期内提交加入申请
func (h *ParticipationHandler) RequestToJoinRound(c *gin.Context) {
	roundId, err := parseIdParam(c, "id")
	if err != nil {
		return
	}

	var req RequestToJoinRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	request, err := h.roundLogic.RequestToJoin(CurrentUserId(c), roundId, req.Comments)
	if err != nil {
		FailWithError(c, err)
		return
	}

	SuccessResponse(c, http.StatusCreated, "join request created", request)
}

// AcceptJoinRequest 通过加入申请
func (h *ParticipationHandler) AcceptJoinRequest(c *gin.Context) {
	requestId, err := parseIdParam(c, "id")
	if err != nil {
		return
	}

	request, err := h.roundLogic.AcceptJoinRequest(CurrentUserId(c), requestId)
	if err != nil {
		FailWithError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "join request accepted", request)
}

// RejectJoinRequest 拒绝加入申请
func (h *ParticipationHandler) RejectJoinRequest(c *gin.Context) {
	requestId, err := parseIdParam(c, "id")
	if err != nil {
		return
	}

	request, err := h.roundLogic.RejectJoinRequest(CurrentUserId(c), requestId)
	if err != nil {
		FailWithError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "join request rejected", request)
}
