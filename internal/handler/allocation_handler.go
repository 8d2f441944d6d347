package handler

import (
	"net/http"

	"github.com/Hylozoic/hylo-sub001/internal/logic"
	"github.com/gin-gonic/gin"
)

type AllocationHandler struct {
	roundLogic *logic.RoundLogic
}

func NewAllocationHandler(roundLogic *logic.RoundLogic) *AllocationHandler {
	return &AllocationHandler{roundLogic: roundLogic}
}

// AllocateTokens 把当前用户对提交物的分配设置为绝对目标值
func (h *AllocationHandler) AllocateTokens(c *gin.Context) {
	postId, err := parseIdParam(c, "id")
	if err != nil {
		return
	}

	var req AllocateTokensRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "tokens is required")
		return
	}

	result, err := h.roundLogic.Allocate(CurrentUserId(c), postId, *req.Tokens)
	if err != nil {
		FailWithError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "tokens allocated", result)
}
