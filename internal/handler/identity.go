package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

const userIdKey = "userId"

// IdentityMiddleware 从 X-User-ID 头读取调用者身份。
// 认证本身由上游网关负责，这里只消费其结果。
func IdentityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userId, err := strconv.ParseInt(c.GetHeader("X-User-ID"), 10, 64)
		if err != nil || userId <= 0 {
			ErrorResponse(c, http.StatusUnauthorized, "missing or invalid X-User-ID header")
			c.Abort()
			return
		}
		c.Set(userIdKey, userId)
		c.Next()
	}
}

// CurrentUserId 当前调用者ID
func CurrentUserId(c *gin.Context) int64 {
	return c.GetInt64(userIdKey)
}
