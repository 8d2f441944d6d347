package router

import (
	"github.com/Hylozoic/hylo-sub001/internal/config"
	"github.com/Hylozoic/hylo-sub001/internal/handler"
	"github.com/Hylozoic/hylo-sub001/internal/logic"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func Setup(db *gorm.DB, notifier logic.Notifier, cfg *config.Config) *gin.Engine {
	r := gin.Default()

	// 中间件
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(corsMiddleware())

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"service": "funding-rounds-service",
		})
	})

	// API版本组
	v1 := r.Group("/api/v1")
	v1.Use(handler.IdentityMiddleware())
	{
		roundHandler := handler.NewRoundHandler(db, notifier)
		participationHandler := handler.NewParticipationHandler(roundHandler.Logic())
		allocationHandler := handler.NewAllocationHandler(roundHandler.Logic())

		// 轮次相关路由
		rounds := v1.Group("/rounds")
		{
			rounds.POST("", roundHandler.CreateRound)
			rounds.GET("", roundHandler.GetRounds)
			rounds.GET("/:id", roundHandler.GetRound)
			rounds.PUT("/:id", roundHandler.UpdateRound)
			rounds.DELETE("/:id", roundHandler.DeleteRound)
			rounds.POST("/:id/transition", roundHandler.RunPhaseTransition)

			rounds.POST("/:id/join", participationHandler.JoinRound)
			rounds.POST("/:id/leave", participationHandler.LeaveRound)
			rounds.POST("/:id/join-requests", participationHandler.RequestToJoinRound)
		}

		// 加入申请审批
		joinRequests := v1.Group("/join-requests")
		{
			joinRequests.POST("/:id/accept", participationHandler.AcceptJoinRequest)
			joinRequests.POST("/:id/reject", participationHandler.RejectJoinRequest)
		}

		// 代币分配
		v1.POST("/posts/:id/allocate", allocationHandler.AllocateTokens)
	}

	return r
}

// CORS中间件
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, X-User-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
