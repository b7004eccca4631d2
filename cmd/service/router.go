package service

import (
	"github.com/gin-gonic/gin"

	"github.com/evergreensystems/evergreen-ai/app/core"
	v1 "github.com/evergreensystems/evergreen-ai/app/logic/v1"
	"github.com/evergreensystems/evergreen-ai/app/response"
	"github.com/evergreensystems/evergreen-ai/cmd/service/handler"
	"github.com/evergreensystems/evergreen-ai/cmd/service/middleware"
	"github.com/evergreensystems/evergreen-ai/pkg/metrics"
)

func serve(appCore *core.Core) {
	engine := gin.New()
	engine.Use(gin.Recovery())

	httpSrv := &handler.HttpSrv{
		Core:   appCore,
		Engine: engine,
	}
	setupHttpRouter(httpSrv)

	engine.Run(appCore.Cfg().Addr)
}

func GetUserLimitBuilder(appCore *core.Core) middleware.LimiterFunc {
	return func(key string, opts ...core.LimitOption) gin.HandlerFunc {
		return middleware.UseLimit(appCore, key, func(c *gin.Context) string {
			claims, _ := v1.InjectTokenClaim(c)
			return claims.UserID
		}, opts...)
	}
}

func setupHttpRouter(s *handler.HttpSrv) {
	userLimit := GetUserLimitBuilder(s.Core)

	s.Engine.Use(middleware.I18n(), response.NewResponse())
	s.Engine.Use(middleware.Cors)

	s.Engine.GET("/metrics", metrics.DefaultExportHandler())

	apiV1 := s.Engine.Group("/api/v1")
	{
		authed := apiV1.Group("")
		authed.Use(middleware.Authorization(s.Core))

		conversations := authed.Group("/conversations")
		{
			conversations.POST("", s.CreateConversation)
			conversations.GET("/list", s.ListConversations)
			conversations.DELETE("/:conversation", s.DeleteConversation)
			conversations.GET("/:conversation/history/list", s.GetConversationHistory)
			conversations.POST("/:conversation/messages", userLimit("chat", core.WithLimit(30)), s.CreateMessage)
		}
	}
}
