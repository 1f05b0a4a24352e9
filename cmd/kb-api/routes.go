package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/kb-api/internal/handler"
	"github.com/noah-isme/kb-api/internal/middleware"
	"github.com/noah-isme/kb-api/internal/models"
	"github.com/noah-isme/kb-api/internal/service"
	"github.com/noah-isme/kb-api/pkg/config"
	"github.com/noah-isme/kb-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/kb-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/kb-api/pkg/middleware/requestid"
)

type routeHandlers struct {
	auth       *handler.AuthHandler
	users      *handler.UserHandler
	activity   *handler.ActivityHandler
	questions  *handler.QuestionHandler
	answers    *handler.AnswerHandler
	analytics  *handler.AnalyticsHandler
	attachment *handler.AttachmentHandler
	metrics    *handler.MetricsHandler
}

func newRouter(cfg *config.Config, logr *zap.Logger, metricsSvc *service.MetricsService, tokens middleware.TokenValidator, h routeHandlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", h.metrics.Health)
	r.GET("/ready", h.metrics.Ready)
	r.GET("/metrics", h.metrics.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	admin := middleware.RequireRoles(models.RoleAdmin)
	moderators := middleware.RequireRoles(models.RoleAdmin, models.RoleSupervisor)
	adminOrSelf := middleware.RBAC(string(models.RoleAdmin), middleware.SelfParam)

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", h.auth.Login)
	api.POST("/questions/:id/views", middleware.OptionalJWT(tokens), h.questions.View)
	api.GET("/attachments/download", h.attachment.Download)

	secured := api.Group("")
	secured.Use(middleware.JWT(tokens))

	secured.GET("/auth/me", h.auth.Me)

	users := secured.Group("/users")
	users.GET("", admin, h.users.List)
	users.POST("", admin, h.users.Create)
	users.GET("/:id", adminOrSelf, h.users.Get)
	users.PATCH("/:id", admin, h.users.Update)
	users.GET("/:id/activity", adminOrSelf, h.activity.Get)
	users.GET("/:id/activity-log", adminOrSelf, h.activity.Log)

	questions := secured.Group("/questions")
	questions.GET("", h.questions.List)
	questions.POST("", h.questions.Submit)
	questions.POST("/final", admin, h.questions.PostFinal)
	questions.GET("/trending", h.questions.Trending)
	questions.GET("/:id", h.questions.Get)
	questions.DELETE("/:id", admin, h.questions.Delete)
	questions.PATCH("/:id/status", moderators, h.questions.UpdateStatus)
	questions.GET("/:id/answers", h.answers.List)
	questions.POST("/:id/answers", moderators, h.answers.Submit)

	secured.PATCH("/answers/:id/status", admin, h.answers.UpdateStatus)
	secured.GET("/moderation/pending", moderators, h.questions.PendingQueue)

	analytics := secured.Group("/analytics", moderators)
	analytics.GET("", h.analytics.Overview)
	analytics.GET("/stats", h.analytics.Stats)
	analytics.GET("/system", admin, h.analytics.System)
	analytics.GET("/export", admin, h.analytics.Export)

	attachments := secured.Group("/attachments")
	attachments.POST("", h.attachment.Upload)
	attachments.GET("/:ref/url", h.attachment.SignedURL)

	return r
}
