package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/mentalhealthai/mhai-backend/internal/http/handlers"
	httpMW "github.com/mentalhealthai/mhai-backend/internal/http/middleware"
	"github.com/mentalhealthai/mhai-backend/internal/pkg/logger"
)

type RouterConfig struct {
	Log *logger.Logger

	AuthMiddleware *httpMW.AuthMiddleware

	AuthHandler      *httpH.AuthHandler
	UserHandler      *httpH.UserHandler
	ProfileHandler   *httpH.ProfileHandler
	DiaryHandler     *httpH.DiaryHandler
	AnalyticsHandler *httpH.AnalyticsHandler
	JobHandler       *httpH.JobHandler
	RealtimeHandler  *httpH.RealtimeHandler
	HealthHandler    *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.Log != nil {
		r.Use(httpMW.RequestLogger(cfg.Log))
	}
	r.Use(httpMW.CORS())
	r.Use(otelgin.Middleware("mhai-backend"))

	if cfg.HealthHandler != nil {
		r.GET("/healthz", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")
	{
		if cfg.AuthHandler != nil {
			api.POST("/register", cfg.AuthHandler.Register)
			api.POST("/login", cfg.AuthHandler.Login)
			api.POST("/refresh", cfg.AuthHandler.Refresh)
		}
	}

	protected := api.Group("/")
	{
		if cfg.AuthMiddleware != nil {
			protected.Use(cfg.AuthMiddleware.RequireAuth())
		}

		if cfg.AuthHandler != nil {
			protected.POST("/logout", cfg.AuthHandler.Logout)
		}

		if cfg.UserHandler != nil {
			protected.GET("/me", cfg.UserHandler.GetMe)
		}

		if cfg.ProfileHandler != nil {
			protected.GET("/profile", cfg.ProfileHandler.GetUserProfile)
			protected.PATCH("/profile", cfg.ProfileHandler.PatchUserProfile)
			protected.PATCH("/profile/general", cfg.ProfileHandler.PatchUserGeneral)
			protected.PATCH("/profile/interests", cfg.ProfileHandler.PatchUserInterests)
			protected.PATCH("/profile/emotions", cfg.ProfileHandler.PatchUserEmotions)
			protected.PATCH("/profile/bio", cfg.ProfileHandler.PatchUserBiography)

			protected.GET("/ai-profile", cfg.ProfileHandler.GetAIProfile)
			protected.PATCH("/ai-profile", cfg.ProfileHandler.PatchAIProfile)
			protected.PATCH("/ai-profile/general", cfg.ProfileHandler.PatchAIGeneral)
			protected.PATCH("/ai-profile/interests", cfg.ProfileHandler.PatchAIInterests)
			protected.PATCH("/ai-profile/emotions", cfg.ProfileHandler.PatchAIEmotions)
			protected.PATCH("/ai-profile/bio", cfg.ProfileHandler.PatchAIBiography)

			protected.GET("/profile/events", cfg.ProfileHandler.ListCriticalEvents)
			protected.POST("/profile/events", cfg.ProfileHandler.CreateCriticalEvent)
			protected.GET("/profile/events/:id", cfg.ProfileHandler.GetCriticalEvent)
			protected.PATCH("/profile/events/:id", cfg.ProfileHandler.PatchCriticalEvent)
			protected.DELETE("/profile/events/:id", cfg.ProfileHandler.DeleteCriticalEvent)
		}

		if cfg.DiaryHandler != nil {
			protected.POST("/diary", cfg.DiaryHandler.CreateTurn)
			protected.GET("/diary", cfg.DiaryHandler.ListTurns)
			protected.GET("/diary/:id", cfg.DiaryHandler.GetTurn)
			protected.GET("/diary/:id/scores/:category", cfg.DiaryHandler.GetScore)
			protected.PATCH("/diary/:id/scores/:category", cfg.DiaryHandler.PatchScore)
		}

		if cfg.AnalyticsHandler != nil {
			protected.GET("/analytics/summary", cfg.AnalyticsHandler.Summary)
			protected.GET("/analytics/:category/frequency", cfg.AnalyticsHandler.Frequency)
			protected.GET("/analytics/:category/series", cfg.AnalyticsHandler.Series)
		}

		if cfg.JobHandler != nil {
			protected.GET("/jobs/:id", cfg.JobHandler.GetJob)
			protected.GET("/jobs/:id/children", cfg.JobHandler.ListChildren)
			protected.GET("/jobs/:id/events", cfg.JobHandler.ListEvents)
		}

		if cfg.RealtimeHandler != nil {
			protected.GET("/events", cfg.RealtimeHandler.Stream)
		}
	}

	return r
}
