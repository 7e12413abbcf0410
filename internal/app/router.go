package app

import (
	"ai_tutor_backend/docs"
	"ai_tutor_backend/internal/config"
	"ai_tutor_backend/internal/middleware"
	"ai_tutor_backend/pkg/monitoring"
	"ai_tutor_backend/pkg/security"
	"ai_tutor_backend/pkg/tracing"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())
	router.Use(security.RateLimiter(cfg.RateLimit.MaxRequests, time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute))

	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

func (a *App) registerRoutes(router *gin.Engine, c *controllers, st *stores, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 公共路由
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/auth/register", c.auth.Register)
		public.POST("/auth/login", c.auth.Login)
	}

	// 授权路由
	authorized := router.Group("/api")
	authorized.Use(middleware.AuthMiddleware(cfg), middleware.ActivityMiddleware(st.activity))
	{
		authorized.GET("/users/me", c.user.GetProfile)
		authorized.PUT("/users/me", c.user.UpdateProfile)

		authorized.POST("/chat/message", c.chat.SendMessage)
		authorized.POST("/chat/sessions", c.chat.StartSession)
		authorized.GET("/chat/sessions", c.chat.ListSessions)
		authorized.POST("/chat/sessions/:id/end", c.chat.EndSession)

		authorized.POST("/progress", c.progress.RecordProgress)
		authorized.GET("/progress", c.progress.ListProgress)
		authorized.GET("/progress/analytics", c.progress.GetAnalytics)

		authorized.GET("/reports/summary", c.report.GetSummary)

		authorized.POST("/reminders", c.reminder.CreateReminder)
		authorized.GET("/reminders", c.reminder.ListReminders)
		authorized.PUT("/reminders/:id", c.reminder.UpdateReminder)
		authorized.PATCH("/reminders/:id/complete", c.reminder.CompleteReminder)
		authorized.DELETE("/reminders/:id", c.reminder.DeleteReminder)
	}
}
