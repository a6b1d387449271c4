// Package router собирает HTTP-маршруты приложения.
package router

import (
	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/influmarket-backend/internal/config"
	"github.com/ignatzorin/influmarket-backend/internal/http/handlers"
	"github.com/ignatzorin/influmarket-backend/internal/http/middleware"
	"github.com/ignatzorin/influmarket-backend/internal/service"
)

// SetupRouter настраивает gin-движок со всеми маршрутами и middleware.
func SetupRouter(
	cfg *config.Config,
	authHandler *handlers.AuthHandler,
	profileHandler *handlers.ProfileHandler,
	adminHandler *handlers.AdminHandler,
	orderHandler *handlers.OrderHandler,
	conversationHandler *handlers.ConversationHandler,
	mediaHandler *handlers.MediaHandler,
	notificationHandler *handlers.NotificationHandler,
	statsHandler *handlers.StatsHandler,
	wsHandler *handlers.WSHandler,
	healthHandler *handlers.HealthHandler,
	seedHandler *handlers.SeedHandler,
	tokenManager *service.TokenManager,
) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", healthHandler.Health)

	api := r.Group("/api")

	if seedHandler != nil && cfg.Env == "development" {
		api.POST("/seed", seedHandler.Seed)
	}

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod))
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/refresh", authHandler.Refresh)
	}

	// Публичные маршруты
	api.GET("/ws", wsHandler.Handle)
	api.GET("/influencers", profileHandler.ListInfluencers)
	api.GET("/influencers/:id", middleware.UUIDValidator("id"), profileHandler.GetInfluencer)
	api.GET("/businesses/:id", middleware.UUIDValidator("id"), profileHandler.GetBusiness)

	// Защищённые маршруты
	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(tokenManager))
	{
		protected.GET("/auth/me", authHandler.Me)
		protected.POST("/auth/logout", authHandler.Logout)

		protected.PATCH("/profile", profileHandler.Update)

		protected.POST("/orders", orderHandler.Create)
		protected.GET("/orders", orderHandler.List)
		protected.GET("/orders/:id", middleware.UUIDValidator("id"), orderHandler.Get)
		protected.PATCH("/orders/:id/status", middleware.UUIDValidator("id"), orderHandler.UpdateStatus)

		protected.GET("/orders/:id/messages", middleware.UUIDValidator("id"), conversationHandler.ListMessages)
		protected.POST("/orders/:id/messages", middleware.UUIDValidator("id"), conversationHandler.SendMessage)
		protected.GET("/conversations", conversationHandler.ListAll)

		protected.POST("/media/avatar", mediaHandler.UploadAvatar)

		protected.GET("/notifications", notificationHandler.List)
		protected.GET("/notifications/unread/count", notificationHandler.UnreadCount)
		protected.PUT("/notifications/:id/read", middleware.UUIDValidator("id"), notificationHandler.MarkAsRead)
		protected.PUT("/notifications/read-all", notificationHandler.MarkAllAsRead)

		protected.GET("/stats", statsHandler.Get)

		admin := protected.Group("/admin")
		admin.Use(middleware.RequireRole("admin"))
		{
			admin.GET("/users", adminHandler.ListUsers)
			admin.POST("/users/:id/suspend", middleware.UUIDValidator("id"), adminHandler.Suspend)
			admin.POST("/users/:id/reactivate", middleware.UUIDValidator("id"), adminHandler.Reactivate)
		}
	}

	return r
}
