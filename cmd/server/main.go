package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/influmarket-backend/internal/chat"
	"github.com/ignatzorin/influmarket-backend/internal/config"
	"github.com/ignatzorin/influmarket-backend/internal/db"
	"github.com/ignatzorin/influmarket-backend/internal/feed"
	"github.com/ignatzorin/influmarket-backend/internal/goroutine"
	httpHandlers "github.com/ignatzorin/influmarket-backend/internal/http/handlers"
	httpRouter "github.com/ignatzorin/influmarket-backend/internal/http/router"
	"github.com/ignatzorin/influmarket-backend/internal/logger"
	"github.com/ignatzorin/influmarket-backend/internal/repository"
	"github.com/ignatzorin/influmarket-backend/internal/service"
	"github.com/ignatzorin/influmarket-backend/internal/storage"
	"github.com/ignatzorin/influmarket-backend/internal/ws"
)

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	// Инициализация логгера
	if cfg.Env == "development" {
		logger.Init("debug")
		logger.SetTextFormatter()
	} else {
		logger.Init("info")
	}

	// Подключение к базе и миграции.
	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("main: ошибка подключения к базе: %v", err)
	}
	defer safeClose(dbConn)

	if err := db.RunMigrations(ctx, dbConn, cfg.MigrationsPath); err != nil {
		log.Fatalf("main: ошибка миграций: %v", err)
	}

	// Лента изменений: репозитории публикуют, чаты и ws-мост подписываются.
	changeFeed := feed.New(cfg.FeedBufferSize)

	// Вспомогательные сервисы.
	tokenManager := service.NewTokenManager(cfg.JWTSecret, cfg.RefreshSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)

	mediaStorage, err := storage.NewMediaStorage(ctx, cfg)
	if err != nil {
		log.Fatalf("main: не удалось подготовить хранилище медиафайлов: %v", err)
	}

	// Репозитории.
	userRepo := repository.NewUserRepository(dbConn, changeFeed)
	orderRepo := repository.NewOrderRepository(dbConn, changeFeed)
	messageRepo := repository.NewMessageRepository(dbConn, changeFeed)
	notificationRepo := repository.NewNotificationRepository(dbConn)

	// Сервисы.
	authService := service.NewAuthService(userRepo, tokenManager, cfg.SeedAdminEmail)
	profileService := service.NewProfileService(userRepo)
	orderService := service.NewOrderService(orderRepo, messageRepo, userRepo, cfg.CurrencySymbol)
	notificationService := service.NewNotificationService(notificationRepo)
	seedService := service.NewSeedService(userRepo, orderRepo, messageRepo)

	// Синхронизаторы чатов.
	chatManager := chat.NewManager(messageRepo, orderRepo, changeFeed)
	defer chatManager.CloseAll()

	// Вебсокеты.
	hub := ws.NewHub(ctx)
	hub.SetNotificationSaver(ws.NewNotificationServiceAdapter(notificationService))
	goroutine.SafeGo(hub.Run)

	bridge := ws.NewFeedBridge(hub, changeFeed, orderRepo)
	goroutine.SafeGoWithContext(ctx, bridge.Run)

	// HTTP хэндлеры.
	authHandler := httpHandlers.NewAuthHandler(authService)
	profileHandler := httpHandlers.NewProfileHandler(profileService)
	adminHandler := httpHandlers.NewAdminHandler(profileService)
	orderHandler := httpHandlers.NewOrderHandler(orderService, profileService)
	conversationHandler := httpHandlers.NewConversationHandler(orderService, profileService, chatManager)
	mediaHandler := httpHandlers.NewMediaHandler(mediaStorage, profileService)
	notificationHandler := httpHandlers.NewNotificationHandler(notificationService)
	statsHandler := httpHandlers.NewStatsHandler(orderService)
	wsHandler := httpHandlers.NewWSHandler(hub, tokenManager)
	healthHandler := httpHandlers.NewHealthHandler(dbConn)
	seedHandler := httpHandlers.NewSeedHandler(seedService)

	// Роутер.
	engine := httpRouter.SetupRouter(
		cfg,
		authHandler,
		profileHandler,
		adminHandler,
		orderHandler,
		conversationHandler,
		mediaHandler,
		notificationHandler,
		statsHandler,
		wsHandler,
		healthHandler,
		seedHandler,
		tokenManager,
	)

	server := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: engine,
	}

	// Завершаем сервер при получении сигнала.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("main: ошибка остановки http сервера: %v", err)
		}
	}()

	log.Printf("main: HTTP сервер запущен на порту %s", cfg.HTTPPort)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("main: сервер завершился с ошибкой: %v", err)
	}
}

// safeClose закрывает соединение с базой.
func safeClose(db *sqlx.DB) {
	if err := db.Close(); err != nil {
		log.Printf("main: ошибка закрытия базы: %v", err)
	}
}
