package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chat_service/internal/config"
	"chat_service/internal/handler"
	"chat_service/internal/middleware"
	"chat_service/internal/realtime"
	"chat_service/internal/repository"
	"chat_service/internal/service"
	"chat_service/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Инициализация логгера
	appLogger := logger.New(cfg.Log.Level)

	// Подключение к PostgreSQL
	dbPool, err := pgxpool.New(context.Background(), cfg.Database.DSN)
	if err != nil {
		appLogger.Fatal("Failed to connect to database", "error", err)
	}
	defer dbPool.Close()

	// Проверка подключения к БД
	if err := dbPool.Ping(context.Background()); err != nil {
		appLogger.Fatal("Failed to ping database", "error", err)
	}
	appLogger.Info("Database connection established")

	// Подключение к Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	// Проверка подключения к Redis
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		appLogger.Fatal("Failed to connect to Redis", "error", err)
	}
	appLogger.Info("Redis connection established")

	// Инициализация репозиториев
	repos := repository.NewRepositories(dbPool, rdb, appLogger)

	// Realtime-слой: hub раздаёт события подписчикам комнат,
	// registry отслеживает присутствие
	hub := realtime.NewHub(appLogger)
	presence := realtime.NewPresenceRegistry()

	// Инициализация сервисов
	services := service.NewServices(repos, hub, presence, cfg, appLogger)

	// Инициализация middleware
	authMiddleware := middleware.NewAuthMiddleware(services.Auth, appLogger)
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(services.RateLimit, appLogger)

	// Инициализация handlers
	handlers := handler.NewHandlers(services, hub, presence, cfg, appLogger)

	// Настройка роутера
	router := setupRouter(handlers, authMiddleware, rateLimitMiddleware, cfg)

	// Запуск HTTP сервера
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		appLogger.Info("Starting server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal("Failed to start server", "error", err)
		}
	}()

	// Ожидание сигнала для graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Fatal("Server forced to shutdown", "error", err)
	}

	appLogger.Info("Server exited")
}

func setupRouter(
	handlers *handler.Handlers,
	authMiddleware *middleware.AuthMiddleware,
	rateLimitMiddleware *middleware.RateLimitMiddleware,
	cfg *config.Config,
) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.ErrorHandler())

	// Health check
	router.GET("/health", handlers.Health.Check)
	router.GET("/server-info", handlers.Health.ServerInfo)

	// API v1
	v1 := router.Group("/api/v1")
	{
		// Публичные endpoints
		public := v1.Group("/auth")
		{
			public.POST("/register", rateLimitMiddleware.Limit(), handlers.Auth.Register)
			public.POST("/login", rateLimitMiddleware.Limit(), handlers.Auth.Login)
			public.POST("/refresh", handlers.Auth.RefreshToken)
			public.POST("/logout", handlers.Auth.Logout)
		}

		// Защищенные endpoints
		protected := v1.Group("")
		protected.Use(authMiddleware.RequireAuth())
		{
			rooms := protected.Group("/rooms")
			{
				rooms.POST("", handlers.Room.Create)
				rooms.GET("", handlers.Room.List)
				rooms.POST("/direct", handlers.Room.GetOrCreateDirect)
				rooms.GET("/:id", handlers.Room.GetByID)
				rooms.DELETE("/:id", handlers.Room.Delete)
				rooms.POST("/:id/leave", handlers.Room.Leave)
				rooms.PUT("/:id/settings", handlers.Room.UpdateSettings)

				rooms.GET("/:id/participants", handlers.Room.GetParticipants)
				rooms.POST("/:id/participants", handlers.Room.AddParticipant)
				rooms.DELETE("/:id/participants/:userId", handlers.Room.RemoveParticipant)
				rooms.PUT("/:id/participants/:userId/role", handlers.Room.UpdateRole)

				rooms.GET("/:id/messages", handlers.Chat.GetMessages)
				rooms.POST("/:id/messages", handlers.Chat.SendMessage)
				rooms.GET("/:id/messages/search", handlers.Chat.SearchMessages)
				rooms.GET("/:id/messages/pinned", handlers.Chat.GetPinnedMessages)
				rooms.POST("/:id/read", handlers.Chat.MarkRoomAsRead)
			}

			messages := protected.Group("/messages")
			{
				messages.PUT("/:messageId", handlers.Chat.EditMessage)
				messages.DELETE("/:messageId", handlers.Chat.DeleteMessage)
				messages.POST("/:messageId/pin", handlers.Chat.PinMessage)
				messages.DELETE("/:messageId/pin", handlers.Chat.UnpinMessage)
				messages.GET("/:messageId/reactions", handlers.Chat.GetReactions)
				messages.POST("/:messageId/reactions", handlers.Chat.AddReaction)
				messages.DELETE("/:messageId/reactions", handlers.Chat.RemoveReaction)
				messages.POST("/:messageId/read", handlers.Chat.MarkMessageAsRead)
			}
		}
	}

	// WebSocket endpoint для чата; токен передаётся query-параметром
	router.GET("/ws/chat", handlers.WebSocket.HandleChat)

	return router
}
