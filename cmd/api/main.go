package main

import (
	"log"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"otomart/internal/adapter/api"
	"otomart/internal/adapter/api/handler"
	apimiddleware "otomart/internal/adapter/api/middleware"
	"otomart/internal/adapter/api/router"
	"otomart/internal/adapter/repository"
	"otomart/internal/infrastructure/ratelimit"
	"otomart/internal/infrastructure/websocket"
	"otomart/internal/usecase"
	"otomart/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := repository.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Conn.Close()

	if err := db.AutoMigrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	userRepo := repository.NewPostgresUserRepository(db)
	vehicleRepo := repository.NewPostgresVehicleRepository(db)
	orderRepo := repository.NewPostgresOrderRepository(db)
	convRepo := repository.NewPostgresConversationRepository(db)
	messageRepo := repository.NewPostgresMessageRepository(db)
	receiptRepo := repository.NewPostgresReadReceiptRepository(db)
	linkRepo := repository.NewPostgresOrderLinkRepository(db)

	rateLimiter := ratelimit.NewRateLimiter()
	rateLimiter.StartCleanupRoutine()

	hub := websocket.NewHub(cfg.TypingTTL, cfg.WSSendBuffer)

	convUseCase := usecase.NewConversationUseCase(convRepo, userRepo, receiptRepo, rateLimiter)
	messageUseCase := usecase.NewMessageUseCase(convUseCase, convRepo, messageRepo, userRepo, hub, rateLimiter, cfg.ReopenOnSend)
	receiptUseCase := usecase.NewReceiptUseCase(convUseCase, receiptRepo, hub)
	orderLinkUseCase := usecase.NewOrderLinkUseCase(orderRepo, vehicleRepo, linkRepo, convUseCase, messageUseCase)

	// Inbound socket acks route back through the use cases.
	hub.Bind(usecase.NewHubEvents(convRepo, messageUseCase, receiptUseCase))

	e := echo.New()

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(apimiddleware.NewIPRateLimiter(120, time.Minute).Middleware())

	e.Validator = api.NewValidator()

	authMiddleware := apimiddleware.NewAuthMiddleware(cfg.JWTSecret)

	router.Setup(e, router.Handlers{
		Chat:      handler.NewChatHandler(convUseCase, messageUseCase, receiptUseCase, cfg.MessagePageSz),
		Order:     handler.NewOrderHandler(orderLinkUseCase),
		WebSocket: handler.NewWebSocketHandler(hub),
		Health:    handler.NewHealthHandler(db),
	}, authMiddleware)

	log.Printf("Starting server on port %s...", cfg.ServerPort)
	if err := e.Start(":" + cfg.ServerPort); err != nil {
		log.Fatalf("Server stopped: %v", err)
	}
}
