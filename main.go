package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/shopspring/decimal"
	"github.com/streadway/amqp"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"market/internal/apperr"
	"market/internal/config"
	"market/internal/events"
	"market/internal/handlers"
	"market/internal/logging"
	"market/internal/middleware"
	"market/internal/models"
	"market/internal/policy"
	"market/internal/repositories"
	"market/internal/services"
	"market/pkg/rabbitmq"
)

func main() {
	// --- Configuration ---
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	// --- Database ---
	db, err := repositories.OpenDB(cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	if err := repositories.Migrate(db); err != nil {
		logger.Fatal("failed to migrate database", zap.Error(err))
	}

	if cfg.SeedData {
		store := repositories.NewGORMStore(db)
		seedProducts(context.Background(), store.Products(), logger)
		if cfg.AdminPassword != "" {
			seedAdmin(context.Background(), store.Users(), cfg.AdminPassword, logger)
		}
	}

	// --- Messaging ---
	var publisher events.Publisher = events.NopPublisher{}
	if cfg.RabbitMQEnabled {
		mqClient, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL, Exchange: cfg.RabbitMQExchange}, logger)
		if err != nil {
			logger.Fatal("failed to initialize RabbitMQ client", zap.Error(err))
		}
		defer mqClient.Close()
		publisher = events.NewBrokerPublisher(mqClient)

		// Every domain event lands in the audit queue and is written to the log.
		audit := events.AuditHandler(logger.Named("audit"))
		err = mqClient.Consume(cfg.RabbitMQQueue, "#", func(msg amqp.Delivery) error {
			return audit(msg.Body)
		})
		if err != nil {
			logger.Error("failed to start audit consumer", zap.Error(err))
		}
	} else {
		logger.Info("messaging disabled, domain events are dropped")
	}

	app := NewApp(cfg, db, publisher, logger)

	// --- Start HTTP Server ---
	logger.Info("starting server", zap.String("port", cfg.AppPort))

	// Graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := app.Listen(cfg.AppPort); err != nil {
			logger.Fatal("server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	<-quit
	logger.Info("shutting down server")

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Error("error during fiber shutdown", zap.Error(err))
	}

	logger.Info("server gracefully stopped")
}

// NewApp wires repositories, services and handlers into a Fiber app.
func NewApp(cfg config.Config, db *gorm.DB, publisher events.Publisher, logger *zap.Logger) *fiber.App {
	// --- Initialize Repositories ---
	store := repositories.NewGORMStore(db)
	pol := policy.NewRoleBased()

	// --- Initialize Services ---
	authService := services.NewAuthService(store.Users(), cfg.JWTSecret, cfg.TokenTTL, logger)
	productService := services.NewProductService(store.Products(), pol, logger)
	cartService := services.NewCartService(store, pol, publisher, logger)
	orderService := services.NewOrderService(store, pol, publisher, logger)
	paymentService := services.NewPaymentService(store, pol, publisher, logger)
	shipmentService := services.NewShipmentService(store, pol, publisher, logger)
	favoriteService := services.NewFavoriteService(store, pol)

	// --- Initialize Fiber App ---
	app := fiber.New(fiber.Config{
		BodyLimit: 10 * 1024 * 1024,
	})

	// --- Middleware ---
	app.Use(requestid.New())
	app.Use(recover.New())
	app.Use(logging.RequestLogger(logger))

	// --- Health Check Endpoint ---
	app.Get("/health", func(c *fiber.Ctx) error {
		database := "connected"
		if err := pingDB(c.UserContext(), db); err != nil {
			logger.Warn("health check: database unreachable", zap.Error(err))
			database = "unreachable"
		}
		messaging := "disabled"
		if cfg.RabbitMQEnabled {
			messaging = "enabled"
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": database,
			"rabbitmq": messaging,
		})
	})

	// --- API Routes ---
	apiV1 := app.Group("/api/v1")

	// Authentication routes (public)
	handlers.NewAuthHandler(authService, logger).RegisterRoutes(apiV1)

	// Everything else requires a valid JWT.
	protected := apiV1.Group("", middleware.AuthRequired(authService, logger))
	handlers.NewProductHandler(productService, cartService, logger).RegisterRoutes(protected)
	handlers.NewCartHandler(cartService, logger).RegisterRoutes(protected)
	handlers.NewOrderHandler(orderService, logger).RegisterRoutes(protected)
	handlers.NewPaymentHandler(paymentService, cfg.UploadDir, logger).RegisterRoutes(protected)
	handlers.NewShipmentHandler(shipmentService, logger).RegisterRoutes(protected)
	handlers.NewFavoriteHandler(favoriteService, logger).RegisterRoutes(protected)

	return app
}

func pingDB(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return sqlDB.PingContext(ctx)
}

// seedProducts populates an empty catalog with some initial data.
func seedProducts(ctx context.Context, repo repositories.ProductRepository, logger *zap.Logger) {
	existing, err := repo.GetAll(ctx, models.ProductFilter{})
	if err != nil {
		logger.Error("failed to check catalog before seeding", zap.Error(err))
		return
	}
	if len(existing) > 0 {
		return
	}

	products := []models.Product{
		{Name: "Laptop", Description: "High performance laptop", Category: "electronics", Price: decimal.NewFromInt(1200), Stock: 10},
		{Name: "Keyboard", Description: "Mechanical keyboard", Category: "electronics", Price: decimal.NewFromInt(75), Stock: 25},
		{Name: "Mouse", Description: "Ergonomic wireless mouse", Category: "electronics", Price: decimal.NewFromInt(25), Stock: 50},
		{Name: "Gift Card", Description: "Digital gift card", Category: "gifts", Price: decimal.NewFromInt(50), Unlimited: true},
	}
	for i := range products {
		if err := repo.Create(ctx, &products[i]); err != nil {
			logger.Error("failed to seed product", zap.String("name", products[i].Name), zap.Error(err))
			continue
		}
		logger.Info("seeded product", zap.String("name", products[i].Name), zap.String("product_id", products[i].ID))
	}
}

// seedAdmin creates the "admin" account unless it already exists.
func seedAdmin(ctx context.Context, repo repositories.UserRepository, password string, logger *zap.Logger) {
	if _, err := repo.GetByUsername(ctx, "admin"); err == nil {
		return
	} else if !errors.Is(err, apperr.ErrNotFound) {
		logger.Error("failed to look up admin account", zap.Error(err))
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		logger.Error("failed to hash admin password", zap.Error(err))
		return
	}
	admin := models.User{
		Username: "admin",
		Email:    "admin@market.local",
		Password: string(hash),
		Role:     models.RoleAdmin,
	}
	if err := repo.Create(ctx, &admin); err != nil {
		logger.Error("failed to seed admin account", zap.Error(err))
		return
	}
	logger.Info("seeded admin account", zap.String("user_id", admin.ID))
}
