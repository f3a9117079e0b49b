// Package main is the entry point for the application.
// It initializes all dependencies, sets up the HTTP server,
// and starts the application.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"voucly/internal/config"
	"voucly/internal/ledger"
	applogger "voucly/internal/logger"
	"voucly/internal/repositories"
	"voucly/internal/routes"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"go.uber.org/zap"
)

func main() {
	// Load environment variables
	config.LoadEnv()

	zlog, err := applogger.New(applogger.Config{
		Level:  config.GetEnv("LOG_LEVEL", "info"),
		Format: config.GetEnv("LOG_FORMAT", "json"),
	})
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zlog.Sync()

	// Initialize databases (PostgreSQL + Redis)
	if err := repositories.InitDB(); err != nil {
		zlog.Fatal("failed to initialize database", zap.Error(err))
	}

	sqlDB, err := repositories.DB.DB()
	if err != nil {
		zlog.Fatal("failed to get database instance", zap.Error(err))
	}
	if err := sqlDB.Ping(); err != nil {
		zlog.Fatal("failed to ping database", zap.Error(err))
	}
	zlog.Info("connected to database")

	defer func() {
		if err := sqlDB.Close(); err != nil {
			zlog.Warn("failed to close database connection", zap.Error(err))
		}
		if repositories.CacheService != nil {
			if err := repositories.CacheService.Close(); err != nil {
				zlog.Warn("failed to close redis connection", zap.Error(err))
			}
		}
	}()

	// Ledger gateway. LEDGER_ENABLED=false keeps local development off the
	// Fabric network.
	ledgerClient := ledger.NewNoopClient()
	if config.GetEnv("LEDGER_ENABLED", "false") == "true" {
		ledgerClient, err = ledger.NewClient(ledger.Config{
			ConnectionProfile: config.GetEnv("FABRIC_CONNECTION_PROFILE", "connection.yaml"),
			Channel:           config.GetEnv("FABRIC_CHANNEL", "voucherchannel"),
			Chaincode:         config.GetEnv("FABRIC_CHAINCODE", "voucher"),
			MSPID:             config.GetEnv("FABRIC_MSP_ID", "Org1MSP"),
			CertPath:          config.GetEnv("FABRIC_CERT_PATH", ""),
			KeyPath:           config.GetEnv("FABRIC_KEY_PATH", ""),
			WalletDir:         config.GetEnv("FABRIC_WALLET_DIR", "wallet"),
			Identity:          config.GetEnv("FABRIC_IDENTITY", "appUser"),
		})
		if err != nil {
			zlog.Fatal("failed to connect to ledger gateway", zap.Error(err))
		}
	}
	defer ledgerClient.Close()

	// Create Fiber app
	app := fiber.New()

	// CORS middleware
	app.Use(cors.New(cors.Config{
		AllowOrigins:     config.GetEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173"),
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET,POST,HEAD,PUT,DELETE,PATCH",
		AllowCredentials: true,
	}))

	// Request logging
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	app.Use("/api/login", limiter.New(limiter.Config{
		Max:        5,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(429).JSON(fiber.Map{
				"error": "Too many requests. Please try again later.",
			})
		},
	}))

	// Routes; the returned sweeper runs the expiry loop.
	sweep := routes.SetupRoutes(app, ledgerClient, zlog)
	sweep.Start()

	// Graceful shutdown
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig

		zlog.Info("shutting down")
		sweep.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			zlog.Warn("forced shutdown", zap.Error(err))
		}
	}()

	// Start server
	if err := app.Listen(":" + config.GetEnv("PORT", "3000")); err != nil {
		zlog.Fatal("server stopped", zap.Error(err))
	}
}
