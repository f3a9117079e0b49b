// Package routes defines the API routing configuration.
// It wires repositories, services and handlers together and groups routes
// by resource with their middleware requirements.
package routes

import (
	"voucly/internal/config"
	"voucly/internal/handlers"
	"voucly/internal/ledger"
	"voucly/internal/middleware"
	"voucly/internal/models"
	"voucly/internal/repositories"
	"voucly/internal/services/approval"
	"voucly/internal/services/auth"
	"voucly/internal/services/executor"
	"voucly/internal/services/qr"
	"voucly/internal/services/sweeper"
	"voucly/internal/services/transferflow"
	"voucly/internal/services/voucher"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// SetupRoutes configures all application routes. It returns the sweeper so
// the caller controls its lifecycle.
func SetupRoutes(app *fiber.App, ledgerClient ledger.Client, logger *zap.Logger) *sweeper.Sweeper {
	// Repositories
	operationRepo := repositories.NewOperationRepository(repositories.DB)
	transferRepo := repositories.NewTransferRepository(repositories.DB)
	voucherRepo := repositories.NewVoucherRepository(repositories.DB)
	userRepo := repositories.NewUserRepository(repositories.DB)

	// Services
	authService := auth.NewService(userRepo)
	dispatcher := executor.NewDispatcher(ledgerClient, logger)

	approvalService := approval.NewService(operationRepo, dispatcher, repositories.CacheService, approval.Config{
		DefaultRequiredSignatures: config.GetIntEnv("DEFAULT_REQUIRED_SIGNATURES", 0),
	}, logger)

	transferService := transferflow.NewService(transferRepo, voucherRepo, dispatcher, repositories.CacheService, transferflow.Config{
		ApprovalThreshold: config.GetFloatEnv("TRANSFER_APPROVAL_THRESHOLD", 0),
	}, logger)

	labelService := qr.NewService(config.GetEnv("QR_LABEL_SECRET", "voucly-label-secret"))
	voucherService := voucher.NewService(voucherRepo, labelService, repositories.CacheService, logger)

	sweep := sweeper.New(approvalService, transferService, sweeper.Config{
		Interval:    config.GetDurationEnv("SWEEP_INTERVAL", 0),
		TransferTTL: config.GetDurationEnv("TRANSFER_APPROVAL_TTL", 0),
	}, logger)

	// Handlers
	authHandler := handlers.NewAuthHandler(authService)
	operationHandler := handlers.NewOperationHandler(approvalService)
	transferHandler := handlers.NewTransferHandler(transferService)
	voucherHandler := handlers.NewVoucherHandler(voucherService)
	analyticsHandler := handlers.NewAnalyticsHandler(approvalService)
	maintenanceHandler := handlers.NewMaintenanceHandler(sweep)
	healthHandler := handlers.NewHealthHandler()

	api := app.Group("/api")

	// Public endpoints
	api.Post("/login", authHandler.Login)
	api.Post("/refresh", authHandler.Refresh)
	api.Get("/health", healthHandler.Check)

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "Welcome to Voucly API",
			"version": "1.0.0",
			"docs":    "/api",
		})
	})

	// Protected routes
	authMiddleware := middleware.NewAuthMiddleware(authService)
	protected := api.Use(authMiddleware.Handler)

	protected.Post("/logout", authHandler.Logout)

	setupOperationRoutes(protected, operationHandler)
	setupTransferRoutes(protected, transferHandler)
	setupVoucherRoutes(protected, voucherHandler)

	// Admin-only surfaces
	admin := protected.Group("", middleware.AdminAuthMiddleware)
	admin.Get("/analytics/operations", analyticsHandler.GetOperationStats)
	admin.Post("/maintenance/expire", maintenanceHandler.RunExpiry)

	return sweep
}

func setupOperationRoutes(router fiber.Router, h *handlers.OperationHandler) {
	ops := router.Group("/operations", middleware.RequireOperationManager)

	ops.Post("/", middleware.HasPermission(models.PermissionOperationCreate), h.CreateOperation)
	ops.Get("/", middleware.HasPermission(models.PermissionOperationRead), h.ListOperations)
	ops.Get("/pending", middleware.HasPermission(models.PermissionOperationRead), h.GetPendingOperations)
	ops.Get("/:id", middleware.HasPermission(models.PermissionOperationRead), h.GetOperation)
	ops.Post("/:id/sign", middleware.HasPermission(models.PermissionOperationSign), h.SignOperation)
	ops.Post("/:id/reject", middleware.HasPermission(models.PermissionOperationSign), h.RejectOperation)
	ops.Post("/:id/execute", middleware.HasPermission(models.PermissionOperationExecute), h.ExecuteOperation)
}

func setupTransferRoutes(router fiber.Router, h *handlers.TransferHandler) {
	transfers := router.Group("/transfers")

	transfers.Post("/", middleware.HasPermission(models.PermissionTransferCreate), h.CreateTransfer)
	transfers.Get("/history/:voucherId", middleware.HasPermission(models.PermissionTransferRead), h.GetTransferHistory)
	transfers.Get("/:id", middleware.HasPermission(models.PermissionTransferRead), h.GetTransfer)
	transfers.Post("/:id/approve", middleware.HasPermission(models.PermissionTransferReview), h.ApproveTransfer)
	transfers.Post("/:id/reject", middleware.HasPermission(models.PermissionTransferReview), h.RejectTransfer)
}

func setupVoucherRoutes(router fiber.Router, h *handlers.VoucherHandler) {
	vouchers := router.Group("/vouchers")

	vouchers.Post("/", middleware.HasPermission(models.PermissionVoucherWrite), h.IssueVoucher)
	vouchers.Post("/verify-label", middleware.HasPermission(models.PermissionVoucherRead), h.VerifyLabel)
	vouchers.Get("/merchant/:merchantId", middleware.HasPermission(models.PermissionVoucherRead), h.ListMerchantVouchers)
	vouchers.Get("/:code", middleware.HasPermission(models.PermissionVoucherRead), h.GetVoucher)
}
