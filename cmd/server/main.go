package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/storafe/backend/internal/config"
	"github.com/storafe/backend/internal/database"
	"github.com/storafe/backend/internal/handlers"
	"github.com/storafe/backend/internal/middleware"
	"github.com/storafe/backend/internal/services"
	"github.com/storafe/backend/internal/storage"
	"github.com/storafe/backend/pkg/logger"
	"github.com/storafe/backend/pkg/utils"
)

func main() {
	logger.Init()

	cfg := config.Load()
	utils.ConfigureJWT(cfg.JWT.Secret, cfg.JWT.ExpirationHours)

	db, err := database.Connect(cfg.DB)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}

	backend, err := newBackend(cfg.Storage)
	if err != nil {
		log.Fatalf("storage initialization failed: %v", err)
	}

	ledger := services.NewQuotaLedger()
	folderService := services.NewFolderService(db, ledger)
	bulkService := services.NewBulkService(db, backend, ledger, folderService)
	permissionService := services.NewPermissionService(db)
	uploadService, err := services.NewUploadService(db, backend, ledger, cfg.Storage.TempPath)
	if err != nil {
		log.Fatalf("upload staging initialization failed: %v", err)
	}

	authHandler := handlers.NewAuthHandler(db)
	browseHandler := handlers.NewBrowseHandler(db, folderService)
	foldersHandler := handlers.NewFoldersHandler(db, folderService, backend)
	filesHandler := handlers.NewFilesHandler(db, backend, ledger, permissionService)
	uploadsHandler := handlers.NewUploadsHandler(uploadService)
	bulkHandler := handlers.NewBulkHandler(bulkService)
	publicHandler := handlers.NewPublicHandler(db, backend)

	authMiddleware := middleware.NewAuthMiddleware(db)

	app := fiber.New(fiber.Config{BodyLimit: 100 * 1024 * 1024})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.CORS())
	app.Use(middleware.RequestLogger())
	app.Use(middleware.SecurityLogger())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	authRoutes := api.Group("/auth")
	authRoutes.Post("/register", authHandler.Register)
	authRoutes.Post("/token", authHandler.Token)
	authRoutes.Get("/me", authMiddleware.RequireAuth, authHandler.Me)

	api.Get("/browse", authMiddleware.RequireAuth, browseHandler.Browse)

	folderRoutes := api.Group("/folders", authMiddleware.RequireAuth)
	folderRoutes.Post("/", foldersHandler.Create)
	folderRoutes.Get("/:id", foldersHandler.Get)
	folderRoutes.Put("/:id/rename", foldersHandler.Rename)
	folderRoutes.Put("/:id/move", foldersHandler.Move)
	folderRoutes.Delete("/:id", foldersHandler.Delete)

	fileRoutes := api.Group("/files", authMiddleware.RequireAuth)
	fileRoutes.Post("/upload", filesHandler.Upload)
	fileRoutes.Post("/upload/initiate", uploadsHandler.Initiate)
	fileRoutes.Post("/upload/chunk", uploadsHandler.Chunk)
	fileRoutes.Post("/upload/complete", uploadsHandler.Complete)
	fileRoutes.Get("/:id/download", filesHandler.Download)
	fileRoutes.Get("/:id/info", filesHandler.Info)
	fileRoutes.Put("/:id/rename", filesHandler.Rename)
	fileRoutes.Put("/:id/move", filesHandler.Move)
	fileRoutes.Post("/:id/share", filesHandler.Share)
	fileRoutes.Put("/:id/visibility", filesHandler.Visibility)
	fileRoutes.Delete("/:id", filesHandler.Delete)

	bulkRoutes := api.Group("/bulk", authMiddleware.RequireAuth)
	bulkRoutes.Post("/delete", bulkHandler.Delete)
	bulkRoutes.Post("/move", bulkHandler.Move)
	bulkRoutes.Post("/copy", bulkHandler.Copy)

	api.Get("/public/files/:id", authMiddleware.OptionalAuth, publicHandler.Get)

	listenAddr := fmt.Sprintf(":%s", cfg.Server.Port)

	logger.Info("server_starting", map[string]interface{}{
		"port":         cfg.Server.Port,
		"address":      listenAddr,
		"storage_type": cfg.Storage.Type,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(listenAddr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Printf("shutting down server due to signal: %s", sig)
		shutdownDone := make(chan struct{})
		go func() {
			_ = app.Shutdown()
			close(shutdownDone)
		}()
		select {
		case <-shutdownDone:
		case <-time.After(10 * time.Second):
			log.Print("forced shutdown timeout reached")
		}
	case err := <-errCh:
		if err != nil {
			log.Fatalf("server error: %v", err)
		}
	}
}

// newBackend selects the physical storage implementation from config.
func newBackend(cfg config.StorageConfig) (storage.Backend, error) {
	switch cfg.Type {
	case "s3":
		backend, err := storage.NewS3Backend(cfg.S3)
		if err != nil {
			return nil, err
		}
		if err := backend.EnsureBucket(context.Background()); err != nil {
			return nil, fmt.Errorf("failed ensuring bucket: %w", err)
		}
		return backend, nil
	case "local":
		return storage.NewLocalBackend(cfg.LocalPath)
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}
