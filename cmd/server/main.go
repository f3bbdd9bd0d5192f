package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/schedulesync/backend/internal/config"
	"github.com/schedulesync/backend/internal/database"
	"github.com/schedulesync/backend/internal/handlers"
	"github.com/schedulesync/backend/internal/middleware"
	"github.com/schedulesync/backend/internal/services"
	"github.com/schedulesync/backend/pkg/logger"
	"github.com/schedulesync/backend/pkg/utils"
)

func main() {
	logger.Init()

	cfg := config.Load()
	utils.ConfigureJWT(cfg.JWT.Secret, cfg.JWT.AccessMinutes, cfg.JWT.RefreshHours)

	db, err := database.Connect(cfg.DB)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	if err := database.SeedSuperuser(db, cfg.Superuser); err != nil {
		log.Fatalf("superuser seeding failed: %v", err)
	}

	googleVerifier := services.NewGoogleVerifier(cfg.Google)

	authHandler := handlers.NewAuthHandler(db, cfg, googleVerifier)
	groupsHandler := handlers.NewGroupsHandler(db)
	authMiddleware := middleware.NewAuthMiddleware(db)

	app := fiber.New()
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.CORS())
	app.Use(middleware.RequestLogger())
	app.Use(middleware.SecurityLogger())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	authRoutes := api.Group("/auth")
	authRoutes.Post("/google", authHandler.GoogleAuth)
	authRoutes.Post("/refresh", authHandler.Refresh)
	authRoutes.Get("/google/redirect", authHandler.GoogleLoginRedirect)
	authRoutes.Get("/me", authMiddleware.RequireAuth, authHandler.Me)

	api.Post("/groups/assign-admin", authMiddleware.RequireAuth, groupsHandler.AssignAdmin)

	groupRoutes := api.Group("/groups")
	groupRoutes.Get("/", authMiddleware.RequireAuth, groupsHandler.List)
	groupRoutes.Post("/", authMiddleware.RequireAuth, groupsHandler.Create)
	groupRoutes.Get("/:slug", authMiddleware.OptionalAuth, groupsHandler.Get)
	groupRoutes.Patch("/:slug", authMiddleware.RequireAuth, groupsHandler.Update)
	groupRoutes.Delete("/:slug", authMiddleware.RequireAuth, middleware.StaffOnly, groupsHandler.Deactivate)
	groupRoutes.Post("/:slug/join", authMiddleware.RequireAuth, groupsHandler.Join)
	groupRoutes.Delete("/:slug/leave", authMiddleware.RequireAuth, groupsHandler.Leave)
	groupRoutes.Delete("/:slug/remove/:memberId", authMiddleware.RequireAuth, groupsHandler.RemoveMember)

	listenAddr := fmt.Sprintf(":%s", cfg.Server.Port)

	logger.Info("server_starting", map[string]interface{}{
		"port":    cfg.Server.Port,
		"address": listenAddr,
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
