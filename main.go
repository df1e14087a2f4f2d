package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"

	"corrflow/internal/api"
	"corrflow/internal/audit"
	"corrflow/internal/config"
	"corrflow/internal/database"
	"corrflow/internal/delegation"
	"corrflow/internal/distribution"
	"corrflow/internal/logger"
	"corrflow/internal/middleware"
	"corrflow/internal/organisation"
	"corrflow/internal/repository"
	"corrflow/internal/signature"
	"corrflow/internal/telemetry"
	"corrflow/internal/validator"
	"corrflow/internal/workflow"
)

func main() {
	cfg := config.NewConfig()
	log := logger.New(cfg)

	tel, err := telemetry.New(cfg.Telemetry)
	if err != nil {
		log.Error("Failed to initialize telemetry", "error", err)
		os.Exit(1)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(ctx); err != nil {
			log.Error("Failed to shutdown telemetry", "error", err)
		}
	}()

	db, err := database.NewPostgresDatabase(cfg.Database)
	if err != nil {
		log.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Failed to close database connection", "error", err)
		}
	}()

	repo := repository.NewDatabaseRepository(db)

	var directory organisation.Directory = repo
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		directory = organisation.NewCachedDirectory(repo, client, cfg.Redis.DirectoryTTL, log)
		log.Info("Org directory cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.DirectoryTTL)
	}

	auditor := audit.NewAuditor(log, repo)
	signatures := signature.NewService(repo, directory)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := signatures.SeedDefaultTemplates(ctx); err != nil {
		cancel()
		log.Error("Failed to seed signature templates", "error", err)
		os.Exit(1)
	}
	cancel()

	delegations := delegation.NewRegistry(repo, directory, auditor)
	distributions := distribution.NewLedger(repo, directory, auditor, cfg.Workflow.ManagementRank)
	engine := workflow.NewEngine(
		repo,
		directory,
		workflow.NewResolver(directory),
		workflow.NewLedger(repo),
		signatures,
		delegations,
		workflow.NewReferenceGenerator(cfg.Workflow.OrgCode),
		auditor,
		log,
		cfg.Workflow,
	)

	handler := api.NewHandler(engine, delegations, distributions, signatures, repo, validator.New(), tel, log)

	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	})
	app.Use(recover.New())
	app.Use(middleware.Logger())
	app.Use(telemetry.FiberMiddleware(cfg.Telemetry.ServiceName))
	api.RegisterRoutes(app, &handler)

	go func() {
		addr := cfg.Server.Host + ":" + cfg.Server.Port
		log.Info("Starting server", "addr", addr)
		if err := app.Listen(addr); err != nil {
			log.Error("Server stopped", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Error("Failed to shutdown server gracefully", "error", err)
	}
}
