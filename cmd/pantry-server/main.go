package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mikepea/pantry/pkg/pantry/accounts"
	"github.com/mikepea/pantry/pkg/pantry/auth"
	"github.com/mikepea/pantry/pkg/pantry/config"
	"github.com/mikepea/pantry/pkg/pantry/database"
	"github.com/mikepea/pantry/pkg/pantry/logger"
	"github.com/mikepea/pantry/pkg/pantry/media"
	"github.com/mikepea/pantry/pkg/pantry/models"
	"github.com/mikepea/pantry/pkg/pantry/server"
)

// @title Pantry API
// @version 1.0
// @description Multi-user recipe backend. Tags, ingredients and recipes are private to their owner.

// @BasePath /api

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT token or API key. Format: "Bearer {token}"

func main() {
	var configPath string

	flag.StringVar(&configPath, "config", "", "path to configuration file")
	flag.Parse()

	cfg, err := config.New(configPath)
	if err != nil {
		log.Fatal(err)
	}

	lg, err := logger.New(cfg.Logger)
	if err != nil {
		log.Fatalf("can't get logger error: %v", err)
	}
	defer lg.Sync() //nolint:errcheck

	if !cfg.Logger.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	interruptSignals := []os.Signal{syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP}

	ctx, cancel := signal.NotifyContext(context.Background(), interruptSignals...)
	defer cancel()

	if err := run(ctx, cfg, lg); err != nil {
		lg.Error("server stopped", zap.Error(err))
		os.Exit(1) //nolint:gocritic
	}
}

func run(ctx context.Context, cfg config.Config, lg *zap.Logger) error {
	db, err := database.Open(cfg.Database.Driver, cfg.Database.DSN, database.WithLogger(logger.NewGorm(lg)))
	if err != nil {
		return err
	}

	if err := models.AutoMigrate(db); err != nil {
		return err
	}
	lg.Info("database migrations completed", zap.String("driver", cfg.Database.Driver))

	if cfg.Bootstrap.AdminEmail != "" {
		created, err := accounts.NewStore(db).EnsureSuperuser(ctx, cfg.Bootstrap.AdminEmail, cfg.Bootstrap.AdminPassword)
		if err != nil {
			return err
		}
		if created {
			lg.Info("created superuser", zap.String("email", accounts.NormalizeEmail(cfg.Bootstrap.AdminEmail)))
		}
	}

	store, err := media.New(ctx, cfg.Media)
	if err != nil {
		return err
	}

	router := server.NewRouter(server.Deps{
		DB:             db,
		Tokens:         auth.NewTokenIssuer(cfg.Auth.Secret, cfg.Auth.TTL),
		Media:          store,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		Logger:         lg,
	})

	return server.New(cfg.Server, router, lg).Run(ctx)
}
