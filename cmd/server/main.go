package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"resource-api/internal/config"
	apphttp "resource-api/internal/http"
	"resource-api/internal/logging"
	"resource-api/internal/model"
	"resource-api/internal/repository/postgres"
	"resource-api/internal/repository/sqlite"
	"resource-api/internal/repository/sqlstore"
	"resource-api/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("load config: %v", err)
	}

	logger, err := logging.New(logging.Options{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	if err != nil {
		logrus.Fatalf("setup logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, dialect, err := openStore(cfg)
	if err != nil {
		logger.Fatalf("open database: %v", err)
	}
	defer db.Close()

	resourceRepo := sqlstore.NewResourceRepository(model.NewResourceModel(db, dialect))
	if err := resourceRepo.Init(ctx); err != nil {
		logger.Fatalf("init resource repository: %v", err)
	}
	logger.Infof("database ready (driver %s)", cfg.Database.Driver)

	resourceService := service.NewResourceService(resourceRepo)

	gin.SetMode(gin.ReleaseMode)
	handler := apphttp.NewHandler(resourceService, logger)
	router := apphttp.NewRouter(apphttp.RouterConfig{
		BasePath:     cfg.Server.BasePath,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		Metrics:      cfg.Metrics.Enabled,
		Tracing:      cfg.Tracing.Enabled,
		ServiceName:  cfg.Tracing.ServiceName,
	}, handler, logger)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	go func() {
		logger.Infof("listening on %s%s", cfg.Server.Addr, cfg.Server.BasePath)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}

	logger.Info("bye")
}

func openStore(cfg config.Config) (*sqlx.DB, model.Dialect, error) {
	switch cfg.Database.Driver {
	case "sqlite":
		db, err := sqlite.Open(cfg.Database.Path)
		return db, sqlite.Dialect{}, err
	case "postgres":
		db, err := postgres.Open(cfg.Database.DSN)
		return db, postgres.Dialect{}, err
	default:
		return nil, nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
}
