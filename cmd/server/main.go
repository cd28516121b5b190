package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"ClaudeConfigManager/internal/api"
	"ClaudeConfigManager/internal/db"
	"ClaudeConfigManager/internal/engine"
)

func main() {
	// Optional; env vars win over a missing .env.
	_ = godotenv.Load()

	logger := zerolog.New(os.Stdout).With().
		Timestamp().
		Str("service", "claude-config-manager").
		Logger()

	dbPath := envOr("CCM_DB_PATH", "claude-config.db")
	listen := envOr("CCM_LISTEN", ":8080")
	restorePath := envOr("CCM_RESTORE_PATH", dbPath+".restore")

	database, err := db.NewDB(dbPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", dbPath).Msg("database initialization failed")
	}
	defer database.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng := engine.New(database, dbPath, restorePath)
	go func() {
		if err := eng.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("sync engine stopped")
		}
	}()

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(api.CORS)

	apiGroup := e.Group("/api")
	api.SetupRoutes(apiGroup, eng, database)

	go func() {
		<-ctx.Done()
		if err := e.Shutdown(context.Background()); err != nil {
			logger.Error().Err(err).Msg("server shutdown failed")
		}
	}()

	logger.Info().Str("listen", listen).Str("db", dbPath).Msg("starting")
	if err := e.Start(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
