package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/handyfix/marketplace-engine/internal/app"
	"github.com/handyfix/marketplace-engine/internal/pkg/config"
	"github.com/handyfix/marketplace-engine/pkg/logger"
)

// @title                       Marketplace Engine API
// @version                     1.0
// @description                 Booking lifecycle, payment reconciliation and role resolution for the service marketplace.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
func main() {
	cfg := config.Load()

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.IsDevelopment(),
		Service: "marketplace-engine",
	})
	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Str("gateway_mode", cfg.Gateway.Mode).
		Msg("starting marketplace engine")

	application, err := app.NewApp(cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize application")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := application.Run(ctx); err != nil {
		log.Error().Err(err).Msg("application error")
		os.Exit(1)
	}

	log.Info().Msg("marketplace engine stopped")
}
