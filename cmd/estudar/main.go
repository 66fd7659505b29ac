// Package main Estudar.Pro API
//
// @title           Estudar.Pro API
// @version         1.0
// @description     API платформы подготовки к экзаменам по праву: вход по WhatsApp, поиск по законодательству, оплата и администрирование

// @host      localhost:8080
// @BasePath  /api

// @securityDefinitions.apikey SessionCookie
// @in cookie
// @name session_token
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/estudarpro/estudar/internal/app/estudar"
	"github.com/estudarpro/estudar/internal/config"
	"github.com/estudarpro/estudar/internal/lib/sl"
)

func main() {
	cfg := config.MustLoad()
	log := sl.New(cfg.Env)
	log.Debug("config loaded", slog.String("config", cfg.String()))

	if err := run(log, cfg); err != nil {
		log.Error("estudar exited", sl.Err(err))
		os.Exit(1)
	}
	log.Info("estudar stopped gracefully")
}

func run(log *slog.Logger, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("starting estudar", slog.String("env", cfg.Env), slog.String("address", cfg.AddressHTTP))
	app, err := estudar.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	if err := app.Run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
