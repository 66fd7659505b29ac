// Command sender читает очереди сообщений и доставляет коды и напоминания в WhatsApp.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/estudarpro/estudar/internal/app/sender"
	"github.com/estudarpro/estudar/internal/config"
	"github.com/estudarpro/estudar/internal/lib/sl"
)

func main() {
	cfg := config.MustLoad()
	log := sl.New(cfg.Env).With(slog.String("service", "sender"))

	if err := run(log, cfg); err != nil {
		log.Error("sender exited", sl.Err(err))
		os.Exit(1)
	}
	log.Info("queues drained, sender exited")
}

func run(log *slog.Logger, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("connecting to message broker", slog.String("env", cfg.Env), slog.Int("max_retries", cfg.RabbitMQMaxRetries))
	app, err := sender.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	return app.Run(ctx)
}
