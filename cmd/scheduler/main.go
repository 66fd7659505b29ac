// Command scheduler периодически закрывает истёкшие пробные периоды и подписки,
// рассылает напоминания и чистит старые одноразовые коды.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/estudarpro/estudar/internal/app/scheduler"
	"github.com/estudarpro/estudar/internal/config"
	"github.com/estudarpro/estudar/internal/lib/sl"
)

func main() {
	cfg := config.MustLoad()
	log := sl.New(cfg.Env).With(slog.String("service", "scheduler"))

	if err := run(log, cfg); err != nil {
		log.Error("scheduler exited", sl.Err(err))
		os.Exit(1)
	}
	log.Info("scheduler exited")
}

func run(log *slog.Logger, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("scheduler starting",
		slog.Duration("sweep_interval", cfg.SweepInterval),
		slog.Duration("reminder_lead", cfg.ReminderLead))
	app, err := scheduler.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	return app.Run(ctx)
}
