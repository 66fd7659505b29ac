// Package scheduler собирает фоновый планировщик: истечение пробных периодов
// и подписок, очистка кодов и напоминания.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/estudarpro/estudar/internal/config"
	"github.com/estudarpro/estudar/internal/dispatch"
	"github.com/estudarpro/estudar/internal/lib/rabbitmq"
	"github.com/estudarpro/estudar/internal/lib/sl"
	schedulerservice "github.com/estudarpro/estudar/internal/services/scheduler"
	senderservice "github.com/estudarpro/estudar/internal/services/sender"
	"github.com/estudarpro/estudar/internal/storage"
	"github.com/estudarpro/estudar/internal/whatsapp"
	"github.com/streadway/amqp"
)

// App представляет приложение планировщика.
type App struct {
	schedulerService *schedulerservice.SchedulerService
	db               *storage.Storage
	conn             *amqp.Connection
	ch               *amqp.Channel
	logger           *slog.Logger
}

func waitForDB(ctx context.Context, db *storage.Storage) error {
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(3*time.Second), 10), ctx)
	if err := backoff.Retry(func() error { return storage.CheckDatabaseReady(db) }, b); err != nil {
		return fmt.Errorf("database not ready after retries: %w", err)
	}
	return nil
}

// New создает новый экземпляр приложения планировщика.
// Без RabbitMQ напоминания отправляются в WhatsApp напрямую из процесса.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := storage.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect storage: %w", err)
	}
	if err := waitForDB(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	a := &App{db: db, logger: logger}

	var publisher schedulerservice.Publisher
	if cfg.RabbitMQURL != "" {
		conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
		}
		a.conn = conn
		ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetMessageQueues())
		if err != nil {
			a.close()
			return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
		}
		a.ch = ch
		publisher = rabbitmq.NewPublisher(ch)
	} else {
		client := whatsapp.NewClient(cfg.WhatsAppAPIURL, cfg.WhatsAppToken, cfg.WhatsAppInstance)
		sender := senderservice.NewSenderService(logger, client, cfg.SiteURL)
		publisher = dispatch.NewInlinePublisher(map[string]dispatch.Handler{
			rabbitmq.RoutingReminder: sender.SendTrialReminder,
		})
		logger.Info("rabbitmq is not configured, reminders are delivered inline")
	}

	a.schedulerService = schedulerservice.NewSchedulerService(logger, db, publisher, cfg.SweepInterval, cfg.ReminderLead)
	return a, nil
}

func (a *App) close() {
	if a.ch != nil {
		if err := a.ch.Close(); err != nil {
			a.logger.Error("failed to close channel", sl.Err(err))
		}
	}
	if a.conn != nil {
		if err := a.conn.Close(); err != nil {
			a.logger.Error("failed to close connection", sl.Err(err))
		}
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close storage", sl.Err(err))
	}
}

// Run запускает планировщик и блокируется до отмены контекста.
func (a *App) Run(ctx context.Context) error {
	a.schedulerService.Run(ctx)
	a.logger.Info("shutting down scheduler service")
	a.close()
	return nil
}
