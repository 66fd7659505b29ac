// Package sender собирает воркер, который читает очереди RabbitMQ
// и доставляет сообщения через WhatsApp.
package sender

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/estudarpro/estudar/internal/config"
	"github.com/estudarpro/estudar/internal/lib/rabbitmq"
	"github.com/estudarpro/estudar/internal/lib/sl"
	senderservice "github.com/estudarpro/estudar/internal/services/sender"
	"github.com/estudarpro/estudar/internal/whatsapp"
	"github.com/streadway/amqp"
)

type App struct {
	conn          *amqp.Connection
	ch            *amqp.Channel
	senderService *senderservice.SenderService
	logger        *slog.Logger
}

func New(_ context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if cfg.RabbitMQURL == "" {
		return nil, fmt.Errorf("sender requires RABBITMQ_URL")
	}
	client := whatsapp.NewClient(cfg.WhatsAppAPIURL, cfg.WhatsAppToken, cfg.WhatsAppInstance)
	if !client.Configured() {
		logger.Warn("whatsapp gateway is not configured, deliveries will fail")
	}

	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
	}

	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetMessageQueues())
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
	}

	return &App{
		conn:          conn,
		ch:            ch,
		senderService: senderservice.NewSenderService(logger, client, cfg.SiteURL),
		logger:        logger,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	consumers := []struct {
		queue   string
		handler func(context.Context, []byte) error
	}{
		{queue: "messages.otp", handler: a.senderService.SendOTP},
		{queue: "messages.reminder", handler: a.senderService.SendTrialReminder},
	}
	for _, c := range consumers {
		if err := rabbitmq.ConsumerMessage(ctx, a.logger, a.ch, c.queue, c.handler); err != nil {
			a.logger.Error("failed to start consumer", slog.String("queue", c.queue), sl.Err(err))
			a.close()
			return err
		}
	}

	<-ctx.Done()
	a.logger.Info("sender service shutting down gracefully")
	a.close()
	return nil
}

func (a *App) close() {
	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", sl.Err(err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", sl.Err(err))
	}
}
