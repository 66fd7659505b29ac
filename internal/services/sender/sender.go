// Package services доставляет сообщения из очередей RabbitMQ через WhatsApp.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/estudarpro/estudar/internal/lib/sl"
	"github.com/estudarpro/estudar/internal/metrics"
	"github.com/estudarpro/estudar/internal/models"
	"github.com/estudarpro/estudar/internal/whatsapp"
)

// Transport канал доставки сообщений.
type Transport interface {
	Send(ctx context.Context, phone, text string) error
}

// SenderService обрабатывает сообщения очередей.
type SenderService struct {
	transport Transport
	siteURL   string
	log       *slog.Logger
}

// NewSenderService создает новый экземпляр SenderService.
func NewSenderService(log *slog.Logger, transport Transport, siteURL string) *SenderService {
	return &SenderService{
		transport: transport,
		siteURL:   siteURL,
		log:       log,
	}
}

// SendOTP доставляет сообщение с одноразовым кодом.
func (s *SenderService) SendOTP(ctx context.Context, body []byte) error {
	const op = "services.sender.SendOTP"
	var message models.OutboundMessage
	if err := json.Unmarshal(body, &message); err != nil {
		s.log.Error("failed to unmarshal message body", sl.Err(err))
		return nil
	}
	return s.deliver(ctx, op, "otp", message.Phone, message.Text)
}

// SendTrialReminder напоминает об окончании пробного периода.
func (s *SenderService) SendTrialReminder(ctx context.Context, body []byte) error {
	const op = "services.sender.SendTrialReminder"
	var message models.Reminder
	if err := json.Unmarshal(body, &message); err != nil {
		s.log.Error("failed to unmarshal message body", sl.Err(err))
		return nil
	}

	text := fmt.Sprintf("Olá, %s! Seu período de teste no Estudar.Pro termina em %s. "+
		"Assine para continuar estudando: %s/pricing",
		message.Name, message.TrialEndDate.Format("02/01/2006 15:04"), s.siteURL)
	return s.deliver(ctx, op, "reminder", message.Phone, text)
}

// deliver отправляет текст. Ошибка возвращается только если повтор может помочь:
// битые сообщения и отказы шлюза не возвращаются в очередь.
func (s *SenderService) deliver(ctx context.Context, op, kind, phone, text string) error {
	log := s.log.With(slog.String("op", op), sl.Phone(phone))

	err := s.transport.Send(ctx, phone, text)
	switch {
	case err == nil:
		metrics.MessagesSent.WithLabelValues(kind, "sent").Inc()
		log.Info("message delivered")
		return nil
	case errors.Is(err, whatsapp.ErrNotConfigured), errors.Is(err, whatsapp.ErrRejected):
		metrics.MessagesSent.WithLabelValues(kind, "dropped").Inc()
		log.Warn("message dropped", sl.Err(err))
		return nil
	default:
		metrics.MessagesSent.WithLabelValues(kind, "failed").Inc()
		return fmt.Errorf("%s: %w", op, err)
	}
}
