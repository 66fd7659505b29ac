// Package dispatch выбирает способ доставки сообщений пользователям:
// через очередь RabbitMQ (обрабатывается сервисом sender) или напрямую.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/estudarpro/estudar/internal/lib/rabbitmq"
	"github.com/estudarpro/estudar/internal/lib/sl"
	"github.com/estudarpro/estudar/internal/models"
)

// Publisher публикует сообщение в обменник с ключом маршрутизации.
type Publisher interface {
	Publish(routingKey string, message any) error
}

// QueueMessenger ставит сообщение в очередь вместо синхронной отправки.
type QueueMessenger struct {
	pub        Publisher
	routingKey string
}

// NewQueueMessenger создаёт отправителя через очередь с ключом routingKey.
func NewQueueMessenger(pub Publisher, routingKey string) *QueueMessenger {
	return &QueueMessenger{pub: pub, routingKey: routingKey}
}

// NewOTPMessenger очередь одноразовых кодов.
func NewOTPMessenger(pub Publisher) *QueueMessenger {
	return NewQueueMessenger(pub, rabbitmq.RoutingOTP)
}

// Send публикует сообщение. Контекст не используется: публикация в amqp не блокирует надолго.
func (q *QueueMessenger) Send(_ context.Context, phone, text string) error {
	const op = "dispatch.QueueMessenger.Send"
	if err := q.pub.Publish(q.routingKey, models.OutboundMessage{Phone: phone, Text: text}); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// LogMessenger пишет сообщение в лог. Используется в локальном окружении без шлюза.
type LogMessenger struct {
	log *slog.Logger
}

// NewLogMessenger создаёт отправителя в лог.
func NewLogMessenger(log *slog.Logger) *LogMessenger {
	return &LogMessenger{log: log}
}

// Send пишет сообщение в лог и никогда не возвращает ошибку.
func (l *LogMessenger) Send(_ context.Context, phone, text string) error {
	l.log.Info("outbound message (not delivered)", sl.Phone(phone), slog.String("text", text))
	return nil
}

// ErrNoHandler для ключа маршрутизации не зарегистрирован обработчик.
var ErrNoHandler = errors.New("no handler for routing key")

// inlineTimeout ограничивает обработку одного сообщения без брокера.
const inlineTimeout = 30 * time.Second

// Handler обработчик тела сообщения, та же сигнатура, что у потребителя очереди.
type Handler func(ctx context.Context, body []byte) error

// InlinePublisher передаёт сообщение обработчику в том же процессе, минуя брокер.
// Используется, когда RabbitMQ не настроен.
type InlinePublisher struct {
	handlers map[string]Handler
}

// NewInlinePublisher создаёт публикатор с обработчиками по ключам маршрутизации.
func NewInlinePublisher(handlers map[string]Handler) *InlinePublisher {
	return &InlinePublisher{handlers: handlers}
}

// Publish кодирует сообщение в JSON и синхронно вызывает обработчик.
func (p *InlinePublisher) Publish(routingKey string, message any) error {
	const op = "dispatch.InlinePublisher.Publish"
	h, ok := p.handlers[routingKey]
	if !ok {
		return fmt.Errorf("%s: %w: %s", op, ErrNoHandler, routingKey)
	}
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), inlineTimeout)
	defer cancel()
	if err := h(ctx, body); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
