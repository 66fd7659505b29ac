package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/estudarpro/estudar/internal/lib/rabbitmq"
	"github.com/estudarpro/estudar/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type PublisherMock struct {
	mock.Mock
}

func (m *PublisherMock) Publish(routingKey string, message any) error {
	args := m.Called(routingKey, message)
	return args.Error(0)
}

func TestQueueMessenger_Send(t *testing.T) {
	pub := new(PublisherMock)
	pub.On("Publish", rabbitmq.RoutingOTP, models.OutboundMessage{Phone: "+5511999998888", Text: "code 123456"}).
		Return(nil).Once()

	err := NewOTPMessenger(pub).Send(context.Background(), "+5511999998888", "code 123456")
	require.NoError(t, err)
	pub.AssertExpectations(t)
}

func TestQueueMessenger_SendError(t *testing.T) {
	pub := new(PublisherMock)
	pub.On("Publish", rabbitmq.RoutingReminder, mock.Anything).Return(errors.New("channel closed")).Once()

	err := NewQueueMessenger(pub, rabbitmq.RoutingReminder).Send(context.Background(), "+5511999998888", "hi")
	assert.ErrorContains(t, err, "channel closed")
}

func TestLogMessenger_Send(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))

	require.NoError(t, NewLogMessenger(log).Send(context.Background(), "+5511999998888", "code 123456"))
	assert.Contains(t, buf.String(), "code 123456")
	assert.NotContains(t, buf.String(), "+5511999998888")
}

func TestInlinePublisher(t *testing.T) {
	var got models.Reminder
	pub := NewInlinePublisher(map[string]Handler{
		rabbitmq.RoutingReminder: func(_ context.Context, body []byte) error {
			return json.Unmarshal(body, &got)
		},
	})

	err := pub.Publish(rabbitmq.RoutingReminder, models.Reminder{UserID: "user-1", Phone: "+5511999998888"})
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.UserID)

	err = pub.Publish(rabbitmq.RoutingOTP, models.OutboundMessage{})
	assert.ErrorIs(t, err, ErrNoHandler)

	failing := NewInlinePublisher(map[string]Handler{
		rabbitmq.RoutingOTP: func(context.Context, []byte) error { return errors.New("gateway down") },
	})
	assert.Error(t, failing.Publish(rabbitmq.RoutingOTP, models.OutboundMessage{}))
}
