package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/estudarpro/estudar/internal/lib/rabbitmq"
	"github.com/estudarpro/estudar/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) ExpireTrials(ctx context.Context, now time.Time) (int, error) {
	args := m.Called(ctx, now)
	return args.Int(0), args.Error(1)
}

func (m *MockRepository) ExpireSubscriptions(ctx context.Context, now time.Time) (int, error) {
	args := m.Called(ctx, now)
	return args.Int(0), args.Error(1)
}

func (m *MockRepository) FindTrialsEndingBetween(ctx context.Context, from, to time.Time) ([]*models.Reminder, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Reminder), args.Error(1)
}

func (m *MockRepository) DeleteExpiredChallenges(ctx context.Context, before time.Time) (int, error) {
	args := m.Called(ctx, before)
	return args.Int(0), args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(routingKey string, message any) error {
	args := m.Called(routingKey, message)
	return args.Error(0)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSchedulerService_RunOnce(t *testing.T) {
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	reminders := []*models.Reminder{
		{UserID: "u1", Name: "Ana", Phone: "+5511999998888"},
		{UserID: "u2", Name: "Bia", Phone: "+5511988887777"},
	}

	repo := new(MockRepository)
	repo.On("ExpireTrials", mock.Anything, now).Return(3, nil).Once()
	repo.On("ExpireSubscriptions", mock.Anything, now).Return(1, nil).Once()
	repo.On("DeleteExpiredChallenges", mock.Anything, now.Add(-24*time.Hour)).Return(7, nil).Once()
	repo.On("FindTrialsEndingBetween", mock.Anything, now.Add(23*time.Hour), now.Add(24*time.Hour)).
		Return(reminders, nil).Once()

	pub := new(MockPublisher)
	pub.On("Publish", rabbitmq.RoutingReminder, reminders[0]).Return(nil).Once()
	pub.On("Publish", rabbitmq.RoutingReminder, reminders[1]).Return(errors.New("channel closed")).Once()

	s := NewSchedulerService(newNoopLogger(), repo, pub, time.Hour, 24*time.Hour)
	s.now = func() time.Time { return now }

	report := s.RunOnce(context.Background())
	assert.Equal(t, Report{ExpiredTrials: 3, ExpiredSubscriptions: 1, RemindersSent: 1, ChallengesDeleted: 7}, report)
	repo.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestSchedulerService_RunOnceContinuesAfterErrors(t *testing.T) {
	repo := new(MockRepository)
	repo.On("ExpireTrials", mock.Anything, mock.Anything).Return(0, errors.New("db down")).Once()
	repo.On("ExpireSubscriptions", mock.Anything, mock.Anything).Return(2, nil).Once()
	repo.On("DeleteExpiredChallenges", mock.Anything, mock.Anything).Return(0, errors.New("db down")).Once()
	repo.On("FindTrialsEndingBetween", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("db down")).Once()

	pub := new(MockPublisher)
	report := NewSchedulerService(newNoopLogger(), repo, pub, time.Hour, 24*time.Hour).RunOnce(context.Background())

	assert.Equal(t, 2, report.ExpiredSubscriptions)
	assert.Equal(t, 0, report.RemindersSent)
	pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestSchedulerService_RunStopsOnCancel(t *testing.T) {
	repo := new(MockRepository)
	repo.On("ExpireTrials", mock.Anything, mock.Anything).Return(0, nil)
	repo.On("ExpireSubscriptions", mock.Anything, mock.Anything).Return(0, nil)
	repo.On("DeleteExpiredChallenges", mock.Anything, mock.Anything).Return(0, nil)
	ran := make(chan struct{}, 1)
	repo.On("FindTrialsEndingBetween", mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			select {
			case ran <- struct{}{}:
			default:
			}
		}).
		Return([]*models.Reminder{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewSchedulerService(newNoopLogger(), repo, new(MockPublisher), time.Hour, 24*time.Hour).Run(ctx)
		close(done)
	}()

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("first pass did not run")
	}
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}
