// Package services содержит периодические задачи: перевод истёкших пробных
// периодов и подписок в статус expired, очистку старых кодов и напоминания
// об окончании пробного периода.
package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/estudarpro/estudar/internal/lib/rabbitmq"
	"github.com/estudarpro/estudar/internal/lib/sl"
	"github.com/estudarpro/estudar/internal/models"
)

// challengeRetention сколько хранятся истёкшие коды подтверждения.
const challengeRetention = 24 * time.Hour

type UserRepository interface {
	ExpireTrials(ctx context.Context, now time.Time) (int, error)
	ExpireSubscriptions(ctx context.Context, now time.Time) (int, error)
	FindTrialsEndingBetween(ctx context.Context, from, to time.Time) ([]*models.Reminder, error)
	DeleteExpiredChallenges(ctx context.Context, before time.Time) (int, error)
}

// Publisher публикует сообщение в очередь рассылки.
type Publisher interface {
	Publish(routingKey string, message any) error
}

// Report итоги одного прохода.
type Report struct {
	ExpiredTrials        int
	ExpiredSubscriptions int
	RemindersSent        int
	ChallengesDeleted    int
}

type SchedulerService struct {
	repo      UserRepository
	publisher Publisher
	interval  time.Duration
	lead      time.Duration
	log       *slog.Logger
	now       func() time.Time
}

// NewSchedulerService создает новый экземпляр SchedulerService.
// interval задаёт период запуска, lead за сколько до конца пробного периода напоминать.
func NewSchedulerService(log *slog.Logger, repo UserRepository, publisher Publisher, interval, lead time.Duration) *SchedulerService {
	return &SchedulerService{
		repo:      repo,
		publisher: publisher,
		interval:  interval,
		lead:      lead,
		log:       log,
		now:       time.Now,
	}
}

// Run выполняет проход сразу и затем раз в interval до отмены ctx.
func (s *SchedulerService) Run(ctx context.Context) {
	s.RunOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.RunOnce(ctx)
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return
		}
	}
}

// RunOnce выполняет все задачи один раз. Ошибка одной задачи не отменяет остальные.
func (s *SchedulerService) RunOnce(ctx context.Context) Report {
	var report Report
	now := s.now().UTC()

	n, err := s.repo.ExpireTrials(ctx, now)
	if err != nil {
		s.log.Error("failed to expire trials", sl.Err(err))
	}
	report.ExpiredTrials = n

	n, err = s.repo.ExpireSubscriptions(ctx, now)
	if err != nil {
		s.log.Error("failed to expire subscriptions", sl.Err(err))
	}
	report.ExpiredSubscriptions = n

	n, err = s.repo.DeleteExpiredChallenges(ctx, now.Add(-challengeRetention))
	if err != nil {
		s.log.Error("failed to delete expired challenges", sl.Err(err))
	}
	report.ChallengesDeleted = n

	report.RemindersSent = s.remind(ctx, now)

	s.log.Info("scheduler pass finished",
		slog.Int("expired_trials", report.ExpiredTrials),
		slog.Int("expired_subscriptions", report.ExpiredSubscriptions),
		slog.Int("reminders", report.RemindersSent),
		slog.Int("challenges_deleted", report.ChallengesDeleted))
	return report
}

// remind публикует напоминания для пробных периодов, которые закончатся
// в окне (now+lead-interval, now+lead]. Окна соседних проходов не пересекаются,
// поэтому каждый пользователь получает одно напоминание.
func (s *SchedulerService) remind(ctx context.Context, now time.Time) int {
	from := now.Add(s.lead - s.interval)
	to := now.Add(s.lead)

	reminders, err := s.repo.FindTrialsEndingBetween(ctx, from, to)
	if err != nil {
		s.log.Error("failed to find trials ending soon", sl.Err(err))
		return 0
	}
	if len(reminders) == 0 {
		return 0
	}

	sent := 0
	for _, r := range reminders {
		if err := s.publisher.Publish(rabbitmq.RoutingReminder, r); err != nil {
			s.log.Error("failed to publish message", slog.String("user_id", r.UserID), sl.Err(err))
			continue
		}
		sent++
	}
	return sent
}
