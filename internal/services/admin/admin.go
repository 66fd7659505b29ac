// Package services содержит операции панели администратора: тарифы,
// настройки, статистику и список пользователей.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/estudarpro/estudar/internal/lib/sl"
	"github.com/estudarpro/estudar/internal/models"
	"github.com/estudarpro/estudar/internal/storage"
)

const activePlansKey = "plans:active"

// ErrNotFound запись не найдена.
var ErrNotFound = errors.New("not found")

// Repository хранилище данных панели.
type Repository interface {
	ListPlans(ctx context.Context, activeOnly bool) ([]*models.Plan, error)
	GetPlan(ctx context.Context, id int64) (*models.Plan, error)
	CreatePlan(ctx context.Context, p models.Plan) (int64, error)
	UpdatePlan(ctx context.Context, p models.Plan) error
	DeactivatePlan(ctx context.Context, id int64) error
	ListSettings(ctx context.Context) ([]*models.Setting, error)
	UpsertSetting(ctx context.Context, key, value string) (*models.Setting, error)
	GetStats(ctx context.Context) (*models.Stats, error)
	ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error)
}

// Cache описывает методы для кэширования данных.
type Cache interface {
	// Get пытается получить значение из кеша по ключу.
	Get(ctx context.Context, key string, result any) (bool, error)
	// Set сохраняет значение в кеш с временем жизни.
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	// Invalidate удаляет значение из кеша по ключу.
	Invalidate(ctx context.Context, key string) error
}

// AdminService реализует операции панели администратора.
type AdminService struct {
	repo  Repository
	cache Cache
	ttl   time.Duration
	log   *slog.Logger
}

// NewAdminService создает новый экземпляр AdminService.
func NewAdminService(log *slog.Logger, repo Repository, cache Cache, ttl time.Duration) *AdminService {
	return &AdminService{
		repo:  repo,
		cache: cache,
		ttl:   ttl,
		log:   log,
	}
}

func notFound(op string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

// ActivePlans возвращает тарифы для страницы цен. Список кешируется.
func (s *AdminService) ActivePlans(ctx context.Context) ([]*models.Plan, error) {
	const op = "services.admin.ActivePlans"

	var plans []*models.Plan
	found, err := s.cache.Get(ctx, activePlansKey, &plans)
	if err != nil {
		s.log.Warn("plans cache read failed", sl.Err(err))
	}
	if found {
		return plans, nil
	}

	plans, err = s.repo.ListPlans(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if plans == nil {
		plans = []*models.Plan{}
	}
	if err := s.cache.Set(ctx, activePlansKey, plans, s.ttl); err != nil {
		s.log.Warn("plans cache write failed", sl.Err(err))
	}
	return plans, nil
}

// ListPlans возвращает все тарифы, включая отключённые.
func (s *AdminService) ListPlans(ctx context.Context) ([]*models.Plan, error) {
	const op = "services.admin.ListPlans"
	plans, err := s.repo.ListPlans(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if plans == nil {
		plans = []*models.Plan{}
	}
	return plans, nil
}

// CreatePlan сохраняет новый тариф.
func (s *AdminService) CreatePlan(ctx context.Context, p models.Plan) (*models.Plan, error) {
	const op = "services.admin.CreatePlan"
	id, err := s.repo.CreatePlan(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.invalidatePlans(ctx)
	return s.getPlan(ctx, op, id)
}

// UpdatePlan перезаписывает тариф.
func (s *AdminService) UpdatePlan(ctx context.Context, p models.Plan) (*models.Plan, error) {
	const op = "services.admin.UpdatePlan"
	if err := s.repo.UpdatePlan(ctx, p); err != nil {
		return nil, notFound(op, err)
	}
	s.invalidatePlans(ctx)
	return s.getPlan(ctx, op, p.ID)
}

// DeletePlan отключает тариф.
func (s *AdminService) DeletePlan(ctx context.Context, id int64) error {
	const op = "services.admin.DeletePlan"
	if err := s.repo.DeactivatePlan(ctx, id); err != nil {
		return notFound(op, err)
	}
	s.invalidatePlans(ctx)
	return nil
}

func (s *AdminService) getPlan(ctx context.Context, op string, id int64) (*models.Plan, error) {
	p, err := s.repo.GetPlan(ctx, id)
	if err != nil {
		return nil, notFound(op, err)
	}
	return p, nil
}

func (s *AdminService) invalidatePlans(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, activePlansKey); err != nil {
		s.log.Warn("plans cache invalidation failed", sl.Err(err))
	}
}

// ListSettings возвращает все настройки.
func (s *AdminService) ListSettings(ctx context.Context) ([]*models.Setting, error) {
	const op = "services.admin.ListSettings"
	settings, err := s.repo.ListSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if settings == nil {
		settings = []*models.Setting{}
	}
	return settings, nil
}

// SetSetting создаёт или обновляет настройку.
func (s *AdminService) SetSetting(ctx context.Context, key, value string) (*models.Setting, error) {
	const op = "services.admin.SetSetting"
	st, err := s.repo.UpsertSetting(ctx, key, value)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return st, nil
}

// Stats возвращает сводку по пользователям и оплатам.
func (s *AdminService) Stats(ctx context.Context) (*models.Stats, error) {
	const op = "services.admin.Stats"
	st, err := s.repo.GetStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return st, nil
}

// ListUsers возвращает страницу пользователей с пересчитанным состоянием пробного периода.
func (s *AdminService) ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error) {
	const op = "services.admin.ListUsers"
	users, err := s.repo.ListUsers(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	now := time.Now().UTC()
	for _, u := range users {
		u.Refresh(now)
	}
	if users == nil {
		users = []*models.User{}
	}
	return users, nil
}
