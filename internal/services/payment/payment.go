// Package payment оформляет покупку тарифов через Mercado Pago и применяет
// уведомления о платежах к подпискам пользователей.
package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/estudarpro/estudar/internal/mercadopago"
	"github.com/estudarpro/estudar/internal/models"
	"github.com/estudarpro/estudar/internal/storage"
)

var (
	// ErrPlanNotFound тариф не существует или отключён.
	ErrPlanNotFound = errors.New("plan not found")
	// ErrUserNotFound пользователь не найден.
	ErrUserNotFound = errors.New("user not found")
	// ErrNotConfigured платёжный провайдер не настроен.
	ErrNotConfigured = mercadopago.ErrNotConfigured
	// ErrInvalidSignature подпись уведомления не сошлась.
	ErrInvalidSignature = mercadopago.ErrInvalidSignature
	// ErrBadNotification в уведомлении нет идентификатора платежа.
	ErrBadNotification = errors.New("notification without data id")
)

// Repository хранилище тарифов, пользователей и транзакций.
type Repository interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetPlan(ctx context.Context, id int64) (*models.Plan, error)
	CreateTransaction(ctx context.Context, t models.Transaction) (int64, error)
	GetTransactionByReference(ctx context.Context, ref string) (*models.Transaction, error)
	UpdateTransactionStatus(ctx context.Context, ref, paymentID, status string) error
	ApprovePayment(ctx context.Context, ref, paymentID string, until time.Time) (bool, error)
}

// Provider платёжный провайдер.
type Provider interface {
	CreatePreference(ctx context.Context, pref mercadopago.PreferenceRequest) (*mercadopago.Preference, error)
	GetPayment(ctx context.Context, id string) (*mercadopago.Payment, error)
}

// Options адреса сайта и секрет подписи уведомлений.
type Options struct {
	SiteURL       string
	WebhookURL    string
	WebhookSecret string
}

// Checkout ссылка на оплату.
type Checkout struct {
	PreferenceID      string `json:"preference_id"`
	InitPoint         string `json:"init_point"`
	SandboxInitPoint  string `json:"sandbox_init_point,omitempty"`
	ExternalReference string `json:"external_reference"`
}

// PaymentService сервис оплаты.
type PaymentService struct {
	repo     Repository
	provider Provider
	opts     Options
	log      *slog.Logger
	now      func() time.Time
}

// New создаёт новый экземпляр PaymentService.
func New(log *slog.Logger, repo Repository, provider Provider, opts Options) *PaymentService {
	opts.SiteURL = strings.TrimRight(opts.SiteURL, "/")
	if opts.WebhookURL == "" && opts.SiteURL != "" {
		opts.WebhookURL = opts.SiteURL + "/api/webhooks/mercadopago"
	}
	return &PaymentService{
		repo:     repo,
		provider: provider,
		opts:     opts,
		log:      log,
		now:      time.Now,
	}
}

// NewReference формирует external_reference вида <userID>:<planID>:<uuid>.
func NewReference(userID string, planID int64) string {
	return userID + ":" + strconv.FormatInt(planID, 10) + ":" + uuid.NewString()
}

// CreatePreference создаёт предпочтение оплаты тарифа planID для пользователя
// и сохраняет транзакцию в статусе pending.
func (s *PaymentService) CreatePreference(ctx context.Context, userID string, planID int64) (*Checkout, error) {
	const op = "services.payment.CreatePreference"

	plan, err := s.repo.GetPlan(ctx, planID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !plan.IsActive {
		return nil, ErrPlanNotFound
	}

	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ref := NewReference(user.ID, plan.ID)
	req := mercadopago.PreferenceRequest{
		Items: []mercadopago.Item{{
			ID:          strconv.FormatInt(plan.ID, 10),
			Title:       "Estudar.Pro - " + plan.Name,
			Description: plan.Description,
			Quantity:    1,
			CurrencyID:  "BRL",
			UnitPrice:   plan.Price,
		}},
		BackURLs: mercadopago.BackURLs{
			Success: s.opts.SiteURL + "/payment/success",
			Failure: s.opts.SiteURL + "/payment/failure",
			Pending: s.opts.SiteURL + "/payment/pending",
		},
		AutoReturn:        "approved",
		NotificationURL:   s.opts.WebhookURL,
		ExternalReference: ref,
	}
	if user.Email != nil || user.Name != "" {
		payer := &mercadopago.Payer{Name: user.Name}
		if user.Email != nil {
			payer.Email = *user.Email
		}
		req.Payer = payer
	}

	pref, err := s.provider.CreatePreference(ctx, req)
	if err != nil {
		if errors.Is(err, mercadopago.ErrNotConfigured) {
			return nil, ErrNotConfigured
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	_, err = s.repo.CreateTransaction(ctx, models.Transaction{
		UserID:            user.ID,
		PlanID:            plan.ID,
		ExternalReference: ref,
		PreferenceID:      pref.ID,
		Status:            models.TransactionPending,
		Amount:            plan.Price,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("checkout created",
		slog.String("user_id", user.ID),
		slog.Int64("plan_id", plan.ID),
		slog.String("preference_id", pref.ID))

	return &Checkout{
		PreferenceID:      pref.ID,
		InitPoint:         pref.InitPoint,
		SandboxInitPoint:  pref.SandboxInitPoint,
		ExternalReference: ref,
	}, nil
}
