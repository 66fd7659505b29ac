package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/estudarpro/estudar/internal/mercadopago"
	"github.com/estudarpro/estudar/internal/metrics"
	"github.com/estudarpro/estudar/internal/models"
	"github.com/estudarpro/estudar/internal/storage"
)

// Результаты обработки уведомления.
const (
	ResultApproved         = "approved"
	ResultUpdated          = "updated"
	ResultDuplicate        = "duplicate"
	ResultIgnored          = "ignored"
	ResultUnknownReference = "unknown_reference"
	ResultAmountMismatch   = "amount_mismatch"
)

const amountTolerance = 0.01

// Webhook входящее уведомление вместе с заголовками подписи.
type Webhook struct {
	Notification mercadopago.Notification
	Signature    string
	RequestID    string
	// DataID идентификатор из query-параметра data.id, если он передан.
	DataID string
}

func (w Webhook) dataID() string {
	if w.DataID != "" {
		return w.DataID
	}
	return w.Notification.Data.ID
}

// HandleWebhook применяет уведомление о платеже. Повторная доставка того же
// платежа ничего не меняет. Порядок конкурентных доставок не гарантируется:
// одобренная транзакция защищена от перезаписи условием в хранилище.
func (s *PaymentService) HandleWebhook(ctx context.Context, w Webhook) (result string, err error) {
	const op = "services.payment.HandleWebhook"
	defer func() {
		label := result
		if err != nil {
			label = "error"
		}
		metrics.WebhookEvents.WithLabelValues(label).Inc()
	}()

	dataID := w.dataID()
	if s.opts.WebhookSecret != "" {
		if err := mercadopago.VerifySignature(s.opts.WebhookSecret, w.Signature, w.RequestID, dataID); err != nil {
			return "", ErrInvalidSignature
		}
	}

	if w.Notification.Type != "payment" {
		return ResultIgnored, nil
	}
	if dataID == "" {
		return "", ErrBadNotification
	}

	payment, err := s.provider.GetPayment(ctx, dataID)
	if err != nil {
		if errors.Is(err, mercadopago.ErrNotConfigured) {
			return "", ErrNotConfigured
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if payment.ExternalReference == "" {
		return ResultIgnored, nil
	}

	log := s.log.With(
		slog.String("op", op),
		slog.String("external_reference", payment.ExternalReference),
		slog.Int64("payment_id", payment.ID),
		slog.String("status", payment.Status),
	)

	tx, err := s.repo.GetTransactionByReference(ctx, payment.ExternalReference)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			log.Warn("payment for unknown reference")
			return ResultUnknownReference, nil
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}

	paymentID := strconv.FormatInt(payment.ID, 10)
	if tx.Status == payment.Status && tx.ProviderPaymentID != nil && *tx.ProviderPaymentID == paymentID {
		return ResultDuplicate, nil
	}

	if payment.Status != models.TransactionApproved {
		if err := s.repo.UpdateTransactionStatus(ctx, tx.ExternalReference, paymentID, payment.Status); err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		log.Info("transaction status updated")
		return ResultUpdated, nil
	}

	if payment.TransactionAmount+amountTolerance < tx.Amount {
		log.Warn("approved amount below plan price",
			slog.Float64("paid", payment.TransactionAmount),
			slog.Float64("expected", tx.Amount))
		return ResultAmountMismatch, nil
	}

	plan, err := s.repo.GetPlan(ctx, tx.PlanID)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	until := s.now().UTC().Add(time.Duration(plan.DurationDays) * 24 * time.Hour)

	applied, err := s.repo.ApprovePayment(ctx, tx.ExternalReference, paymentID, until)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if !applied {
		return ResultDuplicate, nil
	}
	log.Info("subscription activated", slog.String("user_id", tx.UserID), slog.Time("until", until))
	return ResultApproved, nil
}
