package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/estudarpro/estudar/internal/models"
)

const planColumns = `id, name, description, price, duration_days, is_active, sort_order, created_at, updated_at`

func scanPlan(row rowScanner) (*models.Plan, error) {
	var p models.Plan
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.DurationDays,
		&p.IsActive, &p.SortOrder, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPlans возвращает тарифы в порядке отображения.
func (s *Storage) ListPlans(ctx context.Context, activeOnly bool) ([]*models.Plan, error) {
	const op = "storage.ListPlans"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, `SELECT `+planColumns+`
			  FROM plans
			  WHERE ($1 = false OR is_active = true)
			  ORDER BY sort_order, id`, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// GetPlan возвращает тариф по ID.
func (s *Storage) GetPlan(ctx context.Context, id int64) (*models.Plan, error) {
	const op = "storage.GetPlan"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	p, err := scanPlan(s.DB.QueryRowContext(ctx, `SELECT `+planColumns+` FROM plans WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

// CreatePlan сохраняет тариф и возвращает его ID.
func (s *Storage) CreatePlan(ctx context.Context, p models.Plan) (int64, error) {
	const op = "storage.CreatePlan"
	if err := checkCtx(ctx, op); err != nil {
		return 0, err
	}

	var id int64
	err := s.DB.QueryRowContext(ctx, `INSERT INTO plans (name, description, price, duration_days, is_active, sort_order)
			  VALUES ($1, $2, $3, $4, $5, $6)
			  RETURNING id`,
		p.Name, p.Description, p.Price, p.DurationDays, p.IsActive, p.SortOrder).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

// UpdatePlan перезаписывает поля тарифа.
func (s *Storage) UpdatePlan(ctx context.Context, p models.Plan) error {
	const op = "storage.UpdatePlan"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	res, err := s.DB.ExecContext(ctx, `UPDATE plans
			  SET name = $1, description = $2, price = $3, duration_days = $4,
			      is_active = $5, sort_order = $6, updated_at = NOW()
			  WHERE id = $7`,
		p.Name, p.Description, p.Price, p.DurationDays, p.IsActive, p.SortOrder, p.ID)
	return affectedOne(op, res, err)
}

// DeactivatePlan скрывает тариф. Тарифы не удаляются, на них ссылаются транзакции.
func (s *Storage) DeactivatePlan(ctx context.Context, id int64) error {
	const op = "storage.DeactivatePlan"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	res, err := s.DB.ExecContext(ctx, `UPDATE plans SET is_active = false, updated_at = NOW() WHERE id = $1`, id)
	return affectedOne(op, res, err)
}

func affectedOne(op string, res sql.Result, err error) error {
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}

// ListSettings возвращает все настройки.
func (s *Storage) ListSettings(ctx context.Context) ([]*models.Setting, error) {
	const op = "storage.ListSettings"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, `SELECT key, value, updated_at FROM settings ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Setting
	for rows.Next() {
		var st models.Setting
		if err := rows.Scan(&st.Key, &st.Value, &st.UpdatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &st)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// UpsertSetting создаёт или обновляет настройку.
func (s *Storage) UpsertSetting(ctx context.Context, key, value string) (*models.Setting, error) {
	const op = "storage.UpsertSetting"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	var st models.Setting
	err := s.DB.QueryRowContext(ctx, `INSERT INTO settings (key, value, updated_at)
			  VALUES ($1, $2, NOW())
			  ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
			  RETURNING key, value, updated_at`, key, value).Scan(&st.Key, &st.Value, &st.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &st, nil
}

// CreateTransaction сохраняет попытку оплаты.
func (s *Storage) CreateTransaction(ctx context.Context, t models.Transaction) (int64, error) {
	const op = "storage.CreateTransaction"
	if err := checkCtx(ctx, op); err != nil {
		return 0, err
	}

	var id int64
	err := s.DB.QueryRowContext(ctx, `INSERT INTO transactions
				  (user_id, plan_id, external_reference, preference_id, status, amount)
			  VALUES ($1, $2, $3, $4, $5, $6)
			  RETURNING id`,
		t.UserID, t.PlanID, t.ExternalReference, t.PreferenceID, t.Status, t.Amount).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%s: %w", op, ErrAlreadyExists)
		}
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

// GetTransactionByReference возвращает транзакцию по external_reference.
func (s *Storage) GetTransactionByReference(ctx context.Context, ref string) (*models.Transaction, error) {
	const op = "storage.GetTransactionByReference"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	var (
		t         models.Transaction
		paymentID sql.NullString
	)
	err := s.DB.QueryRowContext(ctx, `SELECT id, user_id, plan_id, external_reference, preference_id,
				  provider_payment_id, status, amount, created_at, updated_at
			  FROM transactions WHERE external_reference = $1`, ref).
		Scan(&t.ID, &t.UserID, &t.PlanID, &t.ExternalReference, &t.PreferenceID,
			&paymentID, &t.Status, &t.Amount, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if paymentID.Valid {
		t.ProviderPaymentID = &paymentID.String
	}
	return &t, nil
}

// UpdateTransactionStatus записывает статус платежа, кроме approved.
// Одобренная транзакция больше не меняется этим методом.
func (s *Storage) UpdateTransactionStatus(ctx context.Context, ref, paymentID, status string) error {
	const op = "storage.UpdateTransactionStatus"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	_, err := s.DB.ExecContext(ctx, `UPDATE transactions
			  SET provider_payment_id = $2, status = $3, updated_at = NOW()
			  WHERE external_reference = $1 AND status <> 'approved'`, ref, paymentID, status)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ApprovePayment в одной транзакции отмечает платёж одобренным и продлевает
// подписку пользователя до until. Повторная доставка того же платежа ничего
// не меняет и возвращает false.
func (s *Storage) ApprovePayment(ctx context.Context, ref, paymentID string, until time.Time) (bool, error) {
	const op = "storage.ApprovePayment"
	if err := checkCtx(ctx, op); err != nil {
		return false, err
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var userID string
	err = tx.QueryRowContext(ctx, `UPDATE transactions
			  SET provider_payment_id = $2, status = 'approved', updated_at = NOW()
			  WHERE external_reference = $1 AND status <> 'approved'
			  RETURNING user_id`, ref, paymentID).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	_, err = tx.ExecContext(ctx, `UPDATE users
			  SET subscription_status = 'active',
			      subscription_end_date = $2,
			      is_trial_expired = (NOW() > trial_end_date),
			      updated_at = NOW()
			  WHERE id = $1`, userID, until)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return true, nil
}

// GetStats собирает сводку для панели администратора.
func (s *Storage) GetStats(ctx context.Context) (*models.Stats, error) {
	const op = "storage.GetStats"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	var st models.Stats
	err := s.DB.QueryRowContext(ctx, `SELECT
				  COUNT(*),
				  COUNT(*) FILTER (WHERE subscription_status = 'trial'),
				  COUNT(*) FILTER (WHERE subscription_status = 'active'),
				  COUNT(*) FILTER (WHERE subscription_status = 'expired'),
				  COUNT(*) FILTER (WHERE is_verified)
			  FROM users`).
		Scan(&st.TotalUsers, &st.TrialUsers, &st.ActiveUsers, &st.ExpiredUsers, &st.VerifiedUsers)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	err = s.DB.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(SUM(amount), 0)::float8
			  FROM transactions WHERE status = 'approved'`).Scan(&st.ApprovedPayments, &st.Revenue)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &st, nil
}
