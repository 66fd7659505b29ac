package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/estudarpro/estudar/internal/models"
)

const userColumns = `id, name, phone, email, COALESCE(password_hash, ''), role, subscription_status,
	trial_start_date, trial_end_date, is_trial_expired, subscription_end_date,
	is_verified, stats, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		u      models.User
		email  sql.NullString
		subEnd sql.NullTime
		stats  []byte
	)
	if err := row.Scan(&u.ID, &u.Name, &u.Phone, &email, &u.PasswordHash, &u.Role,
		&u.SubscriptionStatus, &u.TrialStartDate, &u.TrialEndDate, &u.IsTrialExpired,
		&subEnd, &u.IsVerified, &stats, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	if email.Valid {
		u.Email = &email.String
	}
	if subEnd.Valid {
		u.SubscriptionEndDate = &subEnd.Time
	}
	if len(stats) > 0 {
		if err := json.Unmarshal(stats, &u.Stats); err != nil {
			return nil, err
		}
	}
	return &u, nil
}

// CreateUser сохраняет нового пользователя и возвращает его ID.
// Занятый телефон или email возвращает ErrAlreadyExists.
func (s *Storage) CreateUser(ctx context.Context, user models.User) (string, error) {
	const op = "storage.CreateUser"
	if err := checkCtx(ctx, op); err != nil {
		return "", err
	}

	var passwordHash *string
	if user.PasswordHash != "" {
		passwordHash = &user.PasswordHash
	}
	query := `INSERT INTO users (name, phone, email, password_hash, role, subscription_status,
				  trial_start_date, trial_end_date, is_trial_expired, is_verified)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			  RETURNING id`
	var id string
	err := s.DB.QueryRowContext(ctx, query, user.Name, user.Phone, user.Email, passwordHash,
		user.Role, user.SubscriptionStatus, user.TrialStartDate, user.TrialEndDate,
		user.IsTrialExpired, user.IsVerified).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return "", fmt.Errorf("%s: %w", op, ErrAlreadyExists)
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

// GetUser возвращает пользователя по ID.
func (s *Storage) GetUser(ctx context.Context, id string) (*models.User, error) {
	const op = "storage.GetUser"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	return s.getUserBy(ctx, op, "id = $1", id)
}

// GetUserByPhone возвращает пользователя по нормализованному телефону.
func (s *Storage) GetUserByPhone(ctx context.Context, phone string) (*models.User, error) {
	const op = "storage.GetUserByPhone"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	return s.getUserBy(ctx, op, "phone = $1", phone)
}

// GetUserByEmail возвращает пользователя по email без учёта регистра.
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.GetUserByEmail"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	return s.getUserBy(ctx, op, "lower(email) = lower($1)", email)
}

func (s *Storage) getUserBy(ctx context.Context, op, where string, arg any) (*models.User, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// UserExists сообщает, занят ли телефон или email.
func (s *Storage) UserExists(ctx context.Context, phone string, email *string) (bool, error) {
	const op = "storage.UserExists"
	if err := checkCtx(ctx, op); err != nil {
		return false, err
	}

	var exists bool
	err := s.DB.QueryRowContext(ctx, `SELECT EXISTS (
			SELECT 1 FROM users
			WHERE phone = $1 OR ($2::text IS NOT NULL AND lower(email) = lower($2))
		)`, phone, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return exists, nil
}

// MarkVerified отмечает телефон пользователя подтверждённым и пересчитывает
// is_trial_expired и статус подписки на момент now.
func (s *Storage) MarkVerified(ctx context.Context, id string, now time.Time) (*models.User, error) {
	const op = "storage.MarkVerified"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query := `UPDATE users
			  SET is_verified = true,
			      is_trial_expired = ($2 > trial_end_date),
			      subscription_status = CASE
			          WHEN subscription_status = 'trial' AND $2 > trial_end_date THEN 'expired'
			          ELSE subscription_status
			      END,
			      updated_at = $2
			  WHERE id = $1
			  RETURNING ` + userColumns
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, id, now))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// ExpireTrials переводит в expired всех, у кого пробный период закончился к now.
func (s *Storage) ExpireTrials(ctx context.Context, now time.Time) (int, error) {
	const op = "storage.ExpireTrials"
	if err := checkCtx(ctx, op); err != nil {
		return 0, err
	}

	res, err := s.DB.ExecContext(ctx, `UPDATE users
			  SET subscription_status = 'expired', is_trial_expired = true, updated_at = $1
			  WHERE subscription_status = 'trial' AND trial_end_date < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(n), nil
}

// ExpireSubscriptions переводит в expired оплаченные подписки с истёкшим сроком.
func (s *Storage) ExpireSubscriptions(ctx context.Context, now time.Time) (int, error) {
	const op = "storage.ExpireSubscriptions"
	if err := checkCtx(ctx, op); err != nil {
		return 0, err
	}

	res, err := s.DB.ExecContext(ctx, `UPDATE users
			  SET subscription_status = 'expired', updated_at = $1
			  WHERE subscription_status = 'active'
			    AND subscription_end_date IS NOT NULL
			    AND subscription_end_date < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(n), nil
}

// FindTrialsEndingBetween находит подтверждённых пользователей на пробном периоде,
// который заканчивается в интервале (from, to].
func (s *Storage) FindTrialsEndingBetween(ctx context.Context, from, to time.Time) ([]*models.Reminder, error) {
	const op = "storage.FindTrialsEndingBetween"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, `SELECT id, name, phone, trial_end_date
			  FROM users
			  WHERE subscription_status = 'trial'
			    AND is_verified = true
			    AND trial_end_date > $1 AND trial_end_date <= $2
			  ORDER BY trial_end_date`, from, to)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Reminder
	for rows.Next() {
		var r models.Reminder
		if err := rows.Scan(&r.UserID, &r.Name, &r.Phone, &r.TrialEndDate); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &r)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// ListUsers возвращает пользователей с пагинацией, новые первыми.
func (s *Storage) ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error) {
	const op = "storage.ListUsers"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, `SELECT `+userColumns+`
			  FROM users
			  ORDER BY created_at DESC
			  LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, u)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
