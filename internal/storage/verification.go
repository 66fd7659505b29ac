package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/estudarpro/estudar/internal/models"
)

// CreateChallenge сохраняет новый одноразовый вызов и возвращает его ID.
// Предыдущие вызовы для того же телефона не трогаются.
func (s *Storage) CreateChallenge(ctx context.Context, v models.VerificationSession) (string, error) {
	const op = "storage.CreateChallenge"
	if err := checkCtx(ctx, op); err != nil {
		return "", err
	}

	query := `INSERT INTO verification_sessions (phone, name, code, purpose, expires_at, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6)
			  RETURNING id`
	var id string
	if err := s.DB.QueryRowContext(ctx, query, v.Phone, v.Name, v.Code, v.Purpose, v.ExpiresAt, v.CreatedAt).Scan(&id); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

// LatestActiveChallenge возвращает самый свежий неиспользованный и не истёкший
// на момент now вызов для телефона.
func (s *Storage) LatestActiveChallenge(ctx context.Context, phone string, now time.Time) (*models.VerificationSession, error) {
	const op = "storage.LatestActiveChallenge"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query := `SELECT ` + challengeColumns + `
			  FROM verification_sessions
			  WHERE phone = $1 AND is_verified = false AND expires_at > $2
			  ORDER BY created_at DESC
			  LIMIT 1`
	v, err := scanChallenge(s.DB.QueryRowContext(ctx, query, phone, now))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return v, nil
}

// GetChallenge возвращает вызов по ID независимо от его состояния.
func (s *Storage) GetChallenge(ctx context.Context, id string) (*models.VerificationSession, error) {
	const op = "storage.GetChallenge"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	v, err := scanChallenge(s.DB.QueryRowContext(ctx,
		`SELECT `+challengeColumns+` FROM verification_sessions WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return v, nil
}

const challengeColumns = `id, phone, name, code, purpose, expires_at, is_verified, attempts, created_at`

func scanChallenge(row rowScanner) (*models.VerificationSession, error) {
	var v models.VerificationSession
	if err := row.Scan(&v.ID, &v.Phone, &v.Name, &v.Code, &v.Purpose, &v.ExpiresAt, &v.IsVerified, &v.Attempts, &v.CreatedAt); err != nil {
		return nil, err
	}
	return &v, nil
}

// ConsumeChallenge отмечает вызов использованным. Возвращает false, если
// вызов уже был использован параллельным запросом или исчерпал maxAttempts
// неверных попыток.
func (s *Storage) ConsumeChallenge(ctx context.Context, id string, maxAttempts int) (bool, error) {
	const op = "storage.ConsumeChallenge"
	if err := checkCtx(ctx, op); err != nil {
		return false, err
	}

	res, err := s.DB.ExecContext(ctx,
		`UPDATE verification_sessions SET is_verified = true
		 WHERE id = $1 AND is_verified = false AND attempts < $2`, id, maxAttempts)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n == 1, nil
}

// FailChallenge засчитывает неверный ввод кода и возвращает число попыток.
func (s *Storage) FailChallenge(ctx context.Context, id string) (int, error) {
	const op = "storage.FailChallenge"
	if err := checkCtx(ctx, op); err != nil {
		return 0, err
	}

	var attempts int
	err := s.DB.QueryRowContext(ctx,
		`UPDATE verification_sessions SET attempts = attempts + 1
		 WHERE id = $1 AND is_verified = false
		 RETURNING attempts`, id).Scan(&attempts)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return attempts, nil
}

// DeleteExpiredChallenges удаляет вызовы, истёкшие раньше before.
func (s *Storage) DeleteExpiredChallenges(ctx context.Context, before time.Time) (int, error) {
	const op = "storage.DeleteExpiredChallenges"
	if err := checkCtx(ctx, op); err != nil {
		return 0, err
	}

	res, err := s.DB.ExecContext(ctx, `DELETE FROM verification_sessions WHERE expires_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(n), nil
}
