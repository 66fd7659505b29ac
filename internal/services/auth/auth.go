// Package services содержит логику входа по одноразовому коду из WhatsApp:
// регистрацию с пробным периодом, выпуск и проверку кодов, выдачу
// сессионных токенов и вход администратора по паролю.
package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/estudarpro/estudar/internal/access"
	"github.com/estudarpro/estudar/internal/lib/otp"
	"github.com/estudarpro/estudar/internal/lib/password"
	"github.com/estudarpro/estudar/internal/lib/session"
	"github.com/estudarpro/estudar/internal/lib/sl"
	"github.com/estudarpro/estudar/internal/metrics"
	"github.com/estudarpro/estudar/internal/models"
	"github.com/estudarpro/estudar/internal/storage"
)

var (
	// ErrInvalidPhone номер нельзя привести к формату с кодом страны.
	ErrInvalidPhone = otp.ErrInvalidPhone
	// ErrInvalidCode код не из шести цифр, хранилище не запрашивается.
	ErrInvalidCode = otp.ErrInvalidCode
	// ErrInvalidOrExpiredCode код не совпал, истёк, уже использован или вытеснен более новым.
	ErrInvalidOrExpiredCode = errors.New("invalid or expired code")
	// ErrUserExists телефон или email уже зарегистрированы.
	ErrUserExists = errors.New("user already exists")
	// ErrInvalidCredentials неверный email или пароль администратора.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthenticated токен отсутствует, повреждён или устарел.
	ErrUnauthenticated = errors.New("not authenticated")
	// ErrTooManyRequests на телефон уже отправлено слишком много кодов.
	ErrTooManyRequests = errors.New("too many codes requested for this phone")
)

// DefaultMaxAttempts неверных вводов, после которых код перестаёт приниматься.
const DefaultMaxAttempts = 5

// Repository описывает хранилище пользователей и одноразовых вызовов.
type Repository interface {
	CreateUser(ctx context.Context, user models.User) (string, error)
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByPhone(ctx context.Context, phone string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UserExists(ctx context.Context, phone string, email *string) (bool, error)
	MarkVerified(ctx context.Context, id string, now time.Time) (*models.User, error)

	CreateChallenge(ctx context.Context, v models.VerificationSession) (string, error)
	GetChallenge(ctx context.Context, id string) (*models.VerificationSession, error)
	LatestActiveChallenge(ctx context.Context, phone string, now time.Time) (*models.VerificationSession, error)
	ConsumeChallenge(ctx context.Context, id string, maxAttempts int) (bool, error)
	FailChallenge(ctx context.Context, id string) (int, error)
}

// Messenger доставляет текст на телефон.
type Messenger interface {
	Send(ctx context.Context, phone, text string) error
}

// Limiter ограничивает частоту выпуска кодов по ключу.
type Limiter interface {
	Allow(key string) bool
}

// Options сроки действия кодов, сессий и пробного периода.
type Options struct {
	LoginWindow        time.Duration
	RegistrationWindow time.Duration
	TrialDays          int
	UserTTL            time.Duration
	// MaxAttempts неверных вводов на один код, 0 означает DefaultMaxAttempts.
	MaxAttempts int
	// PhoneLimiter ограничивает выпуск кодов на нормализованный телефон.
	PhoneLimiter Limiter
}

// Registration результат регистрации.
type Registration struct {
	User           *models.User
	VerificationID string
	CodeSent       bool
}

// Verification результат успешной проверки кода.
type Verification struct {
	User  *models.User
	Token string
}

// AuthService отвечает за регистрацию и вход по одноразовому коду.
type AuthService struct {
	repo      Repository
	messenger Messenger
	codec     *session.Codec
	opts      Options
	log       *slog.Logger
	now       func() time.Time
}

// NewAuthService создаёт новый экземпляр AuthService.
func NewAuthService(log *slog.Logger, repo Repository, messenger Messenger, codec *session.Codec, opts Options) *AuthService {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	return &AuthService{
		repo:      repo,
		messenger: messenger,
		codec:     codec,
		opts:      opts,
		log:       log,
		now:       time.Now,
	}
}

func (s *AuthService) trialLength() time.Duration {
	return time.Duration(s.opts.TrialDays) * 24 * time.Hour
}

// Register создаёт студента с пробным периодом и отправляет код подтверждения.
// Пользователь уже создан, поэтому сбой выпуска или отправки кода не отменяет
// регистрацию: CodeSent будет false, а код запрашивается через Resend.
func (s *AuthService) Register(ctx context.Context, name, email, rawPhone string) (*Registration, error) {
	const op = "services.auth.Register"

	phone, err := otp.NormalizePhone(rawPhone)
	if err != nil {
		return nil, err
	}
	var emailPtr *string
	if email = strings.ToLower(strings.TrimSpace(email)); email != "" {
		emailPtr = &email
	}

	exists, err := s.repo.UserExists(ctx, phone, emailPtr)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if exists {
		return nil, ErrUserExists
	}

	now := s.now().UTC()
	user := models.NewTrialUser(strings.TrimSpace(name), phone, emailPtr, now, s.trialLength())
	id, err := s.repo.CreateUser(ctx, user)
	if err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	user.ID = id

	challengeID, sent, err := s.issue(ctx, phone, user.Name, models.PurposeRegistration, s.opts.RegistrationWindow)
	if err != nil {
		s.log.Error("registration code not issued", slog.String("user_id", id), sl.Phone(phone), sl.Err(err))
		return &Registration{User: &user}, nil
	}
	return &Registration{User: &user, VerificationID: challengeID, CodeSent: sent}, nil
}

// Initiate выпускает код входа. Предыдущие коды не отзываются, но при проверке
// принимается только самый свежий.
func (s *AuthService) Initiate(ctx context.Context, name, rawPhone string) (string, error) {
	const op = "services.auth.Initiate"

	phone, err := otp.NormalizePhone(rawPhone)
	if err != nil {
		return "", err
	}
	id, _, err := s.issue(ctx, phone, strings.TrimSpace(name), models.PurposeLogin, s.opts.LoginWindow)
	if errors.Is(err, ErrTooManyRequests) {
		return "", err
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

// Resend всегда выпускает новый код. Для неподтверждённой регистрации
// используется окно регистрации, иначе окно входа.
func (s *AuthService) Resend(ctx context.Context, rawPhone string) (string, error) {
	const op = "services.auth.Resend"

	phone, err := otp.NormalizePhone(rawPhone)
	if err != nil {
		return "", err
	}

	purpose, window, name := models.PurposeLogin, s.opts.LoginWindow, ""
	user, err := s.repo.GetUserByPhone(ctx, phone)
	switch {
	case err == nil:
		name = user.Name
		if !user.IsVerified {
			purpose, window = models.PurposeRegistration, s.opts.RegistrationWindow
		}
	case !errors.Is(err, storage.ErrNotFound):
		return "", fmt.Errorf("%s: %w", op, err)
	}

	id, _, err := s.issue(ctx, phone, name, purpose, window)
	if errors.Is(err, ErrTooManyRequests) {
		return "", err
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

// issue сохраняет новый вызов и отправляет код. Возвращает признак успешной отправки.
func (s *AuthService) issue(ctx context.Context, phone, name, purpose string, window time.Duration) (string, bool, error) {
	if s.opts.PhoneLimiter != nil && !s.opts.PhoneLimiter.Allow(phone) {
		metrics.OTPEvents.WithLabelValues("throttled").Inc()
		s.log.Warn("verification code throttled", sl.Phone(phone))
		return "", false, ErrTooManyRequests
	}
	code, err := otp.GenerateCode()
	if err != nil {
		return "", false, err
	}
	now := s.now().UTC()
	id, err := s.repo.CreateChallenge(ctx, models.VerificationSession{
		Phone:     phone,
		Name:      name,
		Code:      code,
		Purpose:   purpose,
		ExpiresAt: now.Add(window),
		CreatedAt: now,
	})
	if err != nil {
		return "", false, err
	}
	metrics.OTPEvents.WithLabelValues("issued").Inc()

	text := fmt.Sprintf("Seu código Estudar.Pro é %s. Ele expira em %d minutos.", code, int(window.Minutes()))
	if err := s.messenger.Send(ctx, phone, text); err != nil {
		metrics.OTPEvents.WithLabelValues("dispatch_failed").Inc()
		s.log.Warn("failed to dispatch verification code",
			slog.String("verification_id", id), sl.Phone(phone), sl.Err(err))
		return id, false, nil
	}
	return id, true, nil
}

// Verify проверяет код. Принимается только самый свежий действующий вызов
// для телефона; при указанном handle он обязан совпадать с этим вызовом.
// После MaxAttempts неверных вводов вызов больше не принимается.
// Успешная проверка использует вызов, создаёт пользователя при первом входе,
// отмечает телефон подтверждённым и выпускает сессионный токен.
func (s *AuthService) Verify(ctx context.Context, handle, rawPhone, code string) (*Verification, error) {
	const op = "services.auth.Verify"

	if err := otp.ValidateCode(code); err != nil {
		return nil, err
	}

	var phone string
	switch {
	case rawPhone != "":
		p, err := otp.NormalizePhone(rawPhone)
		if err != nil {
			return nil, err
		}
		phone = p
	case handle != "":
		ch, err := s.repo.GetChallenge(ctx, handle)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil, s.reject()
			}
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		phone = ch.Phone
	default:
		return nil, ErrInvalidPhone
	}

	now := s.now().UTC()
	challenge, err := s.repo.LatestActiveChallenge(ctx, phone, now)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, s.reject()
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if handle != "" && handle != challenge.ID {
		return nil, s.reject()
	}
	if challenge.Exhausted(s.opts.MaxAttempts) {
		return nil, s.reject()
	}
	if subtle.ConstantTimeCompare([]byte(challenge.Code), []byte(code)) != 1 {
		attempts, err := s.repo.FailChallenge(ctx, challenge.ID)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			s.log.Error("failed to count verification attempt",
				slog.String("verification_id", challenge.ID), sl.Err(err))
		}
		if attempts >= s.opts.MaxAttempts {
			metrics.OTPEvents.WithLabelValues("locked").Inc()
			s.log.Warn("verification code locked after failed attempts",
				slog.String("verification_id", challenge.ID), sl.Phone(phone))
		}
		return nil, s.reject()
	}
	consumed, err := s.repo.ConsumeChallenge(ctx, challenge.ID, s.opts.MaxAttempts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !consumed {
		return nil, s.reject()
	}

	user, err := s.repo.GetUserByPhone(ctx, phone)
	if errors.Is(err, storage.ErrNotFound) {
		fresh := models.NewTrialUser(challenge.Name, phone, nil, now, s.trialLength())
		var id string
		id, err = s.repo.CreateUser(ctx, fresh)
		fresh.ID = id
		user = &fresh
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	user, err = s.repo.MarkVerified(ctx, user.ID, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	token, err := s.IssueToken(user)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	metrics.OTPEvents.WithLabelValues("verified").Inc()
	return &Verification{User: user, Token: token}, nil
}

func (s *AuthService) reject() error {
	metrics.OTPEvents.WithLabelValues("failed").Inc()
	return ErrInvalidOrExpiredCode
}

// IssueToken выпускает пользовательский сессионный токен. Роль переносится
// как есть, но токен годится только для cookie пользователя.
func (s *AuthService) IssueToken(user *models.User) (string, error) {
	return s.issueToken(user, session.KindUser)
}

func (s *AuthService) issueToken(user *models.User, kind string) (string, error) {
	return s.codec.Encode(session.Record{
		UserID:             user.ID,
		Phone:              user.Phone,
		Name:               user.Name,
		Role:               user.Role,
		SubscriptionStatus: user.SubscriptionStatus,
		TrialEndDate:       user.TrialEndDate,
		Kind:               kind,
	})
}

// Me возвращает пользователя по сессионному токену с пересчитанным состоянием
// пробного периода. Если хранилище недоступно, ответ строится по данным токена.
func (s *AuthService) Me(ctx context.Context, token string) (*models.User, error) {
	rec, err := s.codec.Authenticate(token, session.KindUser, s.opts.UserTTL)
	if err != nil {
		return nil, ErrUnauthenticated
	}

	now := s.now().UTC()
	user, err := s.repo.GetUser(ctx, rec.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrUnauthenticated
		}
		s.log.Warn("user store unavailable, answering from session claims", sl.Err(err))
		user = &models.User{
			ID:                 rec.UserID,
			Name:               rec.Name,
			Phone:              rec.Phone,
			Role:               rec.Role,
			SubscriptionStatus: rec.SubscriptionStatus,
			TrialEndDate:       rec.TrialEndDate,
			IsVerified:         true,
		}
	}
	user.Refresh(now)
	return user, nil
}

// AdminLogin проверяет пароль администратора и выпускает административный токен.
func (s *AuthService) AdminLogin(ctx context.Context, email, rawPassword string) (*models.User, string, error) {
	const op = "services.auth.AdminLogin"

	user, err := s.repo.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("%s: %w", op, err)
	}
	if user.PasswordHash == "" || !access.Can(user.Role, access.CapAdmin) {
		return nil, "", ErrInvalidCredentials
	}
	if err := password.CompareHash(user.PasswordHash, rawPassword); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.issueToken(user, session.KindAdmin)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", op, err)
	}
	return user, token, nil
}

// EnsureAdmin создаёт учётную запись администратора, если пользователя
// с таким email ещё нет. Существующая запись не меняется.
func (s *AuthService) EnsureAdmin(ctx context.Context, email, rawPassword, rawPhone string) error {
	const op = "services.auth.EnsureAdmin"

	email = strings.TrimSpace(email)
	_, err := s.repo.GetUserByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%s: %w", op, err)
	}

	phone, err := otp.NormalizePhone(rawPhone)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	hash, err := password.GetHash(rawPassword)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	now := s.now().UTC()
	_, err = s.repo.CreateUser(ctx, models.User{
		Name:               "Administrador",
		Phone:              phone,
		Email:              &email,
		PasswordHash:       hash,
		Role:               models.RoleAdmin,
		SubscriptionStatus: models.StatusActive,
		TrialStartDate:     now,
		TrialEndDate:       now,
		IsTrialExpired:     true,
		IsVerified:         true,
	})
	if err != nil && !errors.Is(err, storage.ErrAlreadyExists) {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("admin account created", slog.String("email", email))
	return nil
}
