// Package session реализует кодек сессионного токена: пользовательские данные
// и сведения о пробном периоде упаковываются в подписанный JWT (HS256),
// который хранится в httpOnly-cookie. Серверного хранилища сессий нет.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// UserMaxAge срок жизни пользовательской сессии.
	UserMaxAge = 30 * 24 * time.Hour
	// AdminMaxAge срок жизни административной сессии.
	AdminMaxAge = 24 * time.Hour
)

// ErrMalformedToken возвращается, если токен не удалось разобрать
// или его подпись не сошлась.
var ErrMalformedToken = errors.New("malformed session token")

// ErrExpiredToken возвращается, если возраст токена превысил допустимый.
var ErrExpiredToken = errors.New("session token expired")

// ErrWrongKind токен выпущен для другого класса сессии.
var ErrWrongKind = errors.New("session token of another kind")

const (
	// KindUser сессия после входа по одноразовому коду.
	KindUser = "user"
	// KindAdmin сессия после входа администратора по паролю.
	KindAdmin = "admin"
)

// Record набор данных, который переносит токен.
type Record struct {
	UserID             string    `json:"userId"`
	Phone              string    `json:"phone"`
	Name               string    `json:"name"`
	Role               string    `json:"role"`
	SubscriptionStatus string    `json:"subscriptionStatus"`
	TrialEndDate       time.Time `json:"trialEndDate"`
	Kind               string    `json:"kind"`      // KindUser или KindAdmin
	Timestamp          int64     `json:"timestamp"` // Unix-миллисекунды момента выпуска
}

// IssueTime возвращает момент выпуска токена.
func (r Record) IssueTime() time.Time {
	return time.UnixMilli(r.Timestamp)
}

type claims struct {
	Record
	jwt.RegisteredClaims
}

// Codec подписывает и проверяет токены общим секретом.
type Codec struct {
	secret []byte
	now    func() time.Time
}

// NewCodec создаёт кодек с секретом подписи.
func NewCodec(secret string) *Codec {
	return &Codec{
		secret: []byte(secret),
		now:    time.Now,
	}
}

// WithClock возвращает копию кодека с другим источником времени.
func (c *Codec) WithClock(now func() time.Time) *Codec {
	cp := *c
	cp.now = now
	return &cp
}

// Encode проставляет свежую метку времени и возвращает подписанный токен.
func (c *Codec) Encode(rec Record) (string, error) {
	const op = "session.Encode"
	now := c.now()
	rec.Timestamp = now.UnixMilli()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Record: rec,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  rec.UserID,
			IssuedAt: jwt.NewNumericDate(now),
		},
	})
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return signed, nil
}

// Decode разбирает токен. Любая ошибка разбора или подписи приводит
// к ErrMalformedToken; вызывающий код трактует её как "не аутентифицирован".
func (c *Codec) Decode(token string) (*Record, error) {
	const op = "session.Decode"
	if token == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrMalformedToken)
	}

	parsed, err := jwt.ParseWithClaims(token, &claims{}, func(_ *jwt.Token) (any, error) {
		return c.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrMalformedToken, err)
	}

	cl, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid || cl.UserID == "" || cl.Timestamp == 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrMalformedToken)
	}
	rec := cl.Record
	return &rec, nil
}

// IsExpired сообщает, превысил ли возраст токена maxAge на момент now.
func IsExpired(rec Record, maxAge time.Duration, now time.Time) bool {
	return now.UnixMilli()-rec.Timestamp > maxAge.Milliseconds()
}

// Authenticate разбирает токен, проверяет класс сессии и возраст.
// Токен другого класса не принимается, даже если роль подходит.
func (c *Codec) Authenticate(token, kind string, maxAge time.Duration) (*Record, error) {
	const op = "session.Authenticate"
	rec, err := c.Decode(token)
	if err != nil {
		return nil, err
	}
	if rec.Kind != kind {
		return nil, fmt.Errorf("%s: %w", op, ErrWrongKind)
	}
	if IsExpired(*rec, maxAge, c.now()) {
		return nil, fmt.Errorf("%s: %w", op, ErrExpiredToken)
	}
	return rec, nil
}

// KindForCookie класс сессии, который ожидается в cookie с именем name.
func KindForCookie(name string) string {
	if name == AdminCookie {
		return KindAdmin
	}
	return KindUser
}
