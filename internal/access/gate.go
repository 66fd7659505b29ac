package access

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/estudarpro/estudar/internal/lib/session"
	"github.com/estudarpro/estudar/internal/models"
	"github.com/estudarpro/estudar/internal/storage"
)

// Outcome итог проверки доступа.
type Outcome int

const (
	// Allow пропустить запрос.
	Allow Outcome = iota
	// Redirect перенаправить на Location.
	Redirect
	// Error хранилище ответило ошибкой, решение принимает вызывающий код.
	Error
)

func (o Outcome) String() string {
	switch o {
	case Allow:
		return "allow"
	case Redirect:
		return "redirect"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Decision решение шлюза по одному запросу.
type Decision struct {
	Outcome  Outcome
	Class    Class
	Location string
	Identity *Identity
	Err      error
}

// UserStore источник актуального состояния пользователя.
type UserStore interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
}

// Gate проверяет доступ к страницам по cookie сессии.
type Gate struct {
	policy   Policy
	codec    *session.Codec
	users    UserStore
	userTTL  time.Duration
	adminTTL time.Duration
	now      func() time.Time
}

// NewGate создаёт шлюз.
func NewGate(policy Policy, codec *session.Codec, users UserStore, userTTL, adminTTL time.Duration) *Gate {
	return &Gate{
		policy:   policy,
		codec:    codec,
		users:    users,
		userTTL:  userTTL,
		adminTTL: adminTTL,
		now:      time.Now,
	}
}

// Evaluate принимает решение по запросу. Ошибка хранилища возвращается
// как Outcome Error вместе с личностью из токена.
func (g *Gate) Evaluate(r *http.Request) Decision {
	path := r.URL.Path
	class := g.policy.Classify(path)
	now := g.now()

	switch class {
	case ClassBypass, ClassPublic:
		return Decision{Outcome: Allow, Class: class}

	case ClassAdmin:
		rec := g.authenticate(r, session.AdminCookie, g.adminTTL, now)
		if rec == nil || !Can(rec.Role, CapAdmin) {
			return Decision{Outcome: Redirect, Class: class, Location: withReturn(g.policy.AdminEntryPath, path)}
		}
		return Decision{Outcome: Allow, Class: class, Identity: IdentityFromRecord(rec)}
	}

	rec := g.authenticate(r, session.UserCookie, g.userTTL, now)
	if rec == nil {
		return Decision{Outcome: Redirect, Class: class, Location: withReturn(g.policy.EntryPath, path)}
	}
	identity := IdentityFromRecord(rec)

	if class != ClassPremium {
		return Decision{Outcome: Allow, Class: class, Identity: identity}
	}

	user, err := g.users.GetUser(r.Context(), rec.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Decision{Outcome: Redirect, Class: class, Location: withReturn(g.policy.EntryPath, path)}
		}
		return Decision{Outcome: Error, Class: class, Identity: identity, Err: err}
	}
	if user.RequiresPayment(now) {
		return Decision{Outcome: Redirect, Class: class, Location: g.policy.PaymentPath}
	}

	user.Refresh(now)
	identity.Role = user.Role
	identity.SubscriptionStatus = user.SubscriptionStatus
	return Decision{Outcome: Allow, Class: class, Identity: identity}
}

// authenticate принимает только токен того класса, который соответствует cookie:
// пользовательский токен администратора не открывает /admin.
func (g *Gate) authenticate(r *http.Request, cookie string, maxAge time.Duration, now time.Time) *session.Record {
	rec, err := g.codec.Decode(session.FromRequest(r, cookie))
	if err != nil || rec.Kind != session.KindForCookie(cookie) || session.IsExpired(*rec, maxAge, now) {
		return nil
	}
	return rec
}

func withReturn(entry, path string) string {
	return entry + "?redirect=" + url.QueryEscape(path)
}
