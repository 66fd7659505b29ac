package access

import (
	"context"
	"net/http"

	"github.com/estudarpro/estudar/internal/lib/session"
)

// Заголовки, которыми шлюз передаёт личность пользователя дальше.
const (
	HeaderUserID             = "X-User-Id"
	HeaderUserRole           = "X-User-Role"
	HeaderUserPhone          = "X-User-Phone"
	HeaderSubscriptionStatus = "X-Subscription-Status"
)

var identityHeaders = []string{HeaderUserID, HeaderUserRole, HeaderUserPhone, HeaderSubscriptionStatus}

// Identity личность вошедшего пользователя.
type Identity struct {
	UserID             string
	Name               string
	Role               string
	Phone              string
	SubscriptionStatus string
}

// IdentityFromRecord строит личность из данных токена.
func IdentityFromRecord(rec *session.Record) *Identity {
	return &Identity{
		UserID:             rec.UserID,
		Name:               rec.Name,
		Role:               rec.Role,
		Phone:              rec.Phone,
		SubscriptionStatus: rec.SubscriptionStatus,
	}
}

// StripHeaders удаляет заголовки личности, пришедшие от клиента.
func StripHeaders(h http.Header) {
	for _, name := range identityHeaders {
		h.Del(name)
	}
}

// Apply записывает личность в заголовки запроса.
func (id *Identity) Apply(h http.Header) {
	h.Set(HeaderUserID, id.UserID)
	h.Set(HeaderUserRole, id.Role)
	h.Set(HeaderUserPhone, id.Phone)
	h.Set(HeaderSubscriptionStatus, id.SubscriptionStatus)
}

type ctxKey struct{}

// WithIdentity кладёт личность в контекст.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// IdentityFrom достаёт личность из контекста.
func IdentityFrom(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(*Identity)
	return id, ok && id != nil
}
