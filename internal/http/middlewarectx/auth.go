package middlewarectx

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/estudarpro/estudar/internal/access"
	"github.com/estudarpro/estudar/internal/http/response"
	"github.com/estudarpro/estudar/internal/lib/session"
)

// Authenticator проверяет сессионный токен.
type Authenticator interface {
	Authenticate(token, kind string, maxAge time.Duration) (*session.Record, error)
}

// RequireUser пропускает запрос только с действующей пользовательской сессией
// и кладёт личность в контекст. Иначе отвечает 401.
func RequireUser(log *slog.Logger, auth Authenticator, ttl time.Duration) func(http.Handler) http.Handler {
	return requireSession(log, auth, session.UserCookie, ttl, access.CapStudy)
}

// RequireAdmin пропускает запрос только с действующей административной сессией
// и ролью, которой разрешена возможность CapAdmin. Иначе отвечает 401 или 403.
func RequireAdmin(log *slog.Logger, auth Authenticator, ttl time.Duration) func(http.Handler) http.Handler {
	return requireSession(log, auth, session.AdminCookie, ttl, access.CapAdmin)
}

func requireSession(log *slog.Logger, auth Authenticator, cookie string, ttl time.Duration, capability access.Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.requireSession"
			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			rec, err := auth.Authenticate(session.FromRequest(r, cookie), session.KindForCookie(cookie), ttl)
			if err != nil {
				log.Info("session rejected", slog.String("cookie", cookie))
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("not authenticated"))
				return
			}
			if !access.Can(rec.Role, capability) {
				log.Warn("capability denied", slog.String("user_id", rec.UserID), slog.String("role", rec.Role))
				render.Status(r, http.StatusForbidden)
				render.JSON(w, r, response.Error("access denied"))
				return
			}

			ctx := access.WithIdentity(r.Context(), access.IdentityFromRecord(rec))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
