// Package middlewarectx содержит HTTP middleware контроля доступа: шлюз
// страниц по cookie сессии, проверку сессии для API и ограничение частоты запросов.
package middlewarectx

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"

	"github.com/estudarpro/estudar/internal/access"
	"github.com/estudarpro/estudar/internal/lib/sl"
	"github.com/estudarpro/estudar/internal/metrics"
)

// Evaluator принимает решение о доступе к запросу.
type Evaluator interface {
	Evaluate(r *http.Request) access.Decision
}

// Gate применяет решение шлюза доступа.
//
// Входящие заголовки X-User-* всегда удаляются и выставляются заново только
// из проверенной сессии. Outcome Error преобразуется в Allow только здесь:
// при недоступном хранилище пользователей запрос пропускается с личностью
// из подписанного токена, а событие пишется в лог и метрику.
func Gate(log *slog.Logger, gate Evaluator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.Gate"

			access.StripHeaders(r.Header)
			d := gate.Evaluate(r)

			switch d.Outcome {
			case access.Redirect:
				metrics.GateDecisions.WithLabelValues("redirect").Inc()
				http.Redirect(w, r, d.Location, http.StatusFound)
				return
			case access.Error:
				metrics.GateDecisions.WithLabelValues("error_allowed").Inc()
				log.Warn("user store unavailable, allowing request",
					slog.String("op", op),
					slog.String("request_id", middleware.GetReqID(r.Context())),
					slog.String("path", r.URL.Path),
					slog.String("class", d.Class.String()),
					sl.Err(d.Err),
				)
			default:
				metrics.GateDecisions.WithLabelValues("allow").Inc()
			}

			if d.Identity != nil {
				d.Identity.Apply(r.Header)
				r = r.WithContext(access.WithIdentity(r.Context(), d.Identity))
			}
			next.ServeHTTP(w, r)
		})
	}
}
