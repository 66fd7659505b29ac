package estudar

import (
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/estudarpro/estudar/internal/config"
	"github.com/estudarpro/estudar/internal/http/handlers/admin/plans"
	"github.com/estudarpro/estudar/internal/http/handlers/admin/settings"
	"github.com/estudarpro/estudar/internal/http/handlers/admin/stats"
	"github.com/estudarpro/estudar/internal/http/handlers/admin/users"
	"github.com/estudarpro/estudar/internal/http/handlers/auth/adminlogin"
	"github.com/estudarpro/estudar/internal/http/handlers/auth/logout"
	"github.com/estudarpro/estudar/internal/http/handlers/auth/me"
	"github.com/estudarpro/estudar/internal/http/handlers/auth/register"
	"github.com/estudarpro/estudar/internal/http/handlers/auth/resend"
	"github.com/estudarpro/estudar/internal/http/handlers/auth/sendcode"
	"github.com/estudarpro/estudar/internal/http/handlers/auth/verify"
	"github.com/estudarpro/estudar/internal/http/handlers/health"
	"github.com/estudarpro/estudar/internal/http/handlers/payment/paymentcreate"
	"github.com/estudarpro/estudar/internal/http/handlers/payment/paymentwebhook"
	publicplans "github.com/estudarpro/estudar/internal/http/handlers/plans"
	"github.com/estudarpro/estudar/internal/http/handlers/search/ask"
	"github.com/estudarpro/estudar/internal/http/handlers/search/lawsearch"
	"github.com/estudarpro/estudar/internal/http/middlewarectx"
	"github.com/estudarpro/estudar/internal/http/response"
	"github.com/estudarpro/estudar/internal/metrics"
	adminservice "github.com/estudarpro/estudar/internal/services/admin"
	askservice "github.com/estudarpro/estudar/internal/services/ask"
	authservice "github.com/estudarpro/estudar/internal/services/auth"
	"github.com/estudarpro/estudar/internal/services/payment"
	searchservice "github.com/estudarpro/estudar/internal/services/search"

	// swagger-документация
	_ "github.com/estudarpro/estudar/docs"
)

// Services сервисы, которые обслуживают маршруты.
type Services struct {
	Auth    *authservice.AuthService
	Search  *searchservice.SearchService
	Ask     *askservice.AskService
	Admin   *adminservice.AdminService
	Payment *payment.PaymentService
}

// Deps инфраструктура маршрутизатора.
type Deps struct {
	Gate          middlewarectx.Evaluator
	Authenticator middlewarectx.Authenticator
	Limiter       middlewarectx.KeyLimiter
	DB            health.Pinger
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, cfg *config.Config, svc Services, deps Deps) {
	// Глобальные middleware
	r.Use(middleware.RequestID)
	if cfg.TrustProxyHeaders {
		// Иначе X-Forwarded-For подставляет сам клиент и обходит лимиты по IP
		r.Use(middleware.RealIP)
	}
	r.Use(
		middleware.Logger,
		middleware.Recoverer,
		metrics.Middleware,
		cors.Handler(cors.Options{
			AllowedOrigins:   allowedOrigins(cfg),
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
			AllowCredentials: true,
			MaxAge:           300,
		}),
		middlewarectx.Gate(logger, deps.Gate),
	)

	secure := cfg.SecureCookie
	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			// Выпуск кодов и их проверка ограничены по IP
			r.Group(func(r chi.Router) {
				r.Use(middlewarectx.RateLimitMiddleware(logger, deps.Limiter))
				r.Post("/register", register.New(logger, svc.Auth).ServeHTTP)
				r.Post("/whatsapp/send", sendcode.New(logger, svc.Auth).ServeHTTP)
				r.Post("/resend", resend.New(logger, svc.Auth).ServeHTTP)
				verifyHandler := verify.New(logger, svc.Auth, cfg.UserTTL, secure)
				r.Post("/verify-registration", verifyHandler.ServeHTTP)
				r.Post("/whatsapp/verify", verifyHandler.ServeHTTP)
				r.Post("/admin/login", adminlogin.New(logger, svc.Auth, cfg.AdminTTL, secure).ServeHTTP)
			})
			r.Get("/me", me.New(logger, svc.Auth).ServeHTTP)
			r.Post("/logout", logout.New(secure).ServeHTTP)
		})

		searchHandler := lawsearch.New(logger, svc.Search)
		r.Get("/search", searchHandler.ServeHTTP)
		r.Post("/search", searchHandler.ServeHTTP)
		r.Get("/plans", publicplans.New(logger, svc.Admin).ServeHTTP)

		// Webhook без сессии, подлинность проверяется подписью
		r.Post("/webhooks/mercadopago", paymentwebhook.New(logger, svc.Payment).ServeHTTP)

		// Группа с пользовательской сессией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.RequireUser(logger, deps.Authenticator, cfg.UserTTL))
			r.Post("/ask", ask.New(logger, svc.Ask).ServeHTTP)
			r.Post("/payment/create-preference", paymentcreate.New(logger, svc.Payment).ServeHTTP)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middlewarectx.RequireAdmin(logger, deps.Authenticator, cfg.AdminTTL))
			r.Get("/plans", plans.NewList(logger, svc.Admin).ServeHTTP)
			r.Post("/plans", plans.NewCreate(logger, svc.Admin).ServeHTTP)
			r.Put("/plans/{id}", plans.NewUpdate(logger, svc.Admin).ServeHTTP)
			r.Delete("/plans/{id}", plans.NewDelete(logger, svc.Admin).ServeHTTP)
			settingsHandler := settings.New(logger, svc.Admin)
			r.Get("/settings", settingsHandler.List)
			r.Put("/settings", settingsHandler.Set)
			r.Get("/stats", stats.New(logger, svc.Admin).ServeHTTP)
			r.Get("/users", users.New(logger, svc.Admin).ServeHTTP)
		})

		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, response.Error("not found"))
		})
	})

	r.Get("/health", health.New(logger, deps.DB).ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)

	// Остальные пути принадлежат веб-интерфейсу
	r.NotFound(frontend(logger, cfg.FrontendUpstream))
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.AllowedOrigins) > 0 {
		return cfg.AllowedOrigins
	}
	return []string{cfg.SiteURL}
}

// frontend проксирует страницы на сервер веб-интерфейса. Без адреса отвечает 404.
func frontend(logger *slog.Logger, upstream string) http.HandlerFunc {
	if upstream == "" {
		return http.NotFound
	}
	target, err := url.Parse(upstream)
	if err != nil {
		logger.Error("invalid frontend upstream, pages disabled", slog.String("upstream", upstream))
		return http.NotFound
	}
	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logger.Error("frontend upstream failed", slog.String("path", r.URL.Path), slog.String("error", err.Error()))
		w.WriteHeader(http.StatusBadGateway)
	}
	return proxy.ServeHTTP
}
