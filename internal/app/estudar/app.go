// Package estudar собирает HTTP-приложение: хранилище, кеш, очередь сообщений,
// сервисы, контроль доступа и маршруты.
package estudar

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"
	"golang.org/x/time/rate"

	"github.com/estudarpro/estudar/internal/access"
	"github.com/estudarpro/estudar/internal/cache"
	"github.com/estudarpro/estudar/internal/config"
	"github.com/estudarpro/estudar/internal/dispatch"
	"github.com/estudarpro/estudar/internal/lib/rabbitmq"
	"github.com/estudarpro/estudar/internal/lib/ratelimit"
	"github.com/estudarpro/estudar/internal/lib/session"
	"github.com/estudarpro/estudar/internal/lib/sl"
	"github.com/estudarpro/estudar/internal/llm"
	"github.com/estudarpro/estudar/internal/mercadopago"
	"github.com/estudarpro/estudar/internal/migrations"
	adminservice "github.com/estudarpro/estudar/internal/services/admin"
	askservice "github.com/estudarpro/estudar/internal/services/ask"
	authservice "github.com/estudarpro/estudar/internal/services/auth"
	"github.com/estudarpro/estudar/internal/services/payment"
	searchservice "github.com/estudarpro/estudar/internal/services/search"
	"github.com/estudarpro/estudar/internal/storage"
	"github.com/estudarpro/estudar/internal/whatsapp"
)

// plansTTL время жизни кеша активных тарифов.
const plansTTL = 10 * time.Minute

type appCache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

type App struct {
	server *http.Server
	logger *slog.Logger
	db     *storage.Storage
	redis  *cache.Cache
	conn   *amqp.Connection
	ch     *amqp.Channel
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := storage.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		_ = db.Close()
		return nil, err
	}

	app := &App{logger: logger, db: db}

	var c appCache = cache.Noop{}
	if cfg.AddressRedis != "" {
		cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
		if err != nil {
			app.close()
			return nil, err
		}
		app.redis = cacheRedis
		c = cacheRedis
	} else {
		logger.Warn("redis not configured, caching disabled")
	}

	messenger, err := app.messenger(cfg)
	if err != nil {
		app.close()
		return nil, err
	}

	codec := session.NewCodec(cfg.SessionSecret)
	authService := authservice.NewAuthService(logger, db, messenger, codec, authservice.Options{
		LoginWindow:        cfg.LoginWindow,
		RegistrationWindow: cfg.RegistrationWindow,
		TrialDays:          cfg.TrialDays,
		UserTTL:            cfg.UserTTL,
		MaxAttempts:        cfg.MaxAttempts,
		PhoneLimiter:       ratelimit.Every(cfg.PhoneInterval, cfg.PhoneBurst),
	})
	if cfg.AdminEmail != "" {
		if err := authService.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword, cfg.AdminPhone); err != nil {
			logger.Error("failed to ensure admin account", sl.Err(err))
		}
	}

	searchService := searchservice.NewSearchService(logger, db, c, cfg.SearchTTL)
	services := Services{
		Auth:    authService,
		Search:  searchService,
		Ask:     askservice.NewAskService(logger, llm.NewClient(cfg.LLMAPIKey, cfg.LLMBaseURL, cfg.LLMModel), searchService),
		Admin:   adminservice.NewAdminService(logger, db, c, plansTTL),
		Payment: payment.New(logger, db, mercadopago.NewClient(cfg.MPAccessToken, cfg.MPAPIURL), payment.Options{
			SiteURL:       cfg.SiteURL,
			WebhookSecret: cfg.MPWebhookSecret,
		}),
	}

	policy := access.Policy{
		Bypass:         cfg.BypassPrefixes,
		Public:         cfg.PublicPrefixes,
		Admin:          cfg.AdminPrefixes,
		Premium:        cfg.PremiumPrefixes,
		EntryPath:      cfg.EntryPath,
		AdminEntryPath: cfg.AdminEntryPath,
		PaymentPath:    cfg.PaymentPath,
	}

	router := chi.NewRouter()
	RegisterRoutes(router, logger, cfg, services, Deps{
		Gate:          access.NewGate(policy, codec, db, cfg.UserTTL, cfg.AdminTTL),
		Authenticator: codec,
		Limiter:       ratelimit.New(rate.Limit(cfg.OTPRatePerSecond), cfg.OTPRateBurst),
		DB:            db,
	})

	app.server = &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return app, nil
}

// messenger выбирает способ доставки кодов: очередь, прямой вызов шлюза
// или журнал, если ни то ни другое не настроено.
func (a *App) messenger(cfg *config.Config) (authservice.Messenger, error) {
	if cfg.RabbitMQURL != "" {
		conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
		if err != nil {
			return nil, err
		}
		ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetMessageQueues())
		if err != nil {
			_ = conn.Close()
			return nil, err
		}
		a.conn, a.ch = conn, ch
		return dispatch.NewOTPMessenger(rabbitmq.NewPublisher(ch)), nil
	}

	wa := whatsapp.NewClient(cfg.WhatsAppAPIURL, cfg.WhatsAppToken, cfg.WhatsAppInstance)
	if wa.Configured() {
		return wa, nil
	}
	if cfg.Env != "local" {
		a.logger.Warn("no message gateway configured, codes are only logged")
	}
	return dispatch.NewLogMessenger(a.logger), nil
}

func (a *App) close() {
	if a.ch != nil {
		if err := a.ch.Close(); err != nil {
			a.logger.Error("failed to close channel", sl.Err(err))
		}
	}
	if a.conn != nil {
		if err := a.conn.Close(); err != nil {
			a.logger.Error("failed to close connection", sl.Err(err))
		}
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	_ = a.db.Close()
}

func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		a.close()
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		a.close()
		return err
	}
}
