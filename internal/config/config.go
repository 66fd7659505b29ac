// Package config предоставялет структуры и функцию для парсинга и загрузки конфига
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config общая структура для хранения настроек
type Config struct {
	Env                     string `yaml:"env" env:"ENV" env-default:"local"`
	StorageConnectionString string `yaml:"storage_connection_string" env:"DATABASE_URL" env-required:"true"`
	MigrationsPath          string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"./migrations"`
	HTTPServer              `yaml:"http_server"`
	RedisConnection         `yaml:"redis_connection"`
	RabbitMQ                `yaml:"rabbitmq"`
	Session                 `yaml:"session"`
	OTP                     `yaml:"otp"`
	WhatsApp                `yaml:"whatsapp"`
	MercadoPago             `yaml:"mercadopago"`
	LLM                     `yaml:"llm"`
	Gate                    `yaml:"gate"`
	Scheduler               `yaml:"scheduler"`
	Admin                   `yaml:"admin"`
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	AddressHTTP      string        `yaml:"addresshttp" env:"HTTP_ADDRESS" env-default:":8080"`
	TimeoutHTTP      time.Duration `yaml:"timeouthttp" env:"HTTP_TIMEOUT" env-default:"15s"`
	IdleTimeout      time.Duration `yaml:"idle_timeout" env:"HTTP_IDLE_TIMEOUT" env-default:"60s"`
	SiteURL          string        `yaml:"site_url" env:"SITE_URL" env-default:"http://localhost:3000"`
	FrontendUpstream string        `yaml:"frontend_upstream" env:"FRONTEND_UPSTREAM"`
	AllowedOrigins   []string      `yaml:"allowed_origins" env:"ALLOWED_ORIGINS" env-separator:","`
	OTPRatePerSecond float64       `yaml:"otp_rate_per_second" env:"OTP_RATE_PER_SECOND" env-default:"1"`
	OTPRateBurst     int           `yaml:"otp_rate_burst" env:"OTP_RATE_BURST" env-default:"5"`
	// TrustProxyHeaders включает разбор X-Forwarded-For и X-Real-IP.
	// Только если сервис стоит за своим обратным прокси.
	TrustProxyHeaders bool `yaml:"trust_proxy_headers" env:"HTTP_TRUST_PROXY" env-default:"false"`
}

// RedisConnection структура для настройки подключения к redis.
// Пустой адрес отключает кеширование.
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis" env:"REDIS_ADDRESS"`
	Password     string        `yaml:"password" env:"REDIS_PASSWORD"`
	User         string        `yaml:"user" env:"REDIS_USER"`
	DB           int           `yaml:"db" env:"REDIS_DB"`
	MaxRetries   int           `yaml:"max_retries" env:"REDIS_MAX_RETRIES"`
	DialTimeout  time.Duration `yaml:"dial_timeout" env:"REDIS_DIAL_TIMEOUT"`
	TimeoutRedis time.Duration `yaml:"timeoutredis" env:"REDIS_TIMEOUT"`
	SearchTTL    time.Duration `yaml:"search_ttl" env:"REDIS_SEARCH_TTL" env-default:"5m"`
}

// RabbitMQ структура для подключения к брокеру сообщений.
// Пустой URL означает прямую отправку сообщений без очереди.
type RabbitMQ struct {
	RabbitMQURL        string        `yaml:"url" env:"RABBITMQ_URL"`
	RabbitMQMaxRetries int           `yaml:"max_retries" env:"RABBITMQ_MAX_RETRIES" env-default:"5"`
	RabbitMQRetryDelay time.Duration `yaml:"retry_delay" env:"RABBITMQ_RETRY_DELAY" env-default:"2s"`
}

// Session настройки сессионных токенов
type Session struct {
	SessionSecret string        `yaml:"secret" env:"SESSION_SECRET" env-required:"true"`
	UserTTL       time.Duration `yaml:"user_ttl" env:"SESSION_USER_TTL" env-default:"720h"`
	AdminTTL      time.Duration `yaml:"admin_ttl" env:"SESSION_ADMIN_TTL" env-default:"24h"`
	SecureCookie  bool          `yaml:"secure_cookie" env:"SESSION_SECURE_COOKIE" env-default:"true"`
}

// OTP настройки одноразовых кодов и пробного периода
type OTP struct {
	LoginWindow        time.Duration `yaml:"login_window" env:"OTP_LOGIN_WINDOW" env-default:"5m"`
	RegistrationWindow time.Duration `yaml:"registration_window" env:"OTP_REGISTRATION_WINDOW" env-default:"10m"`
	TrialDays          int           `yaml:"trial_days" env:"TRIAL_DAYS" env-default:"3"`
	MaxAttempts        int           `yaml:"max_attempts" env:"OTP_MAX_ATTEMPTS" env-default:"5"`
	PhoneInterval      time.Duration `yaml:"phone_interval" env:"OTP_PHONE_INTERVAL" env-default:"1m"`
	PhoneBurst         int           `yaml:"phone_burst" env:"OTP_PHONE_BURST" env-default:"3"`
}

// WhatsApp настройки шлюза сообщений
type WhatsApp struct {
	WhatsAppAPIURL   string `yaml:"api_url" env:"WHATSAPP_API_URL"`
	WhatsAppToken    string `yaml:"token" env:"WHATSAPP_TOKEN"`
	WhatsAppInstance string `yaml:"instance" env:"WHATSAPP_INSTANCE"`
}

// MercadoPago настройки платежного провайдера
type MercadoPago struct {
	MPAccessToken   string `yaml:"access_token" env:"MERCADOPAGO_ACCESS_TOKEN"`
	MPWebhookSecret string `yaml:"webhook_secret" env:"MERCADOPAGO_WEBHOOK_SECRET"`
	MPAPIURL        string `yaml:"api_url" env:"MERCADOPAGO_API_URL" env-default:"https://api.mercadopago.com"`
}

// LLM настройки языковой модели для /api/ask
type LLM struct {
	LLMAPIKey  string `yaml:"api_key" env:"LLM_API_KEY"`
	LLMBaseURL string `yaml:"base_url" env:"LLM_BASE_URL" env-default:"https://api.openai.com/v1"`
	LLMModel   string `yaml:"model" env:"LLM_MODEL" env-default:"gpt-4o-mini"`
}

// Gate наборы префиксов маршрутов для контроля доступа
type Gate struct {
	BypassPrefixes  []string `yaml:"bypass_prefixes" env:"GATE_BYPASS_PREFIXES" env-separator:"," env-default:"/api/,/_next/,/static/,/favicon.ico,/metrics,/docs/,/health"`
	PublicPrefixes  []string `yaml:"public_prefixes" env:"GATE_PUBLIC_PREFIXES" env-separator:"," env-default:"/,/login,/register,/verify,/pricing,/payment,/terms,/privacy,/admin/login"`
	AdminPrefixes   []string `yaml:"admin_prefixes" env:"GATE_ADMIN_PREFIXES" env-separator:"," env-default:"/admin"`
	PremiumPrefixes []string `yaml:"premium_prefixes" env:"GATE_PREMIUM_PREFIXES" env-separator:"," env-default:"/flashcards,/quiz,/search,/ask,/laws"`
	EntryPath       string   `yaml:"entry_path" env:"GATE_ENTRY_PATH" env-default:"/login"`
	AdminEntryPath  string   `yaml:"admin_entry_path" env:"GATE_ADMIN_ENTRY_PATH" env-default:"/admin/login"`
	PaymentPath     string   `yaml:"payment_path" env:"GATE_PAYMENT_PATH" env-default:"/payment"`
}

// Scheduler настройки фонового планировщика
type Scheduler struct {
	SweepInterval time.Duration `yaml:"sweep_interval" env:"SCHEDULER_SWEEP_INTERVAL" env-default:"1h"`
	ReminderLead  time.Duration `yaml:"reminder_lead" env:"SCHEDULER_REMINDER_LEAD" env-default:"24h"`
}

// Admin учётная запись администратора, создаваемая при старте, если её нет.
// Пустой email отключает создание.
type Admin struct {
	AdminEmail    string `yaml:"email" env:"ADMIN_EMAIL"`
	AdminPassword string `yaml:"password" env:"ADMIN_PASSWORD"`
	AdminPhone    string `yaml:"phone" env:"ADMIN_PHONE"`
}

// Load читает конфиг из файла (если путь задан) и переменных окружения.
func Load(configPath string) (*Config, error) {
	const op = "config.Load"
	var cfg Config

	if configPath == "" {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return &cfg, nil
	}

	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: file %s does not exist", op, configPath)
	}
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &cfg, nil
}

// MustLoad функция для загрузки конфига, путь к файлу берётся из CONFIG_PATH.
// Без CONFIG_PATH конфиг собирается только из переменных окружения.
func MustLoad() *Config {
	cfg, err := Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return cfg
}

// String печатает конфиг без секретов.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"HTTPServer:\n"+
			"  Address: %s\n"+
			"  Timeout: %s\n"+
			"  IdleTimeout: %s\n"+
			"  SiteURL: %s\n"+
			"  TrustProxyHeaders: %t\n"+
			"RedisConnection:\n"+
			"  Addr: %s\n"+
			"  DB: %d\n"+
			"RabbitMQ configured: %t\n"+
			"Session:\n"+
			"  UserTTL: %s\n"+
			"  AdminTTL: %s\n"+
			"WhatsApp configured: %t\n"+
			"MercadoPago configured: %t\n"+
			"LLM configured: %t\n",
		c.Env,
		c.AddressHTTP,
		c.TimeoutHTTP,
		c.IdleTimeout,
		c.SiteURL,
		c.TrustProxyHeaders,
		c.AddressRedis,
		c.DB,
		c.RabbitMQURL != "",
		c.UserTTL,
		c.AdminTTL,
		c.WhatsAppToken != "",
		c.MPAccessToken != "",
		c.LLMAPIKey != "",
	)
}
