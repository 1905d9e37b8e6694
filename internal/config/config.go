package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/kelseyhightower/envconfig"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"

	"github.com/m04kA/SMC-HomeServiceBooking/internal/domain"
)

// EnvPrefix префикс переменных окружения с секретами (SMC_DB_PASSWORD и т.д.)
const EnvPrefix = "SMC"

// Config конфигурация сервиса
type Config struct {
	Server        ServerConfig        `toml:"server"`
	Database      DatabaseConfig      `toml:"database"`
	Logs          LogsConfig          `toml:"logs"`
	Metrics       MetricsConfig       `toml:"metrics"`
	Gateway       GatewayConfig       `toml:"gateway"`
	Notifications NotificationsConfig `toml:"notifications"`
	Redis         RedisConfig         `toml:"redis"`
	Sweeper       SweeperConfig       `toml:"sweeper"`
	Business      BusinessConfig      `toml:"business"`
	Catalog       ServiceClientConfig `toml:"catalog"`
	// пустой url отключает проверку техников в UserService
	Users ServiceClientConfig `toml:"users"`
}

// ServerConfig настройки HTTP сервера (таймауты в секундах)
type ServerConfig struct {
	HTTPPort        int `toml:"http_port"`
	ReadTimeout     int `toml:"read_timeout"`
	WriteTimeout    int `toml:"write_timeout"`
	IdleTimeout     int `toml:"idle_timeout"`
	ShutdownTimeout int `toml:"shutdown_timeout"`
	// лимит запросов вебхуков на провайдера
	WebhookRateLimit float64 `toml:"webhook_rate_limit"`
	WebhookBurst     int     `toml:"webhook_burst"`
}

// DatabaseConfig настройки PostgreSQL
type DatabaseConfig struct {
	Host            string `toml:"host"`
	Port            int    `toml:"port"`
	User            string `toml:"user"`
	Password        string `toml:"password"`
	DBName          string `toml:"dbname"`
	SSLMode         string `toml:"sslmode"`
	MaxOpenConns    int    `toml:"max_open_conns"`
	MaxIdleConns    int    `toml:"max_idle_conns"`
	ConnMaxLifetime int    `toml:"conn_max_lifetime"`
}

// DSN строка подключения для lib/pq
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

// LogsConfig настройки логирования
type LogsConfig struct {
	File  string `toml:"file"`
	Level string `toml:"level"`
}

// MetricsConfig настройки prometheus
type MetricsConfig struct {
	Enabled     bool   `toml:"enabled"`
	ServiceName string `toml:"service_name"`
	Path        string `toml:"path"`
}

// GatewayConfig настройки платежных шлюзов
type GatewayConfig struct {
	Timeout  int          `toml:"timeout"`
	Currency string       `toml:"currency"`
	Stripe   StripeConfig `toml:"stripe"`
	Omise    OmiseConfig  `toml:"omise"`
}

// TimeoutDuration таймаут вызова шлюза
func (g GatewayConfig) TimeoutDuration() time.Duration {
	return time.Duration(g.Timeout) * time.Second
}

// StripeConfig gateway-A
type StripeConfig struct {
	Enabled       bool   `toml:"enabled"`
	SecretKey     string `toml:"secret_key"`
	WebhookSecret string `toml:"webhook_secret"`
}

// OmiseConfig gateway-B
type OmiseConfig struct {
	Enabled       bool   `toml:"enabled"`
	PublicKey     string `toml:"public_key"`
	SecretKey     string `toml:"secret_key"`
	WebhookSecret string `toml:"webhook_secret"`
}

// Драйверы уведомлений
const (
	NotifierAMQP = "amqp"
	NotifierHTTP = "http"
	NotifierLog  = "log"
)

// NotificationsConfig куда отправлять уведомления
type NotificationsConfig struct {
	Driver   string `toml:"driver"`
	AMQPURL  string `toml:"amqp_url"`
	Exchange string `toml:"exchange"`
	URL      string `toml:"url"`
	Timeout  int    `toml:"timeout"`
}

// RedisConfig кеш дедупликации вебхуков
type RedisConfig struct {
	Enabled  bool   `toml:"enabled"`
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	TTLHours int    `toml:"ttl_hours"`
}

// SweeperConfig расписания фоновых задач (cron или @every)
type SweeperConfig struct {
	Enabled                      bool   `toml:"enabled"`
	QuotationExpirySchedule      string `toml:"quotation_expiry_schedule"`
	WebhookRetrySchedule         string `toml:"webhook_retry_schedule"`
	PaymentReconcileSchedule     string `toml:"payment_reconcile_schedule"`
	WebhookRetryBatch            int    `toml:"webhook_retry_batch"`
	PaymentReconcileBatch        int    `toml:"payment_reconcile_batch"`
	PaymentReconcileAfterMinutes int    `toml:"payment_reconcile_after_minutes"`
	WebhookQueuedGraceMinutes    int    `toml:"webhook_queued_grace_minutes"`
}

// BusinessConfig бизнес-параметры
type BusinessConfig struct {
	VATRate              string `toml:"vat_rate"`
	QuotationExpiryHours int    `toml:"quotation_expiry_hours"`
	WebhookMaxAttempts   int    `toml:"webhook_max_attempts"`
}

// VAT ставка НДС
func (b BusinessConfig) VAT() decimal.Decimal {
	rate, err := decimal.NewFromString(b.VATRate)
	if err != nil {
		return decimal.RequireFromString(domain.DefaultVATRate)
	}
	return rate
}

// ServiceClientConfig внешний HTTP сервис (таймаут в секундах)
type ServiceClientConfig struct {
	URL     string `toml:"url"`
	Timeout int    `toml:"timeout"`
}

// secrets переопределения из окружения
type secrets struct {
	DBPassword          string `envconfig:"DB_PASSWORD"`
	StripeSecretKey     string `envconfig:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `envconfig:"STRIPE_WEBHOOK_SECRET"`
	OmisePublicKey      string `envconfig:"OMISE_PUBLIC_KEY"`
	OmiseSecretKey      string `envconfig:"OMISE_SECRET_KEY"`
	OmiseWebhookSecret  string `envconfig:"OMISE_WEBHOOK_SECRET"`
	AMQPURL             string `envconfig:"AMQP_URL"`
	RedisPassword       string `envconfig:"REDIS_PASSWORD"`
}

// Load читает конфигурацию из toml файла, применяет значения по умолчанию и секреты из окружения
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRead, err)
	}

	return Parse(string(data))
}

// Parse разбирает конфигурацию из строки toml
func Parse(data string) (*Config, error) {
	var cfg Config
	if _, err := toml.Decode(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	cfg.applyDefaults()

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	setInt(&c.Server.HTTPPort, 8080)
	setInt(&c.Server.ReadTimeout, 15)
	setInt(&c.Server.WriteTimeout, 15)
	setInt(&c.Server.IdleTimeout, 60)
	setInt(&c.Server.ShutdownTimeout, 30)
	if c.Server.WebhookRateLimit <= 0 {
		c.Server.WebhookRateLimit = 50
	}
	setInt(&c.Server.WebhookBurst, 100)

	setInt(&c.Database.Port, 5432)
	setString(&c.Database.SSLMode, "disable")
	setInt(&c.Database.MaxOpenConns, 25)
	setInt(&c.Database.MaxIdleConns, 5)
	setInt(&c.Database.ConnMaxLifetime, 300)

	setString(&c.Logs.Level, "info")

	setString(&c.Metrics.ServiceName, "home-service-booking")
	setString(&c.Metrics.Path, "/metrics")

	setInt(&c.Gateway.Timeout, domain.DefaultGatewayTimeoutSeconds)
	setString(&c.Gateway.Currency, domain.DefaultCurrency)

	setString(&c.Notifications.Driver, NotifierLog)
	setString(&c.Notifications.Exchange, "notifications")
	setInt(&c.Notifications.Timeout, 5)

	setInt(&c.Redis.TTLHours, 72)

	setString(&c.Sweeper.QuotationExpirySchedule, "@every 5m")
	setString(&c.Sweeper.WebhookRetrySchedule, "@every 1m")
	setString(&c.Sweeper.PaymentReconcileSchedule, "@every 2m")
	setInt(&c.Sweeper.WebhookRetryBatch, 100)
	setInt(&c.Sweeper.PaymentReconcileBatch, 50)
	setInt(&c.Sweeper.PaymentReconcileAfterMinutes, 15)
	setInt(&c.Sweeper.WebhookQueuedGraceMinutes, 5)

	setString(&c.Business.VATRate, domain.DefaultVATRate)
	setInt(&c.Business.QuotationExpiryHours, domain.DefaultQuotationExpiryHours)
	setInt(&c.Business.WebhookMaxAttempts, domain.DefaultWebhookMaxAttempts)

	setInt(&c.Catalog.Timeout, 5)
	setInt(&c.Users.Timeout, 3)
}

func (c *Config) applyEnv() error {
	var s secrets
	if err := envconfig.Process(EnvPrefix, &s); err != nil {
		return fmt.Errorf("%w: %v", ErrEnv, err)
	}

	override(&c.Database.Password, s.DBPassword)
	override(&c.Gateway.Stripe.SecretKey, s.StripeSecretKey)
	override(&c.Gateway.Stripe.WebhookSecret, s.StripeWebhookSecret)
	override(&c.Gateway.Omise.PublicKey, s.OmisePublicKey)
	override(&c.Gateway.Omise.SecretKey, s.OmiseSecretKey)
	override(&c.Gateway.Omise.WebhookSecret, s.OmiseWebhookSecret)
	override(&c.Notifications.AMQPURL, s.AMQPURL)
	override(&c.Redis.Password, s.RedisPassword)

	return nil
}

// Validate проверяет согласованность конфигурации
func (c *Config) Validate() error {
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("%w: server.http_port %d is out of range", ErrInvalid, c.Server.HTTPPort)
	}

	if c.Database.Host == "" || c.Database.DBName == "" {
		return fmt.Errorf("%w: database.host and database.dbname are required", ErrInvalid)
	}

	rate, err := decimal.NewFromString(c.Business.VATRate)
	if err != nil {
		return fmt.Errorf("%w: business.vat_rate %q is not a number", ErrInvalid, c.Business.VATRate)
	}
	if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: business.vat_rate must be in [0, 1)", ErrInvalid)
	}

	if c.Business.QuotationExpiryHours > domain.MaxQuotationExpiryHours {
		return fmt.Errorf("%w: business.quotation_expiry_hours exceeds %d", ErrInvalid, domain.MaxQuotationExpiryHours)
	}

	if c.Gateway.Stripe.Enabled && (c.Gateway.Stripe.SecretKey == "" || c.Gateway.Stripe.WebhookSecret == "") {
		return fmt.Errorf("%w: gateway.stripe requires secret_key and webhook_secret", ErrInvalid)
	}

	if c.Gateway.Omise.Enabled &&
		(c.Gateway.Omise.PublicKey == "" || c.Gateway.Omise.SecretKey == "" || c.Gateway.Omise.WebhookSecret == "") {
		return fmt.Errorf("%w: gateway.omise requires public_key, secret_key and webhook_secret", ErrInvalid)
	}

	switch c.Notifications.Driver {
	case NotifierAMQP:
		if c.Notifications.AMQPURL == "" {
			return fmt.Errorf("%w: notifications.amqp_url is required for the amqp driver", ErrInvalid)
		}
	case NotifierHTTP:
		if c.Notifications.URL == "" {
			return fmt.Errorf("%w: notifications.url is required for the http driver", ErrInvalid)
		}
	case NotifierLog:
	default:
		return fmt.Errorf("%w: unknown notifications.driver %q", ErrInvalid, c.Notifications.Driver)
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("%w: redis.addr is required when redis is enabled", ErrInvalid)
	}

	if c.Catalog.URL == "" {
		return fmt.Errorf("%w: catalog.url is required", ErrInvalid)
	}

	if c.Sweeper.Enabled {
		for name, spec := range map[string]string{
			"quotation_expiry_schedule":  c.Sweeper.QuotationExpirySchedule,
			"webhook_retry_schedule":     c.Sweeper.WebhookRetrySchedule,
			"payment_reconcile_schedule": c.Sweeper.PaymentReconcileSchedule,
		} {
			if _, err := cron.ParseStandard(spec); err != nil {
				return fmt.Errorf("%w: sweeper.%s: %v", ErrInvalid, name, err)
			}
		}
	}

	return nil
}

func setInt(v *int, def int) {
	if *v == 0 {
		*v = def
	}
}

func setString(v *string, def string) {
	if *v == "" {
		*v = def
	}
}

func override(v *string, env string) {
	if env != "" {
		*v = env
	}
}
