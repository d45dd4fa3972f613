package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Checkout     CheckoutConfig
	Webhook      WebhookConfig
	Cron         CronConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.FeatureFlags.UseSQLite {
		cfg.DB.Driver = "sqlite"
	}
	if cfg.DB.Driver != "sqlite" {
		if err := cfg.DB.ensureDSN(); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SHOPSTREAM_APP_ENV" required:"true"`
	Port         string `envconfig:"SHOPSTREAM_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"SHOPSTREAM_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SHOPSTREAM_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"SHOPSTREAM_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"SHOPSTREAM_DB_DSN"`
	Driver string `envconfig:"SHOPSTREAM_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"SHOPSTREAM_DB_HOST"`
	Port     int    `envconfig:"SHOPSTREAM_DB_PORT" default:"5432"`
	User     string `envconfig:"SHOPSTREAM_DB_USER"`
	Password string `envconfig:"SHOPSTREAM_DB_PASSWORD"`
	Name     string `envconfig:"SHOPSTREAM_DB_NAME"`
	SSLMode  string `envconfig:"SHOPSTREAM_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SHOPSTREAM_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SHOPSTREAM_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SHOPSTREAM_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SHOPSTREAM_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SHOPSTREAM_REDIS_URL" required:"true"`
	Address      string        `envconfig:"SHOPSTREAM_REDIS_ADDR"`
	Password     string        `envconfig:"SHOPSTREAM_REDIS_PASSWORD"`
	DB           int           `envconfig:"SHOPSTREAM_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SHOPSTREAM_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SHOPSTREAM_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SHOPSTREAM_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SHOPSTREAM_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SHOPSTREAM_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"SHOPSTREAM_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"SHOPSTREAM_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"SHOPSTREAM_JWT_EXPIRATION_MINUTES" default:"60"`
}

// CheckoutConfig tunes the saga coordinator and the expiry reconciler.
type CheckoutConfig struct {
	PendingOrderTTL  time.Duration `envconfig:"SHOPSTREAM_PENDING_ORDER_TTL" default:"24h"`
	VariantCacheTTL  time.Duration `envconfig:"SHOPSTREAM_VARIANT_CACHE_TTL" default:"5m"`
	DefaultTaxRate   string        `envconfig:"SHOPSTREAM_DEFAULT_TAX_RATE" default:"0.20"`
	DefaultCurrency  string        `envconfig:"SHOPSTREAM_DEFAULT_CURRENCY" default:"EUR"`
}

// WebhookConfig covers the payment-provider webhook boundary.
type WebhookConfig struct {
	SigningSecret  string        `envconfig:"SHOPSTREAM_WEBHOOK_SIGNING_SECRET" required:"true"`
	IdempotencyTTL time.Duration `envconfig:"SHOPSTREAM_WEBHOOK_IDEMPOTENCY_TTL" default:"24h"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"SHOPSTREAM_CRON_INTERVAL" default:"5m"`
	LockTTL  time.Duration `envconfig:"SHOPSTREAM_CRON_LOCK_TTL" default:"10m"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"SHOPSTREAM_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"SHOPSTREAM_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"SHOPSTREAM_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	NotificationTopic        string `envconfig:"SHOPSTREAM_PUBSUB_NOTIFICATION_TOPIC" default:"ss-notification-events"`
	NotificationSubscription string `envconfig:"SHOPSTREAM_PUBSUB_NOTIFICATION_SUBSCRIPTION"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range requiredDBEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
