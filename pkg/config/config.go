package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Stripe        StripeConfig
	Webhook       WebhookConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Outbox        OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"STORE_APP_ENV" required:"true"`
	Port         string   `envconfig:"STORE_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"STORE_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"STORE_LOG_WARN_STACK" default:"false"`
	LogFormat    string   `envconfig:"STORE_LOG_FORMAT" default:"json"`
	WebsiteURL   string   `envconfig:"STORE_WEBSITE_URL" default:"http://localhost:4242"`
	CORSOrigins  []string `envconfig:"STORE_CORS_ORIGINS" default:"http://localhost:3000,http://localhost:4242"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	switch strings.ToLower(strings.TrimSpace(a.Env)) {
	case AppEnvProd, "production":
		return true
	}
	return false
}

type DBConfig struct {
	DSN    string `envconfig:"STORE_DB_DSN"`
	Driver string `envconfig:"STORE_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"STORE_DB_HOST"`
	Port     int    `envconfig:"STORE_DB_PORT" default:"5432"`
	User     string `envconfig:"STORE_DB_USER"`
	Password string `envconfig:"STORE_DB_PASSWORD"`
	Name     string `envconfig:"STORE_DB_NAME"`
	SSLMode  string `envconfig:"STORE_DB_SSLMODE" default:"disable"`

	SQLitePath string `envconfig:"STORE_DB_SQLITE_PATH" default:"store.db"`

	MaxOpenConns    int           `envconfig:"STORE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STORE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STORE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STORE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"STORE_REDIS_URL"`
	Address      string        `envconfig:"STORE_REDIS_ADDR"`
	Password     string        `envconfig:"STORE_REDIS_PASSWORD"`
	DB           int           `envconfig:"STORE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STORE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STORE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STORE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STORE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STORE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"STORE_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"STORE_JWT_ISSUER" default:"store-backend"`
	ExpirationMinutes      int    `envconfig:"STORE_JWT_EXPIRATION_MINUTES" default:"15"`
	RefreshTokenTTLMinutes int    `envconfig:"STORE_REFRESH_TOKEN_TTL_MINUTES" default:"10080"`
}

// AccessTokenTTL returns the access token lifetime.
func (j JWTConfig) AccessTokenTTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"STORE_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"STORE_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"STORE_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"STORE_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"STORE_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow     time.Duration `envconfig:"STORE_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit int           `envconfig:"STORE_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit    int           `envconfig:"STORE_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow  time.Duration `envconfig:"STORE_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterIPLimit int           `envconfig:"STORE_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"STORE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"STORE_AUTO_MIGRATE" default:"false"`
}

type StripeConfig struct {
	APIKey   string `envconfig:"STORE_STRIPE_API_KEY"`
	Secret   string `envconfig:"STORE_STRIPE_WEBHOOK_SECRET"`
	Env      string `envconfig:"STORE_STRIPE_ENV" default:"test"`
	Currency string `envconfig:"STORE_STRIPE_CURRENCY" default:"mxn"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type WebhookConfig struct {
	IdempotencyTTL time.Duration `envconfig:"STORE_WEBHOOK_IDEMPOTENCY_TTL" default:"72h"`
	ProcessingTTL  time.Duration `envconfig:"STORE_WEBHOOK_PROCESSING_TTL" default:"5m"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"STORE_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	OrdersTopic string `envconfig:"STORE_PUBSUB_ORDERS_TOPIC" default:"store-order-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"STORE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"STORE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"STORE_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if db.DSN != "" || useSQLite {
		return nil
	}

	missing := []string{}
	parts := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range dbPartEnvVars {
		if parts[env] == "" {
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
