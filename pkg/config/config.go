package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	// EnvPrefix scopes every environment variable read by Load.
	EnvPrefix = "TRADEBAZAAR"

	AppEnvDev  = "development"
	AppEnvProd = "production"
)

type Config struct {
	App         AppConfig
	DB          DBConfig
	Redis       RedisConfig
	Payout      PayoutConfig
	Courier     CourierConfig
	Withdrawals WithdrawalsConfig
	Limits      LimitsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"TRADEBAZAAR_APP_ENV" required:"true"`
	Port         string `envconfig:"TRADEBAZAAR_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"TRADEBAZAAR_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"TRADEBAZAAR_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"TRADEBAZAAR_DB_DSN"`
	Driver string `envconfig:"TRADEBAZAAR_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"TRADEBAZAAR_DB_HOST"`
	Port     int    `envconfig:"TRADEBAZAAR_DB_PORT" default:"5432"`
	User     string `envconfig:"TRADEBAZAAR_DB_USER"`
	Password string `envconfig:"TRADEBAZAAR_DB_PASSWORD"`
	Name     string `envconfig:"TRADEBAZAAR_DB_NAME"`
	SSLMode  string `envconfig:"TRADEBAZAAR_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"TRADEBAZAAR_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"TRADEBAZAAR_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"TRADEBAZAAR_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"TRADEBAZAAR_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	AutoMigrate bool `envconfig:"TRADEBAZAAR_DB_AUTO_MIGRATE" default:"false"`
}

type RedisConfig struct {
	URL          string        `envconfig:"TRADEBAZAAR_REDIS_URL" required:"true"`
	Address      string        `envconfig:"TRADEBAZAAR_REDIS_ADDR"`
	Password     string        `envconfig:"TRADEBAZAAR_REDIS_PASSWORD"`
	DB           int           `envconfig:"TRADEBAZAAR_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"TRADEBAZAAR_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"TRADEBAZAAR_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"TRADEBAZAAR_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TRADEBAZAAR_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"TRADEBAZAAR_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// PayoutConfig points at the external bank payout collaborator.
type PayoutConfig struct {
	BaseURL       string        `envconfig:"TRADEBAZAAR_PAYOUT_BASE_URL"`
	APIKey        string        `envconfig:"TRADEBAZAAR_PAYOUT_API_KEY"`
	WebhookSecret string        `envconfig:"TRADEBAZAAR_PAYOUT_WEBHOOK_SECRET"`
	Timeout       time.Duration `envconfig:"TRADEBAZAAR_PAYOUT_TIMEOUT" default:"15s"`
}

// CourierConfig points at the pickup scheduling collaborator.
type CourierConfig struct {
	BaseURL string        `envconfig:"TRADEBAZAAR_COURIER_BASE_URL"`
	APIKey  string        `envconfig:"TRADEBAZAAR_COURIER_API_KEY"`
	Timeout time.Duration `envconfig:"TRADEBAZAAR_COURIER_TIMEOUT" default:"15s"`
}

// WithdrawalsConfig tunes payout settlement behavior.
type WithdrawalsConfig struct {
	ProcessingFee string        `envconfig:"TRADEBAZAAR_WITHDRAWAL_PROCESSING_FEE" default:"25.00"`
	MaxAttempts   int           `envconfig:"TRADEBAZAAR_WITHDRAWAL_MAX_ATTEMPTS" default:"3"`
	RetryBackoff  time.Duration `envconfig:"TRADEBAZAAR_WITHDRAWAL_RETRY_BACKOFF" default:"30s"`
	PollInterval  time.Duration `envconfig:"TRADEBAZAAR_WITHDRAWAL_POLL_INTERVAL" default:"10s"`
}

// LimitsConfig seeds per-owner caps when none have been configured yet.
type LimitsConfig struct {
	DailyWithdrawal   string `envconfig:"TRADEBAZAAR_LIMIT_DAILY_WITHDRAWAL" default:"50000"`
	MonthlyWithdrawal string `envconfig:"TRADEBAZAAR_LIMIT_MONTHLY_WITHDRAWAL" default:"500000"`
	MinimumWithdrawal string `envconfig:"TRADEBAZAAR_LIMIT_MINIMUM_WITHDRAWAL" default:"500"`
	MaximumWithdrawal string `envconfig:"TRADEBAZAAR_LIMIT_MAXIMUM_WITHDRAWAL" default:"25000"`
	SingleTransaction string `envconfig:"TRADEBAZAAR_LIMIT_SINGLE_TRANSACTION" default:"25000"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		"TRADEBAZAAR_DB_HOST": db.Host,
		"TRADEBAZAAR_DB_USER": db.User,
		"TRADEBAZAAR_DB_NAME": db.Name,
	}
	for _, key := range []string{"TRADEBAZAAR_DB_HOST", "TRADEBAZAAR_DB_USER", "TRADEBAZAAR_DB_NAME"} {
		if values[key] == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("either TRADEBAZAAR_DB_DSN or %s are required", strings.Join(missing, ", "))
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
