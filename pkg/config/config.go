package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "FULFILLCORE"

	AppEnvDev  = "development"
	AppEnvProd = "production"

	EnvAppEnv   = "FULFILLCORE_APP_ENV"
	EnvDBDSN    = "FULFILLCORE_DB_DSN"
	EnvDBHost   = "FULFILLCORE_DB_HOST"
	EnvDBUser   = "FULFILLCORE_DB_USER"
	EnvDBName   = "FULFILLCORE_DB_NAME"
	EnvRedisURL = "FULFILLCORE_REDIS_URL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App   AppConfig
	DB    DBConfig
	Redis RedisConfig
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
	Env          string `envconfig:"FULFILLCORE_APP_ENV" required:"true"`
	LogLevel     string `envconfig:"FULFILLCORE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"FULFILLCORE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"FULFILLCORE_DB_DSN"`
	Driver string `envconfig:"FULFILLCORE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"FULFILLCORE_DB_HOST"`
	LegacyPort     int    `envconfig:"FULFILLCORE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"FULFILLCORE_DB_USER"`
	LegacyPassword string `envconfig:"FULFILLCORE_DB_PASSWORD"`
	LegacyName     string `envconfig:"FULFILLCORE_DB_NAME"`
	LegacySSLMode  string `envconfig:"FULFILLCORE_DB_SSLMODE" default:"disable"`

	// AutoMigrate lets dev environments run goose up on boot.
	AutoMigrate bool `envconfig:"FULFILLCORE_DB_AUTO_MIGRATE" default:"false"`

	MaxOpenConns    int           `envconfig:"FULFILLCORE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"FULFILLCORE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"FULFILLCORE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"FULFILLCORE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"FULFILLCORE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"FULFILLCORE_REDIS_ADDR"`
	Password     string        `envconfig:"FULFILLCORE_REDIS_PASSWORD"`
	DB           int           `envconfig:"FULFILLCORE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"FULFILLCORE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"FULFILLCORE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"FULFILLCORE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"FULFILLCORE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"FULFILLCORE_REDIS_WRITE_TIMEOUT" default:"5s"`

	// AggregateLockTTL bounds how long a transaction-recalculation lock may be
	// held before it expires on its own.
	AggregateLockTTL time.Duration `envconfig:"FULFILLCORE_REDIS_AGGREGATE_LOCK_TTL" default:"30s"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
