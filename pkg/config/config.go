package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "marketpulse"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "MARKETPULSE_DB_DSN"
	EnvDBHost = "MARKETPULSE_DB_HOST"
	EnvDBUser = "MARKETPULSE_DB_USER"
	EnvDBName = "MARKETPULSE_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Inventory    InventoryConfig
	FeatureFlags FeatureFlagsConfig
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
	Env          string `envconfig:"MARKETPULSE_APP_ENV" required:"true"`
	Port         string `envconfig:"MARKETPULSE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"MARKETPULSE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"MARKETPULSE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"MARKETPULSE_DB_DSN"`
	Driver string `envconfig:"MARKETPULSE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"MARKETPULSE_DB_HOST"`
	LegacyPort     int    `envconfig:"MARKETPULSE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"MARKETPULSE_DB_USER"`
	LegacyPassword string `envconfig:"MARKETPULSE_DB_PASSWORD"`
	LegacyName     string `envconfig:"MARKETPULSE_DB_NAME"`
	LegacySSLMode  string `envconfig:"MARKETPULSE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"MARKETPULSE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MARKETPULSE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"MARKETPULSE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"MARKETPULSE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"MARKETPULSE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"MARKETPULSE_REDIS_ADDR"`
	Password     string        `envconfig:"MARKETPULSE_REDIS_PASSWORD"`
	DB           int           `envconfig:"MARKETPULSE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"MARKETPULSE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MARKETPULSE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"MARKETPULSE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"MARKETPULSE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"MARKETPULSE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"MARKETPULSE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"MARKETPULSE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"MARKETPULSE_JWT_EXPIRATION_MINUTES" default:"60"`
}

// InventoryConfig tunes the adjustment coordinator and read paths.
type InventoryConfig struct {
	// AdjustRetries bounds how many times an adjustment transaction is
	// re-attempted after a serialization or lock-wait failure before the
	// caller sees a CONTENTION error.
	AdjustRetries int `envconfig:"MARKETPULSE_INVENTORY_ADJUST_RETRIES" default:"3"`
	// LockWaitTimeout bounds how long one attempt waits for a contended
	// combination row lock; on expiry the attempt fails and the retry
	// loop takes over.
	LockWaitTimeout time.Duration `envconfig:"MARKETPULSE_INVENTORY_LOCK_WAIT_TIMEOUT" default:"3s"`

	LowStockThreshold int `envconfig:"MARKETPULSE_INVENTORY_LOW_STOCK_THRESHOLD" default:"10"`
	HistoryPageLimit  int `envconfig:"MARKETPULSE_INVENTORY_HISTORY_PAGE_LIMIT" default:"50"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"MARKETPULSE_AUTO_MIGRATE" default:"false"`
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
