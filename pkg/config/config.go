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
	FeatureFlags FeatureFlagsConfig
	Ledger       LedgerConfig
	Atomic       AtomicConfig
	Booking      BookingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Cron         CronConfig
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
	Env          string `envconfig:"TIMECREDIT_APP_ENV" required:"true"`
	Port         string `envconfig:"TIMECREDIT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"TIMECREDIT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"TIMECREDIT_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"TIMECREDIT_LOG_FORMAT" default:"json"`

	CORSOrigins []string `envconfig:"TIMECREDIT_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"TIMECREDIT_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"TIMECREDIT_DB_DSN"`
	Driver string `envconfig:"TIMECREDIT_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"TIMECREDIT_DB_HOST"`
	LegacyPort     int    `envconfig:"TIMECREDIT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"TIMECREDIT_DB_USER"`
	LegacyPassword string `envconfig:"TIMECREDIT_DB_PASSWORD"`
	LegacyName     string `envconfig:"TIMECREDIT_DB_NAME"`
	LegacySSLMode  string `envconfig:"TIMECREDIT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"TIMECREDIT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"TIMECREDIT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"TIMECREDIT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"TIMECREDIT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// IsSQLite reports whether the configured driver targets SQLite.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"TIMECREDIT_REDIS_URL" required:"true"`
	Address      string        `envconfig:"TIMECREDIT_REDIS_ADDR"`
	Password     string        `envconfig:"TIMECREDIT_REDIS_PASSWORD"`
	DB           int           `envconfig:"TIMECREDIT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"TIMECREDIT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"TIMECREDIT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"TIMECREDIT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TIMECREDIT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"TIMECREDIT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"TIMECREDIT_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"TIMECREDIT_AUTO_MIGRATE" default:"false"`
}

// LedgerConfig carries credit-economy constants.
type LedgerConfig struct {
	StartingBalance int `envconfig:"TIMECREDIT_LEDGER_STARTING_BALANCE" default:"10"`
}

// AtomicConfig bounds the optimistic retry loop wrapped around every unit of work.
type AtomicConfig struct {
	MaxAttempts int           `envconfig:"TIMECREDIT_ATOMIC_MAX_ATTEMPTS" default:"5"`
	BaseBackoff time.Duration `envconfig:"TIMECREDIT_ATOMIC_BASE_BACKOFF" default:"10ms"`
	MaxBackoff  time.Duration `envconfig:"TIMECREDIT_ATOMIC_MAX_BACKOFF" default:"250ms"`
}

type BookingConfig struct {
	HookCheckCredits  bool `envconfig:"TIMECREDIT_BOOKING_HOOK_CHECK_CREDITS" default:"false"`
	PendingExpiryDays int  `envconfig:"TIMECREDIT_BOOKING_PENDING_EXPIRY_DAYS" default:"2"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"TIMECREDIT_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	BookingTopic string `envconfig:"TIMECREDIT_PUBSUB_BOOKING_TOPIC" default:"timecredit-booking-events"`
	// CreateTopic provisions a missing topic at startup (emulator and dev).
	CreateTopic bool `envconfig:"TIMECREDIT_PUBSUB_CREATE_TOPIC" default:"false"`
	// EmulatorHost is read by the client library itself; kept here for logging.
	EmulatorHost string `envconfig:"PUBSUB_EMULATOR_HOST"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"TIMECREDIT_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"TIMECREDIT_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"TIMECREDIT_OUTBOX_MAX_ATTEMPTS" default:"10"`
	// MetricsAddr is the publisher's scrape listener; empty disables it.
	MetricsAddr string `envconfig:"TIMECREDIT_OUTBOX_METRICS_ADDR" default:":9091"`
}

type CronConfig struct {
	Interval        time.Duration `envconfig:"TIMECREDIT_CRON_INTERVAL" default:"1h"`
	OutboxRetention time.Duration `envconfig:"TIMECREDIT_CRON_OUTBOX_RETENTION" default:"720h"`
	ExpiryBatchSize int           `envconfig:"TIMECREDIT_CRON_EXPIRY_BATCH_SIZE" default:"200"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if useSQLite {
		db.Driver = DriverSQLite
		if db.DSN == "" {
			db.DSN = defaultSQLiteDSN
		}
		return nil
	}
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
