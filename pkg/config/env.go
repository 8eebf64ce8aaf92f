package config

const (
	EnvPrefix = "TIMECREDIT"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	defaultSQLiteDSN = "file:timecredit.db?_busy_timeout=5000"

	EnvAppEnv      = "TIMECREDIT_APP_ENV"
	EnvPort        = "TIMECREDIT_APP_PORT"
	EnvDBDSN       = "TIMECREDIT_DB_DSN"
	EnvDBHost      = "TIMECREDIT_DB_HOST"
	EnvDBUser      = "TIMECREDIT_DB_USER"
	EnvDBName      = "TIMECREDIT_DB_NAME"
	EnvRedisURL    = "TIMECREDIT_REDIS_URL"
	EnvUseSQLite   = "TIMECREDIT_USE_SQLITE"
	EnvStartingBal = "TIMECREDIT_LEDGER_STARTING_BALANCE"
	EnvAtomicMax   = "TIMECREDIT_ATOMIC_MAX_ATTEMPTS"
	EnvHookCredits = "TIMECREDIT_BOOKING_HOOK_CHECK_CREDITS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
