package config

// EnvPrefix is handed to envconfig; every field declares its full variable name.
const EnvPrefix = "PLATECOST"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv   = "PLATECOST_APP_ENV"
	EnvPort     = "PLATECOST_APP_PORT"
	EnvLogLevel = "PLATECOST_LOG_LEVEL"

	EnvDBDSN  = "PLATECOST_DB_DSN"
	EnvDBHost = "PLATECOST_DB_HOST"
	EnvDBUser = "PLATECOST_DB_USER"
	EnvDBName = "PLATECOST_DB_NAME"

	EnvUseSQLite = "PLATECOST_USE_SQLITE"
	EnvRedisURL  = "PLATECOST_REDIS_URL"

	EnvImportChunkSize = "PLATECOST_IMPORT_CHUNK_SIZE"
	EnvImportTimezone  = "PLATECOST_IMPORT_TIMEZONE"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
