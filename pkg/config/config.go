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
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	Import       ImportConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if _, err := cfg.Import.Location(); err != nil {
		return nil, fmt.Errorf("parsing import timezone: %w", err)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"PLATECOST_APP_ENV" required:"true"`
	Port         string `envconfig:"PLATECOST_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"PLATECOST_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"PLATECOST_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"PLATECOST_LOG_FORMAT" default:"json"`

	CORSOrigins []string `envconfig:"PLATECOST_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN string `envconfig:"PLATECOST_DB_DSN"`

	LegacyHost     string `envconfig:"PLATECOST_DB_HOST"`
	LegacyPort     int    `envconfig:"PLATECOST_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"PLATECOST_DB_USER"`
	LegacyPassword string `envconfig:"PLATECOST_DB_PASSWORD"`
	LegacyName     string `envconfig:"PLATECOST_DB_NAME"`
	LegacySSLMode  string `envconfig:"PLATECOST_DB_SSLMODE" default:"disable"`

	SQLitePath string `envconfig:"PLATECOST_SQLITE_PATH" default:"platecost.db"`

	MaxOpenConns    int           `envconfig:"PLATECOST_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PLATECOST_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PLATECOST_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PLATECOST_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// RedisConfig is optional: with neither URL nor address set, report caching
// and the confirm guard are disabled.
type RedisConfig struct {
	URL            string        `envconfig:"PLATECOST_REDIS_URL"`
	Address        string        `envconfig:"PLATECOST_REDIS_ADDR"`
	Password       string        `envconfig:"PLATECOST_REDIS_PASSWORD"`
	DB             int           `envconfig:"PLATECOST_REDIS_DB" default:"0"`
	PoolSize       int           `envconfig:"PLATECOST_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns   int           `envconfig:"PLATECOST_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout    time.Duration `envconfig:"PLATECOST_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout    time.Duration `envconfig:"PLATECOST_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout   time.Duration `envconfig:"PLATECOST_REDIS_WRITE_TIMEOUT" default:"5s"`
	ReportCacheTTL time.Duration `envconfig:"PLATECOST_REPORT_CACHE_TTL" default:"24h"`
	ConfirmLockTTL time.Duration `envconfig:"PLATECOST_CONFIRM_LOCK_TTL" default:"2m"`
}

func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"PLATECOST_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"PLATECOST_AUTO_MIGRATE" default:"false"`
}

type ImportConfig struct {
	InsertChunkSize int    `envconfig:"PLATECOST_IMPORT_CHUNK_SIZE" default:"500"`
	MaxUploadMB     int    `envconfig:"PLATECOST_IMPORT_MAX_UPLOAD_MB" default:"5"`
	Timezone        string `envconfig:"PLATECOST_IMPORT_TIMEZONE" default:"UTC"`
}

// Location resolves the timezone used to decide whether a cost is "effective today".
func (i ImportConfig) Location() (*time.Location, error) {
	tz := strings.TrimSpace(i.Timezone)
	if tz == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(tz)
}

func (i ImportConfig) MaxUploadBytes() int64 {
	if i.MaxUploadMB <= 0 {
		return 5 << 20
	}
	return int64(i.MaxUploadMB) << 20
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if db.DSN != "" || useSQLite {
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
