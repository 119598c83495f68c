package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Store         StoreConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Outbox        OutboxConfig
	Cron          CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.FeatureFlags.UseSQLite {
		cfg.DB.Driver = "sqlite"
		if cfg.DB.DSN == "" {
			cfg.DB.DSN = defaultSQLiteDSN
		}
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Store.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"ROASTERY_APP_ENV" required:"true"`
	Port         string `envconfig:"ROASTERY_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"ROASTERY_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"ROASTERY_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"ROASTERY_SERVICE_KIND" default:"api"`
	// MetricsAddr is where worker binaries expose /metrics. Empty disables it.
	MetricsAddr string `envconfig:"ROASTERY_METRICS_ADDR"`
}

type DBConfig struct {
	DSN    string `envconfig:"ROASTERY_DB_DSN"`
	Driver string `envconfig:"ROASTERY_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"ROASTERY_DB_HOST"`
	LegacyPort     int    `envconfig:"ROASTERY_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"ROASTERY_DB_USER"`
	LegacyPassword string `envconfig:"ROASTERY_DB_PASSWORD"`
	LegacyName     string `envconfig:"ROASTERY_DB_NAME"`
	LegacySSLMode  string `envconfig:"ROASTERY_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"ROASTERY_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"ROASTERY_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"ROASTERY_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ROASTERY_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	SlowQueryThreshold time.Duration `envconfig:"ROASTERY_DB_SLOW_QUERY_THRESHOLD" default:"250ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"ROASTERY_REDIS_URL" required:"true"`
	Address      string        `envconfig:"ROASTERY_REDIS_ADDR"`
	Password     string        `envconfig:"ROASTERY_REDIS_PASSWORD"`
	DB           int           `envconfig:"ROASTERY_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ROASTERY_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ROASTERY_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ROASTERY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ROASTERY_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ROASTERY_REDIS_WRITE_TIMEOUT" default:"5s"`
	KeyPrefix    string        `envconfig:"ROASTERY_REDIS_KEY_PREFIX" default:"roastery"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"ROASTERY_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"ROASTERY_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"ROASTERY_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"ROASTERY_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"ROASTERY_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"ROASTERY_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"ROASTERY_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"ROASTERY_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"ROASTERY_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"ROASTERY_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"ROASTERY_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"ROASTERY_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"ROASTERY_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"ROASTERY_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"ROASTERY_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

const defaultSQLiteDSN = "file:roastery.db?_foreign_keys=on"

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"ROASTERY_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"ROASTERY_AUTO_MIGRATE" default:"false"`
}

// StoreConfig holds the shop-specific settings the storefront workflow reads.
type StoreConfig struct {
	AdminEmail     string        `envconfig:"ROASTERY_ADMIN_EMAIL" required:"true"`
	PickupAddress  string        `envconfig:"ROASTERY_PICKUP_ADDRESS" required:"true"`
	VenmoHandle    string        `envconfig:"ROASTERY_PAYMENT_VENMO_HANDLE"`
	CashAppHandle  string        `envconfig:"ROASTERY_PAYMENT_CASHAPP_HANDLE"`
	CalendarTZ     string        `envconfig:"ROASTERY_CALENDAR_TZ" default:"America/Los_Angeles"`
	BookingLead    time.Duration `envconfig:"ROASTERY_BOOKING_LEAD_TIME" default:"1h"`
	CartTTL        time.Duration `envconfig:"ROASTERY_CART_TTL" default:"720h"`
	IdempotencyTTL time.Duration `envconfig:"ROASTERY_IDEMPOTENCY_TTL" default:"24h"`
}

// Location resolves the calendar time zone, falling back to UTC.
func (s StoreConfig) Location() *time.Location {
	if strings.TrimSpace(s.CalendarTZ) == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.CalendarTZ)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (s StoreConfig) validate() error {
	if !strings.Contains(s.AdminEmail, "@") {
		return fmt.Errorf("%s must be an email address", EnvAdminEmail)
	}
	if _, err := time.LoadLocation(s.CalendarTZ); err != nil {
		return fmt.Errorf("%s: %w", EnvCalendarTZ, err)
	}
	if s.BookingLead < 0 {
		return fmt.Errorf("%s must not be negative", EnvBookingLead)
	}
	return nil
}

type GCPConfig struct {
	ProjectID              string `envconfig:"ROASTERY_GCP_PROJECT_ID"`
	ApplicationCredentials string `envconfig:"ROASTERY_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic  string `envconfig:"ROASTERY_PUBSUB_ORDERS_TOPIC" default:"roastery-order-events"`
	EmulatorHost string `envconfig:"ROASTERY_PUBSUB_EMULATOR_HOST"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"ROASTERY_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"ROASTERY_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"ROASTERY_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type CronConfig struct {
	Interval            time.Duration `envconfig:"ROASTERY_CRON_INTERVAL" default:"1h"`
	JobTimeout          time.Duration `envconfig:"ROASTERY_CRON_JOB_TIMEOUT" default:"10m"`
	SlotRetention       time.Duration `envconfig:"ROASTERY_CRON_SLOT_RETENTION" default:"168h"`
	OutboxRetention     time.Duration `envconfig:"ROASTERY_CRON_OUTBOX_RETENTION" default:"720h"`
	DeadLetterRetention time.Duration `envconfig:"ROASTERY_CRON_DLQ_RETENTION" default:"2160h"`
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
