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
	Delivery     DeliveryConfig
	OTP          OTPConfig
	Dispatch     DispatchConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
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
	Env            string   `envconfig:"DELGO_APP_ENV" required:"true"`
	Port           string   `envconfig:"DELGO_APP_PORT" required:"true"`
	LogLevel       string   `envconfig:"DELGO_LOG_LEVEL" default:"info"`
	LogWarnStack   bool     `envconfig:"DELGO_LOG_WARN_STACK" default:"false"`
	AllowedOrigins []string `envconfig:"DELGO_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"DELGO_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"DELGO_DB_DSN"`
	Driver string `envconfig:"DELGO_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"DELGO_DB_HOST"`
	LegacyPort     int    `envconfig:"DELGO_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"DELGO_DB_USER"`
	LegacyPassword string `envconfig:"DELGO_DB_PASSWORD"`
	LegacyName     string `envconfig:"DELGO_DB_NAME"`
	LegacySSLMode  string `envconfig:"DELGO_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"DELGO_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"DELGO_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"DELGO_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"DELGO_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"DELGO_REDIS_URL" required:"true"`
	Address      string        `envconfig:"DELGO_REDIS_ADDR"`
	Password     string        `envconfig:"DELGO_REDIS_PASSWORD"`
	DB           int           `envconfig:"DELGO_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"DELGO_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"DELGO_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"DELGO_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"DELGO_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"DELGO_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"DELGO_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"DELGO_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"DELGO_JWT_EXPIRATION_MINUTES" required:"true"`
}

// DeliveryConfig carries the fee schedule and commission model for
// shipment pricing and agent earnings. Monetary amounts are in INR.
type DeliveryConfig struct {
	BaseFee           string `envconfig:"DELGO_DELIVERY_BASE_FEE" default:"30"`
	PerKmRate         string `envconfig:"DELGO_DELIVERY_PER_KM_RATE" default:"8"`
	FreeDistanceKm    string `envconfig:"DELGO_DELIVERY_FREE_DISTANCE_KM" default:"3"`
	PeakMultiplier    string `envconfig:"DELGO_DELIVERY_PEAK_MULTIPLIER" default:"1.5"`
	CommissionRate    string `envconfig:"DELGO_DELIVERY_COMMISSION_RATE" default:"0.15"`
	DefaultDistanceKm string `envconfig:"DELGO_DELIVERY_DEFAULT_DISTANCE_KM" default:"5"`
	ShippingFee       string `envconfig:"DELGO_DELIVERY_SHIPPING_FEE" default:"40"`
	TaxRate           string `envconfig:"DELGO_DELIVERY_TAX_RATE" default:"0.05"`
	AvgSpeedKmh       string `envconfig:"DELGO_DELIVERY_AVG_SPEED_KMH" default:"25"`
}

type OTPConfig struct {
	AttemptLimit  int           `envconfig:"DELGO_OTP_ATTEMPT_LIMIT" default:"10"`
	AttemptWindow time.Duration `envconfig:"DELGO_OTP_ATTEMPT_WINDOW" default:"10m"`
}

type DispatchConfig struct {
	MaxActiveAssignments int     `envconfig:"DELGO_DISPATCH_MAX_ACTIVE_ASSIGNMENTS" default:"3"`
	SearchRadiusKm       float64 `envconfig:"DELGO_DISPATCH_SEARCH_RADIUS_KM" default:"15"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"DELGO_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"DELGO_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"DELGO_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"DELGO_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"DELGO_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"DELGO_GOOGLE_APPLICATION_CREDENTIALS"`
	GeocodingAPIKey        string `envconfig:"DELGO_GCP_GEOCODING_API_KEY"`
}

type PubSubConfig struct {
	DispatchTopic            string `envconfig:"DELGO_PUBSUB_DISPATCH_TOPIC" required:"true"`
	DispatchSubscription     string `envconfig:"DELGO_PUBSUB_DISPATCH_SUBSCRIPTION" required:"true"`
	NotificationTopic        string `envconfig:"DELGO_PUBSUB_NOTIFICATION_TOPIC" default:"delgo-notification-events"`
	NotificationSubscription string `envconfig:"DELGO_PUBSUB_NOTIFICATION_SUBSCRIPTION" required:"true"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"DELGO_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"DELGO_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"DELGO_OUTBOX_MAX_ATTEMPTS" default:"10"`
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
