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
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	CORS          CORSConfig
	Bridge        BridgeConfig
	Captcha       CaptchaConfig
	Checkout      CheckoutConfig
	Clubs         ClubsConfig
	FeatureFlags  FeatureFlagsConfig
	Eventing      EventingConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Outbox        OutboxConfig
	Cron          CronConfig
	Telemetry     TelemetryConfig
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
	Env             string        `envconfig:"CAMPUS_APP_ENV" required:"true"`
	Port            string        `envconfig:"CAMPUS_APP_PORT" required:"true"`
	LogLevel        string        `envconfig:"CAMPUS_LOG_LEVEL" default:"info"`
	LogWarnStack    bool          `envconfig:"CAMPUS_LOG_WARN_STACK" default:"false"`
	ShutdownTimeout time.Duration `envconfig:"CAMPUS_APP_SHUTDOWN_TIMEOUT" default:"15s"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"CAMPUS_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"CAMPUS_DB_DSN"`
	Driver string `envconfig:"CAMPUS_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"CAMPUS_DB_HOST"`
	Port     int    `envconfig:"CAMPUS_DB_PORT" default:"5432"`
	User     string `envconfig:"CAMPUS_DB_USER"`
	Password string `envconfig:"CAMPUS_DB_PASSWORD"`
	Name     string `envconfig:"CAMPUS_DB_NAME"`
	SSLMode  string `envconfig:"CAMPUS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CAMPUS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CAMPUS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CAMPUS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CAMPUS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CAMPUS_REDIS_URL"`
	Address      string        `envconfig:"CAMPUS_REDIS_ADDR"`
	Password     string        `envconfig:"CAMPUS_REDIS_PASSWORD"`
	DB           int           `envconfig:"CAMPUS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CAMPUS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CAMPUS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CAMPUS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CAMPUS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CAMPUS_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"CAMPUS_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"CAMPUS_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"CAMPUS_JWT_EXPIRATION_MINUTES" default:"60"`
	RefreshTokenTTLMinutes int    `envconfig:"CAMPUS_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"CAMPUS_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"CAMPUS_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"CAMPUS_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"CAMPUS_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"CAMPUS_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"CAMPUS_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"CAMPUS_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"CAMPUS_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"CAMPUS_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"CAMPUS_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"CAMPUS_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
	BridgeWindow       time.Duration `envconfig:"CAMPUS_AUTH_RATE_LIMIT_BRIDGE_WINDOW" default:"1m"`
	BridgeIPLimit      int           `envconfig:"CAMPUS_AUTH_RATE_LIMIT_BRIDGE_IP_LIMIT" default:"30"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"CAMPUS_CORS_ALLOWED_ORIGINS" default:"http://localhost:5173,http://localhost:3000"`
}

// BridgeConfig drives the identity-token to session exchange.
type BridgeConfig struct {
	ProjectID      string        `envconfig:"CAMPUS_BRIDGE_PROJECT_ID"`
	CertsURL       string        `envconfig:"CAMPUS_BRIDGE_CERTS_URL" default:"https://www.googleapis.com/robot/v1/metadata/x509/securetoken@system.gserviceaccount.com"`
	IssuerPrefix   string        `envconfig:"CAMPUS_BRIDGE_ISSUER_PREFIX" default:"https://securetoken.google.com/"`
	PasswordMode   string        `envconfig:"CAMPUS_BRIDGE_PASSWORD_MODE" default:"suffix"`
	PasswordSuffix string        `envconfig:"CAMPUS_BRIDGE_PASSWORD_SUFFIX"`
	PasswordSecret string        `envconfig:"CAMPUS_BRIDGE_PASSWORD_SECRET"`
	ClockSkew      time.Duration `envconfig:"CAMPUS_BRIDGE_CLOCK_SKEW" default:"30s"`
	FetchTimeout   time.Duration `envconfig:"CAMPUS_BRIDGE_FETCH_TIMEOUT" default:"5s"`
}

// Issuer returns the expected iss claim for the configured project.
func (b BridgeConfig) Issuer() string {
	return b.IssuerPrefix + b.ProjectID
}

type CaptchaConfig struct {
	Secret     string        `envconfig:"CAMPUS_CAPTCHA_SECRET"`
	VerifyURL  string        `envconfig:"CAMPUS_CAPTCHA_VERIFY_URL" default:"https://www.google.com/recaptcha/api/siteverify"`
	Timeout    time.Duration `envconfig:"CAMPUS_CAPTCHA_TIMEOUT" default:"5s"`
	MaxRetries uint64        `envconfig:"CAMPUS_CAPTCHA_MAX_RETRIES" default:"2"`
}

type CheckoutConfig struct {
	PickupWindow time.Duration `envconfig:"CAMPUS_CHECKOUT_PICKUP_WINDOW" default:"2h"`
	VerifyPrices bool          `envconfig:"CAMPUS_CHECKOUT_VERIFY_PRICES" default:"true"`
	RequirePIN   bool          `envconfig:"CAMPUS_CHECKOUT_REQUIRE_PIN" default:"true"`
	PINTTL       time.Duration `envconfig:"CAMPUS_CHECKOUT_PIN_TTL" default:"15m"`
	MaxItems     int           `envconfig:"CAMPUS_CHECKOUT_MAX_ITEMS" default:"50"`
}

type ClubsConfig struct {
	MaxMemberships int `envconfig:"CAMPUS_CLUBS_MAX_MEMBERSHIPS" default:"3"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"CAMPUS_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"CAMPUS_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
	OutboxClaimLease     time.Duration `envconfig:"CAMPUS_EVENTING_CLAIM_LEASE" default:"2m"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"CAMPUS_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	OrdersTopic         string `envconfig:"CAMPUS_PUBSUB_ORDERS_TOPIC" default:"campus-order-events"`
	OrdersSubscription  string `envconfig:"CAMPUS_PUBSUB_ORDERS_SUBSCRIPTION" default:"campus-order-events-notifications"`
	LoyaltyTopic        string `envconfig:"CAMPUS_PUBSUB_LOYALTY_TOPIC" default:"campus-loyalty-events"`
	LoyaltySubscription string `envconfig:"CAMPUS_PUBSUB_LOYALTY_SUBSCRIPTION" default:"campus-loyalty-events-notifications"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"CAMPUS_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"CAMPUS_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"CAMPUS_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type CronConfig struct {
	Interval                  time.Duration `envconfig:"CAMPUS_CRON_INTERVAL" default:"5m"`
	NotificationRetentionDays int           `envconfig:"CAMPUS_CRON_NOTIFICATION_RETENTION_DAYS" default:"30"`
}

type TelemetryConfig struct {
	Enabled     bool    `envconfig:"CAMPUS_TELEMETRY_ENABLED" default:"false"`
	Exporter    string  `envconfig:"CAMPUS_TELEMETRY_EXPORTER" default:"otlp"`
	Endpoint    string  `envconfig:"CAMPUS_TELEMETRY_ENDPOINT" default:"localhost:4317"`
	Insecure    bool    `envconfig:"CAMPUS_TELEMETRY_INSECURE" default:"true"`
	SampleRatio float64 `envconfig:"CAMPUS_TELEMETRY_SAMPLE_RATIO" default:"1"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range discreteDBEnvVars {
		if values[env] == "" {
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
