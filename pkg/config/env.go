package config

// EnvPrefix is passed to envconfig; every field carries its full name in the tag.
const EnvPrefix = "CAMPUS"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv = "CAMPUS_APP_ENV"
	EnvPort   = "CAMPUS_APP_PORT"

	EnvDBDSN  = "CAMPUS_DB_DSN"
	EnvDBHost = "CAMPUS_DB_HOST"
	EnvDBUser = "CAMPUS_DB_USER"
	EnvDBName = "CAMPUS_DB_NAME"

	EnvRedisURL = "CAMPUS_REDIS_URL"

	EnvJWTSecret               = "CAMPUS_JWT_SECRET"
	EnvJWTIssuer               = "CAMPUS_JWT_ISSUER"
	EnvJWTExpMins              = "CAMPUS_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes  = "CAMPUS_REFRESH_TOKEN_TTL_MINUTES"
	EnvBridgeProjectID         = "CAMPUS_BRIDGE_PROJECT_ID"
	EnvBridgePasswordMode      = "CAMPUS_BRIDGE_PASSWORD_MODE"
	EnvBridgePasswordSuffix    = "CAMPUS_BRIDGE_PASSWORD_SUFFIX"
	EnvCaptchaSecret           = "CAMPUS_CAPTCHA_SECRET"
	EnvCheckoutPickupWindow    = "CAMPUS_CHECKOUT_PICKUP_WINDOW"
	EnvCORSAllowedOrigins      = "CAMPUS_CORS_ALLOWED_ORIGINS"
	EnvClubsMaxMemberships     = "CAMPUS_CLUBS_MAX_MEMBERSHIPS"
	EnvPubSubOrdersTopic       = "CAMPUS_PUBSUB_ORDERS_TOPIC"
	EnvTelemetryEnabled        = "CAMPUS_TELEMETRY_ENABLED"
	EnvCronNotificationRetDays = "CAMPUS_CRON_NOTIFICATION_RETENTION_DAYS"
)

var discreteDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
