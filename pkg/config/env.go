package config

const (
	EnvPrefix = "PRINTZ"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

// Environment variable names referenced outside struct tags.
const (
	EnvAppEnv                 = "PRINTZ_APP_ENV"
	EnvPort                   = "PRINTZ_APP_PORT"
	EnvDBDSN                  = "PRINTZ_DB_DSN"
	EnvDBHost                 = "PRINTZ_DB_HOST"
	EnvDBUser                 = "PRINTZ_DB_USER"
	EnvDBName                 = "PRINTZ_DB_NAME"
	EnvRedisURL               = "PRINTZ_REDIS_URL"
	EnvJWTSecret              = "PRINTZ_JWT_SECRET"
	EnvJWTIssuer              = "PRINTZ_JWT_ISSUER"
	EnvJWTExpMins             = "PRINTZ_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes = "PRINTZ_REFRESH_TOKEN_TTL_MINUTES"
	EnvPayOSChecksumKey       = "PRINTZ_PAYOS_CHECKSUM_KEY"
	EnvGHNToken               = "PRINTZ_GHN_TOKEN"
	EnvGHNWebhookSecret       = "PRINTZ_GHN_WEBHOOK_SECRET"
	EnvBreakerThreshold       = "PRINTZ_BREAKER_FAILURE_THRESHOLD"
)

var dbPartEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

// Carrier codes shared by config lookups and the carrier factory.
const (
	CarrierGHN         = "ghn"
	CarrierGHTK        = "ghtk"
	CarrierViettelPost = "viettel-post"
	CarrierJT          = "jt"
	CarrierNinjaVan    = "ninjavan"
)
