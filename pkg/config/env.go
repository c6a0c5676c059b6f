package config

const EnvPrefix = "STORE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv                 = "STORE_APP_ENV"
	EnvPort                   = "STORE_APP_PORT"
	EnvWebsiteURL             = "STORE_WEBSITE_URL"
	EnvDBDSN                  = "STORE_DB_DSN"
	EnvDBHost                 = "STORE_DB_HOST"
	EnvDBUser                 = "STORE_DB_USER"
	EnvDBName                 = "STORE_DB_NAME"
	EnvRedisURL               = "STORE_REDIS_URL"
	EnvJWTSecret              = "STORE_JWT_SECRET"
	EnvJWTIssuer              = "STORE_JWT_ISSUER"
	EnvJWTExpMins             = "STORE_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes = "STORE_REFRESH_TOKEN_TTL_MINUTES"
	EnvUseSQLite              = "STORE_USE_SQLITE"
	EnvStripeCurrency         = "STORE_STRIPE_CURRENCY"
)

var dbPartEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
