package config

const (
	EnvPrefix = "storefront"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv          = "STOREFRONT_APP_ENV"
	EnvPort            = "STOREFRONT_APP_PORT"
	EnvLogLevel        = "STOREFRONT_LOG_LEVEL"
	EnvDBDSN           = "STOREFRONT_DB_DSN"
	EnvRedisURL        = "STOREFRONT_REDIS_URL"
	EnvJWTSecret       = "STOREFRONT_JWT_SECRET"
	EnvJWTIssuer       = "STOREFRONT_JWT_ISSUER"
	EnvSettlementMin   = "STOREFRONT_SETTLEMENT_DELAY_MIN"
	EnvSettlementMax   = "STOREFRONT_SETTLEMENT_DELAY_MAX"
	EnvGatewayTimeout  = "STOREFRONT_GATEWAY_TIMEOUT"
	EnvOrderStoreURL   = "STOREFRONT_ORDER_STORE_URL"
	EnvSendgridAPIKey  = "STOREFRONT_SENDGRID_API_KEY"
	EnvSendgridBaseURL = "STOREFRONT_SENDGRID_BASE_URL"
)
