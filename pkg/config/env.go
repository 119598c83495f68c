package config

const EnvPrefix = "ROASTERY"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv     = "ROASTERY_APP_ENV"
	EnvPort       = "ROASTERY_APP_PORT"
	EnvLogLevel   = "ROASTERY_LOG_LEVEL"
	EnvDBDSN      = "ROASTERY_DB_DSN"
	EnvDBHost     = "ROASTERY_DB_HOST"
	EnvDBUser     = "ROASTERY_DB_USER"
	EnvDBName     = "ROASTERY_DB_NAME"
	EnvRedisURL   = "ROASTERY_REDIS_URL"
	EnvJWTSecret  = "ROASTERY_JWT_SECRET"
	EnvJWTIssuer  = "ROASTERY_JWT_ISSUER"
	EnvJWTExpMins = "ROASTERY_JWT_EXPIRATION_MINUTES"

	EnvAdminEmail    = "ROASTERY_ADMIN_EMAIL"
	EnvPickupAddress = "ROASTERY_PICKUP_ADDRESS"
	EnvVenmoHandle   = "ROASTERY_PAYMENT_VENMO_HANDLE"
	EnvCashAppHandle = "ROASTERY_PAYMENT_CASHAPP_HANDLE"
	EnvCalendarTZ    = "ROASTERY_CALENDAR_TZ"
	EnvBookingLead   = "ROASTERY_BOOKING_LEAD_TIME"
	EnvCartTTL       = "ROASTERY_CART_TTL"

	EnvGCPProjectID      = "ROASTERY_GCP_PROJECT_ID"
	EnvPubSubOrdersTopic = "ROASTERY_PUBSUB_ORDERS_TOPIC"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
