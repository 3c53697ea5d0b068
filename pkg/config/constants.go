package config

const EnvPrefix = "delgo"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

// Environment variable names referenced outside struct tags.
const (
	EnvAppEnv   = "DELGO_APP_ENV"
	EnvPort     = "DELGO_APP_PORT"
	EnvLogLevel = "DELGO_LOG_LEVEL"

	EnvDBDSN  = "DELGO_DB_DSN"
	EnvDBHost = "DELGO_DB_HOST"
	EnvDBUser = "DELGO_DB_USER"
	EnvDBName = "DELGO_DB_NAME"

	EnvRedisURL = "DELGO_REDIS_URL"

	EnvJWTSecret  = "DELGO_JWT_SECRET"
	EnvJWTIssuer  = "DELGO_JWT_ISSUER"
	EnvJWTExpMins = "DELGO_JWT_EXPIRATION_MINUTES"

	EnvGCPProjectID = "DELGO_GCP_PROJECT_ID"

	EnvPubSubDispatchTopic   = "DELGO_PUBSUB_DISPATCH_TOPIC"
	EnvPubSubDispatchSub     = "DELGO_PUBSUB_DISPATCH_SUBSCRIPTION"
	EnvPubSubNotificationSub = "DELGO_PUBSUB_NOTIFICATION_SUBSCRIPTION"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
