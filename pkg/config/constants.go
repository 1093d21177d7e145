package config

const (
	EnvPrefix = "BOOKSWAP"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	StorageBackendLocal = "local"
	StorageBackendGCS   = "gcs"

	OutboxBrokerKafka  = "kafka"
	OutboxBrokerPubSub = "pubsub"
)

const (
	EnvAppEnv         = "BOOKSWAP_APP_ENV"
	EnvPort           = "BOOKSWAP_APP_PORT"
	EnvDBDSN          = "BOOKSWAP_DB_DSN"
	EnvDBHost         = "BOOKSWAP_DB_HOST"
	EnvDBUser         = "BOOKSWAP_DB_USER"
	EnvDBName         = "BOOKSWAP_DB_NAME"
	EnvRedisURL       = "BOOKSWAP_REDIS_URL"
	EnvJWTSecret      = "BOOKSWAP_JWT_SECRET"
	EnvJWTIssuer      = "BOOKSWAP_JWT_ISSUER"
	EnvJWTExpMins     = "BOOKSWAP_JWT_EXPIRATION_MINUTES"
	EnvStorageBackend = "BOOKSWAP_STORAGE_BACKEND"
	EnvAdminEmails    = "BOOKSWAP_ADMIN_EMAILS"
	EnvKafkaBrokers   = "BOOKSWAP_KAFKA_BROKERS"
)

var discreteDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
