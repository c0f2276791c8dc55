package config

const EnvPrefix = "TEXNIKA"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	SearchBackendOpenSearch = "opensearch"
	SearchBackendMemory     = "memory"
)

const (
	EnvAppEnv      = "TEXNIKA_APP_ENV"
	EnvPort        = "TEXNIKA_APP_PORT"
	EnvDBDSN       = "TEXNIKA_DB_DSN"
	EnvDBHost      = "TEXNIKA_DB_HOST"
	EnvDBUser      = "TEXNIKA_DB_USER"
	EnvDBName      = "TEXNIKA_DB_NAME"
	EnvRedisURL    = "TEXNIKA_REDIS_URL"
	EnvJWTSecret   = "TEXNIKA_JWT_SECRET"
	EnvJWTIssuer   = "TEXNIKA_JWT_ISSUER"
	EnvGCPProject  = "TEXNIKA_GCP_PROJECT_ID"
	EnvSearchTopic = "TEXNIKA_PUBSUB_SEARCH_TOPIC"

	EnvSearchBackend      = "TEXNIKA_SEARCH_BACKEND"
	EnvOpenSearchNode     = "TEXNIKA_OPENSEARCH_NODE"
	EnvSearchIndex        = "TEXNIKA_SEARCH_INDEX"
	EnvSearchReindexBatch = "TEXNIKA_SEARCH_REINDEX_BATCH_SIZE"
	EnvExpirePromosEvery  = "TEXNIKA_CRON_EXPIRE_PROMOS_INTERVAL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
