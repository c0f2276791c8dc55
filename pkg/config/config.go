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
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Search       SearchConfig
	Billing      BillingConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Search.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"TEXNIKA_APP_ENV" required:"true"`
	Port         string `envconfig:"TEXNIKA_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"TEXNIKA_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"TEXNIKA_LOG_WARN_STACK" default:"false"`
	CORSOrigins  string `envconfig:"TEXNIKA_CORS_ORIGINS" default:"*"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// AllowedOrigins splits the comma separated CORS origin list.
func (a AppConfig) AllowedOrigins() []string {
	out := []string{}
	for _, origin := range strings.Split(a.CORSOrigins, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

type ServiceConfig struct {
	Kind string `envconfig:"TEXNIKA_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"TEXNIKA_DB_DSN"`
	// Driver is "postgres" or "sqlite"; sqlite takes DSN as a file path.
	Driver string `envconfig:"TEXNIKA_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"TEXNIKA_DB_HOST"`
	LegacyPort     int    `envconfig:"TEXNIKA_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"TEXNIKA_DB_USER"`
	LegacyPassword string `envconfig:"TEXNIKA_DB_PASSWORD"`
	LegacyName     string `envconfig:"TEXNIKA_DB_NAME"`
	LegacySSLMode  string `envconfig:"TEXNIKA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"TEXNIKA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"TEXNIKA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"TEXNIKA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"TEXNIKA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	// SlowQuery is the statement duration above which queries are logged at warn.
	SlowQuery time.Duration `envconfig:"TEXNIKA_DB_SLOW_QUERY" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"TEXNIKA_REDIS_URL"`
	Address      string        `envconfig:"TEXNIKA_REDIS_ADDR"`
	Password     string        `envconfig:"TEXNIKA_REDIS_PASSWORD"`
	DB           int           `envconfig:"TEXNIKA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"TEXNIKA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"TEXNIKA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"TEXNIKA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TEXNIKA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"TEXNIKA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig verifies access tokens minted by the identity service.
type JWTConfig struct {
	Secret string `envconfig:"TEXNIKA_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"TEXNIKA_JWT_ISSUER" default:"texnika"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"TEXNIKA_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	ConsumerIdempotencyTTL time.Duration `envconfig:"TEXNIKA_EVENTING_IDEMPOTENCY_TTL" default:"72h"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"TEXNIKA_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	SearchTopic        string `envconfig:"TEXNIKA_PUBSUB_SEARCH_TOPIC" default:"texnika-search-events"`
	SearchSubscription string `envconfig:"TEXNIKA_PUBSUB_SEARCH_SUBSCRIPTION" default:"texnika-search-resync"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"TEXNIKA_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"TEXNIKA_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"TEXNIKA_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int `envconfig:"TEXNIKA_OUTBOX_RETENTION_DAYS" default:"30"`
}

type SearchConfig struct {
	Backend            string `envconfig:"TEXNIKA_SEARCH_BACKEND" default:"opensearch"`
	Node               string `envconfig:"TEXNIKA_OPENSEARCH_NODE" default:"http://localhost:9200"`
	Username           string `envconfig:"TEXNIKA_OPENSEARCH_USERNAME"`
	Password           string `envconfig:"TEXNIKA_OPENSEARCH_PASSWORD"`
	InsecureTLS        bool   `envconfig:"TEXNIKA_OPENSEARCH_INSECURE_TLS" default:"false"`
	Index              string `envconfig:"TEXNIKA_SEARCH_INDEX" default:"listings"`
	ReindexBatchSize   int    `envconfig:"TEXNIKA_SEARCH_REINDEX_BATCH_SIZE" default:"200"`
	RequestTimeoutSecs int    `envconfig:"TEXNIKA_SEARCH_REQUEST_TIMEOUT_SECONDS" default:"10"`
}

// Nodes splits the configured OpenSearch node list.
func (s SearchConfig) Nodes() []string {
	nodes := []string{}
	for _, node := range strings.Split(s.Node, ",") {
		if trimmed := strings.TrimSpace(node); trimmed != "" {
			nodes = append(nodes, trimmed)
		}
	}
	return nodes
}

// UsesMemory reports whether the in-process index was selected.
func (s SearchConfig) UsesMemory() bool {
	return strings.EqualFold(strings.TrimSpace(s.Backend), SearchBackendMemory)
}

func (s SearchConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(s.Backend)) {
	case SearchBackendOpenSearch:
		if len(s.Nodes()) == 0 {
			return fmt.Errorf("%s is required for the opensearch backend", EnvOpenSearchNode)
		}
	case SearchBackendMemory:
	default:
		return fmt.Errorf("unsupported search backend %q", s.Backend)
	}
	if strings.TrimSpace(s.Index) == "" {
		return fmt.Errorf("%s is required", EnvSearchIndex)
	}
	return nil
}

type BillingConfig struct {
	RecentTransactions int   `envconfig:"TEXNIKA_BILLING_RECENT_TRANSACTIONS" default:"25"`
	TransactionsLimit  int   `envconfig:"TEXNIKA_BILLING_TRANSACTIONS_LIMIT" default:"50"`
	TopUpMax           int64 `envconfig:"TEXNIKA_BILLING_TOPUP_MAX" default:"100000000"`

	// Per-user fixed window on payment and top-up endpoints. Zero disables it.
	RateLimitWindow  time.Duration `envconfig:"TEXNIKA_BILLING_RATE_LIMIT_WINDOW" default:"1m"`
	RateLimitPerUser int           `envconfig:"TEXNIKA_BILLING_RATE_LIMIT_PER_USER" default:"30"`
	IdempotencyTTL   time.Duration `envconfig:"TEXNIKA_BILLING_IDEMPOTENCY_TTL" default:"24h"`
}

type CronConfig struct {
	ExpirePromotionsInterval time.Duration `envconfig:"TEXNIKA_CRON_EXPIRE_PROMOS_INTERVAL" default:"1h"`
	LockTTL                  time.Duration `envconfig:"TEXNIKA_CRON_LOCK_TTL" default:"10m"`
	OutboxRetentionEvery     time.Duration `envconfig:"TEXNIKA_CRON_OUTBOX_RETENTION_EVERY" default:"24h"`
	FreshnessRefreshEvery    time.Duration `envconfig:"TEXNIKA_CRON_FRESHNESS_REFRESH_EVERY" default:"6h"`
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
