package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App       AppConfig
	Service   ServiceConfig
	DB        DBConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Password  PasswordConfig
	Session   SessionConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Eventing  EventingConfig
	Storage   StorageConfig
	GCP       GCPConfig
	GCS       GCSConfig
	Outbox    OutboxConfig
	Kafka     KafkaConfig
	PubSub    PubSubConfig
	Search    SearchConfig
	Cron      CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Storage.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"BOOKSWAP_APP_ENV" required:"true"`
	Port         string `envconfig:"BOOKSWAP_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"BOOKSWAP_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"BOOKSWAP_LOG_WARN_STACK" default:"false"`

	// AdminEmails are promoted to the admin role when they register.
	AdminEmails []string `envconfig:"BOOKSWAP_ADMIN_EMAILS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// IsAdminEmail reports whether email is on the bootstrap admin list.
func (a AppConfig) IsAdminEmail(email string) bool {
	email = strings.TrimSpace(email)
	for _, candidate := range a.AdminEmails {
		if strings.EqualFold(strings.TrimSpace(candidate), email) {
			return true
		}
	}
	return false
}

type ServiceConfig struct {
	Kind string `envconfig:"BOOKSWAP_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"BOOKSWAP_DB_DSN"`
	Driver string `envconfig:"BOOKSWAP_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"BOOKSWAP_DB_HOST"`
	Port     int    `envconfig:"BOOKSWAP_DB_PORT" default:"5432"`
	User     string `envconfig:"BOOKSWAP_DB_USER"`
	Password string `envconfig:"BOOKSWAP_DB_PASSWORD"`
	Name     string `envconfig:"BOOKSWAP_DB_NAME"`
	SSLMode  string `envconfig:"BOOKSWAP_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"BOOKSWAP_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"BOOKSWAP_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"BOOKSWAP_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"BOOKSWAP_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	AutoMigrate bool `envconfig:"BOOKSWAP_DB_AUTO_MIGRATE" default:"false"`
}

type RedisConfig struct {
	URL          string        `envconfig:"BOOKSWAP_REDIS_URL" required:"true"`
	Address      string        `envconfig:"BOOKSWAP_REDIS_ADDR"`
	Password     string        `envconfig:"BOOKSWAP_REDIS_PASSWORD"`
	DB           int           `envconfig:"BOOKSWAP_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"BOOKSWAP_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"BOOKSWAP_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"BOOKSWAP_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"BOOKSWAP_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"BOOKSWAP_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"BOOKSWAP_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"BOOKSWAP_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"BOOKSWAP_JWT_EXPIRATION_MINUTES" default:"1440"`
}

// Expiration returns the token and session lifetime.
func (j JWTConfig) Expiration() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"BOOKSWAP_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"BOOKSWAP_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"BOOKSWAP_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"BOOKSWAP_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"BOOKSWAP_ARGON_KEY_LEN" default:"32"`
}

type SessionConfig struct {
	CookieName   string `envconfig:"BOOKSWAP_SESSION_COOKIE_NAME" default:"bookswap_session"`
	CookieDomain string `envconfig:"BOOKSWAP_SESSION_COOKIE_DOMAIN"`
	CookieSecure bool   `envconfig:"BOOKSWAP_SESSION_COOKIE_SECURE" default:"false"`
}

type RateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"BOOKSWAP_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"BOOKSWAP_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"BOOKSWAP_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"BOOKSWAP_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"BOOKSWAP_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"BOOKSWAP_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
	PurchaseWindow     time.Duration `envconfig:"BOOKSWAP_RATE_LIMIT_PURCHASE_WINDOW" default:"10m"`
	PurchaseIPLimit    int           `envconfig:"BOOKSWAP_RATE_LIMIT_PURCHASE_IP_LIMIT" default:"10"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"BOOKSWAP_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

type EventingConfig struct {
	IdempotencyTTL time.Duration `envconfig:"BOOKSWAP_EVENTING_IDEMPOTENCY_TTL" default:"24h"`
}

type StorageConfig struct {
	Backend    string `envconfig:"BOOKSWAP_STORAGE_BACKEND" default:"local"`
	LocalRoot  string `envconfig:"BOOKSWAP_STORAGE_LOCAL_ROOT" default:"uploads"`
	MaxImageMB int    `envconfig:"BOOKSWAP_STORAGE_MAX_IMAGE_MB" default:"5"`
}

// MaxImageBytes returns the per-file upload ceiling.
func (s StorageConfig) MaxImageBytes() int64 {
	if s.MaxImageMB <= 0 {
		return 5 << 20
	}
	return int64(s.MaxImageMB) << 20
}

func (s StorageConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(s.Backend)) {
	case StorageBackendLocal, StorageBackendGCS:
		return nil
	default:
		return fmt.Errorf("%s must be one of %q or %q", EnvStorageBackend, StorageBackendLocal, StorageBackendGCS)
	}
}

type GCPConfig struct {
	ProjectID              string `envconfig:"BOOKSWAP_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"BOOKSWAP_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"BOOKSWAP_GOOGLE_APPLICATION_CREDENTIALS"`
}

type GCSConfig struct {
	BucketName string `envconfig:"BOOKSWAP_GCS_BUCKET_NAME"`
}

type OutboxConfig struct {
	Broker         string        `envconfig:"BOOKSWAP_OUTBOX_BROKER" default:"kafka"`
	BatchSize      int           `envconfig:"BOOKSWAP_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"BOOKSWAP_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"BOOKSWAP_OUTBOX_MAX_ATTEMPTS" default:"10"`
	Retention      time.Duration `envconfig:"BOOKSWAP_OUTBOX_RETENTION" default:"720h"`
	MetricsAddr    string        `envconfig:"BOOKSWAP_OUTBOX_METRICS_ADDR" default:":9103"`
}

type KafkaConfig struct {
	Brokers       []string `envconfig:"BOOKSWAP_KAFKA_BROKERS" default:"localhost:9092"`
	PurchaseTopic string   `envconfig:"BOOKSWAP_KAFKA_PURCHASE_TOPIC" default:"bookswap.purchases"`
	ListingTopic  string   `envconfig:"BOOKSWAP_KAFKA_LISTING_TOPIC" default:"bookswap.listings"`
}

type PubSubConfig struct {
	PurchaseTopic string `envconfig:"BOOKSWAP_PUBSUB_PURCHASE_TOPIC" default:"bookswap-purchase-events"`
	ListingTopic  string `envconfig:"BOOKSWAP_PUBSUB_LISTING_TOPIC" default:"bookswap-listing-events"`
}

type SearchConfig struct {
	Enabled   bool     `envconfig:"BOOKSWAP_SEARCH_ENABLED" default:"false"`
	Addresses []string `envconfig:"BOOKSWAP_SEARCH_ADDRESSES" default:"http://localhost:9200"`
	Index     string   `envconfig:"BOOKSWAP_SEARCH_INDEX" default:"listings"`
	Username  string   `envconfig:"BOOKSWAP_SEARCH_USERNAME"`
	Password  string   `envconfig:"BOOKSWAP_SEARCH_PASSWORD"`
}

type CronConfig struct {
	Interval         time.Duration `envconfig:"BOOKSWAP_CRON_INTERVAL" default:"5m"`
	MetricsAddr      string        `envconfig:"BOOKSWAP_CRON_METRICS_ADDR" default:":9102"`
	CartReconcileMax int           `envconfig:"BOOKSWAP_CRON_CART_RECONCILE_BATCH" default:"200"`
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
