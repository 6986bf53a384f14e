package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App            AppConfig
	Service        ServiceConfig
	DB             DBConfig
	Redis          RedisConfig
	JWT            JWTConfig
	Password       PasswordConfig
	AuthRateLimit  AuthRateLimitConfig
	FeatureFlags   FeatureFlagsConfig
	Eventing       EventingConfig
	GCP            GCPConfig
	PubSub         PubSubConfig
	BigQuery       BigQueryConfig
	Outbox         OutboxConfig
	Cron           CronConfig
	Warehouse      WarehouseConfig
	Carriers       CarriersConfig
	CircuitBreaker CircuitBreakerConfig
	PayOS          PayOSConfig
	Maps           MapsConfig
	Fulfillment    FulfillmentConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.FeatureFlags.UseSQLite {
		cfg.DB.Driver = "sqlite"
		if cfg.DB.DSN == "" {
			cfg.DB.DSN = "file:printz.db?cache=shared"
		}
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.JWT.AccessTokenTTL() <= 0 {
		return fmt.Errorf("%s must be positive", EnvJWTExpMins)
	}
	if !c.App.IsProd() {
		return nil
	}
	missing := []string{}
	if strings.TrimSpace(c.PayOS.ChecksumKey) == "" {
		missing = append(missing, EnvPayOSChecksumKey)
	}
	if len(c.JWT.Secret) < 32 {
		missing = append(missing, EnvJWTSecret+" (min 32 chars)")
	}
	if len(missing) > 0 {
		return fmt.Errorf("production config incomplete: %s", strings.Join(missing, ", "))
	}
	return nil
}

type AppConfig struct {
	Env                    string        `envconfig:"PRINTZ_APP_ENV" required:"true"`
	Port                   string        `envconfig:"PRINTZ_APP_PORT" required:"true"`
	LogLevel               string        `envconfig:"PRINTZ_LOG_LEVEL" default:"info"`
	LogWarnStack           bool          `envconfig:"PRINTZ_LOG_WARN_STACK" default:"false"`
	CORSOrigins            string        `envconfig:"PRINTZ_CORS_ORIGINS" default:"*"`
	CookieDomain           string        `envconfig:"PRINTZ_COOKIE_DOMAIN"`
	// IdempotencyInFlightTTL is how long an unfinished guarded request holds its key.
	IdempotencyInFlightTTL time.Duration `envconfig:"PRINTZ_IDEMPOTENCY_IN_FLIGHT_TTL" default:"10m"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// AllowedOrigins splits the comma separated CORS origin list.
func (a AppConfig) AllowedOrigins() []string {
	parts := strings.Split(a.CORSOrigins, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}

type ServiceConfig struct {
	Kind        string `envconfig:"PRINTZ_SERVICE_KIND" default:"api"`
	// MetricsAddr exposes /metrics from background binaries, e.g. ":9102".
	MetricsAddr string `envconfig:"PRINTZ_METRICS_ADDR"`
}

type DBConfig struct {
	DSN    string `envconfig:"PRINTZ_DB_DSN"`
	Driver string `envconfig:"PRINTZ_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"PRINTZ_DB_HOST"`
	Port     int    `envconfig:"PRINTZ_DB_PORT" default:"5432"`
	User     string `envconfig:"PRINTZ_DB_USER"`
	Password string `envconfig:"PRINTZ_DB_PASSWORD"`
	Name     string `envconfig:"PRINTZ_DB_NAME"`
	SSLMode  string `envconfig:"PRINTZ_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"PRINTZ_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PRINTZ_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PRINTZ_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PRINTZ_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"PRINTZ_DB_SLOW_QUERY" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"PRINTZ_REDIS_URL" required:"true"`
	Address      string        `envconfig:"PRINTZ_REDIS_ADDR"`
	Password     string        `envconfig:"PRINTZ_REDIS_PASSWORD"`
	DB           int           `envconfig:"PRINTZ_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PRINTZ_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PRINTZ_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PRINTZ_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PRINTZ_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PRINTZ_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"PRINTZ_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"PRINTZ_JWT_ISSUER" default:"printz"`
	ExpirationMinutes      int    `envconfig:"PRINTZ_JWT_EXPIRATION_MINUTES" default:"15"`
	RefreshTokenTTLMinutes int    `envconfig:"PRINTZ_REFRESH_TOKEN_TTL_MINUTES" default:"10080"`
}

// AccessTokenTTL returns the access token lifetime, or zero when unset.
func (j JWTConfig) AccessTokenTTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"PRINTZ_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"PRINTZ_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"PRINTZ_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"PRINTZ_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"PRINTZ_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"PRINTZ_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"PRINTZ_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"PRINTZ_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"PRINTZ_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"PRINTZ_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"PRINTZ_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	UseSQLite         bool `envconfig:"PRINTZ_USE_SQLITE" default:"false"`
	AutoMigrate       bool `envconfig:"PRINTZ_AUTO_MIGRATE" default:"false"`
	RequireVerified   bool `envconfig:"PRINTZ_REQUIRE_VERIFIED_EMAIL" default:"true"`
	DashboardSnapshot bool `envconfig:"PRINTZ_DASHBOARD_SNAPSHOT" default:"false"`
}

type EventingConfig struct {
	IdempotencyTTL time.Duration `envconfig:"PRINTZ_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
	WebhookTTL     time.Duration `envconfig:"PRINTZ_WEBHOOK_REPLAY_TTL" default:"72h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"PRINTZ_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"PRINTZ_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"PRINTZ_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	DomainTopic        string `envconfig:"PRINTZ_PUBSUB_DOMAIN_TOPIC" default:"printz-domain-events"`
	DomainSubscription string `envconfig:"PRINTZ_PUBSUB_DOMAIN_SUBSCRIPTION" default:"printz-domain-events-worker"`
}

type BigQueryConfig struct {
	Dataset        string `envconfig:"PRINTZ_BIGQUERY_DATASET" default:"printz"`
	SnapshotsTable string `envconfig:"PRINTZ_BIGQUERY_SNAPSHOTS_TABLE" default:"dashboard_snapshots"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"PRINTZ_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"PRINTZ_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"PRINTZ_OUTBOX_MAX_ATTEMPTS" default:"10"`
	Retention      time.Duration `envconfig:"PRINTZ_OUTBOX_RETENTION" default:"720h"`
}

type CronConfig struct {
	Interval   time.Duration `envconfig:"PRINTZ_CRON_INTERVAL" default:"24h"`
	// LockTTL overrides the lock lifetime derived from JobTimeout and the job count.
	LockTTL    time.Duration `envconfig:"PRINTZ_CRON_LOCK_TTL"`
	StartAt    string        `envconfig:"PRINTZ_CRON_START_AT" default:"02:00"`
	Timezone   string        `envconfig:"PRINTZ_CRON_TIMEZONE" default:"Asia/Ho_Chi_Minh"`
	Jobs       []string      `envconfig:"PRINTZ_CRON_JOBS"`
	// JobTimeout bounds each job run; RunOnce runs a single cycle and exits.
	JobTimeout time.Duration `envconfig:"PRINTZ_CRON_JOB_TIMEOUT" default:"30m"`
	RunOnce    bool          `envconfig:"PRINTZ_CRON_RUN_ONCE"`
}

// WarehouseConfig is the sender block stamped on every carrier shipment.
type WarehouseConfig struct {
	Name     string `envconfig:"PRINTZ_WAREHOUSE_NAME" default:"Printz Fulfillment"`
	Phone    string `envconfig:"PRINTZ_WAREHOUSE_PHONE" default:"0123456789"`
	Street   string `envconfig:"PRINTZ_WAREHOUSE_STREET"`
	Ward     string `envconfig:"PRINTZ_WAREHOUSE_WARD"`
	District string `envconfig:"PRINTZ_WAREHOUSE_DISTRICT"`
	Province string `envconfig:"PRINTZ_WAREHOUSE_PROVINCE" default:"Ha Noi"`
}

type CarrierConfig struct {
	BaseURL       string
	Token         string
	ShopID        string
	WebhookSecret string
	RatePerSecond float64
	Burst         int
}

// Enabled reports whether the carrier has credentials to call out with.
func (c CarrierConfig) Enabled() bool {
	return strings.TrimSpace(c.Token) != ""
}

type CarriersConfig struct {
	GHNBaseURL       string  `envconfig:"PRINTZ_GHN_BASE_URL" default:"https://online-gateway.ghn.vn/shiip/public-api"`
	GHNToken         string  `envconfig:"PRINTZ_GHN_TOKEN"`
	GHNShopID        string  `envconfig:"PRINTZ_GHN_SHOP_ID"`
	GHNWebhookSecret string  `envconfig:"PRINTZ_GHN_WEBHOOK_SECRET"`
	GHNRate          float64 `envconfig:"PRINTZ_GHN_RATE" default:"5"`

	GHTKBaseURL       string  `envconfig:"PRINTZ_GHTK_BASE_URL" default:"https://services.giaohangtietkiem.vn"`
	GHTKToken         string  `envconfig:"PRINTZ_GHTK_TOKEN"`
	GHTKWebhookSecret string  `envconfig:"PRINTZ_GHTK_WEBHOOK_SECRET"`
	GHTKRate          float64 `envconfig:"PRINTZ_GHTK_RATE" default:"5"`

	ViettelPostBaseURL       string  `envconfig:"PRINTZ_VIETTELPOST_BASE_URL" default:"https://partner.viettelpost.vn/v2"`
	ViettelPostToken         string  `envconfig:"PRINTZ_VIETTELPOST_TOKEN"`
	ViettelPostWebhookSecret string  `envconfig:"PRINTZ_VIETTELPOST_WEBHOOK_SECRET"`
	ViettelPostRate          float64 `envconfig:"PRINTZ_VIETTELPOST_RATE" default:"5"`

	JTBaseURL       string  `envconfig:"PRINTZ_JT_BASE_URL" default:"https://openapi.jtexpress.vn/webopenplatformapi/api"`
	JTToken         string  `envconfig:"PRINTZ_JT_TOKEN"`
	JTCustomerCode  string  `envconfig:"PRINTZ_JT_CUSTOMER_CODE"`
	JTWebhookSecret string  `envconfig:"PRINTZ_JT_WEBHOOK_SECRET"`
	JTRate          float64 `envconfig:"PRINTZ_JT_RATE" default:"5"`

	NinjaVanBaseURL       string  `envconfig:"PRINTZ_NINJAVAN_BASE_URL" default:"https://api.ninjavan.co/vn"`
	NinjaVanToken         string  `envconfig:"PRINTZ_NINJAVAN_TOKEN"`
	NinjaVanWebhookSecret string  `envconfig:"PRINTZ_NINJAVAN_WEBHOOK_SECRET"`
	NinjaVanRate          float64 `envconfig:"PRINTZ_NINJAVAN_RATE" default:"5"`

	RequestTimeout time.Duration `envconfig:"PRINTZ_CARRIER_REQUEST_TIMEOUT" default:"15s"`
}

// For returns the normalized settings for a carrier code.
func (c CarriersConfig) For(code string) CarrierConfig {
	switch code {
	case CarrierGHN:
		return CarrierConfig{BaseURL: c.GHNBaseURL, Token: c.GHNToken, ShopID: c.GHNShopID, WebhookSecret: c.GHNWebhookSecret, RatePerSecond: c.GHNRate, Burst: 1}
	case CarrierGHTK:
		return CarrierConfig{BaseURL: c.GHTKBaseURL, Token: c.GHTKToken, WebhookSecret: c.GHTKWebhookSecret, RatePerSecond: c.GHTKRate, Burst: 1}
	case CarrierViettelPost:
		return CarrierConfig{BaseURL: c.ViettelPostBaseURL, Token: c.ViettelPostToken, WebhookSecret: c.ViettelPostWebhookSecret, RatePerSecond: c.ViettelPostRate, Burst: 1}
	case CarrierJT:
		return CarrierConfig{BaseURL: c.JTBaseURL, Token: c.JTToken, ShopID: c.JTCustomerCode, WebhookSecret: c.JTWebhookSecret, RatePerSecond: c.JTRate, Burst: 1}
	case CarrierNinjaVan:
		return CarrierConfig{BaseURL: c.NinjaVanBaseURL, Token: c.NinjaVanToken, WebhookSecret: c.NinjaVanWebhookSecret, RatePerSecond: c.NinjaVanRate, Burst: 1}
	}
	return CarrierConfig{}
}

type CircuitBreakerConfig struct {
	FailureThreshold int           `envconfig:"PRINTZ_BREAKER_FAILURE_THRESHOLD" default:"5"`
	ResetTimeout     time.Duration `envconfig:"PRINTZ_BREAKER_RESET_TIMEOUT" default:"30s"`
}

type PayOSConfig struct {
	ClientID    string `envconfig:"PRINTZ_PAYOS_CLIENT_ID"`
	APIKey      string `envconfig:"PRINTZ_PAYOS_API_KEY"`
	ChecksumKey string `envconfig:"PRINTZ_PAYOS_CHECKSUM_KEY"`
	BaseURL     string `envconfig:"PRINTZ_PAYOS_BASE_URL" default:"https://api-merchant.payos.vn"`
	ReturnURL   string `envconfig:"PRINTZ_PAYOS_RETURN_URL" default:"http://localhost:5173/checkout/success"`
	CancelURL   string `envconfig:"PRINTZ_PAYOS_CANCEL_URL" default:"http://localhost:5173/checkout/cancel"`
}

// Enabled reports whether payment links can be created.
func (c PayOSConfig) Enabled() bool {
	return strings.TrimSpace(c.ClientID) != "" && strings.TrimSpace(c.APIKey) != "" && strings.TrimSpace(c.ChecksumKey) != ""
}

type MapsConfig struct {
	APIKey       string `envconfig:"PRINTZ_GOOGLE_MAPS_API_KEY"`
	RegionCode   string `envconfig:"PRINTZ_GOOGLE_MAPS_REGION" default:"VN"`
	LanguageCode string `envconfig:"PRINTZ_GOOGLE_MAPS_LANGUAGE" default:"vi"`
}

func (c MapsConfig) Enabled() bool {
	return strings.TrimSpace(c.APIKey) != ""
}

type FulfillmentConfig struct {
	KittingFeePerRecipient int64 `envconfig:"PRINTZ_KITTING_FEE_PER_RECIPIENT" default:"5000"`
	TaxPercent             int64 `envconfig:"PRINTZ_TAX_PERCENT" default:"10"`
	StandardShippingFee    int64 `envconfig:"PRINTZ_SHIPPING_FEE_STANDARD" default:"30000"`
	ExpressShippingFee     int64 `envconfig:"PRINTZ_SHIPPING_FEE_EXPRESS" default:"50000"`
	OvernightShippingFee   int64 `envconfig:"PRINTZ_SHIPPING_FEE_OVERNIGHT" default:"80000"`
	BulkShipConcurrency    int   `envconfig:"PRINTZ_BULK_SHIP_CONCURRENCY" default:"4"`
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
	for _, env := range dbPartEnvVars {
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
