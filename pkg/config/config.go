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
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Shopee       ShopeeConfig
	Gateway      GatewayConfig
	Pipeline     PipelineConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Gateway.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"DROPSHOP_APP_ENV" required:"true"`
	Port         string `envconfig:"DROPSHOP_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"DROPSHOP_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"DROPSHOP_LOG_WARN_STACK" default:"false"`

	// CORSOrigins is the comma separated allow list for browser clients.
	CORSOrigins []string `envconfig:"DROPSHOP_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"DROPSHOP_DB_DSN"`
	Driver string `envconfig:"DROPSHOP_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"DROPSHOP_DB_HOST"`
	LegacyPort     int    `envconfig:"DROPSHOP_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"DROPSHOP_DB_USER"`
	LegacyPassword string `envconfig:"DROPSHOP_DB_PASSWORD"`
	LegacyName     string `envconfig:"DROPSHOP_DB_NAME"`
	LegacySSLMode  string `envconfig:"DROPSHOP_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"DROPSHOP_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"DROPSHOP_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"DROPSHOP_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"DROPSHOP_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"DROPSHOP_REDIS_URL" required:"true"`
	Address      string        `envconfig:"DROPSHOP_REDIS_ADDR"`
	Password     string        `envconfig:"DROPSHOP_REDIS_PASSWORD"`
	DB           int           `envconfig:"DROPSHOP_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"DROPSHOP_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"DROPSHOP_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"DROPSHOP_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"DROPSHOP_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"DROPSHOP_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"DROPSHOP_AUTO_MIGRATE" default:"false"`
	// QueueOrders routes Shopee order pushes through Pub/Sub instead of processing inline.
	QueueOrders bool `envconfig:"DROPSHOP_FEATURE_QUEUE_ORDERS" default:"true"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"DROPSHOP_GCP_PROJECT_ID" required:"true"`
}

type PubSubConfig struct {
	OrdersTopic        string `envconfig:"DROPSHOP_PUBSUB_ORDERS_TOPIC" required:"true"`
	OrdersSubscription string `envconfig:"DROPSHOP_PUBSUB_ORDERS_SUBSCRIPTION" required:"true"`
}

type ShopeeConfig struct {
	PartnerID  int64  `envconfig:"DROPSHOP_SHOPEE_PARTNER_ID"`
	PartnerKey string `envconfig:"DROPSHOP_SHOPEE_PARTNER_KEY"`
	Host       string `envconfig:"DROPSHOP_SHOPEE_HOST" default:"https://partner.shopeemobile.com"`
	// PushURL is the public callback URL registered with Shopee; it is part of the push signature base.
	PushURL        string        `envconfig:"DROPSHOP_SHOPEE_PUSH_URL"`
	RequestTimeout time.Duration `envconfig:"DROPSHOP_SHOPEE_REQUEST_TIMEOUT" default:"15s"`

	// SkipPushVerify disables push signature checks. Local runs only.
	SkipPushVerify bool `envconfig:"DROPSHOP_SHOPEE_SKIP_PUSH_VERIFY" default:"false"`
}

type GatewayConfig struct {
	CheckoutBaseURL  string `envconfig:"DROPSHOP_GATEWAY_CHECKOUT_BASE_URL" default:"https://checkout.infinitepay.io"`
	Handle           string `envconfig:"DROPSHOP_GATEWAY_HANDLE"`
	RedirectURL      string `envconfig:"DROPSHOP_GATEWAY_REDIRECT_URL"`
	WebhookURL       string `envconfig:"DROPSHOP_GATEWAY_WEBHOOK_URL"`
	PaidAmountPolicy string `envconfig:"DROPSHOP_GATEWAY_PAID_AMOUNT_POLICY" default:"replicate"`

	// WebhookSecret, when set, must be echoed in the X-Webhook-Secret header.
	WebhookSecret string `envconfig:"DROPSHOP_GATEWAY_WEBHOOK_SECRET"`
}

func (g GatewayConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(g.PaidAmountPolicy)) {
	case PaidAmountPolicyReplicate, PaidAmountPolicyProrate:
		return nil
	default:
		return fmt.Errorf("%s must be %q or %q", EnvGatewayPaidAmountPolicy, PaidAmountPolicyReplicate, PaidAmountPolicyProrate)
	}
}

// Policy returns the normalized paid amount policy.
func (g GatewayConfig) Policy() string {
	policy := strings.ToLower(strings.TrimSpace(g.PaidAmountPolicy))
	if policy == "" {
		return PaidAmountPolicyReplicate
	}
	return policy
}

type PipelineConfig struct {
	FanOutConcurrency     int           `envconfig:"DROPSHOP_PIPELINE_FANOUT_CONCURRENCY" default:"4"`
	CheckpointLease       time.Duration `envconfig:"DROPSHOP_PIPELINE_CHECKPOINT_LEASE" default:"2m"`
	SellerCacheTTL        time.Duration `envconfig:"DROPSHOP_PIPELINE_SELLER_CACHE_TTL" default:"5m"`
	WebhookIdempotencyTTL time.Duration `envconfig:"DROPSHOP_PIPELINE_WEBHOOK_IDEMPOTENCY_TTL" default:"72h"`
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
