package config

const EnvPrefix = "DROPSHOP"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	PaidAmountPolicyReplicate = "replicate"
	PaidAmountPolicyProrate   = "prorate"
)

const (
	EnvAppEnv                  = "DROPSHOP_APP_ENV"
	EnvPort                    = "DROPSHOP_APP_PORT"
	EnvDBDSN                   = "DROPSHOP_DB_DSN"
	EnvDBHost                  = "DROPSHOP_DB_HOST"
	EnvDBUser                  = "DROPSHOP_DB_USER"
	EnvDBPassword              = "DROPSHOP_DB_PASSWORD"
	EnvDBName                  = "DROPSHOP_DB_NAME"
	EnvRedisURL                = "DROPSHOP_REDIS_URL"
	EnvGCPProjectID            = "DROPSHOP_GCP_PROJECT_ID"
	EnvPubSubOrdersTopic       = "DROPSHOP_PUBSUB_ORDERS_TOPIC"
	EnvPubSubOrdersSub         = "DROPSHOP_PUBSUB_ORDERS_SUBSCRIPTION"
	EnvShopeePartnerID         = "DROPSHOP_SHOPEE_PARTNER_ID"
	EnvShopeePartnerKey        = "DROPSHOP_SHOPEE_PARTNER_KEY"
	EnvGatewayPaidAmountPolicy = "DROPSHOP_GATEWAY_PAID_AMOUNT_POLICY"
	EnvPipelineSellerCacheTTL  = "DROPSHOP_PIPELINE_SELLER_CACHE_TTL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
