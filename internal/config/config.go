package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.opentelemetry.io/otel/attribute"
)

// Config holds all configuration for the service.
type Config struct {
	// Server
	Port     int    `envconfig:"PORT" default:"80"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Storage and messaging. Empty values select the in-process fallbacks.
	RedisAddr     string   `envconfig:"REDIS_ADDR"`
	RedisPassword string   `envconfig:"REDIS_PASSWORD"`
	RedisDB       int      `envconfig:"REDIS_DB" default:"0"`
	PostgresDSN   string   `envconfig:"POSTGRES_DSN"`
	KafkaBrokers  []string `envconfig:"KAFKA_BROKERS"`

	// Gateway
	CallTimeout  time.Duration `envconfig:"CALL_TIMEOUT" default:"30s"`
	MaxAttempts  int           `envconfig:"MAX_ATTEMPTS" default:"3"`
	TokenMargin  time.Duration `envconfig:"TOKEN_SAFETY_MARGIN" default:"5m"`
	WaybillFloor int           `envconfig:"WAYBILL_FLOOR" default:"1000"`

	// Health monitor
	MonitorEnabled  bool          `envconfig:"MONITOR_ENABLED" default:"true"`
	MonitorInterval time.Duration `envconfig:"MONITOR_INTERVAL" default:"1m"`
	MonitorSLA      time.Duration `envconfig:"MONITOR_SLA" default:"2s"`
	ProbePincode    string        `envconfig:"PROBE_PINCODE" default:"110001"`

	// Optional file with rate cards and extra per-tier identities.
	RateCardsFile string `envconfig:"RATE_CARDS_FILE"`

	// Delhivery
	DelhiveryToken          string  `envconfig:"DELHIVERY_TOKEN"`
	DelhiveryBaseURL        string  `envconfig:"DELHIVERY_BASE_URL" default:"https://track.delhivery.com"`
	DelhiveryPickupLocation string  `envconfig:"DELHIVERY_PICKUP_LOCATION"`
	DelhiveryRateLimit      float64 `envconfig:"DELHIVERY_RATE_LIMIT" default:"10"`
	DelhiveryTier           string  `envconfig:"DELHIVERY_TIER" default:"surface"`
	DelhiveryEnabled        bool    `envconfig:"DELHIVERY_ENABLED" default:"true"`
	DelhiveryUseMock        bool    `envconfig:"DELHIVERY_USE_MOCK" default:"false"`

	// XpressBees
	XpressbeesUsername      string            `envconfig:"XPRESSBEES_USERNAME"`
	XpressbeesPassword      string            `envconfig:"XPRESSBEES_PASSWORD"`
	XpressbeesBaseURL       string            `envconfig:"XPRESSBEES_BASE_URL" default:"https://shipment.xpressbees.com"`
	XpressbeesOriginPincode string            `envconfig:"XPRESSBEES_ORIGIN_PINCODE"`
	XpressbeesCourierIDs    map[string]string `envconfig:"XPRESSBEES_COURIER_IDS"`
	XpressbeesRateLimit     float64           `envconfig:"XPRESSBEES_RATE_LIMIT" default:"5"`
	XpressbeesTier          string            `envconfig:"XPRESSBEES_TIER" default:"surface"`
	XpressbeesEnabled       bool              `envconfig:"XPRESSBEES_ENABLED" default:"true"`
	XpressbeesUseMock       bool              `envconfig:"XPRESSBEES_USE_MOCK" default:"false"`

	// Blue Dart
	BluedartClientID     string  `envconfig:"BLUEDART_CLIENT_ID"`
	BluedartClientSecret string  `envconfig:"BLUEDART_CLIENT_SECRET"`
	BluedartAuthURL      string  `envconfig:"BLUEDART_AUTH_URL" default:"https://apigateway.bluedart.com/in/transportation/token/v1/login"`
	BluedartBaseURL      string  `envconfig:"BLUEDART_BASE_URL" default:"https://apigateway.bluedart.com/in/transportation"`
	BluedartLoginID      string  `envconfig:"BLUEDART_LOGIN_ID"`
	BluedartLicenceKey   string  `envconfig:"BLUEDART_LICENCE_KEY"`
	BluedartCustomerCode string  `envconfig:"BLUEDART_CUSTOMER_CODE"`
	BluedartOriginArea   string  `envconfig:"BLUEDART_ORIGIN_AREA"`
	BluedartRateLimit    float64 `envconfig:"BLUEDART_RATE_LIMIT" default:"5"`
	BluedartTier         string  `envconfig:"BLUEDART_TIER" default:"express"`
	BluedartEnabled      bool    `envconfig:"BLUEDART_ENABLED" default:"true"`
	BluedartUseMock      bool    `envconfig:"BLUEDART_USE_MOCK" default:"false"`

	// Ecom Express
	EcomUsername  string  `envconfig:"ECOMEXPRESS_USERNAME"`
	EcomPassword  string  `envconfig:"ECOMEXPRESS_PASSWORD"`
	EcomBaseURL   string  `envconfig:"ECOMEXPRESS_BASE_URL" default:"https://api.ecomexpress.in"`
	EcomAWBType   string  `envconfig:"ECOMEXPRESS_AWB_TYPE" default:"PPD"`
	EcomRateLimit float64 `envconfig:"ECOMEXPRESS_RATE_LIMIT" default:"5"`
	EcomTier      string  `envconfig:"ECOMEXPRESS_TIER" default:"surface"`
	EcomEnabled   bool    `envconfig:"ECOMEXPRESS_ENABLED" default:"true"`
	EcomUseMock   bool    `envconfig:"ECOMEXPRESS_USE_MOCK" default:"false"`

	// Telemetry
	OTELEnabled  bool   `envconfig:"OTEL_ENABLED" default:"true"`
	OTELEndpoint string `envconfig:"OTEL_ENDPOINT" default:"http://jaeger-collector.claude.svc.cluster.local:4318"`
	ServiceName  string `envconfig:"SERVICE_NAME" default:"shipgate"`
	Version      string `envconfig:"SERVICE_VERSION" default:"0.0.1"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the gateway cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Port <= 0 || c.Port > 65535:
		return fmt.Errorf("invalid PORT %d", c.Port)
	case c.MaxAttempts < 1:
		return fmt.Errorf("MAX_ATTEMPTS must be at least 1, got %d", c.MaxAttempts)
	case c.CallTimeout <= 0:
		return fmt.Errorf("CALL_TIMEOUT must be positive, got %s", c.CallTimeout)
	}
	switch strings.ToUpper(c.EcomAWBType) {
	case "PPD", "COD":
	default:
		return fmt.Errorf("ECOMEXPRESS_AWB_TYPE must be PPD or COD, got %q", c.EcomAWBType)
	}
	return nil
}

// Attributes returns OpenTelemetry attributes for this configuration.
func (c *Config) Attributes() []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("service.name", c.ServiceName),
		attribute.String("service.version", c.Version),
		attribute.Bool("delhivery.enabled", c.DelhiveryEnabled),
		attribute.Bool("xpressbees.enabled", c.XpressbeesEnabled),
		attribute.Bool("bluedart.enabled", c.BluedartEnabled),
		attribute.Bool("ecomexpress.enabled", c.EcomEnabled),
		attribute.Bool("redis.enabled", c.RedisAddr != ""),
		attribute.Bool("kafka.enabled", len(c.KafkaBrokers) > 0),
	}
}
