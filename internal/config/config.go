package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

type Config struct {
	Env      string `envconfig:"APP_ENV" default:"development"`
	Port     string `envconfig:"PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	MySQLUser     string `envconfig:"MYSQL_USER" default:"root"`
	MySQLPassword string `envconfig:"MYSQL_PASSWORD"`
	MySQLHost     string `envconfig:"MYSQL_HOST" default:"127.0.0.1"`
	MySQLPort     string `envconfig:"MYSQL_PORT" default:"3306"`
	MySQLDatabase string `envconfig:"MYSQL_DATABASE" default:"kasuwa"`
	MySQLMaxOpen  int    `envconfig:"MYSQL_MAX_OPEN_CONNS" default:"100"`
	MySQLMaxIdle  int    `envconfig:"MYSQL_MAX_IDLE_CONNS" default:"20"`

	RedisAddr     string        `envconfig:"REDIS_ADDR"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	ProductTTL    time.Duration `envconfig:"PRODUCT_CACHE_TTL" default:"5m"`

	EventBroker    string   `envconfig:"EVENT_BROKER" default:"rabbitmq"`
	RabbitMQURL    string   `envconfig:"RABBITMQ_URL"`
	RabbitExchange string   `envconfig:"RABBITMQ_EXCHANGE" default:"kasuwa.events"`
	KafkaBrokers   []string `envconfig:"KAFKA_BROKERS"`
	KafkaTopic     string   `envconfig:"KAFKA_TOPIC" default:"kasuwa.events"`

	JWTSecret      string   `envconfig:"JWT_SECRET" required:"true"`
	CORSOrigins    []string `envconfig:"CORS_ORIGINS" default:"*"`
	RateLimitRPS   float64  `envconfig:"RATE_LIMIT_RPS" default:"10"`
	RateLimitBurst int      `envconfig:"RATE_LIMIT_BURST" default:"20"`

	PaymentGatewayURL     string        `envconfig:"PAYMENT_GATEWAY_URL"`
	PaymentGatewayKey     string        `envconfig:"PAYMENT_GATEWAY_KEY"`
	PaymentGatewayTimeout time.Duration `envconfig:"PAYMENT_GATEWAY_TIMEOUT" default:"15s"`
	PaymentCallbackSecret string        `envconfig:"PAYMENT_CALLBACK_SECRET"`

	S3Bucket     string `envconfig:"S3_BUCKET"`
	S3Region     string `envconfig:"S3_REGION" default:"eu-west-1"`
	S3PublicBase string `envconfig:"S3_PUBLIC_BASE_URL"`

	Currency            string            `envconfig:"CURRENCY" default:"NGN"`
	ShippingRates       map[string]string `envconfig:"SHIPPING_RATES" default:"standard:1500,express:3500,pickup:0"`
	TaxRate             decimal.Decimal   `envconfig:"TAX_RATE" default:"0.075"`
	PriceDriftTolerance decimal.Decimal   `envconfig:"PRICE_DRIFT_TOLERANCE" default:"0"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET must not be empty")
	}
	if _, err := cfg.ShippingRateTable(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		c.MySQLUser, c.MySQLPassword, c.MySQLHost, c.MySQLPort, c.MySQLDatabase)
}

// ShippingRateTable parses SHIPPING_RATES into per-method costs.
func (c *Config) ShippingRateTable() (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(c.ShippingRates))
	for method, raw := range c.ShippingRates {
		cost, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil {
			return nil, errors.Wrapf(err, "shipping rate for %q", method)
		}
		if cost.IsNegative() {
			return nil, errors.Errorf("shipping rate for %q is negative", method)
		}
		out[strings.ToLower(strings.TrimSpace(method))] = cost
	}
	return out, nil
}
