package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/jinzhu/copier"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	JWT         JWTConfig         `mapstructure:"jwt"`
	Log         LogConfig         `mapstructure:"log"`
	Lightning   LightningConfig   `mapstructure:"lightning"`
	RatePoller  RatePollerConfig  `mapstructure:"rate_poller"`
	Adapter     AdapterConfig     `mapstructure:"adapter"`
	Webhook     WebhookConfig     `mapstructure:"webhook"`
	Capability  CapabilityConfig  `mapstructure:"capability"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AcquireTimeout  time.Duration `mapstructure:"acquire_timeout"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// LightningConfig configures the gRPC connection to the LND node the
// invoice watcher subscribes to (internal/lightning.Client).
type LightningConfig struct {
	GRPCHost              string `mapstructure:"grpc_host"`
	GRPCPort              string `mapstructure:"grpc_port"`
	TLSCertPath           string `mapstructure:"tls_cert_path"`
	MacaroonPath          string `mapstructure:"macaroon_path"`
	Network               string `mapstructure:"network"`
	PaymentTimeoutSeconds int    `mapstructure:"payment_timeout_seconds"`
}

// RatePollerConfig configures the BTC/USD median-of-sources poller that
// drives the Pricing Oracle (spec §4.3's external collaborator).
type RatePollerConfig struct {
	Sources  []string      `mapstructure:"sources"` // coinbase, coingecko, bitstamp
	Interval time.Duration `mapstructure:"interval"`
}

// AdapterConfig configures the per-service outbound throttle in the
// GenericHttp adapter.
type AdapterConfig struct {
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	Timeout           time.Duration `mapstructure:"timeout"`
}

// WebhookConfig holds the shared secrets used to verify inbound
// Lightning/Stripe webhook signatures (C11).
type WebhookConfig struct {
	LightningSecret string `mapstructure:"lightning_secret"`
	StripeSecret    string `mapstructure:"stripe_secret"`
}

// CapabilityMapping binds one capability verb to a service slug at a
// given priority, the seed the Capability Registry (C6) loads at startup.
type CapabilityMapping struct {
	Capability  string `mapstructure:"capability"`
	ServiceSlug string `mapstructure:"service_slug"`
	Priority    int    `mapstructure:"priority"`
}

// CapabilityConfig lists the capability->provider bindings to register
// with the Capability Registry on boot.
type CapabilityConfig struct {
	Mappings []CapabilityMapping `mapstructure:"mappings"`
}

// LightningConfigView returns a defensive copy of the Lightning section so
// the internal/lightning package never holds a reference into the shared
// root Config — the same copy-on-handoff idiom btc-giftcard uses when
// passing config sections into worker constructors.
func (c *Config) LightningConfigView() LightningConfig {
	var out LightningConfig
	_ = copier.Copy(&out, &c.Lightning)
	return out
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: SATURN_.
// Nested keys use underscore: SATURN_DATABASE_HOST, SATURN_JWT_SECRET, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "saturn")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 50)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.acquire_timeout", "5s")
	v.SetDefault("database.migrations_path", "db/migrations")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "24h")
	v.SetDefault("jwt.issuer", "saturn")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("lightning.grpc_host", "localhost")
	v.SetDefault("lightning.grpc_port", "10009")
	v.SetDefault("lightning.tls_cert_path", "")
	v.SetDefault("lightning.macaroon_path", "")
	v.SetDefault("lightning.network", "mainnet")
	v.SetDefault("lightning.payment_timeout_seconds", 30)
	v.SetDefault("rate_poller.sources", []string{"coinbase", "coingecko", "bitstamp"})
	v.SetDefault("rate_poller.interval", "60s")
	v.SetDefault("adapter.requests_per_second", 5)
	v.SetDefault("adapter.burst", 10)
	v.SetDefault("adapter.timeout", "30s")
	v.SetDefault("webhook.lightning_secret", "")
	v.SetDefault("webhook.stripe_secret", "")
	v.SetDefault("capability.mappings", []map[string]interface{}{
		{"capability": "reason", "service_slug": "openai", "priority": 0},
		{"capability": "search", "service_slug": "serper", "priority": 0},
	})

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("SATURN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}
