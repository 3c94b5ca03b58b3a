package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Wallet   WalletConfig   `mapstructure:"wallet"`
	Transfer TransferConfig `mapstructure:"transfer"`
	Gateway  GatewayConfig  `mapstructure:"gateway"`
	Log      LogConfig      `mapstructure:"log"`
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

// WalletConfig holds per-wallet policy limits.
type WalletConfig struct {
	MaxCurrencyAccounts int      `mapstructure:"max_currency_accounts"`
	MaxBankAccounts     int      `mapstructure:"max_bank_accounts"`
	SupportedCurrencies []string `mapstructure:"supported_currencies"`
	DailyOutflowLimit   int64    `mapstructure:"daily_outflow_limit"` // per currency account, smallest unit
}

// TransferConfig holds the transfer fee schedule: a percentage clamped to a
// minimum and maximum absolute fee.
type TransferConfig struct {
	FeePercent float64 `mapstructure:"fee_percent"`
	FeeMin     int64   `mapstructure:"fee_min"`
	FeeMax     int64   `mapstructure:"fee_max"`
}

// GatewayConfig holds the payment provider settings.
type GatewayConfig struct {
	MerchantID  string        `mapstructure:"merchant_id"`
	BaseURL     string        `mapstructure:"base_url"`
	PaymentURL  string        `mapstructure:"payment_url"` // user-facing redirect base
	CallbackURL string        `mapstructure:"callback_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: WLE_ (Wallet Ledger Engine).
// Nested keys use underscore: WLE_DATABASE_HOST, WLE_JWT_SECRET, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "wallet_ledger")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "24h")
	v.SetDefault("jwt.issuer", "wallet-ledger-engine")
	v.SetDefault("wallet.max_currency_accounts", 5)
	v.SetDefault("wallet.max_bank_accounts", 10)
	v.SetDefault("wallet.supported_currencies", []string{"IRR", "USD", "EUR"})
	v.SetDefault("wallet.daily_outflow_limit", 500000000)
	v.SetDefault("transfer.fee_percent", 0.5)
	v.SetDefault("transfer.fee_min", 1000)
	v.SetDefault("transfer.fee_max", 50000)
	v.SetDefault("gateway.merchant_id", "")
	v.SetDefault("gateway.base_url", "https://api.zarinpal.com/pg/v4")
	v.SetDefault("gateway.payment_url", "https://www.zarinpal.com/pg/StartPay")
	v.SetDefault("gateway.callback_url", "http://localhost:8080/api/v1/payments/callback")
	v.SetDefault("gateway.timeout", "10s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: WLE_DATABASE_HOST -> database.host
	v.SetEnvPrefix("WLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required, env vars can suffice)
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
