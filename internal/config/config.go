// Package config loads runtime configuration from defaults, an optional
// config file and MARKET_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	HTTPAddr        string        `mapstructure:"http_addr"`
	GRPCAddr        string        `mapstructure:"grpc_addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	Log     LogConfig     `mapstructure:"log"`
	MySQL   MySQLConfig   `mapstructure:"mysql"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Journal JournalConfig `mapstructure:"journal"`
	Ledger  LedgerConfig  `mapstructure:"ledger"`
	Agent   AgentConfig   `mapstructure:"agent"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MySQLConfig holds the transfer log database. An empty DSN keeps the
// transfer log in memory and disables journal persistence.
type MySQLConfig struct {
	DSN          string        `mapstructure:"dsn"`
	MaxOpenConns int           `mapstructure:"max_open_conns"`
	MaxIdleConns int           `mapstructure:"max_idle_conns"`
	ConnLifetime time.Duration `mapstructure:"conn_lifetime"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	PoolSize int    `mapstructure:"pool_size"`
}

type JournalConfig struct {
	Workers       int           `mapstructure:"workers"`
	QueueSize     int           `mapstructure:"queue_size"`
	BatchSize     int           `mapstructure:"batch_size"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
}

// LedgerConfig seeds the stored account.
type LedgerConfig struct {
	StoredItems    []string `mapstructure:"stored_items"`
	StoredQuantity int      `mapstructure:"stored_quantity"`
}

type AgentConfig struct {
	Server    string        `mapstructure:"server"`
	Transport string        `mapstructure:"transport"`
	Name      string        `mapstructure:"name"`
	URL       string        `mapstructure:"url"`
	Interval  time.Duration `mapstructure:"interval"`
	MaxRounds int           `mapstructure:"max_rounds"`
}

// SetDefaults registers every key so environment overrides are picked up
// by Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("http_addr", ":8000")
	v.SetDefault("grpc_addr", ":50051")
	v.SetDefault("shutdown_timeout", 5*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("mysql.dsn", "")
	v.SetDefault("mysql.max_open_conns", 50)
	v.SetDefault("mysql.max_idle_conns", 25)
	v.SetDefault("mysql.conn_lifetime", 5*time.Minute)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.pool_size", 100)

	v.SetDefault("journal.workers", 4)
	v.SetDefault("journal.queue_size", 10000)
	v.SetDefault("journal.batch_size", 64)
	v.SetDefault("journal.flush_interval", time.Second)

	v.SetDefault("ledger.stored_items", []string{
		"bool", "u8", "u16", "u32", "u64", "u128", "i8", "i16",
		"i32", "i64", "i128", "f32", "f64", "str", "char", "never",
	})
	v.SetDefault("ledger.stored_quantity", 50)

	v.SetDefault("agent.server", "http://localhost:8000")
	v.SetDefault("agent.transport", "http")
	v.SetDefault("agent.name", "")
	v.SetDefault("agent.url", "")
	v.SetDefault("agent.interval", 10*time.Second)
	v.SetDefault("agent.max_rounds", 0)
}

// New returns a viper instance with defaults and environment binding.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix("MARKET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the optional config file and decodes the result.
func Load(v *viper.Viper, file string) (Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.Journal.Workers < 1 {
		errs = append(errs, errors.New("journal.workers must be at least 1"))
	}
	if c.Journal.QueueSize < 1 {
		errs = append(errs, errors.New("journal.queue_size must be at least 1"))
	}
	if c.Ledger.StoredQuantity < 0 {
		errs = append(errs, errors.New("ledger.stored_quantity must not be negative"))
	}
	switch c.Agent.Transport {
	case "http", "grpc":
	default:
		errs = append(errs, fmt.Errorf("agent.transport must be http or grpc, got %q", c.Agent.Transport))
	}
	return errors.Join(errs...)
}
