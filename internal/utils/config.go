package utils

import (
	"fmt"

	"github.com/spf13/viper"
)

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	DSN      string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string
}

// MarketDataConfig holds quote client configuration
type MarketDataConfig struct {
	APIKey      string `mapstructure:"api_key"`
	BaseURL     string `mapstructure:"base_url"`
	TTLSeconds  int    `mapstructure:"ttl_seconds"`
	RefreshSpec string `mapstructure:"refresh_spec"`
}

// LedgerConfig holds ledger engine tuning
type LedgerConfig struct {
	// IncrementalReversal switches transaction deletion from full replay to
	// the algebraic reversal path. Replay is the default: the algebraic sell
	// reversal is only exact when no other trades for the ticker intervene.
	IncrementalReversal bool `mapstructure:"incremental_reversal"`
}

// Config holds all configuration
type Config struct {
	Database   DatabaseConfig   `mapstructure:"database"`
	Server     ServerConfig     `mapstructure:"server"`
	MarketData MarketDataConfig `mapstructure:"marketdata"`
	Ledger     LedgerConfig     `mapstructure:"ledger"`
}

// BuildDSN builds the database connection string
func (c *Config) BuildDSN() {
	c.Database.DSN = fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
		c.Database.SSLMode,
	)
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	viper.SetDefault("server.port", "8080")
	viper.SetDefault("marketdata.base_url", "https://www.alphavantage.co")
	viper.SetDefault("marketdata.ttl_seconds", 60)
	viper.SetDefault("marketdata.refresh_spec", "@hourly")
	viper.SetDefault("ledger.incremental_reversal", false)

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Build the DSN string
	config.BuildDSN()

	return &config, nil
}
