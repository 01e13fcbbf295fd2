// Package config loads service configuration and builds the logger.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the service settings.
type Config struct {
	ListenAddress string  `mapstructure:"listen_address"`
	DatabasePath  string  `mapstructure:"database_path"`
	Logging       Logging `mapstructure:"logging"`
}

// Logging controls log output.
type Logging struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from the given file, if any, with LOANBOOK_*
// environment variables taking precedence over file values.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetDefault("listen_address", ":8080")
	v.SetDefault("database_path", "loanbook.db")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetEnvPrefix("LOANBOOK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

// NewLogger builds a zap logger per the logging configuration.
func (c *Config) NewLogger() (*zap.Logger, error) {
	var level zapcore.Level
	switch c.Logging.Level {
	case "", "info":
		level = zapcore.InfoLevel
	case "debug":
		level = zapcore.DebugLevel
	case "warn", "warning":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		return nil, fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	var zapConfig zap.Config
	switch c.Logging.Format {
	case "", "json":
		zapConfig = zap.NewProductionConfig()
	case "console":
		zapConfig = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}
	zapConfig.Level = zap.NewAtomicLevelAt(level)
	return zapConfig.Build()
}
