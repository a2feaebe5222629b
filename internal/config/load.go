// Package config loads CLI settings and the per-repository project file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/picklr-io/tether/internal/backup"
)

// Defaults.
const (
	DefaultAPIOrigin   = "https://control.tether.dev"
	DefaultEnvironment = "development"
	DefaultConcurrency = 4
)

// Settings is the resolved CLI configuration.
type Settings struct {
	ServiceToken string        `mapstructure:"service_token"`
	APIOrigin    string        `mapstructure:"api_origin"`
	Environment  string        `mapstructure:"environment"`
	LogLevel     string        `mapstructure:"log_level"`
	LogFormat    string        `mapstructure:"log_format"`
	Concurrency  int           `mapstructure:"concurrency"`
	Backup       backup.Config `mapstructure:"backup"`
}

// Load initializes viper from .env, the config file and TETHER_*
// environment variables. A missing config file is not an error unless it
// was named explicitly.
func Load(cfgFile string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		if dir, err := os.UserConfigDir(); err == nil {
			viper.AddConfigPath(filepath.Join(dir, "tether"))
		}
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("TETHER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("api_origin", DefaultAPIOrigin)
	viper.SetDefault("environment", DefaultEnvironment)
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_format", "text")
	viper.SetDefault("concurrency", DefaultConcurrency)
	viper.SetDefault("backup.type", "")

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}
	return nil
}

// Current decodes the loaded configuration.
func Current() (*Settings, error) {
	var s Settings
	if err := viper.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	// AutomaticEnv values reach Unmarshal only for keys viper already
	// knows about, and the token has no default.
	s.ServiceToken = viper.GetString("service_token")
	return &s, nil
}
