package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type DatabaseCfg struct {
	Driver string `mapstructure:"driver"` // sqlite | postgres | mysql
	Path   string `mapstructure:"path"`   // sqlite database file
	DSN    string `mapstructure:"dsn"`    // postgres/mysql connection string
}

type LoggingCfg struct {
	Level string `mapstructure:"level"`
}

type SectionsCfg struct {
	// File optionally points at a YAML file that extends the built-in
	// section identifier table (per-exporter section codes and titles).
	File string `mapstructure:"file"`
}

type SearchCfg struct {
	// Domains restricts free-text search to a subset of domain tables.
	// Empty means all domains.
	Domains []string `mapstructure:"domains"`
}

type Config struct {
	Version  string      `mapstructure:"version"`
	Database DatabaseCfg `mapstructure:"database"`
	Sections SectionsCfg `mapstructure:"sections"`
	Search   SearchCfg   `mapstructure:"search"`
	Logging  LoggingCfg  `mapstructure:"logging"`
}

var cfg *Config

// Load populates global config from a viper instance
func Load(v *viper.Viper) error {
	// set defaults
	v.SetDefault("version", "0.1")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "health_data.db")
	v.SetDefault("logging.level", "info")

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	cfg = &c
	return nil
}

func Get() *Config {
	if cfg == nil {
		cfg = &Config{
			Database: DatabaseCfg{Driver: "sqlite", Path: "health_data.db"},
			Logging:  LoggingCfg{Level: "info"},
		}
	}
	return cfg
}
