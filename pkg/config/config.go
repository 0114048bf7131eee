package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/spf13/viper"

	"github.com/gt-tallinn/node-client/domain"
)

// Config holds the configuration for the measurement tracker.
type Config struct {
	// ExplorerURI is the base URL of the collector; measurements are POSTed to
	// ExplorerURI + "/add". Required, and must be an absolute http or https
	// URL with a host.
	ExplorerURI string `mapstructure:"explorer_uri"`
	// Service names the instrumented service. Optional.
	Service string `mapstructure:"service"`
	// DeliveryTimeout bounds a single delivery. Zero disables the timeout.
	DeliveryTimeout time.Duration `mapstructure:"delivery_timeout"`
	// StaleAfter enables warnings for measurements pending longer than this.
	// Zero disables the check.
	StaleAfter         time.Duration `mapstructure:"stale_after"`
	CollectionInterval time.Duration `mapstructure:"collection_interval"`
	LogLevel           string        `mapstructure:"log_level"`
	DebugEndpoint      string        `mapstructure:"debug_endpoint"`
}

// Defaults returns the configuration every caller-supplied value is merged over.
// The empty ExplorerURI is not usable on its own; callers must supply one.
func Defaults() Config {
	return Config{
		ExplorerURI:        "",
		Service:            "",
		CollectionInterval: 10 * time.Second,
		LogLevel:           "info",
		DebugEndpoint:      "/debug/node-client",
	}
}

// Merge returns base with every non-zero field of override applied on top.
func Merge(base, override Config) (Config, error) {
	merged := base
	if err := mergo.Merge(&merged, override, mergo.WithOverride); err != nil {
		return Config{}, fmt.Errorf("%w: merge: %v", domain.ErrConfiguration, err)
	}
	return merged, nil
}

// Validate checks that the configuration can back a tracker.
func (c Config) Validate() error {
	if strings.TrimSpace(c.ExplorerURI) == "" {
		return fmt.Errorf("%w: explorer URI is required", domain.ErrConfiguration)
	}
	u, err := url.Parse(c.ExplorerURI)
	if err != nil {
		return fmt.Errorf("%w: explorer URI %q: %v", domain.ErrConfiguration, c.ExplorerURI, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: explorer URI %q must use http or https", domain.ErrConfiguration, c.ExplorerURI)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: explorer URI %q has no host", domain.ErrConfiguration, c.ExplorerURI)
	}
	if c.DeliveryTimeout < 0 {
		return fmt.Errorf("%w: delivery timeout must not be negative", domain.ErrConfiguration)
	}
	if c.StaleAfter < 0 {
		return fmt.Errorf("%w: stale_after must not be negative", domain.ErrConfiguration)
	}
	if c.StaleAfter > 0 && c.CollectionInterval <= 0 {
		return fmt.Errorf("%w: collection interval must be positive", domain.ErrConfiguration)
	}
	return nil
}

// AddURL returns the collector endpoint measurements are submitted to.
func (c Config) AddURL() string {
	return strings.TrimRight(c.ExplorerURI, "/") + "/add"
}

// Load reads config.yaml from path (if present) and NODE_CLIENT_* environment
// variables. The result is not validated; New does that.
func Load(path string) (Config, error) {
	v := viper.New()
	defaults := Defaults()
	v.SetDefault("explorer_uri", defaults.ExplorerURI)
	v.SetDefault("service", defaults.Service)
	v.SetDefault("delivery_timeout", defaults.DeliveryTimeout)
	v.SetDefault("stale_after", defaults.StaleAfter)
	v.SetDefault("collection_interval", defaults.CollectionInterval)
	v.SetDefault("log_level", defaults.LogLevel)
	v.SetDefault("debug_endpoint", defaults.DebugEndpoint)

	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("node_client")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("%w: read config: %v", domain.ErrConfiguration, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: decode config: %v", domain.ErrConfiguration, err)
	}
	return cfg, nil
}
