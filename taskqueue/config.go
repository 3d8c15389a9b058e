/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package taskqueue

import (
	"fmt"

	"github.com/acronis/go-corekit/config"
)

const cfgDefaultKeyPrefix = "taskQueue"

const cfgKeyMaxConcurrent = "maxConcurrent"

// DefaultMaxConcurrent is the default limit of concurrently running tasks.
const DefaultMaxConcurrent = 5

// Config represents a set of configuration parameters for the queue.
// Configuration can be loaded in different formats (YAML, JSON) using config.Loader, viper,
// or with json.Unmarshal/yaml.Unmarshal functions directly.
type Config struct {
	// MaxConcurrent is the maximum number of concurrently running tasks.
	MaxConcurrent int `mapstructure:"maxConcurrent" yaml:"maxConcurrent" json:"maxConcurrent"`

	keyPrefix string
}

var _ config.Config = (*Config)(nil)
var _ config.KeyPrefixProvider = (*Config)(nil)

// ConfigOption is a type for functional options for the Config.
type ConfigOption func(*configOptions)

type configOptions struct {
	keyPrefix string
}

// WithKeyPrefix returns a ConfigOption that sets a key prefix for parsing configuration parameters.
// This prefix will be used by config.Loader.
func WithKeyPrefix(keyPrefix string) ConfigOption {
	return func(o *configOptions) {
		o.keyPrefix = keyPrefix
	}
}

// NewConfig creates a new instance of the Config.
func NewConfig(options ...ConfigOption) *Config {
	var opts = configOptions{keyPrefix: cfgDefaultKeyPrefix}
	for _, opt := range options {
		opt(&opts)
	}
	return &Config{keyPrefix: opts.keyPrefix}
}

// NewDefaultConfig creates a new instance of the Config with default values.
func NewDefaultConfig(options ...ConfigOption) *Config {
	opts := configOptions{keyPrefix: cfgDefaultKeyPrefix}
	for _, opt := range options {
		opt(&opts)
	}
	return &Config{keyPrefix: opts.keyPrefix, MaxConcurrent: DefaultMaxConcurrent}
}

// KeyPrefix returns a key prefix with which all configuration parameters should be presented.
// Implements config.KeyPrefixProvider interface.
func (c *Config) KeyPrefix() string {
	if c.keyPrefix == "" {
		return cfgDefaultKeyPrefix
	}
	return c.keyPrefix
}

// SetProviderDefaults sets default configuration values for the queue in config.DataProvider.
// Implements config.Config interface.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyMaxConcurrent, DefaultMaxConcurrent)
}

// Set sets queue configuration values from config.DataProvider.
// Implements config.Config interface.
func (c *Config) Set(dp config.DataProvider) error {
	var err error

	if c.MaxConcurrent, err = dp.GetInt(cfgKeyMaxConcurrent); err != nil {
		return err
	}
	if c.MaxConcurrent <= 0 {
		return dp.WrapKeyErr(cfgKeyMaxConcurrent, fmt.Errorf("should be positive"))
	}

	return nil
}
