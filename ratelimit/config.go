/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import (
	"fmt"
	"time"

	"github.com/acronis/go-corekit/config"
)

const cfgDefaultKeyPrefix = "rateLimit"

const (
	cfgKeyMaxRequests     = "maxRequests"
	cfgKeyTimeWindow      = "timeWindow"
	cfgKeyBurstCapacity   = "burstCapacity"
	cfgKeyBurstWindow     = "burstWindow"
	cfgKeyCleanupInterval = "cleanupInterval"
)

// Default values.
const (
	DefaultMaxRequests     = 100
	DefaultTimeWindow      = time.Minute
	DefaultBurstCapacity   = 20
	DefaultBurstWindow     = 10 * time.Second
	DefaultCleanupInterval = time.Minute
)

// Config represents a set of configuration parameters for rate limiting.
// Configuration can be loaded in different formats (YAML, JSON) using config.Loader, viper,
// or with json.Unmarshal/yaml.Unmarshal functions directly.
type Config struct {
	// MaxRequests is the sustained limit: the maximum number of requests per TimeWindow.
	MaxRequests int `mapstructure:"maxRequests" yaml:"maxRequests" json:"maxRequests"`

	// TimeWindow is the length of the sustained window.
	TimeWindow config.TimeDuration `mapstructure:"timeWindow" yaml:"timeWindow" json:"timeWindow"`

	// BurstCapacity is the burst limit: the maximum number of requests per BurstWindow.
	BurstCapacity int `mapstructure:"burstCapacity" yaml:"burstCapacity" json:"burstCapacity"`

	// BurstWindow is the length of the burst window.
	BurstWindow config.TimeDuration `mapstructure:"burstWindow" yaml:"burstWindow" json:"burstWindow"`

	// CleanupInterval is the interval of the periodic cleanup of idle client records. Zero disables it.
	CleanupInterval config.TimeDuration `mapstructure:"cleanupInterval" yaml:"cleanupInterval" json:"cleanupInterval"`

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
	return &Config{
		keyPrefix:       opts.keyPrefix,
		MaxRequests:     DefaultMaxRequests,
		TimeWindow:      config.TimeDuration(DefaultTimeWindow),
		BurstCapacity:   DefaultBurstCapacity,
		BurstWindow:     config.TimeDuration(DefaultBurstWindow),
		CleanupInterval: config.TimeDuration(DefaultCleanupInterval),
	}
}

// SustainedRate returns the sustained rate described by the configuration.
func (c *Config) SustainedRate() Rate {
	return Rate{Count: c.MaxRequests, Window: time.Duration(c.TimeWindow)}
}

// BurstRate returns the burst rate described by the configuration.
func (c *Config) BurstRate() Rate {
	return Rate{Count: c.BurstCapacity, Window: time.Duration(c.BurstWindow)}
}

// KeyPrefix returns a key prefix with which all configuration parameters should be presented.
// Implements config.KeyPrefixProvider interface.
func (c *Config) KeyPrefix() string {
	if c.keyPrefix == "" {
		return cfgDefaultKeyPrefix
	}
	return c.keyPrefix
}

// SetProviderDefaults sets default configuration values for rate limiting in config.DataProvider.
// Implements config.Config interface.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyMaxRequests, DefaultMaxRequests)
	dp.SetDefault(cfgKeyTimeWindow, DefaultTimeWindow.String())
	dp.SetDefault(cfgKeyBurstCapacity, DefaultBurstCapacity)
	dp.SetDefault(cfgKeyBurstWindow, DefaultBurstWindow.String())
	dp.SetDefault(cfgKeyCleanupInterval, DefaultCleanupInterval.String())
}

// Set sets rate limiting configuration values from config.DataProvider.
// Implements config.Config interface.
func (c *Config) Set(dp config.DataProvider) error {
	var err error

	if c.MaxRequests, err = dp.GetInt(cfgKeyMaxRequests); err != nil {
		return err
	}
	if c.MaxRequests <= 0 {
		return dp.WrapKeyErr(cfgKeyMaxRequests, fmt.Errorf("should be positive"))
	}

	var timeWindow time.Duration
	if timeWindow, err = dp.GetDuration(cfgKeyTimeWindow); err != nil {
		return err
	}
	if timeWindow <= 0 {
		return dp.WrapKeyErr(cfgKeyTimeWindow, fmt.Errorf("should be positive"))
	}
	c.TimeWindow = config.TimeDuration(timeWindow)

	if c.BurstCapacity, err = dp.GetInt(cfgKeyBurstCapacity); err != nil {
		return err
	}
	if c.BurstCapacity <= 0 {
		return dp.WrapKeyErr(cfgKeyBurstCapacity, fmt.Errorf("should be positive"))
	}

	var burstWindow time.Duration
	if burstWindow, err = dp.GetDuration(cfgKeyBurstWindow); err != nil {
		return err
	}
	if burstWindow <= 0 {
		return dp.WrapKeyErr(cfgKeyBurstWindow, fmt.Errorf("should be positive"))
	}
	if burstWindow > timeWindow {
		return dp.WrapKeyErr(cfgKeyBurstWindow, fmt.Errorf("should not be longer than %s", cfgKeyTimeWindow))
	}
	c.BurstWindow = config.TimeDuration(burstWindow)

	var cleanupInterval time.Duration
	if cleanupInterval, err = dp.GetDuration(cfgKeyCleanupInterval); err != nil {
		return err
	}
	if cleanupInterval < 0 {
		return dp.WrapKeyErr(cfgKeyCleanupInterval, fmt.Errorf("should be >= 0"))
	}
	c.CleanupInterval = config.TimeDuration(cleanupInterval)

	return nil
}
