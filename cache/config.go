/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package cache

import (
	"fmt"
	"time"

	"github.com/acronis/go-corekit/config"
)

const cfgDefaultKeyPrefix = "cache"

const (
	cfgKeyMaxEntries        = "maxEntries"
	cfgKeyDefaultTTL        = "defaultTTL"
	cfgKeyCleanupInterval   = "cleanupInterval"
	cfgKeyFallbackEntrySize = "fallbackEntrySize"
)

// Default values.
const (
	DefaultMaxEntries      = 100
	DefaultEntryTTL        = time.Minute
	DefaultCleanupInterval = 10 * time.Second
)

// Config represents a set of configuration parameters for the cache.
// Configuration can be loaded in different formats (YAML, JSON) using config.Loader, viper,
// or with json.Unmarshal/yaml.Unmarshal functions directly.
type Config struct {
	// MaxEntries is the maximum number of entries stored in the cache.
	MaxEntries int `mapstructure:"maxEntries" yaml:"maxEntries" json:"maxEntries"`

	// DefaultTTL is the TTL applied to entries added without an explicit TTL.
	DefaultTTL config.TimeDuration `mapstructure:"defaultTTL" yaml:"defaultTTL" json:"defaultTTL"`

	// CleanupInterval is the interval of the periodic cleanup of expired entries. Zero disables it.
	CleanupInterval config.TimeDuration `mapstructure:"cleanupInterval" yaml:"cleanupInterval" json:"cleanupInterval"`

	// FallbackEntrySize is the entry size accounted when size estimation fails.
	FallbackEntrySize config.BytesCount `mapstructure:"fallbackEntrySize" yaml:"fallbackEntrySize" json:"fallbackEntrySize"`

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
		keyPrefix:         opts.keyPrefix,
		MaxEntries:        DefaultMaxEntries,
		DefaultTTL:        config.TimeDuration(DefaultEntryTTL),
		CleanupInterval:   config.TimeDuration(DefaultCleanupInterval),
		FallbackEntrySize: config.BytesCount(DefaultFallbackEntrySize),
	}
}

// KeyPrefix returns a key prefix with which all configuration parameters should be presented.
// Implements config.KeyPrefixProvider interface.
func (c *Config) KeyPrefix() string {
	if c.keyPrefix == "" {
		return cfgDefaultKeyPrefix
	}
	return c.keyPrefix
}

// SetProviderDefaults sets default configuration values for the cache in config.DataProvider.
// Implements config.Config interface.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyMaxEntries, DefaultMaxEntries)
	dp.SetDefault(cfgKeyDefaultTTL, DefaultEntryTTL.String())
	dp.SetDefault(cfgKeyCleanupInterval, DefaultCleanupInterval.String())
	dp.SetDefault(cfgKeyFallbackEntrySize, uint64(DefaultFallbackEntrySize))
}

// Set sets cache configuration values from config.DataProvider.
// Implements config.Config interface.
func (c *Config) Set(dp config.DataProvider) error {
	var err error

	if c.MaxEntries, err = dp.GetInt(cfgKeyMaxEntries); err != nil {
		return err
	}
	if c.MaxEntries <= 0 {
		return dp.WrapKeyErr(cfgKeyMaxEntries, fmt.Errorf("should be positive"))
	}

	var defaultTTL time.Duration
	if defaultTTL, err = dp.GetDuration(cfgKeyDefaultTTL); err != nil {
		return err
	}
	if defaultTTL < 0 {
		return dp.WrapKeyErr(cfgKeyDefaultTTL, fmt.Errorf("should be >= 0"))
	}
	c.DefaultTTL = config.TimeDuration(defaultTTL)

	var cleanupInterval time.Duration
	if cleanupInterval, err = dp.GetDuration(cfgKeyCleanupInterval); err != nil {
		return err
	}
	if cleanupInterval < 0 {
		return dp.WrapKeyErr(cfgKeyCleanupInterval, fmt.Errorf("should be >= 0"))
	}
	c.CleanupInterval = config.TimeDuration(cleanupInterval)

	if c.FallbackEntrySize, err = dp.GetBytesCount(cfgKeyFallbackEntrySize); err != nil {
		return err
	}

	return nil
}
