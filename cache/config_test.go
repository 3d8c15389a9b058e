/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package cache

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/acronis/go-corekit/config"
)

func TestConfig(t *testing.T) {
	t.Run("load from yaml", func(t *testing.T) {
		cfgData := bytes.NewBufferString(`
cache:
  maxEntries: 1000
  defaultTTL: 5m
  cleanupInterval: 30s
  fallbackEntrySize: 1K
`)
		cfg := NewConfig()
		err := config.NewDefaultLoader("").LoadFromReader(cfgData, config.DataTypeYAML, cfg)
		require.NoError(t, err)
		require.Equal(t, 1000, cfg.MaxEntries)
		require.Equal(t, 5*time.Minute, time.Duration(cfg.DefaultTTL))
		require.Equal(t, 30*time.Second, time.Duration(cfg.CleanupInterval))
		require.Equal(t, config.BytesCount(1024), cfg.FallbackEntrySize)
	})

	t.Run("defaults", func(t *testing.T) {
		cfgData := bytes.NewBufferString(`cache: {}`)
		cfg := NewConfig()
		err := config.NewDefaultLoader("").LoadFromReader(cfgData, config.DataTypeYAML, cfg)
		require.NoError(t, err)
		require.Equal(t, DefaultMaxEntries, cfg.MaxEntries)
		require.Equal(t, DefaultEntryTTL, time.Duration(cfg.DefaultTTL))
		require.Equal(t, DefaultCleanupInterval, time.Duration(cfg.CleanupInterval))
		require.Equal(t, config.BytesCount(DefaultFallbackEntrySize), cfg.FallbackEntrySize)
	})

	t.Run("custom key prefix", func(t *testing.T) {
		cfgData := bytes.NewBufferString(`
userCache:
  maxEntries: 10
`)
		cfg := NewConfig(WithKeyPrefix("userCache"))
		err := config.NewDefaultLoader("").LoadFromReader(cfgData, config.DataTypeYAML, cfg)
		require.NoError(t, err)
		require.Equal(t, 10, cfg.MaxEntries)
	})

	t.Run("validation errors", func(t *testing.T) {
		tests := []struct {
			name       string
			cfgData    string
			wantErrMsg string
		}{
			{
				name:       "non-positive max entries",
				cfgData:    "cache:\n  maxEntries: 0",
				wantErrMsg: `cache.maxEntries: should be positive`,
			},
			{
				name:       "negative default TTL",
				cfgData:    "cache:\n  defaultTTL: -1s",
				wantErrMsg: `cache.defaultTTL: should be >= 0`,
			},
			{
				name:       "negative cleanup interval",
				cfgData:    "cache:\n  cleanupInterval: -1s",
				wantErrMsg: `cache.cleanupInterval: should be >= 0`,
			},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				cfg := NewConfig()
				err := config.NewDefaultLoader("").LoadFromReader(
					bytes.NewBufferString(tt.cfgData), config.DataTypeYAML, cfg)
				require.ErrorContains(t, err, tt.wantErrMsg)
			})
		}
	})

	t.Run("new cache from config", func(t *testing.T) {
		cfg := NewDefaultConfig()
		c, err := NewFromConfig[string, user](cfg, nil)
		require.NoError(t, err)
		defer c.Close()

		c.Set("a", user{"A"})
		require.Equal(t, 1, c.Len())
	})
}
