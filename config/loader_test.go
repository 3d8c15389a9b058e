/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type testServiceConfig struct {
	Name    string
	Workers int
	Timeout time.Duration
	MaxSize BytesCount

	keyPrefix string
}

func (c *testServiceConfig) KeyPrefix() string {
	return c.keyPrefix
}

func (c *testServiceConfig) SetProviderDefaults(dp DataProvider) {
	dp.SetDefault("workers", 4)
	dp.SetDefault("timeout", "30s")
}

func (c *testServiceConfig) Set(dp DataProvider) error {
	var err error
	if c.Name, err = dp.GetString("name"); err != nil {
		return err
	}
	if c.Workers, err = dp.GetInt("workers"); err != nil {
		return err
	}
	if c.Timeout, err = dp.GetDuration("timeout"); err != nil {
		return err
	}
	if c.MaxSize, err = dp.GetBytesCount("maxSize"); err != nil {
		return err
	}
	return nil
}

func TestLoaderLoadFromReader(t *testing.T) {
	t.Run("all values set", func(t *testing.T) {
		cfgData := bytes.NewBufferString(`
service:
  name: indexer
  workers: 8
  timeout: 1m
  maxSize: 1M
`)
		cfg := &testServiceConfig{keyPrefix: "service"}
		err := NewDefaultLoader("").LoadFromReader(cfgData, DataTypeYAML, cfg)
		require.NoError(t, err)
		require.Equal(t, "indexer", cfg.Name)
		require.Equal(t, 8, cfg.Workers)
		require.Equal(t, time.Minute, cfg.Timeout)
		require.Equal(t, BytesCount(1024*1024), cfg.MaxSize)
	})

	t.Run("defaults are applied", func(t *testing.T) {
		cfgData := bytes.NewBufferString(`
service:
  name: indexer
`)
		cfg := &testServiceConfig{keyPrefix: "service"}
		err := NewDefaultLoader("").LoadFromReader(cfgData, DataTypeYAML, cfg)
		require.NoError(t, err)
		require.Equal(t, 4, cfg.Workers)
		require.Equal(t, 30*time.Second, cfg.Timeout)
	})

	t.Run("json data", func(t *testing.T) {
		cfgData := bytes.NewBufferString(`{"service": {"name": "indexer", "workers": 2}}`)
		cfg := &testServiceConfig{keyPrefix: "service"}
		err := NewDefaultLoader("").LoadFromReader(cfgData, DataTypeJSON, cfg)
		require.NoError(t, err)
		require.Equal(t, "indexer", cfg.Name)
		require.Equal(t, 2, cfg.Workers)
	})

	t.Run("no key prefix", func(t *testing.T) {
		cfgData := bytes.NewBufferString(`
name: indexer
`)
		cfg := &testServiceConfig{}
		err := NewDefaultLoader("").LoadFromReader(cfgData, DataTypeYAML, cfg)
		require.NoError(t, err)
		require.Equal(t, "indexer", cfg.Name)
	})
}

func TestLoaderLoadFromFile(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
service:
  name: indexer
  workers: 8
`), 0600))

	cfg := &testServiceConfig{keyPrefix: "service"}
	err := NewDefaultLoader("").LoadFromFile(cfgPath, DataTypeYAML, cfg)
	require.NoError(t, err)
	require.Equal(t, "indexer", cfg.Name)
	require.Equal(t, 8, cfg.Workers)
}

func TestLoaderEnvVarsOverride(t *testing.T) {
	t.Setenv("TESTSVC_SERVICE_WORKERS", "16")

	cfgData := bytes.NewBufferString(`
service:
  name: indexer
  workers: 8
`)
	cfg := &testServiceConfig{keyPrefix: "service"}
	err := NewDefaultLoader("testsvc").LoadFromReader(cfgData, DataTypeYAML, cfg)
	require.NoError(t, err)
	require.Equal(t, 16, cfg.Workers)
}
