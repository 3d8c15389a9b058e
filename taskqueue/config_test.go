/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package taskqueue

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/acronis/go-corekit/config"
)

func TestConfig(t *testing.T) {
	t.Run("load from yaml", func(t *testing.T) {
		cfgData := bytes.NewBufferString(`
taskQueue:
  maxConcurrent: 16
`)
		cfg := NewConfig()
		err := config.NewDefaultLoader("").LoadFromReader(cfgData, config.DataTypeYAML, cfg)
		require.NoError(t, err)
		require.Equal(t, 16, cfg.MaxConcurrent)
	})

	t.Run("defaults", func(t *testing.T) {
		cfgData := bytes.NewBufferString(`taskQueue: {}`)
		cfg := NewConfig()
		err := config.NewDefaultLoader("").LoadFromReader(cfgData, config.DataTypeYAML, cfg)
		require.NoError(t, err)
		require.Equal(t, DefaultMaxConcurrent, cfg.MaxConcurrent)
	})

	t.Run("validation error", func(t *testing.T) {
		cfgData := bytes.NewBufferString(`
taskQueue:
  maxConcurrent: -1
`)
		cfg := NewConfig()
		err := config.NewDefaultLoader("").LoadFromReader(cfgData, config.DataTypeYAML, cfg)
		require.ErrorContains(t, err, "taskQueue.maxConcurrent: should be positive")
	})

	t.Run("new queue from config", func(t *testing.T) {
		q, err := NewFromConfig[int](NewDefaultConfig(), Opts{})
		require.NoError(t, err)

		future := q.Submit(context.Background(), func(ctx context.Context) (int, error) {
			return 1, nil
		}, 0)
		val, err := future.Wait(context.Background())
		require.NoError(t, err)
		require.Equal(t, 1, val)
	})
}
