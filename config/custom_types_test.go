/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package config

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestBytesCountUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    BytesCount
		wantErr bool
	}{
		{name: "integer", data: `1024`, want: 1024},
		{name: "kilobytes", data: `"1K"`, want: 1024},
		{name: "megabytes", data: `"10M"`, want: 10 * 1024 * 1024},
		{name: "k8s suffix", data: `"10Mi"`, want: 10 * 1024 * 1024},
		{name: "gigabytes", data: `"2GB"`, want: 2 * 1024 * 1024 * 1024},
		{name: "negative", data: `-1`, wantErr: true},
		{name: "garbage", data: `"abc"`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotJSON BytesCount
			err := json.Unmarshal([]byte(tt.data), &gotJSON)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
				require.Equal(t, tt.want, gotJSON)
			}

			var gotYAML BytesCount
			err = yaml.Unmarshal([]byte(tt.data), &gotYAML)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
				require.Equal(t, tt.want, gotYAML)
			}
		})
	}
}

func TestBytesCountMarshal(t *testing.T) {
	data, err := json.Marshal(BytesCount(1024))
	require.NoError(t, err)
	require.Equal(t, `"1K"`, string(data))

	data, err = yaml.Marshal(BytesCount(10 * 1024 * 1024))
	require.NoError(t, err)
	require.Equal(t, "10M\n", string(data))
}

func TestTimeDurationUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    time.Duration
		wantErr bool
	}{
		{name: "string", data: `"1h30m"`, want: 90 * time.Minute},
		{name: "seconds", data: `"15s"`, want: 15 * time.Second},
		{name: "integer nanoseconds", data: `1000000000`, want: time.Second},
		{name: "negative", data: `-1`, wantErr: true},
		{name: "garbage", data: `"abc"`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotJSON TimeDuration
			err := json.Unmarshal([]byte(tt.data), &gotJSON)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
				require.Equal(t, tt.want, time.Duration(gotJSON))
			}

			var gotYAML TimeDuration
			err = yaml.Unmarshal([]byte(tt.data), &gotYAML)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
				require.Equal(t, tt.want, time.Duration(gotYAML))
			}
		})
	}
}

func TestTimeDurationMarshal(t *testing.T) {
	data, err := json.Marshal(TimeDuration(90 * time.Minute))
	require.NoError(t, err)
	require.Equal(t, `"1h30m0s"`, string(data))

	data, err = yaml.Marshal(TimeDuration(15 * time.Second))
	require.NoError(t, err)
	require.Equal(t, "15s\n", string(data))
}
