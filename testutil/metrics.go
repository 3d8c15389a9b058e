/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package testutil provides helpers for testing metrics and errors.
package testutil

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tHelper interface {
	Helper()
}

// AssertSamplesCountInCounter asserts that passed prometheus.Counter has proper value.
func AssertSamplesCountInCounter(t assert.TestingT, counter prometheus.Counter, wantCount int) bool {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	reg := prometheus.NewPedanticRegistry()
	if !assert.NoError(t, reg.Register(counter)) {
		return false
	}
	gotMetrics, err := reg.Gather()
	if !assert.NoError(t, err) {
		return false
	}
	if !assert.Equal(t, 1, len(gotMetrics)) {
		return false
	}
	return assert.Equal(t, wantCount, int(gotMetrics[0].GetMetric()[0].GetCounter().GetValue()))
}

// RequireSamplesCountInCounter calls AssertSamplesCountInCounter and fail test immediately in case of error.
func RequireSamplesCountInCounter(t require.TestingT, counter prometheus.Counter, wantCount int) {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	if AssertSamplesCountInCounter(t, counter, wantCount) {
		return
	}
	t.FailNow()
}

// AssertValueInGauge asserts that passed prometheus.Gauge has proper value.
func AssertValueInGauge(t assert.TestingT, gauge prometheus.Gauge, wantValue int) bool {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	reg := prometheus.NewPedanticRegistry()
	if !assert.NoError(t, reg.Register(gauge)) {
		return false
	}
	gotMetrics, err := reg.Gather()
	if !assert.NoError(t, err) {
		return false
	}
	if !assert.Equal(t, 1, len(gotMetrics)) {
		return false
	}
	return assert.Equal(t, wantValue, int(gotMetrics[0].GetMetric()[0].GetGauge().GetValue()))
}

// RequireValueInGauge calls AssertValueInGauge and fail test immediately in case of error.
func RequireValueInGauge(t require.TestingT, gauge prometheus.Gauge, wantValue int) {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	if AssertValueInGauge(t, gauge, wantValue) {
		return
	}
	t.FailNow()
}
