/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package cache provides a size-aware in-memory cache with LRU eviction policy, per-entry expiration,
// single-flight fetching of missing values, usage statistics, and Prometheus metrics.
package cache
