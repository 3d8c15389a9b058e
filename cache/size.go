/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package cache

import "encoding/json"

// DefaultFallbackEntrySize is the entry size in bytes that is accounted
// when the size estimator fails and no custom fallback size is configured.
const DefaultFallbackEntrySize = 256

// SizeEstimator estimates the in-memory size of a cached value in bytes.
type SizeEstimator[V any] func(v V) (uint64, error)

// JSONSizeEstimator estimates the value size as the length of its JSON serialization.
// It's the default estimator used by the cache.
func JSONSizeEstimator[V any](v V) (uint64, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return 0, err
	}
	return uint64(len(b)), nil
}
