/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package ratelimit provides in-memory request rate limiters.
// DualWindowLimiter tracks exact request timestamps per client against a sustained and a burst window
// and reports detailed decisions (retry-after, remaining quota, reset time).
// SlidingWindowLimiter and LeakyBucketLimiter are cheaper approximate alternatives
// exposed through the same Limiter interface.
package ratelimit
