/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Rate describes the frequency of requests: at most Count requests per Window.
type Rate struct {
	Count  int
	Window time.Duration
}

// String implements fmt.Stringer.
func (r Rate) String() string {
	return fmt.Sprintf("%d/%s", r.Count, r.Window)
}

func (r Rate) validate(name string) error {
	if r.Count <= 0 {
		return fmt.Errorf("%s rate count must be greater than 0", name)
	}
	if r.Window <= 0 {
		return fmt.Errorf("%s rate window must be greater than 0", name)
	}
	return nil
}

// Limiter interface defines the rate limiting contract.
type Limiter interface {
	Allow(ctx context.Context, key string) (allow bool, retryAfter time.Duration, err error)
}
