/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/acronis/go-corekit/log"
)

// Decision is the detailed outcome of a single rate limiting check.
type Decision struct {
	// Allowed reports whether the request may proceed.
	Allowed bool

	// RetryAfter is how long the client should wait before retrying a denied request,
	// rounded up to whole seconds. Zero for allowed requests.
	RetryAfter time.Duration

	// Remaining is the number of requests left in the sustained window. Zero for denied requests.
	Remaining int

	// Limit is the sustained rate count.
	Limit int

	// Reset is the moment the relevant window state changes:
	// for allowed requests it's when the just-recorded request leaves the sustained window,
	// for denied ones it's when the oldest blocking request leaves its window.
	Reset time.Time
}

type clientRecord struct {
	sustained []time.Time
	burst     []time.Time
}

// DualWindowLimiter is a per-client rate limiter tracking exact request timestamps
// against two sliding windows: a sustained one and a shorter burst one.
// A request is allowed only if it fits into both; the burst window is checked first.
type DualWindowLimiter struct {
	sustained Rate
	burst     Rate

	logger           log.FieldLogger
	metricsCollector MetricsCollector

	mu      sync.Mutex
	clients map[string]*clientRecord

	timeNow func() time.Time

	cleanupCancel context.CancelFunc
	cleanupDone   chan struct{}
	stopOnce      sync.Once
}

var _ Limiter = (*DualWindowLimiter)(nil)

// DualWindowOpts represents options for DualWindowLimiter.
type DualWindowOpts struct {
	// CleanupInterval is the interval of the owned periodic cleanup of idle client records.
	// If positive, the constructor starts a background goroutine that is stopped
	// by StopCleanup or Close. If zero, no background cleanup is started.
	CleanupInterval time.Duration

	// Logger is used for debug logging of the cleanup. If nil, logging is disabled.
	Logger log.FieldLogger

	// MetricsCollector is a collector of the limiter metrics. If nil, metrics are disabled.
	MetricsCollector MetricsCollector
}

// NewDualWindowLimiter creates a new limiter with the provided sustained and burst rates.
func NewDualWindowLimiter(sustained, burst Rate) (*DualWindowLimiter, error) {
	return NewDualWindowLimiterWithOpts(sustained, burst, DualWindowOpts{})
}

// NewDualWindowLimiterWithOpts creates a new limiter with the provided sustained and burst rates and options.
func NewDualWindowLimiterWithOpts(sustained, burst Rate, opts DualWindowOpts) (*DualWindowLimiter, error) {
	if err := sustained.validate("sustained"); err != nil {
		return nil, err
	}
	if err := burst.validate("burst"); err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = log.NewDisabledLogger()
	}
	if opts.MetricsCollector == nil {
		opts.MetricsCollector = disabledMetricsCollector
	}

	l := &DualWindowLimiter{
		sustained:        sustained,
		burst:            burst,
		logger:           opts.Logger,
		metricsCollector: opts.MetricsCollector,
		clients:          make(map[string]*clientRecord),
		timeNow:          time.Now,
	}

	if opts.CleanupInterval > 0 {
		ctx, cancel := context.WithCancel(context.Background())
		l.cleanupCancel = cancel
		l.cleanupDone = make(chan struct{})
		go func() {
			defer close(l.cleanupDone)
			l.RunPeriodicCleanup(ctx, opts.CleanupInterval)
		}()
	}

	return l, nil
}

// NewDualWindowLimiterFromConfig creates a new limiter from the passed configuration.
func NewDualWindowLimiterFromConfig(cfg *Config, opts DualWindowOpts) (*DualWindowLimiter, error) {
	if opts.CleanupInterval == 0 {
		opts.CleanupInterval = time.Duration(cfg.CleanupInterval)
	}
	return NewDualWindowLimiterWithOpts(cfg.SustainedRate(), cfg.BurstRate(), opts)
}

// Check evaluates a single request of the passed client against both windows and records it if allowed.
//
// Expired timestamps are pruned first, then the burst window is checked, then the sustained one.
// An allowed request is recorded in both windows.
func (l *DualWindowLimiter) Check(clientID string) Decision {
	now := l.timeNow()

	l.mu.Lock()
	rec, ok := l.clients[clientID]
	if !ok {
		rec = &clientRecord{}
		l.clients[clientID] = rec
		l.metricsCollector.SetClientsAmount(len(l.clients))
	}
	rec.burst = pruneWindow(rec.burst, now, l.burst.Window)
	rec.sustained = pruneWindow(rec.sustained, now, l.sustained.Window)

	if len(rec.burst) >= l.burst.Count {
		decision := l.denyLocked(rec.burst[0], l.burst.Window, now)
		l.mu.Unlock()
		return decision
	}
	if len(rec.sustained) >= l.sustained.Count {
		decision := l.denyLocked(rec.sustained[0], l.sustained.Window, now)
		l.mu.Unlock()
		return decision
	}

	rec.burst = append(rec.burst, now)
	rec.sustained = append(rec.sustained, now)
	remaining := l.sustained.Count - len(rec.sustained)
	l.mu.Unlock()

	l.metricsCollector.IncAllowed()
	return Decision{
		Allowed:   true,
		Remaining: remaining,
		Limit:     l.sustained.Count,
		Reset:     now.Add(l.sustained.Window),
	}
}

func (l *DualWindowLimiter) denyLocked(oldest time.Time, window time.Duration, now time.Time) Decision {
	l.metricsCollector.IncDenied()
	exitAt := oldest.Add(window)
	return Decision{
		Allowed:    false,
		RetryAfter: ceilToSeconds(exitAt.Sub(now)),
		Remaining:  0,
		Limit:      l.sustained.Count,
		Reset:      exitAt,
	}
}

// Allow implements the Limiter interface on top of Check.
func (l *DualWindowLimiter) Allow(_ context.Context, key string) (allow bool, retryAfter time.Duration, err error) {
	decision := l.Check(key)
	return decision.Allowed, decision.RetryAfter, nil
}

// RunPeriodicCleanup runs a cycle of periodic cleanup of client records whose windows are empty.
// It's supposed to be run in a separate goroutine and blocks until ctx is done.
// NewDualWindowLimiterWithOpts starts it automatically when DualWindowOpts.CleanupInterval is positive.
func (l *DualWindowLimiter) RunPeriodicCleanup(ctx context.Context, cleanupInterval time.Duration) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.cleanupIdleClients()
		}
	}
}

// StopCleanup stops the background cleanup goroutine started by the constructor, if any,
// and waits for it to finish. It's safe to call multiple times.
func (l *DualWindowLimiter) StopCleanup() {
	l.stopOnce.Do(func() {
		if l.cleanupCancel == nil {
			return
		}
		l.cleanupCancel()
		<-l.cleanupDone
	})
}

// Close stops the background cleanup. The limiter must not be used after Close.
func (l *DualWindowLimiter) Close() {
	l.StopCleanup()
}

// ClientsCount returns the number of currently tracked clients.
func (l *DualWindowLimiter) ClientsCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

func (l *DualWindowLimiter) cleanupIdleClients() {
	now := l.timeNow()

	l.mu.Lock()
	removed := 0
	for clientID, rec := range l.clients {
		rec.burst = pruneWindow(rec.burst, now, l.burst.Window)
		rec.sustained = pruneWindow(rec.sustained, now, l.sustained.Window)
		if len(rec.burst) == 0 && len(rec.sustained) == 0 {
			delete(l.clients, clientID)
			removed++
		}
	}
	clientsLeft := len(l.clients)
	l.mu.Unlock()

	l.metricsCollector.SetClientsAmount(clientsLeft)
	if removed > 0 {
		l.logger.Debug("cleaned up idle rate limiting records",
			log.Int("removed", removed), log.Int("left", clientsLeft))
	}
}

// pruneWindow drops timestamps that already left the window ending at now.
// Timestamps are stored in ascending order, so only the prefix is cut.
func pruneWindow(timestamps []time.Time, now time.Time, window time.Duration) []time.Time {
	windowStart := now.Add(-window)
	i := 0
	for ; i < len(timestamps); i++ {
		if timestamps[i].After(windowStart) {
			break
		}
	}
	return timestamps[i:]
}

func ceilToSeconds(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	if rem := d % time.Second; rem != 0 {
		return d - rem + time.Second
	}
	return d
}
