package market

import (
	"context"
	"sync"
	"time"
)

// Limiter bounds in-flight requests against one exchange and enforces a
// minimum spacing between request starts. Public futures endpoints weight
// requests per IP, so all calls of a client share one Limiter. A nil
// Limiter performs no limiting.
type Limiter struct {
	sem         chan struct{}
	minInterval time.Duration

	mu        sync.Mutex
	nextStart time.Time
}

// NewLimiter builds a limiter allowing maxConcurrent in-flight requests
// with at least minInterval between consecutive starts. Non-positive
// arguments disable the respective limit.
func NewLimiter(maxConcurrent int, minInterval time.Duration) *Limiter {
	l := &Limiter{minInterval: minInterval}
	if maxConcurrent > 0 {
		l.sem = make(chan struct{}, maxConcurrent)
	}
	return l
}

// Acquire blocks until a concurrency slot is free and this caller's paced
// start time arrives. Every successful Acquire must be paired with Release.
func (l *Limiter) Acquire(ctx context.Context) error {
	if l == nil {
		return nil
	}
	if l.sem != nil {
		select {
		case l.sem <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if l.minInterval <= 0 {
		return nil
	}

	// Reserve the next start slot; waiting happens outside the lock so a
	// slow sleeper does not block other reservations.
	l.mu.Lock()
	now := time.Now()
	start := l.nextStart
	if start.Before(now) {
		start = now
	}
	l.nextStart = start.Add(l.minInterval)
	l.mu.Unlock()

	if wait := time.Until(start); wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			if l.sem != nil {
				<-l.sem
			}
			return ctx.Err()
		case <-timer.C:
		}
	}
	return nil
}

// Release frees the concurrency slot taken by Acquire.
func (l *Limiter) Release() {
	if l == nil || l.sem == nil {
		return
	}
	<-l.sem
}
