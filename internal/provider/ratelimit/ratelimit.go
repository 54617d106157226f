package ratelimit

import (
    "context"
    "sync"
    "time"

    "pricechecker/internal/provider"
)

// MinInterval wraps a fetcher and enforces a minimum time between fetch
// cycles against the same platform. Concurrent calls wait until the
// interval has elapsed since the last one, or return early if the context
// is canceled.
type MinInterval struct {
    F        provider.Fetcher
    Interval time.Duration
    mu       sync.Mutex
    last     time.Time
}

func (m *MinInterval) Name() string { return m.F.Name() }

func (m *MinInterval) Fetch(ctx context.Context, urls []string) ([]provider.Quote, error) {
    if m.Interval > 0 {
        // reserve the next slot under the lock so waiters queue up in turn
        m.mu.Lock()
        now := time.Now()
        next := m.last.Add(m.Interval)
        if next.Before(now) { next = now }
        m.last = next
        m.mu.Unlock()
        if wait := time.Until(next); wait > 0 {
            t := time.NewTimer(wait)
            defer t.Stop()
            select {
            case <-ctx.Done():
                return nil, ctx.Err()
            case <-t.C:
            }
        }
    }
    return m.F.Fetch(ctx, urls)
}
