package ratelimit

import (
    "context"
    "sync"
    "time"

    "pricechecker/internal/provider"
)

// TokenBucket is a token bucket limiter.
// - rate: tokens per second
// - capacity: maximum tokens the bucket can hold (burst)
type TokenBucket struct {
    rate     float64
    capacity float64

    mu     sync.Mutex
    tokens float64
    last   time.Time
}

func NewTokenBucket(tokensPerSecond float64, burst int) *TokenBucket {
    if tokensPerSecond <= 0 { tokensPerSecond = 0.0000001 }
    if burst <= 0 { burst = 1 }
    return &TokenBucket{
        rate:     tokensPerSecond,
        capacity: float64(burst),
        tokens:   float64(burst), // start full to allow an initial burst
        last:     time.Now(),
    }
}

// PerMinute builds a bucket from a requests-per-minute budget.
func PerMinute(rpm, burst int) *TokenBucket {
    return NewTokenBucket(float64(rpm)/60.0, burst)
}

// Wait blocks until one token is available or ctx is canceled.
func (tb *TokenBucket) Wait(ctx context.Context) error {
    for {
        tb.mu.Lock()
        now := time.Now()
        if elapsed := now.Sub(tb.last).Seconds(); elapsed > 0 {
            tb.tokens += elapsed * tb.rate
            if tb.tokens > tb.capacity { tb.tokens = tb.capacity }
            tb.last = now
        }
        if tb.tokens >= 1 {
            tb.tokens -= 1
            tb.mu.Unlock()
            return nil
        }
        deficit := 1 - tb.tokens
        tb.mu.Unlock()

        waitDur := time.Duration(deficit / tb.rate * float64(time.Second))
        if waitDur <= 0 { waitDur = time.Millisecond }
        timer := time.NewTimer(waitDur)
        select {
        case <-ctx.Done():
            timer.Stop()
            return ctx.Err()
        case <-timer.C:
        }
    }
}

// Fetcher gates a platform fetcher with a token bucket, one token per cycle.
type Fetcher struct {
    F  provider.Fetcher
    TB *TokenBucket
}

func (t *Fetcher) Name() string { return t.F.Name() }

func (t *Fetcher) Fetch(ctx context.Context, urls []string) ([]provider.Quote, error) {
    if t.TB != nil {
        if err := t.TB.Wait(ctx); err != nil { return nil, err }
    }
    return t.F.Fetch(ctx, urls)
}

// Wrap applies the configured limit to f: a token bucket when rpm > 0,
// otherwise a minimum interval when interval > 0, otherwise f unchanged.
func Wrap(f provider.Fetcher, rpm, burst int, interval time.Duration) provider.Fetcher {
    switch {
    case rpm > 0:
        return &Fetcher{F: f, TB: PerMinute(rpm, burst)}
    case interval > 0:
        return &MinInterval{F: f, Interval: interval}
    default:
        return f
    }
}
