package cache

import (
    "context"
    "sync"
    "time"

    "pricechecker/internal/provider"
)

// entry stores the quotes scraped from one URL with expiry.
type entry struct {
    expiresAt time.Time
    quotes    []provider.Quote
}

// Fetcher caches quotes per source URL for a TTL. Only URLs without a live
// entry are passed to the wrapped fetcher; cached and fresh quotes are
// merged in URL order.
type Fetcher struct {
    F   provider.Fetcher
    TTL time.Duration

    mu    sync.RWMutex
    items map[string]entry // key: url
}

func (c *Fetcher) Name() string { return c.F.Name() }

func (c *Fetcher) Fetch(ctx context.Context, urls []string) ([]provider.Quote, error) {
    if c.TTL <= 0 {
        return c.F.Fetch(ctx, urls)
    }

    now := time.Now()
    cached := make(map[string][]provider.Quote, len(urls))
    missing := make([]string, 0, len(urls))
    seen := make(map[string]struct{}, len(urls))

    c.mu.RLock()
    for _, u := range urls {
        if _, dup := seen[u]; dup { continue }
        seen[u] = struct{}{}
        if e, ok := c.items[u]; ok && now.Before(e.expiresAt) {
            cached[u] = e.quotes
            continue
        }
        missing = append(missing, u)
    }
    c.mu.RUnlock()

    fresh := map[string][]provider.Quote{}
    if len(missing) > 0 {
        qs, err := c.F.Fetch(ctx, missing)
        if err != nil && len(cached) == 0 {
            return nil, err
        }
        for _, q := range qs { fresh[q.Source] = append(fresh[q.Source], q) }

        // only URLs that produced quotes are remembered; failures retry next cycle
        expiry := now.Add(c.TTL)
        c.mu.Lock()
        if c.items == nil { c.items = make(map[string]entry, len(fresh)) }
        for u, qs := range fresh { c.items[u] = entry{expiresAt: expiry, quotes: qs} }
        for k, e := range c.items {
            if now.After(e.expiresAt) { delete(c.items, k) }
        }
        c.mu.Unlock()
    }

    out := make([]provider.Quote, 0)
    for _, u := range urls {
        if qs, ok := fresh[u]; ok {
            out = append(out, qs...)
            delete(fresh, u)
            continue
        }
        if qs, ok := cached[u]; ok {
            out = append(out, qs...)
            delete(cached, u)
        }
    }
    return out, nil
}
