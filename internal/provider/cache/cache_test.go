package cache

import (
    "context"
    "errors"
    "testing"
    "time"

    "github.com/shopspring/decimal"

    "pricechecker/internal/provider"
)

type recordingFetcher struct {
    requested [][]string
    fail      map[string]bool
}

func (r *recordingFetcher) Name() string { return "UU898" }
func (r *recordingFetcher) Fetch(_ context.Context, urls []string) ([]provider.Quote, error) {
    r.requested = append(r.requested, append([]string(nil), urls...))
    var out []provider.Quote
    for _, u := range urls {
        if r.fail[u] { continue }
        out = append(out, provider.Quote{Platform: "UU898", Price: decimal.NewFromFloat(10.5), Source: u})
    }
    if len(out) == 0 { return nil, errors.New("all failed") }
    return out, nil
}

func TestFetch_ServesCachedURLs(t *testing.T) {
    r := &recordingFetcher{}
    c := &Fetcher{F: r, TTL: time.Minute}

    if _, err := c.Fetch(t.Context(), []string{"a", "b"}); err != nil { t.Fatalf("first: %v", err) }
    out, err := c.Fetch(t.Context(), []string{"a", "b", "c"})
    if err != nil { t.Fatalf("second: %v", err) }

    if len(r.requested) != 2 || len(r.requested[1]) != 1 || r.requested[1][0] != "c" {
        t.Fatalf("second call should only request c, got %v", r.requested)
    }
    if len(out) != 3 || out[0].Source != "a" || out[1].Source != "b" || out[2].Source != "c" {
        t.Fatalf("unexpected merge order: %+v", out)
    }
}

func TestFetch_FailedURLsAreRetried(t *testing.T) {
    r := &recordingFetcher{fail: map[string]bool{"b": true}}
    c := &Fetcher{F: r, TTL: time.Minute}

    if _, err := c.Fetch(t.Context(), []string{"a", "b"}); err != nil { t.Fatalf("first: %v", err) }
    r.fail = nil
    out, err := c.Fetch(t.Context(), []string{"a", "b"})
    if err != nil { t.Fatalf("second: %v", err) }
    if len(r.requested[1]) != 1 || r.requested[1][0] != "b" { t.Fatalf("b should be retried alone: %v", r.requested) }
    if len(out) != 2 { t.Fatalf("want 2 quotes, got %d", len(out)) }
}

func TestFetch_ErrorWithoutCacheIsReturned(t *testing.T) {
    r := &recordingFetcher{fail: map[string]bool{"a": true}}
    c := &Fetcher{F: r, TTL: time.Minute}
    if _, err := c.Fetch(t.Context(), []string{"a"}); err == nil { t.Fatal("want error") }
}

func TestFetch_ZeroTTLPassesThrough(t *testing.T) {
    r := &recordingFetcher{}
    c := &Fetcher{F: r}
    for i := 0; i < 2; i++ {
        if _, err := c.Fetch(t.Context(), []string{"a"}); err != nil { t.Fatalf("fetch: %v", err) }
    }
    if len(r.requested) != 2 { t.Fatalf("want 2 upstream calls, got %d", len(r.requested)) }
    if c.Name() != "UU898" { t.Fatalf("name = %s", c.Name()) }
}
