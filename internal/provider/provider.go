package provider

import (
    "context"
    "time"

    "github.com/shopspring/decimal"
)

// Quote is one scraped price observation, normalized across platforms.
// Price is a decimal to keep the 3-digit policy exact.
type Quote struct {
    Platform   string          `json:"platform"`
    Price      decimal.Decimal `json:"price"`
    Source     string          `json:"source"`
    ReceivedAt time.Time       `json:"received_at"`
}

// Fetcher returns raw quotes for one platform from its source URLs.
// An empty result with a nil error means the platform had no data this cycle.
//
//go:generate mockgen -package=aggregate_test -destination=../aggregate/mock_fetcher_test.go -source=provider.go Fetcher
type Fetcher interface {
    Name() string
    Fetch(ctx context.Context, urls []string) ([]Quote, error)
}

// Prices extracts the price values of qs in order.
func Prices(qs []Quote) []decimal.Decimal {
    out := make([]decimal.Decimal, 0, len(qs))
    for _, q := range qs { out = append(out, q.Price) }
    return out
}
