package uu898

import (
    "context"
    "net/http"
    "time"

    "github.com/shopspring/decimal"

    "pricechecker/internal/provider"
    "pricechecker/internal/provider/scrape"
)

// Name is the platform identifier used in configuration and output.
const Name = "UU898"

// Config controls the UU898 fetcher behavior.
type Config struct {
    Name     string
    Selector string            // price node selector; defaults to the listing price span
    Headers  map[string]string // optional extra headers
    Timeout  time.Duration     // per-URL timeout
}

// Fetcher scrapes UU898 listing pages. Prices are printed as "10.52元/万银"
// in the last span of each listing title.
type Fetcher struct {
    cfg    Config
    client scrape.HTTPClient
    header http.Header
}

func New(cfg Config, hc scrape.HTTPClient) *Fetcher {
    if cfg.Name == "" { cfg.Name = Name }
    if cfg.Selector == "" { cfg.Selector = "li.sp_li1 h6 span:last-child" }
    if cfg.Timeout <= 0 { cfg.Timeout = 10 * time.Second }
    h := http.Header{}
    for k, v := range cfg.Headers { h.Set(k, v) }
    return &Fetcher{cfg: cfg, client: hc, header: h}
}

func (f *Fetcher) Name() string { return f.cfg.Name }

func (f *Fetcher) Fetch(ctx context.Context, urls []string) ([]provider.Quote, error) {
    return scrape.Collect(ctx, f.cfg.Name, urls, f.cfg.Timeout, f.page)
}

func (f *Fetcher) page(ctx context.Context, url string) ([]decimal.Decimal, error) {
    doc, err := scrape.GetDocument(ctx, f.client, url, f.header)
    if err != nil { return nil, err }
    return scrape.Extract(doc, f.cfg.Selector, parsePrice)
}

func parsePrice(text string) (decimal.Decimal, bool) {
    return scrape.PriceBefore(text, scrape.UnitMarker)
}
