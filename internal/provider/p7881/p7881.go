package p7881

import (
    "context"
    "fmt"
    "time"

    "github.com/chromedp/chromedp"
    "github.com/shopspring/decimal"

    "pricechecker/internal/provider"
    "pricechecker/internal/provider/scrape"
)

// Name is the platform identifier used in configuration and output.
const Name = "7881"

// Runner runs fn against an exclusively owned browser. *browser.Pool
// satisfies it.
type Runner interface {
    Run(ctx context.Context, fn func(ctx context.Context) error) error
}

type Config struct {
    Name string
    // ReadySelector is the marker element rendered once listings load.
    ReadySelector string
    // PriceSelector matches the price text nodes inside each listing.
    PriceSelector string
    // WaitTimeout bounds the wait for ReadySelector. Defaults to 10s.
    WaitTimeout time.Duration
    // Timeout bounds one URL fetch including browser start-up.
    Timeout time.Duration
}

// Fetcher loads 7881 listing pages in a headless browser; the prices are
// rendered client side.
type Fetcher struct {
    cfg    Config
    runner Runner
}

func New(cfg Config, r Runner) *Fetcher {
    if cfg.Name == "" { cfg.Name = Name }
    if cfg.ReadySelector == "" { cfg.ReadySelector = "div.list-item-default" }
    if cfg.PriceSelector == "" { cfg.PriceSelector = "div.list-item-default div.price-unit p" }
    if cfg.WaitTimeout <= 0 { cfg.WaitTimeout = 10 * time.Second }
    if cfg.Timeout <= 0 { cfg.Timeout = 30 * time.Second }
    return &Fetcher{cfg: cfg, runner: r}
}

func (f *Fetcher) Name() string { return f.cfg.Name }

func (f *Fetcher) Fetch(ctx context.Context, urls []string) ([]provider.Quote, error) {
    return scrape.Collect(ctx, f.cfg.Name, urls, f.cfg.Timeout, f.page)
}

func (f *Fetcher) page(ctx context.Context, url string) ([]decimal.Decimal, error) {
    var texts []string
    err := f.runner.Run(ctx, func(bctx context.Context) error {
        if err := chromedp.Run(bctx, chromedp.Navigate(url)); err != nil {
            return fmt.Errorf("%w: navigate: %v", scrape.ErrSourceUnavailable, err)
        }
        waitCtx, cancel := context.WithTimeout(bctx, f.cfg.WaitTimeout)
        defer cancel()
        if err := chromedp.Run(waitCtx, chromedp.WaitReady(f.cfg.ReadySelector, chromedp.ByQuery)); err != nil {
            return fmt.Errorf("%w: waiting for %q: %v", scrape.ErrParseMiss, f.cfg.ReadySelector, err)
        }
        return chromedp.Run(bctx, chromedp.Evaluate(textsScript(f.cfg.PriceSelector), &texts))
    })
    if err != nil { return nil, err }

    prices := extractPrices(texts, scrape.MaxEntries)
    if len(prices) == 0 {
        return nil, fmt.Errorf("%w: no %s text under %q", scrape.ErrParseMiss, scrape.UnitMarker, f.cfg.PriceSelector)
    }
    return prices, nil
}

func textsScript(selector string) string {
    return fmt.Sprintf(`Array.from(document.querySelectorAll(%q)).map(e => e.innerText)`, selector)
}

// extractPrices keeps texts carrying the unit marker and returns up to
// limit valid prices.
func extractPrices(texts []string, limit int) []decimal.Decimal {
    out := make([]decimal.Decimal, 0, limit)
    for _, t := range texts {
        v, ok := scrape.PriceBefore(t, scrape.UnitMarker)
        if !ok { continue }
        out = append(out, v)
        if len(out) == limit { break }
    }
    return out
}
