// Package scrape holds the per-URL loop shared by the HTML-scraping
// platform fetchers: per-URL timeouts, skip-and-log on failure, the entry
// cap and price text parsing.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"

	"pricechecker/internal/provider"
)

// MaxEntries caps the price entries considered per page.
const MaxEntries = 10

// UnitMarker is the unit text the marketplaces print after a silver price.
const UnitMarker = "元/万银"

var (
	// ErrSourceUnavailable marks network, HTTP status and navigation failures.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrParseMiss marks a fetched page without the expected price entries.
	ErrParseMiss = errors.New("price entries not found")
)

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=scrape_test -destination=mock_http_client_test.go -source=scrape.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// PageFunc fetches one URL and returns the valid prices found on it.
type PageFunc func(ctx context.Context, url string) ([]decimal.Decimal, error)

// Collect calls page for every url in order, each under its own timeout.
// A failing URL is logged and skipped. The joined per-URL errors are
// returned only when no URL produced a quote.
func Collect(ctx context.Context, platform string, urls []string, timeout time.Duration, page PageFunc) ([]provider.Quote, error) {
	var out []provider.Quote
	var errs []error
	for _, u := range urls {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		prices, err := fetchOne(ctx, u, timeout, page)
		if err != nil {
			log.Printf("%s: %s: %v", platform, u, err)
			errs = append(errs, fmt.Errorf("%s: %w", u, err))
			continue
		}
		now := time.Now().UTC()
		for _, p := range prices {
			out = append(out, provider.Quote{Platform: platform, Price: p, Source: u, ReceivedAt: now})
		}
		log.Printf("%s: %s: %d quotes", platform, u, len(prices))
	}
	if len(out) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

func fetchOne(ctx context.Context, url string, timeout time.Duration, page PageFunc) ([]decimal.Decimal, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return page(ctx, url)
}

// GetDocument performs a GET and parses the body as HTML.
func GetDocument(ctx context.Context, client HTTPClient, url string, header http.Header) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	res, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: GET %s -> %d", ErrSourceUnavailable, url, res.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(res.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", ErrSourceUnavailable, err)
	}
	return doc, nil
}

// Extract parses the text of the first MaxEntries nodes matching selector.
// Entries parse rejects are dropped; a page with no valid entry is a miss.
func Extract(doc *goquery.Document, selector string, parse func(text string) (decimal.Decimal, bool)) ([]decimal.Decimal, error) {
	sel := doc.Find(selector)
	if sel.Length() == 0 {
		return nil, fmt.Errorf("%w: %q", ErrParseMiss, selector)
	}
	if sel.Length() > MaxEntries {
		sel = sel.Slice(0, MaxEntries)
	}

	out := make([]decimal.Decimal, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		if v, ok := parse(strings.TrimSpace(s.Text())); ok {
			out = append(out, v)
		}
	})
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no valid price under %q", ErrParseMiss, selector)
	}
	return out, nil
}

// ParsePrice parses s as a strictly positive decimal.
func ParsePrice(s string) (decimal.Decimal, bool) {
	v, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil || !v.IsPositive() {
		return decimal.Zero, false
	}
	return v, true
}

// PriceBefore parses the text preceding marker, e.g. "10.5元/万银".
func PriceBefore(text, marker string) (decimal.Decimal, bool) {
	before, _, found := strings.Cut(text, marker)
	if !found {
		return decimal.Zero, false
	}
	return ParsePrice(before)
}
