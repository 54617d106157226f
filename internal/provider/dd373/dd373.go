package dd373

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"pricechecker/internal/provider"
	"pricechecker/internal/provider/scrape"
)

//go:generate mockgen -package=dd373_test -destination=mock_http_client_test.go -source=../scrape/scrape.go HTTPClient

// Name is the platform identifier used in configuration and output.
const Name = "DD373"

// priceSelector matches the per-listing ratio line, e.g. "1万银=10.52元".
const priceSelector = "p.font12.color666.m-t5"

// Fetcher scrapes DD373 listing pages over plain HTTP.
type Fetcher struct {
	// httpClient is the HTTP client used for page requests.
	httpClient scrape.HTTPClient
	// header contains additional headers to be sent with each request.
	header http.Header
	// timeout bounds each URL fetch.
	timeout time.Duration
}

// Option is a configuration option for the DD373 fetcher.
type Option func(*Fetcher)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(httpClient scrape.HTTPClient) Option {
	return func(f *Fetcher) {
		f.httpClient = httpClient
	}
}

// WithHeader sets additional headers to be sent with each request.
func WithHeader(header http.Header) Option {
	return func(f *Fetcher) {
		for key, values := range header {
			for _, value := range values {
				f.header.Add(key, value)
			}
		}
	}
}

// WithTimeout sets the per-URL timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(f *Fetcher) {
		f.timeout = timeout
	}
}

// New creates a DD373 fetcher.
func New(options ...Option) *Fetcher {
	var f = &Fetcher{
		httpClient: http.DefaultClient,
		header:     http.Header{},
		timeout:    10 * time.Second,
	}
	for _, option := range options {
		option(f)
	}
	return f
}

func (f *Fetcher) Name() string { return Name }

// Fetch scrapes every url and pools the quotes.
func (f *Fetcher) Fetch(ctx context.Context, urls []string) ([]provider.Quote, error) {
	return scrape.Collect(ctx, Name, urls, f.timeout, f.page)
}

func (f *Fetcher) page(ctx context.Context, url string) ([]decimal.Decimal, error) {
	doc, err := scrape.GetDocument(ctx, f.httpClient, url, f.header)
	if err != nil {
		return nil, err
	}
	return scrape.Extract(doc, priceSelector, parsePrice)
}

// parsePrice reads the yuan amount on the right of "=", dropping the 元 unit.
func parsePrice(text string) (decimal.Decimal, bool) {
	_, after, found := strings.Cut(text, "=")
	if !found {
		return decimal.Zero, false
	}
	return scrape.ParsePrice(strings.ReplaceAll(after, "元", ""))
}
