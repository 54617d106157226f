package aggregate

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"pricechecker/internal/provider"
	"pricechecker/internal/reduce"
	"pricechecker/internal/trend"
)

const (
	// DefaultUnit is appended to every display value.
	DefaultUnit = "元/万银"
	// TrendDays is the rolling window attached to each platform.
	TrendDays = 3
	// DefaultCycleTimeout bounds one platform cycle.
	DefaultCycleTimeout = 2 * time.Minute
)

// Store is the part of the history store the aggregator needs.
// *trend.Store satisfies it.
//
//go:generate mockgen -package=aggregate_test -destination=mock_store_test.go -source=aggregate.go Store
type Store interface {
	Recent(ctx context.Context, platform string, count int) ([]trend.TrendPoint, error)
	Upsert(ctx context.Context, rec trend.PlatformRecord) (bool, error)
}

// Source binds a platform to its fetcher and configured URLs.
type Source struct {
	Platform string
	URLs     []string
	Fetcher  provider.Fetcher
}

type Trend struct {
	Dates        []string  `json:"dates"`
	LowestPrices []float64 `json:"lowest_prices"`
}

// PlatformPrice is the presented result for one platform.
type PlatformPrice struct {
	CurrentAvg    string `json:"current_avg"`
	CurrentLowest string `json:"current_lowest"`
	Trend         *Trend `json:"trend,omitempty"`
}

// Prices maps platform name to its result. Platforms without data this
// cycle are absent; an empty map means no data at all.
type Prices map[string]PlatformPrice

type Option func(*Aggregator)

// WithClock overrides the time source used to pick the calendar day.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		if now != nil { a.now = now }
	}
}

// WithLocation sets the time zone that defines a calendar day.
func WithLocation(loc *time.Location) Option {
	return func(a *Aggregator) {
		if loc != nil { a.loc = loc }
	}
}

// WithCycleTimeout bounds a shared platform cycle independently of callers.
func WithCycleTimeout(d time.Duration) Option {
	return func(a *Aggregator) {
		if d > 0 { a.cycleTimeout = d }
	}
}

func WithUnit(unit string) Option {
	return func(a *Aggregator) {
		if unit != "" { a.unit = unit }
	}
}

// Aggregator runs fetch cycles and applies the daily lowest-price policy.
type Aggregator struct {
	store   Store
	sources []Source
	now     func() time.Time
	loc     *time.Location
	unit    string

	cycleTimeout time.Duration

	// one in-flight read-then-write per platform
	sf singleflight.Group
}

func New(store Store, sources []Source, opts ...Option) *Aggregator {
	a := &Aggregator{
		store:   store,
		sources: sources,
		now:     time.Now,
		loc:     defaultLocation(),
		unit:    DefaultUnit,

		cycleTimeout: DefaultCycleTimeout,
	}
	for _, opt := range opts { opt(a) }
	return a
}

func defaultLocation() *time.Location {
	loc, err := time.LoadLocation("Asia/Shanghai")
	if err != nil { return time.FixedZone("CST", 8*3600) }
	return loc
}

// Platforms returns the configured platform names in order.
func (a *Aggregator) Platforms() []string {
	out := make([]string, 0, len(a.sources))
	for _, s := range a.sources { out = append(out, s.Platform) }
	return out
}

// Prices runs one cycle across all platforms concurrently. A store failure
// on any platform fails the whole cycle.
func (a *Aggregator) Prices(ctx context.Context) (Prices, error) {
	var (
		mu  sync.Mutex
		out = make(Prices, len(a.sources))
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, src := range a.sources {
		g.Go(func() error {
			pp, err := a.Platform(gctx, src)
			if err != nil { return err }
			if pp == nil { return nil }
			mu.Lock()
			out[src.Platform] = *pp
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil { return nil, err }
	return out, nil
}

// Platform runs one cycle for src. It returns nil without error when the
// platform produced no data. Concurrent calls for the same platform share
// one execution; the shared cycle is detached from every caller's
// cancellation and bounded by the cycle timeout, so a canceled caller only
// abandons its own wait.
func (a *Aggregator) Platform(ctx context.Context, src Source) (*PlatformPrice, error) {
	ch := a.sf.DoChan(src.Platform, func() (any, error) {
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cycleTimeout)
		defer cancel()
		return a.cycle(cctx, src)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Shared { log.Printf("%s: joined in-flight cycle", src.Platform) }
		if res.Err != nil { return nil, res.Err }
		return res.Val.(*PlatformPrice), nil
	}
}

func (a *Aggregator) cycle(ctx context.Context, src Source) (*PlatformPrice, error) {
	quotes, err := src.Fetcher.Fetch(ctx, src.URLs)
	if ctx.Err() != nil { return nil, ctx.Err() }
	if err != nil {
		log.Printf("%s: no data: %v", src.Platform, err)
		return nil, nil
	}
	avg, err := reduce.Mean(provider.Prices(quotes))
	if errors.Is(err, reduce.ErrEmpty) {
		log.Printf("%s: no data: no valid quotes from %d urls", src.Platform, len(src.URLs))
		return nil, nil
	}
	if err != nil { return nil, err }
	if !avg.IsPositive() {
		log.Printf("%s: no data: mean %s rounds to zero", src.Platform, avg)
		return nil, nil
	}

	today := trend.Day(a.now(), a.loc)
	prior, err := a.store.Recent(ctx, src.Platform, 1)
	if err != nil { return nil, err }

	d := decide(src.Platform, today, avg, prior)
	if d.write != nil {
		if _, err := a.store.Upsert(ctx, *d.write); err != nil { return nil, err }
	}

	pp := &PlatformPrice{
		CurrentAvg:    a.display(avg),
		CurrentLowest: a.display(d.lowest),
	}
	if d.first { return pp, nil }

	pts, err := a.store.Recent(ctx, src.Platform, TrendDays)
	if err != nil { return nil, err }
	if len(pts) > 0 {
		snap := trend.TrendSnapshot{Platform: src.Platform, Points: pts}
		pp.Trend = &Trend{Dates: snap.Dates(), LowestPrices: snap.LowestPrices()}
	}
	return pp, nil
}

func (a *Aggregator) display(v decimal.Decimal) string {
	return fmt.Sprintf("%s %s", reduce.Format(v), a.unit)
}

type decision struct {
	write  *trend.PlatformRecord
	lowest decimal.Decimal
	first  bool
}

// decide applies the daily policy to avg given the most recent stored
// point, if any:
//   - no history: record avg for today
//   - last record on another day: record avg for today carrying the old point as trend
//   - same day and avg lower: lower today's record
//   - same day otherwise: keep the record, report its lowest
func decide(platform, today string, avg decimal.Decimal, prior []trend.TrendPoint) decision {
	rec := trend.PlatformRecord{Platform: platform, Date: today, Lowest: avg}
	if len(prior) == 0 {
		return decision{write: &rec, lowest: avg, first: true}
	}
	last := prior[0]
	switch {
	case last.Date != today:
		rec = rec.WithTrend(last)
		return decision{write: &rec, lowest: avg}
	case avg.LessThan(last.Lowest):
		return decision{write: &rec, lowest: avg}
	default:
		return decision{lowest: last.Lowest}
	}
}
