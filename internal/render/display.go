package render

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"pricechecker/internal/aggregate"
	"pricechecker/internal/reduce"
)

// ErrRenderFailure marks any failure to turn prices into an image.
var ErrRenderFailure = errors.New("render failure")

// NotAvailable fills day slots the trend does not cover.
const NotAvailable = "N/A"

// Display is what a platform card shows.
type Display struct {
	Platform           string `json:"platform"`
	CurrentAvg         string `json:"current_avg"`
	TodayLowest        string `json:"today_lowest"`
	YesterdayLowest    string `json:"yesterday_lowest"`
	PreYesterdayLowest string `json:"pre_yesterday_lowest"`
}

// Build converts aggregator output into display rows sorted by platform.
// The three day slots come from the trend, newest first; today falls back
// to the current lowest when no trend is attached.
func Build(prices aggregate.Prices, unit string) ([]Display, error) {
	if unit == "" { unit = aggregate.DefaultUnit }
	names := make([]string, 0, len(prices))
	for name := range prices { names = append(names, name) }
	sort.Strings(names)

	out := make([]Display, 0, len(names))
	for _, name := range names {
		p := prices[name]
		avg, err := leadingValue(p.CurrentAvg)
		if err != nil { return nil, fmt.Errorf("%w: %s current_avg: %v", ErrRenderFailure, name, err) }

		d := Display{
			Platform:           name,
			CurrentAvg:         withUnit(avg, unit),
			TodayLowest:        NotAvailable,
			YesterdayLowest:    NotAvailable,
			PreYesterdayLowest: NotAvailable,
		}
		var lows []float64
		if p.Trend != nil { lows = p.Trend.LowestPrices }
		slots := []*string{&d.TodayLowest, &d.YesterdayLowest, &d.PreYesterdayLowest}
		for i, v := range lows {
			if i == len(slots) { break }
			*slots[i] = withUnit(decimal.NewFromFloat(v), unit)
		}
		if len(lows) == 0 && p.CurrentLowest != "" {
			low, err := leadingValue(p.CurrentLowest)
			if err != nil { return nil, fmt.Errorf("%w: %s current_lowest: %v", ErrRenderFailure, name, err) }
			d.TodayLowest = withUnit(low, unit)
		}
		out = append(out, d)
	}
	return out, nil
}

func withUnit(v decimal.Decimal, unit string) string {
	return reduce.Format(v.Round(reduce.Places)) + " " + unit
}

// leadingValue parses the number in front of a "10.333 元/万银" display value.
func leadingValue(s string) (decimal.Decimal, error) {
	f := strings.Fields(s)
	if len(f) == 0 { return decimal.Decimal{}, errors.New("empty value") }
	return decimal.NewFromString(f[0])
}
