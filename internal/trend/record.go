package trend

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar-day key format stored in record_date.
const DateLayout = "2006-01-02"

// PlatformRecord is one persisted day of a platform's lowest representative
// value. TrendDate/TrendLowest carry the previous day's record forward when
// the row was created on a day rollover.
type PlatformRecord struct {
	ID          uint                `json:"id" gorm:"primaryKey"`
	Platform    string              `json:"platform" gorm:"size:64;not null;uniqueIndex:idx_prices_platform_date,priority:1"`
	Date        string              `json:"date" gorm:"column:record_date;size:10;not null;uniqueIndex:idx_prices_platform_date,priority:2"`
	Lowest      decimal.Decimal     `json:"lowest" gorm:"type:decimal(12,3);not null"`
	TrendDate   *string             `json:"trend_date,omitempty" gorm:"size:10"`
	TrendLowest decimal.NullDecimal `json:"trend_lowest" gorm:"type:decimal(12,3)"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

func (PlatformRecord) TableName() string { return "prices" }

// HasTrend reports whether the record carries a previous-day snapshot.
func (r PlatformRecord) HasTrend() bool {
	return r.TrendDate != nil && *r.TrendDate != "" && r.TrendLowest.Valid
}

// WithTrend returns r carrying p as its previous-day snapshot.
func (r PlatformRecord) WithTrend(p TrendPoint) PlatformRecord {
	d := p.Date
	r.TrendDate = &d
	r.TrendLowest = decimal.NewNullDecimal(p.Lowest)
	return r
}

// TrendPoint is one (date, lowest) pair of a platform's history.
type TrendPoint struct {
	Date   string          `json:"date"`
	Lowest decimal.Decimal `json:"lowest"`
}

// TrendSnapshot is a platform's most recent points, newest first.
type TrendSnapshot struct {
	Platform string       `json:"platform"`
	Points   []TrendPoint `json:"points"`
}

func (s TrendSnapshot) Dates() []string {
	out := make([]string, 0, len(s.Points))
	for _, p := range s.Points { out = append(out, p.Date) }
	return out
}

// LowestPrices returns the lowest values as numbers for chart consumers.
func (s TrendSnapshot) LowestPrices() []float64 {
	out := make([]float64, 0, len(s.Points))
	for _, p := range s.Points { out = append(out, p.Lowest.InexactFloat64()) }
	return out
}

// Day formats t's calendar day in loc.
func Day(t time.Time, loc *time.Location) string {
	if loc != nil { t = t.In(loc) }
	return t.Format(DateLayout)
}

func validDate(s string) error {
	if _, err := time.Parse(DateLayout, s); err != nil {
		return fmt.Errorf("invalid date %q: %w", s, err)
	}
	return nil
}
