package trend

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrStoreUnavailable wraps every failure to reach or query the history store.
var ErrStoreUnavailable = errors.New("trend store unavailable")

const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"

	DefaultDSN = "data/silver_price.db"
)

type Config struct {
	// Driver is "sqlite" (default) or "mysql".
	Driver string
	// DSN is a file path for sqlite or a go-sql-driver DSN for mysql.
	DSN string
}

// Store persists one PlatformRecord per platform and calendar day.
type Store struct {
	db *gorm.DB
}

// Open connects to the configured backend. Call Initialize before use.
func Open(cfg Config) (*Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" { driver = DriverSQLite }

	gcfg := &gorm.Config{
		Logger: logger.New(log.Default(), logger.Config{
			SlowThreshold:             500 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	}

	var dial gorm.Dialector
	switch driver {
	case DriverSQLite:
		dsn := cfg.DSN
		if dsn == "" { dsn = DefaultDSN }
		if dir := filepath.Dir(dsn); dsn != ":memory:" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("%w: create %s: %v", ErrStoreUnavailable, dir, err)
			}
		}
		dial = sqlite.Open(dsn)
	case DriverMySQL:
		if cfg.DSN == "" { return nil, fmt.Errorf("%w: mysql requires a DSN", ErrStoreUnavailable) }
		dial = mysql.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dial, gcfg)
	if err != nil { return nil, fmt.Errorf("%w: open %s: %v", ErrStoreUnavailable, driver, err) }

	sqlDB, err := db.DB()
	if err != nil { return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err) }
	if driver == DriverSQLite {
		// sqlite writers serialize on one connection
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(4)
		sqlDB.SetMaxOpenConns(16)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}
	return &Store{db: db}, nil
}

// Initialize creates or migrates the prices table.
func (s *Store) Initialize(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&PlatformRecord{}); err != nil {
		return fmt.Errorf("%w: migrate: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Recent returns up to count points for platform, newest date first.
func (s *Store) Recent(ctx context.Context, platform string, count int) ([]TrendPoint, error) {
	if count <= 0 { return nil, nil }
	var rows []PlatformRecord
	err := s.db.WithContext(ctx).
		Where("platform = ?", platform).
		Order("record_date DESC").
		Limit(count).
		Find(&rows).Error
	if err != nil { return nil, fmt.Errorf("%w: recent %s: %v", ErrStoreUnavailable, platform, err) }

	out := make([]TrendPoint, 0, len(rows))
	for _, r := range rows { out = append(out, TrendPoint{Date: r.Date, Lowest: r.Lowest}) }
	return out, nil
}

// Snapshot is Recent packaged for presentation.
func (s *Store) Snapshot(ctx context.Context, platform string, count int) (TrendSnapshot, error) {
	pts, err := s.Recent(ctx, platform, count)
	if err != nil { return TrendSnapshot{}, err }
	return TrendSnapshot{Platform: platform, Points: pts}, nil
}

// Records returns up to count full rows for platform, newest date first.
func (s *Store) Records(ctx context.Context, platform string, count int) ([]PlatformRecord, error) {
	var rows []PlatformRecord
	q := s.db.WithContext(ctx).Where("platform = ?", platform).Order("record_date DESC")
	if count > 0 { q = q.Limit(count) }
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("%w: records %s: %v", ErrStoreUnavailable, platform, err)
	}
	return rows, nil
}

// Platforms lists every platform with at least one row, sorted.
func (s *Store) Platforms(ctx context.Context) ([]string, error) {
	var names []string
	err := s.db.WithContext(ctx).Model(&PlatformRecord{}).
		Distinct("platform").Order("platform").Pluck("platform", &names).Error
	if err != nil { return nil, fmt.Errorf("%w: platforms: %v", ErrStoreUnavailable, err) }
	return names, nil
}

// Upsert inserts rec when no row exists for (platform, date). An existing
// row is only updated when rec.Lowest is strictly lower; its trend fields
// are replaced only when rec carries a trend. written reports whether a
// row changed.
func (s *Store) Upsert(ctx context.Context, rec PlatformRecord) (written bool, err error) {
	if rec.Platform == "" { return false, errors.New("upsert: empty platform") }
	if err := validDate(rec.Date); err != nil { return false, fmt.Errorf("upsert: %w", err) }
	if !rec.Lowest.IsPositive() { return false, fmt.Errorf("upsert: lowest must be positive, got %s", rec.Lowest) }
	rec.Lowest = rec.Lowest.Round(3)
	if rec.TrendLowest.Valid { rec.TrendLowest.Decimal = rec.TrendLowest.Decimal.Round(3) }

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cur PlatformRecord
		res := tx.Where("platform = ? AND record_date = ?", rec.Platform, rec.Date).Limit(1).Find(&cur)
		if res.Error != nil { return res.Error }

		if res.RowsAffected == 0 {
			rec.ID = 0
			if err := tx.Create(&rec).Error; err != nil { return err }
			written = true
			return nil
		}

		if !rec.Lowest.LessThan(cur.Lowest) { return nil }
		updates := map[string]any{"lowest": rec.Lowest}
		if rec.HasTrend() {
			updates["trend_date"] = *rec.TrendDate
			updates["trend_lowest"] = rec.TrendLowest
		}
		if err := tx.Model(&cur).Updates(updates).Error; err != nil { return err }
		written = true
		return nil
	})
	if err != nil { return false, fmt.Errorf("%w: upsert %s %s: %v", ErrStoreUnavailable, rec.Platform, rec.Date, err) }
	return written, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil { return err }
	return sqlDB.Close()
}
