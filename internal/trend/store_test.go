package trend

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Config{DSN: filepath.Join(t.TempDir(), "prices.db")})
	require.NoError(t, err)
	require.NoError(t, s.Initialize(t.Context()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func rec(platform, date, lowest string) PlatformRecord {
	return PlatformRecord{Platform: platform, Date: date, Lowest: decimal.RequireFromString(lowest)}
}

func TestStore_InsertThenRecent(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	// Act
	written, err := s.Upsert(t.Context(), rec("DD373", "2024-05-01", "10.333"))

	// Assert
	require.NoError(t, err)
	require.True(t, written)
	pts, err := s.Recent(t.Context(), "DD373", 3)
	require.NoError(t, err)
	require.Len(t, pts, 1)
	require.Equal(t, "2024-05-01", pts[0].Date)
	require.Equal(t, "10.333", pts[0].Lowest.StringFixed(3))
}

func TestStore_UpdateOnlyWhenLower(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := t.Context()
	_, err := s.Upsert(ctx, rec("UU898", "2024-05-01", "10.000"))
	require.NoError(t, err)

	// Act
	higher, err := s.Upsert(ctx, rec("UU898", "2024-05-01", "10.500"))
	require.NoError(t, err)
	equal, err := s.Upsert(ctx, rec("UU898", "2024-05-01", "10.000"))
	require.NoError(t, err)
	lower, err := s.Upsert(ctx, rec("UU898", "2024-05-01", "9.800"))
	require.NoError(t, err)

	// Assert
	require.False(t, higher)
	require.False(t, equal)
	require.True(t, lower)
	rows, err := s.Records(ctx, "UU898", 0)
	require.NoError(t, err)
	require.Len(t, rows, 1, "at most one row per platform and day")
	require.Equal(t, "9.800", rows[0].Lowest.StringFixed(3))
}

func TestStore_TrendFieldsKeptWhenUpdateHasNone(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := t.Context()

	first := rec("7881", "2024-05-02", "10.000").WithTrend(TrendPoint{Date: "2024-05-01", Lowest: decimal.RequireFromString("10.200")})
	_, err := s.Upsert(ctx, first)
	require.NoError(t, err)

	// Act
	written, err := s.Upsert(ctx, rec("7881", "2024-05-02", "9.900"))

	// Assert
	require.NoError(t, err)
	require.True(t, written)
	rows, err := s.Records(ctx, "7881", 1)
	require.NoError(t, err)
	require.True(t, rows[0].HasTrend())
	require.Equal(t, "2024-05-01", *rows[0].TrendDate)
	require.Equal(t, "10.200", rows[0].TrendLowest.Decimal.StringFixed(3))
	require.Equal(t, "9.900", rows[0].Lowest.StringFixed(3))
}

func TestStore_RecentOrderingAndLimit(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := t.Context()
	for _, d := range []string{"2024-05-03", "2024-05-01", "2024-05-04", "2024-05-02"} {
		_, err := s.Upsert(ctx, rec("DD373", d, "10"))
		require.NoError(t, err)
	}
	_, err := s.Upsert(ctx, rec("UU898", "2024-05-05", "11"))
	require.NoError(t, err)

	pts, err := s.Recent(ctx, "DD373", 3)
	require.NoError(t, err)

	snap := TrendSnapshot{Platform: "DD373", Points: pts}
	require.Equal(t, []string{"2024-05-04", "2024-05-03", "2024-05-02"}, snap.Dates())
	require.Equal(t, []float64{10, 10, 10}, snap.LowestPrices())

	names, err := s.Platforms(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"DD373", "UU898"}, names)
}

func TestStore_RecentUnknownPlatform(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	pts, err := s.Recent(t.Context(), "nope", 3)

	require.NoError(t, err)
	require.Empty(t, pts)
}

func TestStore_UpsertRejectsInvalidRecords(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := t.Context()

	_, err := s.Upsert(ctx, rec("", "2024-05-01", "1"))
	require.Error(t, err)
	_, err = s.Upsert(ctx, rec("DD373", "05/01/2024", "1"))
	require.Error(t, err)
	_, err = s.Upsert(ctx, rec("DD373", "2024-05-01", "0"))
	require.Error(t, err)
}

func TestStore_ClosedStoreIsUnavailable(t *testing.T) {
	t.Parallel()
	s, err := Open(Config{DSN: filepath.Join(t.TempDir(), "prices.db")})
	require.NoError(t, err)
	require.NoError(t, s.Initialize(t.Context()))
	require.NoError(t, s.Close())

	_, err = s.Recent(t.Context(), "DD373", 1)
	require.True(t, errors.Is(err, ErrStoreUnavailable), "got %v", err)
	_, err = s.Upsert(t.Context(), rec("DD373", "2024-05-01", "1"))
	require.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestOpen_UnknownDriver(t *testing.T) {
	t.Parallel()
	_, err := Open(Config{Driver: "oracle"})
	require.Error(t, err)
	_, err = Open(Config{Driver: "mysql"})
	require.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestDay_UsesLocation(t *testing.T) {
	t.Parallel()
	loc := time.FixedZone("CST", 8*3600)
	ts := time.Date(2024, 5, 1, 17, 30, 0, 0, time.UTC)
	require.Equal(t, "2024-05-02", Day(ts, loc))
	require.Equal(t, "2024-05-01", Day(ts, nil))
}
