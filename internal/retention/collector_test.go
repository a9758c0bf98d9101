package retention

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/rollcall/internal/clock"
	"github.com/mattjoyce/rollcall/internal/ledger"
	"github.com/mattjoyce/rollcall/internal/report"
	"github.com/mattjoyce/rollcall/internal/roster"
	"github.com/mattjoyce/rollcall/internal/storage"
)

type fakeLedger struct {
	counts  []ledger.DateCount
	deleted [][]string
	err     error
}

func (f *fakeLedger) Count(context.Context) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	total := 0
	for _, dc := range f.counts {
		total += dc.Rows
	}
	return total, nil
}

func (f *fakeLedger) DateCounts(context.Context) ([]ledger.DateCount, error) {
	return f.counts, nil
}

func (f *fakeLedger) DeleteDates(_ context.Context, dates []string) (int64, error) {
	f.deleted = append(f.deleted, dates)
	drop := make(map[string]bool, len(dates))
	for _, d := range dates {
		drop[d] = true
	}
	var n int64
	var kept []ledger.DateCount
	for _, dc := range f.counts {
		if drop[dc.Date] {
			n += int64(dc.Rows)
			continue
		}
		kept = append(kept, dc)
	}
	f.counts = kept
	return n, nil
}

type fakeArtifacts struct {
	present map[string]bool
	err     error
}

func (f *fakeArtifacts) Remove(date string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	ok := f.present[date]
	delete(f.present, date)
	return ok, nil
}

func sixDays() []ledger.DateCount {
	counts := make([]ledger.DateCount, 6)
	for i := range counts {
		counts[i] = ledger.DateCount{Date: fmt.Sprintf("2024-01-%02d", i+1), Rows: 1000}
	}
	return counts
}

func TestSelectDates(t *testing.T) {
	counts := []ledger.DateCount{
		{Date: "2024-01-01", Rows: 3},
		{Date: "2024-01-02", Rows: 5},
		{Date: "2024-01-03", Rows: 2},
	}
	tests := []struct {
		name   string
		excess int
		want   []string
	}{
		{name: "none", excess: 0, want: nil},
		{name: "within first", excess: 1, want: []string{"2024-01-01"}},
		{name: "exactly first", excess: 3, want: []string{"2024-01-01"}},
		{name: "spills into second", excess: 4, want: []string{"2024-01-01", "2024-01-02"}},
		{name: "exactly two", excess: 8, want: []string{"2024-01-01", "2024-01-02"}},
		{name: "more than stored", excess: 50, want: []string{"2024-01-01", "2024-01-02", "2024-01-03"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SelectDates(counts, tt.excess))
		})
	}
}

func TestSelectDatesIsPrefix(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 9))
	for range 50 {
		counts := make([]ledger.DateCount, 1+rng.IntN(20))
		total := 0
		for i := range counts {
			counts[i] = ledger.DateCount{Date: fmt.Sprintf("2024-02-%02d", i+1), Rows: 1 + rng.IntN(30)}
			total += counts[i].Rows
		}
		excess := 1 + rng.IntN(total)
		got := SelectDates(counts, excess)

		sum := 0
		for i, d := range got {
			require.Equal(t, counts[i].Date, d)
			sum += counts[i].Rows
		}
		assert.GreaterOrEqual(t, sum, excess)
		assert.Less(t, sum-counts[len(got)-1].Rows, excess, "the last selected date is needed")
	}
}

func TestCollectSixThousandRows(t *testing.T) {
	l := &fakeLedger{counts: sixDays()}
	arts := &fakeArtifacts{present: map[string]bool{"2024-01-01": true, "2024-01-02": true}}
	c := New(l, arts, nil)

	res, err := c.Collect(context.Background(), 5500)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01-01"}, res.Dates)
	assert.Equal(t, 6000, res.RowsBefore)
	assert.Equal(t, 1000, res.RowsDeleted)
	assert.Equal(t, 5000, res.RowsAfter)
	assert.Equal(t, 1, res.ArtifactsRemoved)
	assert.True(t, arts.present["2024-01-02"], "only pruned dates lose their report")
}

func TestCollectNoop(t *testing.T) {
	l := &fakeLedger{counts: sixDays()}
	c := New(l, nil, nil)

	res, err := c.Collect(context.Background(), 6000)
	require.NoError(t, err)
	assert.Empty(t, res.Dates)
	assert.Zero(t, res.RowsDeleted)
	assert.Equal(t, 6000, res.RowsAfter)
	assert.Empty(t, l.deleted)
}

func TestCollectToleratesArtifactErrors(t *testing.T) {
	l := &fakeLedger{counts: sixDays()}
	c := New(l, &fakeArtifacts{err: errors.New("permission denied")}, nil)

	res, err := c.Collect(context.Background(), 3500)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01-01", "2024-01-02", "2024-01-03"}, res.Dates)
	assert.Equal(t, 3000, res.RowsAfter)
	assert.Zero(t, res.ArtifactsRemoved)
}

func TestCollectErrors(t *testing.T) {
	boom := errors.New("boom")
	c := New(&fakeLedger{err: boom}, nil, nil)

	_, err := c.Collect(context.Background(), 10)
	assert.ErrorIs(t, err, boom)

	_, err = c.Collect(context.Background(), 0)
	assert.Error(t, err)
}

func TestCollectAgainstSQLite(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()
	db, err := storage.OpenSQLite(ctx, filepath.Join(dir, "checkins.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	loc, err := clock.LoadLocation("Europe/Bucharest")
	require.NoError(t, err)
	clk := clock.New(loc)
	l := ledger.New(db, clk, ledger.NewEstimator(rand.New(rand.NewPCG(1, 1))), nil)

	arts, err := report.NewArtifacts(filepath.Join(dir, "reports"))
	require.NoError(t, err)

	for day := 1; day <= 3; day++ {
		at := time.Date(2024, 1, day, 8, 0, 0, 0, loc)
		for h := 0; h < 4; h++ {
			_, _, err := l.Record(ctx, roster.Entry{HostID: fmt.Sprintf("h%d", h), ExpectedHours: 8}, at)
			require.NoError(t, err)
		}
		_, err := arts.Publish(clk.DateOf(at), []byte("%PDF-"))
		require.NoError(t, err)
	}

	res, err := New(l, arts, nil).Collect(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01-01"}, res.Dates)
	assert.Equal(t, 8, res.RowsAfter)
	assert.Equal(t, 1, res.ArtifactsRemoved)

	n, err := l.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 8, n)
	assert.False(t, arts.Exists("2024-01-01"))
	assert.True(t, arts.Exists("2024-01-02"))
}
