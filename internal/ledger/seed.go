package ledger

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/mattjoyce/rollcall/internal/roster"
)

// SeedOptions drives the check-in simulator.
type SeedOptions struct {
	// End is the last date to fill (YYYY-MM-DD).
	End string
	// Days is how many consecutive dates ending at End to fill.
	Days int
	// Fraction of roster hosts checking in each day, in (0, 1].
	Fraction float64
	Rand     *rand.Rand
}

// SeedResult counts what the simulator wrote.
type SeedResult struct {
	Dates    int `json:"dates"`
	Recorded int `json:"recorded"`
	Skipped  int `json:"skipped"`
}

// Seed fills the ledger with simulated check-ins between 07:00 and 10:59 for a
// random subset of entries on each date.
func (l *Ledger) Seed(ctx context.Context, entries []roster.Entry, opts SeedOptions) (SeedResult, error) {
	if opts.Days < 1 {
		return SeedResult{}, fmt.Errorf("seed days must be at least 1")
	}
	if opts.Fraction <= 0 || opts.Fraction > 1 {
		return SeedResult{}, fmt.Errorf("seed fraction must be in (0, 1], got %v", opts.Fraction)
	}
	end, err := l.clock.StartOf(opts.End)
	if err != nil {
		return SeedResult{}, err
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	var res SeedResult
	perDay := int(float64(len(entries)) * opts.Fraction)
	for d := opts.Days - 1; d >= 0; d-- {
		day := end.AddDate(0, 0, -d)
		res.Dates++

		picked := make([]roster.Entry, len(entries))
		copy(picked, entries)
		rng.Shuffle(len(picked), func(i, j int) { picked[i], picked[j] = picked[j], picked[i] })

		for _, e := range picked[:perDay] {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			offset := time.Duration(rng.IntN(4*60*60)) * time.Second
			at := time.Date(day.Year(), day.Month(), day.Day(), 7, 0, 0, 0, l.clock.Location()).Add(offset)

			_, outcome, err := l.Record(ctx, e, at)
			if err != nil {
				return res, err
			}
			if outcome == Recorded {
				res.Recorded++
			} else {
				res.Skipped++
			}
		}
	}
	l.logger.Info("ledger seeded", "end", opts.End, "dates", res.Dates, "recorded", res.Recorded, "skipped", res.Skipped)
	return res, nil
}
