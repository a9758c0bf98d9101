package ledger

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"
)

// Checkout jitter bounds in minutes, inclusive.
const (
	JitterMin = -20
	JitterMax = 40
)

// Estimator derives a checkout time from a checkin and the host's expected hours.
type Estimator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewEstimator returns an Estimator drawing from rng. A nil rng uses a randomly seeded source.
func NewEstimator(rng *rand.Rand) *Estimator {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Estimator{rng: rng}
}

// Estimate returns checkin plus expectedHours*60 minutes plus a jitter drawn from [JitterMin, JitterMax].
func (e *Estimator) Estimate(checkin time.Time, expectedHours float64) time.Time {
	e.mu.Lock()
	jitter := JitterMin + e.rng.IntN(JitterMax-JitterMin+1)
	e.mu.Unlock()

	total := ExpectedMinutes(expectedHours) + jitter
	hours, minutes := floorDiv(total, 60)
	return checkin.Add(time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute)
}

// ExpectedMinutes converts expected hours to whole minutes.
func ExpectedMinutes(expectedHours float64) int {
	return int(math.Round(expectedHours * 60))
}

// floorDiv splits n into quotient and a non-negative remainder.
func floorDiv(n, d int) (int, int) {
	q, r := n/d, n%d
	if r < 0 {
		q--
		r += d
	}
	return q, r
}
