// Package ranker computes scheduling priorities for tasks. Rankers are pure
// functions of their input: no I/O, no shared state, so they can be called
// from any goroutine without synchronization.
package ranker

import (
	"time"

	"github.com/openkat/scheduler/internal/models"
)

// BoefjeRankerFunc and NormalizerRankerFunc assign an integer priority to a
// task before it enters a queue. Lower values are scheduled sooner, matching
// the min-heap ordering in internal/queue. They are kept as separate
// interfaces rather than one Ranker with two methods because a boefje task
// and a normalizer task carry unrelated inputs.
type BoefjeRankerFunc interface {
	RankBoefje(ooi models.OOI, boefje models.Plugin, now time.Time) int
}

type NormalizerRankerFunc interface {
	RankNormalizer(raw models.RawDataRef, normalizer models.Plugin, now time.Time) int
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
