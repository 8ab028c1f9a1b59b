package ranker

import (
	"time"

	"github.com/openkat/scheduler/internal/models"
)

// NormalizerRanker gives every normalizer task the same priority: raw data
// is processed roughly in arrival order, since normalizers don't compete for
// an intrusiveness budget the way boefjes do against a target.
type NormalizerRanker struct{}

// RankNormalizer always returns the baseline priority.
func (NormalizerRanker) RankNormalizer(models.RawDataRef, models.Plugin, time.Time) int {
	return baselinePriority
}
