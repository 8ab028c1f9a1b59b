package ranker

import (
	"time"

	"github.com/openkat/scheduler/internal/models"
)

// BoefjeRanker implements spec.md's boefje priority formula: higher scan
// levels (more intrusive OOIs) rank sooner, and an OOI last modified longer
// ago ranks later, by one point per day of age, capped at 30 days, so
// recently modified OOIs come first.
type BoefjeRanker struct{}

const (
	maxAgeCreditDays = 30
	baselinePriority = 100
	scanLevelWeight  = 10
)

// RankBoefje returns 100 − 10*scan_level + clamp(age_days, 0, 30).
func (BoefjeRanker) RankBoefje(ooi models.OOI, _ models.Plugin, now time.Time) int {
	ageDays := int(now.Sub(ooi.ModifiedAt).Hours() / 24)
	return baselinePriority - scanLevelWeight*ooi.ScanProfile.Level + clamp(ageDays, 0, maxAgeCreditDays)
}
