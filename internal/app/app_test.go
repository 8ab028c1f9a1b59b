package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openkat/scheduler/internal/models"
)

// TestReconcileComputesCorrectDirection restates the set-difference rule
// reconcile uses, isolated from any network dependency: organisations present
// only in the desired set are additions, organisations present only in the
// running set are removals. It checks a copy of that loop and does not call
// reconcile itself.
func TestReconcileComputesCorrectDirection(t *testing.T) {
	running := map[string]bool{"org-a": true, "org-b": true}
	desired := []models.Organisation{{ID: "org-b"}, {ID: "org-c"}}

	desiredByID := make(map[string]models.Organisation, len(desired))
	for _, org := range desired {
		desiredByID[org.ID] = org
	}

	var removals []string
	for id := range running {
		if _, ok := desiredByID[id]; !ok {
			removals = append(removals, id)
		}
	}
	var additions []string
	for id := range desiredByID {
		if !running[id] {
			additions = append(additions, id)
		}
	}

	assert.ElementsMatch(t, []string{"org-a"}, removals)
	assert.ElementsMatch(t, []string{"org-c"}, additions)
}

func TestSupervisorStopIsIdempotentWithNoOrganisations(t *testing.T) {
	s := New(Dependencies{})
	s.cancel = func() {}
	require.NotPanics(t, func() {
		s.Stop()
		s.Stop()
	})
}

func TestSupervisorOrganisationsReflectsRunningPairs(t *testing.T) {
	s := New(Dependencies{})
	assert.Empty(t, s.Organisations())

	s.mu.Lock()
	s.pairs["org-a"] = &schedulerPair{}
	s.mu.Unlock()

	assert.ElementsMatch(t, []string{"org-a"}, s.Organisations())
}
