package scheduler

import (
	"sync"

	"github.com/openkat/scheduler/internal/models"
)

// StatusTracker records each task's last-known lifecycle status
// (Pending -> Queued -> Dispatched -> Completed/Failed) in memory, for the
// admin surface's GET /queues/{id} introspection. It is never persisted and
// starts empty again after every restart.
//
// "Completed" and "Failed" here describe handoff to the worker fabric, not
// the remote job's outcome: the scheduler has no channel back from workers
// once a task is submitted, so those two states mean "submitted
// successfully" and "dropped after exhausting retries," respectively.
type StatusTracker struct {
	mu       sync.Mutex
	statuses map[string]models.TaskStatus
}

// NewStatusTracker returns an empty tracker.
func NewStatusTracker() *StatusTracker {
	return &StatusTracker{statuses: make(map[string]models.TaskStatus)}
}

// Set records status for taskID, overwriting whatever was there before.
func (t *StatusTracker) Set(taskID string, status models.TaskStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.statuses[taskID] = status
}

// Get returns taskID's last recorded status. ok is false for an id the
// tracker has never recorded; a task that was created but whose push failed
// stays recorded as TaskStatusPending.
func (t *StatusTracker) Get(taskID string) (status models.TaskStatus, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	status, ok = t.statuses[taskID]
	return status, ok
}

// Snapshot returns a copy of every tracked task id and its current status.
func (t *StatusTracker) Snapshot() map[string]models.TaskStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]models.TaskStatus, len(t.statuses))
	for k, v := range t.statuses {
		out[k] = v
	}
	return out
}
