package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openkat/scheduler/internal/models"
)

type fakeQueue struct {
	mu    sync.Mutex
	items []string
}

func (q *fakeQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *fakeQueue) Pop(time.Duration) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return "", errors.New("empty")
	}
	item := q.items[0]
	q.items = q.items[1:]
	return item, nil
}

type fakeBroker struct {
	failUntil   int32
	attempts    int32
	submissions []Envelope
	mu          sync.Mutex
}

func (b *fakeBroker) Submit(_ context.Context, envelope Envelope) error {
	n := atomic.AddInt32(&b.attempts, 1)
	if n <= atomic.LoadInt32(&b.failUntil) {
		return errors.New("simulated failure")
	}
	b.mu.Lock()
	b.submissions = append(b.submissions, envelope)
	b.mu.Unlock()
	return nil
}

func toTask(item string) (string, string, string, any) {
	return "handle", "boefjes", item, map[string]string{"item": item}
}

// TestStepRespectsThreshold is scenario S8: the dispatcher does not drain
// below the configured backlog threshold.
func TestStepRespectsThreshold(t *testing.T) {
	q := &fakeQueue{items: []string{"a"}}
	broker := &fakeBroker{}
	d := New("boefje", q, broker, 2, toTask)

	d.Step(context.Background())

	assert.Equal(t, 1, q.Len())
	assert.Empty(t, broker.submissions)
}

func TestStepDrainsAtThreshold(t *testing.T) {
	q := &fakeQueue{items: []string{"a", "b"}}
	broker := &fakeBroker{}
	d := New("boefje", q, broker, 2, toTask)

	d.Step(context.Background())

	assert.Equal(t, 0, q.Len())
	assert.Len(t, broker.submissions, 2)
}

func TestDispatchRetriesBeforeDropping(t *testing.T) {
	q := &fakeQueue{items: []string{"a"}}
	broker := &fakeBroker{failUntil: 2}
	d := New("boefje", q, broker, 1, toTask)
	d.retryDelays = []time.Duration{time.Millisecond, time.Millisecond, time.Millisecond}

	d.Step(context.Background())

	require.Len(t, broker.submissions, 1)
	assert.Equal(t, int32(3), broker.attempts)
}

// TestDispatchEnvelopeMatchesWorkerFabricProtocol is scenario S8: the
// submitted envelope must carry the task's own id, the named remote queue,
// and args wrapped in a one-element array, per spec.md §6.2.
func TestDispatchEnvelopeMatchesWorkerFabricProtocol(t *testing.T) {
	q := &fakeQueue{items: []string{"task-123"}}
	broker := &fakeBroker{}
	toBoefjeTask := func(item string) (string, string, string, any) {
		return "tasks.handle_boefje", "boefjes", item, map[string]string{"id": item}
	}
	d := New("boefje:org-1", q, broker, 1, toBoefjeTask)

	d.Step(context.Background())

	require.Len(t, broker.submissions, 1)
	envelope := broker.submissions[0]
	assert.Equal(t, "tasks.handle_boefje", envelope.Name)
	assert.Equal(t, "boefjes", envelope.Queue)
	assert.Equal(t, "task-123", envelope.TaskID)

	var args []map[string]string
	require.NoError(t, json.Unmarshal(envelope.Args, &args))
	require.Len(t, args, 1)
	assert.Equal(t, "task-123", args[0]["id"])
}

// TestDispatchReportsCompletedStatusOnSuccess checks that OnStatus, when
// set, sees Dispatched before the submit attempt and Completed once it
// succeeds, for the admin surface's task-status introspection.
func TestDispatchReportsCompletedStatusOnSuccess(t *testing.T) {
	q := &fakeQueue{items: []string{"task-1"}}
	broker := &fakeBroker{}
	d := New("boefje", q, broker, 1, toTask)

	var mu sync.Mutex
	var seen []models.TaskStatus
	d.OnStatus = func(_ string, status models.TaskStatus) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, status)
	}

	d.Step(context.Background())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []models.TaskStatus{models.TaskStatusDispatched, models.TaskStatusCompleted}, seen)
}

// TestDispatchReportsFailedStatusAfterExhaustingRetries checks the Failed
// transition fires once a task is dropped for good.
func TestDispatchReportsFailedStatusAfterExhaustingRetries(t *testing.T) {
	q := &fakeQueue{items: []string{"task-1"}}
	broker := &fakeBroker{failUntil: 100}
	d := New("boefje", q, broker, 1, toTask)
	d.retryDelays = []time.Duration{time.Millisecond, time.Millisecond}

	var mu sync.Mutex
	var seen []models.TaskStatus
	d.OnStatus = func(_ string, status models.TaskStatus) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, status)
	}

	d.Step(context.Background())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []models.TaskStatus{models.TaskStatusDispatched, models.TaskStatusFailed}, seen)
}

func TestDispatchDropsAfterExhaustingRetries(t *testing.T) {
	q := &fakeQueue{items: []string{"a"}}
	broker := &fakeBroker{failUntil: 100}
	d := New("boefje", q, broker, 1, toTask)
	d.retryDelays = []time.Duration{time.Millisecond, time.Millisecond}

	d.Step(context.Background())

	assert.Empty(t, broker.submissions)
	assert.Equal(t, int32(3), broker.attempts)
}
