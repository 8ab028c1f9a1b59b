package queue

import (
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openkat/scheduler/internal/apperrors"
)

type testItem struct {
	ID       string
	Priority int
}

func (t testItem) Identity() string { return t.ID }

// TestPushDeduplicatesIdentity is property P1: pushing the same identity at
// the same priority twice leaves the queue's logical length unchanged.
func TestPushDeduplicatesIdentity(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("duplicate push is a no-op", prop.ForAll(
		func(id string, priority int) bool {
			pq := New[testItem](100)
			item := testItem{ID: id, Priority: priority}
			_ = pq.Push(priority, item)
			before := pq.Len()
			_ = pq.Push(priority, item)
			return pq.Len() == before && before == 1
		},
		gen.Identifier(),
		gen.IntRange(0, 1000),
	))

	properties.TestingRun(t)
}

// TestPopOrdersByPriority is property P2: items always pop in non-decreasing
// priority order regardless of push order.
func TestPopOrdersByPriority(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("pop returns items in priority order", prop.ForAll(
		func(priorities []int) bool {
			pq := New[testItem](len(priorities) + 1)
			for i, p := range priorities {
				_ = pq.Push(p, testItem{ID: fmt.Sprintf("item-%d", i), Priority: p})
			}

			last := -1 << 31
			for i := 0; i < len(priorities); i++ {
				item, err := pq.Pop(time.Millisecond)
				if err != nil {
					return false
				}
				if item.Priority < last {
					return false
				}
				last = item.Priority
			}
			return true
		},
		gen.SliceOf(gen.IntRange(-100, 100)),
	))

	properties.TestingRun(t)
}

// TestQueueRespectsBound is property P3: Push beyond maxsize with distinct
// identities fails with ErrQueueFull, and the logical length never exceeds it.
func TestQueueRespectsBound(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("queue never exceeds maxsize", prop.ForAll(
		func(maxsize int, n int) bool {
			pq := New[testItem](maxsize)
			accepted := 0
			for i := 0; i < n; i++ {
				err := pq.Push(i, testItem{ID: fmt.Sprintf("item-%d", i), Priority: i})
				if err == nil {
					accepted++
				} else if err != apperrors.ErrQueueFull {
					return false
				}
			}
			return accepted <= maxsize && pq.Len() == accepted
		},
		gen.IntRange(1, 20),
		gen.IntRange(0, 50),
	))

	properties.TestingRun(t)
}

// TestPushPopRoundTrip is property P4: every item pushed and not superseded
// or removed comes back out of Pop exactly once.
func TestPushPopRoundTrip(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("every pushed item pops exactly once", prop.ForAll(
		func(ids []string) bool {
			pq := New[testItem](len(ids) + 1)
			seen := map[string]bool{}
			pushed := 0
			for i, id := range ids {
				if seen[id] {
					continue
				}
				seen[id] = true
				pushed++
				_ = pq.Push(i, testItem{ID: id, Priority: i})
			}

			popped := map[string]bool{}
			for i := 0; i < pushed; i++ {
				item, err := pq.Pop(time.Millisecond)
				if err != nil {
					return false
				}
				if popped[item.ID] {
					return false // duplicate pop
				}
				popped[item.ID] = true
			}
			_, err := pq.TryPop()
			return err == apperrors.ErrQueueEmpty && len(popped) == pushed
		},
		gen.SliceOf(gen.Identifier()),
	))

	properties.TestingRun(t)
}

// TestUpdateChangesPriorityWithoutGrowingQueue is property P5: updating an
// already-queued identity at a new priority replaces it in place.
func TestUpdateChangesPriorityWithoutGrowingQueue(t *testing.T) {
	pq := New[testItem](10)
	require.NoError(t, pq.Push(5, testItem{ID: "a", Priority: 5}))
	require.NoError(t, pq.Push(1, testItem{ID: "b", Priority: 1}))
	assert.Equal(t, 2, pq.Len())

	require.NoError(t, pq.Update(0, testItem{ID: "a", Priority: 0}))
	assert.Equal(t, 2, pq.Len())

	first, err := pq.Pop(time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "a", first.ID)
}

func TestPushRejectsUpdateWhenDisallowed(t *testing.T) {
	pq := New[testItem](10)
	pq.AllowPriorityUpdates = false
	require.NoError(t, pq.Push(5, testItem{ID: "a", Priority: 5}))

	err := pq.Push(1, testItem{ID: "a", Priority: 1})
	assert.ErrorIs(t, err, apperrors.ErrNotAllowed)
}

func TestRemoveIsLazy(t *testing.T) {
	pq := New[testItem](10)
	require.NoError(t, pq.Push(1, testItem{ID: "a", Priority: 1}))
	require.NoError(t, pq.Push(2, testItem{ID: "b", Priority: 2}))

	pq.Remove(testItem{ID: "a", Priority: 1})
	assert.Equal(t, 1, pq.Len())

	item, err := pq.Pop(time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "b", item.ID)
}

func TestPopBlocksUntilPush(t *testing.T) {
	pq := New[testItem](10)
	result := make(chan testItem, 1)
	go func() {
		item, err := pq.Pop(time.Second)
		if err == nil {
			result <- item
		}
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, pq.Push(1, testItem{ID: "late", Priority: 1}))

	select {
	case item := <-result:
		assert.Equal(t, "late", item.ID)
	case <-time.After(time.Second):
		t.Fatal("Pop did not unblock after Push")
	}
}

func TestPeekDoesNotMutate(t *testing.T) {
	pq := New[testItem](10)
	require.NoError(t, pq.Push(3, testItem{ID: "a", Priority: 3}))
	require.NoError(t, pq.Push(1, testItem{ID: "b", Priority: 1}))

	item, ok := pq.Peek(0)
	require.True(t, ok)
	assert.Equal(t, "b", item.ID)
	assert.Equal(t, 2, pq.Len())
}

func TestPushRejectsEmptyIdentity(t *testing.T) {
	pq := New[testItem](10)
	err := pq.Push(1, testItem{ID: "", Priority: 1})
	assert.ErrorIs(t, err, apperrors.ErrInvalidItem)
}
