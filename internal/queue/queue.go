// Package queue implements the bounded, thread-safe, lazily-deleting
// min-priority queue described in spec.md §4.1. It is generic over any item
// type that can report a stable identity string, so the same implementation
// backs both the boefje and the normalizer scheduler.
package queue

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/openkat/scheduler/internal/apperrors"
)

// Item is anything the queue can carry: it must expose a stable identity so
// the queue can deduplicate pushes of the "same" logical task.
type Item interface {
	Identity() string
}

// entryState distinguishes live entries from ones superseded by a later push
// or an explicit Remove; lazy deletion skips the latter on Pop instead of
// restructuring the heap.
type entryState int

const (
	stateAdded entryState = iota
	stateRemoved
)

// entry is the internal heap element. seq breaks priority ties FIFO.
type entry[T Item] struct {
	priority int
	seq      uint64
	item     T
	state    entryState
	index    int // position in the heap slice, maintained by container/heap
}

// innerHeap implements container/heap.Interface over entries ordered by
// (priority, seq).
type innerHeap[T Item] []*entry[T]

func (h innerHeap[T]) Len() int { return len(h) }

func (h innerHeap[T]) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority < h[j].priority
	}
	return h[i].seq < h[j].seq
}

func (h innerHeap[T]) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *innerHeap[T]) Push(x any) {
	e := x.(*entry[T])
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *innerHeap[T]) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// PriorityQueue is a bounded min-heap keyed by item identity, with in-place
// priority updates and lazy deletion.
type PriorityQueue[T Item] struct {
	mu      sync.Mutex
	cond    *sync.Cond
	h       innerHeap[T]
	index   map[string]*entry[T]
	maxsize int
	nextSeq uint64

	// AllowPriorityUpdates gates whether a second Push of an already-indexed
	// identity at a different priority is accepted (Update) or rejected with
	// ErrNotAllowed.
	AllowPriorityUpdates bool
}

// New creates a PriorityQueue bounded at maxsize, with priority updates
// allowed by default (the common case — see BoefjeScheduler/NormalizerScheduler).
func New[T Item](maxsize int) *PriorityQueue[T] {
	pq := &PriorityQueue[T]{
		h:                    make(innerHeap[T], 0),
		index:                make(map[string]*entry[T]),
		maxsize:              maxsize,
		AllowPriorityUpdates: true,
	}
	pq.cond = sync.NewCond(&pq.mu)
	return pq
}

// Push inserts item at priority p. It is idempotent: pushing the same
// identity at the same priority is a silent no-op. Pushing the
// same identity at a different priority supersedes the old entry if
// AllowPriorityUpdates is true, otherwise it fails with ErrNotAllowed.
func (pq *PriorityQueue[T]) Push(priority int, item T) error {
	id := item.Identity()
	if id == "" {
		return apperrors.ErrInvalidItem
	}

	pq.mu.Lock()
	defer pq.mu.Unlock()

	if existing, ok := pq.index[id]; ok {
		if existing.priority == priority {
			return nil // idempotent: identical (priority, item) already live
		}
		if !pq.AllowPriorityUpdates {
			return apperrors.ErrNotAllowed
		}
		existing.state = stateRemoved
		delete(pq.index, id)
		// Fall through to insert the fresh entry below; logical size is
		// unchanged since the old ADDED entry is replaced by the new one.
	} else if pq.logicalLen() >= pq.maxsize {
		return apperrors.ErrQueueFull
	}

	e := &entry[T]{priority: priority, seq: pq.nextSeq, item: item, state: stateAdded}
	pq.nextSeq++
	heap.Push(&pq.h, e)
	pq.index[id] = e
	pq.cond.Broadcast()
	return nil
}

// Update is an alias for Push with AllowPriorityUpdates forced on for this
// one call, matching spec.md's "update(p_item): equivalent to push with a
// policy flag allow_priority_updates=true".
func (pq *PriorityQueue[T]) Update(priority int, item T) error {
	pq.mu.Lock()
	prior := pq.AllowPriorityUpdates
	pq.AllowPriorityUpdates = true
	pq.mu.Unlock()
	err := pq.Push(priority, item)
	pq.mu.Lock()
	pq.AllowPriorityUpdates = prior
	pq.mu.Unlock()
	return err
}

// Pop blocks until an item is available or timeout elapses, returning
// ErrQueueEmpty on timeout. REMOVED entries are discarded as they surface.
func (pq *PriorityQueue[T]) Pop(timeout time.Duration) (T, error) {
	var zero T
	deadline := time.Now().Add(timeout)

	pq.mu.Lock()
	defer pq.mu.Unlock()

	for {
		for pq.h.Len() > 0 {
			top := pq.h[0]
			if top.state == stateRemoved {
				heap.Pop(&pq.h)
				continue
			}
			heap.Pop(&pq.h)
			delete(pq.index, top.item.Identity())
			return top.item, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return zero, apperrors.ErrQueueEmpty
		}
		waited := waitWithTimeout(pq.cond, remaining)
		if !waited {
			return zero, apperrors.ErrQueueEmpty
		}
	}
}

// TryPop is the non-blocking variant of Pop: it returns ErrQueueEmpty
// immediately instead of waiting.
func (pq *PriorityQueue[T]) TryPop() (T, error) {
	return pq.Pop(0)
}

// Peek returns the item at heap position idx without mutating the queue.
// Peek(0) is "highest-priority live item, skipping leading REMOVED entries
// lazily" per spec.md §4.1 — it does not physically remove skipped entries.
func (pq *PriorityQueue[T]) Peek(idx int) (T, bool) {
	var zero T
	pq.mu.Lock()
	defer pq.mu.Unlock()

	if idx != 0 {
		if idx < 0 || idx >= pq.h.Len() {
			return zero, false
		}
		return pq.h[idx].item, pq.h[idx].state == stateAdded
	}

	// container/heap guarantees h[0] holds the true min whenever it is live;
	// a REMOVED h[0] means the logical min was superseded, so scan for the
	// smallest surviving entry instead of physically popping anything.
	var best *entry[T]
	for _, e := range pq.h {
		if e.state != stateAdded {
			continue
		}
		if best == nil || e.priority < best.priority || (e.priority == best.priority && e.seq < best.seq) {
			best = e
		}
	}
	if best == nil {
		return zero, false
	}
	return best.item, true
}

// Remove marks the indexed entry for id as REMOVED without restructuring the
// heap; it is skipped lazily on the next Pop that reaches it.
func (pq *PriorityQueue[T]) Remove(item T) {
	pq.mu.Lock()
	defer pq.mu.Unlock()
	id := item.Identity()
	if e, ok := pq.index[id]; ok {
		e.state = stateRemoved
		delete(pq.index, id)
	}
}

// Len returns the logical size: ADDED entries only").
func (pq *PriorityQueue[T]) Len() int {
	pq.mu.Lock()
	defer pq.mu.Unlock()
	return pq.logicalLen()
}

func (pq *PriorityQueue[T]) logicalLen() int { return len(pq.index) }

// Empty reports whether the logical size is zero.
func (pq *PriorityQueue[T]) Empty() bool { return pq.Len() == 0 }

// Maxsize returns the queue's configured capacity.
func (pq *PriorityQueue[T]) Maxsize() int { return pq.maxsize }

// Snapshot returns a priority-ordered copy of the live entries, for the admin
// HTTP surface's QueueView. It does not mutate the queue.
func (pq *PriorityQueue[T]) Snapshot() []PrioritizedItem[T] {
	pq.mu.Lock()
	defer pq.mu.Unlock()

	out := make([]PrioritizedItem[T], 0, len(pq.index))
	cp := make(innerHeap[T], 0, pq.h.Len())
	for _, e := range pq.h {
		if e.state == stateAdded {
			cp = append(cp, e)
		}
	}
	heap.Init(&cp)
	for cp.Len() > 0 {
		e := heap.Pop(&cp).(*entry[T])
		out = append(out, PrioritizedItem[T]{Priority: e.priority, Item: e.item})
	}
	return out
}

// PrioritizedItem is the (priority, item) pair exposed outside the package
//, e.g. to the dispatcher and the admin surface.
type PrioritizedItem[T Item] struct {
	Priority int `json:"priority"`
	Item     T   `json:"item"`
}

// waitWithTimeout waits on cond for up to d, returning false if the timeout
// elapsed first. It must be called with cond.L held.
func waitWithTimeout(cond *sync.Cond, d time.Duration) bool {
	done := make(chan struct{})
	timer := time.AfterFunc(d, func() {
		cond.L.Lock()
		close(done)
		cond.Broadcast()
		cond.L.Unlock()
	})
	defer timer.Stop()

	select {
	case <-done:
		return false
	default:
	}

	cond.Wait()

	select {
	case <-done:
		return false
	default:
		return true
	}
}

// PopContext runs Pop(timeout) and also returns early with ctx.Err() when
// ctx is cancelled first.
func (pq *PriorityQueue[T]) PopContext(ctx context.Context, timeout time.Duration) (T, error) {
	type result struct {
		item T
		err  error
	}
	resCh := make(chan result, 1)
	go func() {
		item, err := pq.Pop(timeout)
		resCh <- result{item, err}
	}()

	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case r := <-resCh:
		return r.item, r.err
	}
}
