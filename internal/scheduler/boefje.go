package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/openkat/scheduler/internal/apperrors"
	"github.com/openkat/scheduler/internal/dispatcher"
	"github.com/openkat/scheduler/internal/models"
	"github.com/openkat/scheduler/internal/queue"
	"github.com/openkat/scheduler/internal/ranker"
)

// BoefjeEventBus is the subset of internal/listener the boefje scheduler
// consumes: a stream of OOIs whose scan profile just changed.
type BoefjeEventBus interface {
	ScanProfileChanges(ctx context.Context) <-chan models.OOI
}

// BoefjeCatalogue resolves which boefjes are eligible to run against an OOI.
type BoefjeCatalogue interface {
	BoefjesConsuming(ctx context.Context, orgID, ooiType string, scanLevel int) ([]models.Plugin, error)
}

// BoefjeInventory supplies OOIs for the mutation-poll and random-fill
// population sources.
type BoefjeInventory interface {
	RecentlyModifiedOOIs(ctx context.Context, orgID string, since time.Time) ([]models.OOI, error)
	RandomOOIs(ctx context.Context, orgID string, n int) ([]models.OOI, error)
}

// BoefjeRunHistory answers the grace-period gate: has this boefje run
// against this OOI too recently to run again?
type BoefjeRunHistory interface {
	LatestBoefjeMeta(ctx context.Context, boefjeID, inputOOI string) (*models.BoefjeMeta, error)
}

// BoefjeScheduler populates a queue of BoefjeTasks for one organisation from
// three sources: scan-profile-change events, a periodic mutation poll, and
// a random-fill top-up, each gated by plugin resolution, enabled state,
// scan level, and the run-history grace period.
type BoefjeScheduler struct {
	Base

	Queue      *queue.PriorityQueue[models.BoefjeTask]
	Ranker     ranker.BoefjeRankerFunc
	Events     BoefjeEventBus
	Catalogue  BoefjeCatalogue
	Inventory  BoefjeInventory
	History    BoefjeRunHistory

	GracePeriod  time.Duration
	RandomFillN  int
	mutationSince time.Time
}

// NewBoefjeScheduler wires a scheduler for org, ready to Run.
func NewBoefjeScheduler(org models.Organisation, qmaxsize int, broker dispatcher.Broker, dispatchThreshold int,
	events BoefjeEventBus, catalogue BoefjeCatalogue, inventory BoefjeInventory, history BoefjeRunHistory,
	gracePeriod time.Duration, randomFillN int) *BoefjeScheduler {

	q := queue.New[models.BoefjeTask](qmaxsize)
	s := &BoefjeScheduler{
		Base: Base{Organisation: org.ID, Status: NewStatusTracker()},
		Queue: q,
		Ranker: ranker.BoefjeRanker{},
		Events: events,
		Catalogue: catalogue,
		Inventory: inventory,
		History: history,
		GracePeriod: gracePeriod,
		RandomFillN: randomFillN,
	}

	d := dispatcher.New("boefje:"+org.ID, q, broker, dispatchThreshold, boefjeToTask)
	d.OnStatus = s.Status.Set
	s.Base.Dispatcher = d
	s.Base.Sources = []PopulateSource{s.populateFromMutations, s.populateRandomFill}
	s.Base.EventSources = []EventSource{s.consumeScanProfileChanges}
	return s
}

// boefjeToTask maps a BoefjeTask onto the worker fabric's envelope fields
// per spec.md §6.2: handler "tasks.handle_boefje", remote queue "boefjes",
// and the task's own id as task_id.
func boefjeToTask(task models.BoefjeTask) (name, queue, taskID string, args any) {
	return "tasks.handle_boefje", "boefjes", task.ID, task
}

// consumeScanProfileChanges runs for the scheduler's lifetime, pushing one
// candidate task per eligible (OOI, boefje) pair as scan-profile-change
// events arrive, instead of waiting for the next populate tick.
func (s *BoefjeScheduler) consumeScanProfileChanges(ctx context.Context) {
	ch := s.Events.ScanProfileChanges(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case ooi, ok := <-ch:
			if !ok {
				return
			}
			s.considerOOI(ctx, ooi)
		}
	}
}

// populateFromMutations polls the inventory for OOIs modified since the
// last poll.
func (s *BoefjeScheduler) populateFromMutations(ctx context.Context) error {
	since := s.mutationSince
	now := time.Now()
	s.mutationSince = now

	oois, err := s.Inventory.RecentlyModifiedOOIs(ctx, s.Organisation, since)
	if err != nil {
		return err
	}
	for _, ooi := range oois {
		s.considerOOI(ctx, ooi)
	}
	return nil
}

// populateRandomFill tops up the queue with arbitrary OOIs when the queue is
// below capacity, so idle capacity isn't wasted.
func (s *BoefjeScheduler) populateRandomFill(ctx context.Context) error {
	if s.Queue.Len() >= s.Queue.Maxsize() {
		return nil
	}
	oois, err := s.Inventory.RandomOOIs(ctx, s.Organisation, s.RandomFillN)
	if err != nil {
		return err
	}
	for _, ooi := range oois {
		s.considerOOI(ctx, ooi)
	}
	return nil
}

// considerOOI resolves eligible boefjes for ooi and, for each one passing
// the enabled and grace-period gates, ranks and pushes a task.
func (s *BoefjeScheduler) considerOOI(ctx context.Context, ooi models.OOI) {
	boefjes, err := s.Catalogue.BoefjesConsuming(ctx, s.Organisation, ooi.ObjectType, ooi.ScanProfile.Level)
	if err != nil {
		log.Warn().Str("organisation", s.Organisation).Err(err).Msg("plugin resolution failed")
		return
	}

	for _, boefje := range boefjes {
		if !boefje.Enabled {
			continue
		}
		if !s.passesGracePeriod(ctx, boefje.ID, ooi.PrimaryKey) {
			continue
		}
		task := models.BoefjeTask{
			ID:           uuid.NewString(),
			Boefje:       boefje,
			InputOOI:     ooi.PrimaryKey,
			Organization: s.Organisation,
			Hint:         ooi.ScanProfile.Reference,
		}
		s.Status.Set(task.ID, models.TaskStatusPending)
		priority := s.Ranker.RankBoefje(ooi, boefje, time.Now())
		if err := s.Queue.Push(priority, task); err != nil {
			if err != apperrors.ErrQueueFull {
				log.Warn().Str("organisation", s.Organisation).Err(err).Msg("push failed")
			}
			continue
		}
		s.Status.Set(task.ID, models.TaskStatusQueued)
	}
}

func (s *BoefjeScheduler) passesGracePeriod(ctx context.Context, boefjeID, inputOOI string) bool {
	meta, err := s.History.LatestBoefjeMeta(ctx, boefjeID, inputOOI)
	if err != nil {
		log.Warn().Str("organisation", s.Organisation).Err(err).Msg("run history lookup failed, skipping candidate")
		return false // fail closed: an unreachable history service must not risk a grace-period violation
	}
	if meta == nil || meta.EndedAt == nil {
		return true
	}
	return time.Since(*meta.EndedAt) >= s.GracePeriod
}
