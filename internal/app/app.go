// Package app hosts the Supervisor: the process-level coordinator that
// discovers organisations and keeps one boefje+normalizer scheduler pair
// running per organisation.
package app

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/openkat/scheduler/internal/dispatcher"
	"github.com/openkat/scheduler/internal/listener"
	"github.com/openkat/scheduler/internal/models"
	"github.com/openkat/scheduler/internal/scheduler"
	"github.com/openkat/scheduler/internal/services"
)

const reconcileInterval = time.Hour

// schedulerPair is every running goroutine-owning thing for one
// organisation.
type schedulerPair struct {
	boefje     *scheduler.BoefjeScheduler
	normalizer *scheduler.NormalizerScheduler
}

func (p *schedulerPair) stop() {
	p.boefje.Stop()
	p.normalizer.Stop()
}

// Dependencies bundles every collaborator the Supervisor wires into new
// scheduler pairs. It replaces a global "app context" object with an
// explicit, passed-in struct.
type Dependencies struct {
	Inventory  *services.InventoryClient
	Catalogue  *services.CatalogueClient
	RawData    *services.BytesClient
	Events     *listener.Bus
	Broker     dispatcher.Broker

	QueueMaxsize      int
	DispatchThreshold int
	GracePeriod       time.Duration
	RandomFillN       int
}

// Supervisor discovers organisations at startup, creates a scheduler pair
// for each, and periodically reconciles the running set against the
// inventory's current organisation list.
type Supervisor struct {
	deps Dependencies

	mu    sync.Mutex
	pairs map[string]*schedulerPair

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(deps Dependencies) *Supervisor {
	return &Supervisor{
		deps:  deps,
		pairs: make(map[string]*schedulerPair),
	}
}

// Run discovers organisations, starts a scheduler pair for each, and starts
// the hourly reconciliation loop in a goroutine that runs until ctx is
// cancelled or Stop is called. It returns without waiting for that loop.
func (s *Supervisor) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	orgs, err := s.deps.Inventory.Organisations(ctx)
	if err != nil {
		return err
	}
	for _, org := range orgs {
		s.startPair(ctx, org)
	}

	s.wg.Add(1)
	go s.reconcileLoop(ctx)
	return nil
}

// Stop cancels the reconciliation loop and every running scheduler pair.
func (s *Supervisor) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, pair := range s.pairs {
		pair.stop()
	}
}

func (s *Supervisor) reconcileLoop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(reconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.reconcile(ctx)
		}
	}
}

// reconcile fetches the current organisation list and diffs it against the
// running set. additions = desired − current get new scheduler pairs;
// removals = current − desired are stopped and discarded.
//
// The original implementation swapped these two set differences; this is
// the corrected direction.
func (s *Supervisor) reconcile(ctx context.Context) {
	desired, err := s.deps.Inventory.Organisations(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("organisation discovery failed, skipping reconciliation")
		return
	}
	desiredByID := make(map[string]models.Organisation, len(desired))
	for _, org := range desired {
		desiredByID[org.ID] = org
	}

	s.mu.Lock()
	var removals []string
	for id := range s.pairs {
		if _, ok := desiredByID[id]; !ok {
			removals = append(removals, id)
		}
	}
	var additions []models.Organisation
	for id, org := range desiredByID {
		if _, ok := s.pairs[id]; !ok {
			additions = append(additions, org)
		}
	}
	s.mu.Unlock()

	for _, id := range removals {
		s.stopPair(id)
	}
	for _, org := range additions {
		s.startPair(ctx, org)
	}
}

// startPair always creates both a boefje and a normalizer scheduler for org:
// the two are never created independently.
func (s *Supervisor) startPair(ctx context.Context, org models.Organisation) {
	boefje := scheduler.NewBoefjeScheduler(org, s.deps.QueueMaxsize, s.deps.Broker, s.deps.DispatchThreshold,
		s.deps.Events, s.deps.Catalogue, s.deps.Inventory, s.deps.RawData, s.deps.GracePeriod, s.deps.RandomFillN)
	normalizer := scheduler.NewNormalizerScheduler(org, s.deps.QueueMaxsize, s.deps.Broker, s.deps.DispatchThreshold,
		s.deps.Events, s.deps.Catalogue)

	if err := boefje.Run(ctx); err != nil {
		log.Error().Str("organisation", org.ID).Err(err).Msg("boefje scheduler failed to start")
		return
	}
	if err := normalizer.Run(ctx); err != nil {
		log.Error().Str("organisation", org.ID).Err(err).Msg("normalizer scheduler failed to start")
		boefje.Stop()
		return
	}

	s.mu.Lock()
	s.pairs[org.ID] = &schedulerPair{boefje: boefje, normalizer: normalizer}
	s.mu.Unlock()

	log.Info().Str("organisation", org.ID).Msg("scheduler pair started")
}

func (s *Supervisor) stopPair(orgID string) {
	s.mu.Lock()
	pair, ok := s.pairs[orgID]
	delete(s.pairs, orgID)
	s.mu.Unlock()

	if !ok {
		return
	}
	pair.stop()
	log.Info().Str("organisation", orgID).Msg("scheduler pair stopped")
}

// Organisations returns the IDs of every organisation with a running
// scheduler pair, for the admin HTTP surface.
func (s *Supervisor) Organisations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.pairs))
	for id := range s.pairs {
		ids = append(ids, id)
	}
	return ids
}

// Pair returns the boefje and normalizer schedulers running for orgID; ok is
// false if no pair is running for it.
func (s *Supervisor) Pair(orgID string) (*scheduler.BoefjeScheduler, *scheduler.NormalizerScheduler, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pair, ok := s.pairs[orgID]
	if !ok {
		return nil, nil, false
	}
	return pair.boefje, pair.normalizer, true
}
