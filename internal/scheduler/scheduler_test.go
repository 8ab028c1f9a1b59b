package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openkat/scheduler/internal/dispatcher"
	"github.com/openkat/scheduler/internal/models"
)

type fakeBroker struct {
	submitted []dispatcher.Envelope
}

func (f *fakeBroker) Submit(_ context.Context, e dispatcher.Envelope) error {
	f.submitted = append(f.submitted, e)
	return nil
}

type fakeEventBus struct {
	ooiCh chan models.OOI
	rawCh chan models.RawDataRef
}

func newFakeEventBus() *fakeEventBus {
	return &fakeEventBus{ooiCh: make(chan models.OOI, 10), rawCh: make(chan models.RawDataRef, 10)}
}

func (b *fakeEventBus) ScanProfileChanges(context.Context) <-chan models.OOI       { return b.ooiCh }
func (b *fakeEventBus) RawDataReady(context.Context) <-chan models.RawDataRef     { return b.rawCh }

type fakeCatalogue struct {
	boefjes     []models.Plugin
	normalizers []models.Plugin
}

func (c *fakeCatalogue) BoefjesConsuming(_ context.Context, _ string, ooiType string, scanLevel int) ([]models.Plugin, error) {
	var out []models.Plugin
	for _, b := range c.boefjes {
		if b.ScanLevel <= scanLevel && b.ConsumesOOIType(ooiType) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (c *fakeCatalogue) NormalizersConsuming(_ context.Context, _ string, mimeTypes []string) ([]models.Plugin, error) {
	var out []models.Plugin
	for _, n := range c.normalizers {
		if n.ConsumesMimeType(mimeTypes) {
			out = append(out, n)
		}
	}
	return out, nil
}

type fakeInventory struct{}

func (fakeInventory) RecentlyModifiedOOIs(context.Context, string, time.Time) ([]models.OOI, error) {
	return nil, nil
}

func (fakeInventory) RandomOOIs(context.Context, string, int) ([]models.OOI, error) {
	return nil, nil
}

type fakeHistory struct {
	meta *models.BoefjeMeta
	err  error
}

func (h fakeHistory) LatestBoefjeMeta(context.Context, string, string) (*models.BoefjeMeta, error) {
	return h.meta, h.err
}

// TestBoefjeSchedulerEventDrivenPopulatesQueue is scenario S1: a scan-profile
// change event for an OOI produces a queued task for every eligible boefje.
func TestBoefjeSchedulerEventDrivenPopulatesQueue(t *testing.T) {
	org := models.Organisation{ID: "org-1"}
	events := newFakeEventBus()
	catalogue := &fakeCatalogue{boefjes: []models.Plugin{
		{ID: "nmap", Type: models.PluginTypeBoefje, Enabled: true, ScanLevel: 1, Consumes: []string{"Hostname"}},
	}}
	history := fakeHistory{}

	s := NewBoefjeScheduler(org, 10, &fakeBroker{}, 1000, events, catalogue, fakeInventory{}, history, time.Hour, 5)
	require.NoError(t, s.Run(context.Background()))
	defer s.Stop()

	events.ooiCh <- models.OOI{
		PrimaryKey:  "Hostname|example.com",
		ObjectType:  "Hostname",
		ScanProfile: models.ScanProfile{Level: 2},
		ModifiedAt:  time.Now(),
	}

	require.Eventually(t, func() bool { return s.Queue.Len() == 1 }, time.Second, 5*time.Millisecond)
}

// TestBoefjeSchedulerSetsHintAndTracksQueuedStatus covers the admin
// introspection surface: a task's Hint comes from the input OOI's
// ScanProfile.Reference, and its status moves from Pending to Queued as soon
// as it lands in the queue.
func TestBoefjeSchedulerSetsHintAndTracksQueuedStatus(t *testing.T) {
	org := models.Organisation{ID: "org-1"}
	events := newFakeEventBus()
	catalogue := &fakeCatalogue{boefjes: []models.Plugin{
		{ID: "nmap", Type: models.PluginTypeBoefje, Enabled: true, ScanLevel: 1, Consumes: []string{"Hostname"}},
	}}

	s := NewBoefjeScheduler(org, 10, &fakeBroker{}, 1000, events, catalogue, fakeInventory{}, fakeHistory{}, time.Hour, 5)
	require.NoError(t, s.Run(context.Background()))
	defer s.Stop()

	events.ooiCh <- models.OOI{
		PrimaryKey:  "Hostname|example.com",
		ObjectType:  "Hostname",
		ScanProfile: models.ScanProfile{Level: 2, Reference: "declaration/abc123"},
		ModifiedAt:  time.Now(),
	}

	require.Eventually(t, func() bool { return s.Queue.Len() == 1 }, time.Second, 5*time.Millisecond)

	items := s.Queue.Snapshot()
	require.Len(t, items, 1)
	assert.Equal(t, "declaration/abc123", items[0].Item.Hint)

	status, ok := s.Status.Get(items[0].Item.ID)
	require.True(t, ok)
	assert.Equal(t, models.TaskStatusQueued, status)
}

// TestBoefjeSchedulerSkipsDisabledOrOverScopedPlugins is scenario S2: a
// disabled boefje or one whose scan level exceeds the OOI's never gets
// scheduled, regardless of how many times the OOI is considered.
func TestBoefjeSchedulerSkipsDisabledOrOverScopedPlugins(t *testing.T) {
	org := models.Organisation{ID: "org-1"}
	events := newFakeEventBus()
	catalogue := &fakeCatalogue{boefjes: []models.Plugin{
		{ID: "disabled", Type: models.PluginTypeBoefje, Enabled: false, ScanLevel: 0, Consumes: []string{"Hostname"}},
		{ID: "too-deep", Type: models.PluginTypeBoefje, Enabled: true, ScanLevel: 4, Consumes: []string{"Hostname"}},
	}}

	s := NewBoefjeScheduler(org, 10, &fakeBroker{}, 1000, events, catalogue, fakeInventory{}, fakeHistory{}, time.Hour, 5)
	require.NoError(t, s.Run(context.Background()))
	defer s.Stop()

	events.ooiCh <- models.OOI{PrimaryKey: "a", ObjectType: "Hostname", ScanProfile: models.ScanProfile{Level: 1}, ModifiedAt: time.Now()}

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, s.Queue.Len())
}

// TestBoefjeSchedulerRespectsGracePeriod is scenario S3: a boefje that ran
// recently against an OOI is not rescheduled until the grace period elapses.
func TestBoefjeSchedulerRespectsGracePeriod(t *testing.T) {
	org := models.Organisation{ID: "org-1"}
	events := newFakeEventBus()
	catalogue := &fakeCatalogue{boefjes: []models.Plugin{
		{ID: "nmap", Type: models.PluginTypeBoefje, Enabled: true, ScanLevel: 0, Consumes: []string{"Hostname"}},
	}}
	recentEnd := time.Now().Add(-time.Minute)
	history := fakeHistory{meta: &models.BoefjeMeta{EndedAt: &recentEnd}}

	s := NewBoefjeScheduler(org, 10, &fakeBroker{}, 1000, events, catalogue, fakeInventory{}, history, time.Hour, 5)
	require.NoError(t, s.Run(context.Background()))
	defer s.Stop()

	events.ooiCh <- models.OOI{PrimaryKey: "a", ObjectType: "Hostname", ScanProfile: models.ScanProfile{Level: 0}, ModifiedAt: time.Now()}

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, s.Queue.Len())
}

// TestBoefjeSchedulerSkipsCandidateOnHistoryServiceError covers spec.md §7's
// "Service Unreachable during a populate tick -> abandon this tick" policy:
// a run-history lookup failure must fail the grace-period gate closed, never
// schedule the candidate, and not take down the scheduler.
func TestBoefjeSchedulerSkipsCandidateOnHistoryServiceError(t *testing.T) {
	org := models.Organisation{ID: "org-1"}
	events := newFakeEventBus()
	catalogue := &fakeCatalogue{boefjes: []models.Plugin{
		{ID: "nmap", Type: models.PluginTypeBoefje, Enabled: true, ScanLevel: 0, Consumes: []string{"Hostname"}},
	}}
	history := fakeHistory{err: errors.New("raw data service unreachable")}

	s := NewBoefjeScheduler(org, 10, &fakeBroker{}, 1000, events, catalogue, fakeInventory{}, history, time.Hour, 5)
	require.NoError(t, s.Run(context.Background()))
	defer s.Stop()

	events.ooiCh <- models.OOI{PrimaryKey: "a", ObjectType: "Hostname", ScanProfile: models.ScanProfile{Level: 0}, ModifiedAt: time.Now()}

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, s.Queue.Len())
}

// TestNormalizerSchedulerFansOutToMatchingNormalizers is scenario S4: a
// raw-data-ready event produces one task per normalizer matching any of its
// mime types.
func TestNormalizerSchedulerFansOutToMatchingNormalizers(t *testing.T) {
	org := models.Organisation{ID: "org-1"}
	events := newFakeEventBus()
	catalogue := &fakeCatalogue{normalizers: []models.Plugin{
		{ID: "json-norm", Type: models.PluginTypeNormalizer, Enabled: true, Consumes: []string{"application/json"}},
		{ID: "xml-norm", Type: models.PluginTypeNormalizer, Enabled: true, Consumes: []string{"application/xml"}},
	}}

	s := NewNormalizerScheduler(org, 10, &fakeBroker{}, 1000, events, catalogue)
	require.NoError(t, s.Run(context.Background()))
	defer s.Stop()

	events.rawCh <- models.RawDataRef{ID: "raw-1", MimeTypes: []string{"application/json"}}

	require.Eventually(t, func() bool { return s.Queue.Len() == 1 }, time.Second, 5*time.Millisecond)
}

func TestBaseRunRejectsDoubleStart(t *testing.T) {
	org := models.Organisation{ID: "org-1"}
	events := newFakeEventBus()
	s := NewBoefjeScheduler(org, 10, &fakeBroker{}, 1000, events, &fakeCatalogue{}, fakeInventory{}, fakeHistory{}, time.Hour, 5)

	require.NoError(t, s.Run(context.Background()))
	defer s.Stop()

	assert.Error(t, s.Run(context.Background()))
}
