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

// NormalizerEventBus is the subset of internal/listener the normalizer
// scheduler consumes: a stream of raw-data-ready notifications.
type NormalizerEventBus interface {
	RawDataReady(ctx context.Context) <-chan models.RawDataRef
}

// NormalizerCatalogue resolves which normalizers are eligible to consume a
// raw-data blob's mime types.
type NormalizerCatalogue interface {
	NormalizersConsuming(ctx context.Context, orgID string, mimeTypes []string) ([]models.Plugin, error)
}

// NormalizerScheduler populates a queue of NormalizerTasks for one
// organisation by fanning out each raw-data-ready event to every normalizer
// that consumes one of its mime types.
type NormalizerScheduler struct {
	Base

	Queue     *queue.PriorityQueue[models.NormalizerTask]
	Ranker    ranker.NormalizerRankerFunc
	Events    NormalizerEventBus
	Catalogue NormalizerCatalogue
}

// NewNormalizerScheduler wires a scheduler for org, ready to Run.
func NewNormalizerScheduler(org models.Organisation, qmaxsize int, broker dispatcher.Broker, dispatchThreshold int,
	events NormalizerEventBus, catalogue NormalizerCatalogue) *NormalizerScheduler {

	q := queue.New[models.NormalizerTask](qmaxsize)
	s := &NormalizerScheduler{
		Base:      Base{Organisation: org.ID, Status: NewStatusTracker()},
		Queue:     q,
		Ranker:    ranker.NormalizerRanker{},
		Events:    events,
		Catalogue: catalogue,
	}

	d := dispatcher.New("normalizer:"+org.ID, q, broker, dispatchThreshold, normalizerToTask)
	d.OnStatus = s.Status.Set
	s.Base.Dispatcher = d
	s.Base.EventSources = []EventSource{s.consumeRawDataReady}
	return s
}

// normalizerToTask maps a NormalizerTask onto the worker fabric's envelope
// fields per spec.md §6.2: handler "tasks.handle_ooi", remote queue
// "normalizer", and the task's own id as task_id.
func normalizerToTask(task models.NormalizerTask) (name, queue, taskID string, args any) {
	return "tasks.handle_ooi", "normalizer", task.ID, task
}

// consumeRawDataReady runs for the scheduler's lifetime, fanning out each
// raw-data-ready event to every matching normalizer.
func (s *NormalizerScheduler) consumeRawDataReady(ctx context.Context) {
	ch := s.Events.RawDataReady(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-ch:
			if !ok {
				return
			}
			s.considerRawData(ctx, raw)
		}
	}
}

func (s *NormalizerScheduler) considerRawData(ctx context.Context, raw models.RawDataRef) {
	normalizers, err := s.Catalogue.NormalizersConsuming(ctx, s.Organisation, raw.MimeTypes)
	if err != nil {
		log.Warn().Str("organisation", s.Organisation).Err(err).Msg("plugin resolution failed")
		return
	}

	for _, normalizer := range normalizers {
		task := models.NormalizerTask{
			ID:           uuid.NewString(),
			Normalizer:   normalizer,
			RawData:      raw,
			Organization: s.Organisation,
		}
		s.Status.Set(task.ID, models.TaskStatusPending)
		priority := s.Ranker.RankNormalizer(raw, normalizer, time.Now())
		if err := s.Queue.Push(priority, task); err != nil {
			if err != apperrors.ErrQueueFull {
				log.Warn().Str("organisation", s.Organisation).Err(err).Msg("push failed")
			}
			continue
		}
		s.Status.Set(task.ID, models.TaskStatusQueued)
	}
}
