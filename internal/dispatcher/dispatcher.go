// Package dispatcher drains ready tasks from a queue and hands them to the
// remote worker fabric, retrying transient failures with backoff before
// giving up and dropping the task.
package dispatcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/openkat/scheduler/internal/models"
	"github.com/openkat/scheduler/pkg/observability"
)

// Broker is the remote worker fabric's ingestion point. HTTPBroker is the
// only production implementation; tests substitute a fake.
type Broker interface {
	Submit(ctx context.Context, envelope Envelope) error
}

// Envelope is the canonical wire format described in spec.md §6.2: a task
// handler name, its arguments as a one-element array, one of the two named
// remote queues ("boefjes" or "normalizer"), and the task's own id.
type Envelope struct {
	Name   string          `json:"name"`
	Args   json.RawMessage `json:"args"`
	Queue  string          `json:"queue"`
	TaskID string          `json:"task_id"`
}

// Queue is the subset of internal/queue.PriorityQueue the dispatcher needs:
// popping ready work and reporting backlog size for the threshold gate.
type Queue[T any] interface {
	Pop(timeout time.Duration) (T, error)
	Len() int
}

// Dispatcher pulls from a queue once its backlog crosses Threshold and
// submits each item to a Broker, retrying failed submissions before
// dropping the task.
type Dispatcher[T any] struct {
	Name         string
	Organisation string
	QueueType    string
	Queue        Queue[T]
	Broker       Broker
	Threshold    int
	// ToTask returns (handler name, remote queue name, task id, args
	// payload) for item, per spec.md §6.2's two fixed (name, queue) pairs.
	ToTask func(item T) (name, queue, taskID string, args any)
	// OnStatus, if set, is called with each task id's status as it moves
	// through Dispatched, then Completed or Failed. Nil is a valid no-op for
	// callers that don't track task status.
	OnStatus func(taskID string, status models.TaskStatus)

	retryDelays []time.Duration
}

// New builds a Dispatcher with the spec's fixed retry schedule of three
// attempts at 1s, 2s, 4s. name is expected in
// "queueType:organisation" form (e.g. "boefje:org-1"), matching the
// dispatcher names BoefjeScheduler/NormalizerScheduler construct, and is
// split to label the Prometheus metrics; it is distinct from the remote
// queue name ToTask returns, which is always "boefjes" or "normalizer".
func New[T any](name string, queue Queue[T], broker Broker, threshold int, toTask func(T) (string, string, string, any)) *Dispatcher[T] {
	queueType, org, _ := strings.Cut(name, ":")
	return &Dispatcher[T]{
		Name:         name,
		Organisation: org,
		QueueType:    queueType,
		Queue:        queue,
		Broker:       broker,
		Threshold:    threshold,
		ToTask:       toTask,
		retryDelays:  []time.Duration{time.Second, 2 * time.Second, 4 * time.Second},
	}
}

// Run executes the dispatch loop until ctx is cancelled, checking the
// threshold every interval.
func (d *Dispatcher[T]) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.Step(ctx)
		}
	}
}

// Step drains the queue once if it is at or above Threshold, dispatching
// each available item. It is exported separately from Run so tests can
// drive it deterministically.
func (d *Dispatcher[T]) Step(ctx context.Context) {
	observability.QueueLength.WithLabelValues(d.Organisation, d.QueueType).Set(float64(d.Queue.Len()))
	if d.Queue.Len() < d.Threshold {
		return
	}

	for d.Queue.Len() > 0 {
		item, err := d.Queue.Pop(0)
		if err != nil {
			return
		}
		d.dispatch(ctx, item)
	}
}

func (d *Dispatcher[T]) dispatch(ctx context.Context, item T) {
	name, queueName, taskID, args := d.ToTask(item)
	arg, err := json.Marshal(args)
	if err != nil {
		log.Error().Str("dispatcher", d.Name).Err(err).Msg("invalid task, dropping")
		return
	}
	argsArray, err := json.Marshal([]json.RawMessage{arg})
	if err != nil {
		log.Error().Str("dispatcher", d.Name).Err(err).Msg("invalid task, dropping")
		return
	}
	envelope := Envelope{
		Name:   name,
		Args:   argsArray,
		Queue:  queueName,
		TaskID: taskID,
	}
	d.setStatus(taskID, models.TaskStatusDispatched)

	var lastErr error
	for attempt := 0; attempt <= len(d.retryDelays); attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(d.retryDelays[attempt-1]):
			}
		}
		if err := d.Broker.Submit(ctx, envelope); err != nil {
			lastErr = err
			log.Warn().Str("dispatcher", d.Name).Str("task_id", envelope.TaskID).
				Int("attempt", attempt+1).Err(err).Msg("submit failed, retrying")
			continue
		}
		observability.TasksDispatchedTotal.WithLabelValues(d.Organisation, d.QueueType).Inc()
		d.setStatus(taskID, models.TaskStatusCompleted)
		return
	}
	observability.TasksDroppedTotal.WithLabelValues(d.Organisation, d.QueueType).Inc()
	d.setStatus(taskID, models.TaskStatusFailed)
	log.Error().Str("dispatcher", d.Name).Str("task_id", envelope.TaskID).
		Err(lastErr).Msg("submit failed after all retries, dropping task")
}

func (d *Dispatcher[T]) setStatus(taskID string, status models.TaskStatus) {
	if d.OnStatus != nil {
		d.OnStatus(taskID, status)
	}
}

// HTTPBroker posts envelopes to the worker fabric's HTTP ingestion endpoint.
type HTTPBroker struct {
	URL    string
	Client *http.Client
}

func NewHTTPBroker(url string, timeout time.Duration) *HTTPBroker {
	return &HTTPBroker{URL: url, Client: &http.Client{Timeout: timeout}}
}

func (b *HTTPBroker) Submit(ctx context.Context, envelope Envelope) error {
	body, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("broker responded %d", resp.StatusCode)
	}
	return nil
}
