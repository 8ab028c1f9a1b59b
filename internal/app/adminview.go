package app

import (
	"encoding/json"
	"fmt"

	"github.com/openkat/scheduler/internal/apperrors"
	"github.com/openkat/scheduler/internal/models"
	"github.com/openkat/scheduler/pkg/api"
)

// AdminView adapts a Supervisor to pkg/api.SchedulerView: every method only
// reads from or pushes/pops a running scheduler's queue, never touching its
// lifecycle, so the admin HTTP surface cannot keep a scheduler pair alive
// past Supervisor.Stop.
type AdminView struct {
	Supervisor *Supervisor
}

var _ api.SchedulerView = AdminView{}

// statusStrings converts a scheduler's in-memory task-status map to the
// plain string-keyed shape pkg/api exposes over JSON, keeping internal/models
// out of the admin surface's public types.
func statusStrings(statuses map[string]models.TaskStatus) map[string]string {
	out := make(map[string]string, len(statuses))
	for id, status := range statuses {
		out[id] = string(status)
	}
	return out
}

func (v AdminView) Organisations() []string {
	return v.Supervisor.Organisations()
}

func (v AdminView) QueueSnapshot(orgID, queueType string) (api.QueueSnapshot, bool) {
	boefje, normalizer, ok := v.Supervisor.Pair(orgID)
	if !ok {
		return api.QueueSnapshot{}, false
	}

	switch queueType {
	case "boefje":
		items := make([]any, 0)
		for _, pi := range boefje.Queue.Snapshot() {
			items = append(items, pi)
		}
		return api.QueueSnapshot{
			Organisation: orgID, QueueType: queueType,
			Length: boefje.Queue.Len(), Maxsize: boefje.Queue.Maxsize(), Items: items,
			Statuses: statusStrings(boefje.Status.Snapshot()),
		}, true
	case "normalizer":
		items := make([]any, 0)
		for _, pi := range normalizer.Queue.Snapshot() {
			items = append(items, pi)
		}
		return api.QueueSnapshot{
			Organisation: orgID, QueueType: queueType,
			Length: normalizer.Queue.Len(), Maxsize: normalizer.Queue.Maxsize(), Items: items,
			Statuses: statusStrings(normalizer.Status.Snapshot()),
		}, true
	default:
		return api.QueueSnapshot{}, false
	}
}

func (v AdminView) Push(orgID, queueType string, priority int, payload []byte) error {
	boefje, normalizer, ok := v.Supervisor.Pair(orgID)
	if !ok {
		return apperrors.ErrNotFound
	}

	switch queueType {
	case "boefje":
		var task models.BoefjeTask
		if err := json.Unmarshal(payload, &task); err != nil {
			return fmt.Errorf("%w: %v", apperrors.ErrInvalidItem, err)
		}
		task.Organization = orgID
		return boefje.Queue.Push(priority, task)
	case "normalizer":
		var task models.NormalizerTask
		if err := json.Unmarshal(payload, &task); err != nil {
			return fmt.Errorf("%w: %v", apperrors.ErrInvalidItem, err)
		}
		task.Organization = orgID
		return normalizer.Queue.Push(priority, task)
	default:
		return apperrors.ErrNotFound
	}
}

func (v AdminView) Pop(orgID, queueType string) (any, bool, error) {
	boefje, normalizer, ok := v.Supervisor.Pair(orgID)
	if !ok {
		return nil, false, apperrors.ErrNotFound
	}

	switch queueType {
	case "boefje":
		item, err := boefje.Queue.Pop(0)
		if err != nil {
			return nil, false, nil
		}
		return item, true, nil
	case "normalizer":
		item, err := normalizer.Queue.Pop(0)
		if err != nil {
			return nil, false, nil
		}
		return item, true, nil
	default:
		return nil, false, apperrors.ErrNotFound
	}
}
