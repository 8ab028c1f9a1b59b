// Package listener bridges the external event bus (scan-profile mutations
// and raw-data-ready notifications) into typed, per-process channels the
// schedulers can range over.
package listener

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/openkat/scheduler/internal/models"
)

// RawSubscriber is the transport-level subscription the event bus exposes:
// a channel of opaque message bytes per topic. Production wiring wraps a
// message broker connection; tests substitute an in-memory channel.
type RawSubscriber interface {
	Subscribe(ctx context.Context, topic string) (<-chan []byte, error)
}

const (
	topicScanProfileMutations = "scan_profile.mutations"
	topicRawDataReady         = "raw_data.ready"
)

// Bus decodes the two event topics the schedulers care about into typed
// channels, satisfying scheduler.BoefjeEventBus and
// scheduler.NormalizerEventBus.
type Bus struct {
	sub RawSubscriber
}

func New(sub RawSubscriber) *Bus {
	return &Bus{sub: sub}
}

// ScanProfileChanges decodes topicScanProfileMutations into a stream of
// OOIs. Decode failures are logged and skipped rather than closing the
// stream, since one malformed event shouldn't starve the scheduler.
func (b *Bus) ScanProfileChanges(ctx context.Context) <-chan models.OOI {
	out := make(chan models.OOI)
	raw, err := b.sub.Subscribe(ctx, topicScanProfileMutations)
	if err != nil {
		log.Error().Err(err).Str("topic", topicScanProfileMutations).Msg("subscribe failed")
		close(out)
		return out
	}

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-raw:
				if !ok {
					return
				}
				var ooi models.OOI
				if err := json.Unmarshal(msg, &ooi); err != nil {
					log.Warn().Err(err).Str("topic", topicScanProfileMutations).Msg("malformed event, skipping")
					continue
				}
				select {
				case out <- ooi:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// RawDataReady decodes topicRawDataReady into a stream of raw-data
// references.
func (b *Bus) RawDataReady(ctx context.Context) <-chan models.RawDataRef {
	out := make(chan models.RawDataRef)
	raw, err := b.sub.Subscribe(ctx, topicRawDataReady)
	if err != nil {
		log.Error().Err(err).Str("topic", topicRawDataReady).Msg("subscribe failed")
		close(out)
		return out
	}

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-raw:
				if !ok {
					return
				}
				var ref models.RawDataRef
				if err := json.Unmarshal(msg, &ref); err != nil {
					log.Warn().Err(err).Str("topic", topicRawDataReady).Msg("malformed event, skipping")
					continue
				}
				select {
				case out <- ref:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}
