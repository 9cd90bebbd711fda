package sfu

import (
	"context"
	"sync"

	"github.com/dkeye/huddle/internal/core"
	"github.com/rs/zerolog/log"
)

// RelayManager fans each producer out to its consumers.
type RelayManager struct {
	mu     sync.RWMutex
	relays map[core.ProducerID]*Relay
}

func NewRelayManager() *RelayManager {
	return &RelayManager{
		relays: make(map[core.ProducerID]*Relay),
	}
}

// StartRelay creates a new Relay for the given producer and starts its loop.
// onStop runs when the loop exits for any reason.
func (m *RelayManager) StartRelay(ctx context.Context, id core.ProducerID, src Source, onStop func()) *Relay {
	logger := log.With().
		Str("module", "sfu.relay").
		Str("producer_id", string(id)).
		Logger()

	relayCtx, cancel := context.WithCancel(ctx)
	relay := NewRelay(src, cancel)

	m.mu.Lock()
	if old, ok := m.relays[id]; ok {
		logger.Info().Msg("replacing existing relay for producer")
		old.markAllDelete()
		if old.cancel != nil {
			old.cancel()
		}
	}
	m.relays[id] = relay
	m.mu.Unlock()

	logger.Info().Msg("starting relay loop")

	go relay.loop(relayCtx, &logger, func() {
		m.mu.Lock()
		if m.relays[id] == relay {
			delete(m.relays, id)
		}
		m.mu.Unlock()
		if onStop != nil {
			onStop()
		}
	})
	return relay
}

// AddSubscriber attaches sink to the relay of producer id.
func (m *RelayManager) AddSubscriber(id core.ProducerID, dst core.ConsumerID, sink Sink) bool {
	m.mu.RLock()
	relay, ok := m.relays[id]
	m.mu.RUnlock()
	if !ok {
		return false
	}
	relay.AddOutTrack(dst, NewOutTrack(sink))
	return true
}

// MarkSubscriberDelete marks the consumer's OutTrack as TrackStateDelete.
func (m *RelayManager) MarkSubscriberDelete(id core.ProducerID, dst core.ConsumerID) {
	m.mu.RLock()
	relay, ok := m.relays[id]
	m.mu.RUnlock()
	if !ok {
		return
	}
	if ot, ok := relay.outTrack(dst); ok {
		ot.MarkDelete()
	}
}

// StopRelay stops a relay and removes it from the manager.
func (m *RelayManager) StopRelay(id core.ProducerID) {
	m.mu.Lock()
	relay, ok := m.relays[id]
	if ok {
		delete(m.relays, id)
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	relay.markAllDelete()
	if relay.cancel != nil {
		relay.cancel()
	}
}

// HasRelay reports whether a relay exists for id.
func (m *RelayManager) HasRelay(id core.ProducerID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.relays[id]
	return ok
}
