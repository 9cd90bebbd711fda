package sfu

import (
	"context"
	"maps"
	"sync"

	"github.com/dkeye/huddle/internal/core"
	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/rs/zerolog"
)

// Source yields packets of one producer. *webrtc.TrackRemote satisfies it.
type Source interface {
	ReadRTP() (*rtp.Packet, interceptor.Attributes, error)
}

type Relay struct {
	Src Source

	mu        sync.RWMutex
	outTracks map[core.ConsumerID]*OutTrack

	cancel context.CancelFunc
	done   chan struct{}
}

func NewRelay(src Source, cancel context.CancelFunc) *Relay {
	return &Relay{
		Src:       src,
		outTracks: make(map[core.ConsumerID]*OutTrack),
		cancel:    cancel,
		done:      make(chan struct{}),
	}
}

// loop reads RTP packets from the source and forwards them to all OutTracks.
// onStop runs once the source is exhausted or ctx is done.
func (r *Relay) loop(ctx context.Context, logger *zerolog.Logger, onStop func()) {
	defer func() {
		r.markAllDelete()
		close(r.done)
		if onStop != nil {
			onStop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("relay ctx done, marking all out tracks for delete")
			return
		default:
		}
		pkt, _, err := r.Src.ReadRTP()
		if err != nil {
			logger.Info().Err(err).Msg("relay source ended, stopping")
			return
		}
		r.forward(pkt, logger)
	}
}

func (r *Relay) forward(pkt *rtp.Packet, logger *zerolog.Logger) {
	r.mu.RLock()
	snapshot := maps.Clone(r.outTracks)
	r.mu.RUnlock()

	dirty := make([]core.ConsumerID, 0, len(snapshot))
	for dst, ot := range snapshot {
		switch ot.GetState() {
		case TrackStateDelete:
			dirty = append(dirty, dst)
		case TrackStateOk:
			if err := ot.Sink.WriteRTP(pkt); err != nil {
				logger.Warn().
					Err(err).
					Str("consumer_id", string(dst)).
					Msg("relay write RTP error, marking outtrack as delete")
				ot.MarkDelete()
				dirty = append(dirty, dst)
			}
		}
	}

	// Cleanup is done outside the RLock.
	if len(dirty) > 0 {
		r.cleanupDeleted(dirty)
	}
}

func (r *Relay) cleanupDeleted(dirty []core.ConsumerID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range dirty {
		if ot, ok := r.outTracks[id]; ok && ot.GetState() == TrackStateDelete {
			delete(r.outTracks, id)
		}
	}
}

func (r *Relay) markAllDelete() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ot := range r.outTracks {
		ot.MarkDelete()
	}
}

func (r *Relay) AddOutTrack(dst core.ConsumerID, ot *OutTrack) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outTracks[dst] = ot
}

func (r *Relay) outTrack(dst core.ConsumerID) (*OutTrack, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ot, ok := r.outTracks[dst]
	return ot, ok
}

// Subscribers counts out tracks that still receive packets.
func (r *Relay) Subscribers() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, ot := range r.outTracks {
		if ot.GetState() == TrackStateOk {
			n++
		}
	}
	return n
}

// Done is closed when the loop has exited.
func (r *Relay) Done() <-chan struct{} { return r.done }
