package sfu

import (
	"sync/atomic"

	"github.com/pion/rtp"
)

type TrackState int32

const (
	TrackStateOk TrackState = iota
	TrackStateDelete
)

// Sink receives forwarded packets. *webrtc.TrackLocalStaticRTP satisfies it.
type Sink interface {
	WriteRTP(*rtp.Packet) error
}

// OutTrack represents a single outgoing track to a consumer.
type OutTrack struct {
	Sink  Sink
	state atomic.Int32 // Zero by default (TrackStateOk)
}

func NewOutTrack(sink Sink) *OutTrack {
	return &OutTrack{Sink: sink}
}

func (ot *OutTrack) GetState() TrackState {
	return TrackState(ot.state.Load())
}

func (ot *OutTrack) MarkDelete() {
	ot.state.Store(int32(TrackStateDelete))
}
