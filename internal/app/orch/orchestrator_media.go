package orch

import (
	"context"
	"encoding/json"

	"github.com/dkeye/huddle/internal/core"
	"github.com/dkeye/huddle/internal/domain"
	"github.com/rs/zerolog/log"
)

// ConsumeResult is what a client needs to start receiving a producer.
type ConsumeResult struct {
	ConsumerID    core.ConsumerID `json:"consumerId"`
	ProducerID    core.ProducerID `json:"producerId"`
	Kind          core.MediaKind  `json:"kind"`
	RTPParameters json.RawMessage `json:"rtpParameters"`
}

func (o *Orchestrator) RouterCapabilities() json.RawMessage {
	return o.Engine.RTPCapabilities()
}

// CreateTransport asks the engine for a transport in direction and makes it
// the user's transport for that direction. A superseded transport is closed.
func (o *Orchestrator) CreateTransport(ctx context.Context, uid domain.UserID, direction string) (json.RawMessage, error) {
	dir, err := core.ParseDirection(direction)
	if err != nil {
		return nil, err
	}
	sess, ok := o.Sessions.Get(uid)
	if !ok {
		return nil, core.ErrSessionNotFound
	}

	t, err := o.Engine.CreateTransport(ctx, core.TransportOptions{Owner: uid, Direction: dir})
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Str("user_id", string(uid)).Str("direction", string(dir)).Msg("create transport")
		return nil, core.EngineFault("Unable to create transport", err)
	}

	id := t.ID()
	t.OnStateChange(func(s core.TransportState) {
		switch s {
		case core.TransportFailed:
			_ = t.Close()
			o.OnTransportClosed(uid, dir, id)
		case core.TransportClosed:
			o.OnTransportClosed(uid, dir, id)
		}
	})

	prev, ok := sess.SetTransport(t)
	if !ok {
		// disconnected while the engine was working
		_ = t.Close()
		return nil, core.ErrSessionNotFound
	}
	if prev != nil {
		log.Info().Str("module", "orch").Str("user_id", string(uid)).Str("transport_id", string(prev.ID())).Msg("closing superseded transport")
		o.forgetTransport(prev.ID())
		_ = prev.Close()
	}

	if roomID, ok := sess.RoomID(); ok {
		if room, ok := o.Rooms.Get(roomID); ok {
			room.AddTransport(t)
		}
	}
	log.Info().Str("module", "orch").Str("user_id", string(uid)).Str("transport_id", string(id)).Str("direction", string(dir)).Msg("transport created")
	return t.ClientParams(), nil
}

func (o *Orchestrator) ConnectTransport(ctx context.Context, uid domain.UserID, direction string, dtls, ice json.RawMessage) error {
	if isEmpty(dtls) {
		return core.ErrMissingDTLS
	}
	dir, err := core.ParseDirection(direction)
	if err != nil {
		return err
	}
	sess, ok := o.Sessions.Get(uid)
	if !ok {
		return core.ErrSessionNotFound
	}
	t, ok := sess.Transport(dir)
	if !ok {
		return core.ErrTransportNotFound
	}

	if err := o.Engine.ConnectTransport(ctx, t, core.ConnectParams{DTLS: dtls, ICE: ice}); err != nil {
		if core.IsRequestError(err) {
			// the transport is fine, the client may retry
			log.Debug().Err(err).Str("module", "orch").Str("user_id", string(uid)).Str("transport_id", string(t.ID())).Msg("connect transport rejected")
			return err
		}
		log.Error().Err(err).Str("module", "orch").Str("user_id", string(uid)).Str("transport_id", string(t.ID())).Msg("connect transport")
		o.dropTransport(sess, t)
		return core.EngineFault("Unable to connect to transport", err)
	}
	return nil
}

// Produce starts an outbound stream on the user's send transport. Without a
// room there is nobody to tell, so the transport is closed and nothing is announced.
func (o *Orchestrator) Produce(ctx context.Context, uid domain.UserID, rtpParameters, capabilities json.RawMessage, kind string) (core.ProducerID, error) {
	switch {
	case isEmpty(rtpParameters):
		return "", core.ErrMissingRTP
	case isEmpty(capabilities):
		return "", core.ErrMissingCapabilities
	case kind == "":
		return "", core.ErrMissingKind
	}
	mk := core.MediaKind(kind)
	if mk != core.KindAudio && mk != core.KindVideo {
		return "", core.ErrMissingKind.WithDetail("unsupported kind " + kind)
	}
	sess, ok := o.Sessions.Get(uid)
	if !ok {
		return "", core.ErrSessionNotFound
	}
	sess.SetCapabilities(capabilities)
	t, ok := sess.Transport(core.DirectionSend)
	if !ok {
		return "", core.ErrTransportNotFound
	}

	p, err := o.Engine.Produce(ctx, t, core.ProduceOptions{Owner: uid, Kind: mk, RTPParameters: rtpParameters})
	if err != nil {
		if core.IsRequestError(err) {
			return "", err
		}
		log.Error().Err(err).Str("module", "orch").Str("user_id", string(uid)).Msg("produce")
		return "", core.EngineFault("Unable to produce", err)
	}
	if !sess.AddProducer(p) {
		_ = p.Close()
		return "", core.ErrSessionNotFound
	}

	roomID, inRoom := sess.RoomID()
	room, ok := o.Rooms.Get(roomID)
	if !inRoom || !ok {
		log.Info().Str("module", "orch").Str("user_id", string(uid)).Str("producer_id", string(p.ID())).Msg("produce outside a room, closing send transport")
		sess.RemoveProducer(p.ID())
		_ = p.Close()
		o.dropTransport(sess, t)
		return p.ID(), nil
	}

	room.AddProducer(p)
	owner, id := uid, p.ID()
	p.OnClose(func() { o.OnProducerClosed(owner, id) })

	log.Info().Str("module", "orch").Str("user_id", string(uid)).Str("producer_id", string(id)).Str("kind", kind).Msg("producer created")
	o.broadcast(uid, roomID, core.Event{
		Type: core.EventNewProducer,
		Data: core.ProducerInfo{ProducerID: id, UserID: uid},
	})
	return id, nil
}

func (o *Orchestrator) Consume(ctx context.Context, uid domain.UserID, capabilities json.RawMessage, producerID string) (ConsumeResult, error) {
	if isEmpty(capabilities) {
		return ConsumeResult{}, core.ErrMissingCapabilities
	}
	if producerID == "" {
		return ConsumeResult{}, core.ErrMissingProducerID
	}
	pid := core.ProducerID(producerID)
	if !o.Engine.CanConsume(pid, capabilities) {
		return ConsumeResult{}, core.CannotConsume(pid)
	}
	sess, ok := o.Sessions.Get(uid)
	if !ok {
		return ConsumeResult{}, core.ErrSessionNotFound
	}
	sess.SetCapabilities(capabilities)
	t, ok := sess.Transport(core.DirectionRecv)
	if !ok {
		return ConsumeResult{}, core.ErrTransportNotFound
	}

	c, err := o.Engine.Consume(ctx, t, core.ConsumeOptions{Owner: uid, ProducerID: pid, Capabilities: capabilities})
	if err != nil {
		if core.IsRequestError(err) {
			return ConsumeResult{}, err
		}
		log.Error().Err(err).Str("module", "orch").Str("user_id", string(uid)).Str("producer_id", producerID).Msg("consume")
		return ConsumeResult{}, core.EngineFault("Unable to consume", err)
	}
	if !sess.AddConsumer(c) {
		_ = c.Close()
		return ConsumeResult{}, core.ErrSessionNotFound
	}
	return ConsumeResult{
		ConsumerID:    c.ID(),
		ProducerID:    c.ProducerID(),
		Kind:          c.Kind(),
		RTPParameters: c.RTPParameters(),
	}, nil
}

// OnProducerClosed is called by the engine when a producer stops.
func (o *Orchestrator) OnProducerClosed(owner domain.UserID, id core.ProducerID) {
	if sess, ok := o.Sessions.Get(owner); ok {
		sess.RemoveProducer(id)
	}
	if !o.forgetProducer(id) {
		log.Debug().Str("module", "orch").Str("producer_id", string(id)).Msg("producer closed: already gone")
		return
	}
	log.Info().Str("module", "orch").Str("user_id", string(owner)).Str("producer_id", string(id)).Msg("producer closed")
}

// OnTransportClosed is called by the engine when a transport reaches a
// terminal state.
func (o *Orchestrator) OnTransportClosed(owner domain.UserID, dir core.Direction, id core.TransportID) {
	if sess, ok := o.Sessions.Get(owner); ok {
		sess.ClearTransport(dir, id)
	}
	if o.forgetTransport(id) {
		log.Info().Str("module", "orch").Str("user_id", string(owner)).Str("transport_id", string(id)).Msg("transport closed")
	}
}

// dropTransport unregisters t everywhere and closes it.
func (o *Orchestrator) dropTransport(sess *core.Session, t core.Transport) {
	sess.ClearTransport(t.Direction(), t.ID())
	o.forgetTransport(t.ID())
	if err := t.Close(); err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("transport_id", string(t.ID())).Msg("close transport")
	}
}

// The room pool is small and fixed, so handles are looked up by scanning it.
// A handle can outlive its owner's stay in a room.

func (o *Orchestrator) forgetTransport(id core.TransportID) bool {
	removed := false
	for room := range o.Rooms.All() {
		if room.RemoveTransport(id) == nil {
			removed = true
		}
	}
	return removed
}

func (o *Orchestrator) forgetProducer(id core.ProducerID) bool {
	removed := false
	for room := range o.Rooms.All() {
		if room.RemoveProducer(id) == nil {
			removed = true
		}
	}
	return removed
}

// releaseMedia closes what a disconnected session owned, consumers first.
func (o *Orchestrator) releaseMedia(uid domain.UserID, res core.Resources) {
	for _, c := range res.Consumers {
		_ = c.Close()
	}
	for _, p := range res.Producers {
		o.forgetProducer(p.ID())
		_ = p.Close()
	}
	for _, t := range res.Transports {
		o.forgetTransport(t.ID())
		_ = t.Close()
	}
	log.Debug().
		Str("module", "orch").
		Str("user_id", string(uid)).
		Int("consumers", len(res.Consumers)).
		Int("producers", len(res.Producers)).
		Int("transports", len(res.Transports)).
		Msg("media released")
}

func isEmpty(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}
