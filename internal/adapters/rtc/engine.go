package rtc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dkeye/huddle/internal/app/sfu"
	"github.com/dkeye/huddle/internal/core"
	"github.com/google/uuid"
	"github.com/pion/randutil"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

var (
	errForeignHandle   = errors.New("handle does not belong to this engine")
	errWrongDirection  = errors.New("transport direction does not allow this operation")
	errUnknownProducer = errors.New("unknown producer")
	errKindMismatch    = errors.New("media kind does not match codec")
	errIncompatible    = errors.New("capabilities cannot receive producer codec")
)

type Config struct {
	ICEServers      []string
	UDPPortMin      uint16
	UDPPortMax      uint16
	AnnouncedIPs    []string
	IncludeLoopback bool
	GatherTimeout   time.Duration
}

// Engine is an SFU built on pion's ORTC objects. Each transport is a bare
// ICE+DTLS pair; producers and consumers are RTP receivers and senders on it,
// joined by relays.
type Engine struct {
	api    *webrtc.API
	ice    []webrtc.ICEServer
	caps   json.RawMessage
	gather time.Duration
	relays *sfu.RelayManager
	ssrcs  randutil.MathRandomGenerator
	ctx    context.Context

	mu        sync.RWMutex
	producers map[core.ProducerID]*producer
	consumers map[core.ProducerID][]*consumer
}

var _ core.MediaEngine = (*Engine)(nil)

// NewEngine builds the shared API. ctx bounds every relay it starts.
func NewEngine(ctx context.Context, cfg Config) (*Engine, error) {
	m, ir, err := newMediaEngine()
	if err != nil {
		return nil, err
	}
	s := webrtc.SettingEngine{}
	if cfg.UDPPortMin > 0 || cfg.UDPPortMax > 0 {
		if err := s.SetEphemeralUDPPortRange(cfg.UDPPortMin, cfg.UDPPortMax); err != nil {
			return nil, fmt.Errorf("udp port range: %w", err)
		}
	}
	if len(cfg.AnnouncedIPs) > 0 {
		s.SetNAT1To1IPs(cfg.AnnouncedIPs, webrtc.ICECandidateTypeHost)
	}
	s.SetIncludeLoopbackCandidate(cfg.IncludeLoopback)
	gather := cfg.GatherTimeout
	if gather <= 0 {
		gather = 5 * time.Second
	}
	e := &Engine{
		api: webrtc.NewAPI(
			webrtc.WithMediaEngine(m),
			webrtc.WithSettingEngine(s),
			webrtc.WithInterceptorRegistry(ir),
		),
		caps:      routerCapabilities(),
		gather:    gather,
		relays:    sfu.NewRelayManager(),
		ssrcs:     randutil.NewMathRandomGenerator(),
		ctx:       ctx,
		producers: make(map[core.ProducerID]*producer),
		consumers: make(map[core.ProducerID][]*consumer),
	}
	if len(cfg.ICEServers) > 0 {
		e.ice = []webrtc.ICEServer{{URLs: cfg.ICEServers}}
	}
	log.Info().Str("module", "rtc").Int("codecs", len(routerCodecs)).Uint16("udp_min", cfg.UDPPortMin).Uint16("udp_max", cfg.UDPPortMax).Msg("media engine ready")
	return e, nil
}

func (e *Engine) RTPCapabilities() json.RawMessage { return e.caps }

func (e *Engine) CreateTransport(ctx context.Context, opts core.TransportOptions) (core.Transport, error) {
	gatherer, err := e.api.NewICEGatherer(webrtc.ICEGatherOptions{ICEServers: e.ice})
	if err != nil {
		return nil, fmt.Errorf("ice gatherer: %w", err)
	}
	ice := e.api.NewICETransport(gatherer)
	dtls, err := e.api.NewDTLSTransport(ice, nil)
	if err != nil {
		_ = gatherer.Close()
		return nil, fmt.Errorf("dtls transport: %w", err)
	}
	abort := func(err error) (core.Transport, error) {
		_ = dtls.Stop()
		_ = ice.Stop()
		_ = gatherer.Close()
		return nil, err
	}

	gathered := make(chan struct{})
	var once sync.Once
	gatherer.OnLocalCandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			once.Do(func() { close(gathered) })
		}
	})
	if err := gatherer.Gather(); err != nil {
		return abort(fmt.Errorf("gather: %w", err))
	}
	timer := time.NewTimer(e.gather)
	defer timer.Stop()
	select {
	case <-gathered:
	case <-timer.C:
		// go with whatever was found so far
	case <-ctx.Done():
		return abort(ctx.Err())
	}

	candidates, err := gatherer.GetLocalCandidates()
	if err != nil {
		return abort(fmt.Errorf("local candidates: %w", err))
	}
	iceParams, err := gatherer.GetLocalParameters()
	if err != nil {
		return abort(fmt.Errorf("local ice parameters: %w", err))
	}
	dtlsParams, err := dtls.GetLocalParameters()
	if err != nil {
		return abort(fmt.Errorf("local dtls parameters: %w", err))
	}

	id := core.TransportID(uuid.NewString())
	params, err := json.Marshal(transportParamsJSON{
		ID: string(id),
		ICEParameters: iceParametersJSON{
			UsernameFragment: iceParams.UsernameFragment,
			Password:         iceParams.Password,
			ICELite:          iceParams.ICELite,
		},
		ICECandidates:  candidatesToJSON(candidates),
		DTLSParameters: dtlsToJSON(dtlsParams),
		SCTPParameters: json.RawMessage("null"),
	})
	if err != nil {
		return abort(fmt.Errorf("encode transport parameters: %w", err))
	}

	t := &transport{
		id:        id,
		owner:     opts.Owner,
		dir:       opts.Direction,
		params:    params,
		gatherer:  gatherer,
		ice:       ice,
		dtls:      dtls,
		state:     core.TransportNew,
		connected: make(chan struct{}),
		done:      make(chan struct{}),
		logger: log.With().
			Str("module", "rtc.transport").
			Str("transport_id", string(id)).
			Str("user_id", string(opts.Owner)).
			Logger(),
	}
	dtls.OnStateChange(func(s webrtc.DTLSTransportState) {
		if st, ok := mapDTLSState(s); ok {
			t.setState(st)
		}
	})
	ice.OnConnectionStateChange(func(s webrtc.ICETransportState) {
		if s == webrtc.ICETransportStateFailed {
			t.setState(core.TransportFailed)
		}
	})
	t.logger.Info().Int("candidates", len(candidates)).Str("direction", string(opts.Direction)).Msg("transport created")
	return t, nil
}

// ConnectTransport starts ICE and DTLS against the remote parameters and
// returns without waiting for the handshake. Progress is reported through
// the transport's state.
func (e *Engine) ConnectTransport(_ context.Context, ct core.Transport, params core.ConnectParams) error {
	t, ok := ct.(*transport)
	if !ok {
		return errForeignHandle
	}
	remoteDTLS, err := parseDTLS(params.DTLS)
	if err != nil {
		return err
	}
	remoteICE, err := parseICE(params.ICE)
	if err != nil {
		return err
	}
	if !t.markStarted() {
		return core.ErrTransportConnected
	}

	go func() {
		role := webrtc.ICERoleControlled
		if err := t.ice.Start(nil, remoteICE, &role); err != nil {
			t.logger.Warn().Err(err).Msg("ice start")
			t.setState(core.TransportFailed)
			return
		}
		if err := t.dtls.Start(remoteDTLS); err != nil {
			t.logger.Warn().Err(err).Msg("dtls start")
			t.setState(core.TransportFailed)
			return
		}
		// Start returns once SRTP is up, which the DTLS state change does not wait for
		t.setState(core.TransportConnected)
	}()
	return nil
}

func (e *Engine) CanConsume(id core.ProducerID, capabilities json.RawMessage) bool {
	p, ok := e.producer(id)
	if !ok {
		return false
	}
	return supports(capabilities, p.codec)
}

// Produce waits for the send transport to finish its handshake, then starts
// receiving and relaying the stream.
func (e *Engine) Produce(ctx context.Context, ct core.Transport, opts core.ProduceOptions) (core.Producer, error) {
	t, ok := ct.(*transport)
	if !ok {
		return nil, errForeignHandle
	}
	if t.dir != core.DirectionSend {
		return nil, errWrongDirection
	}
	codec, ssrc, err := parseProduceParameters(opts.RTPParameters)
	if err != nil {
		return nil, err
	}
	if codec.kind != opts.Kind {
		return nil, fmt.Errorf("%w: %s is %s", errKindMismatch, codec.params.MimeType, codec.kind)
	}
	if err := t.waitConnected(ctx); err != nil {
		return nil, fmt.Errorf("wait for dtls: %w", err)
	}

	receiver, err := e.api.NewRTPReceiver(codecType(codec.kind), t.dtls)
	if err != nil {
		return nil, fmt.Errorf("rtp receiver: %w", err)
	}
	err = receiver.Receive(webrtc.RTPReceiveParameters{
		Encodings: []webrtc.RTPDecodingParameters{{
			RTPCodingParameters: webrtc.RTPCodingParameters{SSRC: ssrc, PayloadType: codec.params.PayloadType},
		}},
	})
	if err != nil {
		_ = receiver.Stop()
		return nil, fmt.Errorf("receive: %w", err)
	}

	p := &producer{
		id:       core.ProducerID(uuid.NewString()),
		owner:    opts.Owner,
		codec:    codec,
		receiver: receiver,
	}
	e.mu.Lock()
	e.producers[p.id] = p
	e.mu.Unlock()

	e.relays.StartRelay(e.ctx, p.id, receiver.Track(), func() { e.producerEnded(p) })
	p.stop = func() { e.relays.StopRelay(p.id) }
	if !t.adopt(p) {
		_ = p.Close()
		return nil, errTransportClosed
	}
	log.Info().
		Str("module", "rtc").
		Str("producer_id", string(p.id)).
		Str("user_id", string(opts.Owner)).
		Str("codec", codec.params.MimeType).
		Uint32("ssrc", uint32(ssrc)).
		Msg("producer started")
	return p, nil
}

// Consume binds a local track to the recv transport. Packets start flowing
// once the transport's handshake completes.
func (e *Engine) Consume(_ context.Context, ct core.Transport, opts core.ConsumeOptions) (core.Consumer, error) {
	t, ok := ct.(*transport)
	if !ok {
		return nil, errForeignHandle
	}
	if t.dir != core.DirectionRecv {
		return nil, errWrongDirection
	}
	p, ok := e.producer(opts.ProducerID)
	if !ok {
		return nil, errUnknownProducer
	}
	if !supports(opts.Capabilities, p.codec) {
		return nil, errIncompatible
	}

	id := core.ConsumerID(uuid.NewString())
	track, err := webrtc.NewTrackLocalStaticRTP(p.codec.params.RTPCodecCapability, string(id), string(p.owner))
	if err != nil {
		return nil, fmt.Errorf("local track: %w", err)
	}
	sender, err := e.api.NewRTPSender(track, t.dtls)
	if err != nil {
		return nil, fmt.Errorf("rtp sender: %w", err)
	}
	ssrc := webrtc.SSRC(e.ssrcs.Uint32())
	c := &consumer{
		id:       id,
		producer: p.id,
		codec:    p.codec,
		params:   consumerParameters(p.codec, ssrc),
		sender:   sender,
		detach:   func() { e.relays.MarkSubscriberDelete(p.id, id) },
	}
	if !t.adopt(c) {
		_ = sender.Stop()
		return nil, errTransportClosed
	}
	e.mu.Lock()
	e.consumers[p.id] = append(e.consumers[p.id], c)
	e.mu.Unlock()

	go e.startSending(t, c, track, ssrc)
	return c, nil
}

func (e *Engine) startSending(t *transport, c *consumer, track *webrtc.TrackLocalStaticRTP, ssrc webrtc.SSRC) {
	logger := log.With().Str("module", "rtc").Str("consumer_id", string(c.id)).Logger()
	if err := t.waitConnected(e.ctx); err != nil {
		logger.Debug().Err(err).Msg("consumer never connected")
		return
	}
	err := c.sender.Send(webrtc.RTPSendParameters{
		Encodings: []webrtc.RTPEncodingParameters{{
			RTPCodingParameters: webrtc.RTPCodingParameters{SSRC: ssrc, PayloadType: c.codec.params.PayloadType},
		}},
	})
	if err != nil {
		logger.Warn().Err(err).Msg("rtp sender send")
		return
	}
	// Read incoming RTCP packets so interceptors keep working.
	go func() {
		for {
			if _, _, err := c.sender.ReadRTCP(); err != nil {
				return
			}
		}
	}()
	if c.isClosed() || !e.relays.AddSubscriber(c.producer, c.id, track) {
		logger.Debug().Msg("consumer closed before first packet")
		return
	}
	logger.Info().Uint32("ssrc", uint32(ssrc)).Msg("consumer attached")
}

func (e *Engine) producer(id core.ProducerID) (*producer, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	p, ok := e.producers[id]
	return p, ok
}

// producerEnded runs when a producer's relay stops: its consumers go with it.
func (e *Engine) producerEnded(p *producer) {
	e.mu.Lock()
	delete(e.producers, p.id)
	consumers := e.consumers[p.id]
	delete(e.consumers, p.id)
	e.mu.Unlock()

	for _, c := range consumers {
		_ = c.Close()
	}
	p.finish()
	log.Info().Str("module", "rtc").Str("producer_id", string(p.id)).Int("consumers", len(consumers)).Msg("producer ended")
}
