package rtc

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/dkeye/huddle/internal/core"
	"github.com/dkeye/huddle/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
)

var errTransportClosed = errors.New("transport closed")

// transport is one ICE+DTLS stack owned by a single user.
type transport struct {
	id     core.TransportID
	owner  domain.UserID
	dir    core.Direction
	params json.RawMessage
	logger zerolog.Logger

	gatherer *webrtc.ICEGatherer
	ice      *webrtc.ICETransport
	dtls     *webrtc.DTLSTransport

	mu        sync.Mutex
	state     core.TransportState
	onChange  func(core.TransportState)
	connected chan struct{}
	connOnce  sync.Once
	done      chan struct{}
	started   bool
	closing   bool
	children  []interface{ Close() error }
}

func (t *transport) ID() core.TransportID          { return t.id }
func (t *transport) Owner() domain.UserID          { return t.owner }
func (t *transport) Direction() core.Direction     { return t.dir }
func (t *transport) ClientParams() json.RawMessage { return t.params }

func (t *transport) OnStateChange(fn func(core.TransportState)) {
	t.mu.Lock()
	t.onChange = fn
	t.mu.Unlock()
}

func (t *transport) setState(s core.TransportState) {
	t.mu.Lock()
	if t.state == s || t.state == core.TransportClosed || (t.closing && s != core.TransportClosed) {
		t.mu.Unlock()
		return
	}
	t.state = s
	fn := t.onChange
	switch s {
	case core.TransportConnected:
		// a Failed transport can still come back as Connected
		t.connOnce.Do(func() { close(t.connected) })
	case core.TransportClosed:
		close(t.done)
	}
	t.mu.Unlock()

	t.logger.Info().Str("state", string(s)).Msg("transport state")
	if fn != nil {
		go fn(s)
	}
}

// markStarted reports false if the handshake was already started.
func (t *transport) markStarted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started {
		return false
	}
	t.started = true
	return true
}

// waitConnected blocks until DTLS is up, the transport closes, or ctx ends.
func (t *transport) waitConnected(ctx context.Context) error {
	select {
	case <-t.connected:
		return nil
	case <-t.done:
		return errTransportClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// adopt ties a producer or consumer to this transport's lifetime.
func (t *transport) adopt(c interface{ Close() error }) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == core.TransportClosed {
		return false
	}
	t.children = append(t.children, c)
	return true
}

func (t *transport) Close() error {
	t.mu.Lock()
	if t.closing {
		t.mu.Unlock()
		return nil
	}
	t.closing = true
	children := t.children
	t.children = nil
	t.mu.Unlock()

	for _, c := range children {
		_ = c.Close()
	}
	err := errors.Join(t.dtls.Stop(), t.ice.Stop(), t.gatherer.Close())
	t.setState(core.TransportClosed)
	return err
}

// mapDTLSState leaves Connected out; ConnectTransport reports it when SRTP
// is ready.
func mapDTLSState(s webrtc.DTLSTransportState) (core.TransportState, bool) {
	switch s {
	case webrtc.DTLSTransportStateConnecting:
		return core.TransportConnecting, true
	case webrtc.DTLSTransportStateFailed:
		return core.TransportFailed, true
	case webrtc.DTLSTransportStateClosed:
		return core.TransportClosed, true
	}
	return "", false
}
