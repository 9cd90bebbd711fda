package core

//go:generate mockgen -destination=mocks/media_engine.go -package=mocks github.com/dkeye/huddle/internal/core MediaEngine

import (
	"context"
	"encoding/json"

	"github.com/dkeye/huddle/internal/domain"
)

type (
	TransportID string
	ProducerID  string
	ConsumerID  string
)

type Direction string

const (
	DirectionSend Direction = "send"
	DirectionRecv Direction = "recv"
)

func ParseDirection(s string) (Direction, error) {
	switch d := Direction(s); d {
	case DirectionSend, DirectionRecv:
		return d, nil
	}
	return "", ErrBadDirection
}

type MediaKind string

const (
	KindAudio MediaKind = "audio"
	KindVideo MediaKind = "video"
)

type TransportState string

const (
	TransportNew        TransportState = "new"
	TransportConnecting TransportState = "connecting"
	TransportConnected  TransportState = "connected"
	TransportFailed     TransportState = "failed"
	TransportClosed     TransportState = "closed"
)

// Transport is a media engine network endpoint bound to one user.
type Transport interface {
	ID() TransportID
	Owner() domain.UserID
	Direction() Direction
	// ClientParams are passed to the client verbatim.
	ClientParams() json.RawMessage
	OnStateChange(func(TransportState))
	Close() error
}

type Producer interface {
	ID() ProducerID
	Owner() domain.UserID
	Kind() MediaKind
	// OnClose fires once when the producer stops, whatever the cause.
	OnClose(func())
	Close() error
}

type Consumer interface {
	ID() ConsumerID
	ProducerID() ProducerID
	Kind() MediaKind
	RTPParameters() json.RawMessage
	Close() error
}

type TransportOptions struct {
	Owner     domain.UserID
	Direction Direction
}

type ConnectParams struct {
	DTLS json.RawMessage
	// ICE is optional; engines that need remote ICE credentials read it here.
	ICE json.RawMessage
}

type ProduceOptions struct {
	Owner         domain.UserID
	Kind          MediaKind
	RTPParameters json.RawMessage
}

type ConsumeOptions struct {
	Owner        domain.UserID
	ProducerID   ProducerID
	Capabilities json.RawMessage
}

// MediaEngine is the SFU the coordinator delegates media to.
// Blocking calls must honour ctx.
type MediaEngine interface {
	RTPCapabilities() json.RawMessage
	CreateTransport(ctx context.Context, opts TransportOptions) (Transport, error)
	ConnectTransport(ctx context.Context, t Transport, params ConnectParams) error
	CanConsume(producerID ProducerID, capabilities json.RawMessage) bool
	Produce(ctx context.Context, t Transport, opts ProduceOptions) (Producer, error)
	Consume(ctx context.Context, t Transport, opts ConsumeOptions) (Consumer, error)
}
