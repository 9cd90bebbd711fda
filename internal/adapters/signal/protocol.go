package signal

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Inbound event names.
const (
	EventRoomJoin           = "room-join"
	EventRoomLeave          = "room-leave"
	EventMessageSend        = "message-send"
	EventTransportCreate    = "transport-create"
	EventTransportConnect   = "transport-connect"
	EventProduceMedia       = "produce-media"
	EventConsumeMedia       = "consume-media"
	EventRouterCapabilities = "router-rtp-capabilities"
	EventWhoAmI             = "whoami"
	EventPing               = "ping"
)

const (
	replyAck   = "ack"
	replyPong  = "pong"
	replyError = "error"

	errBadPayload   = "bad_payload"
	errUnknownEvent = "unknown_event"
	errRateLimited  = "Too many messages"
)

var errUnknownType = errors.New("unknown event type")

// envelope is every frame a client sends. ID is echoed in the ack and may
// be any JSON value.
type envelope struct {
	Type string          `json:"type"`
	ID   json.RawMessage `json:"id,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

type ack struct {
	Type string          `json:"type"`
	ID   json.RawMessage `json:"id,omitempty"`
	Data any             `json:"data"`
}

type errorReply struct {
	Error string `json:"error"`
}

type roomJoin struct {
	RoomID string `json:"roomId"`
}

type roomLeave struct {
	RoomID string `json:"roomId"`
}

type messageSend struct {
	Content string `json:"content"`
}

type transportCreate struct {
	Direction string `json:"direction"`
}

type transportConnect struct {
	Direction      string          `json:"direction"`
	DTLSParameters json.RawMessage `json:"dtlsParameters"`
	ICEParameters  json.RawMessage `json:"iceParameters,omitempty"`
}

type produceMedia struct {
	RTPParameters      json.RawMessage `json:"rtpParameters"`
	ClientCapabilities json.RawMessage `json:"clientCapabilities"`
	Kind               string          `json:"kind"`
}

type consumeMedia struct {
	ClientCapabilities json.RawMessage `json:"clientCapabilities"`
	ProducerID         string          `json:"producerId"`
}

type routerCapabilities struct{}

type whoAmI struct{}

type ping struct{}

// decodeRequest turns a raw envelope into one of the request structs above.
func decodeRequest(env envelope) (any, error) {
	var req any
	switch env.Type {
	case EventRoomJoin:
		req = &roomJoin{}
	case EventRoomLeave:
		req = &roomLeave{}
	case EventMessageSend:
		req = &messageSend{}
	case EventTransportCreate:
		req = &transportCreate{}
	case EventTransportConnect:
		req = &transportConnect{}
	case EventProduceMedia:
		req = &produceMedia{}
	case EventConsumeMedia:
		req = &consumeMedia{}
	case EventRouterCapabilities:
		return &routerCapabilities{}, nil
	case EventWhoAmI:
		return &whoAmI{}, nil
	case EventPing:
		return &ping{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownType, env.Type)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return req, nil
	}
	if err := json.Unmarshal(env.Data, req); err != nil {
		return nil, fmt.Errorf("decode %s: %w", env.Type, err)
	}
	return req, nil
}
