package signal

import (
	"context"
	"encoding/json"

	"github.com/dkeye/huddle/internal/core"
	"github.com/dkeye/huddle/internal/domain"
)

// Acks wrap their payload under a named key, as the browser client expects.

type joinReply struct {
	Room core.RoomProjection `json:"room"`
}

type messageReply struct {
	Message domain.Message `json:"message"`
}

type transportReply struct {
	Transport json.RawMessage `json:"transport"`
}

type produceReply struct {
	ProducerID core.ProducerID `json:"produceId"`
}

type whoAmIReply struct {
	User     domain.User     `json:"user"`
	RoomID   domain.RoomID   `json:"roomId,omitempty"`
	RoomName domain.RoomName `json:"roomName,omitempty"`
}

// dispatch runs one decoded request. A nil result with a nil error is
// acknowledged with an empty object.
func (ctl *Controller) dispatch(ctx context.Context, cl *client, req any) (any, error) {
	uid := cl.user.ID
	switch r := req.(type) {
	case *roomJoin:
		proj, err := ctl.Orch.Join(uid, domain.RoomID(r.RoomID))
		if err != nil {
			return nil, err
		}
		return joinReply{Room: proj}, nil
	case *roomLeave:
		ctl.Orch.Leave(uid, domain.RoomID(r.RoomID))
		return nil, nil
	case *messageSend:
		if !ctl.limiter.Allow(uid) {
			return nil, errTooManyMessages
		}
		msg, err := ctl.Orch.SendMessage(uid, r.Content)
		if err != nil {
			return nil, err
		}
		return messageReply{Message: msg}, nil

	case *transportCreate:
		ctx, cancel := ctl.negotiation(ctx)
		defer cancel()
		params, err := ctl.Orch.CreateTransport(ctx, uid, r.Direction)
		if err != nil {
			return nil, err
		}
		return transportReply{Transport: params}, nil
	case *transportConnect:
		ctx, cancel := ctl.negotiation(ctx)
		defer cancel()
		return nil, ctl.Orch.ConnectTransport(ctx, uid, r.Direction, r.DTLSParameters, r.ICEParameters)
	case *produceMedia:
		ctx, cancel := ctl.negotiation(ctx)
		defer cancel()
		id, err := ctl.Orch.Produce(ctx, uid, r.RTPParameters, r.ClientCapabilities, r.Kind)
		if err != nil {
			return nil, err
		}
		return produceReply{ProducerID: id}, nil
	case *consumeMedia:
		ctx, cancel := ctl.negotiation(ctx)
		defer cancel()
		return ctl.Orch.Consume(ctx, uid, r.ClientCapabilities, r.ProducerID)
	case *routerCapabilities:
		return ctl.Orch.RouterCapabilities(), nil

	case *whoAmI:
		return ctl.whoAmI(uid)
	}
	return nil, errUnknownType
}

func (ctl *Controller) whoAmI(uid domain.UserID) (whoAmIReply, error) {
	sess, ok := ctl.Orch.Sessions.Get(uid)
	if !ok {
		return whoAmIReply{}, core.ErrSessionNotFound
	}
	resp := whoAmIReply{User: sess.User()}
	if roomID, ok := sess.RoomID(); ok {
		if room, ok := ctl.Orch.Rooms.Get(roomID); ok {
			resp.RoomID = roomID
			resp.RoomName = room.Name()
		}
	}
	return resp, nil
}
