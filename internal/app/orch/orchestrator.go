package orch

import (
	"context"

	"github.com/dkeye/huddle/internal/app"
	"github.com/dkeye/huddle/internal/core"
	"github.com/dkeye/huddle/internal/domain"
	"github.com/rs/zerolog/log"
)

// Orchestrator runs the membership and negotiation protocols.
// Calls for one user are expected to arrive one at a time; engine
// callbacks may arrive from any goroutine.
type Orchestrator struct {
	Sessions    *app.Registry
	Rooms       *app.RoomManager
	Engine      core.MediaEngine
	Broadcaster core.Broadcaster
	Policy      app.Policy
}

// Connect registers a session for user and sends it the room list.
func (o *Orchestrator) Connect(user domain.User, cancel context.CancelFunc) (*core.Session, error) {
	sess := core.NewSession(user)
	if err := o.Sessions.Register(sess, cancel); err != nil {
		return nil, err
	}
	if err := o.Broadcaster.Send(user.ID, core.Event{Type: core.EventRoomList, Data: o.Rooms.Projections()}); err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("user_id", string(user.ID)).Msg("room list not delivered")
	}
	return sess, nil
}

func (o *Orchestrator) broadcast(from domain.UserID, room domain.RoomID, ev core.Event) {
	res := o.Broadcaster.BroadcastFrom(from, room, ev)
	log.Debug().
		Str("module", "orch").
		Str("event", ev.Type).
		Str("room_id", string(room)).
		Int("sent_to", res.SendTo).
		Int("dropped", len(res.Dropped)).
		Msg("broadcast result")
	if o.Policy == nil {
		return
	}
	for _, slow := range res.Dropped {
		switch o.Policy.OnBackPressure(room, slow) {
		case app.KickMember:
			log.Warn().Str("module", "orch").Str("user_id", string(slow)).Msg("slow member, closing connection")
			o.Sessions.Cancel(slow)
		case app.DropFrame, app.NoAction:
		}
	}
}
