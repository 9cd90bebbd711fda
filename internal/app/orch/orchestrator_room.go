package orch

import (
	"errors"
	"slices"
	"strings"

	"github.com/dkeye/huddle/internal/core"
	"github.com/dkeye/huddle/internal/domain"
	"github.com/rs/zerolog/log"
)

// Join puts uid into roomID. A user already in another room leaves it first.
func (o *Orchestrator) Join(uid domain.UserID, roomID domain.RoomID) (core.RoomProjection, error) {
	sess, ok := o.Sessions.Get(uid)
	if !ok {
		return core.RoomProjection{}, core.ErrSessionNotFound
	}
	if o.Broadcaster.InGroup(uid, roomID) {
		return core.RoomProjection{}, core.ErrAlreadyInRoom
	}
	room, ok := o.Rooms.Get(roomID)
	if !ok {
		return core.RoomProjection{}, core.ErrRoomNotFound
	}

	if cur, ok := sess.RoomID(); ok && cur != roomID {
		log.Info().Str("module", "orch").Str("user_id", string(uid)).Str("from_room", string(cur)).Msg("leaving current room before join")
		o.Leave(uid, cur)
	}

	if err := room.AddUser(sess.User()); err != nil {
		return core.RoomProjection{}, err
	}
	sess.SetRoom(roomID)
	o.Broadcaster.JoinGroup(uid, roomID)
	log.Info().Str("module", "orch").Str("user_id", string(uid)).Str("room_id", string(roomID)).Msg("joined room")

	o.broadcast(uid, roomID, core.Event{Type: core.EventUserJoined, Data: sess.User()})
	return room.Projection(), nil
}

// Leave removes uid from roomID. Unknown rooms and non-members are no-ops.
func (o *Orchestrator) Leave(uid domain.UserID, roomID domain.RoomID) {
	room, ok := o.Rooms.Get(roomID)
	if !ok {
		log.Warn().Str("module", "orch").Str("user_id", string(uid)).Str("room_id", string(roomID)).Msg("leave: unknown room")
		return
	}

	user := domain.User{ID: uid}
	sess, hasSession := o.Sessions.Get(uid)
	if hasSession {
		user = sess.User()
	}

	evicted, err := room.RemoveUser(uid)
	member := err == nil
	if err != nil && !errors.Is(err, core.ErrNotMember) {
		log.Error().Err(err).Str("module", "orch").Str("user_id", string(uid)).Msg("leave: remove user")
	}
	if hasSession {
		sess.ClearRoom(roomID)
	}
	o.Broadcaster.LeaveGroup(uid, roomID)

	if !member {
		log.Debug().Str("module", "orch").Str("user_id", string(uid)).Str("room_id", string(roomID)).Msg("leave: not a member")
		return
	}
	log.Info().
		Str("module", "orch").
		Str("user_id", string(uid)).
		Str("room_id", string(roomID)).
		Int("evicted_transports", len(evicted)).
		Msg("left room")
	o.broadcast(uid, roomID, core.Event{Type: core.EventUserLeft, Data: user})
}

// Disconnect tears down everything uid holds. Safe to repeat.
func (o *Orchestrator) Disconnect(uid domain.UserID) {
	rooms := o.Broadcaster.Groups(uid)
	sess, ok := o.Sessions.Get(uid)
	if ok {
		if cur, inRoom := sess.RoomID(); inRoom && !slices.Contains(rooms, cur) {
			rooms = append(rooms, cur)
		}
	}
	for _, id := range rooms {
		o.Leave(uid, id)
	}
	if !ok {
		return
	}

	o.releaseMedia(uid, sess.Close())
	o.Sessions.Unregister(uid)
	log.Info().Str("module", "orch").Str("user_id", string(uid)).Msg("disconnected")
}

func (o *Orchestrator) SendMessage(uid domain.UserID, content string) (domain.Message, error) {
	if strings.TrimSpace(content) == "" {
		return domain.Message{}, core.ErrMissingContent
	}
	sess, ok := o.Sessions.Get(uid)
	if !ok {
		return domain.Message{}, core.ErrSessionNotFound
	}
	roomID, ok := sess.RoomID()
	if !ok {
		return domain.Message{}, core.ErrNotMember
	}
	room, ok := o.Rooms.Get(roomID)
	if !ok {
		return domain.Message{}, core.ErrUnknownRoom
	}

	msg, err := domain.NewMessage(sess.User(), content)
	if err != nil {
		return domain.Message{}, core.ErrMissingContent
	}
	room.AddMessage(*msg)
	o.broadcast(uid, roomID, core.Event{Type: core.EventMessageNew, Data: msg})
	return *msg, nil
}
