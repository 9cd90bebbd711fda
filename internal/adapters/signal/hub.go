package signal

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/dkeye/huddle/internal/core"
	"github.com/dkeye/huddle/internal/domain"
	"github.com/rs/zerolog/log"
)

var errNotAttached = errors.New("no connection for user")

// Hub maps users to their live connection and keeps the per-room groups
// events are fanned out to.
type Hub struct {
	mu     sync.RWMutex
	conns  map[domain.UserID]core.SignalConnection
	groups map[domain.RoomID]map[domain.UserID]struct{}
	joined map[domain.UserID]map[domain.RoomID]struct{}
}

var _ core.Broadcaster = (*Hub)(nil)

func NewHub() *Hub {
	return &Hub{
		conns:  make(map[domain.UserID]core.SignalConnection),
		groups: make(map[domain.RoomID]map[domain.UserID]struct{}),
		joined: make(map[domain.UserID]map[domain.RoomID]struct{}),
	}
}

// Attach binds conn to uid. It fails if uid already has a connection.
func (h *Hub) Attach(uid domain.UserID, conn core.SignalConnection) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[uid]; ok {
		return false
	}
	h.conns[uid] = conn
	return true
}

// Detach drops uid's connection if it is still conn, along with any groups.
func (h *Hub) Detach(uid domain.UserID, conn core.SignalConnection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cur, ok := h.conns[uid]; !ok || cur != conn {
		return
	}
	delete(h.conns, uid)
	for room := range h.joined[uid] {
		h.removeLocked(uid, room)
	}
	delete(h.joined, uid)
}

func (h *Hub) Attached(uid domain.UserID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.conns[uid]
	return ok
}

func (h *Hub) JoinGroup(uid domain.UserID, room domain.RoomID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.groups[room] == nil {
		h.groups[room] = make(map[domain.UserID]struct{})
	}
	h.groups[room][uid] = struct{}{}
	if h.joined[uid] == nil {
		h.joined[uid] = make(map[domain.RoomID]struct{})
	}
	h.joined[uid][room] = struct{}{}
}

func (h *Hub) LeaveGroup(uid domain.UserID, room domain.RoomID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(uid, room)
	if rooms, ok := h.joined[uid]; ok {
		delete(rooms, room)
		if len(rooms) == 0 {
			delete(h.joined, uid)
		}
	}
}

func (h *Hub) removeLocked(uid domain.UserID, room domain.RoomID) {
	members, ok := h.groups[room]
	if !ok {
		return
	}
	delete(members, uid)
	if len(members) == 0 {
		delete(h.groups, room)
	}
}

func (h *Hub) InGroup(uid domain.UserID, room domain.RoomID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.joined[uid][room]
	return ok
}

func (h *Hub) Groups(uid domain.UserID) []domain.RoomID {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]domain.RoomID, 0, len(h.joined[uid]))
	for room := range h.joined[uid] {
		out = append(out, room)
	}
	slices.Sort(out)
	return out
}

func (h *Hub) BroadcastFrom(from domain.UserID, room domain.RoomID, ev core.Event) core.PublishResult {
	var res core.PublishResult
	frame, err := encodeEvent(ev)
	if err != nil {
		log.Error().Err(err).Str("module", "signal.hub").Str("event", ev.Type).Msg("encode event")
		return res
	}

	h.mu.RLock()
	targets := make(map[domain.UserID]core.SignalConnection, len(h.groups[room]))
	for uid := range h.groups[room] {
		if uid == from {
			continue
		}
		if conn, ok := h.conns[uid]; ok {
			targets[uid] = conn
		}
	}
	h.mu.RUnlock()

	for uid, conn := range targets {
		switch err := conn.TrySend(frame); {
		case err == nil:
			res.SendTo++
		case errors.Is(err, ErrBackpressure):
			res.Dropped = append(res.Dropped, uid)
		default:
			log.Debug().Err(err).Str("module", "signal.hub").Str("user_id", string(uid)).Msg("skip closed connection")
		}
	}
	return res
}

func (h *Hub) Send(to domain.UserID, ev core.Event) error {
	frame, err := encodeEvent(ev)
	if err != nil {
		return err
	}
	h.mu.RLock()
	conn, ok := h.conns[to]
	h.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", errNotAttached, to)
	}
	return conn.TrySend(frame)
}

func encodeEvent(ev core.Event) (core.Frame, error) {
	b, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", ev.Type, err)
	}
	return b, nil
}
