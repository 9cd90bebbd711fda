package app

import (
	"fmt"
	"iter"

	"github.com/dkeye/huddle/internal/core"
	"github.com/dkeye/huddle/internal/domain"
	"github.com/rs/zerolog/log"
)

// RoomManager holds the fixed pool of rooms created at startup.
// The pool never changes after construction, so reads take no lock.
type RoomManager struct {
	rooms map[domain.RoomID]*core.Room
	order []*core.Room
}

func NewRoomManager(n int) (*RoomManager, error) {
	if n < 1 {
		return nil, fmt.Errorf("room pool size must be positive, got %d", n)
	}
	m := &RoomManager{
		rooms: make(map[domain.RoomID]*core.Room, n),
		order: make([]*core.Room, 0, n),
	}
	for range n {
		meta, err := domain.NewRoom()
		if err != nil {
			return nil, err
		}
		room := core.NewRoom(*meta)
		m.rooms[meta.ID] = room
		m.order = append(m.order, room)
		log.Info().Str("module", "app.rooms").Str("room_id", string(meta.ID)).Str("name", string(meta.Name)).Msg("room created")
	}
	return m, nil
}

func (m *RoomManager) Get(id domain.RoomID) (*core.Room, bool) {
	r, ok := m.rooms[id]
	return r, ok
}

// All yields every room in creation order. Each call starts a new pass.
func (m *RoomManager) All() iter.Seq[*core.Room] {
	return func(yield func(*core.Room) bool) {
		for _, r := range m.order {
			if !yield(r) {
				return
			}
		}
	}
}

func (m *RoomManager) Len() int { return len(m.order) }

func (m *RoomManager) List() []core.RoomInfo {
	out := make([]core.RoomInfo, 0, len(m.order))
	for r := range m.All() {
		out = append(out, r.Info())
	}
	return out
}

func (m *RoomManager) Projections() []core.RoomProjection {
	out := make([]core.RoomProjection, 0, len(m.order))
	for r := range m.All() {
		out = append(out, r.Projection())
	}
	return out
}
