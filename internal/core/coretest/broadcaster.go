package coretest

import (
	"slices"
	"sync"

	"github.com/dkeye/huddle/internal/core"
	"github.com/dkeye/huddle/internal/domain"
)

// Delivery is one event as seen by one recipient.
type Delivery struct {
	To    domain.UserID
	Event core.Event
}

// Broadcaster records every delivery instead of writing to a socket.
type Broadcaster struct {
	mu        sync.Mutex
	groups    map[domain.UserID][]domain.RoomID
	slow      map[domain.UserID]bool
	delivered []Delivery
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		groups: make(map[domain.UserID][]domain.RoomID),
		slow:   make(map[domain.UserID]bool),
	}
}

// MarkSlow makes every later delivery to uid fail with backpressure.
func (b *Broadcaster) MarkSlow(uid domain.UserID) {
	b.mu.Lock()
	b.slow[uid] = true
	b.mu.Unlock()
}

func (b *Broadcaster) JoinGroup(uid domain.UserID, room domain.RoomID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !slices.Contains(b.groups[uid], room) {
		b.groups[uid] = append(b.groups[uid], room)
	}
}

func (b *Broadcaster) LeaveGroup(uid domain.UserID, room domain.RoomID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.groups[uid] = slices.DeleteFunc(b.groups[uid], func(r domain.RoomID) bool { return r == room })
	if len(b.groups[uid]) == 0 {
		delete(b.groups, uid)
	}
}

func (b *Broadcaster) InGroup(uid domain.UserID, room domain.RoomID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Contains(b.groups[uid], room)
}

func (b *Broadcaster) Groups(uid domain.UserID) []domain.RoomID {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.groups[uid])
}

func (b *Broadcaster) BroadcastFrom(from domain.UserID, room domain.RoomID, ev core.Event) core.PublishResult {
	b.mu.Lock()
	defer b.mu.Unlock()
	var res core.PublishResult
	for uid, rooms := range b.groups {
		if uid == from || !slices.Contains(rooms, room) {
			continue
		}
		if b.slow[uid] {
			res.Dropped = append(res.Dropped, uid)
			continue
		}
		b.delivered = append(b.delivered, Delivery{To: uid, Event: ev})
		res.SendTo++
	}
	return res
}

func (b *Broadcaster) Send(to domain.UserID, ev core.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.delivered = append(b.delivered, Delivery{To: to, Event: ev})
	return nil
}

// Received returns the events delivered to uid, optionally filtered by type.
func (b *Broadcaster) Received(uid domain.UserID, types ...string) []core.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []core.Event
	for _, d := range b.delivered {
		if d.To != uid {
			continue
		}
		if len(types) > 0 && !slices.Contains(types, d.Event.Type) {
			continue
		}
		out = append(out, d.Event)
	}
	return out
}

// All returns every delivery of the given type.
func (b *Broadcaster) All(typ string) []Delivery {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Delivery
	for _, d := range b.delivered {
		if d.Event.Type == typ {
			out = append(out, d)
		}
	}
	return out
}
