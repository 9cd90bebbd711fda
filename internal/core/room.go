package core

import (
	"slices"
	"sync"

	"github.com/dkeye/huddle/internal/domain"
	"github.com/rs/zerolog/log"
)

// Room is a threadsafe in-memory room.
// It never closes adapter-owned resources; evicted handles are returned to the caller.
type Room struct {
	meta domain.Room

	mu         sync.RWMutex
	users      []domain.User
	messages   []domain.Message
	transports []Transport
	producers  []Producer
}

func NewRoom(meta domain.Room) *Room {
	return &Room{meta: meta}
}

func (r *Room) ID() domain.RoomID     { return r.meta.ID }
func (r *Room) Name() domain.RoomName { return r.meta.Name }

func (r *Room) AddUser(u domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.indexOfUser(u.ID) >= 0 {
		return ErrUserAlreadyInRoom
	}
	r.users = append(r.users, u)
	log.Info().Str("module", "core.room").Str("room_id", string(r.meta.ID)).Str("user_id", string(u.ID)).Msg("user added")
	return nil
}

// RemoveUser drops the user and evicts every transport tagged with its id.
// Producers stay until they are removed explicitly.
func (r *Room) RemoveUser(uid domain.UserID) ([]Transport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.indexOfUser(uid)
	if i < 0 {
		return nil, ErrNotMember
	}
	r.users = slices.Delete(r.users, i, i+1)

	var evicted []Transport
	r.transports = slices.DeleteFunc(r.transports, func(t Transport) bool {
		if t.Owner() == uid {
			evicted = append(evicted, t)
			return true
		}
		return false
	})
	log.Info().
		Str("module", "core.room").
		Str("room_id", string(r.meta.ID)).
		Str("user_id", string(uid)).
		Int("evicted_transports", len(evicted)).
		Msg("user removed")
	return evicted, nil
}

func (r *Room) HasUser(uid domain.UserID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.indexOfUser(uid) >= 0
}

func (r *Room) UserCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}

func (r *Room) AddMessage(m domain.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, m)
}

func (r *Room) Messages() []domain.Message {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.messages)
}

// AddProducer inserts by id, replacing a handle with the same id.
func (r *Room) AddProducer(p Producer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.producers = slices.DeleteFunc(r.producers, func(x Producer) bool { return x.ID() == p.ID() })
	r.producers = append(r.producers, p)
}

func (r *Room) RemoveProducer(id ProducerID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := slices.IndexFunc(r.producers, func(p Producer) bool { return p.ID() == id })
	if i < 0 {
		return ErrProducerNotFound
	}
	r.producers = slices.Delete(r.producers, i, i+1)
	return nil
}

func (r *Room) HasProducer(id ProducerID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.ContainsFunc(r.producers, func(p Producer) bool { return p.ID() == id })
}

// AddTransport inserts by id, replacing a handle with the same id.
func (r *Room) AddTransport(t Transport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transports = slices.DeleteFunc(r.transports, func(x Transport) bool { return x.ID() == t.ID() })
	r.transports = append(r.transports, t)
}

func (r *Room) RemoveTransport(id TransportID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := slices.IndexFunc(r.transports, func(t Transport) bool { return t.ID() == id })
	if i < 0 {
		return ErrTransportNotFound
	}
	r.transports = slices.Delete(r.transports, i, i+1)
	return nil
}

func (r *Room) HasTransport(id TransportID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.ContainsFunc(r.transports, func(t Transport) bool { return t.ID() == id })
}

func (r *Room) Projection() RoomProjection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p := RoomProjection{
		ID:         r.meta.ID,
		Name:       r.meta.Name,
		Users:      slices.Clone(r.users),
		Messages:   slices.Clone(r.messages),
		Transports: make([]TransportID, 0, len(r.transports)),
		Producers:  make([]ProducerInfo, 0, len(r.producers)),
	}
	if p.Users == nil {
		p.Users = []domain.User{}
	}
	if p.Messages == nil {
		p.Messages = []domain.Message{}
	}
	for _, t := range r.transports {
		p.Transports = append(p.Transports, t.ID())
	}
	for _, pr := range r.producers {
		p.Producers = append(p.Producers, ProducerInfo{ProducerID: pr.ID(), UserID: pr.Owner()})
	}
	return p
}

func (r *Room) Info() RoomInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return RoomInfo{ID: r.meta.ID, Name: r.meta.Name, UserCount: len(r.users)}
}

func (r *Room) indexOfUser(uid domain.UserID) int {
	return slices.IndexFunc(r.users, func(u domain.User) bool { return u.ID == uid })
}
