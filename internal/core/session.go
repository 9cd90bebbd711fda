package core

import (
	"encoding/json"
	"maps"
	"slices"
	"sync"

	"github.com/dkeye/huddle/internal/domain"
)

// Session is the runtime state of one connected user.
// The room is held as an id and resolved through the room registry.
type Session struct {
	user domain.User

	mu           sync.Mutex
	roomID       domain.RoomID
	capabilities json.RawMessage
	send         Transport
	recv         Transport
	producers    map[ProducerID]Producer
	consumers    map[ConsumerID]Consumer
	closed       bool
}

func NewSession(user domain.User) *Session {
	return &Session{
		user:      user,
		producers: make(map[ProducerID]Producer),
		consumers: make(map[ConsumerID]Consumer),
	}
}

func (s *Session) ID() domain.UserID { return s.user.ID }
func (s *Session) User() domain.User { return s.user }

func (s *Session) RoomID() (domain.RoomID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roomID, s.roomID != ""
}

func (s *Session) SetRoom(id domain.RoomID) {
	s.mu.Lock()
	s.roomID = id
	s.mu.Unlock()
}

// ClearRoom unsets the room only if it still points at id.
func (s *Session) ClearRoom(id domain.RoomID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.roomID != id {
		return false
	}
	s.roomID = ""
	return true
}

func (s *Session) Capabilities() json.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.capabilities
}

func (s *Session) SetCapabilities(caps json.RawMessage) {
	s.mu.Lock()
	s.capabilities = caps
	s.mu.Unlock()
}

func (s *Session) Transport(dir Direction) (Transport, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.slot(dir)
	return *t, *t != nil
}

// SetTransport stores t in its direction slot and returns what it replaced.
// A closed session refuses new handles.
func (s *Session) SetTransport(t Transport) (prev Transport, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, false
	}
	slot := s.slot(t.Direction())
	prev, *slot = *slot, t
	return prev, true
}

// ClearTransport empties the slot if it still holds the transport with id.
func (s *Session) ClearTransport(dir Direction, id TransportID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot := s.slot(dir)
	if *slot == nil || (*slot).ID() != id {
		return false
	}
	*slot = nil
	return true
}

func (s *Session) AddProducer(p Producer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.producers[p.ID()] = p
	return true
}

func (s *Session) RemoveProducer(id ProducerID) {
	s.mu.Lock()
	delete(s.producers, id)
	s.mu.Unlock()
}

func (s *Session) Producers() []Producer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Collect(maps.Values(s.producers))
}

func (s *Session) AddConsumer(c Consumer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.consumers[c.ID()] = c
	return true
}

func (s *Session) Consumers() []Consumer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Collect(maps.Values(s.consumers))
}

func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Resources is everything a session owns on the media engine.
type Resources struct {
	Transports []Transport
	Producers  []Producer
	Consumers  []Consumer
}

// Close marks the session closed and hands back its media resources
// exactly once. Later calls return an empty set.
func (s *Session) Close() Resources {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Resources{}
	}
	s.closed = true
	var res Resources
	for _, t := range []Transport{s.send, s.recv} {
		if t != nil {
			res.Transports = append(res.Transports, t)
		}
	}
	res.Producers = slices.Collect(maps.Values(s.producers))
	res.Consumers = slices.Collect(maps.Values(s.consumers))
	s.send, s.recv = nil, nil
	clear(s.producers)
	clear(s.consumers)
	return res
}

func (s *Session) slot(dir Direction) *Transport {
	if dir == DirectionSend {
		return &s.send
	}
	return &s.recv
}
