package core

import "github.com/dkeye/huddle/internal/domain"

// Frame is a raw encoded payload.
type Frame []byte

// SignalConnection abstracts for a system messaging transport
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// Outbound event names.
const (
	EventRoomList    = "room-list"
	EventUserJoined  = "user-joined"
	EventUserLeft    = "user-left"
	EventMessageNew  = "message-new"
	EventNewProducer = "new-producer"
)

type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// PublishResult reports delivery stats/backpressure to orchestrator.
type PublishResult struct {
	SendTo  int
	Dropped []domain.UserID
}

// Broadcaster keeps connection-level room groups and fans events out to them.
// Group membership is tracked separately from Room.users; the orchestrator
// keeps both in step.
type Broadcaster interface {
	JoinGroup(uid domain.UserID, room domain.RoomID)
	LeaveGroup(uid domain.UserID, room domain.RoomID)
	InGroup(uid domain.UserID, room domain.RoomID) bool
	Groups(uid domain.UserID) []domain.RoomID
	// BroadcastFrom delivers ev to every member of room except from.
	BroadcastFrom(from domain.UserID, room domain.RoomID, ev Event) PublishResult
	Send(to domain.UserID, ev Event) error
}
