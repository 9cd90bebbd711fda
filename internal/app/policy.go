package app

import "github.com/dkeye/huddle/internal/domain"

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	DropFrame
	KickMember
)

// Policy decides what happens to a member whose signal queue is full.
type Policy interface {
	OnBackPressure(room domain.RoomID, member domain.UserID) BackpressureAction
}

// SimplePolicy drops the slow member's connection.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(domain.RoomID, domain.UserID) BackpressureAction {
	return KickMember
}

// LenientPolicy loses the event and keeps the member.
type LenientPolicy struct{}

func (LenientPolicy) OnBackPressure(domain.RoomID, domain.UserID) BackpressureAction {
	return DropFrame
}
