package core

import "github.com/dkeye/huddle/internal/domain"

// ProducerInfo pairs a producer with the user who owns it.
type ProducerInfo struct {
	ProducerID ProducerID    `json:"producerId"`
	UserID     domain.UserID `json:"userId"`
}

// RoomProjection is a read-only snapshot of a room for APIs (no handles).
type RoomProjection struct {
	ID         domain.RoomID    `json:"id"`
	Name       domain.RoomName  `json:"name"`
	Users      []domain.User    `json:"users"`
	Messages   []domain.Message `json:"messages"`
	Transports []TransportID    `json:"transports"`
	Producers  []ProducerInfo   `json:"producers"`
}

// RoomInfo is the short form used for listings.
type RoomInfo struct {
	ID        domain.RoomID   `json:"id"`
	Name      domain.RoomName `json:"name"`
	UserCount int             `json:"userCount"`
}
