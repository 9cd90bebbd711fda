package domain

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/pion/randutil"
)

type (
	RoomName string
	RoomID   string
)

const (
	roomNamePrefix = "room-"
	roomNameLen    = 25
	roomNameRunes  = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

type Room struct {
	ID   RoomID   `json:"id"`
	Name RoomName `json:"name"`
}

// NewRoom generates a fresh id and a random label. Labels are not unique.
func NewRoom() (*Room, error) {
	suffix, err := randutil.GenerateCryptoRandomString(roomNameLen, roomNameRunes)
	if err != nil {
		return nil, fmt.Errorf("generate room name: %w", err)
	}
	return &Room{
		ID:   RoomID(uuid.NewString()),
		Name: RoomName(roomNamePrefix + suffix),
	}, nil
}
