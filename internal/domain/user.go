// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

const (
	MaxUsernameLen = 36
	MaxAvatarLen   = 2048
)

var (
	ErrUsernameTooLong = errors.New("username too long")
	ErrUsernameEmpty   = errors.New("username empty")
	ErrAvatarEmpty     = errors.New("avatar empty")
	ErrAvatarTooLong   = errors.New("avatar too long")
)

type UserID string

// User is the public projection of a participant.
type User struct {
	ID       UserID `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

// NewUser requires both identity fields.
func NewUser(username, avatar string) (*User, error) {
	username = strings.TrimSpace(username)
	avatar = strings.TrimSpace(avatar)
	switch {
	case username == "":
		return nil, ErrUsernameEmpty
	case len(username) > MaxUsernameLen:
		return nil, ErrUsernameTooLong
	case avatar == "":
		return nil, ErrAvatarEmpty
	case len(avatar) > MaxAvatarLen:
		return nil, ErrAvatarTooLong
	}
	return &User{ID: UserID(uuid.NewString()), Username: username, Avatar: avatar}, nil
}
