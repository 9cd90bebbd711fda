package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrMessageEmpty = errors.New("message content empty")

type MessageID string

// Message is immutable once created.
type Message struct {
	ID        MessageID `json:"id"`
	Author    User      `json:"author"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

func NewMessage(author User, content string) (*Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrMessageEmpty
	}
	return &Message{
		ID:        MessageID(uuid.NewString()),
		Author:    author,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}, nil
}
