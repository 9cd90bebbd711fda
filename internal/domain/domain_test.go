package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestNewUser(t *testing.T) {
	tests := []struct {
		name     string
		username string
		avatar   string
		wantErr  error
	}{
		{"ok", "alice", "https://example.org/a.png", nil},
		{"trimmed", "  bob ", " b.png ", nil},
		{"no username", "", "a.png", ErrUsernameEmpty},
		{"blank username", "   ", "a.png", ErrUsernameEmpty},
		{"no avatar", "alice", "", ErrAvatarEmpty},
		{"long username", strings.Repeat("x", MaxUsernameLen+1), "a.png", ErrUsernameTooLong},
		{"long avatar", "alice", strings.Repeat("x", MaxAvatarLen+1), ErrAvatarTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := NewUser(tt.username, tt.avatar)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("NewUser() err = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}
			if u.ID == "" {
				t.Fatal("empty user id")
			}
			if u.Username != strings.TrimSpace(tt.username) || u.Avatar != strings.TrimSpace(tt.avatar) {
				t.Fatalf("unexpected user %+v", u)
			}
		})
	}
}

func TestNewUserUniqueIDs(t *testing.T) {
	a, _ := NewUser("a", "a.png")
	b, _ := NewUser("a", "a.png")
	if a.ID == b.ID {
		t.Fatal("ids must differ")
	}
}

func TestNewRoom(t *testing.T) {
	r, err := NewRoom()
	if err != nil {
		t.Fatal(err)
	}
	if r.ID == "" {
		t.Fatal("empty room id")
	}
	name := string(r.Name)
	if !strings.HasPrefix(name, "room-") || len(name) != len("room-")+25 {
		t.Fatalf("unexpected room name %q", name)
	}
}

func TestNewMessage(t *testing.T) {
	author := User{ID: "u1", Username: "alice", Avatar: "a.png"}

	m, err := NewMessage(author, "  hello \n")
	if err != nil {
		t.Fatal(err)
	}
	if m.Content != "hello" {
		t.Fatalf("content = %q", m.Content)
	}
	if m.Author != author || m.ID == "" || m.CreatedAt.IsZero() {
		t.Fatalf("unexpected message %+v", m)
	}

	if _, err := NewMessage(author, " \t "); !errors.Is(err, ErrMessageEmpty) {
		t.Fatalf("err = %v, want ErrMessageEmpty", err)
	}
}
