package app

import (
	"context"
	"slices"
	"sync"

	"github.com/dkeye/huddle/internal/core"
	"github.com/dkeye/huddle/internal/domain"
	"github.com/rs/zerolog/log"
)

type sessionEntry struct {
	Session *core.Session
	Cancel  context.CancelFunc
}

// Registry is the set of connected users, keyed by user id.
type Registry struct {
	mu       sync.RWMutex
	sessions map[domain.UserID]*sessionEntry
	order    []domain.UserID
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[domain.UserID]*sessionEntry),
	}
}

// Register inserts a fresh session. cancel tears down its connection and may be nil.
func (r *Registry) Register(sess *core.Session, cancel context.CancelFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := sess.ID()
	if _, ok := r.sessions[id]; ok {
		return core.ErrSessionExists.WithDetail(string(id))
	}
	r.sessions[id] = &sessionEntry{Session: sess, Cancel: cancel}
	r.order = append(r.order, id)
	log.Info().Str("module", "app.registry").Str("user_id", string(id)).Str("username", sess.User().Username).Msg("registered session")
	return nil
}

func (r *Registry) Unregister(id domain.UserID) (*core.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	delete(r.sessions, id)
	r.order = slices.DeleteFunc(r.order, func(x domain.UserID) bool { return x == id })
	log.Info().Str("module", "app.registry").Str("user_id", string(id)).Msg("unregistered session")
	return e.Session, true
}

func (r *Registry) Get(id domain.UserID) (*core.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.sessions[id]; ok {
		return e.Session, true
	}
	return nil, false
}

// All lists sessions in registration order.
func (r *Registry) All() []*core.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*core.Session, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.sessions[id].Session)
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Cancel asks the connection owning id to shut down.
func (r *Registry) Cancel(id domain.UserID) bool {
	r.mu.RLock()
	e, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("user_id", string(id)).Msg("canceled session")
	return true
}
