// Package coretest provides in-memory fakes of the media engine and the
// broadcast channel for tests.
package coretest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dkeye/huddle/internal/core"
	"github.com/dkeye/huddle/internal/domain"
)

// Engine is a media engine that keeps every handle it hands out.
type Engine struct {
	Caps json.RawMessage

	mu         sync.Mutex
	seq        int
	refuse     map[core.ProducerID]bool
	Transports []*Transport
	Producers  []*Producer
	Consumers  []*Consumer
	Connected  []core.TransportID
}

func NewEngine() *Engine {
	return &Engine{
		Caps:   json.RawMessage(`{"codecs":[{"kind":"audio","mimeType":"audio/opus","clockRate":48000,"channels":2}]}`),
		refuse: make(map[core.ProducerID]bool),
	}
}

// Refuse makes CanConsume report false for id.
func (e *Engine) Refuse(id core.ProducerID) {
	e.mu.Lock()
	e.refuse[id] = true
	e.mu.Unlock()
}

func (e *Engine) next(prefix string) string {
	e.seq++
	return fmt.Sprintf("%s-%d", prefix, e.seq)
}

func (e *Engine) RTPCapabilities() json.RawMessage { return e.Caps }

func (e *Engine) CreateTransport(_ context.Context, opts core.TransportOptions) (core.Transport, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t := &Transport{id: core.TransportID(e.next("transport")), owner: opts.Owner, dir: opts.Direction}
	e.Transports = append(e.Transports, t)
	return t, nil
}

func (e *Engine) ConnectTransport(_ context.Context, t core.Transport, _ core.ConnectParams) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Connected = append(e.Connected, t.ID())
	return nil
}

func (e *Engine) CanConsume(id core.ProducerID, _ json.RawMessage) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.refuse[id]
}

func (e *Engine) Produce(_ context.Context, t core.Transport, opts core.ProduceOptions) (core.Producer, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p := &Producer{id: core.ProducerID(e.next("producer")), owner: opts.Owner, kind: opts.Kind}
	e.Producers = append(e.Producers, p)
	return p, nil
}

func (e *Engine) Consume(_ context.Context, t core.Transport, opts core.ConsumeOptions) (core.Consumer, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c := &Consumer{
		id:       core.ConsumerID(e.next("consumer")),
		producer: opts.ProducerID,
		kind:     core.KindAudio,
		params:   json.RawMessage(`{"codecs":[]}`),
	}
	e.Consumers = append(e.Consumers, c)
	return c, nil
}

func (e *Engine) TransportCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.Transports)
}

func (e *Engine) ConsumerCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.Consumers)
}

type Transport struct {
	id    core.TransportID
	owner domain.UserID
	dir   core.Direction

	mu       sync.Mutex
	closed   bool
	onChange func(core.TransportState)
}

func NewTransport(id core.TransportID, owner domain.UserID, dir core.Direction) *Transport {
	return &Transport{id: id, owner: owner, dir: dir}
}

func (t *Transport) ID() core.TransportID      { return t.id }
func (t *Transport) Owner() domain.UserID      { return t.owner }
func (t *Transport) Direction() core.Direction { return t.dir }

func (t *Transport) ClientParams() json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{"id":%q}`, t.id))
}

func (t *Transport) OnStateChange(fn func(core.TransportState)) {
	t.mu.Lock()
	t.onChange = fn
	t.mu.Unlock()
}

// SetState simulates an engine side state change.
func (t *Transport) SetState(s core.TransportState) {
	t.mu.Lock()
	fn := t.onChange
	if s == core.TransportClosed {
		t.closed = true
	}
	t.mu.Unlock()
	if fn != nil {
		fn(s)
	}
}

func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()
	t.SetState(core.TransportClosed)
	return nil
}

func (t *Transport) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

type Producer struct {
	id    core.ProducerID
	owner domain.UserID
	kind  core.MediaKind

	mu      sync.Mutex
	closed  bool
	onClose func()
}

func (p *Producer) ID() core.ProducerID  { return p.id }
func (p *Producer) Owner() domain.UserID { return p.owner }
func (p *Producer) Kind() core.MediaKind { return p.kind }

func (p *Producer) OnClose(fn func()) {
	p.mu.Lock()
	closed := p.closed
	p.onClose = fn
	p.mu.Unlock()
	if closed {
		fn()
	}
}

func (p *Producer) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	fn := p.onClose
	p.mu.Unlock()
	if fn != nil {
		fn()
	}
	return nil
}

func (p *Producer) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

type Consumer struct {
	id       core.ConsumerID
	producer core.ProducerID
	kind     core.MediaKind
	params   json.RawMessage

	mu     sync.Mutex
	closed bool
}

func (c *Consumer) ID() core.ConsumerID            { return c.id }
func (c *Consumer) ProducerID() core.ProducerID    { return c.producer }
func (c *Consumer) Kind() core.MediaKind           { return c.kind }
func (c *Consumer) RTPParameters() json.RawMessage { return c.params }

func (c *Consumer) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func (c *Consumer) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
