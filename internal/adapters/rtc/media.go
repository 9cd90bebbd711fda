package rtc

import (
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/dkeye/huddle/internal/core"
	"github.com/dkeye/huddle/internal/domain"
	"github.com/pion/webrtc/v4"
)

type producer struct {
	id       core.ProducerID
	owner    domain.UserID
	codec    routerCodec
	receiver *webrtc.RTPReceiver
	stop     func()

	mu       sync.Mutex
	closed   bool
	handlers []func()
}

func (p *producer) ID() core.ProducerID  { return p.id }
func (p *producer) Owner() domain.UserID { return p.owner }
func (p *producer) Kind() core.MediaKind { return p.codec.kind }

func (p *producer) OnClose(fn func()) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		fn()
		return
	}
	p.handlers = append(p.handlers, fn)
	p.mu.Unlock()
}

// finish runs the close handlers once.
func (p *producer) finish() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	handlers := p.handlers
	p.handlers = nil
	p.mu.Unlock()
	for _, fn := range handlers {
		fn()
	}
}

func (p *producer) Close() error {
	if p.stop != nil {
		p.stop()
	}
	err := p.receiver.Stop()
	p.finish()
	return err
}

type consumer struct {
	id       core.ConsumerID
	producer core.ProducerID
	codec    routerCodec
	params   json.RawMessage
	sender   *webrtc.RTPSender
	detach   func()

	once   sync.Once
	closed atomic.Bool
	err    error
}

func (c *consumer) ID() core.ConsumerID            { return c.id }
func (c *consumer) ProducerID() core.ProducerID    { return c.producer }
func (c *consumer) Kind() core.MediaKind           { return c.codec.kind }
func (c *consumer) RTPParameters() json.RawMessage { return c.params }

func (c *consumer) Close() error {
	c.once.Do(func() {
		c.closed.Store(true)
		if c.detach != nil {
			c.detach()
		}
		c.err = c.sender.Stop()
	})
	return c.err
}

func (c *consumer) isClosed() bool { return c.closed.Load() }
