package signal

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dkeye/huddle/internal/app/orch"
	"github.com/dkeye/huddle/internal/core"
	"github.com/dkeye/huddle/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

type Options struct {
	ReadLimit          int64
	PingPeriod         time.Duration
	Buffer             int
	NegotiationTimeout time.Duration
	MessageRate        float64
	MessageBurst       int
}

// Controller speaks the signaling protocol over websockets and forwards
// requests to the orchestrator.
type Controller struct {
	Orch *orch.Orchestrator
	Hub  *Hub

	opts     Options
	limiter  *RateLimiter
	upgrader websocket.Upgrader
}

func NewController(o *orch.Orchestrator, hub *Hub, opts Options) *Controller {
	if opts.Buffer < 1 {
		opts.Buffer = 32
	}
	return &Controller{
		Orch:    o,
		Hub:     hub,
		opts:    opts,
		limiter: NewRateLimiter(opts.MessageRate, opts.MessageBurst),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// client is the per-connection state handlers see.
type client struct {
	user domain.User
	conn *WsSignalConn
}

// HandleSignal upgrades the request and serves user until the socket
// closes or ctx ends.
func (ctl *Controller) HandleSignal(ctx context.Context, c *gin.Context, user domain.User) {
	log.Info().Str("module", "signal").Str("user_id", string(user.ID)).Str("username", user.Username).Msg("new WS connection")

	ws, err := ctl.upgrader.Upgrade(c.Writer, c.Request, cookieHeader(c.Writer.Header()))
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	conn := NewWsSignalConn(ws, ctl.opts.Buffer)
	if !ctl.Hub.Attach(user.ID, conn) {
		log.Warn().Str("module", "signal").Str("user_id", string(user.ID)).Msg("user already connected")
		ctl.reject(ws, core.ErrSessionExists)
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	if _, err := ctl.Orch.Connect(user, cancel); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("user_id", string(user.ID)).Msg("connect")
		ctl.Hub.Detach(user.ID, conn)
		cancel()
		ctl.reject(ws, err)
		conn.Close()
		return
	}

	cl := &client{user: user, conn: conn}
	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, cancel, cl)
}

// reject answers a connection that will not be served and closes it.
func (ctl *Controller) reject(ws *websocket.Conn, err error) {
	_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
	_ = ws.WriteJSON(core.Event{Type: replyError, Data: errorReply{Error: core.PublicMessage(err)}})
	_ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, ""))
	_ = ws.Close()
}

func (ctl *Controller) negotiation(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctl.opts.NegotiationTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, ctl.opts.NegotiationTimeout)
}

var errTooManyMessages = errors.New("message rate exceeded")

// publicMessage is the error text a client gets back.
func publicMessage(err error) string {
	if errors.Is(err, errTooManyMessages) {
		return errRateLimited
	}
	return core.PublicMessage(err)
}

// cookieHeader keeps the session cookie set by middleware on the upgrade
// response.
func cookieHeader(h http.Header) http.Header {
	cookies := h.Values("Set-Cookie")
	if len(cookies) == 0 {
		return nil
	}
	return http.Header{"Set-Cookie": cookies}
}
