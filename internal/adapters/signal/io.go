package signal

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dkeye/huddle/internal/core"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const writeWait = 5 * time.Second

func (ctl *Controller) writePump(ctx context.Context, c *WsSignalConn) {
	defer c.Close()

	var ping <-chan time.Time
	if ctl.opts.PingPeriod > 0 {
		t := time.NewTicker(ctl.opts.PingPeriod)
		defer t.Stop()
		ping = t.C
	}

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		case <-ping:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Warn().Err(err).Str("module", "signal").Msg("writePump ping")
				return
			}
		}
	}
}

// readPump serves requests one at a time. When it returns the user is
// disconnected and every resource they held is released.
func (ctl *Controller) readPump(ctx context.Context, cancel context.CancelFunc, cl *client) {
	uid := cl.user.ID
	defer func() {
		cancel()
		ctl.Orch.Disconnect(uid)
		ctl.Hub.Detach(uid, cl.conn)
		ctl.limiter.Forget(uid)
		cl.conn.Close()
		log.Info().Str("module", "signal").Str("user_id", string(uid)).Msg("readPump closing")
	}()

	ws := cl.conn.conn
	if ctl.opts.ReadLimit > 0 {
		ws.SetReadLimit(ctl.opts.ReadLimit)
	}
	if ctl.opts.PingPeriod > 0 {
		pongWait := ctl.opts.PingPeriod * 10 / 9
		_ = ws.SetReadDeadline(time.Now().Add(pongWait))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(pongWait))
		})
	}

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("module", "signal").Str("user_id", string(uid)).Msg("readPump read error")
			}
			return
		}
		ctl.handleSignal(ctx, cl, data)
	}
}

func (ctl *Controller) handleSignal(ctx context.Context, cl *client, data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("user_id", string(cl.user.ID)).Msg("bad json")
		ctl.sendJSON(cl.conn, core.Event{Type: replyError, Data: errorReply{Error: errBadPayload}})
		return
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("module", "signal").Str("type", env.Type).Str("user_id", string(cl.user.ID)).Msg("handler panic")
			ctl.sendJSON(cl.conn, ack{Type: replyAck, ID: env.ID, Data: errorReply{Error: core.PublicMessage(nil)}})
		}
	}()

	req, err := decodeRequest(env)
	if err != nil {
		code := errBadPayload
		if errors.Is(err, errUnknownType) {
			code = errUnknownEvent
		}
		log.Warn().Err(err).Str("module", "signal").Str("user_id", string(cl.user.ID)).Msg("bad request")
		ctl.sendJSON(cl.conn, ack{Type: replyAck, ID: env.ID, Data: errorReply{Error: code}})
		return
	}

	if _, ok := req.(*ping); ok {
		ctl.handlePing(cl.conn, env.ID)
		return
	}

	res, err := ctl.dispatch(ctx, cl, req)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("type", env.Type).Str("user_id", string(cl.user.ID)).Msg("request failed")
		ctl.sendJSON(cl.conn, ack{Type: replyAck, ID: env.ID, Data: errorReply{Error: publicMessage(err)}})
		return
	}
	if res == nil {
		res = struct{}{}
	}
	ctl.sendJSON(cl.conn, ack{Type: replyAck, ID: env.ID, Data: res})
}

func (ctl *Controller) sendJSON(c *WsSignalConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	if err := c.TrySend(b); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("sendJSON")
	}
}
