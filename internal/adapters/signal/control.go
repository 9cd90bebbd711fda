package signal

import "encoding/json"

func (ctl *Controller) handlePing(conn *WsSignalConn, id json.RawMessage) {
	resp := struct {
		Type string          `json:"type"`
		ID   json.RawMessage `json:"id,omitempty"`
	}{
		Type: replyPong,
		ID:   id,
	}
	ctl.sendJSON(conn, resp)
}
