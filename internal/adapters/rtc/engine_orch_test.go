package rtc_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/dkeye/huddle/internal/adapters/rtc"
	"github.com/dkeye/huddle/internal/app"
	"github.com/dkeye/huddle/internal/app/orch"
	"github.com/dkeye/huddle/internal/core"
	"github.com/dkeye/huddle/internal/core/coretest"
	"github.com/dkeye/huddle/internal/domain"
)

var (
	clientDTLS = json.RawMessage(`{"role":"client","fingerprints":[{"algorithm":"sha-256","value":"AA:BB:CC"}]}`)
	clientICE  = json.RawMessage(`{"usernameFragment":"clientufrag","password":"clientpasswordclientpassword"}`)
)

func newOrchestrator(t *testing.T) (*orch.Orchestrator, domain.RoomID) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	engine, err := rtc.NewEngine(ctx, rtc.Config{IncludeLoopback: true, GatherTimeout: time.Second})
	if err != nil {
		t.Fatal(err)
	}
	rooms, err := app.NewRoomManager(1)
	if err != nil {
		t.Fatal(err)
	}
	o := &orch.Orchestrator{
		Sessions:    app.NewRegistry(),
		Rooms:       rooms,
		Engine:      engine,
		Broadcaster: coretest.NewBroadcaster(),
	}
	var id domain.RoomID
	for r := range rooms.All() {
		id = r.ID()
	}
	return o, id
}

func heldTransport(t *testing.T, o *orch.Orchestrator, uid domain.UserID, dir core.Direction) core.Transport {
	t.Helper()
	sess, ok := o.Sessions.Get(uid)
	if !ok {
		t.Fatal("session gone")
	}
	tr, ok := sess.Transport(dir)
	if !ok {
		t.Fatalf("%s transport no longer held", dir)
	}
	return tr
}

func TestConnectTransportBadRequestKeepsTransport(t *testing.T) {
	o, roomID := newOrchestrator(t)
	ctx := context.Background()
	u, err := domain.NewUser("alice", "alice.png")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := o.Connect(*u, nil); err != nil {
		t.Fatal(err)
	}
	defer o.Disconnect(u.ID)
	if _, err := o.Join(u.ID, roomID); err != nil {
		t.Fatal(err)
	}

	raw, err := o.CreateTransport(ctx, u.ID, "send")
	if err != nil {
		t.Fatal(err)
	}
	var params struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &params); err != nil || params.ID == "" {
		t.Fatalf("transport params %s: %v", raw, err)
	}

	rejected := []struct {
		name string
		dtls json.RawMessage
		ice  json.RawMessage
		want error
	}{
		{"no ice", clientDTLS, nil, core.ErrMissingICE},
		{"null ice", clientDTLS, json.RawMessage("null"), core.ErrMissingICE},
		{"ice without password", clientDTLS, json.RawMessage(`{"usernameFragment":"x"}`), core.ErrMissingICE},
		{"no fingerprint", json.RawMessage(`{"role":"client","fingerprints":[]}`), clientICE, core.ErrInvalidDTLS},
		{"unknown role", json.RawMessage(`{"role":"boss","fingerprints":[{"algorithm":"sha-256","value":"AA"}]}`), clientICE, core.ErrInvalidDTLS},
		{"dtls not an object", json.RawMessage(`[1,2]`), clientICE, core.ErrInvalidDTLS},
	}
	for _, tt := range rejected {
		t.Run(tt.name, func(t *testing.T) {
			err := o.ConnectTransport(ctx, u.ID, "send", tt.dtls, tt.ice)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if errors.Is(err, core.ErrEngineFault) {
				t.Fatalf("bad request reported as engine fault: %v", err)
			}
			if tr := heldTransport(t, o, u.ID, core.DirectionSend); string(tr.ID()) != params.ID {
				t.Fatalf("held transport %s, want %s", tr.ID(), params.ID)
			}
		})
	}

	// the transport is still there for produce; it just never finishes DTLS
	short, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	rtp := json.RawMessage(`{"codecs":[{"mimeType":"audio/opus","payloadType":111,"clockRate":48000,"channels":2}],"encodings":[{"ssrc":1111}]}`)
	caps := json.RawMessage(`{"codecs":[{"kind":"audio","mimeType":"audio/opus","clockRate":48000,"channels":2}]}`)
	if _, err := o.Produce(short, u.ID, rtp, caps, "audio"); errors.Is(err, core.ErrTransportNotFound) {
		t.Fatalf("produce lost the transport: %v", err)
	}

	if err := o.ConnectTransport(ctx, u.ID, "send", clientDTLS, clientICE); err != nil {
		t.Fatal(err)
	}
	err = o.ConnectTransport(ctx, u.ID, "send", clientDTLS, clientICE)
	if !errors.Is(err, core.ErrTransportConnected) {
		t.Fatalf("second connect err = %v", err)
	}
	heldTransport(t, o, u.ID, core.DirectionSend)
	room, _ := o.Rooms.Get(roomID)
	if !room.HasTransport(core.TransportID(params.ID)) {
		t.Fatal("transport dropped from room")
	}
}
