package signal

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/dkeye/huddle/internal/app"
	"github.com/dkeye/huddle/internal/app/orch"
	"github.com/dkeye/huddle/internal/core"
	"github.com/dkeye/huddle/internal/core/coretest"
	"github.com/dkeye/huddle/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type harness struct {
	url    string
	orch   *orch.Orchestrator
	hub    *Hub
	engine *coretest.Engine
	rooms  []domain.RoomID
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	rooms, err := app.NewRoomManager(2)
	if err != nil {
		t.Fatal(err)
	}
	hub := NewHub()
	engine := coretest.NewEngine()
	o := &orch.Orchestrator{
		Sessions:    app.NewRegistry(),
		Rooms:       rooms,
		Engine:      engine,
		Broadcaster: hub,
		Policy:      app.SimplePolicy{},
	}
	ctl := NewController(o, hub, opts)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	r := gin.New()
	r.GET("/ws", func(c *gin.Context) {
		u, err := domain.NewUser(c.Query("username"), "avatar.png")
		if err != nil {
			c.AbortWithStatus(400)
			return
		}
		if id := c.Query("id"); id != "" {
			u.ID = domain.UserID(id)
		}
		ctl.HandleSignal(ctx, c, *u)
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	h := &harness{
		url:    "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws",
		orch:   o,
		hub:    hub,
		engine: engine,
	}
	for _, info := range rooms.List() {
		h.rooms = append(h.rooms, info.ID)
	}
	return h
}

func defaultOptions() Options {
	return Options{
		ReadLimit:          1 << 15,
		Buffer:             64,
		NegotiationTimeout: time.Second,
		MessageRate:        1000,
		MessageBurst:       1000,
	}
}

type frame struct {
	Type string          `json:"type"`
	ID   json.RawMessage `json:"id"`
	Data json.RawMessage `json:"data"`
}

type testClient struct {
	t       *testing.T
	ws      *websocket.Conn
	seq     int
	pending []frame
}

func (h *harness) dial(t *testing.T, username, id string) *testClient {
	t.Helper()
	q := url.Values{"username": {username}, "id": {id}}
	ws, _, err := websocket.DefaultDialer.Dial(h.url+"?"+q.Encode(), nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = ws.Close() })
	return &testClient{t: t, ws: ws}
}

func (c *testClient) read() frame {
	c.t.Helper()
	_ = c.ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var f frame
	if err := c.ws.ReadJSON(&f); err != nil {
		c.t.Fatalf("read: %v", err)
	}
	return f
}

// expect returns the next frame of type typ, holding on to anything else.
func (c *testClient) expect(typ string) frame {
	c.t.Helper()
	for i, f := range c.pending {
		if f.Type == typ {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			return f
		}
	}
	for {
		f := c.read()
		if f.Type == typ {
			return f
		}
		c.pending = append(c.pending, f)
	}
}

func (c *testClient) writeRaw(s string) {
	c.t.Helper()
	if err := c.ws.WriteMessage(websocket.TextMessage, []byte(s)); err != nil {
		c.t.Fatal(err)
	}
}

// request sends typ with data and returns the ack's data.
func (c *testClient) request(typ string, data any) json.RawMessage {
	c.t.Helper()
	c.seq++
	id, _ := json.Marshal(c.seq)
	if err := c.ws.WriteJSON(map[string]any{"type": typ, "id": c.seq, "data": data}); err != nil {
		c.t.Fatal(err)
	}
	for {
		f := c.read()
		if f.Type == replyAck && string(f.ID) == string(id) {
			return f.Data
		}
		c.pending = append(c.pending, f)
	}
}

func errorOf(t *testing.T, data json.RawMessage) string {
	t.Helper()
	var r errorReply
	_ = json.Unmarshal(data, &r)
	return r.Error
}

func decode[T any](t *testing.T, data json.RawMessage) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return v
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSignalRoomListOnConnect(t *testing.T) {
	h := newHarness(t, defaultOptions())
	alice := h.dial(t, "alice", "alice")

	f := alice.expect(core.EventRoomList)
	rooms := decode[[]core.RoomProjection](t, f.Data)
	if len(rooms) != 2 {
		t.Fatalf("room-list has %d rooms", len(rooms))
	}
	if rooms[0].Users == nil || rooms[0].Producers == nil {
		t.Fatal("room projection lists must not be null")
	}
}

func TestSignalChat(t *testing.T) {
	h := newHarness(t, defaultOptions())
	room := h.rooms[0]
	alice := h.dial(t, "alice", "alice")
	bob := h.dial(t, "bob", "bob")
	alice.expect(core.EventRoomList)
	bob.expect(core.EventRoomList)

	proj := decode[joinReply](t, alice.request(EventRoomJoin, map[string]string{"roomId": string(room)})).Room
	if proj.ID != room || len(proj.Users) != 1 {
		t.Fatalf("join projection = %+v", proj)
	}
	bob.request(EventRoomJoin, map[string]string{"roomId": string(room)})

	joined := decode[domain.User](t, alice.expect(core.EventUserJoined).Data)
	if joined.ID != "bob" || joined.Username != "bob" {
		t.Fatalf("user-joined = %+v", joined)
	}

	msg := decode[messageReply](t, bob.request(EventMessageSend, map[string]string{"content": "  hello "})).Message
	if msg.Content != "hello" || msg.Author.ID != "bob" {
		t.Fatalf("message ack = %+v", msg)
	}
	got := decode[domain.Message](t, alice.expect(core.EventMessageNew).Data)
	if got.ID != msg.ID {
		t.Fatalf("message-new = %+v", got)
	}

	bob.request(EventRoomLeave, map[string]string{"roomId": string(room)})
	left := decode[domain.User](t, alice.expect(core.EventUserLeft).Data)
	if left.ID != "bob" {
		t.Fatalf("user-left = %+v", left)
	}

	r, _ := h.orch.Rooms.Get(room)
	if len(r.Messages()) != 1 || r.UserCount() != 1 {
		t.Fatalf("room state: %d messages, %d users", len(r.Messages()), r.UserCount())
	}
}

func TestSignalErrorReplies(t *testing.T) {
	h := newHarness(t, defaultOptions())
	c := h.dial(t, "alice", "alice")
	c.expect(core.EventRoomList)

	tests := []struct {
		typ  string
		data any
		want string
	}{
		{EventRoomJoin, map[string]string{"roomId": "nope"}, "Room does not exist"},
		{EventRoomJoin, "not an object", errBadPayload},
		{"room-create", nil, errUnknownEvent},
		{EventMessageSend, map[string]string{"content": "hi"}, "User not in room"},
		{EventMessageSend, map[string]string{"content": "   "}, "Message content missing"},
		{EventTransportCreate, map[string]string{"direction": "sideways"}, "Bad direction"},
		{EventTransportConnect, map[string]string{"direction": "send"}, "Missing DTLS parameters"},
		{EventTransportConnect, map[string]any{"direction": "send", "dtlsParameters": map[string]string{}}, "Unable to find transport"},
		{EventProduceMedia, map[string]any{"kind": "audio"}, "Missing RTP parameters"},
		{EventConsumeMedia, map[string]any{"clientCapabilities": map[string]string{}}, "Missing client producer id"},
	}
	for _, tt := range tests {
		if got := errorOf(t, c.request(tt.typ, tt.data)); got != tt.want {
			t.Errorf("%s %v: error = %q, want %q", tt.typ, tt.data, got, tt.want)
		}
	}

	c.writeRaw("{not json")
	if got := errorOf(t, c.expect(replyError).Data); got != errBadPayload {
		t.Fatalf("bad json error = %q", got)
	}

	// the connection survives all of the above
	if got := c.request(EventWhoAmI, nil); errorOf(t, got) != "" {
		t.Fatalf("whoami after errors: %s", got)
	}
}

func TestSignalNegotiation(t *testing.T) {
	h := newHarness(t, defaultOptions())
	room := string(h.rooms[1])
	alice := h.dial(t, "alice", "alice")
	bob := h.dial(t, "bob", "bob")
	alice.request(EventRoomJoin, map[string]string{"roomId": room})
	bob.request(EventRoomJoin, map[string]string{"roomId": room})

	caps := alice.request(EventRouterCapabilities, nil)
	if string(caps) != string(h.engine.Caps) {
		t.Fatalf("router caps = %s", caps)
	}

	if data := alice.request(EventTransportCreate, map[string]string{"direction": "send"}); errorOf(t, data) != "" {
		t.Fatalf("create: %s", data)
	}
	dtls := map[string]any{"role": "client", "fingerprints": []map[string]string{{"algorithm": "sha-256", "value": "AA"}}}
	if data := alice.request(EventTransportConnect, map[string]any{"direction": "send", "dtlsParameters": dtls}); string(data) != "{}" {
		t.Fatalf("connect ack = %s", data)
	}

	produced := decode[produceReply](t, alice.request(EventProduceMedia, map[string]any{
		"rtpParameters":      map[string]any{"codecs": []any{}},
		"clientCapabilities": json.RawMessage(caps),
		"kind":               "audio",
	}))
	if produced.ProducerID == "" {
		t.Fatal("no producer id")
	}
	announced := decode[core.ProducerInfo](t, bob.expect(core.EventNewProducer).Data)
	if announced.ProducerID != produced.ProducerID || announced.UserID != "alice" {
		t.Fatalf("new-producer = %+v", announced)
	}

	bob.request(EventTransportCreate, map[string]string{"direction": "recv"})
	consumed := decode[orch.ConsumeResult](t, bob.request(EventConsumeMedia, map[string]any{
		"clientCapabilities": json.RawMessage(caps),
		"producerId":         produced.ProducerID,
	}))
	if consumed.ConsumerID == "" || consumed.ProducerID != produced.ProducerID || consumed.Kind != core.KindAudio {
		t.Fatalf("consume ack = %+v", consumed)
	}

	h.engine.Refuse(produced.ProducerID)
	got := errorOf(t, bob.request(EventConsumeMedia, map[string]any{
		"clientCapabilities": json.RawMessage(caps),
		"producerId":         produced.ProducerID,
	}))
	if got != "Cant consume this producerId "+string(produced.ProducerID) {
		t.Fatalf("refused consume error = %q", got)
	}
}

func TestSignalReplyShapes(t *testing.T) {
	h := newHarness(t, defaultOptions())
	alice := h.dial(t, "alice", "alice")
	alice.expect(core.EventRoomList)

	keys := func(data json.RawMessage) []string {
		t.Helper()
		obj := decode[map[string]json.RawMessage](t, data)
		out := make([]string, 0, len(obj))
		for k := range obj {
			out = append(out, k)
		}
		return out
	}
	tests := []struct {
		event string
		data  any
		key   string
	}{
		{EventRoomJoin, map[string]string{"roomId": string(h.rooms[0])}, "room"},
		{EventMessageSend, map[string]string{"content": "hi"}, "message"},
		{EventTransportCreate, map[string]string{"direction": "send"}, "transport"},
		{EventProduceMedia, map[string]any{
			"rtpParameters":      map[string]any{"codecs": []any{}},
			"clientCapabilities": map[string]any{"codecs": []any{}},
			"kind":               "audio",
		}, "produceId"},
	}
	for _, tt := range tests {
		got := keys(alice.request(tt.event, tt.data))
		if len(got) != 1 || got[0] != tt.key {
			t.Errorf("%s ack keys = %v, want [%s]", tt.event, got, tt.key)
		}
	}
}

func TestSignalDisconnectReleasesUser(t *testing.T) {
	h := newHarness(t, defaultOptions())
	room := string(h.rooms[0])
	alice := h.dial(t, "alice", "alice")
	bob := h.dial(t, "bob", "bob")
	alice.request(EventRoomJoin, map[string]string{"roomId": room})
	bob.request(EventRoomJoin, map[string]string{"roomId": room})
	bob.request(EventTransportCreate, map[string]string{"direction": "send"})

	_ = bob.ws.Close()

	left := decode[domain.User](t, alice.expect(core.EventUserLeft).Data)
	if left.ID != "bob" {
		t.Fatalf("user-left = %+v", left)
	}
	waitFor(t, func() bool { return h.orch.Sessions.Len() == 1 && !h.hub.Attached("bob") })
	r, _ := h.orch.Rooms.Get(domain.RoomID(room))
	if r.HasUser("bob") || len(r.Projection().Transports) != 0 {
		t.Fatalf("room still holds bob: %+v", r.Projection())
	}
	if !h.engine.Transports[0].Closed() {
		t.Fatal("bob's transport was not closed")
	}

	// same identity can come back
	again := h.dial(t, "bob", "bob")
	again.expect(core.EventRoomList)
}

func TestSignalDuplicateConnection(t *testing.T) {
	h := newHarness(t, defaultOptions())
	first := h.dial(t, "alice", "alice")
	first.expect(core.EventRoomList)

	second := h.dial(t, "alice", "alice")
	f := second.read()
	if f.Type != replyError || errorOf(t, f.Data) != core.ErrSessionExists.Msg {
		t.Fatalf("duplicate got %s %s", f.Type, f.Data)
	}

	// the first connection is untouched
	if got := decode[whoAmIReply](t, first.request(EventWhoAmI, nil)); got.User.ID != "alice" {
		t.Fatalf("whoami = %+v", got)
	}
}

func TestSignalWhoAmIAndPing(t *testing.T) {
	h := newHarness(t, defaultOptions())
	room := h.rooms[0]
	c := h.dial(t, "alice", "alice")

	me := decode[whoAmIReply](t, c.request(EventWhoAmI, nil))
	if me.User.Username != "alice" || me.RoomID != "" {
		t.Fatalf("whoami before join = %+v", me)
	}
	c.request(EventRoomJoin, map[string]string{"roomId": string(room)})
	me = decode[whoAmIReply](t, c.request(EventWhoAmI, nil))
	r, _ := h.orch.Rooms.Get(room)
	if me.RoomID != room || me.RoomName != r.Name() {
		t.Fatalf("whoami after join = %+v", me)
	}

	c.writeRaw(`{"type":"ping","id":"p1"}`)
	if f := c.expect(replyPong); string(f.ID) != `"p1"` {
		t.Fatalf("pong id = %s", f.ID)
	}
}

func TestSignalMessageRateLimit(t *testing.T) {
	opts := defaultOptions()
	opts.MessageRate = 0.001
	opts.MessageBurst = 1
	h := newHarness(t, opts)
	c := h.dial(t, "alice", "alice")
	c.request(EventRoomJoin, map[string]string{"roomId": string(h.rooms[0])})

	if data := c.request(EventMessageSend, map[string]string{"content": "one"}); errorOf(t, data) != "" {
		t.Fatalf("first message: %s", data)
	}
	if got := errorOf(t, c.request(EventMessageSend, map[string]string{"content": "two"})); got != errRateLimited {
		t.Fatalf("second message error = %q", got)
	}
}
