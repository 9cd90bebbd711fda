package signal

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestDecodeRequest(t *testing.T) {
	tests := []struct {
		env  envelope
		want any
	}{
		{envelope{Type: EventRoomJoin, Data: json.RawMessage(`{"roomId":"r1"}`)}, &roomJoin{RoomID: "r1"}},
		{envelope{Type: EventMessageSend, Data: json.RawMessage(`{"content":"hi"}`)}, &messageSend{Content: "hi"}},
		{envelope{Type: EventTransportCreate, Data: json.RawMessage(`{"direction":"send"}`)}, &transportCreate{Direction: "send"}},
		{envelope{Type: EventConsumeMedia, Data: json.RawMessage(`{"producerId":"p1"}`)}, &consumeMedia{ProducerID: "p1"}},
		{envelope{Type: EventRoomLeave}, &roomLeave{}},
		{envelope{Type: EventRouterCapabilities, Data: json.RawMessage(`"ignored"`)}, &routerCapabilities{}},
		{envelope{Type: EventPing}, &ping{}},
	}
	for _, tt := range tests {
		t.Run(tt.env.Type, func(t *testing.T) {
			got, err := decodeRequest(tt.env)
			if err != nil {
				t.Fatal(err)
			}
			gb, _ := json.Marshal(got)
			wb, _ := json.Marshal(tt.want)
			if string(gb) != string(wb) {
				t.Fatalf("got %s, want %s", gb, wb)
			}
		})
	}
}

func TestDecodeRequestKeepsRawParameters(t *testing.T) {
	got, err := decodeRequest(envelope{
		Type: EventTransportConnect,
		Data: json.RawMessage(`{"direction":"recv","dtlsParameters":{"role":"client"},"iceParameters":{"usernameFragment":"u"}}`),
	})
	if err != nil {
		t.Fatal(err)
	}
	r := got.(*transportConnect)
	if r.Direction != "recv" || string(r.DTLSParameters) != `{"role":"client"}` || string(r.ICEParameters) != `{"usernameFragment":"u"}` {
		t.Fatalf("decoded %+v", r)
	}
}

func TestDecodeRequestErrors(t *testing.T) {
	if _, err := decodeRequest(envelope{Type: "room-create"}); !errors.Is(err, errUnknownType) {
		t.Fatalf("unknown type: %v", err)
	}
	if _, err := decodeRequest(envelope{Type: EventRoomJoin, Data: json.RawMessage(`"r1"`)}); err == nil || errors.Is(err, errUnknownType) {
		t.Fatalf("malformed data: %v", err)
	}
}
