package rtc

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dkeye/huddle/internal/core"
	"github.com/pion/webrtc/v4"
)

var (
	errNoCodec    = errors.New("rtp parameters carry no supported codec")
	errNoEncoding = errors.New("rtp parameters carry no encoding with an ssrc")
)

// codecJSON is the client-facing description of a codec.
type codecJSON struct {
	Kind                 string         `json:"kind,omitempty"`
	MimeType             string         `json:"mimeType"`
	PayloadType          uint8          `json:"payloadType,omitempty"`
	PreferredPayloadType uint8          `json:"preferredPayloadType,omitempty"`
	ClockRate            uint32         `json:"clockRate"`
	Channels             uint16         `json:"channels,omitempty"`
	Parameters           map[string]any `json:"parameters,omitempty"`
	RTCPFeedback         []feedbackJSON `json:"rtcpFeedback,omitempty"`
}

type feedbackJSON struct {
	Type      string `json:"type"`
	Parameter string `json:"parameter,omitempty"`
}

func (c codecJSON) params() map[string]string {
	out := make(map[string]string, len(c.Parameters))
	for k, v := range c.Parameters {
		out[strings.ToLower(k)] = fmt.Sprint(v)
	}
	return out
}

type rtpCapabilitiesJSON struct {
	Codecs           []codecJSON       `json:"codecs"`
	HeaderExtensions []json.RawMessage `json:"headerExtensions"`
}

type encodingJSON struct {
	SSRC uint32 `json:"ssrc"`
}

type rtpParametersJSON struct {
	MID       string         `json:"mid,omitempty"`
	Codecs    []codecJSON    `json:"codecs"`
	Encodings []encodingJSON `json:"encodings"`
}

type fingerprintJSON struct {
	Algorithm string `json:"algorithm"`
	Value     string `json:"value"`
}

type dtlsParametersJSON struct {
	Role         string            `json:"role"`
	Fingerprints []fingerprintJSON `json:"fingerprints"`
}

type iceParametersJSON struct {
	UsernameFragment string `json:"usernameFragment"`
	Password         string `json:"password"`
	ICELite          bool   `json:"iceLite,omitempty"`
}

type transportParamsJSON struct {
	ID             string             `json:"id"`
	ICEParameters  iceParametersJSON  `json:"iceParameters"`
	ICECandidates  []candidateJSON    `json:"iceCandidates"`
	DTLSParameters dtlsParametersJSON `json:"dtlsParameters"`
	SCTPParameters json.RawMessage    `json:"sctpParameters"`
}

type candidateJSON struct {
	Foundation string `json:"foundation"`
	Priority   uint32 `json:"priority"`
	IP         string `json:"ip"`
	Address    string `json:"address"`
	Protocol   string `json:"protocol"`
	Port       uint16 `json:"port"`
	Type       string `json:"type"`
	TCPType    string `json:"tcpType,omitempty"`
}

// candidatesToJSON spells protocol and type out; pion encodes the protocol
// as a number.
func candidatesToJSON(cs []webrtc.ICECandidate) []candidateJSON {
	out := make([]candidateJSON, 0, len(cs))
	for _, c := range cs {
		out = append(out, candidateJSON{
			Foundation: c.Foundation,
			Priority:   c.Priority,
			IP:         c.Address,
			Address:    c.Address,
			Protocol:   c.Protocol.String(),
			Port:       c.Port,
			Type:       c.Typ.String(),
			TCPType:    c.TCPType,
		})
	}
	return out
}

func codecToJSON(c routerCodec, preferred bool) codecJSON {
	out := codecJSON{
		MimeType:  c.params.MimeType,
		ClockRate: c.params.ClockRate,
		Channels:  c.params.Channels,
	}
	if preferred {
		out.Kind = string(c.kind)
		out.PreferredPayloadType = uint8(c.params.PayloadType)
	} else {
		out.PayloadType = uint8(c.params.PayloadType)
	}
	if f := fmtp(c.params.SDPFmtpLine); len(f) > 0 {
		out.Parameters = make(map[string]any, len(f))
		for k, v := range f {
			out.Parameters[k] = v
		}
	}
	for _, fb := range c.params.RTCPFeedback {
		out.RTCPFeedback = append(out.RTCPFeedback, feedbackJSON{Type: fb.Type, Parameter: fb.Parameter})
	}
	return out
}

func routerCapabilities() json.RawMessage {
	caps := rtpCapabilitiesJSON{HeaderExtensions: []json.RawMessage{}}
	for _, c := range routerCodecs {
		caps.Codecs = append(caps.Codecs, codecToJSON(c, true))
	}
	b, _ := json.Marshal(caps)
	return b
}

// parseProduceParameters picks the codec and ssrc a producer will send with.
// The payload type has to be the one the router advertised.
func parseProduceParameters(raw json.RawMessage) (routerCodec, webrtc.SSRC, error) {
	var p rtpParametersJSON
	if err := json.Unmarshal(raw, &p); err != nil {
		return routerCodec{}, 0, fmt.Errorf("decode rtp parameters: %w", err)
	}
	var ssrc uint32
	for _, e := range p.Encodings {
		if e.SSRC != 0 {
			ssrc = e.SSRC
			break
		}
	}
	if ssrc == 0 {
		return routerCodec{}, 0, errNoEncoding
	}
	for _, c := range p.Codecs {
		rc, ok := lookupCodec(c.MimeType, c.ClockRate, c.Channels, c.params())
		if !ok {
			continue
		}
		if c.PayloadType != uint8(rc.params.PayloadType) {
			return routerCodec{}, 0, fmt.Errorf("codec %s uses payload type %d, router expects %d",
				c.MimeType, c.PayloadType, rc.params.PayloadType)
		}
		return rc, webrtc.SSRC(ssrc), nil
	}
	return routerCodec{}, 0, errNoCodec
}

// supports reports whether client capabilities can receive codec c.
func supports(raw json.RawMessage, c routerCodec) bool {
	var caps rtpCapabilitiesJSON
	if err := json.Unmarshal(raw, &caps); err != nil {
		return false
	}
	for _, cc := range caps.Codecs {
		if cc.Kind != "" && cc.Kind != string(c.kind) {
			continue
		}
		if codecMatches(c.params.RTPCodecCapability, cc.MimeType, cc.ClockRate, cc.Channels, cc.params()) {
			return true
		}
	}
	return false
}

func consumerParameters(c routerCodec, ssrc webrtc.SSRC) json.RawMessage {
	b, _ := json.Marshal(rtpParametersJSON{
		Codecs:    []codecJSON{codecToJSON(c, false)},
		Encodings: []encodingJSON{{SSRC: uint32(ssrc)}},
	})
	return b
}

func dtlsToJSON(p webrtc.DTLSParameters) dtlsParametersJSON {
	out := dtlsParametersJSON{Role: dtlsRoleString(p.Role)}
	for _, f := range p.Fingerprints {
		out.Fingerprints = append(out.Fingerprints, fingerprintJSON{Algorithm: f.Algorithm, Value: f.Value})
	}
	return out
}

// parseDTLS and parseICE reject with core errors so a bad request leaves the
// transport usable.
func parseDTLS(raw json.RawMessage) (webrtc.DTLSParameters, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return webrtc.DTLSParameters{}, core.ErrMissingDTLS
	}
	var p dtlsParametersJSON
	if err := json.Unmarshal(raw, &p); err != nil {
		return webrtc.DTLSParameters{}, core.ErrInvalidDTLS.WithDetail(err.Error())
	}
	if len(p.Fingerprints) == 0 {
		return webrtc.DTLSParameters{}, core.ErrInvalidDTLS.WithDetail("no fingerprint")
	}
	out := webrtc.DTLSParameters{}
	switch strings.ToLower(p.Role) {
	case "client":
		out.Role = webrtc.DTLSRoleClient
	case "server":
		out.Role = webrtc.DTLSRoleServer
	case "", "auto":
		out.Role = webrtc.DTLSRoleAuto
	default:
		return webrtc.DTLSParameters{}, core.ErrInvalidDTLS.WithDetail(fmt.Sprintf("unknown role %q", p.Role))
	}
	for _, f := range p.Fingerprints {
		out.Fingerprints = append(out.Fingerprints, webrtc.DTLSFingerprint{Algorithm: f.Algorithm, Value: f.Value})
	}
	return out, nil
}

func parseICE(raw json.RawMessage) (webrtc.ICEParameters, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return webrtc.ICEParameters{}, core.ErrMissingICE
	}
	var p iceParametersJSON
	if err := json.Unmarshal(raw, &p); err != nil {
		return webrtc.ICEParameters{}, core.ErrMissingICE.WithDetail(err.Error())
	}
	if p.UsernameFragment == "" || p.Password == "" {
		return webrtc.ICEParameters{}, core.ErrMissingICE.WithDetail("usernameFragment and password required")
	}
	return webrtc.ICEParameters{UsernameFragment: p.UsernameFragment, Password: p.Password, ICELite: p.ICELite}, nil
}

func dtlsRoleString(r webrtc.DTLSRole) string {
	switch r {
	case webrtc.DTLSRoleClient:
		return "client"
	case webrtc.DTLSRoleServer:
		return "server"
	}
	return "auto"
}
