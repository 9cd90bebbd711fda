package rtc

import (
	"fmt"
	"strings"

	"github.com/dkeye/huddle/internal/core"
	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v4"
)

// routerCodec is one entry of the codec table every transport shares.
type routerCodec struct {
	kind   core.MediaKind
	params webrtc.RTPCodecParameters
}

var routerCodecs = []routerCodec{
	{
		kind: core.KindAudio,
		params: webrtc.RTPCodecParameters{
			RTPCodecCapability: webrtc.RTPCodecCapability{
				MimeType:    webrtc.MimeTypeOpus,
				ClockRate:   48000,
				Channels:    2,
				SDPFmtpLine: "minptime=10;useinbandfec=1",
			},
			PayloadType: 111,
		},
	},
	{
		kind: core.KindVideo,
		params: webrtc.RTPCodecParameters{
			RTPCodecCapability: webrtc.RTPCodecCapability{
				MimeType:     webrtc.MimeTypeVP8,
				ClockRate:    90000,
				RTCPFeedback: videoFeedback,
			},
			PayloadType: 96,
		},
	},
	{
		kind: core.KindVideo,
		params: webrtc.RTPCodecParameters{
			RTPCodecCapability: webrtc.RTPCodecCapability{
				MimeType:     webrtc.MimeTypeH264,
				ClockRate:    90000,
				SDPFmtpLine:  "level-asymmetry-allowed=1;packetization-mode=1;profile-level-id=4d0032",
				RTCPFeedback: videoFeedback,
			},
			PayloadType: 102,
		},
	},
	{
		kind: core.KindVideo,
		params: webrtc.RTPCodecParameters{
			RTPCodecCapability: webrtc.RTPCodecCapability{
				MimeType:     webrtc.MimeTypeH264,
				ClockRate:    90000,
				SDPFmtpLine:  "level-asymmetry-allowed=1;packetization-mode=1;profile-level-id=42e01f",
				RTCPFeedback: videoFeedback,
			},
			PayloadType: 106,
		},
	},
}

var videoFeedback = []webrtc.RTCPFeedback{
	{Type: "goog-remb"},
	{Type: "ccm", Parameter: "fir"},
	{Type: "nack"},
	{Type: "nack", Parameter: "pli"},
}

func codecType(kind core.MediaKind) webrtc.RTPCodecType {
	if kind == core.KindVideo {
		return webrtc.RTPCodecTypeVideo
	}
	return webrtc.RTPCodecTypeAudio
}

// newMediaEngine registers the codec table and the default interceptors.
func newMediaEngine() (*webrtc.MediaEngine, *interceptor.Registry, error) {
	m := &webrtc.MediaEngine{}
	for _, c := range routerCodecs {
		if err := m.RegisterCodec(c.params, codecType(c.kind)); err != nil {
			return nil, nil, fmt.Errorf("register codec %s: %w", c.params.MimeType, err)
		}
	}
	ir := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(m, ir); err != nil {
		return nil, nil, fmt.Errorf("register interceptors: %w", err)
	}
	return m, ir, nil
}

// fmtp parses an SDP fmtp line into lower-cased keys.
func fmtp(line string) map[string]string {
	out := make(map[string]string)
	for _, kv := range strings.Split(line, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(kv), "=")
		if !ok || k == "" {
			continue
		}
		out[strings.ToLower(k)] = v
	}
	return out
}

// codecMatches reports whether a client codec description is the same
// codec as c. H264 also has to agree on packetization mode and profile.
func codecMatches(c webrtc.RTPCodecCapability, mimeType string, clockRate uint32, channels uint16, params map[string]string) bool {
	if !strings.EqualFold(c.MimeType, mimeType) || c.ClockRate != clockRate {
		return false
	}
	if normChannels(c.Channels) != normChannels(channels) && strings.HasPrefix(strings.ToLower(mimeType), "audio/") {
		return false
	}
	if !strings.EqualFold(c.MimeType, webrtc.MimeTypeH264) {
		return true
	}
	own := fmtp(c.SDPFmtpLine)
	if own["packetization-mode"] != orDefault(params["packetization-mode"], "0") {
		return false
	}
	return strings.EqualFold(own["profile-level-id"], params["profile-level-id"])
}

// lookupCodec finds the table entry a client codec refers to.
func lookupCodec(mimeType string, clockRate uint32, channels uint16, params map[string]string) (routerCodec, bool) {
	for _, c := range routerCodecs {
		if codecMatches(c.params.RTPCodecCapability, mimeType, clockRate, channels, params) {
			return c, true
		}
	}
	return routerCodec{}, false
}

func normChannels(n uint16) uint16 {
	if n == 0 {
		return 1
	}
	return n
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
