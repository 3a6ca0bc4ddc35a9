// Package feed implements the upstream venue's streaming protocol: a
// text-framed handshake/heartbeat layer over WebSocket carrying JSON
// [event, payload] tuples, plus the session state machine, reconnect
// policy and subscription management on top of it.
package feed

import (
	"encoding/json"
	"fmt"
)

// FrameType classifies the transport envelope of one text frame.
type FrameType int

const (
	FrameUnknown FrameType = iota
	FrameOpen              // "0{...}" handshake info
	FrameNamespace         // "40" namespace open / ack
	FramePing              // "2"
	FramePong              // "3"
	FrameEvent             // "42" + JSON [event, payload]
)

func (t FrameType) String() string {
	switch t {
	case FrameOpen:
		return "open"
	case FrameNamespace:
		return "namespace"
	case FramePing:
		return "ping"
	case FramePong:
		return "pong"
	case FrameEvent:
		return "event"
	}
	return "unknown"
}

// Frame is one decoded transport envelope. For FrameEvent, Event and
// Payload carry the application tuple; for FrameOpen the handshake
// info JSON is in Payload. Raw always holds the original bytes.
type Frame struct {
	Type    FrameType
	Raw     []byte
	Event   string
	Payload json.RawMessage
}

// OpenInfo is the handshake info the upstream sends in its "0" frame.
// Intervals are milliseconds per the wire format.
type OpenInfo struct {
	SID          string `json:"sid"`
	PingInterval int    `json:"pingInterval"`
	PingTimeout  int    `json:"pingTimeout"`
}

// DecodeFrame parses one text frame. Frames with an unrecognized
// prefix decode to FrameUnknown without error so the session can log
// and skip them; only a malformed event tuple is an error.
func DecodeFrame(raw []byte) (Frame, error) {
	f := Frame{Type: FrameUnknown, Raw: raw}
	if len(raw) == 0 {
		return f, nil
	}

	switch {
	case len(raw) >= 2 && raw[0] == '4' && raw[1] == '2':
		f.Type = FrameEvent
		var tuple []json.RawMessage
		if err := json.Unmarshal(raw[2:], &tuple); err != nil {
			return f, fmt.Errorf("decode event tuple: %w", err)
		}
		if len(tuple) == 0 {
			return f, fmt.Errorf("decode event tuple: empty")
		}
		if err := json.Unmarshal(tuple[0], &f.Event); err != nil {
			return f, fmt.Errorf("decode event name: %w", err)
		}
		if len(tuple) > 1 {
			f.Payload = tuple[1]
		}
		return f, nil

	case len(raw) >= 2 && raw[0] == '4' && raw[1] == '0':
		f.Type = FrameNamespace
		if len(raw) > 2 {
			f.Payload = json.RawMessage(raw[2:])
		}
		return f, nil

	case raw[0] == '0':
		f.Type = FrameOpen
		f.Payload = json.RawMessage(raw[1:])
		return f, nil

	case len(raw) == 1 && raw[0] == '2':
		f.Type = FramePing
		return f, nil

	case raw[0] == '3':
		// "3" or "3probe"
		f.Type = FramePong
		return f, nil
	}

	return f, nil
}

// DecodeOpenInfo parses the handshake info carried by a FrameOpen.
func DecodeOpenInfo(f Frame) (OpenInfo, error) {
	var info OpenInfo
	if f.Type != FrameOpen {
		return info, fmt.Errorf("decode open info: frame type %s", f.Type)
	}
	if err := json.Unmarshal(f.Payload, &info); err != nil {
		return info, fmt.Errorf("decode open info: %w", err)
	}
	return info, nil
}

// EncodeEvent builds a "42" event frame for sending upstream. A nil
// payload is encoded as an empty object, matching what the venue
// expects for argument-less requests.
func EncodeEvent(event string, payload any) ([]byte, error) {
	if payload == nil {
		payload = struct{}{}
	}
	tuple, err := json.Marshal([]any{event, payload})
	if err != nil {
		return nil, fmt.Errorf("encode event %q: %w", event, err)
	}
	return append([]byte("42"), tuple...), nil
}

// Control frame literals sent upstream.
var (
	frameNamespaceOpen = []byte("40")
	framePing          = []byte("2")
	framePong          = []byte("3")
)
