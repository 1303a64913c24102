// Package server defines the JSON frames exchanged with real-time clients and
// utility helpers that are reused across client and hub logic.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Tyrowin/roomchat/internal/chat"
)

// Inbound event names.
const (
	EventJoin        = "join"
	EventSendMessage = "sendMessage"
	EventAck         = "ack"
)

var (
	ErrMalformedFrame = errors.New("malformed frame")
	ErrUnknownEvent   = errors.New("unknown event")
	ErrRateLimited    = errors.New("rate limit exceeded")
)

// Frame is a single JSON text message on the socket, in either direction.
// A non-nil Ack on an inbound frame asks the server to answer with an ack
// frame carrying the same id.
type Frame struct {
	Event string          `json:"event"`
	Ack   *int64          `json:"ack,omitempty"`
	Error string          `json:"error,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// JoinRequest is the payload of a join frame.
type JoinRequest struct {
	Name string `json:"name"`
	Room string `json:"room"`
}

// SendMessageRequest is the payload of a sendMessage frame.
type SendMessageRequest struct {
	Text string `json:"text"`
}

func decodeFrame(raw []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if f.Event == "" {
		return f, fmt.Errorf("%w: missing event", ErrMalformedFrame)
	}
	return f, nil
}

func decodeData(f Frame, v any) error {
	if len(f.Data) == 0 {
		return fmt.Errorf("%w: %s without data", ErrMalformedFrame, f.Event)
	}
	if err := json.Unmarshal(f.Data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	return nil
}

func encodeEvent(ev chat.Event) ([]byte, error) {
	data, err := json.Marshal(ev.Data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Event: ev.Name, Data: data})
}

// encodeAck builds the acknowledgement for ack id. err, if any, travels as
// its message text.
func encodeAck(id int64, err error) []byte {
	f := Frame{Event: EventAck, Ack: &id}
	if err != nil {
		f.Error = err.Error()
	}
	b, _ := json.Marshal(f)
	return b
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
