package remote

import (
	"fmt"
	"strings"
)

// FrameType is the socket.io v1 message type digit.
type FrameType int

const (
	FrameDisconnect FrameType = iota
	FrameConnect
	FrameHeartbeat
	FrameMessage
	FrameJSON
	FrameEvent
	FrameAck
	FrameError
	FrameNoop
)

// Frame is one socket.io v1 message: "type:id:endpoint:data".
type Frame struct {
	Type     FrameType
	ID       string
	Endpoint string
	Data     string
}

// ParseFrame decodes a raw socket.io v1 frame.
func ParseFrame(raw string) (Frame, error) {
	parts := strings.SplitN(raw, ":", 4)
	if len(parts) < 2 || len(parts[0]) != 1 || parts[0][0] < '0' || parts[0][0] > '8' {
		return Frame{}, fmt.Errorf("remote: malformed socket.io frame %q", truncate(raw, 40))
	}

	f := Frame{Type: FrameType(parts[0][0] - '0'), ID: parts[1]}
	if len(parts) > 2 {
		f.Endpoint = parts[2]
	}
	if len(parts) > 3 {
		f.Data = parts[3]
	}
	return f, nil
}

// String encodes the frame. Trailing empty fields are kept as the
// firmware expects ("2::", "1::/endpoint").
func (f Frame) String() string {
	s := fmt.Sprintf("%d:%s:%s", f.Type, f.ID, f.Endpoint)
	if f.Data != "" {
		s += ":" + f.Data
	}
	return s
}
