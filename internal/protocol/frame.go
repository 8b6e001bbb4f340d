// Package protocol implements the framing layer for the gateway wire
// protocol: a length-prefixed envelope carrying a request/reply/event meta
// header plus an opaque body.
//
// The schema this package models — service/method names, the Request/Reply/
// Event message types, clientSeq/serverSeq correlation, error code/message —
// is an external fixed contract; this package does not reverse-engineer it.
// The concrete byte-level serialization (one 4-byte length prefix + the
// whole Message, meta and body, as one JSON object) is
// this project's own choice, not the remote gateway's actual wire format.
package protocol

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// MessageType identifies the logical kind of a frame.
type MessageType int32

const (
	MessageTypeRequest MessageType = 1
	MessageTypeReply    MessageType = 2
	MessageTypeEvent    MessageType = 3
)

func (t MessageType) String() string {
	switch t {
	case MessageTypeRequest:
		return "request"
	case MessageTypeReply:
		return "reply"
	case MessageTypeEvent:
		return "event"
	default:
		return fmt.Sprintf("unknown(%d)", int32(t))
	}
}

// Meta is the logical request/reply header carried by every frame.
type Meta struct {
	ServiceName  string      `json:"serviceName"`
	MethodName   string      `json:"methodName"`
	MessageType  MessageType `json:"messageType"`
	ClientSeq    int64       `json:"clientSeq"`
	ServerSeq    int64       `json:"serverSeq"`
	ErrorCode    int32       `json:"errorCode"`
	ErrorMessage string      `json:"errorMessage,omitempty"`
}

// Message is the outer envelope: a Meta header plus an opaque body. The body
// is service/method specific and is decoded by the caller (internal/domain).
type Message struct {
	Meta Meta   `json:"meta"`
	Body []byte `json:"body"`
}

// EventMessage is the inner shape carried by the body of an Event frame.
// MessageType here is the notification's own string tag (e.g. "LandsNotify",
// "ItemNotify"), distinct from the outer Meta.MessageType enum.
type EventMessage struct {
	MessageType string `json:"messageType"`
	Body        []byte `json:"body"`
}

// maxFrameSize bounds a single frame to defend against a corrupt length
// prefix driving an unbounded allocation.
const maxFrameSize = 16 << 20 // 16 MiB

// WriteMessage writes one length-prefixed frame to w. It is the caller's
// responsibility to serialize calls to w — WriteMessage itself performs a
// single Write per frame but is not safe for concurrent use on the same
// writer without external synchronization.
func WriteMessage(w io.Writer, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("protocol: marshal message: %w", err)
	}
	if len(payload) > maxFrameSize {
		return fmt.Errorf("protocol: frame too large (%d bytes)", len(payload))
	}

	header := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(header[:4], uint32(len(payload)))
	copy(header[4:], payload)

	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("protocol: write frame: %w", err)
	}
	return nil
}

// ReadMessage reads one length-prefixed frame from r.
func ReadMessage(r io.Reader) (Message, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return Message{}, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > maxFrameSize {
		return Message{}, fmt.Errorf("protocol: frame too large (%d bytes)", n)
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Message{}, fmt.Errorf("protocol: read frame body: %w", err)
	}

	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, fmt.Errorf("protocol: unmarshal message: %w", err)
	}
	return msg, nil
}

// ReadMessageFromBytes decodes a single frame that arrived as one complete
// transport message (e.g. one gorilla/websocket binary frame) rather than
// from a streaming io.Reader. The leading 4-byte length prefix is still
// present and validated against the remaining buffer length.
func ReadMessageFromBytes(data []byte) (Message, error) {
	if len(data) < 4 {
		return Message{}, fmt.Errorf("protocol: frame shorter than length prefix (%d bytes)", len(data))
	}
	n := binary.BigEndian.Uint32(data[:4])
	if n > maxFrameSize {
		return Message{}, fmt.Errorf("protocol: frame too large (%d bytes)", n)
	}
	if uint32(len(data)-4) < n {
		return Message{}, fmt.Errorf("protocol: frame truncated: want %d bytes, have %d", n, len(data)-4)
	}

	var msg Message
	if err := json.Unmarshal(data[4:4+n], &msg); err != nil {
		return Message{}, fmt.Errorf("protocol: unmarshal message: %w", err)
	}
	return msg, nil
}

// DecodeEvent decodes an Event frame's body into an EventMessage.
func DecodeEvent(body []byte) (EventMessage, error) {
	var ev EventMessage
	if err := json.Unmarshal(body, &ev); err != nil {
		return EventMessage{}, fmt.Errorf("protocol: decode event: %w", err)
	}
	return ev, nil
}

// ErrNotReply is the error value for a frame that is not a Reply frame. No
// function in this package returns it; AsReplyError reads only the error
// fields of a Meta.
var ErrNotReply = errors.New("protocol: frame is not a reply")

// AsReplyError converts a Reply frame's error fields into a Go error, or nil
// if ErrorCode is zero.
func AsReplyError(meta Meta) error {
	if meta.ErrorCode == 0 {
		return nil
	}
	return &RemoteError{Code: meta.ErrorCode, Message: meta.ErrorMessage}
}

// RemoteError mirrors GatewayRemoteError{code, message} from the spec.
type RemoteError struct {
	Code    int32
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("gateway remote error %d: %s", e.Code, e.Message)
}
