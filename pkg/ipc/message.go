// Package ipc defines the message envelope exchanged between the host and the
// embedded editor.
package ipc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/mattsolo1/grove-mdpad/pkg/models"
)

// ProtocolVersion is the envelope version this package speaks. Version 0 is
// the legacy {event, value} form without sequence numbers.
const ProtocolVersion = 1

// Inbound events, editor to host.
const (
	EventChange         = "change"
	EventChangePosition = "change_position"
	EventTogglePreview  = "toggle_preview"
	EventNewFile        = "new_file"
	EventSave           = "save"
	EventDebug          = "debug"
)

// Outbound events, host to editor.
const (
	EventUpdateValue    = "updateEditorValue"
	EventUpdatePosition = "updateEditorPosition"
	EventReset          = "reset"
)

var (
	ErrMalformed          = errors.New("malformed message")
	ErrUnsupportedVersion = errors.New("unsupported protocol version")
)

// Message is one envelope. Seq is the sender's monotonic counter; Ack is the
// highest Seq the sender had received from the other side when it sent this.
type Message struct {
	V     int             `json:"v,omitempty"`
	Seq   uint64          `json:"seq,omitempty"`
	Ack   uint64          `json:"ack,omitempty"`
	Event string          `json:"event"`
	Value json.RawMessage `json:"value,omitempty"`
}

// NewMessage builds a current-version message carrying value.
func NewMessage(event string, value any) (Message, error) {
	m := Message{V: ProtocolVersion, Event: event}
	if value != nil {
		raw, err := json.Marshal(value)
		if err != nil {
			return Message{}, fmt.Errorf("encode %s value: %w", event, err)
		}
		m.Value = raw
	}
	return m, nil
}

// Legacy reports whether m was sent without sequencing.
func (m Message) Legacy() bool {
	return m.V == 0 || m.Seq == 0
}

// Decode parses one message.
func Decode(data []byte) (Message, error) {
	var m Message
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&m); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if m.Event == "" {
		return Message{}, fmt.Errorf("%w: missing event", ErrMalformed)
	}
	if m.V > ProtocolVersion {
		return Message{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, m.V)
	}
	return m, nil
}

// Encode serializes m.
func Encode(m Message) ([]byte, error) {
	return json.Marshal(m)
}

// Text decodes a string value. A missing value is the empty string.
func (m Message) Text() (string, error) {
	if len(m.Value) == 0 || string(m.Value) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(m.Value, &s); err != nil {
		return "", fmt.Errorf("%w: %s value: %v", ErrMalformed, m.Event, err)
	}
	return s, nil
}

// Position decodes a cursor position value.
func (m Message) Position() (models.Position, error) {
	var p models.Position
	if len(m.Value) == 0 {
		return p, fmt.Errorf("%w: %s without value", ErrMalformed, m.Event)
	}
	if err := json.Unmarshal(m.Value, &p); err != nil {
		return p, fmt.Errorf("%w: %s value: %v", ErrMalformed, m.Event, err)
	}
	return p, nil
}

// InjectScript renders m as a script that dispatches a window CustomEvent
// named after the event, with the envelope as its detail.
func InjectScript(m Message) (string, error) {
	name, err := json.Marshal(m.Event)
	if err != nil {
		return "", err
	}
	detail, err := Encode(m)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("(function(){window.dispatchEvent(new CustomEvent(%s,{detail:%s}));})();true;", name, detail), nil
}

// Sequencer hands out outbound sequence numbers starting at 1.
type Sequencer struct {
	n atomic.Uint64
}

func (s *Sequencer) Next() uint64 { return s.n.Add(1) }

// Last returns the most recently issued number, 0 if none.
func (s *Sequencer) Last() uint64 { return s.n.Load() }

// Window tracks the highest inbound sequence number seen.
type Window struct {
	mu   sync.Mutex
	last uint64
}

// Accept reports whether m is new. Unsequenced messages are always accepted;
// sequenced ones must be strictly newer than anything seen before.
func (w *Window) Accept(m Message) bool {
	if m.Legacy() {
		return true
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if m.Seq <= w.last {
		return false
	}
	w.last = m.Seq
	return true
}

// Last returns the highest accepted sequence number.
func (w *Window) Last() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last
}

// Reset forgets the sequence history, for a new connection.
func (w *Window) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.last = 0
}
