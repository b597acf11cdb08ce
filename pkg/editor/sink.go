package editor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mattsolo1/grove-mdpad/pkg/ipc"
)

// Sink delivers outbound messages to a loaded editor.
type Sink interface {
	Send(ctx context.Context, m ipc.Message) error
}

// ScriptSink delivers messages by injecting script into a web view.
type ScriptSink struct {
	Inject func(script string) error
}

func (s ScriptSink) Send(_ context.Context, m ipc.Message) error {
	script, err := ipc.InjectScript(m)
	if err != nil {
		return err
	}
	return s.Inject(script)
}

const writeWait = 10 * time.Second

// ConnSink writes messages as JSON text frames on a websocket.
type ConnSink struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func NewConnSink(conn *websocket.Conn) *ConnSink {
	return &ConnSink{conn: conn}
}

func (s *ConnSink) Send(ctx context.Context, m ipc.Message) error {
	data, err := ipc.Encode(m)
	if err != nil {
		return err
	}

	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write %s: %w", m.Event, err)
	}
	return nil
}
