package editor

import (
	"context"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/mattsolo1/grove-mdpad/pkg/metrics"
)

const maxMessageSize = 8 << 20

// Server exposes the bridge to a browser editor over a websocket. Only one
// editor is attached at a time; a new connection replaces the old one.
type Server struct {
	bridge   *Bridge
	log      *logrus.Entry
	metrics  *metrics.Metrics
	upgrader websocket.Upgrader

	// OnLoad runs when an editor connects. Defaults to Bridge.LoadEnd.
	OnLoad func(ctx context.Context, sink Sink) error
	// OnClose runs after the attached editor disconnects. Defaults to a flush.
	OnClose func(ctx context.Context)

	mu      sync.Mutex
	current *websocket.Conn
	connID  string
}

// NewServer creates a server for bridge.
func NewServer(bridge *Bridge, log *logrus.Entry, m *metrics.Metrics) *Server {
	return &Server{
		bridge:  bridge,
		log:     log,
		metrics: m,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
}

// Handler routes /ws to the editor endpoint and /metrics to Prometheus.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.serveWS)
	mux.Handle("/metrics", s.metrics.Handler())
	return mux
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("Websocket upgrade failed")
		return
	}
	conn.SetReadLimit(maxMessageSize)

	id := uuid.New().String()
	log := s.log.WithField("conn", id)

	s.mu.Lock()
	if s.current != nil {
		log.WithField("replaced", s.connID).Info("Replacing attached editor")
		s.current.Close()
	}
	s.current = conn
	s.connID = id
	s.mu.Unlock()
	s.metrics.SetEditorsActive(1)

	ctx := r.Context()
	s.bridge.Detach()
	sink := NewConnSink(conn)
	if err := s.load(ctx, sink); err != nil {
		log.WithError(err).Warn("Editor load failed")
	}
	log.Info("Editor connected")

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.WithError(err).Warn("Editor connection lost")
			}
			break
		}
		_ = s.bridge.HandleMessage(ctx, data)
	}

	s.mu.Lock()
	owner := s.current == conn
	if owner {
		s.current = nil
		s.connID = ""
	}
	s.mu.Unlock()
	conn.Close()

	if !owner {
		return
	}
	s.metrics.SetEditorsActive(0)
	s.bridge.Detach()
	s.close(context.Background())
	log.Info("Editor disconnected")
}

func (s *Server) load(ctx context.Context, sink Sink) error {
	if s.OnLoad != nil {
		return s.OnLoad(ctx, sink)
	}
	return s.bridge.LoadEnd(ctx, sink)
}

func (s *Server) close(ctx context.Context) {
	if s.OnClose != nil {
		s.OnClose(ctx)
		return
	}
	if err := s.bridge.Flush(ctx); err != nil {
		s.log.WithError(err).Warn("Flush after disconnect failed")
	}
}

// Close disconnects the attached editor.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	return s.current.Close()
}
