package socket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"scribe/session"
)

// Conn wraps one subscriber websocket. Writes are serialized; Emit sends a
// JSON frame {"event": ..., "data": ...}.
type Conn struct {
	id string
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *Conn) ID() string { return c.id }

func (c *Conn) Emit(event string, payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteJSON(frame{Event: event, Data: payload})
}

type handlerFunc func(ctx context.Context, conn *Conn, data json.RawMessage)

// Server accepts subscriber connections and dispatches their events
// through a handler table keyed by event name.
type Server struct {
	registry    *session.Registry
	broadcaster *Broadcaster
	log         *log.Logger
	upgrader    websocket.Upgrader
	handlers    map[string]handlerFunc
}

func NewServer(
	registry *session.Registry,
	broadcaster *Broadcaster,
	logger *log.Logger,
) *Server {
	s := &Server{
		registry:    registry,
		broadcaster: broadcaster,
		log:         logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	s.handlers = map[string]handlerFunc{
		EventSubscribe: s.handleSubscribe,
	}
	return s
}

// Serve blocks, listening for subscriber connections on /transcripts.
func (s *Server) Serve(port int) error {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/transcripts", s.handleUpgrade)

	s.log.Info("socket", "url", fmt.Sprintf("ws://localhost:%d/transcripts", port))
	return http.ListenAndServe(fmt.Sprintf(":%d", port), r)
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("failed to upgrade connection", "error", err.Error())
		return
	}

	conn := &Conn{id: uuid.NewString(), ws: ws}
	s.log.Info("connected", "conn", conn.id)

	// The request context dies with this handler; the connection lives on.
	go s.readLoop(context.Background(), conn)
}

func (s *Server) readLoop(ctx context.Context, conn *Conn) {
	defer s.disconnect(conn)

	for {
		var f struct {
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
		}
		if err := conn.ws.ReadJSON(&f); err != nil {
			if websocket.IsUnexpectedCloseError(
				err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure,
			) {
				s.log.Debug("connection closed", "conn", conn.id, "error", err.Error())
			}
			return
		}

		handler, ok := s.handlers[f.Event]
		if !ok {
			s.log.Warn("unknown event", "conn", conn.id, "event", f.Event)
			continue
		}
		handler(ctx, conn, f.Data)
	}
}

func (s *Server) handleSubscribe(
	ctx context.Context,
	conn *Conn,
	data json.RawMessage,
) {
	var req subscribeRequest
	if len(data) > 0 {
		if err := json.Unmarshal(data, &req); err != nil {
			s.emitError(conn, errBadRequest)
			return
		}
	}
	if req.ServerID == "" || req.APIKey == "" {
		s.emitError(conn, errBadRequest)
		return
	}

	s.log.Info("subscribe", "conn", conn.id, "server", req.ServerID)

	if sockErr := s.broadcaster.Subscribe(
		ctx,
		s.registry,
		conn,
		req.ServerID,
		req.APIKey,
	); sockErr != nil {
		s.emitError(conn, *sockErr)
	}
}

// disconnect detaches the subscriber bound to this connection, if any.
// The transport layer only knows connection ids, so the session is found
// through the registry's subscriber index.
func (s *Server) disconnect(conn *Conn) {
	if sess := s.registry.FindBySubscriberConn(conn.id); sess != nil {
		sess.Unsubscribe(conn.id)
		s.log.Info("unsubscribed", "conn", conn.id, "tenant", sess.TenantID)
	}
	conn.ws.Close()
	s.log.Info("disconnected", "conn", conn.id)
}

func (s *Server) emitError(conn *Conn, sockErr SocketError) {
	if err := conn.Emit(EventError, sockErr); err != nil {
		s.log.Debug("failed to emit error", "conn", conn.id, "error", err.Error())
	}
}
