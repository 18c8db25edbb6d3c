package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/cwrk-planet/mesh-service/internal/chat"
	"github.com/cwrk-planet/mesh-service/internal/mesh"
	"github.com/cwrk-planet/mesh-service/internal/topic"
	"github.com/cwrk-planet/mesh-service/internal/wire"
)

var activeConns = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "ws_active_connections",
	Help: "Open websocket views.",
})

type Server struct {
	upgrader websocket.Upgrader
	session  *mesh.Session
	namer    *topic.Namer

	pingEvery time.Duration
}

func NewServer(session *mesh.Session, namer *topic.Namer) *Server {
	return &Server{
		session: session,
		namer:   namer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		pingEvery: 15 * time.Second,
	}
}

// WS endpoint: GET /ws/spaces/{id}?user_id=...
func (s *Server) HandleSpace(w http.ResponseWriter, r *http.Request) {
	spaceID := chi.URLParam(r, "id")
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if spaceID == "" || userID == "" {
		http.Error(w, "missing space id or user_id", http.StatusBadRequest)
		return
	}
	s.serve(w, r, s.namer.Space(spaceID), userID)
}

// WS endpoint: GET /ws/dm/{peer}?user_id=...
func (s *Server) HandleDirect(w http.ResponseWriter, r *http.Request) {
	peerID := chi.URLParam(r, "peer")
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if peerID == "" || userID == "" {
		http.Error(w, "missing peer or user_id", http.StatusBadRequest)
		return
	}
	s.serve(w, r, s.namer.Direct(userID, peerID), userID)
}

// serve — жизненный цикл одного view: upgrade, mount контроллера, циклы
// чтения/записи, unmount при разрыве.
func (s *Server) serve(w http.ResponseWriter, r *http.Request, topicName, userID string) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws upgrade failed", "err", err)
		return
	}

	c := newWsConn(conn)
	activeConns.Inc()
	defer activeConns.Dec()

	ctrl, err := chat.Open(r.Context(), s.session, topicName, userID, chat.Options{
		OnInsert: func(m wire.Message) {
			// live, история и свои отправки приходят сюда по одному разу
			if err := c.Send(Frame{Type: TypeMessage, Payload: toItem(m)}); err != nil {
				slog.Debug("ws push failed", "topic", topicName, "err", err)
			}
		},
	})
	if err != nil {
		slog.Warn("ws mount failed", "topic", topicName, "user", userID, "err", err)
		_ = c.Close()
		return
	}
	defer ctrl.Close()

	if err := s.sendState(c, ctrl); err != nil {
		slog.Warn("ws send initial state failed", "topic", topicName, "err", err)
	}

	go s.writeLoop(r.Context(), c)
	s.readLoop(r.Context(), c, ctrl)

	if err := c.Close(); err != nil {
		slog.Debug("ws close failed", "topic", topicName, "err", err)
	}
}

func (s *Server) sendState(c *wsConn, ctrl *chat.Controller) error {
	msgs := ctrl.Messages()
	items := make([]MessageItem, 0, len(msgs))
	for _, m := range msgs {
		items = append(items, toItem(m))
	}

	return c.Send(Frame{
		Type: TypeState,
		Payload: StatePayload{
			Topic:    ctrl.Topic(),
			Messages: items,
		},
	})
}

func (s *Server) readLoop(ctx context.Context, c *wsConn, ctrl *chat.Controller) {
	defer func() { _ = c.Close() }()

	c.conn.SetReadLimit(1 << 20)
	c.conn.SetReadDeadline(time.Now().Add(2 * s.pingEvery))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(2 * s.pingEvery))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			continue
		}

		switch f.Type {
		case TypeChat:
			var p ChatPayload
			if decode(f.Payload, &p) != nil {
				continue
			}
			msg, err := ctrl.Send(ctx, p.Content)
			if err != nil {
				// Отказ отдаём отправителю; ретраи — решение фронта
				_ = c.Send(Frame{Type: TypeError, Payload: ErrorPayload{Error: err.Error()}})
				continue
			}
			_ = c.Send(Frame{Type: TypeChatAck, Payload: ChatAckPayload{Key: msg.Key()}})
		default:
			// ignore
		}
	}
}

func (s *Server) writeLoop(ctx context.Context, c *wsConn) {
	ticker := time.NewTicker(s.pingEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
		case <-ctx.Done():
			return
		case <-c.closed:
			return
		}
	}
}

// --- helpers ---

func decode(payload interface{}, dst interface{}) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return json.Unmarshal(b, dst)
}

type wsConn struct {
	conn   *websocket.Conn
	sendMu chan struct{}
	closed chan struct{}
}

func newWsConn(c *websocket.Conn) *wsConn {
	return &wsConn{
		conn:   c,
		sendMu: make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
}

func (c *wsConn) Send(f Frame) error {
	c.sendMu <- struct{}{}
	defer func() { <-c.sendMu }()
	c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))

	return c.conn.WriteJSON(f)
}

func (c *wsConn) Close() error {
	select {
	case <-c.closed:
	default:
		close(c.closed)
	}

	return c.conn.Close()
}
