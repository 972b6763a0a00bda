// Package monitor streams call events to operators over websockets.
package monitor

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/room4-2/SalesCaller/messages"
)

const (
	writeBufferSize = 64
	writeTimeout    = 10 * time.Second
	pingPeriod      = 30 * time.Second
	pongWait        = 2 * pingPeriod
)

type subscriber struct {
	conn      *websocket.Conn
	send      chan *messages.Event
	closeOnce sync.Once
	done      chan struct{}
}

func (s *subscriber) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}

// Hub fans call events out to every connected monitor
type Hub struct {
	mu          sync.RWMutex
	subscribers map[*subscriber]struct{}
	upgrader    websocket.Upgrader
	logger      *zap.Logger
}

// NewHub creates a hub accepting browser connections from allowedOrigins ("*" allows all)
func NewHub(allowedOrigins []string, logger *zap.Logger) *Hub {
	return &Hub{
		subscribers: make(map[*subscriber]struct{}),
		logger:      logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				for _, allowed := range allowedOrigins {
					if allowed == "*" || allowed == origin {
						return true
					}
				}
				return false
			},
		},
	}
}

// Publish queues the event for every subscriber. Subscribers whose queue is
// full miss the event; Publish never blocks.
func (h *Hub) Publish(event *messages.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for s := range h.subscribers {
		select {
		case s.send <- event:
		default:
			h.logger.Debug("monitor queue full, dropping event", zap.String("type", event.Type))
		}
	}
}

// Count returns the number of connected monitors
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// ServeHTTP upgrades the request and streams events until the peer leaves
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("monitor websocket upgrade failed", zap.Error(err))
		return
	}

	s := &subscriber{
		conn: conn,
		send: make(chan *messages.Event, writeBufferSize),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	h.subscribers[s] = struct{}{}
	h.mu.Unlock()
	h.logger.Info("monitor connected", zap.String("remote_addr", r.RemoteAddr))

	go h.writePump(s)
	h.readPump(s)

	h.mu.Lock()
	delete(h.subscribers, s)
	h.mu.Unlock()
	h.logger.Info("monitor disconnected", zap.String("remote_addr", r.RemoteAddr))
}

// readPump discards inbound frames and returns when the connection closes
func (h *Hub) readPump(s *subscriber) {
	defer s.close()

	s.conn.SetReadLimit(512)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump handles all outgoing messages in a single goroutine
func (h *Hub) writePump(s *subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.close()
	}()

	for {
		select {
		case <-s.done:
			return
		case event := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := s.conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Close disconnects every monitor
func (h *Hub) Close() {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for s := range h.subscribers {
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		s.close()
	}
}
