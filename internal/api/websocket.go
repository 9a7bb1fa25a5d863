package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"match-replay/internal/viewer"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	// MaxWSConnectionsTotal is the maximum number of WebSocket connections allowed
	MaxWSConnectionsTotal = 500

	// MaxWSConnectionsPerIP is the maximum WebSocket connections per IP
	MaxWSConnectionsPerIP = 10

	// StateBroadcastInterval is the periodic playback:state push rate.
	StateBroadcastInterval = 100 * time.Millisecond

	// EventPlaybackState carries a viewer.State.
	EventPlaybackState = "playback:state"
	// EventWelcome is sent once to a new client with its id.
	EventWelcome = "session:welcome"
	// EventCommandResult answers a client command.
	EventCommandResult = "command:result"

	wsWriteTimeout = 5 * time.Second
	wsMaxMessage   = 4 << 10
)

// wsClient tracks a WebSocket connection with its source IP
type wsClient struct {
	id   string
	conn *websocket.Conn
	ip   string
}

type directMessage struct {
	conn    *websocket.Conn
	payload []byte
}

// WebSocketHub manages all WebSocket connections with DoS protection.
// All writes happen on the Run goroutine.
type WebSocketHub struct {
	viewer ViewerInterface

	clients    map[*websocket.Conn]*wsClient
	broadcast  chan []byte
	direct     chan directMessage
	register   chan *wsClient
	unregister chan *websocket.Conn
	done       chan struct{} // closed when Run returns
	mu         sync.RWMutex

	upgrader websocket.Upgrader

	// Connection limiting per IP
	wsLimiter *WebSocketRateLimiter
}

// NewWebSocketHub creates a new hub with connection limiting. Commands
// received from clients are applied to v.
func NewWebSocketHub(v ViewerInterface, allowedOrigins []string) *WebSocketHub {
	h := &WebSocketHub{
		viewer:     v,
		clients:    make(map[*websocket.Conn]*wsClient),
		broadcast:  make(chan []byte, 256),
		direct:     make(chan directMessage, 64),
		register:   make(chan *wsClient),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		wsLimiter:  NewWebSocketRateLimiter(MaxWSConnectionsPerIP),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if IsAllowedOrigin(origin, allowedOrigins) {
				return true
			}
			log.Warn().Str("origin", origin).Msg("⚠️ WebSocket connection rejected")
			RecordConnectionRejected("origin")
			return false
		},
	}
	return h
}

// Run services registrations and writes until ctx is cancelled, then closes
// every connection.
func (h *WebSocketHub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for conn, client := range h.clients {
				h.wsLimiter.Release(client.ip)
				conn.Close()
				delete(h.clients, conn)
			}
			h.mu.Unlock()
			UpdateWSConnections(0)
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.conn] = client
			count := len(h.clients)
			h.mu.Unlock()

			log.Info().Str("client", client.id).Str("ip", client.ip).Int("total", count).Msg("📱 Client connected")
			UpdateWSConnections(count)

		case conn := <-h.unregister:
			h.drop(conn)

		case msg := <-h.direct:
			h.write(msg.conn, msg.payload)

		case message := <-h.broadcast:
			h.mu.RLock()
			conns := make([]*websocket.Conn, 0, len(h.clients))
			for conn := range h.clients {
				conns = append(conns, conn)
			}
			h.mu.RUnlock()

			for _, conn := range conns {
				h.write(conn, message)
			}
			IncrementWSMessages()
		}
	}
}

func (h *WebSocketHub) write(conn *websocket.Conn, payload []byte) {
	h.mu.RLock()
	_, ok := h.clients[conn]
	h.mu.RUnlock()
	if !ok {
		return
	}
	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		h.drop(conn)
	}
}

func (h *WebSocketHub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	client, ok := h.clients[conn]
	if ok {
		h.wsLimiter.Release(client.ip)
		delete(h.clients, conn)
		conn.Close()
	}
	count := len(h.clients)
	h.mu.Unlock()

	if ok {
		log.Info().Str("client", client.id).Int("remaining", count).Msg("📱 Client disconnected")
		UpdateWSConnections(count)
	}
}

func encodeEvent(event string, data interface{}) ([]byte, error) {
	return json.Marshal(map[string]interface{}{
		"event": event,
		"data":  data,
	})
}

// Broadcast sends a message to all connected clients
func (h *WebSocketHub) Broadcast(event string, data interface{}) {
	jsonBytes, err := encodeEvent(event, data)
	if err != nil {
		return
	}

	select {
	case h.broadcast <- jsonBytes:
	default:
		// Channel full, skip (backpressure)
	}
}

func (h *WebSocketHub) sendTo(conn *websocket.Conn, event string, data interface{}) {
	jsonBytes, err := encodeEvent(event, data)
	if err != nil {
		return
	}
	select {
	case h.direct <- directMessage{conn: conn, payload: jsonBytes}:
	default:
	}
}

// ClientCount returns the number of connected clients
func (h *WebSocketHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// StartBroadcastLoop pushes playback:state on every state change and at
// StateBroadcastInterval, until ctx is cancelled.
func (h *WebSocketHub) StartBroadcastLoop(ctx context.Context) {
	unsubscribe := h.viewer.Subscribe(func(st viewer.State) {
		UpdatePlaybackMetrics(st)
		if h.ClientCount() > 0 {
			h.Broadcast(EventPlaybackState, st)
		}
	})

	ticker := time.NewTicker(StateBroadcastInterval)
	go func() {
		defer ticker.Stop()
		defer unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				st := h.viewer.Snapshot()
				UpdatePlaybackMetrics(st)
				if h.ClientCount() == 0 {
					continue
				}
				h.Broadcast(EventPlaybackState, st)
			}
		}
	}()
}

// HandleWebSocket handles incoming WebSocket connections with DoS protection
func (h *WebSocketHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ip := GetClientIP(r)

	if total := h.ClientCount(); total >= MaxWSConnectionsTotal {
		log.Warn().Int("total", total).Msg("⚠️ WebSocket connection rejected: total limit reached")
		RecordConnectionRejected("ws_total_limit")
		http.Error(w, "Too many connections", http.StatusServiceUnavailable)
		return
	}

	if !h.wsLimiter.Allow(ip) {
		log.Warn().Str("ip", ip).Msg("⚠️ WebSocket connection rejected: per-IP limit reached")
		RecordConnectionRejected("ws_ip_limit")
		http.Error(w, "Too many connections from your IP", http.StatusTooManyRequests)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug().Err(err).Msg("WebSocket upgrade error")
		h.wsLimiter.Release(ip)
		return
	}
	conn.SetReadLimit(wsMaxMessage)

	client := &wsClient{id: uuid.NewString(), conn: conn, ip: ip}
	select {
	case h.register <- client:
	case <-h.done:
		h.wsLimiter.Release(ip)
		conn.Close()
		return
	}
	h.sendTo(conn, EventWelcome, map[string]interface{}{
		"clientId": client.id,
		"state":    h.viewer.Snapshot(),
	})

	go func() {
		defer func() {
			select {
			case h.unregister <- conn:
			case <-h.done:
			}
		}()

		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				return
			}

			var cmd Command
			if err := json.Unmarshal(message, &cmd); err != nil {
				h.sendTo(conn, EventCommandResult, CommandResult{OK: false, Error: "invalid json"})
				continue
			}
			log.Debug().Str("client", client.id).Str("action", cmd.Action).Msg("📨 WebSocket command")
			h.sendTo(conn, EventCommandResult, ApplyCommand(h.viewer, cmd))
		}
	}()
}
