package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/emberwatch/firecommand/internal/geo"
	"github.com/emberwatch/firecommand/internal/session"
	"github.com/emberwatch/firecommand/pkg/core"
	"github.com/emberwatch/firecommand/pkg/streaming"
	ws "github.com/gorilla/websocket"
)

const (
	sendChSize     = 256
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 << 10
)

// ControlFunc handles one inbound control envelope and returns the ack result.
type ControlFunc func(env streaming.Envelope) (any, error)

// HistorySource exposes the installed history for frame pushes.
type HistorySource interface {
	History() core.History
}

// client is one dashboard connection with a single write goroutine.
type client struct {
	conn   *ws.Conn
	sendCh chan []byte
	done   chan struct{}
	once   sync.Once
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// Hub fans session output out to WebSocket clients and feeds their control
// messages back. It implements session.Observer.
type Hub struct {
	upgrader ws.Upgrader
	control  ControlFunc
	history  HistorySource
	log      *slog.Logger

	mu       sync.RWMutex
	clients  map[*client]struct{}
	closed   bool
	latest   []byte
	frameKey [2]int
}

// NewHub creates a hub. allowOrigins empty or containing "*" accepts any
// origin. The hub pushes nothing but state until Attach is called.
func NewHub(allowOrigins []string, log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	h := &Hub{
		log:      log,
		clients:  make(map[*client]struct{}),
		frameKey: [2]int{-1, -1},
	}
	h.upgrader = ws.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     originChecker(allowOrigins),
	}
	return h
}

// Attach wires the frame source and the handler for inbound control
// messages.
func (h *Hub) Attach(history HistorySource, control ControlFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.history = history
	h.control = control
}

func originChecker(allow []string) func(r *http.Request) bool {
	if len(allow) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]bool, len(allow))
	for _, o := range allow {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set[origin]
	}
}

// ServeHTTP upgrades the request and registers the client.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("WebSocket upgrade failed", "error", err)
		return
	}
	c := &client{conn: conn, sendCh: make(chan []byte, sendChSize), done: make(chan struct{})}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	latest := h.latest
	h.mu.Unlock()

	if latest != nil {
		c.sendCh <- latest
	}
	h.log.Debug("WebSocket client connected", "remote", r.RemoteAddr, "clients", h.Len())

	go h.writeLoop(c)
	go h.readLoop(c)
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.close()
}

func (h *Hub) writeLoop(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		h.remove(c)
	}()
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.sendCh:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(ws.TextMessage, msg); err != nil {
				h.log.Debug("WebSocket write failed", "error", err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(ws.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) readLoop(c *client) {
	defer h.remove(c)
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if ws.IsUnexpectedCloseError(err, ws.CloseGoingAway, ws.CloseAbnormalClosure) {
				h.log.Warn("WebSocket error", "error", err)
			}
			return
		}
		h.send(c, h.handleControl(message))
	}
}

func (h *Hub) handleControl(message []byte) any {
	var env streaming.Envelope
	if err := json.Unmarshal(message, &env); err != nil {
		return streaming.ErrorMessage{Type: streaming.TypeError, Error: "invalid envelope: " + err.Error()}
	}
	h.mu.RLock()
	control := h.control
	h.mu.RUnlock()
	if control == nil {
		return streaming.ErrorMessage{Type: streaming.TypeError, For: env.Type, Error: "control not available"}
	}
	result, err := control(env)
	if err != nil {
		return streaming.ErrorMessage{Type: streaming.TypeError, For: env.Type, Error: err.Error()}
	}
	return streaming.AckMessage{Type: streaming.TypeAck, For: env.Type, Result: result}
}

func (h *Hub) send(c *client, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		h.log.Error("Failed to encode reply", "error", err)
		return
	}
	select {
	case c.sendCh <- data:
	case <-c.done:
	default:
		h.log.Warn("WebSocket client too slow, dropping")
		c.close()
	}
}

// Broadcast queues msg for every client. Clients whose queue is full are
// disconnected.
func (h *Hub) Broadcast(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.sendCh <- msg:
		default:
			h.log.Warn("WebSocket client too slow, dropping")
			c.close()
		}
	}
}

func (h *Hub) broadcast(t string, payload any) {
	data, err := streaming.Encode(t, payload)
	if err != nil {
		h.log.Error("Failed to encode broadcast", "type", t, "error", err)
		return
	}
	h.Broadcast(data)
}

// StateChanged pushes the snapshot and, when the visible frame moved, the
// frame features.
func (h *Hub) StateChanged(snap session.Snapshot) {
	data, err := streaming.Encode(streaming.TypeState, snap)
	if err != nil {
		h.log.Error("Failed to encode state", "error", err)
		return
	}
	h.mu.Lock()
	h.latest = data
	key := [2]int{snap.Frames, snap.Playback.FrameIndex}
	moved := key != h.frameKey
	h.frameKey = key
	history := h.history
	h.mu.Unlock()

	h.Broadcast(data)
	if moved && history != nil {
		if frame, ok := framePayload(history.History(), snap, h.log); ok {
			h.broadcast(streaming.TypeFrame, frame)
		}
	}
}

func framePayload(history core.History, snap session.Snapshot, log *slog.Logger) (streaming.FramePayload, bool) {
	if len(history) != snap.Frames {
		// a newer history was installed; its own snapshot follows
		return streaming.FramePayload{}, false
	}
	fc := geo.FrameFeatures(session.VisibleFrame(history, snap.Playback.FrameIndex), geo.ProjectionWGS84)
	raw, err := json.Marshal(fc)
	if err != nil {
		log.Error("Failed to encode frame", "error", err)
		return streaming.FramePayload{}, false
	}
	return streaming.FramePayload{
		Index:        snap.Playback.FrameIndex,
		ElapsedHours: snap.ElapsedHours,
		Playing:      snap.Playback.IsPlaying,
		Features:     raw,
	}, true
}

// RunCompleted pushes the run report.
func (h *Hub) RunCompleted(r session.RunReport) {
	h.broadcast(streaming.TypeRunCompleted, r)
}

// RunFailed pushes the failure.
func (h *Hub) RunFailed(f session.RunFailure) {
	msg := ""
	if f.Err != nil {
		msg = f.Err.Error()
	}
	h.broadcast(streaming.TypeRunFailed, streaming.RunFailedPayload{Sequence: f.Request.Sequence, Error: msg})
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[*client]struct{})
	h.mu.Unlock()

	for _, c := range clients {
		c.conn.WriteControl(ws.CloseMessage,
			ws.FormatCloseMessage(ws.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		c.close()
	}
}
