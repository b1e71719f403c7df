package api

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/orderline-io/orderline/internal/connector"
	"github.com/orderline-io/orderline/pkg/protocol"
)

// Event is one entry on the live call-event feed.
type Event struct {
	Type   string    `json:"type"` // call_started, turn, call_ended
	CallID string    `json:"call_id"`
	At     time.Time `json:"at"`
	Data   any       `json:"data,omitempty"`
}

// Hub fans call events out to websocket subscribers. Slow or broken
// subscribers are dropped, never waited on.
type Hub struct {
	mu       sync.Mutex
	clients  map[*websocket.Conn]chan Event
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// NewHub creates an event hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients: make(map[*websocket.Conn]chan Event),
		logger:  logger,
		upgrader: websocket.Upgrader{
			// The admin API is bearer-authed and CORS-open; the event
			// feed follows the same policy.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Broadcast queues an event for every connected subscriber.
func (h *Hub) Broadcast(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, ch := range h.clients {
		select {
		case ch <- ev:
		default:
			h.logger.Warn("dropping slow event subscriber")
			delete(h.clients, conn)
			close(ch)
			conn.Close()
		}
	}
}

// ClientCount returns the number of connected subscribers.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	ch := make(chan Event, 64)
	h.mu.Lock()
	h.clients[conn] = ch
	h.mu.Unlock()
	h.logger.Info("event subscriber connected", "remote", conn.RemoteAddr())

	// Reader goroutine: we never expect client frames, but reading is
	// what surfaces the close.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.remove(conn)
				return
			}
		}
	}()

	for ev := range ch {
		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteJSON(ev); err != nil {
			h.remove(conn)
			return
		}
	}
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	if ch, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		close(ch)
	}
	h.mu.Unlock()
	conn.Close()
}

// EventedCalls decorates a call handler so every lifecycle transition is
// broadcast on the hub.
type EventedCalls struct {
	inner connector.CallHandler
	hub   *Hub
}

// WrapCalls wires a call handler to the event hub.
func WrapCalls(inner connector.CallHandler, hub *Hub) *EventedCalls {
	return &EventedCalls{inner: inner, hub: hub}
}

func (e *EventedCalls) StartCall(ctx context.Context, callID string) (string, error) {
	greeting, err := e.inner.StartCall(ctx, callID)
	if err == nil {
		e.hub.Broadcast(Event{Type: "call_started", CallID: callID})
	}
	return greeting, err
}

func (e *EventedCalls) HandleTurn(ctx context.Context, callID, callerText string) (*protocol.TurnOutcome, error) {
	outcome, err := e.inner.HandleTurn(ctx, callID, callerText)
	if err == nil {
		e.hub.Broadcast(Event{Type: "turn", CallID: callID, Data: map[string]any{
			"caller_text":    callerText,
			"assistant_text": outcome.AssistantText,
			"terminal":       outcome.Terminal,
		}})
		if outcome.Terminal {
			e.hub.Broadcast(Event{Type: "call_ended", CallID: callID})
		}
	}
	return outcome, err
}

func (e *EventedCalls) EndCall(ctx context.Context, callID string, reason protocol.EndReason) {
	e.inner.EndCall(ctx, callID, reason)
	e.hub.Broadcast(Event{Type: "call_ended", CallID: callID, Data: map[string]any{
		"reason": string(reason),
	}})
}
