package api

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/orderline-io/orderline/pkg/protocol"
)

func TestHubBroadcastToSubscriber(t *testing.T) {
	hub := NewHub(nil)
	srv := httptest.NewServer(NewServer(&fakeService{}, Config{}, nil, nil, hub).Handler())
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// The subscriber registers before the handler write loop starts, so
	// a short wait is enough.
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if hub.ClientCount() != 1 {
		t.Fatalf("ClientCount = %d", hub.ClientCount())
	}

	hub.Broadcast(Event{Type: "call_started", CallID: "CA1"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read: %v", err)
	}
	if ev.Type != "call_started" || ev.CallID != "CA1" {
		t.Errorf("event = %+v", ev)
	}
	if ev.At.IsZero() {
		t.Error("expected a timestamp")
	}
}

type recordingHandler struct {
	outcome *protocol.TurnOutcome
}

func (h *recordingHandler) StartCall(context.Context, string) (string, error) {
	return "hello", nil
}

func (h *recordingHandler) HandleTurn(context.Context, string, string) (*protocol.TurnOutcome, error) {
	return h.outcome, nil
}

func (h *recordingHandler) EndCall(context.Context, string, protocol.EndReason) {}

func TestWrapCallsBroadcastsLifecycle(t *testing.T) {
	hub := NewHub(nil)
	var captured []Event

	// Subscribe directly on the client map with a buffered channel.
	ch := make(chan Event, 16)
	conn := &websocket.Conn{}
	hub.mu.Lock()
	hub.clients[conn] = ch
	hub.mu.Unlock()

	wrapped := WrapCalls(&recordingHandler{
		outcome: &protocol.TurnOutcome{AssistantText: "bye", Terminal: true},
	}, hub)

	ctx := context.Background()
	if _, err := wrapped.StartCall(ctx, "CA1"); err != nil {
		t.Fatalf("StartCall: %v", err)
	}
	if _, err := wrapped.HandleTurn(ctx, "CA1", "done"); err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}
	wrapped.EndCall(ctx, "CA1", protocol.ReasonHangup)

	close(ch)
	for ev := range ch {
		captured = append(captured, ev)
	}

	want := []string{"call_started", "turn", "call_ended", "call_ended"}
	if len(captured) != len(want) {
		t.Fatalf("got %d events %+v, want %d", len(captured), captured, len(want))
	}
	for i, ev := range captured {
		if ev.Type != want[i] {
			t.Errorf("event[%d] = %q, want %q", i, ev.Type, want[i])
		}
		if ev.CallID != "CA1" {
			t.Errorf("event[%d].CallID = %q", i, ev.CallID)
		}
	}
}
