package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/orderline-io/orderline/internal/logbuf"
	"github.com/orderline-io/orderline/internal/session"
	"github.com/orderline-io/orderline/internal/store"
	"github.com/orderline-io/orderline/pkg/protocol"
)

type fakeService struct {
	sessions []session.Info
	calls    map[string]*protocol.CallRecord
	menu     *protocol.Menu
}

func (f *fakeService) Sessions() []session.Info { return f.sessions }

func (f *fakeService) ListCalls(_ context.Context, filter store.Filter) ([]*protocol.CallRecord, error) {
	var out []*protocol.CallRecord
	for _, rec := range f.calls {
		if filter.Status != nil && rec.Status != *filter.Status {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (f *fakeService) GetCall(_ context.Context, callID string) (*protocol.CallRecord, error) {
	rec, ok := f.calls[callID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return rec, nil
}

func (f *fakeService) CountCalls(_ context.Context, filter store.Filter) (int, error) {
	n := 0
	for _, rec := range f.calls {
		if filter.Status != nil && rec.Status != *filter.Status {
			continue
		}
		n++
	}
	return n, nil
}

func (f *fakeService) Menu(_ context.Context) (*protocol.Menu, error) {
	return f.menu, nil
}

func newTestServer(svc CallService, key string) *Server {
	return NewServer(svc, Config{Host: "127.0.0.1", Port: 0, Key: key}, nil, nil, nil)
}

func get(t *testing.T, s *Server, path, key string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	svc := &fakeService{
		sessions: []session.Info{{CallID: "CA1"}},
		calls: map[string]*protocol.CallRecord{
			"CA-done": {CallID: "CA-done", Status: protocol.CallCompleted},
			"CA-lost": {CallID: "CA-lost", Status: protocol.CallFailed},
		},
	}
	s := newTestServer(svc, "")

	w := get(t, s, "/api/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]any
	json.Unmarshal(w.Body.Bytes(), &body)
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
	if body["active_sessions"] != float64(1) {
		t.Errorf("active_sessions = %v", body["active_sessions"])
	}
	if body["calls_persisted"] != float64(2) {
		t.Errorf("calls_persisted = %v", body["calls_persisted"])
	}
	if _, ok := body["event_clients"]; ok {
		t.Error("event_clients should be absent without a hub")
	}
}

func TestHealthReportsEventClients(t *testing.T) {
	s := NewServer(&fakeService{}, Config{}, nil, nil, NewHub(nil))

	w := get(t, s, "/api/health", "")
	var body map[string]any
	json.Unmarshal(w.Body.Bytes(), &body)
	if body["event_clients"] != float64(0) {
		t.Errorf("event_clients = %v", body["event_clients"])
	}
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(&fakeService{}, "secret")

	if w := get(t, s, "/api/sessions", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated status = %d", w.Code)
	}
	if w := get(t, s, "/api/sessions", "wrong"); w.Code != http.StatusUnauthorized {
		t.Errorf("wrong key status = %d", w.Code)
	}
	if w := get(t, s, "/api/sessions", "secret"); w.Code != http.StatusOK {
		t.Errorf("authenticated status = %d", w.Code)
	}
	// Health stays open.
	if w := get(t, s, "/api/health", ""); w.Code != http.StatusOK {
		t.Errorf("health status = %d", w.Code)
	}
}

func TestListSessions(t *testing.T) {
	svc := &fakeService{sessions: []session.Info{
		{CallID: "CA1", Stage: protocol.StageTakingOrder, TurnCount: 3},
	}}
	s := newTestServer(svc, "")

	w := get(t, s, "/api/sessions", "")
	var infos []session.Info
	if err := json.Unmarshal(w.Body.Bytes(), &infos); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(infos) != 1 || infos[0].CallID != "CA1" {
		t.Errorf("infos = %+v", infos)
	}
}

func TestListCallsFilter(t *testing.T) {
	svc := &fakeService{calls: map[string]*protocol.CallRecord{
		"CA1": {CallID: "CA1", Status: protocol.CallCompleted},
		"CA2": {CallID: "CA2", Status: protocol.CallFailed},
	}}
	s := newTestServer(svc, "")

	w := get(t, s, "/api/calls?status=completed", "")
	var calls []*protocol.CallRecord
	if err := json.Unmarshal(w.Body.Bytes(), &calls); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(calls) != 1 || calls[0].CallID != "CA1" {
		t.Errorf("calls = %+v", calls)
	}
}

func TestGetCall(t *testing.T) {
	svc := &fakeService{calls: map[string]*protocol.CallRecord{
		"CA1": {CallID: "CA1", Status: protocol.CallCompleted, EndedAt: time.Now()},
	}}
	s := newTestServer(svc, "")

	w := get(t, s, "/api/calls/CA1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var rec protocol.CallRecord
	if err := json.Unmarshal(w.Body.Bytes(), &rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.CallID != "CA1" {
		t.Errorf("rec = %+v", rec)
	}

	if w := get(t, s, "/api/calls/CA-missing", ""); w.Code != http.StatusNotFound {
		t.Errorf("missing call status = %d", w.Code)
	}
}

func TestGetMenu(t *testing.T) {
	svc := &fakeService{menu: &protocol.Menu{Items: []protocol.MenuItem{{Name: "cheeseburger"}}}}
	s := newTestServer(svc, "")

	w := get(t, s, "/api/menu", "")
	var m protocol.Menu
	if err := json.Unmarshal(w.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(m.Items) != 1 || m.Items[0].Name != "cheeseburger" {
		t.Errorf("menu = %+v", m)
	}
}

func TestLogsWithoutBuffer(t *testing.T) {
	s := newTestServer(&fakeService{}, "")
	w := get(t, s, "/api/logs", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if w.Body.String() != "[]\n" {
		t.Errorf("body = %q", w.Body.String())
	}
}

func TestGetCallLogs(t *testing.T) {
	buf := logbuf.New(10)
	now := time.Now()
	buf.Write(logbuf.Entry{Time: now, Level: "INFO", Message: "turn processed", Attrs: map[string]any{"call": "CA1"}})
	buf.Write(logbuf.Entry{Time: now, Level: "INFO", Message: "turn processed", Attrs: map[string]any{"call": "CA2"}})
	buf.Write(logbuf.Entry{Time: now, Level: "INFO", Message: "call persisted", Attrs: map[string]any{"call": "CA1"}})

	s := NewServer(&fakeService{}, Config{}, nil, buf, nil)

	w := get(t, s, "/api/calls/CA1/logs", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var entries []logbuf.Entry
	if err := json.Unmarshal(w.Body.Bytes(), &entries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[1].Message != "call persisted" {
		t.Errorf("unexpected order %+v", entries)
	}
}
