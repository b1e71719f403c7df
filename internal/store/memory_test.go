package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/orderline-io/orderline/pkg/protocol"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.SaveCall(ctx, completedCall("CA1", "ord-1")); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := s.GetCall(ctx, "CA1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Order == nil || got.Order.ID != "ord-1" {
		t.Errorf("unexpected order %+v", got.Order)
	}

	if _, err := s.GetCall(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing call = %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreListFilter(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	old := completedCall("CA-old", "ord-old")
	old.StartedAt = time.Now().Add(-time.Hour)
	s.SaveCall(ctx, old)
	s.SaveCall(ctx, completedCall("CA-new", "ord-new"))
	s.SaveCall(ctx, &protocol.CallRecord{
		CallID: "CA-failed", Status: protocol.CallFailed,
		StartedAt: time.Now(), EndedAt: time.Now(),
	})

	all, _ := s.ListCalls(ctx, Filter{})
	if len(all) != 3 {
		t.Errorf("expected 3 calls, got %d", len(all))
	}
	if all[0].CallID == "CA-old" {
		t.Error("expected newest first")
	}

	completed := protocol.CallCompleted
	byStatus, _ := s.ListCalls(ctx, Filter{Status: &completed, Limit: 1})
	if len(byStatus) != 1 || byStatus[0].Status != protocol.CallCompleted {
		t.Errorf("unexpected filtered list %+v", byStatus)
	}

	n, _ := s.CountCalls(ctx, Filter{Status: &completed})
	if n != 2 {
		t.Errorf("expected count 2, got %d", n)
	}
}
