// Package store persists finished calls and their orders. Live sessions
// never touch it; the session manager writes exactly once, at teardown.
package store

import (
	"context"
	"errors"

	"github.com/orderline-io/orderline/pkg/protocol"
)

// ErrNotFound reports a lookup for a call that was never persisted.
var ErrNotFound = errors.New("store: call not found")

// Store is the persistence interface for call records.
type Store interface {
	// SaveCall writes a finished call and, if present, its order.
	SaveCall(ctx context.Context, rec *protocol.CallRecord) error
	// GetCall retrieves a call by call ID, including its order.
	GetCall(ctx context.Context, callID string) (*protocol.CallRecord, error)
	// ListCalls returns calls matching the filter, newest first.
	ListCalls(ctx context.Context, filter Filter) ([]*protocol.CallRecord, error)
	// CountCalls returns the number of calls matching the filter.
	CountCalls(ctx context.Context, filter Filter) (int, error)
	// Close releases the underlying storage.
	Close() error
}

// Filter constrains call list queries.
type Filter struct {
	Status *protocol.CallStatus
	Limit  int // 0 = no limit
}
