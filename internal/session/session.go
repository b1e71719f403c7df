// Package session owns the per-call state machine: an in-memory store of
// live call sessions, strict per-call turn serialization, and the
// orchestration of one turn through the LLM, parser, validator, and
// transition pipeline.
package session

import (
	"errors"
	"time"

	"github.com/orderline-io/orderline/pkg/protocol"
)

var (
	// ErrDuplicateCall reports a start for a call_id that already has a
	// live session. Guards against duplicate webhook delivery.
	ErrDuplicateCall = errors.New("session: call already active")

	// ErrUnknownSession reports a turn for a call_id with no live session.
	// Non-retryable; the telephony layer must end the call.
	ErrUnknownSession = errors.New("session: unknown call")

	// ErrConcurrentTurn reports a second simultaneous turn for one call.
	// A protocol violation by the telephony provider; the caller gets a
	// hold message instead of corrupted state.
	ErrConcurrentTurn = errors.New("session: turn already in flight")

	// ErrSessionEnded reports a turn for a session that reached a
	// terminal stage or is marked for teardown.
	ErrSessionEnded = errors.New("session: call has ended")
)

// CallSession is one live phone call. The manager's mutex guards the
// bookkeeping and snapshot fields; State is only ever touched by the
// single in-flight turn, so it needs no lock of its own. Anything else
// that wants to observe the call (the admin API) reads the snapshot
// fields, never State.
type CallSession struct {
	CallID         string
	State          *protocol.ConversationState
	CreatedAt      time.Time
	LastActivityAt time.Time

	// Snapshot of State for Sessions(), refreshed under the manager's
	// mutex whenever a turn finishes.
	stage     protocol.Stage
	turnCount int
	items     int

	inFlight     bool
	endRequested bool
	endReason    protocol.EndReason
}

// Info is a read-only snapshot of a live session for the admin API.
type Info struct {
	CallID         string         `json:"call_id"`
	Stage          protocol.Stage `json:"stage"`
	TurnCount      int            `json:"turn_count"`
	Items          int            `json:"items"`
	CreatedAt      time.Time      `json:"created_at"`
	LastActivityAt time.Time      `json:"last_activity_at"`
}
