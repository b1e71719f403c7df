// Package connector bridges telephony providers to the call pipeline.
package connector

import (
	"context"

	"github.com/orderline-io/orderline/pkg/protocol"
)

// CallHandler is what a telephony connector needs from the call engine.
// The session manager implements it.
type CallHandler interface {
	// StartCall opens a session and returns the greeting to speak.
	StartCall(ctx context.Context, callID string) (string, error)
	// HandleTurn processes one caller utterance.
	HandleTurn(ctx context.Context, callID, callerText string) (*protocol.TurnOutcome, error)
	// EndCall tears a session down. Safe for unknown calls.
	EndCall(ctx context.Context, callID string, reason protocol.EndReason)
}
