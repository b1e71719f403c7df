package protocol

import "time"

// CallStatus is the final disposition of a persisted call.
type CallStatus string

const (
	CallCompleted CallStatus = "completed"
	CallFailed    CallStatus = "failed"
)

// EndReason explains why a session was torn down.
type EndReason string

const (
	ReasonCompleted EndReason = "completed"
	ReasonAbandoned EndReason = "abandoned"
	ReasonHangup    EndReason = "hangup"
	ReasonTimeout   EndReason = "timeout"
	ReasonTurnLimit EndReason = "turn_limit"
)

// CallRecord is the persisted outcome of one phone call.
type CallRecord struct {
	CallID     string       `json:"call_id"`
	Status     CallStatus   `json:"status"`
	Reason     EndReason    `json:"reason,omitempty"`
	StartedAt  time.Time    `json:"started_at"`
	EndedAt    time.Time    `json:"ended_at"`
	Transcript string       `json:"transcript,omitempty"`
	Order      *OrderRecord `json:"order,omitempty"`
	// Draft holds the unconfirmed items for calls that ended without a
	// completed order, so partial orders survive hangups and timeouts.
	Draft []OrderDraftItem `json:"draft,omitempty"`
}

// OrderRecord is a confirmed order extracted from a call.
type OrderRecord struct {
	ID        string           `json:"id"`
	Items     []OrderDraftItem `json:"items"`
	CreatedAt time.Time        `json:"created_at"`
}
