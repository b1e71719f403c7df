package protocol

// Stage represents the phase of the ordering conversation.
type Stage string

const (
	StageGreeting        Stage = "greeting"
	StageTakingOrder     Stage = "taking_order"
	StageConfirmingOrder Stage = "confirming_order"
	StageOrderComplete   Stage = "order_complete"
	StageFailed          Stage = "failed"
)

// Terminal reports whether no further turns are processed in this stage.
func (s Stage) Terminal() bool {
	return s == StageOrderComplete || s == StageFailed
}

// Intent is the conversational intent declared by the LLM for one turn.
type Intent string

const (
	IntentContinue    Intent = "continue"
	IntentConfirm     Intent = "confirm"
	IntentComplete    Intent = "complete"
	IntentAbandon     Intent = "abandon"
	IntentUnparseable Intent = "unparseable"
)

// OpType identifies a single order-draft mutation requested by the LLM.
type OpType string

const (
	OpAdd         OpType = "add"
	OpRemove      OpType = "remove"
	OpSetQuantity OpType = "set_quantity"
)

// Operation is one candidate order-draft mutation extracted from a turn.
// ItemName is normalized (lowercase, trimmed) by the parser before any
// other component sees it.
type Operation struct {
	Op        OpType   `json:"op"`
	ItemName  string   `json:"item_name"`
	Quantity  int      `json:"quantity,omitempty"`
	Modifiers []string `json:"modifiers,omitempty"`
}

// ParsedTurnResult is the decoded, normalized output of one LLM turn.
// It is transient: never persisted, consumed by the session manager only.
type ParsedTurnResult struct {
	Intent        Intent      `json:"intent"`
	Operations    []Operation `json:"operations,omitempty"`
	AssistantText string      `json:"assistant_text"`
}

// ValidationStatus classifies an order draft item against the menu.
type ValidationStatus string

const (
	ValidationAccepted ValidationStatus = "accepted"
	ValidationPending  ValidationStatus = "pending"
	ValidationRejected ValidationStatus = "rejected"
)

// OrderDraftItem is one menu-verified line of the in-progress order.
type OrderDraftItem struct {
	ItemName  string           `json:"item_name"`
	Quantity  int              `json:"quantity"`
	Modifiers []string         `json:"modifiers,omitempty"`
	Status    ValidationStatus `json:"status"`
}

// TurnOutcome tells the telephony layer what to do after a processed turn.
type TurnOutcome struct {
	AssistantText string `json:"assistant_text"`
	KeepListening bool   `json:"keep_listening"`
	Terminal      bool   `json:"terminal"`
}
