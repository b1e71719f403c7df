package protocol

import (
	"fmt"
	"strings"
	"time"
)

// TranscriptTurn is one utterance in the conversation, caller or assistant.
type TranscriptTurn struct {
	Speaker string    `json:"speaker"` // "caller" or "assistant"
	Text    string    `json:"text"`
	At      time.Time `json:"at"`
}

const (
	SpeakerCaller    = "caller"
	SpeakerAssistant = "assistant"
)

// ConversationState is the authoritative per-call record. It is owned
// exclusively by one CallSession; all mutable per-call state lives here so
// a future durable session store only has to serialize this one struct.
type ConversationState struct {
	CallID     string           `json:"call_id"`
	Stage      Stage            `json:"stage"`
	Transcript []TranscriptTurn `json:"transcript"`
	// OrderDraft preserves insertion order so re-confirmation reads the
	// order back deterministically. Keys are normalized item names.
	OrderDraft []OrderDraftItem `json:"order_draft"`
	TurnCount  int              `json:"turn_count"`
}

// NewConversationState creates a state in the greeting stage.
func NewConversationState(callID string) *ConversationState {
	return &ConversationState{
		CallID: callID,
		Stage:  StageGreeting,
	}
}

// AddTurn appends an utterance to the transcript.
func (s *ConversationState) AddTurn(speaker, text string) {
	s.Transcript = append(s.Transcript, TranscriptTurn{
		Speaker: speaker,
		Text:    text,
		At:      time.Now().UTC(),
	})
}

// TranscriptText renders the transcript as "speaker: text" lines.
func (s *ConversationState) TranscriptText() string {
	var b strings.Builder
	for i, t := range s.Transcript {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(t.Speaker)
		b.WriteString(": ")
		b.WriteString(t.Text)
	}
	return b.String()
}

// DraftItem returns the draft line for a normalized item name.
func (s *ConversationState) DraftItem(name string) (*OrderDraftItem, bool) {
	for i := range s.OrderDraft {
		if s.OrderDraft[i].ItemName == name {
			return &s.OrderDraft[i], true
		}
	}
	return nil, false
}

// UpsertDraftItem merges an accepted item into the draft. An existing line
// for the same name gets its quantity increased and modifiers unioned;
// otherwise the item is appended, preserving insertion order.
func (s *ConversationState) UpsertDraftItem(item OrderDraftItem) {
	if existing, ok := s.DraftItem(item.ItemName); ok {
		existing.Quantity += item.Quantity
		existing.Modifiers = unionModifiers(existing.Modifiers, item.Modifiers)
		return
	}
	s.OrderDraft = append(s.OrderDraft, item)
}

// RemoveDraftItem deletes a draft line. Reports whether it was present.
func (s *ConversationState) RemoveDraftItem(name string) bool {
	for i := range s.OrderDraft {
		if s.OrderDraft[i].ItemName == name {
			s.OrderDraft = append(s.OrderDraft[:i], s.OrderDraft[i+1:]...)
			return true
		}
	}
	return false
}

// SetDraftQuantity updates the quantity of an existing draft line.
// Reports whether the item was present.
func (s *ConversationState) SetDraftQuantity(name string, qty int) bool {
	item, ok := s.DraftItem(name)
	if !ok {
		return false
	}
	item.Quantity = qty
	return true
}

// HasItems reports whether the draft contains at least one item.
func (s *ConversationState) HasItems() bool {
	return len(s.OrderDraft) > 0
}

// OrderSummary renders the draft for read-back to the caller.
func (s *ConversationState) OrderSummary() string {
	if len(s.OrderDraft) == 0 {
		return "no items yet"
	}
	parts := make([]string, 0, len(s.OrderDraft))
	for _, item := range s.OrderDraft {
		p := fmt.Sprintf("%d %s", item.Quantity, item.ItemName)
		if len(item.Modifiers) > 0 {
			p += " (" + strings.Join(item.Modifiers, ", ") + ")"
		}
		parts = append(parts, p)
	}
	return strings.Join(parts, ", ")
}

func unionModifiers(a, b []string) []string {
	out := a
	for _, m := range b {
		seen := false
		for _, existing := range out {
			if existing == m {
				seen = true
				break
			}
		}
		if !seen {
			out = append(out, m)
		}
	}
	return out
}
