package order

import (
	"errors"
	"testing"

	"github.com/orderline-io/orderline/pkg/protocol"
)

func TestParseValidTurn(t *testing.T) {
	raw := `{
		"intent": "continue",
		"assistant_text": "One cheeseburger, coming up. Anything else?",
		"operations": [
			{"op": "add", "item_name": "  Cheeseburger ", "quantity": 2, "modifiers": ["Extra Cheese"]}
		]
	}`

	result, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if result.Intent != protocol.IntentContinue {
		t.Errorf("intent = %q", result.Intent)
	}
	if len(result.Operations) != 1 {
		t.Fatalf("expected 1 operation, got %d", len(result.Operations))
	}
	op := result.Operations[0]
	if op.ItemName != "cheeseburger" {
		t.Errorf("item name not normalized: %q", op.ItemName)
	}
	if op.Quantity != 2 {
		t.Errorf("quantity = %d", op.Quantity)
	}
	if len(op.Modifiers) != 1 || op.Modifiers[0] != "extra cheese" {
		t.Errorf("modifiers not normalized: %v", op.Modifiers)
	}
}

func TestParseDefaultsAddQuantity(t *testing.T) {
	raw := `{"intent": "continue", "assistant_text": "ok", "operations": [{"op": "add", "item_name": "fries"}]}`
	result, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if result.Operations[0].Quantity != 1 {
		t.Errorf("expected default quantity 1, got %d", result.Operations[0].Quantity)
	}
}

func TestParseMergesDuplicateAdds(t *testing.T) {
	raw := `{
		"intent": "continue",
		"assistant_text": "ok",
		"operations": [
			{"op": "add", "item_name": "fries", "quantity": 1, "modifiers": ["large"]},
			{"op": "add", "item_name": "Fries", "quantity": 2, "modifiers": ["large"]},
			{"op": "remove", "item_name": "cola"}
		]
	}`
	result, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(result.Operations) != 2 {
		t.Fatalf("expected merged operations, got %+v", result.Operations)
	}
	if result.Operations[0].Quantity != 3 {
		t.Errorf("expected summed quantity 3, got %d", result.Operations[0].Quantity)
	}
	if len(result.Operations[0].Modifiers) != 1 {
		t.Errorf("expected deduplicated modifiers, got %v", result.Operations[0].Modifiers)
	}
}

func TestParseFencedOutput(t *testing.T) {
	raw := "Here is the order:\n```json\n{\"intent\": \"confirm\", \"assistant_text\": \"Shall I confirm?\"}\n```"
	result, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if result.Intent != protocol.IntentConfirm {
		t.Errorf("intent = %q", result.Intent)
	}
}

func TestParseSkipsDecoyObjects(t *testing.T) {
	raw := `The draft {"note": "ignore me"} is ready: {"intent": "confirm", "assistant_text": "Shall I read that back?"}`
	result, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if result.Intent != protocol.IntentConfirm {
		t.Errorf("intent = %q, want confirm", result.Intent)
	}
	if result.AssistantText != "Shall I read that back?" {
		t.Errorf("assistant text = %q", result.AssistantText)
	}
}

func TestParseMalformed(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"not json", "sure, one burger!"},
		{"missing intent", `{"assistant_text": "hi"}`},
		{"bad intent", `{"intent": "shout", "assistant_text": "hi"}`},
		{"zero quantity", `{"intent": "continue", "assistant_text": "x", "operations": [{"op": "add", "item_name": "fries", "quantity": 0}]}`},
		{"negative quantity", `{"intent": "continue", "assistant_text": "x", "operations": [{"op": "set_quantity", "item_name": "fries", "quantity": -1}]}`},
		{"blank item", `{"intent": "continue", "assistant_text": "x", "operations": [{"op": "add", "item_name": "   "}]}`},
		{"missing set quantity", `{"intent": "continue", "assistant_text": "x", "operations": [{"op": "set_quantity", "item_name": "fries"}]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Parse(tc.raw); !errors.Is(err, ErrMalformedResponse) {
				t.Errorf("expected ErrMalformedResponse, got %v", err)
			}
		})
	}
}

func TestParseNoOperations(t *testing.T) {
	result, err := Parse(`{"intent": "abandon", "assistant_text": "Goodbye"}`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if result.Intent != protocol.IntentAbandon || len(result.Operations) != 0 {
		t.Errorf("unexpected result: %+v", result)
	}
}
