package order

import (
	"testing"

	"github.com/orderline-io/orderline/pkg/protocol"
)

func burgerMenu() *protocol.Menu {
	return &protocol.Menu{Items: []protocol.MenuItem{
		{Name: "cheeseburger", Options: []string{"no onions", "extra cheese"}},
		{Name: "hamburger", Options: []string{"no onions"}},
		{Name: "fries", Options: []string{"large", "small"}},
	}}
}

func TestValidateExactMatch(t *testing.T) {
	res := Validate(protocol.Operation{Op: protocol.OpAdd, ItemName: "cheeseburger", Quantity: 1},
		burgerMenu(), protocol.NewConversationState("CA1"))
	if res.Outcome != Accepted || res.CanonicalName != "cheeseburger" {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestValidateFuzzyMatch(t *testing.T) {
	// Single substitution resolves to the unique candidate.
	res := Validate(protocol.Operation{Op: protocol.OpAdd, ItemName: "chesseburger", Quantity: 1},
		burgerMenu(), protocol.NewConversationState("CA1"))
	if res.Outcome != Accepted {
		t.Fatalf("expected accepted, got %+v", res)
	}
	if res.CanonicalName != "cheeseburger" {
		t.Errorf("expected canonical substitution, got %q", res.CanonicalName)
	}
}

func TestValidateShortNamesMatchExactlyOnly(t *testing.T) {
	m := &protocol.Menu{Items: []protocol.MenuItem{{Name: "tea"}}}
	res := Validate(protocol.Operation{Op: protocol.OpAdd, ItemName: "teh", Quantity: 1},
		m, protocol.NewConversationState("CA1"))
	if res.Outcome != ItemNotFound {
		t.Errorf("expected ItemNotFound for short fuzzy candidate, got %+v", res)
	}
}

func TestValidateAmbiguous(t *testing.T) {
	m := &protocol.Menu{Items: []protocol.MenuItem{
		{Name: "cola"}, {Name: "colas"},
	}}
	res := Validate(protocol.Operation{Op: protocol.OpAdd, ItemName: "colaa", Quantity: 1},
		m, protocol.NewConversationState("CA1"))
	if res.Outcome != AmbiguousItem {
		t.Fatalf("expected AmbiguousItem, got %+v", res)
	}
	if len(res.Candidates) != 2 {
		t.Errorf("expected both candidates, got %v", res.Candidates)
	}
}

func TestValidateNotFound(t *testing.T) {
	res := Validate(protocol.Operation{Op: protocol.OpAdd, ItemName: "pizza", Quantity: 1},
		burgerMenu(), protocol.NewConversationState("CA1"))
	if res.Outcome != ItemNotFound {
		t.Errorf("expected ItemNotFound, got %+v", res)
	}
}

func TestValidateInvalidModifierRejectsWholeOperation(t *testing.T) {
	res := Validate(protocol.Operation{
		Op: protocol.OpAdd, ItemName: "cheeseburger", Quantity: 1,
		Modifiers: []string{"extra cheese", "no pickles"},
	}, burgerMenu(), protocol.NewConversationState("CA1"))
	if res.Outcome != InvalidModifier {
		t.Fatalf("expected InvalidModifier, got %+v", res)
	}
	if res.Modifier != "no pickles" {
		t.Errorf("expected offending modifier named, got %q", res.Modifier)
	}
}

func TestValidateModifierCaseInsensitive(t *testing.T) {
	res := Validate(protocol.Operation{
		Op: protocol.OpAdd, ItemName: "cheeseburger", Quantity: 1,
		Modifiers: []string{"EXTRA CHEESE"},
	}, burgerMenu(), protocol.NewConversationState("CA1"))
	if res.Outcome != Accepted {
		t.Errorf("expected accepted, got %+v", res)
	}
}

func TestValidateRemoveAgainstDraft(t *testing.T) {
	state := protocol.NewConversationState("CA1")
	state.UpsertDraftItem(protocol.OrderDraftItem{ItemName: "fries", Quantity: 1})

	res := Validate(protocol.Operation{Op: protocol.OpRemove, ItemName: "fries"},
		burgerMenu(), state)
	if res.Outcome != Accepted {
		t.Errorf("expected accepted removal, got %+v", res)
	}

	res = Validate(protocol.Operation{Op: protocol.OpRemove, ItemName: "cheeseburger"},
		burgerMenu(), state)
	if res.Outcome != ItemNotFound {
		t.Errorf("expected ItemNotFound for absent draft item, got %+v", res)
	}

	res = Validate(protocol.Operation{Op: protocol.OpSetQuantity, ItemName: "fries", Quantity: 4},
		burgerMenu(), state)
	if res.Outcome != Accepted {
		t.Errorf("expected accepted set_quantity, got %+v", res)
	}
}

func TestLevenshtein(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"a", "", 1},
		{"cheeseburger", "cheeseburger", 0},
		{"chesseburger", "cheeseburger", 1},
		{"cheseburger", "cheeseburger", 1},
		{"burger", "hamburger", 3},
		{"kitten", "sitting", 3},
	}
	for _, tc := range cases {
		if got := levenshtein(tc.a, tc.b); got != tc.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestSuggestions(t *testing.T) {
	got := Suggestions("burger", burgerMenu(), 3)
	if len(got) != 2 {
		t.Fatalf("expected cheeseburger and hamburger, got %v", got)
	}
}
