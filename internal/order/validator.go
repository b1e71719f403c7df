package order

import (
	"sort"
	"strings"

	"github.com/orderline-io/orderline/pkg/protocol"
)

// Outcome classifies a candidate operation against the menu snapshot.
type Outcome string

const (
	Accepted        Outcome = "accepted"
	ItemNotFound    Outcome = "item_not_found"
	InvalidModifier Outcome = "invalid_modifier"
	AmbiguousItem   Outcome = "ambiguous_item"
)

// fuzzyMinLen is the minimum item-name length for edit-distance matching.
// Shorter names match exactly only; a one-edit tolerance on a three-letter
// name would resolve almost anything.
const fuzzyMinLen = 4

// Result is the validator's judgement of one operation.
type Result struct {
	Outcome Outcome
	// CanonicalName is the resolved menu item name when Outcome is
	// Accepted. It may differ from the requested name after a fuzzy match.
	CanonicalName string
	// Modifier names the offending modifier when Outcome is InvalidModifier.
	Modifier string
	// Candidates lists the colliding menu names when Outcome is AmbiguousItem.
	Candidates []string
}

// Validate judges one parsed operation against a single menu snapshot and
// the current draft. It is pure: it never fetches menu data itself, so all
// operations in a turn see one consistent menu state.
func Validate(op protocol.Operation, m *protocol.Menu, state *protocol.ConversationState) Result {
	switch op.Op {
	case protocol.OpRemove, protocol.OpSetQuantity:
		// These reference the draft, not the menu.
		if _, ok := state.DraftItem(op.ItemName); !ok {
			return Result{Outcome: ItemNotFound}
		}
		return Result{Outcome: Accepted, CanonicalName: op.ItemName}
	}

	item, res := resolveItem(op.ItemName, m)
	if res.Outcome != Accepted {
		return res
	}

	// All modifiers must be allowed for the item; one bad modifier rejects
	// the whole operation so we never silently change what was ordered.
	for _, mod := range op.Modifiers {
		if !modifierAllowed(item, mod) {
			return Result{Outcome: InvalidModifier, CanonicalName: item.Name, Modifier: mod}
		}
	}

	return Result{Outcome: Accepted, CanonicalName: strings.ToLower(item.Name)}
}

// resolveItem finds the menu item for a requested name: exact
// case-insensitive match first, then a single-edit fuzzy match. A unique
// fuzzy hit is accepted with the canonical name; multiple hits are
// ambiguous and must be clarified with the caller, never guessed.
func resolveItem(name string, m *protocol.Menu) (*protocol.MenuItem, Result) {
	if item, ok := m.ItemByName(name); ok {
		return item, Result{Outcome: Accepted, CanonicalName: strings.ToLower(item.Name)}
	}

	if len([]rune(name)) < fuzzyMinLen {
		return nil, Result{Outcome: ItemNotFound}
	}

	var hits []*protocol.MenuItem
	for i := range m.Items {
		if levenshtein(name, strings.ToLower(m.Items[i].Name)) <= 1 {
			hits = append(hits, &m.Items[i])
		}
	}

	switch len(hits) {
	case 0:
		return nil, Result{Outcome: ItemNotFound}
	case 1:
		return hits[0], Result{Outcome: Accepted, CanonicalName: strings.ToLower(hits[0].Name)}
	default:
		names := make([]string, len(hits))
		for i, h := range hits {
			names[i] = strings.ToLower(h.Name)
		}
		sort.Strings(names)
		return nil, Result{Outcome: AmbiguousItem, Candidates: names}
	}
}

func modifierAllowed(item *protocol.MenuItem, mod string) bool {
	for _, opt := range item.Options {
		if strings.EqualFold(opt, mod) {
			return true
		}
	}
	return false
}

// Suggestions returns up to limit menu names resembling an unknown item
// name, for folding into a clarification prompt. Substring containment in
// either direction counts, mirroring how callers shorten item names.
func Suggestions(name string, m *protocol.Menu, limit int) []string {
	name = strings.ToLower(strings.TrimSpace(name))
	var out []string
	for _, item := range m.Items {
		lower := strings.ToLower(item.Name)
		if strings.Contains(lower, name) || strings.Contains(name, lower) {
			out = append(out, lower)
			if len(out) == limit {
				break
			}
		}
	}
	return out
}
