package protocol

import (
	"fmt"
	"strings"
)

// MenuItem is one orderable item and its allowed modifiers.
type MenuItem struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Price       float64  `json:"price,omitempty"`
	Category    string   `json:"category,omitempty"`
	Options     []string `json:"options,omitempty"`
}

// Menu is an immutable snapshot of the orderable items. The session
// manager fetches one snapshot per turn so every operation in a turn is
// judged against the same menu state.
type Menu struct {
	Items      []MenuItem `json:"items"`
	Categories []string   `json:"categories,omitempty"`
}

// ItemByName returns the menu item matching the name case-insensitively.
func (m *Menu) ItemByName(name string) (*MenuItem, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i := range m.Items {
		if strings.ToLower(m.Items[i].Name) == name {
			return &m.Items[i], true
		}
	}
	return nil, false
}

// Text renders the menu for LLM prompt context.
func (m *Menu) Text() string {
	var b strings.Builder
	for _, item := range m.Items {
		fmt.Fprintf(&b, "- %s", item.Name)
		if item.Price > 0 {
			fmt.Fprintf(&b, " ($%.2f)", item.Price)
		}
		if item.Description != "" {
			fmt.Fprintf(&b, ": %s", item.Description)
		}
		if len(item.Options) > 0 {
			fmt.Fprintf(&b, " [options: %s]", strings.Join(item.Options, ", "))
		}
		b.WriteByte('\n')
	}
	return b.String()
}
