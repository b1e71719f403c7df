// Package menu supplies the current set of orderable items. The session
// manager reads one snapshot per turn; nothing in this process mutates
// the menu except a reload of the backing file.
package menu

import (
	"context"

	"github.com/orderline-io/orderline/pkg/protocol"
)

// Provider is the abstraction over menu data sources.
type Provider interface {
	// Snapshot returns the current menu. Callers must treat the returned
	// menu as immutable.
	Snapshot(ctx context.Context) (*protocol.Menu, error)
}

// Default returns the built-in menu used when no menu file is configured.
func Default() *protocol.Menu {
	return &protocol.Menu{
		Items: []protocol.MenuItem{
			{
				Name:        "cheeseburger",
				Description: "Classic cheeseburger",
				Price:       8.99,
				Category:    "burgers",
				Options:     []string{"no onions", "extra cheese", "no pickles"},
			},
			{
				Name:        "fries",
				Description: "Crispy french fries",
				Price:       3.99,
				Category:    "sides",
				Options:     []string{"large", "small"},
			},
			{
				Name:        "coca cola",
				Description: "Classic cola",
				Price:       2.99,
				Category:    "drinks",
				Options:     []string{"large", "medium", "small"},
			},
		},
		Categories: []string{"burgers", "sides", "drinks"},
	}
}

// StaticProvider serves a fixed menu. Used for tests and as the fallback
// when no menu file is configured.
type StaticProvider struct {
	Menu *protocol.Menu
}

func (p *StaticProvider) Snapshot(_ context.Context) (*protocol.Menu, error) {
	return p.Menu, nil
}
