// Package agent drives the LLM side of a phone-order conversation: it
// renders prompts from conversation state and menu context and performs
// exactly one provider call per turn.
package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/orderline-io/orderline/internal/provider"
	"github.com/orderline-io/orderline/pkg/protocol"
)

// Agent is the LLM collaborator for order-taking calls.
type Agent struct {
	Provider       provider.Provider
	Logger         *slog.Logger
	RestaurantName string
	Temperature    float64
}

// New creates an Agent with sensible defaults.
func New(prov provider.Provider, restaurantName string) *Agent {
	return &Agent{
		Provider:       prov,
		Logger:         slog.Default(),
		RestaurantName: restaurantName,
		Temperature:    0.7,
	}
}

// Greeting asks the model for an opening line. A provider failure falls
// back to a canned greeting so a flaky LLM never blocks call pickup.
func (a *Agent) Greeting(ctx context.Context, menu *protocol.Menu) string {
	req := protocol.ChatRequest{
		Messages: []protocol.ChatMessage{
			{Role: "system", Content: greetingSystemPrompt(a.RestaurantName, menu.Text())},
			{Role: "user", Content: greetingUserPrompt},
		},
		Temperature: a.Temperature,
	}

	resp, err := a.Provider.Chat(ctx, req)
	if err != nil || resp.Content == "" {
		a.Logger.Warn("greeting generation failed, using fallback", "error", err)
		return fmt.Sprintf("Hello! Welcome to %s. What can I get for you today?", a.RestaurantName)
	}
	return resp.Content
}

// Turn performs one LLM call for a caller utterance and returns the raw
// model output. The output is untrusted; the order parser decides what,
// if anything, it means.
func (a *Agent) Turn(ctx context.Context, state *protocol.ConversationState, menu *protocol.Menu) (string, error) {
	req := protocol.ChatRequest{
		Messages: []protocol.ChatMessage{
			{Role: "system", Content: turnSystemPrompt(a.RestaurantName, menu.Text())},
			{Role: "user", Content: turnUserPrompt(state)},
		},
		Temperature: a.Temperature,
		JSONOnly:    true,
	}

	a.Logger.Debug("agent turn request",
		"call", state.CallID,
		"stage", state.Stage,
		"turns", len(state.Transcript),
	)

	resp, err := a.Provider.Chat(ctx, req)
	if err != nil {
		return "", fmt.Errorf("agent: provider error: %w", err)
	}

	a.Logger.Debug("agent turn response",
		"call", state.CallID,
		"content_len", len(resp.Content),
		"tokens", resp.Usage.TotalTokens(),
	)
	return resp.Content, nil
}
