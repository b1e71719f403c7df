package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/orderline-io/orderline/internal/menu"
	"github.com/orderline-io/orderline/internal/order"
	"github.com/orderline-io/orderline/pkg/protocol"
)

const (
	defaultMaxTurns       = 30
	defaultSessionTimeout = 10 * time.Minute
	defaultLLMTimeout     = 20 * time.Second

	repromptText = "I'm sorry, I didn't quite catch that. Could you say it again?"
	turnCapText  = "I'm sorry, I'm having trouble completing your order over the phone. Please call back or order at the counter. Goodbye!"
)

// Conversationalist is the LLM collaborator contract: one greeting or one
// raw turn payload per call.
type Conversationalist interface {
	Greeting(ctx context.Context, m *protocol.Menu) string
	Turn(ctx context.Context, state *protocol.ConversationState, m *protocol.Menu) (string, error)
}

// Persister receives the final state of every call. Failures are logged
// and never block teardown; this core does not retry.
type Persister interface {
	SaveCall(ctx context.Context, rec *protocol.CallRecord) error
}

// Notifier is told about completed orders. Optional.
type Notifier interface {
	OrderCompleted(ctx context.Context, rec *protocol.CallRecord)
}

// Config holds manager tunables.
type Config struct {
	MaxTurns       int           // hard cap; exceeding it fails the call
	SessionTimeout time.Duration // inactivity before eviction
	LLMTimeout     time.Duration // bound on each provider invocation
}

// Manager owns the session store and orchestrates each turn end to end.
// The mutex guards only the map and per-session flags; it is never held
// across an LLM or persistence call, so unrelated calls proceed in
// parallel while turns for one call stay strictly serialized.
type Manager struct {
	agent  Conversationalist
	menus  menu.Provider
	stores Persister
	notify Notifier
	logger *slog.Logger
	cfg    Config

	mu       sync.Mutex
	sessions map[string]*CallSession
}

// NewManager creates a Manager. notify may be nil.
func NewManager(ag Conversationalist, menus menu.Provider, stores Persister, notify Notifier, cfg Config, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = defaultMaxTurns
	}
	if cfg.SessionTimeout <= 0 {
		cfg.SessionTimeout = defaultSessionTimeout
	}
	if cfg.LLMTimeout <= 0 {
		cfg.LLMTimeout = defaultLLMTimeout
	}
	return &Manager{
		agent:    ag,
		menus:    menus,
		stores:   stores,
		notify:   notify,
		logger:   logger,
		cfg:      cfg,
		sessions: make(map[string]*CallSession),
	}
}

// StartCall creates a session for a new call and returns the greeting to
// speak. Fails with ErrDuplicateCall if the call already has a session.
func (m *Manager) StartCall(ctx context.Context, callID string) (string, error) {
	now := time.Now()
	s := &CallSession{
		CallID:         callID,
		State:          protocol.NewConversationState(callID),
		CreatedAt:      now,
		LastActivityAt: now,
		stage:          protocol.StageGreeting,
		inFlight:       true,
	}

	m.mu.Lock()
	if _, exists := m.sessions[callID]; exists {
		m.mu.Unlock()
		return "", fmt.Errorf("%w: %s", ErrDuplicateCall, callID)
	}
	m.sessions[callID] = s
	m.mu.Unlock()

	snapshot, err := m.menus.Snapshot(ctx)
	if err != nil {
		// Menu failure at pickup is unrecoverable for this call.
		m.removeSession(callID)
		return "", fmt.Errorf("session: menu snapshot: %w", err)
	}

	llmCtx, cancel := context.WithTimeout(ctx, m.cfg.LLMTimeout)
	greeting := m.agent.Greeting(llmCtx, snapshot)
	cancel()

	s.State.AddTurn(protocol.SpeakerAssistant, greeting)
	m.clearInFlight(s)

	m.logger.Info("call started", "call", callID)
	return greeting, nil
}

// HandleTurn processes one caller utterance end to end and returns what
// to speak next. See the package error values for the failure contract.
func (m *Manager) HandleTurn(ctx context.Context, callID, callerText string) (*protocol.TurnOutcome, error) {
	s, err := m.acquireTurn(callID)
	if err != nil {
		return nil, err
	}
	defer m.releaseTurn(s)

	state := s.State
	state.AddTurn(protocol.SpeakerCaller, callerText)
	state.TurnCount++

	if state.TurnCount > m.cfg.MaxTurns {
		m.logger.Warn("turn limit exceeded", "call", callID, "turns", state.TurnCount)
		state.Stage = protocol.StageFailed
		m.finalize(s, protocol.ReasonTurnLimit)
		return &protocol.TurnOutcome{AssistantText: turnCapText, Terminal: true}, nil
	}

	snapshot, err := m.menus.Snapshot(ctx)
	if err != nil {
		m.logger.Error("menu snapshot failed, re-prompting", "call", callID, "error", err)
		return m.reprompt(state), nil
	}

	llmCtx, cancel := context.WithTimeout(ctx, m.cfg.LLMTimeout)
	raw, err := m.agent.Turn(llmCtx, state, snapshot)
	cancel()
	if err != nil {
		// Timeouts and provider failures are recoverable: keep the
		// session, ask the caller to repeat.
		m.logger.Warn("llm turn failed, re-prompting", "call", callID, "error", err)
		return m.reprompt(state), nil
	}

	parsed, err := order.Parse(raw)
	if err != nil {
		if !errors.Is(err, order.ErrMalformedResponse) {
			return nil, fmt.Errorf("session: parse turn: %w", err)
		}
		m.logger.Warn("unparseable llm output, re-prompting", "call", callID, "error", err)
		return m.reprompt(state), nil
	}

	clarifications, hadErrors := m.applyOperations(state, parsed.Operations, snapshot)

	next := NextStage(state.Stage, parsed.Intent, hadErrors, !state.HasItems())
	m.logger.Debug("turn processed",
		"call", callID,
		"intent", parsed.Intent,
		"operations", len(parsed.Operations),
		"had_errors", hadErrors,
		"stage", next,
	)

	text := parsed.AssistantText
	if len(clarifications) > 0 {
		text = strings.TrimSpace(text + " " + strings.Join(clarifications, " "))
	}
	if parsed.Intent == protocol.IntentConfirm && !state.HasItems() {
		text = "I don't have any items in your order yet. What would you like?"
	}

	state.Stage = next

	switch next {
	case protocol.StageOrderComplete:
		text = fmt.Sprintf("Perfect! Your order: %s. Thank you for calling, goodbye!", state.OrderSummary())
		state.AddTurn(protocol.SpeakerAssistant, text)
		m.finalize(s, protocol.ReasonCompleted)
		return &protocol.TurnOutcome{AssistantText: text, Terminal: true}, nil

	case protocol.StageFailed:
		if text == "" {
			text = "Alright, no order today. Thanks for calling, goodbye!"
		}
		state.AddTurn(protocol.SpeakerAssistant, text)
		m.finalize(s, protocol.ReasonAbandoned)
		return &protocol.TurnOutcome{AssistantText: text, Terminal: true}, nil
	}

	if text == "" {
		text = repromptText
	}
	state.AddTurn(protocol.SpeakerAssistant, text)
	return &protocol.TurnOutcome{AssistantText: text, KeepListening: true}, nil
}

// EndCall tears a session down, persisting whatever was gathered. Safe
// to call for unknown calls (status callbacks can outlive eviction) and
// while a turn is in flight, in which case teardown is deferred until
// the turn completes.
func (m *Manager) EndCall(ctx context.Context, callID string, reason protocol.EndReason) {
	m.mu.Lock()
	s, ok := m.sessions[callID]
	if !ok {
		m.mu.Unlock()
		return
	}
	if s.inFlight {
		s.endRequested = true
		s.endReason = reason
		m.mu.Unlock()
		m.logger.Info("teardown deferred until in-flight turn completes", "call", callID, "reason", reason)
		return
	}
	delete(m.sessions, callID)
	m.mu.Unlock()

	m.persistFinal(s, reason)
}

// EvictExpired ends every session idle past the configured timeout,
// persisting partial orders. Returns the number of evicted sessions.
func (m *Manager) EvictExpired(now time.Time) int {
	cutoff := now.Add(-m.cfg.SessionTimeout)

	m.mu.Lock()
	var expired []*CallSession
	for id, s := range m.sessions {
		if !s.LastActivityAt.Before(cutoff) {
			continue
		}
		if s.inFlight {
			s.endRequested = true
			s.endReason = protocol.ReasonTimeout
			continue
		}
		delete(m.sessions, id)
		expired = append(expired, s)
	}
	m.mu.Unlock()

	for _, s := range expired {
		m.logger.Info("session expired", "call", s.CallID, "idle_since", s.LastActivityAt)
		m.persistFinal(s, protocol.ReasonTimeout)
	}
	return len(expired)
}

// Sessions returns a snapshot of all live sessions for the admin API.
func (m *Manager) Sessions() []Info {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Info, 0, len(m.sessions))
	for _, s := range m.sessions {
		// Read the snapshot fields, not State: an in-flight turn may be
		// mutating State on another goroutine right now.
		out = append(out, Info{
			CallID:         s.CallID,
			Stage:          s.stage,
			TurnCount:      s.turnCount,
			Items:          s.items,
			CreatedAt:      s.CreatedAt,
			LastActivityAt: s.LastActivityAt,
		})
	}
	return out
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// --- turn bookkeeping ---

func (m *Manager) acquireTurn(callID string) (*CallSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[callID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSession, callID)
	}
	if s.endRequested || s.State.Stage.Terminal() {
		return nil, fmt.Errorf("%w: %s", ErrSessionEnded, callID)
	}
	if s.inFlight {
		return nil, fmt.Errorf("%w: %s", ErrConcurrentTurn, callID)
	}
	s.inFlight = true
	s.LastActivityAt = time.Now()
	return s, nil
}

// releaseTurn clears the in-flight flag and runs any teardown deferred by
// EndCall while the turn was running. The caller is the in-flight
// goroutine, so reading State here is safe.
func (m *Manager) releaseTurn(s *CallSession) {
	m.mu.Lock()
	s.stage = s.State.Stage
	s.turnCount = s.State.TurnCount
	s.items = len(s.State.OrderDraft)
	s.inFlight = false
	deferred := s.endRequested
	reason := s.endReason
	_, live := m.sessions[s.CallID]
	if deferred && live {
		delete(m.sessions, s.CallID)
	}
	m.mu.Unlock()

	if deferred && live {
		m.logger.Info("running deferred teardown", "call", s.CallID, "reason", reason)
		m.persistFinal(s, reason)
	}
}

// clearInFlight releases the start-call guard without teardown handling.
func (m *Manager) clearInFlight(s *CallSession) {
	m.releaseTurn(s)
}

func (m *Manager) removeSession(callID string) {
	m.mu.Lock()
	delete(m.sessions, callID)
	m.mu.Unlock()
}

// finalize removes an in-flight session from the store and persists it.
// Called from within a turn, so the in-flight flag is still set and no
// other goroutine can race the state.
func (m *Manager) finalize(s *CallSession, reason protocol.EndReason) {
	m.mu.Lock()
	s.endRequested = false
	delete(m.sessions, s.CallID)
	m.mu.Unlock()

	m.persistFinal(s, reason)
}

// --- pipeline helpers ---

// applyOperations validates each parsed operation against one menu
// snapshot and applies the accepted ones to the draft. Returns spoken
// clarifications for the rejected ones.
func (m *Manager) applyOperations(state *protocol.ConversationState, ops []protocol.Operation, snapshot *protocol.Menu) ([]string, bool) {
	var clarifications []string
	hadErrors := false

	for _, op := range ops {
		res := order.Validate(op, snapshot, state)
		if res.Outcome != order.Accepted {
			hadErrors = true
			clarifications = append(clarifications, clarificationFor(op, res, snapshot))
			continue
		}

		switch op.Op {
		case protocol.OpAdd:
			state.UpsertDraftItem(protocol.OrderDraftItem{
				ItemName:  res.CanonicalName,
				Quantity:  op.Quantity,
				Modifiers: op.Modifiers,
				Status:    protocol.ValidationAccepted,
			})
		case protocol.OpRemove:
			state.RemoveDraftItem(res.CanonicalName)
		case protocol.OpSetQuantity:
			state.SetDraftQuantity(res.CanonicalName, op.Quantity)
		}
	}
	return clarifications, hadErrors
}

func clarificationFor(op protocol.Operation, res order.Result, snapshot *protocol.Menu) string {
	switch res.Outcome {
	case order.ItemNotFound:
		if op.Op != protocol.OpAdd {
			return fmt.Sprintf("I don't see %s in your order.", op.ItemName)
		}
		if alts := order.Suggestions(op.ItemName, snapshot, 2); len(alts) > 0 {
			return fmt.Sprintf("I'm sorry, we don't have %s. Did you mean %s?", op.ItemName, strings.Join(alts, " or "))
		}
		return fmt.Sprintf("I'm sorry, we don't have %s on the menu.", op.ItemName)
	case order.AmbiguousItem:
		return fmt.Sprintf("Did you mean %s?", strings.Join(res.Candidates, " or "))
	case order.InvalidModifier:
		return fmt.Sprintf("I'm sorry, we can't do %q on the %s.", res.Modifier, res.CanonicalName)
	}
	return repromptText
}

// reprompt records a recovery response without touching the draft.
func (m *Manager) reprompt(state *protocol.ConversationState) *protocol.TurnOutcome {
	state.AddTurn(protocol.SpeakerAssistant, repromptText)
	return &protocol.TurnOutcome{AssistantText: repromptText, KeepListening: true}
}

// persistFinal writes the call record. Persistence is fire-and-forget:
// failures are logged and do not block teardown.
func (m *Manager) persistFinal(s *CallSession, reason protocol.EndReason) {
	state := s.State
	if !state.Stage.Terminal() {
		if state.HasItems() && reason == protocol.ReasonCompleted {
			state.Stage = protocol.StageOrderComplete
		} else {
			state.Stage = protocol.StageFailed
		}
	}

	rec := &protocol.CallRecord{
		CallID:     s.CallID,
		Status:     protocol.CallFailed,
		Reason:     reason,
		StartedAt:  s.CreatedAt,
		EndedAt:    time.Now(),
		Transcript: state.TranscriptText(),
	}
	if state.Stage == protocol.StageOrderComplete {
		rec.Status = protocol.CallCompleted
		rec.Order = &protocol.OrderRecord{
			ID:        uuid.NewString(),
			Items:     state.OrderDraft,
			CreatedAt: rec.EndedAt,
		}
	} else if state.HasItems() {
		rec.Draft = state.OrderDraft
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := m.stores.SaveCall(ctx, rec); err != nil {
		m.logger.Error("failed to persist call", "call", s.CallID, "error", err)
	} else {
		m.logger.Info("call persisted", "call", s.CallID, "status", rec.Status, "reason", reason)
	}

	if m.notify != nil && rec.Status == protocol.CallCompleted {
		m.notify.OrderCompleted(ctx, rec)
	}
}
