// Package twilio exposes the voice webhook endpoints for Twilio
// programmable voice: one for the inbound call, one per speech turn, and
// one for call status callbacks.
package twilio

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/orderline-io/orderline/internal/connector"
	"github.com/orderline-io/orderline/internal/session"
	"github.com/orderline-io/orderline/pkg/protocol"
)

const (
	defaultVoice = "Polly.Joanna"
	turnPath     = "/twilio/turn"

	holdText    = "One moment please."
	silenceText = "I didn't catch that. Are you still there?"
	errorText   = "I'm sorry, something went wrong on our end. Please call back later. Goodbye!"
	goodbyeText = "Thank you for calling. Goodbye!"
)

// Config holds Twilio webhook settings.
type Config struct {
	AuthToken string // signing secret; empty disables signature checks
	PublicURL string // externally visible base URL, used to verify signatures
	Voice     string // TTS voice, defaults to Polly.Joanna
}

// Handler serves the Twilio voice webhooks.
type Handler struct {
	calls  connector.CallHandler
	cfg    Config
	logger *slog.Logger
}

// New creates a webhook handler backed by the given call engine.
func New(calls connector.CallHandler, cfg Config, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Voice == "" {
		cfg.Voice = defaultVoice
	}
	return &Handler{calls: calls, cfg: cfg, logger: logger}
}

// Register mounts the webhook routes.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /twilio/voice", h.handleVoice)
	mux.HandleFunc("POST /twilio/turn", h.handleTurn)
	mux.HandleFunc("POST /twilio/status", h.handleStatus)
}

// handleVoice answers a new inbound call with the greeting.
func (h *Handler) handleVoice(w http.ResponseWriter, r *http.Request) {
	callID, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	greeting, err := h.calls.StartCall(r.Context(), callID)
	if err != nil {
		if errors.Is(err, session.ErrDuplicateCall) {
			// Retried webhook delivery; the session already exists.
			h.writeTwiML(w, gatherSpeech(silenceText, h.cfg.Voice, turnPath))
			return
		}
		h.logger.Error("start call failed", "call", callID, "error", err)
		h.writeTwiML(w, sayAndHangup(errorText, h.cfg.Voice))
		return
	}

	h.writeTwiML(w, gatherSpeech(greeting, h.cfg.Voice, turnPath))
}

// handleTurn processes one speech recognition result.
func (h *Handler) handleTurn(w http.ResponseWriter, r *http.Request) {
	callID, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	speech := r.PostFormValue("SpeechResult")
	if speech == "" {
		h.writeTwiML(w, gatherSpeech(silenceText, h.cfg.Voice, turnPath))
		return
	}

	outcome, err := h.calls.HandleTurn(r.Context(), callID, speech)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrConcurrentTurn):
			h.writeTwiML(w, gatherSpeech(holdText, h.cfg.Voice, turnPath))
		case errors.Is(err, session.ErrUnknownSession), errors.Is(err, session.ErrSessionEnded):
			h.writeTwiML(w, sayAndHangup(goodbyeText, h.cfg.Voice))
		default:
			h.logger.Error("turn failed", "call", callID, "error", err)
			h.writeTwiML(w, sayAndHangup(errorText, h.cfg.Voice))
		}
		return
	}

	if outcome.Terminal {
		h.writeTwiML(w, sayAndHangup(outcome.AssistantText, h.cfg.Voice))
		return
	}
	h.writeTwiML(w, gatherSpeech(outcome.AssistantText, h.cfg.Voice, turnPath))
}

// handleStatus receives call status callbacks and tears down the session
// when the carrier reports the call is over.
func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	callID, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	status := r.PostFormValue("CallStatus")
	switch status {
	case "completed", "busy", "failed", "no-answer", "canceled":
		// Detach from the request context; teardown must finish even if
		// Twilio disconnects.
		h.calls.EndCall(context.WithoutCancel(r.Context()), callID, protocol.ReasonHangup)
	}
	w.WriteHeader(http.StatusNoContent)
}

// authenticate parses the form, verifies the signature, and extracts the
// call SID. Writes the error response itself when it fails.
func (h *Handler) authenticate(w http.ResponseWriter, r *http.Request) (string, bool) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return "", false
	}
	if !h.validSignature(r) {
		h.logger.Warn("rejected webhook with bad signature", "path", r.URL.Path)
		http.Error(w, "invalid signature", http.StatusForbidden)
		return "", false
	}
	callID := r.PostFormValue("CallSid")
	if callID == "" {
		http.Error(w, "CallSid is required", http.StatusBadRequest)
		return "", false
	}
	return callID, true
}

func (h *Handler) writeTwiML(w http.ResponseWriter, resp *Response) {
	body, err := resp.Render()
	if err != nil {
		h.logger.Error("twiml render failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	w.Write(body)
}
