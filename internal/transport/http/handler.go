// Package httptransport is the thin HTTP layer over the conversation
// engine. Handlers decode, delegate and encode; business rules stay in the
// engine.
package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"lifeshield/internal/engine"
	id "lifeshield/pkg/domain"
	dErrors "lifeshield/pkg/domain-errors"
	"lifeshield/pkg/platform/httputil"
)

// Handler wires the chat, document and payment endpoints to the engine.
type Handler struct {
	engine *engine.Engine
	logger *slog.Logger
}

func NewHandler(eng *engine.Engine, logger *slog.Logger) *Handler {
	return &Handler{engine: eng, logger: logger}
}

// Register mounts all applicant-facing endpoints.
func (h *Handler) Register(r chi.Router) {
	r.Post("/api/chat/session/start", h.handleStartSession)
	r.Post("/api/chat/message", h.handleMessage)
	r.Get("/api/chat/session/{sessionID}", h.handleGetSession)
	r.Post("/api/chat/session/{sessionID}/reset", h.handleResetSession)
	r.Post("/api/documents/{sessionID}", h.handleRegisterDocument)
	r.Post("/api/payment/confirm", h.handlePaymentConfirm)
}

// turnResponse is the wire shape of one conversation turn. The action is a
// tagged envelope so clients can switch on its type.
type turnResponse struct {
	SessionID     id.SessionID    `json:"session_id"`
	Stage         string          `json:"stage"`
	Reply         string          `json:"reply"`
	Fallback      bool            `json:"fallback,omitempty"`
	MissingFields []string        `json:"missing_fields,omitempty"`
	Action        *actionEnvelope `json:"action,omitempty"`
}

type actionEnvelope struct {
	Type    engine.ActionType `json:"type"`
	Payload engine.Action     `json:"payload"`
}

func toTurnResponse(res engine.TurnResult) turnResponse {
	out := turnResponse{
		SessionID:     res.SessionID,
		Stage:         res.Stage.String(),
		Reply:         res.Reply,
		Fallback:      res.Fallback,
		MissingFields: res.MissingFields,
	}
	if res.Action != nil {
		out.Action = &actionEnvelope{Type: res.Action.Type(), Payload: res.Action}
	}
	return out
}

func (h *Handler) handleStartSession(w http.ResponseWriter, r *http.Request) {
	res, err := h.engine.StartSession(r.Context(), r.UserAgent())
	if err != nil {
		h.logger.Error("start session failed", slog.Any("error", httputil.LogValue(err)))
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toTurnResponse(res))
}

func (h *Handler) handleMessage(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.DecodeAndPrepare[MessageRequest](w, r)
	if !ok {
		return
	}

	res, err := h.engine.ProcessTurn(r.Context(), engine.TurnInput{
		SessionID:  req.parsedSessionID,
		Message:    req.Message,
		FormData:   req.FormData,
		ActionData: req.ActionData,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toTurnResponse(res))
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sessionID, err := id.ParseSessionID(chi.URLParam(r, "sessionID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "session ID must be a valid UUID"))
		return
	}

	mapping, err := h.engine.GetMapping(r.Context(), sessionID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, mapping)
}

func (h *Handler) handleResetSession(w http.ResponseWriter, r *http.Request) {
	sessionID, err := id.ParseSessionID(chi.URLParam(r, "sessionID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "session ID must be a valid UUID"))
		return
	}

	res, err := h.engine.ResetSession(r.Context(), sessionID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toTurnResponse(res))
}

func (h *Handler) handleRegisterDocument(w http.ResponseWriter, r *http.Request) {
	sessionID, err := id.ParseSessionID(chi.URLParam(r, "sessionID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "session ID must be a valid UUID"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[DocumentRequest](w, r)
	if !ok {
		return
	}

	status, err := h.engine.RegisterDocument(r.Context(), sessionID, req.Type, req.Reference)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, status)
}

func (h *Handler) handlePaymentConfirm(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.DecodeAndPrepare[PaymentConfirmRequest](w, r)
	if !ok {
		return
	}

	if err := h.engine.PaymentConfirmed(r.Context(), req.parsedSessionID, req.parsedPaymentID); err != nil {
		h.logger.Warn("payment confirmation rejected",
			slog.String("session_id", req.SessionID),
			slog.Any("error", httputil.LogValue(err)))
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "confirmed"})
}
