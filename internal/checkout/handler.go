package checkout

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/aeronautyy/math-wallpapers/internal/httpx"
)

// Handler exposes the validator as POST /api/validate-session.
type Handler struct {
	validator *Validator
	logger    *zap.Logger
}

// NewHandler wires the validator into an HTTP handler.
func NewHandler(v *Validator, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{validator: v, logger: logger}
}

type validateRequest struct {
	SessionID string `json:"sessionId"`
}

// ServeHTTP validates one session id. Non-POST requests get 405, malformed
// ids 400, stale sessions 400, provider failures 500. Provider secrets never
// appear in responses or logs.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		httpx.WriteError(ctx, w, httpx.NewError("method_not_allowed", "method not allowed", http.StatusMethodNotAllowed))
		return
	}

	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("bad_request", "invalid JSON body", http.StatusBadRequest))
		return
	}

	verdict, err := h.validator.Validate(ctx, req.SessionID)
	switch {
	case errors.Is(err, ErrBadSessionID):
		httpx.WriteError(ctx, w, httpx.NewError("bad_session_id", "invalid session ID format", http.StatusBadRequest))
		return
	case errors.Is(err, ErrSessionTooOld):
		httpx.WriteError(ctx, w, httpx.NewError("session_expired", "session expired", http.StatusBadRequest))
		return
	case err != nil:
		h.logger.Error("session validation failed", zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError("internal", "internal server error", http.StatusInternalServerError))
		return
	}
	httpx.WriteJSON(w, http.StatusOK, verdict)
}
