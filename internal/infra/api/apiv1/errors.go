package apiv1

import (
	"encoding/json"
	"errors"
	"net/http"

	"chatbot-checkout/internal/domain"
	"chatbot-checkout/internal/infra/logging"
)

type errorResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, status, errorResponse{Message: msg, RequestID: logging.TraceID(r.Context())})
}

// statusFor maps domain errors to HTTP status codes and a client-safe message.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrMalformedEvent):
		return http.StatusBadRequest, "malformed event"
	case errors.Is(err, domain.ErrMissingSignature),
		errors.Is(err, domain.ErrInvalidSignature),
		errors.Is(err, domain.ErrSignatureNotConfigured):
		return http.StatusUnauthorized, "invalid signature"
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "session not found"
	case errors.Is(err, domain.ErrSessionExpired):
		return http.StatusGone, "session expired"
	case errors.Is(err, domain.ErrTerminalState):
		return http.StatusConflict, err.Error()
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	l := logging.With(r.Context(), s.log)
	if status >= http.StatusInternalServerError {
		l.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	} else {
		l.Debug().Err(err).Int("status", status).Msg("request rejected")
	}
	writeError(w, r, status, msg)
}
