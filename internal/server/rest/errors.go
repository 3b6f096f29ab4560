package rest

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/market/internal/common"
)

// errorResponse is the body of every non-2xx answer.
type errorResponse struct {
	Status    int       `json:"status"`
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Path      string    `json:"path"`
	Timestamp time.Time `json:"timestamp"`
}

var errorStatuses = []struct {
	err    error
	status int
}{
	{common.ErrInvalidCredentials, http.StatusUnauthorized},
	{common.ErrInvalidToken, http.StatusUnauthorized},
	{common.ErrTokenExpired, http.StatusUnauthorized},
	{common.ErrTokenBlocked, http.StatusUnauthorized},
	{common.ErrorUnauthorized, http.StatusUnauthorized},
	{common.ErrTokenNotFound, http.StatusNotFound},
	{common.ErrorForbidden, http.StatusForbidden},
	{common.ErrDuplicateUsername, http.StatusConflict},
	{common.ErrDuplicateEmail, http.StatusConflict},
	{common.ErrAlreadyPaid, http.StatusConflict},
	{common.ErrInvalidInput, http.StatusBadRequest},
	{common.ErrMissingSignature, http.StatusBadRequest},
	{common.ErrSignatureInvalid, http.StatusBadRequest},
	{common.ErrOrderNotFound, http.StatusNotFound},
	{common.ErrGatewayError, http.StatusBadGateway},
}

// statusFor maps a service error to its HTTP status and the message shown
// to the client. Unknown errors become a 500 with a generic message.
func statusFor(err error) (int, string) {
	for _, e := range errorStatuses {
		if errors.Is(err, e.err) {
			return e.status, e.err.Error()
		}
	}
	return http.StatusInternalServerError, common.ErrorInternal.Error()
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	}

	writeJSON(w, status, errorResponse{
		Status:    status,
		Error:     http.StatusText(status),
		Message:   msg,
		Path:      r.URL.Path,
		Timestamp: s.now().UTC(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
