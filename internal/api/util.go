package api

import (
	"encoding/json"
	"net/http"

	"github.com/org/jitaccess/internal/apperrors"
	"github.com/org/jitaccess/internal/logging"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func decodeJSON(r *http.Request, dst any) error {
	return json.NewDecoder(r.Body).Decode(dst)
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
	Field string `json:"field,omitempty"`
}

// writeError collapses err into the right HTTP status code. AccessDenied
// and ResourceNotFound both render as 404 to avoid confirming a hidden
// entity's existence to a subject who cannot view it; a failed constraint
// evaluation and a plainly unsatisfied one both render as 403, since either
// way the join did not go through. A ConstraintFailed is additionally
// logged at ERROR: unlike an unsatisfied constraint, it means a constraint
// threw while evaluating, which is never expected behavior.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	kind, ok := apperrors.KindOf(err)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
		return
	}

	body := errorBody{Error: err.Error(), Kind: kind.String()}
	if appErr, ok := err.(*apperrors.Error); ok {
		body.Field = appErr.Field
	}

	status := http.StatusInternalServerError
	switch kind {
	case apperrors.KindAccessDenied, apperrors.KindResourceNotFound:
		status = http.StatusNotFound
	case apperrors.KindInvalidInput:
		status = http.StatusBadRequest
	case apperrors.KindConstraintUnsatisfied:
		status = http.StatusForbidden
	case apperrors.KindConstraintFailed:
		status = http.StatusForbidden
		s.logger.Error("constraint evaluation failed", err, logging.WithEvent(logging.EventConstraintFailed))
	case apperrors.KindConflict:
		status = http.StatusConflict
	case apperrors.KindTokenVerification:
		status = http.StatusUnauthorized
	case apperrors.KindTransport:
		status = http.StatusBadGateway
	}
	writeJSON(w, status, body)
}

// writeErrorMessage writes a plain error body for failures that never went
// through apperrors (e.g. a missing auth header).
func writeErrorMessage(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, status, errorBody{Error: msg})
}
