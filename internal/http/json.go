package httpx

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	apperrors "github.com/campusworks/caseboard-ui-api/internal/errors"
)

// WriteJSON writes a JSON response with the given status code and data.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := buf.WriteTo(w); err != nil {
		// Response writer errors (e.g., client disconnect) can't be recovered from here.
		return
	}
}

// ErrorParams groups parameters for WriteError.
type ErrorParams struct {
	Code    int
	ErrCode string
	Err     error
}

// WriteError writes a JSON error response using ErrorParams.
func WriteError(w http.ResponseWriter, p ErrorParams) {
	WriteJSON(w, p.Code, map[string]string{"error": p.ErrCode, "message": p.Err.Error()})
}

// WriteAppError maps an application error to its HTTP response. Auth failures
// collapse to generic messages; internal detail stays out of the body.
func WriteAppError(w http.ResponseWriter, err error) {
	code := apperrors.GetCode(err)
	switch {
	case apperrors.IsUnauthenticated(err):
		WriteError(w, ErrorParams{Code: http.StatusUnauthorized, ErrCode: "authentication_failed", Err: errors.New("authentication failed")})
	case apperrors.IsRefreshExpired(err):
		WriteError(w, ErrorParams{Code: http.StatusUnauthorized, ErrCode: "refresh_expired", Err: errors.New("session expired")})
	case apperrors.IsUpstreamUnavailable(err):
		WriteError(w, ErrorParams{Code: http.StatusServiceUnavailable, ErrCode: "try_again", Err: errors.New("service unavailable")})
	case code == apperrors.ErrCodeNotFound:
		WriteError(w, ErrorParams{Code: http.StatusNotFound, ErrCode: string(code), Err: err})
	case code == apperrors.ErrCodeValidation:
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: string(code), Err: err})
	default:
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "internal_error", Err: errors.New("internal error")})
	}
}
