// Package handlers provides the HTTP handlers of the syncbox API.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/marmos91/syncbox/internal/logger"
	"github.com/marmos91/syncbox/pkg/errdefs"
)

// errorBody is the error framing of the request transport:
// {"error": {"code", "message", "details?"}}.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// WriteError is the terminal converter of the request transport: it
// classifies err into the taxonomy, logs it at the appropriate level and
// writes the status and body.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	typed := errdefs.FromError(err)

	switch typed.Code {
	case errdefs.CodeInternal:
		logger.Error("request failed",
			"method", r.Method, "path", r.URL.Path, "code", typed.Code, "error", err)
	default:
		logger.Warn("request rejected",
			"method", r.Method, "path", r.URL.Path, "code", typed.Code, "error", err)
	}

	WriteJSON(w, typed.Code.HTTPStatus(), errorBody{
		Error: errorDetail{Code: string(typed.Code), Message: typed.Message},
	})
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteJSONOK writes a 200 OK JSON response.
func WriteJSONOK(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusOK, data)
}

// WriteJSONCreated writes a 201 Created JSON response.
func WriteJSONCreated(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusCreated, data)
}

// WriteNoContent writes a 204 No Content response.
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// decodeJSONBody decodes the request body into dst, writing a validation
// error and returning false on malformed input.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			WriteError(w, r, errdefs.Validation("request body is required"))
		} else {
			WriteError(w, r, errdefs.Validation("malformed JSON body"))
		}
		return false
	}
	return true
}
