package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"storefront-bff/internal/apiclient"
	"storefront-bff/internal/storefront"
	"storefront-bff/internal/telemetry"
	"storefront-bff/internal/validation"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Error  string                `json:"error"`
	Fields validation.FieldErrors `json:"fields,omitempty"`
}

// writeJSON encodes v before the status line goes out so an encoding
// failure still reaches the client as a 500.
func writeJSON(w http.ResponseWriter, code int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		slog.Error("Encode response", "error", err)
		code = http.StatusInternalServerError
		body = []byte(`{"error":"internal error"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(append(body, '\n'))
}

// decodeJSON reads at most maxBodyBytes of r's body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		msg := "invalid JSON body"
		if errors.Is(err, io.EOF) {
			msg = "request body is empty"
		}
		writeJSON(w, http.StatusBadRequest, errorBody{Error: msg})
		return false
	}
	return true
}

// writeError maps err to a status: field errors 422, decisions on settled
// orders 409, backend failures their normalized status.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	writeErrorStatus(w, r, err, http.StatusUnprocessableEntity)
}

func writeErrorStatus(w http.ResponseWriter, r *http.Request, err error, fieldStatus int) {
	var fields validation.FieldErrors
	switch {
	case errors.As(err, &fields):
		writeJSON(w, fieldStatus, errorBody{Error: "validation failed", Fields: fields})
		return
	case errors.Is(err, storefront.ErrNotPending):
		writeJSON(w, http.StatusConflict, errorBody{Error: storefront.ErrNotPending.Error()})
		return
	}

	status := apiclient.StatusOf(err)
	msg := apiclient.MessageOf(err)
	if status >= http.StatusInternalServerError {
		slog.Error("Request failed", "path", r.URL.Path, "status", status, "error", err, "request_id", telemetry.RequestID(r.Context()))
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	writeJSON(w, status, errorBody{Error: msg})
}
