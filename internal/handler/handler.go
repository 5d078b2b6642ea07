package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"storefront/internal/middleware"
	"storefront/internal/model"

	"github.com/rs/zerolog"
)

// maxRequestBodyBytes caps JSON request bodies outside the webhook route.
const maxRequestBodyBytes = 1 << 20

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Log the error but don't expose it to the client
		return
	}
}

// writeError writes a standard error body carrying the request's correlation id.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string, details map[string]string, logger zerolog.Logger) {
	event := logger.Warn()
	if status >= http.StatusInternalServerError {
		event = logger.Error()
	}
	event.
		Str("code", code).
		Str("error", message).
		Int("status", status).
		Str("request_id", middleware.RequestIDFromContext(r.Context())).
		Msg("handler error")

	writeJSON(w, status, model.ErrorResponse{
		Error:         code,
		Message:       message,
		CorrelationID: middleware.RequestIDFromContext(r.Context()),
		Details:       details,
	})
}

// errorView controls how much of an error reaches the caller. Checkout
// routes get generic messages, admin routes get the underlying reason.
type errorView int

const (
	viewGeneric errorView = iota
	viewDetailed
)

// writeDomainError maps service errors to HTTP responses.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error, view errorView, logger zerolog.Logger) {
	var terr *model.TransitionError
	var derr *model.DomainError

	switch {
	case errors.As(err, &terr):
		if view != viewDetailed {
			writeError(w, r, http.StatusConflict, model.ErrCodeIllegalTransition, model.ErrIllegalTransition.Message, nil, logger)
			return
		}
		writeError(w, r, http.StatusConflict, model.ErrCodeIllegalTransition, terr.Error(), map[string]string{
			"currentStatus":   string(terr.Current),
			"attemptedStatus": string(terr.Attempted),
		}, logger)

	case errors.Is(err, model.ErrGateway):
		message := model.ErrGateway.Message
		if view == viewDetailed {
			message = err.Error()
		}
		writeError(w, r, http.StatusBadGateway, model.ErrCodeGateway, message, nil, logger)

	case errors.Is(err, model.ErrOrderNotFound):
		writeError(w, r, http.StatusNotFound, model.ErrCodeOrderNotFound, model.ErrOrderNotFound.Message, nil, logger)

	case errors.Is(err, model.ErrSignatureMismatch):
		writeError(w, r, http.StatusBadRequest, model.ErrCodeSignatureMismatch, "Payment verification failed", nil, logger)

	case errors.Is(err, model.ErrDuplicateOrderNumber):
		writeError(w, r, http.StatusConflict, model.ErrCodeDuplicateOrderNumber, model.ErrDuplicateOrderNumber.Message, nil, logger)

	case errors.Is(err, model.ErrRefundInProgress):
		writeError(w, r, http.StatusConflict, model.ErrCodeRefundInProgress, model.ErrRefundInProgress.Message, nil, logger)

	case errors.Is(err, model.ErrStoreConflict):
		writeError(w, r, http.StatusConflict, model.ErrCodeStoreConflict, model.ErrStoreConflict.Message, nil, logger)

	case errors.As(err, &derr) && derr.Code == model.ErrCodeValidation:
		writeError(w, r, http.StatusBadRequest, model.ErrCodeValidation, derr.Message, nil, logger)

	default:
		logger.Error().Err(err).Str("request_id", middleware.RequestIDFromContext(r.Context())).Msg("unexpected error")
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "internal server error", nil, logger)
	}
}

// decodeJSON decodes a single JSON object, rejecting unknown fields and
// trailing data.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid request body: unexpected trailing data")
	}
	return nil
}

// writeInvalidJSON reports a body that could not be decoded.
func writeInvalidJSON(w http.ResponseWriter, r *http.Request, err error, logger zerolog.Logger) {
	writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidJSON, err.Error(), nil, logger)
}
