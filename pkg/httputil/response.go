package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	apperrors "github.com/nthlam/WEB-NOVA-SCI/pkg/errors"
	"github.com/nthlam/WEB-NOVA-SCI/pkg/logger"
	"github.com/nthlam/WEB-NOVA-SCI/pkg/validator"
)

// Response is the JSON envelope every service responds with. Exactly one of
// Data or Error is set.
type Response struct {
	Data  any            `json:"data,omitempty"`
	Error *ErrorResponse `json:"error,omitempty"`
}

// ErrorResponse carries a machine-readable code alongside the human message.
type ErrorResponse struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// WriteJSON encodes v with the given status. Once WriteHeader has run there
// is no way to signal an encode failure to the client, so it is dropped.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorEnvelope(w http.ResponseWriter, status int, code, message, requestID string) {
	WriteJSON(w, status, Response{
		Error: &ErrorResponse{Code: code, Message: message, RequestID: requestID},
	})
}

// sentinelError maps the shared error sentinels onto wire codes. Anything
// unmatched is reported as INTERNAL_ERROR without leaking the cause.
func sentinelError(err error) (int, string, string) {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", "resource not found"
	case errors.Is(err, apperrors.ErrAlreadyExists):
		return http.StatusConflict, "ALREADY_EXISTS", "resource already exists"
	case errors.Is(err, apperrors.ErrInvalidInput):
		return http.StatusBadRequest, "INVALID_INPUT", err.Error()
	default:
		return apperrors.HTTPStatus(err), "INTERNAL_ERROR", "an internal error occurred"
	}
}

// WriteError translates err into the standard error envelope. AppError values
// carry their own status and code; sentinel errors map through sentinelError.
// Internal errors are additionally logged, preferring the request-scoped
// logger installed by the RequestLogger middleware over fallback.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger) {
	requestID := logger.CorrelationIDFromContext(r.Context())

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		writeErrorEnvelope(w, appErr.Status, appErr.Code, appErr.Message, requestID)
		return
	}

	status, code, message := sentinelError(err)
	if status == http.StatusInternalServerError {
		l := logger.FromContext(r.Context())
		if l == slog.Default() {
			l = fallback
		}
		l.ErrorContext(r.Context(), "internal error",
			slog.String("error", err.Error()),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
	}

	writeErrorEnvelope(w, status, code, message, requestID)
}

// PaginatedResponse wraps a page of results with enough metadata for a client
// to drive pagination.
type PaginatedResponse[T any] struct {
	Data       []T  `json:"data"`
	TotalCount int  `json:"total_count"`
	Page       int  `json:"page"`
	PerPage    int  `json:"per_page"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
}

// NewPaginatedResponse fills in the derived pagination fields. A nil data
// slice becomes an empty one so the JSON is [] rather than null.
func NewPaginatedResponse[T any](data []T, totalCount, page, perPage int) PaginatedResponse[T] {
	totalPages := (totalCount + perPage - 1) / perPage
	if data == nil {
		data = []T{}
	}
	return PaginatedResponse[T]{
		Data:       data,
		TotalCount: totalCount,
		Page:       page,
		PerPage:    perPage,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}

// WriteValidationError reports request validation failures. ValidationError
// values from the validator package include per-field messages; any other
// error is treated as plain invalid input.
func WriteValidationError(w http.ResponseWriter, err error) {
	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		WriteJSON(w, http.StatusBadRequest, Response{
			Error: &ErrorResponse{
				Code:    "VALIDATION_ERROR",
				Message: "request validation failed",
				Fields:  valErr.Fields(),
			},
		})
		return
	}
	writeErrorEnvelope(w, http.StatusBadRequest, "INVALID_INPUT", err.Error(), "")
}

// ParseUUID parses a path or query parameter as a UUID. On failure it writes
// the 400 response itself and returns false so the handler can just return.
func ParseUUID(w http.ResponseWriter, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(param)
	if err != nil {
		writeErrorEnvelope(w, http.StatusBadRequest, "INVALID_PARAMETER", "invalid UUID: "+param, "")
		return uuid.Nil, false
	}
	return id, true
}
