// Package http exposes the engine's query surface (spec.md §6.2) over
// go-chi/chi, dispatching every request through application/mediator the
// way backend's interfaces/http/rest/handlers package dispatches through
// its own mediator.IMediator. Grounded on
// backend/interfaces/http/rest/handlers/node_handler.go for handler shape
// and backend2/pkg/errors/handler.go for the error-response envelope,
// adapted to unwrap pkg/apperr.Error instead of that package's own
// AppError type.
package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/groundgraph/engine/pkg/apperr"
)

var validate = validator.New()

// ErrorResponse is the JSON envelope returned for any failed request.
type ErrorResponse struct {
	Error   bool   `json:"error"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// ErrorHandler maps pkg/apperr.Kind to an HTTP status and writes the
// JSON error envelope, logging at a severity proportional to the status.
type ErrorHandler struct {
	logger *zap.Logger
}

func NewErrorHandler(logger *zap.Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

func (h *ErrorHandler) Handle(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}
	kind := apperr.KindOf(err)
	status := kindToStatus(kind)

	if status >= 500 {
		h.logger.Error("request failed", zap.String("path", r.URL.Path), zap.String("kind", string(kind)), zap.Error(err))
	} else {
		h.logger.Warn("request rejected", zap.String("path", r.URL.Path), zap.String("kind", string(kind)), zap.Error(err))
	}

	writeJSON(w, status, ErrorResponse{Error: true, Kind: string(kind), Message: err.Error()})
}

func kindToStatus(kind apperr.Kind) int {
	switch kind {
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.Conflict, apperr.Stale:
		return http.StatusConflict
	case apperr.Validation, apperr.DimensionMismatch, apperr.UnknownVocabType:
		return http.StatusBadRequest
	case apperr.QuotaExceeded:
		return http.StatusTooManyRequests
	case apperr.Cancelled:
		return 499
	case apperr.Timeout:
		return http.StatusRequestTimeout
	case apperr.ProviderUnavailable:
		return http.StatusServiceUnavailable
	case apperr.ProviderInvalid, apperr.IntegrityError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func decodeAndValidate(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperr.Wrap(apperr.Validation, "invalid request body", err)
	}
	if err := validate.Struct(dst); err != nil {
		return apperr.Wrap(apperr.Validation, "validation failed", err)
	}
	return nil
}

func queryInt(r *http.Request, name string, def int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return def
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return def
	}
	return n
}

func queryFloat(r *http.Request, name string, def float64) float64 {
	val := r.URL.Query().Get(name)
	if val == "" {
		return def
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return def
	}
	return f
}

func queryBool(r *http.Request, name string) bool {
	return r.URL.Query().Get(name) == "true"
}
