// Package errors maps cluster and upstream failures to HTTP responses.
package errors

import (
	"context"
	stderrors "errors"
	"net/http"

	jsoniter "github.com/json-iterator/go"
	"github.com/qoollo/bob-management/internal/aggregator"
	"github.com/qoollo/bob-management/internal/client"
	"github.com/qoollo/bob-management/internal/topology"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrorCode represents application-specific error codes.
type ErrorCode string

const (
	// General errors
	ErrorCodeInvalidRequest   ErrorCode = "INVALID_REQUEST"
	ErrorCodeInternalError    ErrorCode = "INTERNAL_ERROR"
	ErrorCodeTimeout          ErrorCode = "TIMEOUT"
	ErrorCodeRateLimited      ErrorCode = "RATE_LIMITED"
	ErrorCodeRouteNotFound    ErrorCode = "ROUTE_NOT_FOUND"
	ErrorCodeMethodNotAllowed ErrorCode = "METHOD_NOT_ALLOWED"

	// Cluster errors
	ErrorCodeClusterUnavailable ErrorCode = "CLUSTER_UNAVAILABLE"
	ErrorCodeUpstreamFailed     ErrorCode = "UPSTREAM_FAILED"
	ErrorCodeForbidden          ErrorCode = "FORBIDDEN"

	// Lookup errors
	ErrorCodeNodeNotFound  ErrorCode = "NODE_NOT_FOUND"
	ErrorCodeVDiskNotFound ErrorCode = "VDISK_NOT_FOUND"
)

// ErrorResponse represents the standard error response format.
type ErrorResponse struct {
	Status    string    `json:"status"`
	ErrorCode ErrorCode `json:"error_code"`
	Message   string    `json:"message"`
	RequestID string    `json:"request_id,omitempty"`
}

// Handler provides error handling functionality.
type Handler struct {
	logger *zap.Logger
}

// NewHandler creates a new error handler.
func NewHandler(logger *zap.Logger) *Handler {
	return &Handler{
		logger: logger,
	}
}

// HandleError classifies err and writes the matching HTTP response.
func (h *Handler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	statusCode, errorCode := h.Classify(err)
	h.WriteErrorResponse(w, statusCode, errorCode, err.Error(), r.Header.Get("X-Request-ID"))
}

// Classify returns the HTTP status and error code for err. Checks run from the most specific
// failure to the most generic one, so a timeout wrapped in an upstream error is still a timeout.
func (h *Handler) Classify(err error) (int, ErrorCode) {
	if err == nil {
		return http.StatusOK, ""
	}

	var notFound *aggregator.NotFoundError
	if stderrors.As(err, &notFound) {
		if notFound.Kind == "vdisk" {
			return http.StatusNotFound, ErrorCodeVDiskNotFound
		}
		return http.StatusNotFound, ErrorCodeNodeNotFound
	}

	if client.IsPermissionDenied(err) || topology.IsKind(err, topology.KindPermissionDenied) {
		return http.StatusForbidden, ErrorCodeForbidden
	}

	if stderrors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout, ErrorCodeTimeout
	}

	if topology.IsKind(err, topology.KindBadAddress) {
		return http.StatusBadRequest, ErrorCodeInvalidRequest
	}

	if stderrors.Is(err, topology.ErrNotConnected) {
		return http.StatusServiceUnavailable, ErrorCodeClusterUnavailable
	}
	var connErr *topology.ConnectError
	if stderrors.As(err, &connErr) {
		return http.StatusServiceUnavailable, ErrorCodeClusterUnavailable
	}

	var upstream *aggregator.UpstreamError
	if stderrors.As(err, &upstream) {
		return http.StatusBadGateway, ErrorCodeUpstreamFailed
	}

	return http.StatusInternalServerError, ErrorCodeInternalError
}

// WriteErrorResponse writes a formatted error response to the HTTP response writer.
func (h *Handler) WriteErrorResponse(w http.ResponseWriter, statusCode int, errorCode ErrorCode, message string, requestID string) {
	h.logger.Warn("HTTP error response",
		zap.Int("status_code", statusCode),
		zap.String("error_code", string(errorCode)),
		zap.String("message", message),
		zap.String("request_id", requestID),
	)

	resp := ErrorResponse{
		Status:    "error",
		ErrorCode: errorCode,
		Message:   message,
		RequestID: requestID,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("Failed to encode error response", zap.Error(err))
	}
}

// WriteValidationError writes a validation error response.
func (h *Handler) WriteValidationError(w http.ResponseWriter, message string, requestID string) {
	h.WriteErrorResponse(w, http.StatusBadRequest, ErrorCodeInvalidRequest, message, requestID)
}

// WriteRateLimitedError writes a rate limit exceeded response.
func (h *Handler) WriteRateLimitedError(w http.ResponseWriter, requestID string) {
	h.WriteErrorResponse(w, http.StatusTooManyRequests, ErrorCodeRateLimited, "rate limit exceeded", requestID)
}

