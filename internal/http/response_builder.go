// Package http serves the JSON API consumed by the dashboard client and the
// Telegram webhook.
//
// This file holds the fluent builder every handler uses to write JSON.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Daler-web-dev/hisbbot/internal/core"
	"github.com/Daler-web-dev/hisbbot/internal/ledger"
)

// JSONResponseBuilder collects status, headers and a body, then writes them once.
type JSONResponseBuilder struct {
	statusCode int
	headers    map[string]string
	body       any
}

func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the value encoded as the response body.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	if b.body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(b.body); err != nil {
		slog.Error("Failed to encode JSON response", "error", err, "status", b.statusCode)
	}
}

type errorBody struct {
	Error string `json:"error"`
}

// ErrorResponse builds the {"error": message} body shared by every failure.
func ErrorResponse(statusCode int, message string) *JSONResponseBuilder {
	return NewJSONResponse().Status(statusCode).Body(errorBody{Error: message})
}

func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

func InternalServerError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, "Internal server error")
}

func MethodNotAllowedError(allowedMethods string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusMethodNotAllowed, "Method not allowed").Header("Allow", allowedMethods)
}

func TooManyRequestsError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.")
}

// ServiceError maps a ledger error to its response. Unknown errors are
// logged and reported as 500 without detail.
func ServiceError(ctx context.Context, err error, operation string) *JSONResponseBuilder {
	switch {
	case errors.Is(err, ledger.ErrUserNotFound):
		return NotFoundError("User not found")
	case errors.Is(err, ledger.ErrCategoryNotFound):
		return NotFoundError("Category not found or does not belong to user")
	case errors.Is(err, ledger.ErrTransactionNotFound):
		return NotFoundError("Transaction not found")
	case errors.Is(err, ledger.ErrCategoryTypeMismatch):
		return BadRequestError("Category type does not match transaction type")
	case errors.Is(err, ledger.ErrInvalidAmount):
		return BadRequestError("amount must be a positive number")
	case errors.Is(err, ledger.ErrInvalidType):
		return BadRequestError("type must be INCOME or EXPENSE")
	case errors.Is(err, ledger.ErrInvalidDate):
		return BadRequestError("dates must be YYYY-MM-DD")
	case errors.Is(err, core.ErrEmptyCategory):
		return BadRequestError("name is required")
	case errors.Is(err, context.DeadlineExceeded):
		slog.WarnContext(ctx, "Request timed out", "operation", operation)
		return ErrorResponse(http.StatusServiceUnavailable, "Request timed out")
	}
	slog.ErrorContext(ctx, "Request failed", "operation", operation, "error", err)
	return InternalServerError()
}
