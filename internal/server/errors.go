package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	agentdomain "github.com/gridsettle/tributary/internal/agent/domain"
	draftdomain "github.com/gridsettle/tributary/internal/draft/domain"
	recorddomain "github.com/gridsettle/tributary/internal/record/domain"
	unitdomain "github.com/gridsettle/tributary/internal/unit/domain"
)

type errorPayload struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrInvalidRequest = errors.New("invalid_request")
	ErrRateLimited    = errors.New("rate_limited")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Code:    "internal_error",
			Message: "internal server error",
		}
	}

	code := err.Error()

	switch {
	case isForbiddenError(err):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Code:    code,
			Message: "forbidden",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Code:    code,
			Message: "not found",
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Code:    code,
			Message: "conflict",
		}
	case isValidationError(err):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Code:    code,
			Message: "validation error",
		}
	case isReferenceError(err):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "reference_error",
			Code:    code,
			Message: "referenced entity rejected",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Code:    code,
			Message: "too many requests",
		}
	case isUnavailableError(err):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Code:    code,
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Code:    "internal_error",
			Message: "internal server error",
		}
	}
}

func isForbiddenError(err error) bool {
	switch {
	case errors.Is(err, agentdomain.ErrNotAuthorized),
		errors.Is(err, unitdomain.ErrNotAuthorized),
		errors.Is(err, draftdomain.ErrNotAuthorized),
		errors.Is(err, recorddomain.ErrAgentNotActive),
		errors.Is(err, unitdomain.ErrAgentNotActive):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, agentdomain.ErrNotFound),
		errors.Is(err, draftdomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, agentdomain.ErrAlreadyRegistered),
		errors.Is(err, recorddomain.ErrAlreadyExists),
		errors.Is(err, unitdomain.ErrAlreadyExists),
		errors.Is(err, unitdomain.ErrDuplicateLinkedRecord),
		errors.Is(err, unitdomain.ErrRecordAlreadyConsumed),
		errors.Is(err, draftdomain.ErrDuplicateUnit):
		return true
	default:
		return false
	}
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, agentdomain.ErrInvalidAddress),
		errors.Is(err, agentdomain.ErrEmptyName),
		errors.Is(err, agentdomain.ErrInvalidStatus),
		errors.Is(err, recorddomain.ErrInvalidID),
		errors.Is(err, recorddomain.ErrInvalidOwner),
		errors.Is(err, recorddomain.ErrMetadataMismatch),
		errors.Is(err, recorddomain.ErrEmptyKey),
		errors.Is(err, recorddomain.ErrEmptyBatch),
		errors.Is(err, recorddomain.ErrBatchTooLarge),
		errors.Is(err, unitdomain.ErrInvalidID),
		errors.Is(err, unitdomain.ErrInvalidOwner),
		errors.Is(err, unitdomain.ErrInvalidCurrency),
		errors.Is(err, unitdomain.ErrInvalidAmount),
		errors.Is(err, unitdomain.ErrEmptyLinkedRecords),
		errors.Is(err, unitdomain.ErrEmptyBatch),
		errors.Is(err, unitdomain.ErrBatchTooLarge),
		errors.Is(err, draftdomain.ErrInvalidOwner),
		errors.Is(err, draftdomain.ErrEmptyLinkedUnits),
		errors.Is(err, draftdomain.ErrInvalidRange),
		errors.Is(err, draftdomain.ErrPageTooLarge),
		errors.Is(err, draftdomain.ErrIndexOutOfBounds):
		return true
	default:
		return false
	}
}

// isReferenceError covers submissions that were well formed but referenced
// entities that cannot satisfy the cross-ledger rules.
func isReferenceError(err error) bool {
	switch {
	case errors.Is(err, unitdomain.ErrRecordNotFound),
		errors.Is(err, draftdomain.ErrUnitNotFound),
		errors.Is(err, draftdomain.ErrNotSameOwner),
		errors.Is(err, draftdomain.ErrCurrencyMismatch),
		errors.Is(err, draftdomain.ErrDayMismatch):
		return true
	default:
		return false
	}
}

func isUnavailableError(err error) bool {
	switch {
	case errors.Is(err, unitdomain.ErrNoRecordLedger),
		errors.Is(err, draftdomain.ErrNoUnitLedger):
		return true
	default:
		return false
	}
}

// classifyErrorForLog feeds the request logger the error taxonomy without
// rendering a response.
func classifyErrorForLog(err error) (string, string) {
	if err == nil {
		return "", ""
	}
	_, payload := mapError(err)
	return payload.Type, payload.Code
}
