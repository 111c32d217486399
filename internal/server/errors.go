package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	approvaldomain "github.com/smallbiznis/poolfund/internal/approval/domain"
	clientdomain "github.com/smallbiznis/poolfund/internal/client/domain"
	contributiondomain "github.com/smallbiznis/poolfund/internal/contribution/domain"
	ledgerdomain "github.com/smallbiznis/poolfund/internal/ledger/domain"
	"github.com/smallbiznis/poolfund/internal/scope"
	transactiondomain "github.com/smallbiznis/poolfund/internal/transaction/domain"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type          string            `json:"type"`
	Message       string            `json:"message"`
	TransactionID string            `json:"transaction_id,omitempty"`
	Errors        []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
	ErrInternal       = errors.New("internal_error")
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

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	var partial *approvaldomain.PartialCascadeError
	if errors.As(err, &partial) {
		return http.StatusInternalServerError, errorPayload{
			Type:          "partial_cascade_failure",
			Message:       partial.Error(),
			TransactionID: partial.TransactionID.String(),
		}
	}

	switch {
	case isScopeViolation(err):
		return http.StatusForbidden, errorPayload{
			Type:    "scope_violation",
			Message: "scope violation",
		}
	case isConcurrencyConflict(err):
		return http.StatusConflict, errorPayload{
			Type:    "concurrency_conflict",
			Message: "concurrent write detected, retry the request",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog feeds the request logger an error taxonomy
// without leaking internals into response bodies.
func classifyErrorForLog(err error) (string, string) {
	if err == nil {
		return "", ""
	}
	if vErr := asValidationErrors(err); vErr != nil && len(vErr.Errors) > 0 {
		return "validation_error", vErr.Errors[0].Code
	}
	switch {
	case isValidationError(err):
		return "validation_error", validationErrorCode(err)
	case isScopeViolation(err):
		return "scope_violation", "scope_violation"
	case isConcurrencyConflict(err):
		return "concurrency_conflict", "concurrency_conflict"
	case isNotFoundError(err):
		return "not_found", "not_found"
	default:
		var partial *approvaldomain.PartialCascadeError
		if errors.As(err, &partial) {
			return "partial_cascade_failure", partial.TransactionID.String()
		}
		return "internal_error", "internal_error"
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, scope.ErrInvalidScope),
		errors.Is(err, ledgerdomain.ErrInvalidOrganization),
		errors.Is(err, ledgerdomain.ErrInvalidKind),
		errors.Is(err, ledgerdomain.ErrInvalidAmount),
		errors.Is(err, ledgerdomain.ErrInvalidCounty),
		errors.Is(err, ledgerdomain.ErrInvalidMonth),
		errors.Is(err, transactiondomain.ErrInvalidOrganization),
		errors.Is(err, transactiondomain.ErrInvalidKind),
		errors.Is(err, transactiondomain.ErrInvalidAmount),
		errors.Is(err, approvaldomain.ErrInvalidOrganization),
		errors.Is(err, approvaldomain.ErrInvalidApplication),
		errors.Is(err, approvaldomain.ErrInvalidAmount),
		errors.Is(err, approvaldomain.ErrCascadeComplete),
		errors.Is(err, contributiondomain.ErrInvalidOrganization),
		errors.Is(err, contributiondomain.ErrInvalidID),
		errors.Is(err, contributiondomain.ErrInvalidMonth),
		errors.Is(err, contributiondomain.ErrInvalidAmount),
		errors.Is(err, contributiondomain.ErrMonthAlreadyRecorded),
		errors.Is(err, clientdomain.ErrInvalidOrganization),
		errors.Is(err, clientdomain.ErrInvalidID),
		errors.Is(err, clientdomain.ErrInvalidAmount):
		return true
	default:
		return false
	}
}

func isScopeViolation(err error) bool {
	switch {
	case errors.Is(err, ledgerdomain.ErrScopeViolation),
		errors.Is(err, approvaldomain.ErrScopeViolation),
		errors.Is(err, contributiondomain.ErrScopeViolation):
		return true
	default:
		return false
	}
}

func isConcurrencyConflict(err error) bool {
	return errors.Is(err, contributiondomain.ErrConcurrencyConflict)
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ledgerdomain.ErrClientNotFound),
		errors.Is(err, approvaldomain.ErrClientNotFound),
		errors.Is(err, approvaldomain.ErrNotFound),
		errors.Is(err, contributiondomain.ErrClientNotFound),
		errors.Is(err, contributiondomain.ErrNotFound),
		errors.Is(err, clientdomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	if errors.Is(err, ErrInvalidRequest) {
		return "invalid_request"
	}
	return err.Error()
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case "month_already_recorded":
		return "a contribution record already exists for this client and month"
	default:
		return strings.ReplaceAll(code, "_", " ")
	}
}
