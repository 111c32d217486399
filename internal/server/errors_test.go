package server

import (
	"errors"
	"net/http"
	"testing"

	approvaldomain "github.com/smallbiznis/poolfund/internal/approval/domain"
	clientdomain "github.com/smallbiznis/poolfund/internal/client/domain"
	contributiondomain "github.com/smallbiznis/poolfund/internal/contribution/domain"
	ledgerdomain "github.com/smallbiznis/poolfund/internal/ledger/domain"
	"github.com/smallbiznis/poolfund/internal/scope"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapErrorStatus(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		typ    string
	}{
		{"invalid amount", ledgerdomain.ErrInvalidAmount, http.StatusBadRequest, "validation_error"},
		{"invalid month", contributiondomain.ErrInvalidMonth, http.StatusBadRequest, "validation_error"},
		{"duplicate month", contributiondomain.ErrMonthAlreadyRecorded, http.StatusBadRequest, "validation_error"},
		{"cascade complete", approvaldomain.ErrCascadeComplete, http.StatusBadRequest, "validation_error"},
		{"invalid scope", scope.ErrInvalidScope, http.StatusBadRequest, "validation_error"},
		{"scope violation", ledgerdomain.ErrScopeViolation, http.StatusForbidden, "scope_violation"},
		{"cross-tenant contribution", contributiondomain.ErrScopeViolation, http.StatusForbidden, "scope_violation"},
		{"concurrency conflict", contributiondomain.ErrConcurrencyConflict, http.StatusConflict, "concurrency_conflict"},
		{"client missing", clientdomain.ErrNotFound, http.StatusNotFound, "not_found"},
		{"transaction missing", approvaldomain.ErrNotFound, http.StatusNotFound, "not_found"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, payload := mapError(tc.err)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.typ, payload.Type)
		})
	}
}

func TestMapErrorPartialCascade(t *testing.T) {
	partial := &approvaldomain.PartialCascadeError{
		TransactionID: 12345,
		Err:           errors.New("insert failed"),
	}

	status, payload := mapError(partial)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "partial_cascade_failure", payload.Type)
	assert.Equal(t, "12345", payload.TransactionID)
}

func TestMapErrorValidationDetail(t *testing.T) {
	status, payload := mapError(ledgerdomain.ErrInvalidCounty)
	assert.Equal(t, http.StatusBadRequest, status)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "county", payload.Errors[0].Field)
	assert.Equal(t, "invalid_county", payload.Errors[0].Code)
}

func TestClassifyErrorForLog(t *testing.T) {
	kind, code := classifyErrorForLog(contributiondomain.ErrConcurrencyConflict)
	assert.Equal(t, "concurrency_conflict", kind)
	assert.Equal(t, "concurrency_conflict", code)

	kind, code = classifyErrorForLog(newValidationError("amount", "invalid_amount", "invalid amount"))
	assert.Equal(t, "validation_error", kind)
	assert.Equal(t, "invalid_amount", code)

	kind, _ = classifyErrorForLog(nil)
	assert.Empty(t, kind)
}
