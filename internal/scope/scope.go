// Package scope defines the tenant scoping every ledger read must carry.
//
// A Scope is constructed only through Tenant or SystemWide, so a caller
// can never fall into a system-wide read by leaving a field unset: the
// zero Scope is invalid and rejected everywhere.
package scope

import (
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/poolfund/internal/orgcontext"

	"context"
)

var ErrInvalidScope = errors.New("invalid_scope")

type kind int

const (
	kindInvalid kind = iota
	kindTenant
	kindSystemWide
)

// Scope restricts ledger aggregation to one tenant organization, or
// marks the request as an explicit system-wide query.
type Scope struct {
	kind  kind
	orgID snowflake.ID
}

// Tenant scopes reads to a single organization.
func Tenant(orgID snowflake.ID) Scope {
	return Scope{kind: kindTenant, orgID: orgID}
}

// SystemWide marks an explicit cross-tenant request. Reserved for
// audited administrative paths.
func SystemWide() Scope {
	return Scope{kind: kindSystemWide}
}

// FromContext builds a tenant scope from the org carried on the context.
func FromContext(ctx context.Context) (Scope, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return Scope{}, ErrInvalidScope
	}
	return Tenant(orgID), nil
}

// Validate rejects the zero Scope and tenant scopes without an org.
func (s Scope) Validate() error {
	switch s.kind {
	case kindTenant:
		if s.orgID == 0 {
			return ErrInvalidScope
		}
		return nil
	case kindSystemWide:
		return nil
	default:
		return ErrInvalidScope
	}
}

// IsSystemWide reports whether the scope covers every tenant.
func (s Scope) IsSystemWide() bool {
	return s.kind == kindSystemWide
}

// TenantID returns the scoped org and whether the scope is tenant-bound.
func (s Scope) TenantID() (snowflake.ID, bool) {
	if s.kind != kindTenant {
		return 0, false
	}
	return s.orgID, true
}

// String is used for log fields only.
func (s Scope) String() string {
	switch s.kind {
	case kindTenant:
		return s.orgID.String()
	case kindSystemWide:
		return "system"
	default:
		return "invalid"
	}
}
