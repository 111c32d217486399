package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/poolfund/internal/observability/context"
	"github.com/smallbiznis/poolfund/internal/orgcontext"
	"github.com/smallbiznis/poolfund/internal/scope"
)

const (
	HeaderOrg = "X-Org-ID"
	// HeaderScope opts a request into the cross-tenant system scope.
	// The administration shell only sets it on audited admin paths.
	HeaderScope = "X-Scope"

	scopeSystem = "system"
)

// OrgContext resolves the tenant from the X-Org-ID header and injects
// it into the request context. The authorization layer in front of
// this service has already authenticated the caller.
func OrgContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(HeaderOrg))
		if raw == "" {
			AbortWithError(c, newValidationError("org", "invalid_organization", "missing "+HeaderOrg+" header"))
			return
		}
		orgID, err := snowflake.ParseString(raw)
		if err != nil || orgID == 0 {
			AbortWithError(c, newValidationError("org", "invalid_organization", "malformed "+HeaderOrg+" header"))
			return
		}

		ctx := orgcontext.WithOrgID(c.Request.Context(), int64(orgID))
		ctx = obscontext.WithOrgID(ctx, orgID.String())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// scopeFromRequest builds the read scope for the request: the caller's
// tenant by default, system-wide when explicitly requested.
func scopeFromRequest(c *gin.Context) (scope.Scope, error) {
	if strings.EqualFold(strings.TrimSpace(c.GetHeader(HeaderScope)), scopeSystem) {
		return scope.SystemWide(), nil
	}
	return scope.FromContext(c.Request.Context())
}
