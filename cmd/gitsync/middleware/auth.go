package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// UserIDKey is the context key for the authenticated user id
	UserIDKey ContextKey = "user_id"
	// OrganizationIDKey is the context key for the caller's organization
	OrganizationIDKey ContextKey = "organization_id"
)

// RequireIdentity extracts the X-User-ID and X-Organization-ID headers and
// stores them in the request context. Both are mandatory: every git
// operation is attributed to a user and scoped to an organization.
func RequireIdentity() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID := c.Request().Header.Get("X-User-ID")
			if userID == "" {
				return c.JSON(http.StatusUnauthorized, map[string]interface{}{
					"error": "X-User-ID header is required",
				})
			}

			orgID := c.Request().Header.Get("X-Organization-ID")
			if orgID == "" {
				return c.JSON(http.StatusUnauthorized, map[string]interface{}{
					"error": "X-Organization-ID header is required",
				})
			}

			c.Set(string(UserIDKey), userID)
			c.Set(string(OrganizationIDKey), orgID)
			return next(c)
		}
	}
}

// GetUserID returns the authenticated user id from the echo context
func GetUserID(c echo.Context) string {
	if v, ok := c.Get(string(UserIDKey)).(string); ok {
		return v
	}
	return ""
}

// GetOrganizationID returns the caller's organization from the echo context
func GetOrganizationID(c echo.Context) string {
	if v, ok := c.Get(string(OrganizationIDKey)).(string); ok {
		return v
	}
	return ""
}
