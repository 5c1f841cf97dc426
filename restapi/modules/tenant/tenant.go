// Package tenant extracts the tenant scope from incoming requests. Every
// tenant-scoped read and write threads this value down to storage.
package tenant

import (
	"context"

	"github.com/gofiber/fiber/v2"
)

// HeaderName carries the tenant scope on every API request.
const HeaderName = "X-Tenant-ID"

const localsKey = "tenant_id"

// Middleware rejects requests without a tenant header and stashes the value
// for handlers downstream. The global vulnerability corpus is not tenant
// scoped; everything else is.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(HeaderName)
		if id == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"message": HeaderName + " header is required",
			})
		}
		c.Locals(localsKey, id)
		return c.Next()
	}
}

// FromCtx returns the tenant id stashed by the middleware.
func FromCtx(c *fiber.Ctx) string {
	if id, ok := c.Locals(localsKey).(string); ok {
		return id
	}
	return ""
}

type contextKey struct{}

// NewContext carries the tenant id into a context.Context for resolvers
// running outside the fiber request.
func NewContext(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the tenant id carried by NewContext.
func FromContext(ctx context.Context) string {
	if id, ok := ctx.Value(contextKey{}).(string); ok {
		return id
	}
	return ""
}
