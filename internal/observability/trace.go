package observability

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	// TraceHeader carries the request trace ID in and out.
	TraceHeader = "X-Trace-Id"
	// TraceLocalKey is the fiber locals key holding the trace ID.
	TraceLocalKey = "traceId"
)

type traceKey struct{}

// ContextWithTraceID stores traceID in ctx.
func ContextWithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceKey{}, traceID)
}

// TraceIDFromContext returns the trace ID in ctx or "".
func TraceIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(traceKey{}).(string)
	return id
}

// TraceMiddleware assigns every request a trace ID, reusing the inbound header when present.
func TraceMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		traceID := c.Get(TraceHeader)
		if traceID == "" {
			traceID = uuid.NewString()
		}
		c.Locals(TraceLocalKey, traceID)
		c.Set(TraceHeader, traceID)
		c.SetUserContext(ContextWithTraceID(c.UserContext(), traceID))
		return c.Next()
	}
}

// TraceID returns the trace ID of the request, generating one if the middleware did not run.
func TraceID(c *fiber.Ctx) string {
	if id, ok := c.Locals(TraceLocalKey).(string); ok && id != "" {
		return id
	}
	id := uuid.NewString()
	c.Locals(TraceLocalKey, id)
	return id
}
