package observability

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics()
	m.RecordRequest("/a", "GET", 200, 10*time.Millisecond)
	m.RecordRequest("/a", "GET", 200, 30*time.Millisecond)
	m.RecordError("/a", "GET", "SYS_001")
	m.RecordEvent("jobcard.created")

	snap := m.Snapshot()
	require.Len(t, snap.Requests, 1)
	assert.Equal(t, "/a|GET|200", snap.Requests[0].Key)
	assert.EqualValues(t, 2, snap.Requests[0].Count)
	assert.InDelta(t, 20.0, snap.Requests[0].AvgMillis, 0.001)
	assert.EqualValues(t, 1, snap.Errors["/a|GET|SYS_001"])
	assert.EqualValues(t, 1, snap.Events["jobcard.created"])

	var nilMetrics *Metrics
	nilMetrics.RecordRequest("/a", "GET", 200, time.Millisecond)
	assert.Empty(t, nilMetrics.Snapshot().Requests)
}

func TestTraceMiddlewareReusesOrGeneratesID(t *testing.T) {
	app := fiber.New()
	app.Use(TraceMiddleware())
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(TraceIDFromContext(c.UserContext()))
	})

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(TraceHeader, "trace-123")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, "trace-123", resp.Header.Get(TraceHeader))

	resp, err = app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Len(t, resp.Header.Get(TraceHeader), 36)
}

func TestRequestLoggerRecordsStatusAfterErrorHandler(t *testing.T) {
	metrics := NewMetrics()
	app := fiber.New()
	app.Use(TraceMiddleware(), RequestLogger(zap.NewNop(), metrics))
	app.Get("/missing", func(c *fiber.Ctx) error { return fiber.ErrNotFound })

	resp, err := app.Test(httptest.NewRequest("GET", "/missing", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	snap := metrics.Snapshot()
	require.Len(t, snap.Requests, 1)
	assert.Equal(t, "/missing|GET|404", snap.Requests[0].Key)
}

func TestLoggerFromContext(t *testing.T) {
	logger := zap.NewNop()
	assert.Same(t, logger, LoggerFromContext(context.Background(), logger))
	assert.NotNil(t, LoggerFromContext(ContextWithTraceID(context.Background(), "t-1"), logger))
}
