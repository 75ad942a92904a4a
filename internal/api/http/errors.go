package http

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/jobcard-service/internal/observability"
	"github.com/spec-kit/jobcard-service/internal/web"
	apperrors "github.com/spec-kit/jobcard-service/pkg/util/errorutil"
)

// Fragment types understood by the error fragment.
const (
	errorTypeValidation = "VALIDATION_ERROR"
	errorTypeBusiness   = "BUSINESS_ERROR"
	errorTypeSystem     = "SYSTEM_ERROR"
)

// NewErrorHandler renders failures for the three kinds of caller: htmx swaps
// get a fragment, browsers get a page and everything else gets JSON.
func NewErrorHandler(logger *zap.Logger, metrics *observability.Metrics) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		de := apperrors.ToDomainError(err)
		traceID := observability.TraceID(c)
		metrics.RecordError(c.Path(), c.Method(), de.Code)

		fields := []zap.Field{
			zap.String("trace_id", traceID),
			zap.String("code", de.Code),
			zap.Int("status", de.HTTPStatus),
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Error(err),
		}
		if de.HTTPStatus >= fiber.StatusInternalServerError {
			logger.Error("request failed", fields...)
		} else {
			logger.Warn("request rejected", fields...)
		}

		var renderErr error
		switch {
		case isHTMX(c):
			renderErr = renderFragment(c, de, traceID)
		case wantsHTML(c):
			renderErr = renderPage(c, de, traceID)
		default:
			return writeJSONError(c, de, traceID)
		}
		if renderErr != nil {
			logger.Error("error view failed", zap.String("trace_id", traceID), zap.Error(renderErr))
			return writeJSONError(c, de, traceID)
		}
		return nil
	}
}

func writeJSONError(c *fiber.Ctx, de *apperrors.DomainError, traceID string) error {
	body := fiber.Map{
		"code":      de.Code,
		"message":   de.Message,
		"traceId":   traceID,
		"path":      c.Path(),
		"timestamp": time.Now().UTC(),
	}
	if len(de.Details) > 0 {
		body["details"] = de.Details
	}
	if len(de.FieldErrors) > 0 {
		body["fieldErrors"] = de.FieldErrors
	}
	if suggestions := apperrors.Suggestions(de); len(suggestions) > 0 {
		body["suggestions"] = suggestions
	}
	return c.Status(de.HTTPStatus).JSON(fiber.Map{"error": body})
}

// renderFragment answers 200 so htmx swaps the fragment in.
func renderFragment(c *fiber.Ctx, de *apperrors.DomainError, traceID string) error {
	c.Status(fiber.StatusOK)
	if de.Code == apperrors.CodeEndpointNotFound {
		return c.Render(web.FragmentNotFound, fiber.Map{
			"Message": "The requested content could not be found.",
			"Path":    c.Path(),
		})
	}

	fieldErrors := de.FieldErrors
	if fieldErrors == nil {
		fieldErrors = map[string]string{}
	}
	kind := fragmentType(de)
	return c.Render(web.FragmentError, fiber.Map{
		"Type":        kind,
		"Code":        de.Code,
		"Message":     de.Message,
		"FieldErrors": fieldErrors,
		"Suggestions": apperrors.Suggestions(de),
		"CanRetry":    kind != errorTypeBusiness,
		"TraceID":     traceID,
	})
}

func fragmentType(de *apperrors.DomainError) string {
	switch de.Kind {
	case apperrors.KindValidation:
		return errorTypeValidation
	case apperrors.KindInternal, apperrors.KindExternal:
		return errorTypeSystem
	default:
		return errorTypeBusiness
	}
}

func renderPage(c *fiber.Ctx, de *apperrors.DomainError, traceID string) error {
	c.Status(de.HTTPStatus)
	data := fiber.Map{
		"PageTitle":   errorTitle(de.HTTPStatus),
		"Title":       errorTitle(de.HTTPStatus),
		"Message":     de.Message,
		"Suggestions": apperrors.Suggestions(de),
		"TraceID":     traceID,
	}
	switch {
	case de.HTTPStatus == fiber.StatusNotFound:
		data["Message"] = "The page you are looking for does not exist."
		return c.Render(web.PageNotFound, data, web.Layout)
	case de.HTTPStatus >= fiber.StatusInternalServerError:
		data["Message"] = apperrors.GenericMessage
		return c.Render(web.PageInternalError, data, web.Layout)
	default:
		return c.Render(web.PageGeneralError, data, web.Layout)
	}
}

func errorTitle(status int) string {
	switch status {
	case fiber.StatusNotFound:
		return "Page Not Found"
	case fiber.StatusInternalServerError:
		return "Internal Server Error"
	default:
		return "An error occurred"
	}
}

func wantsHTML(c *fiber.Ctx) bool {
	if strings.HasPrefix(c.Path(), "/api/") {
		return false
	}
	return strings.Contains(c.Get(fiber.HeaderAccept), fiber.MIMETextHTML)
}
