package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/jobcard-service/internal/observability"
	"github.com/spec-kit/jobcard-service/internal/web"
)

// ErrorPageHandler renders the generic error page that other pages link to.
type ErrorPageHandler struct{}

// NewErrorPageHandler constructs handler.
func NewErrorPageHandler() *ErrorPageHandler {
	return &ErrorPageHandler{}
}

// Show GET /error?status=.
func (h *ErrorPageHandler) Show(c *fiber.Ctx) error {
	status := c.QueryInt("status", fiber.StatusInternalServerError)
	var title, message string
	switch status {
	case fiber.StatusNotFound:
		title, message = "Page Not Found", "The page you are looking for does not exist."
	case fiber.StatusInternalServerError:
		title, message = "Internal Server Error", "Something went wrong on our side."
	default:
		title, message = "An error occurred", "We could not complete your request."
	}
	return c.Render(web.PageGeneralError, fiber.Map{
		"PageTitle": title,
		"Title":     title,
		"Message":   message,
		"Status":    status,
		"TraceID":   observability.TraceID(c),
	}, web.Layout)
}
