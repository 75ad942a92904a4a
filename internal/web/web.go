// Package web holds the server-rendered views and the engine that serves them.
package web

import (
	"embed"
	"io/fs"
	"net/http"

	"github.com/gofiber/template/html/v2"
)

// Layout wraps full pages; fragments render without it.
const Layout = "layouts/main"

// View names rendered by the handlers.
const (
	ViewIndex         = "wireframes/index"
	ViewRegister      = "wireframes/register"
	ViewVerifyEmail   = "wireframes/verify-email"
	FragmentRegister  = "fragments/register-form"
	FragmentVerify    = "fragments/verify-form"
	FragmentError     = "fragments/error"
	FragmentNotFound  = "fragments/not-found"
	PageNotFound      = "error/404"
	PageInternalError = "error/500"
	PageGeneralError  = "error/general"
)

//go:embed views
var views embed.FS

// NewEngine parses the embedded views.
func NewEngine() *html.Engine {
	sub, err := fs.Sub(views, "views")
	if err != nil {
		panic(err)
	}
	return html.NewFileSystem(http.FS(sub), ".html")
}
