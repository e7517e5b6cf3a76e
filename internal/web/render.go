// Package web holds the server-rendered pages: templates, static assets and
// the echo renderer.
package web

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"time"

	"github.com/labstack/echo/v4"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Renderer executes the embedded templates by name.
type Renderer struct {
	templates *template.Template
	loc       *time.Location
}

// NewRenderer parses every template. Times are shown in loc.
func NewRenderer(loc *time.Location) (*Renderer, error) {
	if loc == nil {
		loc = time.UTC
	}
	r := &Renderer{loc: loc}
	funcs := template.FuncMap{
		"fmtTime": func(t time.Time) string {
			return t.In(r.loc).Format("02/01/2006 15:04")
		},
	}
	t, err := template.New("").Funcs(funcs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	r.templates = t
	return r, nil
}

func (r *Renderer) Render(w io.Writer, name string, data interface{}, _ echo.Context) error {
	return r.templates.ExecuteTemplate(w, name, data)
}

// Static returns the embedded assets rooted at the static directory.
func Static() fs.FS {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return sub
}
