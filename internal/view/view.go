// Package view renders the server-side HTML pages.
package view

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"path"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/greenhouse-led-hub/internal/middleware"
	"github.com/iliyamo/greenhouse-led-hub/internal/model"
)

//go:embed templates/*.html
var files embed.FS

const layout = "templates/layout.html"

// Page is the data every template receives.
type Page struct {
	User    string // username; empty when anonymous
	Flashes []middleware.Flash
	Devices []model.DeviceStatus
	Form    map[string]string // values echoed back into a re-rendered form
	Status  int
	Message string
}

// Renderer implements echo.Renderer over the embedded templates.  Every
// page is parsed together with the shared layout once, at startup.
type Renderer struct {
	pages map[string]*template.Template
}

var funcs = template.FuncMap{
	"onoff": func(b bool) string {
		if b {
			return "ON"
		}
		return "OFF"
	},
}

// New parses all pages.
func New() (*Renderer, error) {
	names, err := fs.Glob(files, "templates/*.html")
	if err != nil {
		return nil, err
	}
	r := &Renderer{pages: make(map[string]*template.Template, len(names))}
	for _, name := range names {
		if name == layout {
			continue
		}
		t, err := template.New(path.Base(layout)).Funcs(funcs).ParseFS(files, layout, name)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		r.pages[path.Base(name)] = t
	}
	return r, nil
}

// Render writes the named page.
func (r *Renderer) Render(w io.Writer, name string, data interface{}, _ echo.Context) error {
	t, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("view: unknown page %q", name)
	}
	return t.ExecuteTemplate(w, "layout", data)
}
