package loginapp

import (
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"path"

	"github.com/flosch/pongo2/v6"
	"github.com/gin-gonic/gin"
)

//go:embed templates/*.html
var templatesFS embed.FS

const (
	pageLogin     = "login.html"
	pageDashboard = "dashboard.html"
	pageNotFound  = "404.html"
)

// renderer holds the parsed page templates.
type renderer struct {
	pages map[string]*pongo2.Template
}

func newRenderer() (*renderer, error) {
	names, err := fs.Glob(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("fs.Glob: %w", err)
	}

	r := &renderer{pages: make(map[string]*pongo2.Template, len(names))}
	for _, name := range names {
		b, err := templatesFS.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("read template %s: %w", name, err)
		}

		tpl, err := pongo2.FromBytes(b)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}

		r.pages[path.Base(name)] = tpl
	}

	return r, nil
}

// HTML renders the named page with data.
func (r *renderer) HTML(c *gin.Context, code int, name string, data pongo2.Context) {
	tpl, ok := r.pages[name]
	if !ok {
		c.String(http.StatusInternalServerError, "template not found: %s", name)
		return
	}

	out, err := tpl.ExecuteBytes(data)
	if err != nil {
		_ = c.Error(err)
		c.String(http.StatusInternalServerError, "template execution error")
		return
	}

	c.Data(code, "text/html; charset=utf-8", out)
}
