package views

import (
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"strings"
	"time"

	"github.com/i474232898/green-wellness-tracker/internal/dashboard"
)

//go:embed templates
var viewsFS embed.FS

var funcs = template.FuncMap{
	"window": windowLabel,
	"has": func(list []string, s string) bool {
		for _, v := range list {
			if v == s {
				return true
			}
		}
		return false
	},
}

// windowLabel renders a trend window for headings: "24 hours", "1 hour", or the
// compact duration ("1h30m") when it is not a whole number of hours.
func windowLabel(d time.Duration) string {
	if d%time.Hour == 0 {
		h := int(d / time.Hour)
		if h == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", h)
	}
	s := d.String()
	if strings.HasSuffix(s, "m0s") {
		s = strings.TrimSuffix(s, "0s")
	}
	return s
}

// Renderer executes the dashboard templates.
type Renderer struct {
	tmpl *template.Template
}

// loadFromFS parses templates from dir inside fsys. Split out so tests can feed
// broken template sets.
func loadFromFS(fsys fs.FS, dir string) (*Renderer, error) {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		return nil, err
	}
	tmpl, err := template.New("dashboard.html").Funcs(funcs).ParseFS(sub, "*.html", "partials/*.html")
	if err != nil {
		return nil, err
	}
	return &Renderer{tmpl: tmpl}, nil
}

// Load parses the embedded templates. Call during startup; if it fails, do not
// start the server.
func Load() (*Renderer, error) {
	return loadFromFS(viewsFS, "templates")
}

// Dashboard is the dashboard page plus a one-off message from the last form post.
type Dashboard struct {
	dashboard.Page
	Flash      string
	FlashLevel string
}

func (r *Renderer) RenderDashboard(w io.Writer, data *Dashboard) error {
	if r == nil || r.tmpl == nil {
		return errors.New("dashboard template not loaded: call views.Load during startup")
	}
	return r.tmpl.ExecuteTemplate(w, "dashboard.html", data)
}
