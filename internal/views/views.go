// Package views renders the HTML pages of the inventory application.
package views

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

//go:embed templates/*.html
var templateFS embed.FS

const layoutFile = "templates/layout.html"

// Viewer is the signed-in user as seen by templates.
type Viewer struct {
	ID       int
	Username string
	Role     string
}

// IsAdmin reports whether the viewer holds the admin role.
func (v *Viewer) IsAdmin() bool {
	return v != nil && v.Role == "admin"
}

// Page is the data every template receives.
type Page struct {
	Title string
	User  *Viewer
	Flash string
	Error string
	Form  map[string]string
	Data  any
}

// Renderer holds one parsed template set per page.
type Renderer struct {
	pages  map[string]*template.Template
	logger *zap.Logger
}

var funcs = template.FuncMap{
	"datetime": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Local().Format("2006-01-02 15:04")
	},
	"yen":  formatYen,
	"itoa": strconv.Itoa,
}

// New parses the layout together with every page template.
func New(logger *zap.Logger) (*Renderer, error) {
	names, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	pages := make(map[string]*template.Template, len(names))
	for _, name := range names {
		if name == layoutFile {
			continue
		}
		tmpl, err := template.New("layout.html").Funcs(funcs).ParseFS(templateFS, layoutFile, name)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		page := strings.TrimSuffix(strings.TrimPrefix(name, "templates/"), ".html")
		pages[page] = tmpl
	}

	return &Renderer{pages: pages, logger: logger}, nil
}

// Render executes page into a buffer first so a template failure can still
// produce a clean 500 response.
func (r *Renderer) Render(w http.ResponseWriter, status int, page string, data Page) {
	tmpl, ok := r.pages[page]
	if !ok {
		r.logger.Error("unknown template", zap.String("page", page))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		r.logger.Error("render template", zap.String("page", page), zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func formatYen(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	digits := strconv.FormatInt(amount, 10)
	var b strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(d)
	}
	return "¥" + sign + b.String()
}
