// Package web renders the HTML pages and carries flash messages across
// redirects.
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strings"

	"github.com/njugunanduati/medicine-dose-tracker/internal/models"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	PageLogin                = "login"
	PageRegister             = "register"
	PageResetPasswordRequest = "reset_password_request"
	PageResetPassword        = "reset_password"
	PageHome                 = "home"
	PageError                = "error"
)

// PageData is what every page template receives.
type PageData struct {
	Title   string
	User    *models.User
	Flashes []string
	Form    map[string]string
	Errors  map[string]string
	Next    string
	Token   string
}

type Renderer struct {
	pages map[string]*template.Template
}

// NewRenderer parses every page together with the shared base layout.
func NewRenderer() (*Renderer, error) {
	files, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	r := &Renderer{pages: make(map[string]*template.Template)}
	for _, file := range files {
		name := strings.TrimSuffix(path.Base(file), ".html")
		if name == "base" {
			continue
		}
		tmpl, err := template.ParseFS(templateFS, "templates/base.html", file)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		r.pages[name] = tmpl
	}
	return r, nil
}

// Render executes page into a buffer first so a template failure never
// leaves a half-written response.
func (r *Renderer) Render(w http.ResponseWriter, status int, page string, data PageData) error {
	tmpl, ok := r.pages[page]
	if !ok {
		return fmt.Errorf("unknown page %q", page)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base", data); err != nil {
		return fmt.Errorf("render %s: %w", page, err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}
