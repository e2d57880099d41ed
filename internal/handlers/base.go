// internal/handlers/base.go
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/njugunanduati/medicine-dose-tracker/internal/logging"
	"github.com/njugunanduati/medicine-dose-tracker/internal/middleware"
	"github.com/njugunanduati/medicine-dose-tracker/internal/services"
	"github.com/njugunanduati/medicine-dose-tracker/internal/web"
)

const landingPath = "/home"

type BaseHandler struct {
	render *web.Renderer
}

func NewBaseHandler(render *web.Renderer) *BaseHandler {
	return &BaseHandler{render: render}
}

// page renders a full page with the current user and pending flashes.
func (b *BaseHandler) page(w http.ResponseWriter, r *http.Request, status int, name string, data web.PageData) {
	data.User = middleware.UserFromContext(r.Context())
	data.Flashes = web.PopFlashes(w, r)
	if err := b.render.Render(w, status, name, data); err != nil {
		logging.FromContext(r.Context()).Error("failed to render page", "page", name, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// formError re-renders a form with inline field errors, or falls through
// to serverError for anything that is not a validation failure.
func (b *BaseHandler) formError(w http.ResponseWriter, r *http.Request, name string, data web.PageData, err error) {
	var verr *services.ValidationError
	if !errors.As(err, &verr) {
		b.serverError(w, r, err)
		return
	}
	data.Errors = verr.Fields
	b.page(w, r, http.StatusUnprocessableEntity, name, data)
}

func (b *BaseHandler) serverError(w http.ResponseWriter, r *http.Request, err error) {
	logging.FromContext(r.Context()).Error("request failed", "error", err)
	if renderErr := b.render.Render(w, http.StatusInternalServerError, web.PageError, web.PageData{Title: "Error"}); renderErr != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func redirect(w http.ResponseWriter, r *http.Request, target string) {
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func checked(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "y", "yes", "on", "true", "1":
		return true
	}
	return false
}
