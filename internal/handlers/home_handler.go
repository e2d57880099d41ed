package handlers

import (
	"net/http"

	"github.com/njugunanduati/medicine-dose-tracker/internal/web"
)

type HomeHandler struct {
	*BaseHandler
}

func NewHomeHandler(base *BaseHandler) *HomeHandler {
	return &HomeHandler{BaseHandler: base}
}

func (h *HomeHandler) Home(w http.ResponseWriter, r *http.Request) {
	h.page(w, r, http.StatusOK, web.PageHome, web.PageData{Title: "Home"})
}
