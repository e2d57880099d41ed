package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/njugunanduati/medicine-dose-tracker/internal/handlers"
	authmw "github.com/njugunanduati/medicine-dose-tracker/internal/middleware"
)

func RegisterAuthRoutes(router chi.Router, h *handlers.AuthHandler) {
	router.Get("/logout", h.Logout)

	router.Group(func(r chi.Router) {
		r.Use(authmw.RedirectAuthenticated("/home"))

		r.Get("/", h.LoginPage)
		r.Get("/login", h.LoginPage)
		r.Post("/login", h.Login)

		r.Get("/register", h.RegisterPage)
		r.Post("/register", h.Register)

		r.Get("/reset_password_request", h.ResetPasswordRequestPage)
		r.Post("/reset_password_request", h.ResetPasswordRequest)

		r.Get("/reset_password/{token}", h.ResetPasswordPage)
		r.Post("/reset_password/{token}", h.ResetPassword)
	})
}
