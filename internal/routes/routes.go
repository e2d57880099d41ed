// internal/routes/routes.go
package routes

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/njugunanduati/medicine-dose-tracker/internal/config"
	"github.com/njugunanduati/medicine-dose-tracker/internal/handlers"
	"github.com/njugunanduati/medicine-dose-tracker/internal/logging"
	authmw "github.com/njugunanduati/medicine-dose-tracker/internal/middleware"
	"github.com/njugunanduati/medicine-dose-tracker/internal/services"
	"github.com/njugunanduati/medicine-dose-tracker/internal/session"
	"github.com/njugunanduati/medicine-dose-tracker/internal/web"
)

// Deps are the collaborators the router hands to handlers.
type Deps struct {
	Config   *config.Config
	Logger   *slog.Logger
	DB       handlers.Pinger
	Auth     *services.AuthService
	Sessions *session.Manager
	Renderer *web.Renderer
}

func SetupRoutes(d Deps) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	if len(d.Config.TrustedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   d.Config.TrustedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost},
			AllowedHeaders:   []string{"Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.RequestLogger(d.Logger))
	r.Use(middleware.Recoverer)

	// Health check
	r.Get("/health", handlers.NewHealthHandler(d.DB).Health)

	base := handlers.NewBaseHandler(d.Renderer)

	r.Group(func(r chi.Router) {
		r.Use(authmw.LoadUser(d.Sessions))

		RegisterAuthRoutes(r, handlers.NewAuthHandler(base, d.Auth, d.Sessions))

		home := handlers.NewHomeHandler(base)
		r.With(authmw.RequireLogin).Get("/home", home.Home)
	})

	return r
}
