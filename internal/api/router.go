/**
 * @description
 * This file sets up the HTTP router for the portal. The same handlers are
 * mounted twice: HTML pages at "/" and JSON page models at "/api".
 *
 * @dependencies
 * - github.com/go-chi/chi/v5: routing and standard middleware.
 * - github.com/go-chi/cors: CORS for the JSON surface.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterConfig holds the web settings of the portal.
type RouterConfig struct {
	AllowedOrigins []string
	Cookies        CookieSettings
	Tokens         *SessionTokens
}

// NewRouter creates the portal router.
func NewRouter(cfg RouterConfig, services Services, html Presenter) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check endpoint
	r.Get("/health", NewHandlers(services, cfg.Cookies, JSONPresenter{}).Health)

	r.Route("/api", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
			ExposedHeaders:   []string{"Link"},
			AllowCredentials: true,
			MaxAge:           300, // Maximum value not ignored by any major browsers
		}))
		portalRoutes(r, cfg, NewHandlers(services, cfg.Cookies, JSONPresenter{}))
	})

	r.Group(func(r chi.Router) {
		portalRoutes(r, cfg, NewHandlers(services, cfg.Cookies, html))
	})

	return r
}

func portalRoutes(r chi.Router, cfg RouterConfig, h *Handlers) {
	r.Use(SessionMiddleware(cfg.Tokens, cfg.Cookies))

	r.Get("/", h.Home)
	r.Get("/login", h.LoginPage)
	r.Post("/login", h.Login)
	r.Get("/register", h.RegisterPage)
	r.Post("/register", h.Register)
	r.Post("/register/password-strength", h.PasswordStrength)
	r.Get("/logout", h.Logout)
	r.Post("/logout", h.Logout)

	// Session endpoints answer anonymous sessions too.
	r.Get("/session/status", h.SessionStatus)
	r.Post("/session/activity", h.SessionActivity)

	// Group routes that require an authenticated session.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(h.sessions, h.presenter))

		r.Get("/dashboard", h.Dashboard)

		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", h.Accounts)
			r.Post("/", h.CreateAccount)
			r.Get("/new", h.NewAccountPage)
			r.Get("/{accountID}", h.AccountDetails)
			r.Post("/{accountID}/transfer", h.SelectForTransfer)
		})

		r.Route("/transfer", func(r chi.Router) {
			r.Get("/", h.TransferPage)
			r.Post("/", h.SubmitTransfer)
			r.Post("/validate", h.ValidateTransfer)
			r.Get("/confirm", h.ConfirmationPage)
			r.Post("/confirm", h.ConfirmTransfer)
			r.Get("/success", h.TransferSuccess)
			r.Get("/status", h.TransferStatus)
		})

		r.Get("/profile", h.Profile)
		r.Post("/profile", h.UpdateProfile)
	})
}
