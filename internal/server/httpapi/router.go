// Package httpapi exposes the auth service over JSON/HTTP under /api/auth.
package httpapi

import (
	"context"
	"net/http"

	"github.com/dmitrijs2005/credkeeper/internal/logging"
	"github.com/dmitrijs2005/credkeeper/internal/server/auth"
	"github.com/dmitrijs2005/credkeeper/internal/server/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// AuthService is the part of services.AuthService the handlers call.
type AuthService interface {
	Register(ctx context.Context, email, password, appBaseURL string) (*services.AuthResponse, error)
	Login(ctx context.Context, email, password, deviceInfo string) (*services.AuthResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*services.AuthResponse, error)
	Logout(ctx context.Context, refreshToken string) error
	VerifyAccount(ctx context.Context, token string) error
	ResendVerification(ctx context.Context, email, appBaseURL string) error
	Authenticate(ctx context.Context, accessToken string) (*auth.Principal, error)
}

type Handler struct {
	svc        AuthService
	appBaseURL string
	log        logging.Logger
}

// NewHandler builds the handler set. An empty appBaseURL makes activation
// links point back at the host the request came in on.
func NewHandler(svc AuthService, appBaseURL string, log logging.Logger) *Handler {
	return &Handler{svc: svc, appBaseURL: appBaseURL, log: log.With("module", "http")}
}

// Routes returns the chi router with all endpoints mounted.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.Health)

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Get("/verify", h.Verify)
		r.Post("/login", h.Login)
		r.Post("/refresh-token", h.RefreshToken)
		r.Post("/logout", h.Logout)
		r.Post("/resend-verification", h.ResendVerification)

		r.Group(func(r chi.Router) {
			r.Use(h.requireBearer)
			r.Get("/me", h.Me)
		})
	})

	return r
}
