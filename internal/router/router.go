package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"go-auth-service/internal/config"
	"go-auth-service/internal/handler"
	"go-auth-service/internal/metrics"
	"go-auth-service/internal/middleware"
	"go-auth-service/internal/model"
)

type Handlers struct {
	Account   *handler.AccountHandler
	Delegated *handler.DelegatedHandler
	Webhook   *handler.WebhookHandler
	Health    *handler.HealthHandler
}

// New builds the route table. localAuth verifies self-signed tokens for
// the /accounts surface; delegatedAuth resolves provider tokens for
// /api/auth and may be nil when the delegated path is disabled.
func New(
	cfg *config.Config,
	localAuth *middleware.AuthMiddleware,
	delegatedAuth *middleware.AuthMiddleware,
	m *metrics.Metrics,
	handlers Handlers,
) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, cfg.AuthRateLimitRPM)

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	if m != nil {
		r.Use(middleware.Metrics(m))
	}
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.SecurityHeaders)
	r.Use(rateLimitMiddleware.Handler)

	r.Get("/health", handlers.Health.Check)
	if m != nil {
		r.Method(http.MethodGet, "/metrics", m.Handler())
	}
	r.Post("/webhooks/auth", handlers.Webhook.AuthEvent)

	r.Route("/accounts", func(accounts chi.Router) {
		accounts.Use(middleware.Timeout(cfg.RequestTimeout))

		accounts.Post("/register", handlers.Account.Register)
		accounts.Post("/login", handlers.Account.Login)
		accounts.With(localAuth.RequireAuth, localAuth.RequireRoles(model.RoleAdmin)).Get("/all", handlers.Account.ListAll)
		accounts.With(localAuth.RequireAuth).Get("/profile", handlers.Account.Profile)
		accounts.With(localAuth.RequireAuth).Put("/update", handlers.Account.Update)
		accounts.With(localAuth.RequireAuth, localAuth.RequireRoles(model.RoleAdmin)).Delete("/delete/{id}", handlers.Account.Delete)
	})

	if handlers.Delegated != nil && delegatedAuth != nil {
		r.Route("/api/auth", func(auth chi.Router) {
			auth.Use(middleware.Timeout(cfg.RequestTimeout))

			auth.Post("/login", handlers.Delegated.Login)
			auth.Post("/register", handlers.Delegated.Register)
			auth.Post("/reset-password", handlers.Delegated.ResetPassword)
			auth.With(delegatedAuth.RequireAuth).Get("/me", handlers.Delegated.Me)
			auth.With(delegatedAuth.RequireAuth).Post("/logout", handlers.Delegated.Logout)
		})
	}

	return r
}
