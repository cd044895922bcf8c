package main

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"chreosis/internal/shared/config"
	"chreosis/internal/shared/middleware"
)

// SetupRoutes configures all HTTP routes and returns the final handler with middleware.
func SetupRoutes(deps *Dependencies, cfg *config.Config) http.Handler {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", deps.HealthHandler.HandleHealth)

	// Public auth routes
	mux.HandleFunc("POST /api/auth/register", deps.AuthHandler.HandleRegister)
	mux.HandleFunc("POST /api/auth/login", deps.AuthHandler.HandleLogin)
	mux.HandleFunc("POST /api/auth/logout", deps.AuthHandler.HandleLogout)

	// Protected routes
	authMiddleware := middleware.Auth(deps.JWT)
	protect := func(h http.HandlerFunc) http.Handler { return authMiddleware(h) }

	mux.Handle("/api/users/me", protect(deps.UserHandler.HandleMe))

	mux.Handle("/api/accounts/", protect(deps.AccountHandler.HandleAccounts))
	mux.Handle("/api/accounts/{id}", protect(deps.AccountHandler.HandleAccountByID))

	mux.Handle("/api/categories/", protect(deps.CategoryHandler.HandleCategories))
	mux.Handle("/api/categories/{id}", protect(deps.CategoryHandler.HandleCategoryByID))

	mux.Handle("/api/transactions/", protect(deps.TransactionHandler.HandleTransactions))
	mux.Handle("GET /api/transactions/details", protect(deps.TransactionHandler.HandleDetails))
	mux.Handle("/api/transactions/{id}", protect(deps.TransactionHandler.HandleTransactionByID))
	mux.Handle("POST /api/transactions/{id}/move", protect(deps.TransactionHandler.HandleMove))

	mux.Handle("POST /api/devices/register", protect(deps.NotificationHandler.HandleRegisterDevice))
	mux.Handle("GET /api/notifications/preferences", protect(deps.NotificationHandler.HandlePreferences))
	mux.Handle("PATCH /api/notifications/preferences", protect(deps.NotificationHandler.HandlePreferences))
	mux.Handle("GET /api/notifications/", protect(deps.NotificationHandler.HandleNotifications))
	mux.Handle("POST /api/notifications/{id}/open", protect(deps.NotificationHandler.HandleOpen))

	if gh := deps.GmailHandler; gh != nil {
		// Called by Google, not by the app.
		mux.HandleFunc("GET /api/gmail/oauth/callback", gh.HandleCallback)
		mux.HandleFunc("POST /api/gmail/notifications", gh.HandleNotifications)

		mux.Handle("GET /api/gmail/login", protect(gh.HandleLogin))
		mux.Handle("POST /api/gmail/stop", protect(gh.HandleStop))
		mux.Handle("GET /api/gmail/status", protect(gh.HandleStatus))
		mux.Handle("PATCH /api/gmail/settings", protect(gh.HandleSettings))
	}

	// Apply global middleware, outermost last
	handler := middleware.CORS(cfg.Server.AllowedHosts)(mux)
	handler = middleware.SecurityHeaders(handler)

	// Apply security middleware when TLS is enabled
	if cfg.TLS.Enabled {
		handler = middleware.HSTS(handler)
		log.Info().Msg("TLS security middleware enabled (HSTS)")
	}

	if cfg.Telemetry.Enabled {
		handler = middleware.Telemetry(cfg.Telemetry.ServiceName)(handler)
	}
	handler = middleware.Logging(handler)
	handler = middleware.RequestID(handler)
	handler = middleware.Recovery(handler)

	return handler
}
