package handlers

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/gdg-garage/airbadge/internal/auth"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

func RegisterRoutes(r *chi.Mux, logger *zap.Logger, authHandler *auth.AuthHandler, progressHandler *ProgressHandler, syncHandler *SyncHandler) huma.API {
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(authHandler.SessionMiddleware)

	config := huma.DefaultConfig("Airbadge API", "1.0.0")
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"cookieAuth": {
			Type: "apiKey",
			In:   "cookie",
			Name: auth.CookieName,
		},
		"bearerAuth": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "JWT",
		},
	}
	api := humachi.New(r, config)

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
	r.Get("/auth/discord/login", authHandler.HandleLogin)
	r.Get("/auth/discord/callback", authHandler.HandleCallback)

	huma.Get(api, "/badges/{id}", progressHandler.HandleBadge)

	// Protected routes
	secured := func(o *huma.Operation) {
		o.Security = []map[string][]string{{"cookieAuth": {}}, {"bearerAuth": {}}}
	}
	huma.Get(api, "/me", authHandler.HandleMe, secured)
	huma.Post(api, "/auth/logout", authHandler.HandleLogout, secured)

	huma.Post(api, "/actions", progressHandler.HandleTrack, secured)
	huma.Get(api, "/progress", progressHandler.HandleProgress, secured)
	huma.Get(api, "/badges", progressHandler.HandleBadges, secured)

	huma.Put(api, "/sync/progress", syncHandler.HandlePush, secured)
	huma.Get(api, "/sync/progress", syncHandler.HandleFetch, secured)

	return api
}
