package api

import (
	"net/http"
	"strings"

	"github.com/hansol-oss/intrachat/internal/infrastructure/json"
	"github.com/hansol-oss/intrachat/internal/presentation/utils"
)

func (app *Application) rateLimiterMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if allow, retryAfter := app.ratelimiter.Allow(r.RemoteAddr); !allow {
			json.WriteRateLimitError(w, int(retryAfter.Seconds()))
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (app *Application) enableCors(next http.Handler) http.Handler {
	allowed := strings.Join(app.config.HTTP.AllowedOrigins, ", ")
	if allowed == "" {
		allowed = "*"
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", allowed)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+utils.HeaderUserID)

		// allow preflight requests from the browser API
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// requireUser trusts the identity header installed by the fronting auth
// layer. Anything without one is rejected before reaching the chat routes.
func (app *Application) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := utils.ParseUserIDHeader(r)
		if userID == 0 {
			json.WriteUnauthorizedError(w, "Missing or invalid authentication")
			return
		}

		next.ServeHTTP(w, r.WithContext(utils.WithUserID(r.Context(), userID)))
	})
}
