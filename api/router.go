package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

const bearerPrefix = "Bearer "

type ctxUserKey struct{}

// Routes returns the REST router. The websocket endpoint is mounted by the
// caller so it is not subject to the request timeout.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(10 * time.Second))
	r.Use(cors)

	r.Get("/health", h.Health)
	r.Route("/api", func(r chi.Router) {
		r.Use(h.withOptionalAuth)
		r.Get("/history", h.History)
		r.Get("/leaderboard", h.Leaderboard)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found: "+r.URL.Path)
	})
	return r
}

// cors allows any origin to read the public endpoints.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withOptionalAuth stores the caller's user ID in the request context when a
// valid bearer token is present. Requests without one proceed as guests.
func (h *Handler) withOptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if userID := h.extractUserID(r); userID != "" {
			r = r.WithContext(context.WithValue(r.Context(), ctxUserKey{}, userID))
		}
		next.ServeHTTP(w, r)
	})
}

// extractUserID validates the Authorization header and returns the user ID, or empty string on failure.
func (h *Handler) extractUserID(r *http.Request) string {
	if h.Auth == nil {
		return ""
	}
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return ""
	}
	token := strings.TrimSpace(authHeader[len(bearerPrefix):])
	if token == "" {
		return ""
	}
	userID, _, err := h.Auth.Authenticate(token)
	if err != nil {
		return ""
	}
	return userID
}

func userIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(ctxUserKey{}).(string)
	return id
}
