package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"memory-pairs-server/config"
	"memory-pairs-server/storage"
)

// Authenticator validates a bearer token and returns the user ID and display name.
type Authenticator interface {
	Authenticate(token string) (userID, name string, err error)
}

// SessionCounter reports how many game sessions are live.
type SessionCounter interface {
	Count() int
}

// Handler holds dependencies for API handlers.
type Handler struct {
	Config       *config.Config
	HistoryStore storage.HistoryStore // nil when no database is configured
	Auth         Authenticator        // nil disables authenticated endpoints
	Sessions     SessionCounter       // optional
}

// NewHandler creates a new API handler with the given dependencies.
func NewHandler(cfg *config.Config, historyStore storage.HistoryStore, auth Authenticator, sessions SessionCounter) *Handler {
	return &Handler{
		Config:       cfg,
		HistoryStore: historyStore,
		Auth:         auth,
		Sessions:     sessions,
	}
}

// HealthResponse is the JSON structure for /health.
type HealthResponse struct {
	OK       bool `json:"ok"`
	Sessions int  `json:"sessions"`
	History  bool `json:"history"`
}

// Health reports liveness and a couple of cheap gauges.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{OK: true, History: h.HistoryStore != nil}
	if h.Sessions != nil {
		resp.Sessions = h.Sessions.Count()
	}
	writeJSON(w, http.StatusOK, resp)
}

// History returns the recent games of the authenticated user.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "authorization required")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	list := []storage.GameRecord{}
	if h.HistoryStore != nil {
		var err error
		list, err = h.HistoryStore.ListByUserID(r.Context(), userID, limit)
		if err != nil {
			slog.Error("ListByUserID", "tag", "api", "err", err)
			writeError(w, http.StatusInternalServerError, "failed to load history")
			return
		}
	}
	writeJSON(w, http.StatusOK, list)
}

// LeaderboardResponse is the JSON structure for /api/leaderboard.
type LeaderboardResponse struct {
	Pairs            int                        `json:"pairs"`
	Entries          []storage.LeaderboardEntry `json:"entries"`
	CurrentUserEntry *storage.LeaderboardEntry  `json:"current_user_entry"`
}

// Leaderboard returns the best game of each player for one deck size, with
// the caller's own entry appended when it is not on the requested page.
func (h *Handler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit <= 0 {
		limit = 20
	}
	offset, _ := strconv.Atoi(q.Get("offset"))
	if offset < 0 {
		offset = 0
	}
	pairs := len(h.Config.Symbols)
	if p := q.Get("pairs"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil || n < 2 {
			writeError(w, http.StatusBadRequest, "pairs must be an integer of at least 2")
			return
		}
		pairs = n
	}

	entries := []storage.LeaderboardEntry{}
	if h.HistoryStore != nil {
		var err error
		entries, err = h.HistoryStore.ListLeaderboard(r.Context(), pairs, limit, offset)
		if err != nil {
			slog.Error("ListLeaderboard", "tag", "api", "err", err)
			writeError(w, http.StatusInternalServerError, "failed to load leaderboard")
			return
		}
	}

	var currentUserEntry *storage.LeaderboardEntry
	authUserID := userIDFrom(r.Context())
	if authUserID != "" && h.HistoryStore != nil {
		inPage := false
		for i := range entries {
			if entries[i].UserID == authUserID {
				entries[i].IsCurrentUser = true
				inPage = true
				break
			}
		}
		if !inPage {
			cur, err := h.HistoryStore.GetLeaderboardEntryByUserID(r.Context(), authUserID, pairs)
			if err != nil {
				slog.Warn("GetLeaderboardEntryByUserID", "tag", "api", "err", err)
			} else if cur != nil {
				cur.IsCurrentUser = true
				currentUserEntry = cur
			}
		}
	}

	writeJSON(w, http.StatusOK, LeaderboardResponse{Pairs: pairs, Entries: entries, CurrentUserEntry: currentUserEntry})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("encoding response", "tag", "api", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
