package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"memory-pairs-server/api"
	"memory-pairs-server/auth"
	"memory-pairs-server/config"
	"memory-pairs-server/session"
	"memory-pairs-server/storage"
	"memory-pairs-server/ws"
)

const recordTimeout = 5 * time.Second

// server bundles the long-running pieces behind the HTTP handler.
type server struct {
	handler  http.Handler
	sessions *session.Manager
	hub      *ws.Hub
}

// newServer wires sessions, the websocket hub and the REST API. store may be
// nil (no history) and so may validator (no authenticated play).
func newServer(cfg *config.Config, store storage.HistoryStore, validator *auth.Validator) *server {
	sessions := session.NewManager(cfg)
	if store != nil {
		sessions.OnGameEnd = recordResult(store)
	}

	var wsAuth ws.Authenticator
	var apiAuth api.Authenticator
	if validator != nil {
		wsAuth = validator
		apiAuth = validator
	}
	hub := ws.NewHub(cfg, sessions, wsAuth)
	rest := api.NewHandler(cfg, store, apiAuth, sessions)

	r := chi.NewRouter()
	r.Get("/ws", hub.ServeWS)
	r.Mount("/", rest.Routes())

	return &server{handler: r, sessions: sessions, hub: hub}
}

// run starts the session reaper and the hub; both stop when ctx is done.
func (s *server) run(ctx context.Context) {
	go s.sessions.Run(ctx)
	go s.hub.Run(ctx)
}

// recordResult persists finished games off the session goroutine.
func recordResult(store storage.HistoryStore) func(session.Result) {
	return func(r session.Result) {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
			defer cancel()
			err := store.InsertGameResult(ctx, storage.GameResult{
				SessionID:  r.SessionID,
				UserID:     r.UserID,
				Name:       r.Name,
				Score:      r.Score,
				Moves:      r.Moves,
				Pairs:      r.Pairs,
				Duration:   r.Duration,
				FinishedAt: r.FinishedAt,
			})
			if err != nil {
				slog.Error("recording game result", "tag", "storage", "session", r.SessionID, "err", err)
			}
		}()
	}
}
