package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"memory-pairs-server/ai"
	"memory-pairs-server/auth"
	"memory-pairs-server/config"
	"memory-pairs-server/game"
	"memory-pairs-server/loghandler"
	"memory-pairs-server/storage"
)

func main() {
	simulate := flag.Int("simulate", 0, "play N games per bot profile, print a summary and exit")
	record := flag.Bool("record", false, "with -simulate, store the bots' games in the history database")
	seed := flag.Int64("seed", time.Now().UnixNano(), "with -simulate, random seed")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "No .env file found; using environment variables.")
	}

	cfg := config.Load()
	slog.SetDefault(slog.New(loghandler.NewCompactHandler(os.Stderr, loghandler.ParseLevel(cfg.LogLevel))))

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "tag", "main", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(ctx, cfg.DatabaseURL, cfg.SQLitePath)
	if err != nil {
		slog.Error("opening history store", "tag", "main", "err", err)
		os.Exit(1)
	}
	if store != nil {
		defer store.Close()
	}

	if *simulate > 0 {
		if err := runSimulation(ctx, cfg, store, *simulate, *seed, *record); err != nil {
			slog.Error("simulation failed", "tag", "main", "err", err)
			os.Exit(1)
		}
		return
	}

	var validator *auth.Validator
	if cfg.AuthBaseURL == "" {
		slog.Info("AUTH_BASE_URL is not set; players stay anonymous and /api/history is unavailable", "tag", "main")
	} else {
		validator = auth.NewValidator(cfg.AuthBaseURL)
		slog.Info("auth configured", "tag", "main", "base_url", cfg.AuthBaseURL)
	}

	slog.Info("configuration", "tag", "main",
		"pairs", len(cfg.Symbols),
		"reveal_ms", cfg.RevealDurationMS,
		"idle_timeout_sec", cfg.SessionIdleTimeoutSec,
		"port", cfg.WSPort)

	srv := newServer(cfg, store, validator)
	srv.run(ctx)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.WSPort),
		Handler:           srv.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Warn("http shutdown", "tag", "main", "err", err)
		}
	}()

	slog.Info("memory pairs server listening", "tag", "main", "addr", httpServer.Addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("http server", "tag", "main", "err", err)
		os.Exit(1)
	}
	slog.Info("server stopped", "tag", "main")
}

// runSimulation plays games with every configured bot profile and prints a summary line each.
func runSimulation(ctx context.Context, cfg *config.Config, store storage.HistoryStore, games int, seed int64, record bool) error {
	for i, params := range cfg.AIProfiles {
		var onGame func(game.Snapshot)
		if record && store != nil {
			userID := storage.AIUserIDPrefix + params.Name
			name := params.Name
			onGame = func(s game.Snapshot) {
				err := store.InsertGameResult(ctx, storage.GameResult{
					SessionID:  "simulation",
					UserID:     userID,
					Name:       name,
					Score:      s.Score,
					Moves:      s.Moves,
					Pairs:      s.TotalPairs,
					Duration:   s.Elapsed,
					FinishedAt: s.FinishedAt,
				})
				if err != nil {
					slog.Warn("recording simulated game", "tag", "main", "err", err)
				}
			}
		}
		sum, err := ai.Simulate(ctx, cfg.Symbols, params, games, seed+int64(i)*1000, onGame)
		if err != nil {
			return err
		}
		fmt.Println(sum)
	}
	return nil
}
