package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteStore keeps game history in a local SQLite file. played_at is stored
// as unix milliseconds so ordering does not depend on text timestamps.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at dbPath.
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// One writer at a time; results are inserted from several session goroutines.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}
	if err := createSQLiteSchemas(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schemas: %w", err)
	}
	slog.Info("opened SQLite database", "tag", "storage", "path", dbPath)
	return &SQLiteStore{db: db}, nil
}

func createSQLiteSchemas(ctx context.Context, db *sql.DB) error {
	schemas := []string{
		`CREATE TABLE IF NOT EXISTS game_result (
			id TEXT PRIMARY KEY,
			played_at INTEGER NOT NULL,
			session_id TEXT NOT NULL,
			user_id TEXT NOT NULL DEFAULT '',
			display_name TEXT NOT NULL,
			score INTEGER NOT NULL,
			moves INTEGER NOT NULL,
			pairs INTEGER NOT NULL,
			duration_ms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_game_result_user ON game_result(user_id, played_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_game_result_board ON game_result(pairs, moves, score DESC, duration_ms);`,
	}
	for _, query := range schemas {
		if _, err := db.ExecContext(ctx, query); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() {
	if s != nil && s.db != nil {
		if err := s.db.Close(); err != nil {
			slog.Warn("closing sqlite database", "tag", "storage", "err", err)
		}
	}
}

// InsertGameResult records one finished game.
func (s *SQLiteStore) InsertGameResult(ctx context.Context, r GameResult) error {
	_, err := s.db.ExecContext(ctx, rebind(insertResultSQL),
		uuid.NewString(), playedAt(r).UnixMilli(), r.SessionID, r.UserID, r.Name,
		r.Score, r.Moves, r.Pairs, r.Duration.Milliseconds())
	return err
}

// ListByUserID returns the user's most recent games, newest first.
func (s *SQLiteStore) ListByUserID(ctx context.Context, userID string, limit int) ([]GameRecord, error) {
	if userID == "" {
		return []GameRecord{}, nil
	}
	rows, err := s.db.QueryContext(ctx, rebind(listByUserSQL), userID, clampHistoryLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []GameRecord{}
	for rows.Next() {
		var r GameRecord
		var atMS int64
		if err := rows.Scan(&r.ID, &atMS, &r.SessionID, &r.DisplayName, &r.Score, &r.Moves, &r.Pairs, &r.DurationMS); err != nil {
			return nil, err
		}
		r.PlayedAt = time.UnixMilli(atMS).UTC().Format(time.RFC3339)
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListLeaderboard returns ranked entries for a deck of the given number of pairs.
func (s *SQLiteStore) ListLeaderboard(ctx context.Context, pairs, limit, offset int) ([]LeaderboardEntry, error) {
	limit, offset = clampLeaderboardPage(limit, offset)
	rows, err := s.db.QueryContext(ctx, rebind(listLeaderboardSQL), pairs, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []LeaderboardEntry{}
	for rows.Next() {
		var e LeaderboardEntry
		if err := rows.Scan(&e.Rank, &e.UserID, &e.DisplayName, &e.BestMoves, &e.BestScore, &e.BestDurationMS, &e.GamesPlayed); err != nil {
			return nil, err
		}
		e.IsBot = isBot(e.UserID)
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetLeaderboardEntryByUserID returns one player's ranked entry, or (nil, nil) if they have none.
func (s *SQLiteStore) GetLeaderboardEntryByUserID(ctx context.Context, userID string, pairs int) (*LeaderboardEntry, error) {
	if userID == "" {
		return nil, nil
	}
	var e LeaderboardEntry
	err := s.db.QueryRowContext(ctx, rebind(leaderboardEntrySQL), pairs, userID).
		Scan(&e.Rank, &e.UserID, &e.DisplayName, &e.BestMoves, &e.BestScore, &e.BestDurationMS, &e.GamesPlayed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	e.IsBot = isBot(e.UserID)
	return &e, nil
}
