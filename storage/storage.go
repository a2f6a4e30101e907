package storage

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS game_result (
	id           UUID PRIMARY KEY,
	played_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	session_id   TEXT NOT NULL,
	user_id      TEXT NOT NULL DEFAULT '',
	display_name TEXT NOT NULL,
	score        INT NOT NULL,
	moves        INT NOT NULL,
	pairs        INT NOT NULL,
	duration_ms  BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_game_result_user ON game_result(user_id, played_at DESC);
CREATE INDEX IF NOT EXISTS idx_game_result_board ON game_result(pairs, moves, score DESC, duration_ms);
`

// Store persists and retrieves game history in Postgres.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to Postgres and ensures the game_result table exists.
// If databaseURL is empty, NewStore returns (nil, nil) and no persistence occurs.
func NewStore(ctx context.Context, databaseURL string) (*Store, error) {
	if databaseURL == "" {
		return nil, nil
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if _, err := pool.Exec(ctx, createTableSQL); err != nil {
		pool.Close()
		return nil, err
	}
	slog.Info("connected to Postgres", "tag", "storage")
	return &Store{pool: pool}, nil
}

// Close closes the connection pool.
func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

// InsertGameResult records one finished game.
func (s *Store) InsertGameResult(ctx context.Context, r GameResult) error {
	if s == nil || s.pool == nil {
		return nil
	}
	_, err := s.pool.Exec(ctx, insertResultSQL,
		uuid.NewString(), playedAt(r), r.SessionID, r.UserID, r.Name,
		r.Score, r.Moves, r.Pairs, r.Duration.Milliseconds())
	return err
}

// ListByUserID returns the user's most recent games, newest first.
func (s *Store) ListByUserID(ctx context.Context, userID string, limit int) ([]GameRecord, error) {
	if s == nil || s.pool == nil || userID == "" {
		return []GameRecord{}, nil
	}
	rows, err := s.pool.Query(ctx, listByUserSQL, userID, clampHistoryLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []GameRecord{}
	for rows.Next() {
		var r GameRecord
		var at time.Time
		if err := rows.Scan(&r.ID, &at, &r.SessionID, &r.DisplayName, &r.Score, &r.Moves, &r.Pairs, &r.DurationMS); err != nil {
			return nil, err
		}
		r.PlayedAt = at.UTC().Format(time.RFC3339)
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListLeaderboard returns ranked entries for a deck of the given number of pairs.
func (s *Store) ListLeaderboard(ctx context.Context, pairs, limit, offset int) ([]LeaderboardEntry, error) {
	if s == nil || s.pool == nil {
		return []LeaderboardEntry{}, nil
	}
	limit, offset = clampLeaderboardPage(limit, offset)
	rows, err := s.pool.Query(ctx, listLeaderboardSQL, pairs, limit, offset)
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
func (s *Store) GetLeaderboardEntryByUserID(ctx context.Context, userID string, pairs int) (*LeaderboardEntry, error) {
	if s == nil || s.pool == nil || userID == "" {
		return nil, nil
	}
	var e LeaderboardEntry
	err := s.pool.QueryRow(ctx, leaderboardEntrySQL, pairs, userID).
		Scan(&e.Rank, &e.UserID, &e.DisplayName, &e.BestMoves, &e.BestScore, &e.BestDurationMS, &e.GamesPlayed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	e.IsBot = isBot(e.UserID)
	return &e, nil
}
