package storage

import (
	"context"
	"time"
)

// GameResult is a finished game as reported by a session.
type GameResult struct {
	SessionID  string
	UserID     string // empty for anonymous players
	Name       string
	Score      int
	Moves      int
	Pairs      int
	Duration   time.Duration
	FinishedAt time.Time
}

// HistoryStore abstracts persistence for game history and the leaderboard.
// Implementations can be swapped for testing (fakes) or different backends.
type HistoryStore interface {
	// Read
	ListByUserID(ctx context.Context, userID string, limit int) ([]GameRecord, error)
	ListLeaderboard(ctx context.Context, pairs, limit, offset int) ([]LeaderboardEntry, error)
	GetLeaderboardEntryByUserID(ctx context.Context, userID string, pairs int) (*LeaderboardEntry, error)

	// Write
	InsertGameResult(ctx context.Context, r GameResult) error

	// Lifecycle
	Close()
}

// Ensure both backends implement HistoryStore at compile time.
var (
	_ HistoryStore = (*Store)(nil)
	_ HistoryStore = (*SQLiteStore)(nil)
)
