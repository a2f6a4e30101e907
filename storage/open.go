package storage

import (
	"context"
	"log/slog"
)

// Open picks a backend: Postgres when databaseURL is set, otherwise SQLite
// when sqlitePath is set. With neither it returns (nil, nil) and games are
// not recorded.
func Open(ctx context.Context, databaseURL, sqlitePath string) (HistoryStore, error) {
	switch {
	case databaseURL != "":
		s, err := NewStore(ctx, databaseURL)
		if err != nil {
			return nil, err
		}
		return s, nil
	case sqlitePath != "":
		s, err := NewSQLiteStore(ctx, sqlitePath)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		slog.Info("no database configured, game history disabled", "tag", "storage")
		return nil, nil
	}
}
