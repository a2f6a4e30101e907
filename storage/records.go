package storage

import (
	"regexp"
	"strings"
	"time"
)

const (
	// AIUserIDPrefix marks results recorded by simulated players.
	AIUserIDPrefix = "ai:"

	defaultHistoryLimit     = 50
	maxHistoryLimit         = 200
	defaultLeaderboardLimit = 50
	maxLeaderboardLimit     = 200
)

// GameRecord is a single row for the history API.
type GameRecord struct {
	ID          string `json:"id"`
	PlayedAt    string `json:"played_at"` // RFC3339
	SessionID   string `json:"session_id"`
	DisplayName string `json:"display_name"`
	Score       int    `json:"score"`
	Moves       int    `json:"moves"`
	Pairs       int    `json:"pairs"`
	DurationMS  int64  `json:"duration_ms"`
}

// LeaderboardEntry is one player's best game on a given deck size.
// Players are ranked by fewest moves, then highest score, then shortest time.
type LeaderboardEntry struct {
	Rank           int    `json:"rank"`
	UserID         string `json:"user_id"`
	DisplayName    string `json:"display_name"`
	BestMoves      int    `json:"best_moves"`
	BestScore      int    `json:"best_score"`
	BestDurationMS int64  `json:"best_duration_ms"`
	GamesPlayed    int    `json:"games_played"`
	IsBot          bool   `json:"is_bot"`
	IsCurrentUser  bool   `json:"is_current_user,omitempty"`
}

// leaderboardCTE selects each user's best completed game for deck size $1 and ranks them.
// Ties on all three keys share a rank.
const leaderboardCTE = `
WITH best AS (
	SELECT user_id, display_name, moves, score, duration_ms, games FROM (
		SELECT user_id, display_name, moves, score, duration_ms,
			COUNT(*) OVER (PARTITION BY user_id) AS games,
			ROW_NUMBER() OVER (PARTITION BY user_id ORDER BY moves ASC, score DESC, duration_ms ASC, played_at ASC) AS rn
		FROM game_result
		WHERE user_id <> '' AND pairs = $1
	) per_user
	WHERE rn = 1
), ranked AS (
	SELECT user_id, display_name, moves, score, duration_ms, games,
		RANK() OVER (ORDER BY moves ASC, score DESC, duration_ms ASC) AS place
	FROM best
)`

const listLeaderboardSQL = leaderboardCTE + `
SELECT place, user_id, display_name, moves, score, duration_ms, games
FROM ranked
ORDER BY place ASC, user_id ASC
LIMIT $2 OFFSET $3`

const leaderboardEntrySQL = leaderboardCTE + `
SELECT place, user_id, display_name, moves, score, duration_ms, games
FROM ranked
WHERE user_id = $2`

const listByUserSQL = `
SELECT id, played_at, session_id, display_name, score, moves, pairs, duration_ms
FROM game_result
WHERE user_id = $1
ORDER BY played_at DESC
LIMIT $2`

const insertResultSQL = `
INSERT INTO game_result (id, played_at, session_id, user_id, display_name, score, moves, pairs, duration_ms)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

var numberedParam = regexp.MustCompile(`\$\d+`)

// rebind rewrites $N placeholders to ?. Every query here uses each
// placeholder once and in order, so positional binding is equivalent.
func rebind(query string) string {
	return numberedParam.ReplaceAllString(query, "?")
}

func clampHistoryLimit(limit int) int {
	if limit <= 0 {
		return defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		return maxHistoryLimit
	}
	return limit
}

func clampLeaderboardPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultLeaderboardLimit
	}
	if limit > maxLeaderboardLimit {
		limit = maxLeaderboardLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func playedAt(r GameResult) time.Time {
	if r.FinishedAt.IsZero() {
		return time.Now().UTC()
	}
	return r.FinishedAt.UTC()
}

func isBot(userID string) bool {
	return strings.HasPrefix(userID, AIUserIDPrefix)
}
