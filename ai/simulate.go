package ai

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"memory-pairs-server/config"
	"memory-pairs-server/game"
)

// Summary aggregates a bot's results over several deals.
type Summary struct {
	Bot        string
	Games      int
	Perfect    int // games finished with one move per pair
	BestMoves  int
	WorstMoves int
	AvgMoves   float64
	AvgScore   float64
}

func (s Summary) String() string {
	return fmt.Sprintf("%s: %d games, moves avg %.1f (best %d, worst %d), score avg %.1f, perfect %d",
		s.Bot, s.Games, s.AvgMoves, s.BestMoves, s.WorstMoves, s.AvgScore, s.Perfect)
}

// Simulate has the bot play games deals of symbols back to back on one
// engine. onGame, when non-nil, receives the final snapshot of each deal.
// seed makes the deals and the bot's choices reproducible.
func Simulate(ctx context.Context, symbols []string, params config.AIParams, games int, seed int64, onGame func(game.Snapshot)) (Summary, error) {
	sum := Summary{Bot: params.Name}
	engine, err := game.NewEngine(game.Options{
		Symbols:     symbols,
		RevealDelay: time.Hour, // every revert is flushed by the bot's next selection
		Rand:        rand.New(rand.NewSource(seed)),
	})
	if err != nil {
		return sum, err
	}
	defer engine.Close()

	bot := NewBot(params, rand.New(rand.NewSource(seed+1)))
	totalMoves, totalScore := 0, 0
	for i := 0; i < games; i++ {
		if i > 0 {
			engine.StartNewGame()
		}
		if err := bot.Play(ctx, engine); err != nil {
			return sum, err
		}
		snap := engine.Snapshot()
		if onGame != nil {
			onGame(snap)
		}

		sum.Games++
		totalMoves += snap.Moves
		totalScore += snap.Score
		if snap.Moves == snap.TotalPairs {
			sum.Perfect++
		}
		if sum.Games == 1 || snap.Moves < sum.BestMoves {
			sum.BestMoves = snap.Moves
		}
		if snap.Moves > sum.WorstMoves {
			sum.WorstMoves = snap.Moves
		}
	}
	if sum.Games > 0 {
		sum.AvgMoves = float64(totalMoves) / float64(sum.Games)
		sum.AvgScore = float64(totalScore) / float64(sum.Games)
	}
	slog.Info("simulation finished", "tag", "ai", "bot", params.Name, "games", sum.Games, "avg_moves", sum.AvgMoves)
	return sum, nil
}
