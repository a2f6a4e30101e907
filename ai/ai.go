package ai

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"memory-pairs-server/config"
	"memory-pairs-server/game"
)

// Flip reasons, logged at debug level to follow a bot's play.
const (
	flipReasonKnownPair = "known_pair"
	flipReasonUnknown   = "unknown"
	flipReasonRandom    = "random"
)

// Bot plays a game the way a person with imperfect memory would: it only
// sees cards that are face up, remembers what it saw at each position, and
// forgets some of it over time.
type Bot struct {
	Params config.AIParams
	// Pace waits DelayMinMS..DelayMaxMS between selections.
	Pace bool

	rng    *rand.Rand
	memory map[int]string // index -> content seen there
}

// NewBot creates a bot. rng may be nil.
func NewBot(params config.AIParams, rng *rand.Rand) *Bot {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Bot{
		Params: params,
		rng:    rng,
		memory: make(map[int]string),
	}
}

// Play selects cards on e until the deal is complete or ctx is done.
// The bot never shuffles, so remembered positions stay valid for the deal.
func (b *Bot) Play(ctx context.Context, e *game.Engine) error {
	b.memory = make(map[int]string)
	for {
		snap := e.Snapshot()
		if snap.GameOver {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		views := game.BuildCardViews(snap.Cards)
		b.observe(views)
		b.forget()

		idx, reason := b.pick(views, snap.Pending)
		slog.Debug("bot select", "tag", "ai", "bot", b.Params.Name, "index", idx, "reason", reason)
		if err := e.SelectCard(idx); err != nil {
			return err
		}
		// See the card just turned over.
		b.observe(game.BuildCardViews(e.Cards()))

		if b.Pace {
			if err := b.wait(ctx); err != nil {
				return err
			}
		}
	}
}

// observe records every visible unmatched card and drops matched ones.
func (b *Bot) observe(views []game.CardView) {
	for _, v := range views {
		switch {
		case v.State == game.Matched.String():
			delete(b.memory, v.Index)
		case v.Content != nil:
			b.memory[v.Index] = *v.Content
		}
	}
}

// forget drops each remembered card with probability ForgetChance%.
func (b *Bot) forget() {
	chance := clampPercent(b.Params.ForgetChance)
	if chance == 0 {
		return
	}
	for idx := range b.memory {
		if b.rng.Intn(100) < chance {
			delete(b.memory, idx)
		}
	}
}

// pick chooses the next index to select. pending is the index of a face-up
// first selection, or -1.
func (b *Bot) pick(views []game.CardView, pending int) (int, string) {
	hidden := hiddenIndices(views)
	useKnown := b.rng.Intn(100) < clampPercent(b.Params.UseKnownPairChance)

	if pending >= 0 {
		if useKnown && views[pending].Content != nil {
			want := *views[pending].Content
			for _, idx := range hidden {
				if content, ok := b.memory[idx]; ok && content == want {
					return idx, flipReasonKnownPair
				}
			}
		}
		return b.pickUnknown(hidden)
	}

	if useKnown {
		if first, _, ok := knownPair(b.memory, hidden); ok {
			return first, flipReasonKnownPair
		}
	}
	return b.pickUnknown(hidden)
}

// pickUnknown prefers a hidden card the bot has no memory of.
func (b *Bot) pickUnknown(hidden []int) (int, string) {
	var unknown []int
	for _, idx := range hidden {
		if _, ok := b.memory[idx]; !ok {
			unknown = append(unknown, idx)
		}
	}
	if len(unknown) > 0 {
		return unknown[b.rng.Intn(len(unknown))], flipReasonUnknown
	}
	return hidden[b.rng.Intn(len(hidden))], flipReasonRandom
}

func (b *Bot) wait(ctx context.Context) error {
	lo, hi := b.Params.DelayMinMS, b.Params.DelayMaxMS
	if hi < lo {
		hi = lo
	}
	delayMS := lo
	if hi > lo {
		delayMS += b.rng.Intn(hi - lo)
	}
	if delayMS <= 0 {
		return nil
	}
	t := time.NewTimer(time.Duration(delayMS) * time.Millisecond)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// hiddenIndices returns the indices of face-down cards in board order.
func hiddenIndices(views []game.CardView) []int {
	var out []int
	for _, v := range views {
		if v.State == game.Hidden.String() {
			out = append(out, v.Index)
		}
	}
	return out
}

// knownPair returns two hidden indices remembered with the same content.
func knownPair(memory map[int]string, hidden []int) (int, int, bool) {
	seen := make(map[string]int)
	for _, idx := range hidden {
		content, ok := memory[idx]
		if !ok {
			continue
		}
		if other, ok := seen[content]; ok {
			return other, idx, true
		}
		seen[content] = idx
	}
	return 0, 0, false
}

func clampPercent(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
