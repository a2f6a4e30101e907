package game

import (
	"fmt"
	"math/rand"
)

// DefaultSymbols is the stock symbol set: 8 symbols, 16 cards.
var DefaultSymbols = []string{"🐶", "🐱", "🦊", "🐻", "🐼", "🐨", "🐯", "🦁"}

// CardState represents the current state of a card.
type CardState int

const (
	Hidden CardState = iota
	Revealed
	Matched
)

// String returns the string representation of a CardState.
func (cs CardState) String() string {
	switch cs {
	case Hidden:
		return "hidden"
	case Revealed:
		return "revealed"
	case Matched:
		return "matched"
	default:
		return "unknown"
	}
}

// Card represents a single card on the table.
// ID is stable for the lifetime of the Engine and is only meant for
// renderer identity; the rules look at Content and the two flags.
type Card struct {
	ID      int
	Content string
	FaceUp  bool
	Matched bool
}

// State folds the two flags into a CardState.
func (c Card) State() CardState {
	switch {
	case c.Matched:
		return Matched
	case c.FaceUp:
		return Revealed
	default:
		return Hidden
	}
}

// ValidateSymbols checks that symbols can build a deck: at least two,
// none empty, no duplicates.
func ValidateSymbols(symbols []string) error {
	if len(symbols) < 2 {
		return fmt.Errorf("%w: need at least 2 symbols, got %d", ErrInvalidSymbols, len(symbols))
	}
	seen := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		if s == "" {
			return fmt.Errorf("%w: empty symbol", ErrInvalidSymbols)
		}
		if _, dup := seen[s]; dup {
			return fmt.Errorf("%w: duplicate symbol %q", ErrInvalidSymbols, s)
		}
		seen[s] = struct{}{}
	}
	return nil
}

// newDeck creates two face-down cards per symbol in random order.
// nextID hands out card IDs.
func newDeck(symbols []string, nextID func() int, rng *rand.Rand) []Card {
	cards := make([]Card, 0, 2*len(symbols))
	for _, s := range symbols {
		cards = append(cards, Card{ID: nextID(), Content: s})
		cards = append(cards, Card{ID: nextID(), Content: s})
	}
	shuffle(cards, rng)
	return cards
}

// shuffle re-randomizes card positions. Cards keep their identity and flags.
func shuffle(cards []Card, rng *rand.Rand) {
	rng.Shuffle(len(cards), func(i, j int) {
		cards[i], cards[j] = cards[j], cards[i]
	})
}

// AllMatched returns true if every card is matched.
func AllMatched(cards []Card) bool {
	for _, card := range cards {
		if !card.Matched {
			return false
		}
	}
	return true
}

// indexOfID returns the position of the card with the given ID, or -1.
func indexOfID(cards []Card, id int) int {
	for i := range cards {
		if cards[i].ID == id {
			return i
		}
	}
	return -1
}
