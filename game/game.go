package game

import (
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"
)

// DefaultRevealDelay is how long a mismatched pair stays face up.
const DefaultRevealDelay = time.Second

// Phase is where the engine sits in the pair-resolution cycle.
type Phase int

const (
	Idle Phase = iota
	AwaitingSecond
	Revealing // a mismatched pair is face up, waiting for the revert
	Finished
)

// String returns the protocol string for a Phase.
func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case AwaitingSecond:
		return "awaiting_second"
	case Revealing:
		return "revealing"
	case Finished:
		return "finished"
	default:
		return "unknown"
	}
}

// Timer is a scheduled call that can be stopped before it fires.
type Timer interface {
	Stop() bool
}

// Scheduler runs f once after d. The default is time.AfterFunc.
type Scheduler func(d time.Duration, f func()) Timer

func afterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Options configures an Engine. Zero values select the defaults.
type Options struct {
	// Symbols is the symbol set; each symbol is dealt twice. Defaults to DefaultSymbols.
	Symbols []string
	// RevealDelay is how long a mismatched pair stays face up.
	RevealDelay time.Duration
	// Scheduler runs the deferred mismatch revert.
	Scheduler Scheduler
	// Rand drives shuffling.
	Rand *rand.Rand
	// Now is the clock used for start/finish times.
	Now func() time.Time
	// OnChange is called with a fresh snapshot after every state change,
	// including the deferred revert. It runs without the engine lock held.
	OnChange func(Snapshot)
}

// revert is an outstanding mismatch revert. It targets card IDs, not
// positions, so a reshuffle cannot redirect it to other cards.
type revert struct {
	ids        [2]int
	generation uint64
	timer      Timer
}

// Engine owns the deck and all mutable game state.
// All methods are safe for concurrent use.
type Engine struct {
	mu sync.Mutex

	symbols     []string
	revealDelay time.Duration
	schedule    Scheduler
	rng         *rand.Rand
	now         func() time.Time
	onChange    func(Snapshot)

	cards    []Card
	score    int
	moves    int
	gameOver bool
	pending  int // index of the first selection, -1 when none

	lastID     int
	generation uint64
	revert     *revert
	startedAt  time.Time
	finishedAt time.Time
}

// NewEngine validates opts and deals the first game.
func NewEngine(opts Options) (*Engine, error) {
	symbols := opts.Symbols
	if len(symbols) == 0 {
		symbols = DefaultSymbols
	}
	if err := ValidateSymbols(symbols); err != nil {
		return nil, err
	}
	e := &Engine{
		symbols:     append([]string(nil), symbols...),
		revealDelay: opts.RevealDelay,
		schedule:    opts.Scheduler,
		rng:         opts.Rand,
		now:         opts.Now,
		onChange:    opts.OnChange,
		pending:     -1,
	}
	if e.revealDelay <= 0 {
		e.revealDelay = DefaultRevealDelay
	}
	if e.schedule == nil {
		e.schedule = afterFunc
	}
	if e.rng == nil {
		e.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if e.now == nil {
		e.now = time.Now
	}
	e.dealLocked()
	return e, nil
}

// StartNewGame deals a fresh deck and resets score, moves and completion.
// Any outstanding mismatch revert belongs to the old deck and is discarded.
func (e *Engine) StartNewGame() {
	e.mu.Lock()
	e.dealLocked()
	snap := e.snapshotLocked()
	e.mu.Unlock()

	slog.Debug("new game dealt", "tag", "game", "cards", len(snap.Cards), "generation", snap.Generation)
	e.notify(snap)
}

// ShuffleCards re-randomizes card positions without touching any card's
// identity or flags. An outstanding mismatch revert is applied first so the
// mismatched pair does not travel face up into the new order.
func (e *Engine) ShuffleCards() {
	e.mu.Lock()
	e.flushRevertLocked()

	pendingID := -1
	if e.pending >= 0 {
		pendingID = e.cards[e.pending].ID
	}
	shuffle(e.cards, e.rng)
	if pendingID >= 0 {
		e.pending = indexOfID(e.cards, pendingID)
	}

	snap := e.snapshotLocked()
	e.mu.Unlock()
	e.notify(snap)
}

// SelectCard turns the card at index face up and resolves the pair when it
// is the second selection. Selecting a card that is already face up or
// matched is a no-op. An index outside the deck returns ErrInvalidIndex and
// leaves the state untouched.
func (e *Engine) SelectCard(index int) error {
	e.mu.Lock()
	if index < 0 || index >= len(e.cards) {
		n := len(e.cards)
		e.mu.Unlock()
		return fmt.Errorf("%w: %d (deck has %d cards)", ErrInvalidIndex, index, n)
	}
	card := &e.cards[index]
	if card.Matched || card.FaceUp {
		e.mu.Unlock()
		return nil
	}

	// A new selection while a mismatched pair is still showing flips that
	// pair down now rather than leaving three unmatched cards face up.
	e.flushRevertLocked()
	card.FaceUp = true

	if e.pending < 0 {
		e.pending = index
		snap := e.snapshotLocked()
		e.mu.Unlock()
		e.notify(snap)
		return nil
	}

	first := e.pending
	e.pending = -1
	e.moves++

	if e.cards[first].Content == card.Content {
		e.cards[first].Matched = true
		card.Matched = true
		e.score += 2
		if AllMatched(e.cards) {
			e.gameOver = true
			e.finishedAt = e.now()
		}
	} else {
		if e.score > 0 {
			e.score--
		}
		e.scheduleRevertLocked(first, index)
	}

	snap := e.snapshotLocked()
	e.mu.Unlock()

	if snap.GameOver {
		slog.Debug("game finished", "tag", "game", "score", snap.Score, "moves", snap.Moves)
	}
	e.notify(snap)
	return nil
}

// Close stops any outstanding revert timer.
func (e *Engine) Close() {
	e.mu.Lock()
	e.cancelRevertLocked()
	e.mu.Unlock()
}

// Cards returns a copy of the deck in table order.
func (e *Engine) Cards() []Card {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Card(nil), e.cards...)
}

// Score returns the current score.
func (e *Engine) Score() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.score
}

// Moves returns the number of completed pair comparisons.
func (e *Engine) Moves() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.moves
}

// GameOver reports whether every card is matched.
func (e *Engine) GameOver() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.gameOver
}

// Snapshot returns a consistent copy of the whole observable state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

func (e *Engine) dealLocked() {
	e.cancelRevertLocked()
	e.generation++
	e.cards = newDeck(e.symbols, e.nextIDLocked, e.rng)
	e.score = 0
	e.moves = 0
	e.gameOver = false
	e.pending = -1
	e.startedAt = e.now()
	e.finishedAt = time.Time{}
}

func (e *Engine) nextIDLocked() int {
	e.lastID++
	return e.lastID
}

func (e *Engine) scheduleRevertLocked(a, b int) {
	r := &revert{
		ids:        [2]int{e.cards[a].ID, e.cards[b].ID},
		generation: e.generation,
	}
	e.revert = r
	r.timer = e.schedule(e.revealDelay, func() { e.fireRevert(r) })
}

// fireRevert is the deferred half of a mismatch. It applies at most once and
// only while r is still the engine's outstanding revert for this deal.
func (e *Engine) fireRevert(r *revert) {
	e.mu.Lock()
	if e.revert != r || r.generation != e.generation {
		e.mu.Unlock()
		return
	}
	e.applyRevertLocked(r)
	e.revert = nil
	snap := e.snapshotLocked()
	e.mu.Unlock()
	e.notify(snap)
}

func (e *Engine) applyRevertLocked(r *revert) {
	for _, id := range r.ids {
		if i := indexOfID(e.cards, id); i >= 0 && !e.cards[i].Matched {
			e.cards[i].FaceUp = false
		}
	}
}

// flushRevertLocked applies the outstanding revert now instead of waiting.
func (e *Engine) flushRevertLocked() {
	if e.revert == nil {
		return
	}
	if e.revert.timer != nil {
		e.revert.timer.Stop()
	}
	e.applyRevertLocked(e.revert)
	e.revert = nil
}

func (e *Engine) cancelRevertLocked() {
	if e.revert == nil {
		return
	}
	if e.revert.timer != nil {
		e.revert.timer.Stop()
	}
	e.revert = nil
}

func (e *Engine) phaseLocked() Phase {
	switch {
	case e.gameOver:
		return Finished
	case e.revert != nil:
		return Revealing
	case e.pending >= 0:
		return AwaitingSecond
	default:
		return Idle
	}
}

func (e *Engine) snapshotLocked() Snapshot {
	matched := 0
	for _, c := range e.cards {
		if c.Matched {
			matched++
		}
	}
	end := e.finishedAt
	if end.IsZero() {
		end = e.now()
	}
	return Snapshot{
		Cards:        append([]Card(nil), e.cards...),
		Score:        e.score,
		Moves:        e.moves,
		GameOver:     e.gameOver,
		Pending:      e.pending,
		Phase:        e.phaseLocked(),
		PairsMatched: matched / 2,
		TotalPairs:   len(e.cards) / 2,
		Generation:   e.generation,
		StartedAt:    e.startedAt,
		FinishedAt:   e.finishedAt,
		Elapsed:      end.Sub(e.startedAt),
	}
}

func (e *Engine) notify(snap Snapshot) {
	if e.onChange != nil {
		e.onChange(snap)
	}
}

// Snapshot is a point-in-time copy of an Engine's observable state.
type Snapshot struct {
	Cards        []Card
	Score        int
	Moves        int
	GameOver     bool
	Pending      int // index of the first selection, -1 when none
	Phase        Phase
	PairsMatched int
	TotalPairs   int
	Generation   uint64
	StartedAt    time.Time
	FinishedAt   time.Time
	Elapsed      time.Duration
}
