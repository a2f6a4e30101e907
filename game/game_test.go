package game

import (
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// manualScheduler records deferred calls and runs them only when told to.
type manualScheduler struct {
	mu     sync.Mutex
	timers []*manualTimer
}

type manualTimer struct {
	delay   time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *manualTimer) Stop() bool {
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

func (s *manualScheduler) Schedule(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &manualTimer{delay: d, f: f}
	s.timers = append(s.timers, t)
	return t
}

// fire runs every timer not yet fired. Stopped timers run too when force is
// set, to mimic a timer that was already in flight when Stop was called.
func (s *manualScheduler) fire(force bool) int {
	s.mu.Lock()
	timers := append([]*manualTimer(nil), s.timers...)
	s.mu.Unlock()
	n := 0
	for _, t := range timers {
		if t.fired || (t.stopped && !force) {
			continue
		}
		t.fired = true
		t.f()
		n++
	}
	return n
}

func (s *manualScheduler) FireAll() int { return s.fire(false) }

func (s *manualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.timers {
		if !t.fired && !t.stopped {
			n++
		}
	}
	return n
}

func newTestEngine(t *testing.T, symbols []string) (*Engine, *manualScheduler) {
	t.Helper()
	sched := &manualScheduler{}
	e, err := NewEngine(Options{
		Symbols:   symbols,
		Scheduler: sched.Schedule,
		Rand:      rand.New(rand.NewSource(42)),
	})
	require.NoError(t, err)
	t.Cleanup(e.Close)
	return e, sched
}

// dealFixed replaces the shuffled deck with cards in the given order.
func dealFixed(e *Engine, contents ...string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cards = make([]Card, len(contents))
	for i, c := range contents {
		e.cards[i] = Card{ID: e.nextIDLocked(), Content: c}
	}
}

func TestNewEngine_Defaults(t *testing.T) {
	e, err := NewEngine(Options{})
	require.NoError(t, err)
	defer e.Close()

	snap := e.Snapshot()
	assert.Len(t, snap.Cards, 16)
	assert.Equal(t, 0, snap.Score)
	assert.Equal(t, 0, snap.Moves)
	assert.False(t, snap.GameOver)
	assert.Equal(t, -1, snap.Pending)
	assert.Equal(t, Idle, snap.Phase)
	assert.Equal(t, 8, snap.TotalPairs)
}

func TestNewEngine_RejectsBadSymbols(t *testing.T) {
	_, err := NewEngine(Options{Symbols: []string{"A"}})
	require.ErrorIs(t, err, ErrInvalidSymbols)
}

func TestStartNewGame_DeckIntegrity(t *testing.T) {
	symbols := []string{"A", "B", "C", "D", "E"}
	e, _ := newTestEngine(t, symbols)

	for round := 0; round < 5; round++ {
		e.StartNewGame()
		cards := e.Cards()
		require.Len(t, cards, 2*len(symbols))

		count := make(map[string]int)
		for _, c := range cards {
			assert.False(t, c.FaceUp)
			assert.False(t, c.Matched)
			count[c.Content]++
		}
		for _, s := range symbols {
			assert.Equal(t, 2, count[s], "symbol %q", s)
		}
	}
}

func TestStartNewGame_NeverReusesIDs(t *testing.T) {
	e, _ := newTestEngine(t, []string{"A", "B"})
	seen := make(map[int]bool)
	for round := 0; round < 3; round++ {
		for _, c := range e.Cards() {
			assert.False(t, seen[c.ID], "card ID %d reused", c.ID)
			seen[c.ID] = true
		}
		e.StartNewGame()
	}
}

func TestStartNewGame_ResetsState(t *testing.T) {
	e, sched := newTestEngine(t, []string{"A", "B"})
	dealFixed(e, "A", "B", "A", "B")
	require.NoError(t, e.SelectCard(0))
	require.NoError(t, e.SelectCard(2))
	require.NoError(t, e.SelectCard(1))
	require.Equal(t, 2, e.Score())

	e.StartNewGame()

	snap := e.Snapshot()
	assert.Equal(t, 0, snap.Score)
	assert.Equal(t, 0, snap.Moves)
	assert.False(t, snap.GameOver)
	assert.Equal(t, -1, snap.Pending)
	assert.Equal(t, 0, sched.Pending())
}

// Scenario: [A,B,A,B], select 0 then 2.
func TestSelectCard_MatchCompletesTwoPairDeckHalfway(t *testing.T) {
	e, _ := newTestEngine(t, []string{"A", "B"})
	dealFixed(e, "A", "B", "A", "B")

	require.NoError(t, e.SelectCard(0))
	snap := e.Snapshot()
	assert.Equal(t, 0, snap.Pending)
	assert.Equal(t, AwaitingSecond, snap.Phase)
	assert.Equal(t, 0, snap.Moves, "first selection must not count a move")

	require.NoError(t, e.SelectCard(2))
	snap = e.Snapshot()
	assert.True(t, snap.Cards[0].Matched)
	assert.True(t, snap.Cards[2].Matched)
	assert.True(t, snap.Cards[0].FaceUp)
	assert.Equal(t, 2, snap.Score)
	assert.Equal(t, 1, snap.Moves)
	assert.Equal(t, -1, snap.Pending)
	assert.False(t, snap.GameOver, "B pair is still open")
}

func TestSelectCard_MatchingLastPairEndsGame(t *testing.T) {
	e, _ := newTestEngine(t, []string{"A", "B"})
	dealFixed(e, "A", "B", "A", "B")

	for _, idx := range []int{0, 2, 1, 3} {
		require.NoError(t, e.SelectCard(idx))
	}

	snap := e.Snapshot()
	assert.True(t, snap.GameOver)
	assert.Equal(t, Finished, snap.Phase)
	assert.Equal(t, 4, snap.Score)
	assert.Equal(t, 2, snap.Moves)
	assert.Equal(t, 2, snap.PairsMatched)
	assert.False(t, snap.FinishedAt.IsZero())
	assert.True(t, AllMatched(snap.Cards))
}

// Scenario: [A,B,A,B], select 0 then 1.
func TestSelectCard_MismatchRevertsAfterDelay(t *testing.T) {
	e, sched := newTestEngine(t, []string{"A", "B"})
	dealFixed(e, "A", "B", "A", "B")

	require.NoError(t, e.SelectCard(0))
	require.NoError(t, e.SelectCard(1))

	snap := e.Snapshot()
	assert.Equal(t, 1, snap.Moves)
	assert.Equal(t, 0, snap.Score, "score is floored at zero")
	assert.True(t, snap.Cards[0].FaceUp)
	assert.True(t, snap.Cards[1].FaceUp)
	assert.Equal(t, -1, snap.Pending, "pending is cleared before the revert runs")
	assert.Equal(t, Revealing, snap.Phase)

	require.Equal(t, 1, sched.Pending())
	assert.Equal(t, DefaultRevealDelay, sched.timers[0].delay)
	sched.FireAll()

	snap = e.Snapshot()
	for _, i := range []int{0, 1} {
		assert.False(t, snap.Cards[i].FaceUp, "card %d", i)
		assert.False(t, snap.Cards[i].Matched, "card %d", i)
	}
	assert.Equal(t, Idle, snap.Phase)
}

func TestSelectCard_MismatchDecrementsPositiveScore(t *testing.T) {
	e, sched := newTestEngine(t, []string{"A", "B", "C"})
	dealFixed(e, "A", "A", "B", "C", "B", "C")

	require.NoError(t, e.SelectCard(0))
	require.NoError(t, e.SelectCard(1))
	require.Equal(t, 2, e.Score())

	require.NoError(t, e.SelectCard(2))
	require.NoError(t, e.SelectCard(3))
	assert.Equal(t, 1, e.Score())
	assert.Equal(t, 2, e.Moves())
	sched.FireAll()
}

// Scenario: two mismatches, then matches to the end.
func TestSelectCard_ConsecutiveMismatchesThenMatch(t *testing.T) {
	e, sched := newTestEngine(t, []string{"A", "B"})
	dealFixed(e, "A", "B", "A", "B")

	steps := []struct {
		a, b  int
		score int
	}{
		{0, 1, 0}, // mismatch
		{1, 2, 0}, // mismatch
		{0, 2, 2}, // match A
		{1, 3, 4}, // match B
	}
	for n, step := range steps {
		require.NoError(t, e.SelectCard(step.a))
		require.NoError(t, e.SelectCard(step.b))
		assert.Equal(t, step.score, e.Score(), "step %d", n)
		assert.GreaterOrEqual(t, e.Score(), 0)
		assert.Equal(t, n+1, e.Moves(), "step %d", n)
		sched.FireAll()
	}
	assert.True(t, e.GameOver())
}

// Scenario: index 5 on a four-card deck.
func TestSelectCard_InvalidIndex(t *testing.T) {
	e, _ := newTestEngine(t, []string{"A", "B"})
	dealFixed(e, "A", "B", "A", "B")
	before := e.Snapshot()

	for _, idx := range []int{5, 4, -1} {
		err := e.SelectCard(idx)
		require.ErrorIs(t, err, ErrInvalidIndex)
	}

	after := e.Snapshot()
	assert.Equal(t, before.Cards, after.Cards)
	assert.Equal(t, before.Score, after.Score)
	assert.Equal(t, before.Moves, after.Moves)
	assert.Equal(t, before.Pending, after.Pending)
}

func TestSelectCard_MatchedCardIsNoOp(t *testing.T) {
	e, _ := newTestEngine(t, []string{"A", "B"})
	dealFixed(e, "A", "B", "A", "B")
	require.NoError(t, e.SelectCard(0))
	require.NoError(t, e.SelectCard(2))
	before := e.Snapshot()

	require.NoError(t, e.SelectCard(0))
	require.NoError(t, e.SelectCard(2))

	after := e.Snapshot()
	assert.Equal(t, before.Cards, after.Cards)
	assert.Equal(t, before.Score, after.Score)
	assert.Equal(t, before.Moves, after.Moves)
	assert.Equal(t, before.Pending, after.Pending)
}

func TestSelectCard_SameCardTwiceIsNoOp(t *testing.T) {
	e, _ := newTestEngine(t, []string{"A", "B"})
	dealFixed(e, "A", "B", "A", "B")

	require.NoError(t, e.SelectCard(1))
	require.NoError(t, e.SelectCard(1))

	snap := e.Snapshot()
	assert.Equal(t, 0, snap.Moves)
	assert.Equal(t, 1, snap.Pending)
}

func TestSelectCard_FinishedGameIgnoresSelections(t *testing.T) {
	e, _ := newTestEngine(t, []string{"A", "B"})
	dealFixed(e, "A", "B", "A", "B")
	for _, idx := range []int{0, 2, 1, 3} {
		require.NoError(t, e.SelectCard(idx))
	}
	for idx := 0; idx < 4; idx++ {
		require.NoError(t, e.SelectCard(idx))
	}
	assert.True(t, e.GameOver())
	assert.Equal(t, 2, e.Moves())
}

func TestSelectCard_NewSelectionFlushesShowingMismatch(t *testing.T) {
	e, sched := newTestEngine(t, []string{"A", "B", "C"})
	dealFixed(e, "A", "B", "C", "A", "B", "C")

	require.NoError(t, e.SelectCard(0))
	require.NoError(t, e.SelectCard(1))
	require.NoError(t, e.SelectCard(2))

	snap := e.Snapshot()
	assert.False(t, snap.Cards[0].FaceUp)
	assert.False(t, snap.Cards[1].FaceUp)
	assert.True(t, snap.Cards[2].FaceUp)
	assert.Equal(t, 2, snap.Pending)
	assert.Equal(t, 0, sched.Pending(), "flushed revert timer must be stopped")

	// The stopped timer firing late must not touch the new selection.
	sched.fire(true)
	assert.True(t, e.Cards()[2].FaceUp)
}

func TestRevert_TargetsCapturedCardsAfterReorder(t *testing.T) {
	e, sched := newTestEngine(t, []string{"A", "B", "C"})
	dealFixed(e, "A", "B", "C", "A", "B", "C")
	require.NoError(t, e.SelectCard(0))
	require.NoError(t, e.SelectCard(1))
	ids := []int{e.Cards()[0].ID, e.Cards()[1].ID}

	// Move the mismatched cards to the end of the table behind the engine's back.
	e.mu.Lock()
	e.cards[0], e.cards[4] = e.cards[4], e.cards[0]
	e.cards[1], e.cards[5] = e.cards[5], e.cards[1]
	e.cards[0].FaceUp = true // an unrelated face-up card now sits at index 0
	e.mu.Unlock()

	sched.FireAll()

	cards := e.Cards()
	for _, id := range ids {
		assert.False(t, cards[indexOfID(cards, id)].FaceUp, "card %d", id)
	}
	assert.True(t, cards[0].FaceUp, "revert must not follow positions")
}

func TestShuffleCards_PreservesIdentityAndFlags(t *testing.T) {
	e, _ := newTestEngine(t, DefaultSymbols)
	cards := e.Cards()
	var a, b int
	for i := 1; i < len(cards); i++ {
		if cards[i].Content == cards[0].Content {
			a, b = 0, i
		}
	}
	require.NoError(t, e.SelectCard(a))
	require.NoError(t, e.SelectCard(b))
	before := make(map[int]Card)
	for _, c := range e.Cards() {
		before[c.ID] = c
	}

	e.ShuffleCards()

	after := e.Cards()
	require.Len(t, after, len(before))
	for _, c := range after {
		assert.Equal(t, before[c.ID], c)
	}
	assert.Equal(t, 2, e.Score())
	assert.Equal(t, 1, e.Moves())
}

func TestShuffleCards_FollowsPendingSelection(t *testing.T) {
	e, _ := newTestEngine(t, DefaultSymbols)
	require.NoError(t, e.SelectCard(3))
	id := e.Cards()[3].ID

	e.ShuffleCards()

	snap := e.Snapshot()
	require.GreaterOrEqual(t, snap.Pending, 0)
	assert.Equal(t, id, snap.Cards[snap.Pending].ID)
	assert.True(t, snap.Cards[snap.Pending].FaceUp)
}

func TestShuffleCards_AppliesOutstandingRevert(t *testing.T) {
	e, sched := newTestEngine(t, []string{"A", "B"})
	dealFixed(e, "A", "B", "A", "B")
	require.NoError(t, e.SelectCard(0))
	require.NoError(t, e.SelectCard(1))

	e.ShuffleCards()

	for _, c := range e.Cards() {
		assert.False(t, c.FaceUp)
	}
	assert.Equal(t, 0, sched.Pending())
	assert.Equal(t, Idle, e.Snapshot().Phase)
}

func TestStartNewGame_DiscardsOutstandingRevert(t *testing.T) {
	e, sched := newTestEngine(t, []string{"A", "B"})
	dealFixed(e, "A", "B", "A", "B")
	require.NoError(t, e.SelectCard(0))
	require.NoError(t, e.SelectCard(1))

	e.StartNewGame()
	dealFixed(e, "A", "B", "A", "B")
	require.NoError(t, e.SelectCard(0))

	sched.fire(true)

	assert.True(t, e.Cards()[0].FaceUp, "revert from the previous deal must not apply")
	assert.Equal(t, 0, e.Snapshot().Pending)
}

func TestOnChange_NotifiedForEveryTransition(t *testing.T) {
	sched := &manualScheduler{}
	var mu sync.Mutex
	var phases []Phase
	e, err := NewEngine(Options{
		Symbols:   []string{"A", "B"},
		Scheduler: sched.Schedule,
		OnChange: func(s Snapshot) {
			mu.Lock()
			phases = append(phases, s.Phase)
			mu.Unlock()
		},
	})
	require.NoError(t, err)
	defer e.Close()
	dealFixed(e, "A", "B", "A", "B")

	require.NoError(t, e.SelectCard(0))
	require.NoError(t, e.SelectCard(1))
	sched.FireAll()
	require.NoError(t, e.SelectCard(0)) // flipped back, selectable again

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []Phase{AwaitingSecond, Revealing, Idle, AwaitingSecond}, phases)
}

func TestEngine_RealTimerReverts(t *testing.T) {
	e, err := NewEngine(Options{Symbols: []string{"A", "B"}, RevealDelay: 20 * time.Millisecond})
	require.NoError(t, err)
	defer e.Close()
	dealFixed(e, "A", "B", "A", "B")

	require.NoError(t, e.SelectCard(0))
	require.NoError(t, e.SelectCard(1))

	require.Eventually(t, func() bool {
		cards := e.Cards()
		return !cards[0].FaceUp && !cards[1].FaceUp
	}, time.Second, 5*time.Millisecond)
}

func TestEngine_RandomPlayKeepsInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	e, sched := newTestEngine(t, DefaultSymbols)

	for step := 0; step < 2000; step++ {
		before := e.Snapshot()
		idx := rng.Intn(len(before.Cards)+2) - 1
		err := e.SelectCard(idx)
		after := e.Snapshot()

		if idx < 0 || idx >= len(before.Cards) {
			require.ErrorIs(t, err, ErrInvalidIndex)
		} else {
			require.NoError(t, err)
		}

		selectable := idx >= 0 && idx < len(before.Cards) && !before.Cards[idx].FaceUp && !before.Cards[idx].Matched
		if selectable && before.Pending >= 0 {
			require.Equal(t, before.Moves+1, after.Moves)
		} else {
			require.Equal(t, before.Moves, after.Moves)
		}

		require.GreaterOrEqual(t, after.Score, 0)
		require.Equal(t, AllMatched(after.Cards), after.GameOver)
		unmatchedUp := 0
		for _, c := range after.Cards {
			if c.Matched {
				require.True(t, c.FaceUp)
			} else if c.FaceUp {
				unmatchedUp++
			}
		}
		require.LessOrEqual(t, unmatchedUp, 2)

		switch rng.Intn(10) {
		case 0:
			sched.FireAll()
		case 1:
			e.ShuffleCards()
		}
		if after.GameOver {
			e.StartNewGame()
		}
	}
}

func TestEngine_ConcurrentUse(t *testing.T) {
	e, err := NewEngine(Options{RevealDelay: time.Millisecond})
	require.NoError(t, err)
	defer e.Close()

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for i := 0; i < 200; i++ {
				switch rng.Intn(20) {
				case 0:
					e.ShuffleCards()
				case 1:
					e.StartNewGame()
				default:
					_ = e.SelectCard(rng.Intn(16))
				}
			}
		}(int64(w))
	}
	wg.Wait()

	snap := e.Snapshot()
	assert.GreaterOrEqual(t, snap.Score, 0)
	assert.Equal(t, AllMatched(snap.Cards), snap.GameOver)
}
