package session

import (
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"

	"memory-pairs-server/game"
	"memory-pairs-server/gameerrors"
	"memory-pairs-server/wsutil"
)

// ActionType enumerates the kinds of actions a session can process.
type ActionType int

const (
	ActionNewGame ActionType = iota
	ActionShuffle
	ActionSelectCard
	ActionAttach // a connection took over the session; Send is its channel
	ActionDetach // a connection went away; only detaches if Send still matches
	ActionClose
)

// Action represents a player action sent into the session's action channel.
type Action struct {
	Type  ActionType
	Index int         // card index (for SelectCard)
	Send  chan []byte // for Attach/Detach
}

// Result describes a finished game.
type Result struct {
	SessionID  string
	UserID     string
	Name       string
	Score      int
	Moves      int
	Pairs      int
	Duration   time.Duration
	FinishedAt time.Time
}

// Session is one player's game: an Engine plus the connection it reports to.
// Player actions are processed serially by Run.
type Session struct {
	ID          string
	ResumeToken string
	Name        string
	UserID      string
	Engine      *game.Engine

	Actions chan Action
	Done    chan struct{}

	// OnGameEnd is called on the session goroutine when a deal is completed.
	OnGameEnd func(Result)

	// send is only touched by the Run goroutine.
	send        chan []byte
	recordedGen uint64

	// changed coalesces engine notifications; the deferred revert fires on a
	// timer goroutine and must not block on the action loop.
	changed chan struct{}

	attached   atomic.Bool
	lastActive atomic.Int64 // unix nanos
}

func (s *Session) signalChanged(game.Snapshot) {
	select {
	case s.changed <- struct{}{}:
	default:
	}
}

// Post queues an action. It fails once the session has stopped.
func (s *Session) Post(a Action) error {
	select {
	case <-s.Done:
		return gameerrors.ErrSessionClosed
	default:
	}
	select {
	case s.Actions <- a:
		return nil
	case <-s.Done:
		return gameerrors.ErrSessionClosed
	}
}

// Attached reports whether a connection is currently receiving state.
func (s *Session) Attached() bool {
	return s.attached.Load()
}

// LastActive is the time of the last processed action.
func (s *Session) LastActive() time.Time {
	return time.Unix(0, s.lastActive.Load())
}

func (s *Session) touch() {
	s.lastActive.Store(time.Now().UnixNano())
}

// Run is the session loop. It processes actions sequentially and pushes
// state to the attached connection after every engine change.
// It should be run as a goroutine.
func (s *Session) Run() {
	defer close(s.Done)
	defer s.Engine.Close()

	s.broadcastState()

	for {
		select {
		case action, ok := <-s.Actions:
			if !ok {
				return
			}
			s.touch()
			switch action.Type {
			case ActionNewGame:
				s.Engine.StartNewGame()
			case ActionShuffle:
				s.Engine.ShuffleCards()
			case ActionSelectCard:
				if err := s.Engine.SelectCard(action.Index); err != nil {
					s.sendError(err.Error())
				}
			case ActionAttach:
				s.send = action.Send
				s.attached.Store(action.Send != nil)
				s.broadcastState()
			case ActionDetach:
				if s.send == action.Send {
					s.send = nil
					s.attached.Store(false)
					slog.Info("player detached", "tag", "session", "session", s.ID)
				}
			case ActionClose:
				slog.Info("session closed", "tag", "session", "session", s.ID)
				return
			}
		case <-s.changed:
			s.broadcastState()
		}
	}
}

func (s *Session) broadcastState() {
	snap := s.Engine.Snapshot()
	s.sendJSON(game.BuildStateMsg(s.ID, snap))

	if snap.GameOver && s.recordedGen != snap.Generation {
		s.recordedGen = snap.Generation
		s.sendJSON(game.BuildGameOverMsg(s.ID, snap))
		slog.Info("game finished", "tag", "session", "session", s.ID, "score", snap.Score, "moves", snap.Moves, "elapsed", snap.Elapsed.Round(time.Millisecond))
		if s.OnGameEnd != nil {
			s.OnGameEnd(Result{
				SessionID:  s.ID,
				UserID:     s.UserID,
				Name:       s.Name,
				Score:      snap.Score,
				Moves:      snap.Moves,
				Pairs:      snap.TotalPairs,
				Duration:   snap.Elapsed,
				FinishedAt: snap.FinishedAt,
			})
		}
	}
}

func (s *Session) sendError(message string) {
	s.sendJSON(map[string]string{"type": "error", "message": message})
}

func (s *Session) sendJSON(v any) {
	if s.send == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("marshaling session message", "tag", "session", "err", err)
		return
	}
	wsutil.SafeSend(s.send, data)
}
