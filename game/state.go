package game

// CardView is the client-facing representation of a card.
// Content is only included when the card is face up or matched.
type CardView struct {
	ID      int     `json:"id"`
	Index   int     `json:"index"`
	Content *string `json:"content,omitempty"`
	State   string  `json:"state"`
}

// GameStateMsg is the full game state sent to the renderer.
type GameStateMsg struct {
	Type         string     `json:"type"`
	SessionID    string     `json:"sessionId"`
	Cards        []CardView `json:"cards"`
	Score        int        `json:"score"`
	Moves        int        `json:"moves"`
	GameOver     bool       `json:"gameOver"`
	Phase        string     `json:"phase"`
	PairsMatched int        `json:"pairsMatched"`
	TotalPairs   int        `json:"totalPairs"`
	ElapsedMs    int64      `json:"elapsedMs"`
}

// GameOverMsg is sent once when the last pair is matched.
type GameOverMsg struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	Score     int    `json:"score"`
	Moves     int    `json:"moves"`
	ElapsedMs int64  `json:"elapsedMs"`
}

// BuildCardViews constructs the client-facing card list.
// Face-down cards do not expose their content.
func BuildCardViews(cards []Card) []CardView {
	views := make([]CardView, len(cards))
	for i, card := range cards {
		cv := CardView{
			ID:    card.ID,
			Index: i,
			State: card.State().String(),
		}
		if card.FaceUp || card.Matched {
			content := card.Content
			cv.Content = &content
		}
		views[i] = cv
	}
	return views
}

// BuildStateMsg creates the game_state message for a snapshot.
func BuildStateMsg(sessionID string, snap Snapshot) GameStateMsg {
	return GameStateMsg{
		Type:         "game_state",
		SessionID:    sessionID,
		Cards:        BuildCardViews(snap.Cards),
		Score:        snap.Score,
		Moves:        snap.Moves,
		GameOver:     snap.GameOver,
		Phase:        snap.Phase.String(),
		PairsMatched: snap.PairsMatched,
		TotalPairs:   snap.TotalPairs,
		ElapsedMs:    snap.Elapsed.Milliseconds(),
	}
}

// BuildGameOverMsg creates the game_over message for a finished snapshot.
func BuildGameOverMsg(sessionID string, snap Snapshot) GameOverMsg {
	return GameOverMsg{
		Type:      "game_over",
		SessionID: sessionID,
		Score:     snap.Score,
		Moves:     snap.Moves,
		ElapsedMs: snap.Elapsed.Milliseconds(),
	}
}
