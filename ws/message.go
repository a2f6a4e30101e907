package ws

import "encoding/json"

// InboundEnvelope is the generic envelope for all client-to-server messages.
// The Type field is used for routing; Raw holds the full JSON payload.
type InboundEnvelope struct {
	Type string          `json:"type"`
	Raw  json.RawMessage `json:"-"`
}

// UnmarshalJSON implements custom unmarshaling to capture the raw payload.
func (e *InboundEnvelope) UnmarshalJSON(data []byte) error {
	type typeOnly struct {
		Type string `json:"type"`
	}
	var t typeOnly
	if err := json.Unmarshal(data, &t); err != nil {
		return err
	}
	e.Type = t.Type
	e.Raw = json.RawMessage(data)
	return nil
}

// --- Client-to-Server message payloads ---

// AuthMsg optionally identifies the player with a JWT before set_name,
// so finished games are attributed to the account.
type AuthMsg struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// SetNameMsg declares a display name and starts a session.
type SetNameMsg struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

// SelectCardMsg is sent by the client to select a card.
type SelectCardMsg struct {
	Type  string `json:"type"`
	Index int    `json:"index"`
}

// ResumeMsg reattaches to a session after a reconnect or page refresh.
type ResumeMsg struct {
	Type        string `json:"type"`
	SessionID   string `json:"sessionId"`
	ResumeToken string `json:"resumeToken"`
}

// new_game and shuffle carry no payload.

// --- Server-to-Client messages ---

// ErrorMsg is sent when a client action is invalid.
type ErrorMsg struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// AuthOKMsg confirms a valid token.
type AuthOKMsg struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

// SessionStartedMsg is sent when a session is created or resumed.
type SessionStartedMsg struct {
	Type        string `json:"type"`
	SessionID   string `json:"sessionId"`
	ResumeToken string `json:"resumeToken"`
	Name        string `json:"name"`
	Resumed     bool   `json:"resumed"`
}
