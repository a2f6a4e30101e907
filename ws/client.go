package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"

	"memory-pairs-server/gameerrors"
	"memory-pairs-server/session"
	"memory-pairs-server/wsutil"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096
)

// Client is a middleman between the websocket connection and a session.
type Client struct {
	Hub     *Hub
	Conn    *websocket.Conn
	Send    chan []byte
	Name    string
	UserID  string
	Session *session.Session
}

// ReadPump pumps messages from the websocket connection to the session.
// It runs in its own goroutine per connection.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("websocket read error", "tag", "ws", "err", err)
			}
			break
		}

		c.handleMessage(message)
	}
}

// WritePump pumps messages from the send channel to the websocket connection.
// It runs in its own goroutine per connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleMessage(data []byte) {
	var envelope InboundEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		c.sendError("Invalid message format.")
		return
	}

	switch envelope.Type {
	case "auth":
		c.handleAuth(envelope.Raw)
	case "set_name":
		c.handleSetName(envelope.Raw)
	case "resume":
		c.handleResume(envelope.Raw)
	case "select_card":
		c.handleSelectCard(envelope.Raw)
	case "new_game":
		c.post(session.Action{Type: session.ActionNewGame})
	case "shuffle":
		c.post(session.Action{Type: session.ActionShuffle})
	default:
		c.sendError("Unknown message type: " + envelope.Type)
	}
}

func (c *Client) handleAuth(raw json.RawMessage) {
	if c.Hub.Auth == nil {
		c.sendError("Server auth not configured.")
		return
	}
	if c.Session != nil {
		c.sendError("Cannot authenticate after the game has started.")
		return
	}
	var msg AuthMsg
	if err := json.Unmarshal(raw, &msg); err != nil || msg.Token == "" {
		c.sendError("Invalid auth message.")
		return
	}
	userID, name, err := c.Hub.Auth.Authenticate(msg.Token)
	if err != nil {
		slog.Info("token rejected", "tag", "ws", "err", err)
		c.sendError("Invalid or expired token.")
		return
	}
	c.UserID = userID
	c.Name = name
	c.sendJSON(AuthOKMsg{Type: "auth_ok", Name: name})
}

func (c *Client) handleSetName(raw json.RawMessage) {
	var msg SetNameMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.sendError("Invalid set_name message.")
		return
	}

	// Validate name length
	name := strings.TrimSpace(msg.Name)
	maxLen := c.Hub.Config.MaxNameLength
	if n := utf8.RuneCountInString(name); n < 1 || n > maxLen {
		c.sendError(fmt.Sprintf("Name must be between 1 and %d characters.", maxLen))
		return
	}

	// Cannot start another session on the same connection
	if c.Session != nil {
		c.sendError("A game is already in progress; send new_game to restart.")
		return
	}

	c.Name = name
	s, err := c.Hub.Sessions.Create(name, c.UserID, nil)
	if err != nil {
		slog.Error("creating session", "tag", "ws", "err", err)
		c.sendError("Could not start a game.")
		return
	}
	c.Session = s
	// Attach after session_started so the client learns its IDs before the first state.
	c.sendStarted(s, false)
	c.post(session.Action{Type: session.ActionAttach, Send: c.Send})
}

func (c *Client) handleResume(raw json.RawMessage) {
	var msg ResumeMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.sendError("Invalid resume message.")
		return
	}
	if c.Session != nil {
		c.sendError("Already in a game.")
		return
	}
	s, err := c.Hub.Sessions.Resume(msg.SessionID, msg.ResumeToken, c.Send)
	if err != nil {
		switch {
		case errors.Is(err, gameerrors.ErrSessionNotFound), errors.Is(err, gameerrors.ErrSessionClosed):
			c.sendError("Game not found or already closed.")
		case errors.Is(err, gameerrors.ErrInvalidResumeToken):
			c.sendError("Invalid resume token.")
		default:
			c.sendError("Could not resume game.")
		}
		return
	}
	c.Session = s
	c.Name = s.Name
	c.sendStarted(s, true)
}

func (c *Client) handleSelectCard(raw json.RawMessage) {
	var msg SelectCardMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.sendError("Invalid select_card message.")
		return
	}
	c.post(session.Action{Type: session.ActionSelectCard, Index: msg.Index})
}

func (c *Client) post(a session.Action) {
	if c.Session == nil {
		c.sendError("You are not in a game.")
		return
	}
	if err := c.Session.Post(a); err != nil {
		c.Session = nil
		c.sendError("Your game has ended; send set_name to start again.")
	}
}

func (c *Client) sendStarted(s *session.Session, resumed bool) {
	c.sendJSON(SessionStartedMsg{
		Type:        "session_started",
		SessionID:   s.ID,
		ResumeToken: s.ResumeToken,
		Name:        s.Name,
		Resumed:     resumed,
	})
}

func (c *Client) sendError(message string) {
	c.sendJSON(ErrorMsg{Type: "error", Message: message})
}

func (c *Client) sendJSON(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("marshaling message", "tag", "ws", "err", err)
		return
	}
	wsutil.SafeSend(c.Send, data)
}
