package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Topic carries every chat event.
const Topic = "moviechat.events"

type Type string

const (
	TypeTurnStarted  Type = "turn.started"
	TypeToolCall     Type = "tool.call"
	TypeToolResult   Type = "tool.result"
	TypeTurnFinished Type = "turn.finished"
	TypeTurnFailed   Type = "turn.failed"
)

// Event is a progress notification from a chat pass.
type Event struct {
	ID        string         `json:"id"`
	SessionID string         `json:"session_id"`
	Type      Type           `json:"type"`
	Tool      string         `json:"tool,omitempty"`
	Arguments map[string]any `json:"arguments,omitempty"`
	Text      string         `json:"text,omitempty"`
	Error     string         `json:"error,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// New stamps an event with an ID and the current time.
func New(sessionID string, typ Type) Event {
	return Event{ID: uuid.NewString(), SessionID: sessionID, Type: typ, CreatedAt: time.Now().UTC()}
}

func (e Event) Marshal() ([]byte, error) {
	b, err := json.Marshal(e)
	return b, errors.Wrap(err, "marshal event")
}

func Unmarshal(b []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(b, &e); err != nil {
		return Event{}, errors.Wrap(err, "unmarshal event")
	}
	return e, nil
}
