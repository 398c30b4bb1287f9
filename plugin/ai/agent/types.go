package agent

import (
	"encoding/json"
	"time"

	"github.com/hrygo/personaflow/plugin/ai/recollection"
)

// EventType is the kind of a response event.
type EventType string

// Response event types. A turn emits either one direct event, or an
// immediate event followed by a supplementary or no_memory event.
const (
	EventTypeDirect        EventType = "direct"
	EventTypeImmediate     EventType = "immediate"
	EventTypeSupplementary EventType = "supplementary"
	EventTypeNoMemory      EventType = "no_memory"
)

// IsFinal reports whether no event follows this type within a turn.
func (t EventType) IsFinal() bool {
	return t != EventTypeImmediate
}

// Event is one reply delivered to the caller.
type Event struct {
	Type    EventType
	Content string
	// Elapsed is measured from the start of the turn.
	Elapsed time.Duration
	// Memories is set on supplementary events only.
	Memories []*recollection.Recollection
}

type eventJSON struct {
	Type     EventType                    `json:"type"`
	Content  string                       `json:"content"`
	Elapsed  float64                      `json:"elapsed"`
	Memories []*recollection.Recollection `json:"memories"`
}

// MarshalJSON encodes elapsed in seconds and memories as null when absent.
func (e *Event) MarshalJSON() ([]byte, error) {
	return json.Marshal(eventJSON{
		Type:     e.Type,
		Content:  e.Content,
		Elapsed:  e.Elapsed.Seconds(),
		Memories: e.Memories,
	})
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (e *Event) UnmarshalJSON(data []byte) error {
	var raw eventJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	e.Type = raw.Type
	e.Content = raw.Content
	e.Elapsed = time.Duration(raw.Elapsed * float64(time.Second))
	e.Memories = raw.Memories
	return nil
}

// Role is the speaker of a conversation turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// Turn is one utterance of the caller-owned conversation history.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Request is one utterance to respond to.
type Request struct {
	PersonaID string
	Utterance string
	// History is owned by the caller and never retained.
	History []Turn
}

// EventCallback receives events in order. Returning an error aborts the turn.
// 返回错误将中止本回合。
type EventCallback func(event *Event) error
