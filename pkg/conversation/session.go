package conversation

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// UntitledTitle is shown for sessions whose title has not been derived yet.
const UntitledTitle = "New Chat"

// SessionID identifies a chat session. It is a distinct type from MessageID.
type SessionID uuid.UUID

var NilSessionID = SessionID(uuid.Nil)

func (id SessionID) String() string {
	return uuid.UUID(id).String()
}

func (id SessionID) IsNil() bool {
	return id == NilSessionID
}

func (id SessionID) MarshalJSON() ([]byte, error) {
	return json.Marshal(uuid.UUID(id))
}

func (id *SessionID) UnmarshalJSON(data []byte) error {
	var u uuid.UUID
	if err := json.Unmarshal(data, &u); err != nil {
		return err
	}
	*id = SessionID(u)
	return nil
}

func (id SessionID) MarshalYAML() (interface{}, error) {
	return id.String(), nil
}

func NewSessionID() SessionID {
	return SessionID(newV7())
}

// ParseSessionID parses the String form of a SessionID.
func ParseSessionID(s string) (SessionID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return NilSessionID, err
	}
	return SessionID(u), nil
}

// ChatSession is one conversation thread. Values handed out by the Registry are
// copies; mutating them has no effect on the registry.
type ChatSession struct {
	ID            SessionID `json:"id" yaml:"id"`
	Title         string    `json:"title" yaml:"title"`
	TitleAssigned bool      `json:"titleAssigned" yaml:"titleAssigned"`
	Messages      []Message `json:"messages" yaml:"messages"`
	CreatedAt     time.Time `json:"createdAt" yaml:"createdAt"`
}

func newChatSession(now time.Time) *ChatSession {
	return &ChatSession{
		ID:        NewSessionID(),
		Title:     UntitledTitle,
		Messages:  []Message{},
		CreatedAt: now,
	}
}

func (s *ChatSession) clone() ChatSession {
	ret := *s
	ret.Messages = cloneMessages(s.Messages)
	return ret
}

// withMessages returns a new session sharing s's metadata with msgs as transcript.
func (s *ChatSession) withMessages(msgs []Message) *ChatSession {
	ret := *s
	ret.Messages = msgs
	return &ret
}

func (s *ChatSession) withTitle(title string) *ChatSession {
	ret := *s
	ret.Title = title
	ret.TitleAssigned = true
	return &ret
}

// HasUserMessages reports whether any exchange has started in this session.
// Notices and other synthetic messages do not count.
func (s ChatSession) HasUserMessages() bool {
	return ContainsUserMessage(s.Messages)
}

// SessionSummary is the picker entry for one session.
type SessionSummary struct {
	ID           SessionID
	Title        string
	CreatedAt    time.Time
	MessageCount int
	Active       bool
}
