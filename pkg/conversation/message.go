package conversation

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// MessageKind separates ordinary chat turns from the synthetic assistant
// messages the client inserts itself.
type MessageKind string

const (
	KindChat   MessageKind = "chat"
	KindNotice MessageKind = "notice"
	KindError  MessageKind = "error"
)

// MessageID identifies a message. IDs are UUIDv7 and sort by creation order.
type MessageID uuid.UUID

func (id MessageID) String() string {
	return uuid.UUID(id).String()
}

func (id MessageID) MarshalJSON() ([]byte, error) {
	return json.Marshal(uuid.UUID(id))
}

func (id *MessageID) UnmarshalJSON(data []byte) error {
	var u uuid.UUID
	if err := json.Unmarshal(data, &u); err != nil {
		return err
	}
	*id = MessageID(u)
	return nil
}

func (id MessageID) MarshalYAML() (interface{}, error) {
	return id.String(), nil
}

func NewMessageID() MessageID {
	return MessageID(newV7())
}

// Message is immutable once created; transcripts only ever grow by appending
// new messages.
type Message struct {
	ID      MessageID   `json:"id" yaml:"id"`
	Role    Role        `json:"role" yaml:"role"`
	Kind    MessageKind `json:"kind" yaml:"kind"`
	Content string      `json:"content" yaml:"content"`
	Sources []string    `json:"sources,omitempty" yaml:"sources,omitempty"`
	Time    time.Time   `json:"time" yaml:"time"`
}

type MessageOption func(*Message)

func WithSources(sources []string) MessageOption {
	return func(m *Message) {
		m.Sources = append([]string{}, sources...)
	}
}

func WithKind(kind MessageKind) MessageOption {
	return func(m *Message) {
		m.Kind = kind
	}
}

func WithTime(t time.Time) MessageOption {
	return func(m *Message) {
		m.Time = t
	}
}

func NewMessage(role Role, content string, options ...MessageOption) Message {
	ret := Message{
		ID:      NewMessageID(),
		Role:    role,
		Kind:    KindChat,
		Content: content,
		Time:    time.Now(),
	}
	for _, option := range options {
		option(&ret)
	}
	return ret
}

func NewUserMessage(content string) Message {
	return NewMessage(RoleUser, content)
}

func NewAssistantMessage(content string, sources []string) Message {
	if sources == nil {
		sources = []string{}
	}
	return NewMessage(RoleAssistant, content, WithSources(sources))
}

// HistoryEntry is the role/content pair sent to the answering service.
type HistoryEntry struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// History strips ids, kinds and sources from a transcript.
func History(msgs []Message) []HistoryEntry {
	ret := make([]HistoryEntry, len(msgs))
	for i, m := range msgs {
		ret[i] = HistoryEntry{Role: m.Role, Content: m.Content}
	}
	return ret
}

// ContainsUserMessage reports whether msgs has at least one user turn.
func ContainsUserMessage(msgs []Message) bool {
	for _, m := range msgs {
		if m.Role == RoleUser {
			return true
		}
	}
	return false
}

func cloneMessages(msgs []Message) []Message {
	ret := make([]Message, len(msgs))
	for i, m := range msgs {
		if m.Sources != nil {
			m.Sources = append([]string{}, m.Sources...)
		}
		ret[i] = m
	}
	return ret
}

// google/uuid keeps NewV7 monotonic within a process, so ids minted in the same
// millisecond still compare in creation order.
func newV7() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}
