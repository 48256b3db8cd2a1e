package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

type EventType string

const (
	EventTypeSessionCreated    EventType = "session-created"
	EventTypeSessionSwitched   EventType = "session-switched"
	EventTypeSessionDeleted    EventType = "session-deleted"
	EventTypeTranscriptUpdated EventType = "transcript-updated"
	EventTypeTitleAssigned     EventType = "title-assigned"

	// EventTypeExchangeState is emitted on every exchange state transition
	// (idle, sending, succeeded, failed).
	EventTypeExchangeState EventType = "exchange-state"
)

// EventMetadata is attached to every event. SessionID is empty for events
// that are not about a single session.
type EventMetadata struct {
	ID            uuid.UUID `json:"message_id"`
	SessionID     string    `json:"session_id,omitempty"`
	Version       int64     `json:"version,omitempty"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	Time          time.Time `json:"time"`
}

func NewEventMetadata(sessionID string, version int64) EventMetadata {
	return EventMetadata{
		ID:        uuid.New(),
		SessionID: sessionID,
		Version:   version,
		Time:      time.Now(),
	}
}

func (em EventMetadata) MarshalZerologObject(e *zerolog.Event) {
	e.Str("message_id", em.ID.String())
	if em.SessionID != "" {
		e.Str("session_id", em.SessionID)
	}
	if em.CorrelationID != "" {
		e.Str("correlation_id", em.CorrelationID)
	}
	e.Int64("version", em.Version)
}

type Event interface {
	Type() EventType
	Metadata() EventMetadata
	Payload() []byte
}

type EventImpl struct {
	Type_     EventType     `json:"type"`
	Metadata_ EventMetadata `json:"meta"`

	// only set when the event was decoded by NewEventFromJson
	payload []byte
}

func (e *EventImpl) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("type", string(e.Type_))
	ev.Object("meta", e.Metadata_)
}

func (e *EventImpl) Type() EventType {
	return e.Type_
}

func (e *EventImpl) Metadata() EventMetadata {
	return e.Metadata_
}

func (e *EventImpl) Payload() []byte {
	return e.payload
}

var _ Event = &EventImpl{}

type EventSessionCreated struct {
	EventImpl
}

func NewSessionCreatedEvent(metadata EventMetadata) *EventSessionCreated {
	return &EventSessionCreated{
		EventImpl: EventImpl{Type_: EventTypeSessionCreated, Metadata_: metadata},
	}
}

type EventSessionSwitched struct {
	EventImpl
	PreviousID string `json:"previous_id,omitempty"`
}

func NewSessionSwitchedEvent(metadata EventMetadata, previousID string) *EventSessionSwitched {
	return &EventSessionSwitched{
		EventImpl:  EventImpl{Type_: EventTypeSessionSwitched, Metadata_: metadata},
		PreviousID: previousID,
	}
}

type EventSessionDeleted struct {
	EventImpl
	// ActiveID is the active session after the deletion.
	ActiveID string `json:"active_id"`
}

func NewSessionDeletedEvent(metadata EventMetadata, activeID string) *EventSessionDeleted {
	return &EventSessionDeleted{
		EventImpl: EventImpl{Type_: EventTypeSessionDeleted, Metadata_: metadata},
		ActiveID:  activeID,
	}
}

type EventTranscriptUpdated struct {
	EventImpl
	MessageCount int `json:"message_count"`
}

func NewTranscriptUpdatedEvent(metadata EventMetadata, messageCount int) *EventTranscriptUpdated {
	return &EventTranscriptUpdated{
		EventImpl:    EventImpl{Type_: EventTypeTranscriptUpdated, Metadata_: metadata},
		MessageCount: messageCount,
	}
}

type EventTitleAssigned struct {
	EventImpl
	Title string `json:"title"`
}

func NewTitleAssignedEvent(metadata EventMetadata, title string) *EventTitleAssigned {
	return &EventTitleAssigned{
		EventImpl: EventImpl{Type_: EventTypeTitleAssigned, Metadata_: metadata},
		Title:     title,
	}
}

type EventExchangeState struct {
	EventImpl
	State string `json:"state"`
}

func NewExchangeStateEvent(metadata EventMetadata, state string) *EventExchangeState {
	return &EventExchangeState{
		EventImpl: EventImpl{Type_: EventTypeExchangeState, Metadata_: metadata},
		State:     state,
	}
}

var (
	_ Event = &EventSessionCreated{}
	_ Event = &EventSessionSwitched{}
	_ Event = &EventSessionDeleted{}
	_ Event = &EventTranscriptUpdated{}
	_ Event = &EventTitleAssigned{}
	_ Event = &EventExchangeState{}
)

// NewEventFromJson decodes a payload produced by WatermillSink back into a typed event.
func NewEventFromJson(b []byte) (Event, error) {
	var e EventImpl
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, errors.Wrap(err, "could not decode event")
	}
	e.payload = b

	var ret Event
	switch e.Type_ {
	case EventTypeSessionCreated:
		ret = &EventSessionCreated{}
	case EventTypeSessionSwitched:
		ret = &EventSessionSwitched{}
	case EventTypeSessionDeleted:
		ret = &EventSessionDeleted{}
	case EventTypeTranscriptUpdated:
		ret = &EventTranscriptUpdated{}
	case EventTypeTitleAssigned:
		ret = &EventTitleAssigned{}
	case EventTypeExchangeState:
		ret = &EventExchangeState{}
	default:
		return nil, errors.Errorf("unknown event type %q", e.Type_)
	}

	if err := json.Unmarshal(b, ret); err != nil {
		return nil, errors.Wrapf(err, "could not decode %s event", e.Type_)
	}
	setPayload(ret, b)
	return ret, nil
}

func setPayload(e Event, b []byte) {
	type payloadSetter interface{ setPayload([]byte) }
	if ps, ok := e.(payloadSetter); ok {
		ps.setPayload(b)
	}
}

func (e *EventImpl) setPayload(b []byte) {
	e.payload = b
}
