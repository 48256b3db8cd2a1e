package conversation

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/kbchat/pkg/events"
)

// Registry holds the ordered set of chat sessions and the active-session pointer.
//
// Sessions are stored as immutable snapshots: every mutation builds new
// ChatSession values and a new slice, then swaps them in under the lock, so a
// reader always sees either the state before or after a mutation. Change events
// are published after the lock is released.
//
// The registry lives only in memory and is never written to disk.
type Registry struct {
	mu       sync.RWMutex
	sessions []*ChatSession
	activeID SessionID
	version  int64

	now  func() time.Time
	sink events.EventSink
}

type RegistryOption func(*Registry)

func WithEventSink(sink events.EventSink) RegistryOption {
	return func(r *Registry) {
		r.sink = sink
	}
}

func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) {
		r.now = now
	}
}

// NewRegistry returns an empty registry. The first query (or Bootstrap) creates
// and activates the initial session.
func NewRegistry(options ...RegistryOption) *Registry {
	ret := &Registry{
		activeID: NilSessionID,
		now:      time.Now,
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

// Bootstrap creates the first session if the registry is empty.
func (r *Registry) Bootstrap() {
	r.mu.RLock()
	empty := len(r.sessions) == 0
	r.mu.RUnlock()
	if !empty {
		return
	}

	r.mu.Lock()
	var evs []events.Event
	if len(r.sessions) == 0 {
		_, evs = r.createLocked()
	}
	r.mu.Unlock()
	r.publish(evs...)
}

// CreateSession prepends a fresh session and makes it active. Existing sessions,
// including the previously active one, are kept as they are.
func (r *Registry) CreateSession() SessionID {
	r.mu.Lock()
	id, evs := r.createLocked()
	r.mu.Unlock()
	r.publish(evs...)
	return id
}

func (r *Registry) createLocked() (SessionID, []events.Event) {
	s := newChatSession(r.now())

	sessions := make([]*ChatSession, 0, len(r.sessions)+1)
	sessions = append(sessions, s)
	sessions = append(sessions, r.sessions...)

	previous := r.activeID
	r.sessions = sessions
	r.activeID = s.ID
	r.version++

	log.Debug().
		Str("session_id", s.ID.String()).
		Str("previous_active_id", previous.String()).
		Int("session_count", len(sessions)).
		Msg("created session")

	return s.ID, []events.Event{events.NewSessionCreatedEvent(r.metaLocked(s.ID))}
}

// SwitchActive makes id the active session. Unknown ids are ignored and false
// is returned. No transcript is touched.
func (r *Registry) SwitchActive(id SessionID) bool {
	r.mu.Lock()
	if r.indexLocked(id) < 0 {
		r.mu.Unlock()
		log.Debug().Str("session_id", id.String()).Msg("ignoring switch to unknown session")
		return false
	}
	if r.activeID == id {
		r.mu.Unlock()
		return true
	}
	previous := r.activeID
	r.activeID = id
	r.version++
	ev := events.NewSessionSwitchedEvent(r.metaLocked(id), previous.String())
	r.mu.Unlock()

	r.publish(ev)
	return true
}

// DeleteSession removes id. When the active session is deleted the first
// remaining session in display order becomes active, or a new session is
// created if none remain, so the registry is never left without an active
// session.
func (r *Registry) DeleteSession(id SessionID) bool {
	r.mu.Lock()
	idx := r.indexLocked(id)
	if idx < 0 {
		r.mu.Unlock()
		return false
	}

	sessions := make([]*ChatSession, 0, len(r.sessions)-1)
	sessions = append(sessions, r.sessions[:idx]...)
	sessions = append(sessions, r.sessions[idx+1:]...)
	r.sessions = sessions

	var created []events.Event
	if r.activeID == id {
		if len(sessions) > 0 {
			r.activeID = sessions[0].ID
		} else {
			r.activeID = NilSessionID
		}
	}
	r.version++
	deleted := events.NewSessionDeletedEvent(r.metaLocked(id), r.activeID.String())

	if len(r.sessions) == 0 {
		_, created = r.createLocked()
		deleted.ActiveID = r.activeID.String()
	}
	activeID := r.activeID
	r.mu.Unlock()

	log.Debug().
		Str("session_id", id.String()).
		Str("active_id", activeID.String()).
		Msg("deleted session")

	r.publish(append([]events.Event{deleted}, created...)...)
	return true
}

// UpdateTranscript replaces the transcript of id with a copy of msgs.
func (r *Registry) UpdateTranscript(id SessionID, msgs []Message) bool {
	r.mu.Lock()
	idx := r.indexLocked(id)
	if idx < 0 {
		r.mu.Unlock()
		return false
	}
	r.replaceLocked(idx, r.sessions[idx].withMessages(cloneMessages(msgs)))
	ev := events.NewTranscriptUpdatedEvent(r.metaLocked(id), len(msgs))
	r.mu.Unlock()

	r.publish(ev)
	return true
}

// AppendMessages appends msgs to the transcript of id in one step and returns
// the transcript as it was before the append.
func (r *Registry) AppendMessages(id SessionID, msgs ...Message) ([]Message, bool) {
	r.mu.Lock()
	idx := r.indexLocked(id)
	if idx < 0 {
		r.mu.Unlock()
		return nil, false
	}
	prior := r.sessions[idx].Messages
	next := make([]Message, 0, len(prior)+len(msgs))
	next = append(next, prior...)
	next = append(next, cloneMessages(msgs)...)
	r.replaceLocked(idx, r.sessions[idx].withMessages(next))
	ev := events.NewTranscriptUpdatedEvent(r.metaLocked(id), len(next))
	r.mu.Unlock()

	r.publish(ev)
	return cloneMessages(prior), true
}

// SetTitle replaces the title of id and marks it as assigned.
func (r *Registry) SetTitle(id SessionID, title string) bool {
	return r.setTitle(id, title, false)
}

// AssignTitle sets the title of id only if no title has been assigned yet.
// It returns false if the session is unknown or already titled.
func (r *Registry) AssignTitle(id SessionID, title string) bool {
	return r.setTitle(id, title, true)
}

func (r *Registry) setTitle(id SessionID, title string, onlyUnassigned bool) bool {
	r.mu.Lock()
	idx := r.indexLocked(id)
	if idx < 0 || (onlyUnassigned && r.sessions[idx].TitleAssigned) {
		r.mu.Unlock()
		return false
	}
	r.replaceLocked(idx, r.sessions[idx].withTitle(title))
	ev := events.NewTitleAssignedEvent(r.metaLocked(id), title)
	r.mu.Unlock()

	r.publish(ev)
	return true
}

// Sessions returns copies of all sessions in display order.
func (r *Registry) Sessions() []ChatSession {
	r.Bootstrap()

	r.mu.RLock()
	defer r.mu.RUnlock()
	ret := make([]ChatSession, len(r.sessions))
	for i, s := range r.sessions {
		ret[i] = s.clone()
	}
	return ret
}

// Session returns a copy of the session with the given id.
func (r *Registry) Session(id SessionID) (ChatSession, bool) {
	r.Bootstrap()

	r.mu.RLock()
	defer r.mu.RUnlock()
	idx := r.indexLocked(id)
	if idx < 0 {
		return ChatSession{}, false
	}
	return r.sessions[idx].clone(), true
}

// ActiveID returns the active session, creating the first session if needed.
func (r *Registry) ActiveID() SessionID {
	r.Bootstrap()

	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.activeID
}

// PeekActiveID returns the active session id without bootstrapping. It returns
// NilSessionID on a registry that has never been queried.
func (r *Registry) PeekActiveID() SessionID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.activeID
}

// Version increments on every applied mutation.
func (r *Registry) Version() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version
}

func (r *Registry) snapshot() ([]*ChatSession, SessionID) {
	r.Bootstrap()

	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions, r.activeID
}

func (r *Registry) indexLocked(id SessionID) int {
	for i, s := range r.sessions {
		if s.ID == id {
			return i
		}
	}
	return -1
}

func (r *Registry) replaceLocked(idx int, s *ChatSession) {
	sessions := make([]*ChatSession, len(r.sessions))
	copy(sessions, r.sessions)
	sessions[idx] = s
	r.sessions = sessions
	r.version++
}

func (r *Registry) metaLocked(id SessionID) events.EventMetadata {
	return events.NewEventMetadata(id.String(), r.version)
}

func (r *Registry) publish(evs ...events.Event) {
	for _, ev := range evs {
		events.PublishBlind(r.sink, ev)
	}
}
