package conversation

// Projector derives what the presentation layer shows from the Registry.
// It holds no state of its own: every call re-reads the registry, so the
// displayed transcript can never drift from the active session's messages.
type Projector struct {
	registry *Registry
}

func NewProjector(registry *Registry) *Projector {
	return &Projector{registry: registry}
}

// ActiveTranscript returns a copy of the active session's messages, or an
// empty slice if the active id matches no session.
func (p *Projector) ActiveTranscript() []Message {
	sessions, activeID := p.registry.snapshot()
	for _, s := range sessions {
		if s.ID == activeID {
			return cloneMessages(s.Messages)
		}
	}
	return []Message{}
}

// ActiveSession returns a copy of the active session.
func (p *Projector) ActiveSession() (ChatSession, bool) {
	sessions, activeID := p.registry.snapshot()
	for _, s := range sessions {
		if s.ID == activeID {
			return s.clone(), true
		}
	}
	return ChatSession{}, false
}

// SessionList returns one summary per session in display order.
func (p *Projector) SessionList() []SessionSummary {
	sessions, activeID := p.registry.snapshot()
	ret := make([]SessionSummary, len(sessions))
	for i, s := range sessions {
		ret[i] = SessionSummary{
			ID:           s.ID,
			Title:        s.Title,
			CreatedAt:    s.CreatedAt,
			MessageCount: len(s.Messages),
			Active:       s.ID == activeID,
		}
	}
	return ret
}
