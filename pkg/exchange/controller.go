// Package exchange runs one query/response round trip against the answering
// service and records it in a session's transcript.
package exchange

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/kbchat/pkg/answering"
	"github.com/go-go-golems/kbchat/pkg/conversation"
	"github.com/go-go-golems/kbchat/pkg/events"
	"github.com/go-go-golems/kbchat/pkg/helpers"
)

type State string

const (
	StateIdle      State = "idle"
	StateSending   State = "sending"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

const ApologyText = "Sorry, I encountered an error while processing your request. Please try again later."

type RejectReason string

const (
	RejectEmptyQuery     RejectReason = "empty-query"
	RejectBusy           RejectReason = "busy"
	RejectUnknownSession RejectReason = "unknown-session"
)

// Outcome describes what a Submit did. Rejected submissions leave the
// transcript and the controller state untouched.
type Outcome struct {
	Accepted      bool
	Reason        RejectReason
	SessionID     conversation.SessionID
	CorrelationID string

	// State is the terminal state of an accepted exchange, succeeded or failed.
	State            State
	UserMessage      *conversation.Message
	AssistantMessage *conversation.Message
	// Title is set when this exchange assigned the session title.
	Title string
	// Dropped is true when the session was deleted before the reply arrived.
	Dropped bool
}

// Controller serializes exchanges: at most one is in flight across all
// sessions. It is safe for concurrent use.
type Controller struct {
	registry *conversation.Registry
	service  answering.Service
	deriver  TitleDeriver
	sink     events.EventSink

	mu       sync.Mutex
	state    State
	inFlight bool
}

type ControllerOption func(*Controller)

func WithTitleDeriver(deriver TitleDeriver) ControllerOption {
	return func(c *Controller) {
		c.deriver = deriver
	}
}

func WithEventSink(sink events.EventSink) ControllerOption {
	return func(c *Controller) {
		c.sink = sink
	}
}

func NewController(registry *conversation.Registry, service answering.Service, options ...ControllerOption) *Controller {
	ret := &Controller{
		registry: registry,
		service:  service,
		deriver:  NewTruncatingDeriver(DefaultTitleMaxLength),
		sink:     events.NewNullSink(),
		state:    StateIdle,
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Busy reports whether an exchange is in flight.
func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

// Submit runs an exchange against the active session.
func (c *Controller) Submit(ctx context.Context, query string) Outcome {
	return c.SubmitTo(ctx, c.registry.ActiveID(), query)
}

// SubmitTo runs an exchange against sessionID and blocks until the reply has
// been recorded. Service failures are turned into an apology message in the
// transcript; nothing is returned as an error.
func (c *Controller) SubmitTo(ctx context.Context, sessionID conversation.SessionID, query string) Outcome {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return Outcome{Reason: RejectEmptyQuery, SessionID: sessionID}
	}
	if !c.acquire() {
		log.Debug().Str("session_id", sessionID.String()).Msg("exchange already in flight, rejecting submit")
		return Outcome{Reason: RejectBusy, SessionID: sessionID}
	}
	defer c.release()

	cid := helpers.NewCorrelationID()
	ctx = helpers.ContextWithCorrelationID(ctx, cid)
	logger := log.With().
		Str("session_id", sessionID.String()).
		Str("correlation_id", cid).
		Logger()

	userMsg := conversation.NewUserMessage(trimmed)
	prior, ok := c.registry.AppendMessages(sessionID, userMsg)
	if !ok {
		logger.Debug().Msg("unknown session, rejecting submit")
		return Outcome{Reason: RejectUnknownSession, SessionID: sessionID}
	}

	ret := Outcome{
		Accepted:      true,
		SessionID:     sessionID,
		CorrelationID: cid,
		UserMessage:   &userMsg,
	}
	defer c.setState(ctx, sessionID, cid, StateIdle)

	c.setState(ctx, sessionID, cid, StateSending)
	logger.Debug().Int("query_len", len(trimmed)).Int("history_len", len(prior)).Msg("sending query")

	resp, err := c.service.Answer(ctx, answering.Request{
		Query:       trimmed,
		ChatHistory: conversation.History(prior),
	})
	if err != nil {
		logger.Error().Err(err).Msg("exchange failed")

		apology := conversation.NewMessage(
			conversation.RoleAssistant,
			ApologyText,
			conversation.WithKind(conversation.KindError),
		)
		ret.AssistantMessage = &apology
		ret.Dropped = !c.record(logger, sessionID, apology)
		ret.State = StateFailed
		c.setState(ctx, sessionID, cid, StateFailed)
		return ret
	}

	reply := conversation.NewAssistantMessage(resp.Response, resp.Sources)
	ret.AssistantMessage = &reply
	ret.Dropped = !c.record(logger, sessionID, reply)
	ret.State = StateSucceeded
	c.setState(ctx, sessionID, cid, StateSucceeded)

	if !ret.Dropped && !conversation.ContainsUserMessage(prior) {
		ret.Title = c.deriveTitle(ctx, logger, sessionID, trimmed, resp.Response)
	}

	logger.Debug().Int("sources", len(reply.Sources)).Msg("exchange succeeded")
	return ret
}

func (c *Controller) record(logger zerolog.Logger, sessionID conversation.SessionID, msg conversation.Message) bool {
	if _, ok := c.registry.AppendMessages(sessionID, msg); !ok {
		logger.Warn().Msg("session deleted while exchange was in flight, dropping reply")
		return false
	}
	return true
}

// deriveTitle assigns the session title at most once. A failing or panicking
// deriver leaves the title unassigned.
func (c *Controller) deriveTitle(ctx context.Context, logger zerolog.Logger, sessionID conversation.SessionID, query, answer string) (title string) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("title derivation panicked")
			title = ""
		}
	}()

	derived, err := c.deriver.DeriveTitle(ctx, query, answer)
	if err != nil {
		logger.Warn().Err(err).Msg("could not derive title")
		return ""
	}
	if strings.TrimSpace(derived) == "" {
		return ""
	}
	if !c.registry.AssignTitle(sessionID, derived) {
		return ""
	}
	logger.Debug().Str("title", derived).Msg("assigned session title")
	return derived
}

func (c *Controller) acquire() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inFlight {
		return false
	}
	c.inFlight = true
	return true
}

func (c *Controller) release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inFlight = false
}

func (c *Controller) setState(ctx context.Context, sessionID conversation.SessionID, correlationID string, state State) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()

	log.Trace().
		Str("session_id", sessionID.String()).
		Str("correlation_id", correlationID).
		Str("state", string(state)).
		Msg("exchange state")

	metadata := events.NewEventMetadata(sessionID.String(), c.registry.Version())
	metadata.CorrelationID = correlationID
	ev := events.NewExchangeStateEvent(metadata, string(state))
	events.PublishBlind(c.sink, ev)
	events.PublishEventToContext(ctx, ev)
}
