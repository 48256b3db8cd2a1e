package ui

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/kbchat/pkg/conversation"
	"github.com/go-go-golems/kbchat/pkg/events"
	"github.com/go-go-golems/kbchat/pkg/exchange"
	"github.com/go-go-golems/kbchat/pkg/ingestion"
)

// Backend is everything the chat view drives: the registry it reads, the
// controller it submits to and the uploader behind /upload.
type Backend struct {
	Registry   *conversation.Registry
	Projector  *conversation.Projector
	Controller *exchange.Controller
	Uploader   ingestion.Uploader

	// ExportDir is where ctrl+s writes transcripts.
	ExportDir string
}

func NewBackend(
	registry *conversation.Registry,
	controller *exchange.Controller,
	uploader ingestion.Uploader,
	exportDir string,
) *Backend {
	return &Backend{
		Registry:   registry,
		Projector:  conversation.NewProjector(registry),
		Controller: controller,
		Uploader:   uploader,
		ExportDir:  exportDir,
	}
}

type ExchangeFinishedMsg struct {
	Outcome exchange.Outcome
}

type UploadFinishedMsg struct {
	Files   []string
	Message string
	Err     error
}

type ExportFinishedMsg struct {
	Filename string
	Err      error
}

// RefreshMsg asks the view to re-read the registry.
type RefreshMsg struct {
	GoToBottom bool
}

// Submit returns a command running one exchange against sessionID.
func (b *Backend) Submit(ctx context.Context, sessionID conversation.SessionID, query string) tea.Cmd {
	return func() tea.Msg {
		return ExchangeFinishedMsg{Outcome: b.Controller.SubmitTo(ctx, sessionID, query)}
	}
}

func (b *Backend) Upload(ctx context.Context, paths []string) tea.Cmd {
	return func() tea.Msg {
		if b.Uploader == nil {
			return UploadFinishedMsg{Files: paths, Err: errors.New("uploads are not configured")}
		}
		res, err := b.Uploader.Upload(ctx, paths...)
		if err != nil {
			return UploadFinishedMsg{Files: paths, Err: err}
		}
		return UploadFinishedMsg{Files: res.Files, Message: res.Message}
	}
}

// Export writes the active session to ExportDir, named after its id.
func (b *Backend) Export() tea.Cmd {
	session, ok := b.Projector.ActiveSession()
	return func() tea.Msg {
		if !ok {
			return ExportFinishedMsg{Err: errors.New("no active chat")}
		}
		name := fmt.Sprintf("kbchat-%s-%s.json", session.CreatedAt.Format("20060102-150405"), session.ID.String()[:8])
		filename := filepath.Join(b.ExportDir, name)
		err := conversation.SaveTranscriptToFile(filename, session)
		return ExportFinishedMsg{Filename: filename, Err: err}
	}
}

// Sender is the part of *tea.Program the forwarder needs.
type Sender interface {
	Send(msg tea.Msg)
}

// EventForwardFunc returns a watermill handler that turns every session or
// exchange event into a RefreshMsg for the program. The registry is always
// re-read, so only the fact that something changed is forwarded.
func EventForwardFunc(p Sender) func(msg *message.Message) error {
	return func(msg *message.Message) error {
		msg.Ack()

		e, err := events.NewEventFromJson(msg.Payload)
		if err != nil {
			log.Warn().Err(err).Msg("could not decode event, refreshing anyway")
			p.Send(RefreshMsg{})
			return nil
		}

		log.Trace().
			Str("event_type", string(e.Type())).
			Object("meta", e.Metadata()).
			Time("received", time.Now()).
			Msg("forwarding event to ui")

		switch e.(type) {
		case *events.EventTranscriptUpdated, *events.EventSessionCreated,
			*events.EventSessionSwitched, *events.EventSessionDeleted:
			p.Send(RefreshMsg{GoToBottom: true})
		default:
			p.Send(RefreshMsg{})
		}

		return nil
	}
}
