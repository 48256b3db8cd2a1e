package ingestion

import (
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/kbchat/pkg/conversation"
)

const NoticeText = "New documents have been added to the knowledge base and are being processed. You can now ask questions about the new content!"

// Notifier posts a notice into the active session when an upload completes.
type Notifier struct {
	registry *conversation.Registry
}

func NewNotifier(registry *conversation.Registry) *Notifier {
	return &Notifier{registry: registry}
}

// OnIngestionSuccess appends the notice to whichever session is active at the
// time of the call. It never creates a session.
func (n *Notifier) OnIngestionSuccess() {
	id := n.registry.PeekActiveID()
	if id.IsNil() {
		log.Debug().Msg("no active session, dropping ingestion notice")
		return
	}

	notice := conversation.NewMessage(
		conversation.RoleAssistant,
		NoticeText,
		conversation.WithKind(conversation.KindNotice),
	)
	if _, ok := n.registry.AppendMessages(id, notice); !ok {
		log.Debug().Str("session_id", id.String()).Msg("active session vanished, dropping ingestion notice")
	}
}
