package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/mattn/go-isatty"
	"github.com/spf13/viper"

	"github.com/go-go-golems/kbchat/pkg/conversation"
	"github.com/go-go-golems/kbchat/pkg/events"
	"github.com/go-go-golems/kbchat/pkg/exchange"
	"github.com/go-go-golems/kbchat/pkg/ingestion"
	"github.com/go-go-golems/kbchat/pkg/settings"
)

// app is one wired set of registry, controller and uploader.
type app struct {
	settings   *settings.Settings
	registry   *conversation.Registry
	controller *exchange.Controller
	uploader   *ingestion.Client
}

func newApp(sink events.EventSink) (*app, error) {
	s, err := settings.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}

	registry := conversation.NewRegistry(conversation.WithEventSink(sink))

	uploader := s.IngestionClient()
	uploader.OnSuccess(ingestion.NewNotifier(registry).OnIngestionSuccess)

	controller := exchange.NewController(
		registry,
		s.AnsweringClient(),
		exchange.WithTitleDeriver(s.TitleDeriver()),
		exchange.WithEventSink(sink),
	)

	return &app{
		settings:   s,
		registry:   registry,
		controller: controller,
		uploader:   uploader,
	}, nil
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// printMessage writes one transcript message for line mode output. Answers
// are rendered as markdown when stdout is a terminal.
func printMessage(w io.Writer, msg conversation.Message, markdown bool) {
	content := msg.Content
	if markdown && msg.Role == conversation.RoleAssistant && msg.Kind == conversation.KindChat {
		styled, err := glamour.Render(content, "dark")
		if err == nil {
			content = strings.Trim(styled, "\n")
		}
	}

	switch {
	case msg.Role == conversation.RoleUser:
		_, _ = fmt.Fprintf(w, "[you]: %s\n", content)
	case msg.Kind == conversation.KindNotice:
		_, _ = fmt.Fprintf(w, "[notice]: %s\n", content)
	default:
		_, _ = fmt.Fprintf(w, "[assistant]: %s\n", content)
	}

	if len(msg.Sources) > 0 {
		_, _ = fmt.Fprintln(w, "\nSources:")
		for _, s := range msg.Sources {
			_, _ = fmt.Fprintf(w, "  - %s\n", s)
		}
	}
}
