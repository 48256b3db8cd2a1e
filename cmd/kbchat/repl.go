package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/tcnksm/go-input"

	"github.com/go-go-golems/kbchat/pkg/conversation"
	"github.com/go-go-golems/kbchat/pkg/events"
	"github.com/go-go-golems/kbchat/pkg/exchange"
	"github.com/go-go-golems/kbchat/pkg/ui"
)

const replHelp = `Commands:
  /new               start a new chat
  /list              list chats
  /switch N          switch to chat N
  /delete N          delete chat N
  /upload FILE...    add PDF documents to the knowledge base
  /export FILE       save the current chat (.json or .yaml)
  /help              show this help
  /quit              exit
Anything else is sent as a question.`

var errQuit = errors.New("quit")

func newReplCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Chat in line mode",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(events.NewNullSink())
			if err != nil {
				return err
			}

			var in io.Reader = os.Stdin
			if !isTerminal(os.Stdin) {
				if tty, err := ui.OpenTTY(); err == nil {
					defer func() {
						_ = tty.Close()
					}()
					in = tty
				}
			}

			r := &repl{
				app:      a,
				out:      cmd.OutOrStdout(),
				ui:       &input.UI{Writer: cmd.OutOrStdout(), Reader: in},
				markdown: isTerminal(os.Stdout),
			}
			return r.run(cmd.Context())
		},
	}
}

type repl struct {
	app      *app
	out      io.Writer
	ui       *input.UI
	markdown bool
}

func (r *repl) run(ctx context.Context) error {
	_, _ = fmt.Fprintln(r.out, "Ask me anything from your knowledge base. /help lists commands.")

	for {
		line, err := r.ui.Ask(r.prompt(), &input.Options{
			HideOrder: true,
		})
		if err != nil {
			// go-input flattens read errors into strings
			if errors.Is(err, input.ErrInterrupted) || strings.HasSuffix(err.Error(), io.EOF.Error()) {
				return nil
			}
			return errors.Wrap(err, "could not read input")
		}

		err = r.handle(ctx, strings.TrimSpace(line))
		if err == errQuit {
			return nil
		}
		if err != nil {
			_, _ = fmt.Fprintf(r.out, "error: %s\n", err)
		}
	}
}

func (r *repl) prompt() string {
	s, ok := r.app.registry.Session(r.app.registry.ActiveID())
	if !ok {
		return ">"
	}
	return fmt.Sprintf("[%s] >", s.Title)
}

func (r *repl) handle(ctx context.Context, line string) error {
	if line == "" {
		return nil
	}
	if !strings.HasPrefix(line, "/") {
		return r.ask(ctx, line)
	}

	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]
	switch cmd {
	case "/quit", "/exit":
		return errQuit
	case "/help":
		_, _ = fmt.Fprintln(r.out, replHelp)
	case "/new":
		r.app.registry.CreateSession()
		_, _ = fmt.Fprintln(r.out, "Started a new chat.")
	case "/list":
		r.list()
	case "/switch":
		s, err := r.pick(args)
		if err != nil {
			return err
		}
		r.app.registry.SwitchActive(s.ID)
		for _, msg := range conversation.NewProjector(r.app.registry).ActiveTranscript() {
			printMessage(r.out, msg, r.markdown)
		}
	case "/delete":
		s, err := r.pick(args)
		if err != nil {
			return err
		}
		ok, err := r.confirm(fmt.Sprintf("Delete %q? [y/n]", s.Title))
		if err != nil || !ok {
			return err
		}
		r.app.registry.DeleteSession(s.ID)
		_, _ = fmt.Fprintln(r.out, "Deleted.")
	case "/upload":
		res, err := r.app.uploader.Upload(ctx, args...)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(r.out, res.Message)
	case "/export":
		if len(args) != 1 {
			return errors.New("usage: /export FILE")
		}
		s, ok := conversation.NewProjector(r.app.registry).ActiveSession()
		if !ok {
			return errors.New("no active chat")
		}
		if err := conversation.SaveTranscriptToFile(args[0], s); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(r.out, "Saved to %s\n", args[0])
	default:
		return errors.Errorf("unknown command %s, try /help", cmd)
	}
	return nil
}

func (r *repl) ask(ctx context.Context, query string) error {
	out := r.app.controller.Submit(ctx, query)
	if !out.Accepted {
		log.Debug().Str("reason", string(out.Reason)).Msg("query rejected")
		return nil
	}
	if out.AssistantMessage != nil {
		printMessage(r.out, *out.AssistantMessage, r.markdown)
	}
	if out.State == exchange.StateFailed {
		log.Debug().Str("correlation_id", out.CorrelationID).Msg("exchange failed, see earlier log lines")
	}
	return nil
}

func (r *repl) list() {
	for i, s := range conversation.NewProjector(r.app.registry).SessionList() {
		marker := " "
		if s.Active {
			marker = "*"
		}
		_, _ = fmt.Fprintf(r.out, "%s %d. %s (%s, %d messages)\n",
			marker, i+1, s.Title, s.CreatedAt.Format(ui.SessionDateFormat), s.MessageCount)
	}
}

// pick resolves a 1-based index from /list.
func (r *repl) pick(args []string) (conversation.SessionSummary, error) {
	if len(args) != 1 {
		return conversation.SessionSummary{}, errors.New("expected a chat number, see /list")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return conversation.SessionSummary{}, errors.Wrapf(err, "invalid chat number %q", args[0])
	}
	list := conversation.NewProjector(r.app.registry).SessionList()
	if n < 1 || n > len(list) {
		return conversation.SessionSummary{}, errors.Errorf("no chat %d, see /list", n)
	}
	return list[n-1], nil
}

func (r *repl) confirm(query string) (bool, error) {
	answer, err := r.ui.Ask(query, &input.Options{
		Default:  "n",
		Required: true,
		Loop:     true,
		ValidateFunc: func(answer string) error {
			switch answer {
			case "y", "Y", "n", "N":
				return nil
			default:
				return errors.New("please enter 'y' or 'n'")
			}
		},
	})
	if err != nil {
		return false, err
	}
	return answer == "y" || answer == "Y", nil
}
