package main

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/go-go-golems/kbchat/pkg/events"
	"github.com/go-go-golems/kbchat/pkg/ui"
)

func newChatCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Open the interactive chat UI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// the UI owns the terminal, logs only go to --log-file
			initLogger(true)

			exportDir, _ := cmd.Flags().GetString("export-dir")
			markdownStyle, _ := cmd.Flags().GetString("markdown-style")
			return runChat(cmd.Context(), exportDir, markdownStyle)
		},
	}
	cmd.Flags().String("export-dir", ".", "Directory ctrl+s writes chat transcripts to")
	cmd.Flags().String("markdown-style", "auto", "glamour style for answers (auto, dark, light, notty, or empty for plain text)")
	return cmd
}

func runChat(ctx context.Context, exportDir string, markdownStyle string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	router, err := events.NewEventRouter(events.WithVerbose(viper.GetBool("verbose")))
	if err != nil {
		return err
	}
	defer func() {
		_ = router.Close()
	}()

	a, err := newApp(router.Sink())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	model := ui.NewModel(
		ui.NewBackend(a.registry, a.controller, a.uploader, exportDir),
		ui.WithContext(ctx),
		ui.WithMarkdownStyle(markdownStyle),
	)

	options := []tea.ProgramOption{
		tea.WithMouseCellMotion(), // turn on mouse support so we can track the mouse wheel
		tea.WithContext(ctx),
	}
	if isTerminal(os.Stdout) {
		options = append(options, tea.WithAltScreen())
	} else {
		options = append(options, tea.WithOutput(os.Stderr))
	}
	p := tea.NewProgram(model, options...)

	router.AddHandler("ui", events.TopicSessions, ui.EventForwardFunc(p))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return router.Run(egCtx)
	})
	eg.Go(func() error {
		defer cancel()

		select {
		case <-router.Running():
		case <-egCtx.Done():
			return nil
		}

		_, err := p.Run()
		if err != nil && err != tea.ErrProgramKilled {
			return err
		}
		log.Debug().Int("sessions", len(a.registry.Sessions())).Msg("chat UI closed")
		return nil
	})

	return eg.Wait()
}
