package main

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/go-go-golems/kbchat/pkg/conversation"
	"github.com/go-go-golems/kbchat/pkg/events"
	"github.com/go-go-golems/kbchat/pkg/exchange"
)

func newAskCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask QUERY...",
		Short: "Ask a single question and print the answer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(events.NewNullSink())
			if err != nil {
				return err
			}

			out := a.controller.Submit(cmd.Context(), strings.Join(args, " "))
			if !out.Accepted {
				return errors.Errorf("query rejected: %s", out.Reason)
			}
			printMessage(cmd.OutOrStdout(), *out.AssistantMessage, isTerminal(os.Stdout))

			if exportFile, _ := cmd.Flags().GetString("export"); exportFile != "" {
				s, _ := a.registry.Session(out.SessionID)
				if err := conversation.SaveTranscriptToFile(exportFile, s); err != nil {
					return err
				}
			}

			if out.State == exchange.StateFailed {
				return errors.New("the answering service failed")
			}
			return nil
		},
	}
	cmd.Flags().String("export", "", "Also save the exchange to this file (.json or .yaml)")
	return cmd
}
