package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/go-go-golems/kbchat/pkg/events"
)

func newUploadCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "upload FILE...",
		Short: "Add PDF documents to the knowledge base",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(events.NewNullSink())
			if err != nil {
				return err
			}

			res, err := a.uploader.Upload(cmd.Context(), args...)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), res.Message)
			return nil
		},
	}
}
