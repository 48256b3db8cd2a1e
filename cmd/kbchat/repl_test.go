package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tcnksm/go-input"

	"github.com/go-go-golems/kbchat/pkg/answering"
	"github.com/go-go-golems/kbchat/pkg/conversation"
	"github.com/go-go-golems/kbchat/pkg/exchange"
	"github.com/go-go-golems/kbchat/pkg/ingestion"
)

func newTestRepl(stdin string) (*repl, *bytes.Buffer) {
	registry := conversation.NewRegistry()
	svc := answering.ServiceFunc(func(ctx context.Context, req answering.Request) (*answering.Response, error) {
		return &answering.Response{Response: "answer to " + req.Query, Sources: []string{"a.pdf"}}, nil
	})

	out := &bytes.Buffer{}
	return &repl{
		app: &app{
			registry:   registry,
			controller: exchange.NewController(registry, svc),
			uploader:   ingestion.NewClient("http://127.0.0.1:1"),
		},
		out: out,
		ui:  &input.UI{Writer: out, Reader: strings.NewReader(stdin)},
	}, out
}

func TestReplAsksAndPrintsSources(t *testing.T) {
	r, out := newTestRepl("")

	require.NoError(t, r.handle(context.Background(), "what is go?"))

	assert.Contains(t, out.String(), "[assistant]: answer to what is go?")
	assert.Contains(t, out.String(), "Sources:\n  - a.pdf")
	assert.Len(t, r.app.registry.Sessions(), 1)
}

func TestReplSessionCommands(t *testing.T) {
	r, out := newTestRepl("y\n")
	ctx := context.Background()

	require.NoError(t, r.handle(ctx, "first question"))
	require.NoError(t, r.handle(ctx, "/new"))
	require.Len(t, r.app.registry.Sessions(), 2)

	out.Reset()
	require.NoError(t, r.handle(ctx, "/list"))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "* 1. "+conversation.UntitledTitle))
	assert.Contains(t, lines[1], "first question")

	out.Reset()
	require.NoError(t, r.handle(ctx, "/switch 2"))
	assert.Contains(t, out.String(), "[you]: first question")

	require.NoError(t, r.handle(ctx, "/delete 2"))
	assert.Len(t, r.app.registry.Sessions(), 1)

	assert.Error(t, r.handle(ctx, "/switch 5"))
	assert.Error(t, r.handle(ctx, "/switch x"))
	assert.Error(t, r.handle(ctx, "/bogus"))
	assert.Equal(t, errQuit, r.handle(ctx, "/quit"))
}

func TestReplDeleteCanBeDeclined(t *testing.T) {
	r, _ := newTestRepl("n\n")
	ctx := context.Background()

	require.NoError(t, r.handle(ctx, "/new"))
	require.NoError(t, r.handle(ctx, "/delete 1"))
	assert.Len(t, r.app.registry.Sessions(), 1)
}

func TestReplUploadRejectsNonPDF(t *testing.T) {
	r, _ := newTestRepl("")

	err := r.handle(context.Background(), "/upload notes.txt")
	assert.ErrorIs(t, err, ingestion.ErrUnsupportedFile)
}
