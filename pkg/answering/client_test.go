package answering

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/kbchat/pkg/conversation"
	"github.com/go-go-golems/kbchat/pkg/helpers"
)

func TestAnswerSendsQueryAndHistory(t *testing.T) {
	var got Request
	var header string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		header = r.Header.Get(CorrelationIDHeader)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"response": "Y is a letter.", "sources": ["alphabet.pdf", "letters.pdf"]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL + "/api/")
	ctx := helpers.ContextWithCorrelationID(context.Background(), "cid-1")
	resp, err := c.Answer(ctx, Request{
		Query: "What is Y?",
		ChatHistory: []conversation.HistoryEntry{
			{Role: conversation.RoleUser, Content: "hi"},
			{Role: conversation.RoleAssistant, Content: "hello"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "Y is a letter.", resp.Response)
	assert.Equal(t, []string{"alphabet.pdf", "letters.pdf"}, resp.Sources)
	assert.Equal(t, "What is Y?", got.Query)
	require.Len(t, got.ChatHistory, 2)
	assert.Equal(t, conversation.RoleAssistant, got.ChatHistory[1].Role)
	assert.Equal(t, "cid-1", header)
}

func TestAnswerSendsEmptyHistoryAsArray(t *testing.T) {
	var raw map[string]json.RawMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		_, _ = w.Write([]byte(`{"response": "ok"}`))
	}))
	defer srv.Close()

	resp, err := NewClient(srv.URL).Answer(context.Background(), Request{Query: "q"})
	require.NoError(t, err)
	assert.Equal(t, "[]", string(raw["chat_history"]))
	assert.NotNil(t, resp.Sources)
	assert.Empty(t, resp.Sources)
}

func TestAnswerFailures(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		malformed bool
	}{
		{name: "server error", status: http.StatusInternalServerError, body: `{"detail": "boom"}`},
		{name: "not found", status: http.StatusNotFound, body: "nope"},
		{name: "invalid json", status: http.StatusOK, body: `{"response": `, malformed: true},
		{name: "missing response", status: http.StatusOK, body: `{"sources": []}`, malformed: true},
		{name: "not an object", status: http.StatusOK, body: `"text"`, malformed: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			resp, err := NewClient(srv.URL).Answer(context.Background(), Request{Query: "q"})
			require.Error(t, err)
			assert.Nil(t, resp)
			if tt.malformed {
				assert.True(t, errors.Is(err, ErrMalformedResponse))
			} else {
				assert.True(t, errors.Is(err, ErrUnexpectedStatus))
			}
		})
	}
}

func TestAnswerTimesOut(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := NewClient(srv.URL, WithTimeout(50*time.Millisecond))
	_, err := c.Answer(context.Background(), Request{Query: "q"})
	assert.Error(t, err)
}

func TestAnswerUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewClient(url).Answer(context.Background(), Request{Query: "q"})
	assert.Error(t, err)
}
