package ingestion

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/kbchat/pkg/conversation"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	return p
}

func TestUploadSendsFilesAndFiresCallbacks(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.pdf", "%PDF-a")
	b := writeFile(t, dir, "B.PDF", "%PDF-b")

	received := map[string]string{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/upload", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		for _, fh := range r.MultipartForm.File["files"] {
			f, err := fh.Open()
			require.NoError(t, err)
			data, err := io.ReadAll(f)
			require.NoError(t, err)
			_ = f.Close()
			received[fh.Filename] = string(data)
		}
		_, _ = w.Write([]byte(`{"message": "Successfully uploaded 2 files"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL + "/api")
	calls := 0
	c.OnSuccess(func() { calls++ })

	res, err := c.Upload(context.Background(), a, b)
	require.NoError(t, err)
	assert.Equal(t, "Successfully uploaded 2 files", res.Message)
	assert.Equal(t, []string{"a.pdf", "B.PDF"}, res.Files)
	assert.Equal(t, map[string]string{"a.pdf": "%PDF-a", "B.PDF": "%PDF-b"}, received)
	assert.Equal(t, 1, calls)
}

func TestUploadRejectsNonPDFBeforeSending(t *testing.T) {
	dir := t.TempDir()
	pdf := writeFile(t, dir, "ok.pdf", "x")
	txt := writeFile(t, dir, "notes.txt", "x")

	hit := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hit = true
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	c.OnSuccess(func() { t.Fatal("callback must not run") })

	_, err := c.Upload(context.Background(), pdf, txt)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedFile))
	assert.False(t, hit)

	_, err = c.Upload(context.Background())
	assert.True(t, errors.Is(err, ErrNoFiles))
}

func TestUploadFailureSkipsCallbacks(t *testing.T) {
	dir := t.TempDir()
	pdf := writeFile(t, dir, "doc.pdf", "x")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"detail": "Only PDF files are supported"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	calls := 0
	c.OnSuccess(func() { calls++ })

	_, err := c.Upload(context.Background(), pdf)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnexpectedStatus))
	assert.Equal(t, 0, calls)
}

func TestUploadMissingFile(t *testing.T) {
	c := NewClient("http://127.0.0.1:1")
	_, err := c.Upload(context.Background(), filepath.Join(t.TempDir(), "missing.pdf"))
	assert.Error(t, err)
}

func TestNotifierAppendsNoticeToActiveSession(t *testing.T) {
	r := conversation.NewRegistry()
	a := r.ActiveID()
	b := r.CreateSession()

	NewNotifier(r).OnIngestionSuccess()

	sb, _ := r.Session(b)
	require.Len(t, sb.Messages, 1)
	notice := sb.Messages[0]
	assert.Equal(t, conversation.RoleAssistant, notice.Role)
	assert.Equal(t, conversation.KindNotice, notice.Kind)
	assert.Equal(t, NoticeText, notice.Content)
	assert.Empty(t, notice.Sources)

	sa, _ := r.Session(a)
	assert.Empty(t, sa.Messages)
}

func TestNotifierWithoutActiveSessionIsNoop(t *testing.T) {
	r := conversation.NewRegistry()
	NewNotifier(r).OnIngestionSuccess()

	assert.True(t, r.PeekActiveID().IsNil())
	assert.Equal(t, int64(0), r.Version())
}

func TestUploadSuccessNotifiesConversation(t *testing.T) {
	pdf := writeFile(t, t.TempDir(), "doc.pdf", "x")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"message": "ok"}`))
	}))
	defer srv.Close()

	r := conversation.NewRegistry()
	a := r.ActiveID()
	c := NewClient(srv.URL)
	c.OnSuccess(NewNotifier(r).OnIngestionSuccess)

	_, err := c.Upload(context.Background(), pdf)
	require.NoError(t, err)

	s, _ := r.Session(a)
	require.Len(t, s.Messages, 1)
	assert.Equal(t, NoticeText, s.Messages[0].Content)
}
