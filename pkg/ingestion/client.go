// Package ingestion uploads documents to the knowledge base and tells the
// conversation about it once the server has accepted them.
package ingestion

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/kbchat/pkg/helpers"
)

var (
	ErrUnsupportedFile  = errors.New("only PDF files are supported")
	ErrNoFiles          = errors.New("no files to upload")
	ErrUnexpectedStatus = errors.New("unexpected ingestion service status")
	ErrMalformedReply   = errors.New("malformed ingestion service response")
)

const correlationIDHeader = "X-Correlation-ID"

const errorBodyLimit = 512

// UploadResult is the server's acknowledgement. The documents are processed
// asynchronously after this returns.
type UploadResult struct {
	Message string   `json:"message"`
	Files   []string `json:"-"`
}

// Uploader sends documents to the ingestion service.
type Uploader interface {
	Upload(ctx context.Context, paths ...string) (*UploadResult, error)
}

// Client posts documents as multipart form parts named "files".
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu        sync.Mutex
	callbacks []func()
}

var _ Uploader = (*Client)(nil)

type ClientOption func(*Client)

func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient = &http.Client{Timeout: timeout}
	}
}

func NewClient(baseURL string, options ...ClientOption) *Client {
	ret := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

// OnSuccess registers f to run after every successful upload. Callbacks run
// synchronously on the uploading goroutine, in registration order.
func (c *Client) OnSuccess(f func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callbacks = append(c.callbacks, f)
}

// ValidateFiles checks that every path names a PDF. Nothing is read.
func ValidateFiles(paths ...string) error {
	if len(paths) == 0 {
		return ErrNoFiles
	}
	for _, p := range paths {
		if !strings.EqualFold(filepath.Ext(p), ".pdf") {
			return errors.Wrapf(ErrUnsupportedFile, "%s", filepath.Base(p))
		}
	}
	return nil
}

func (c *Client) Upload(ctx context.Context, paths ...string) (*UploadResult, error) {
	if err := ValidateFiles(paths...); err != nil {
		return nil, err
	}

	body, contentType, err := buildMultipart(paths)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload", body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", contentType)
	if cid := helpers.CorrelationIDFromContext(ctx); cid != "" {
		req.Header.Set(correlationIDHeader, cid)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to send upload")
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return nil, errors.Wrapf(ErrUnexpectedStatus, "status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var ret UploadResult
	if err := json.NewDecoder(resp.Body).Decode(&ret); err != nil {
		return nil, errors.Wrapf(ErrMalformedReply, "invalid json: %v", err)
	}
	for _, p := range paths {
		ret.Files = append(ret.Files, filepath.Base(p))
	}

	log.Info().
		Str("correlation_id", helpers.CorrelationIDFromContext(ctx)).
		Strs("files", ret.Files).
		Str("message", ret.Message).
		Msg("documents uploaded")

	c.fireSuccess()
	return &ret, nil
}

func (c *Client) fireSuccess() {
	c.mu.Lock()
	callbacks := append([]func(){}, c.callbacks...)
	c.mu.Unlock()

	for _, f := range callbacks {
		f()
	}
}

func buildMultipart(paths []string) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, p := range paths {
		if err := addFile(w, p); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", errors.Wrap(err, "failed to finish multipart body")
	}
	return &buf, w.FormDataContentType(), nil
}

func addFile(w *multipart.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "could not open %s", path)
	}
	defer func() {
		_ = f.Close()
	}()

	part, err := w.CreateFormFile("files", filepath.Base(path))
	if err != nil {
		return errors.Wrap(err, "failed to create form part")
	}
	if _, err := io.Copy(part, f); err != nil {
		return errors.Wrapf(err, "could not read %s", path)
	}
	return nil
}
