package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/googleapis/gax-go/v2"
)

const (
	defaultHTTPTimeout      = 10 * time.Second
	defaultFetchAttempts    = 3
	maxDocumentResponseSize = 32 << 20
)

// HTTPBackend talks to the document service: GET returns the whole document and POST with
// the whole document replaces it.
type HTTPBackend struct {
	client   *http.Client
	url      string
	header   http.Header
	attempts int
	backoff  func() gax.Backoff
	sleep    func(context.Context, time.Duration) error
}

// HTTPOption customises HTTPBackend.
type HTTPOption func(*HTTPBackend)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(b *HTTPBackend) {
		if client != nil {
			b.client = client
		}
	}
}

// WithHeader sets a header sent on every request, such as an API key.
func WithHeader(name, value string) HTTPOption {
	return func(b *HTTPBackend) {
		if strings.TrimSpace(name) != "" && value != "" {
			b.header.Set(name, value)
		}
	}
}

// WithFetchAttempts bounds how many times a failed GET is tried. Writes are never retried.
func WithFetchAttempts(n int) HTTPOption {
	return func(b *HTTPBackend) {
		if n > 0 {
			b.attempts = n
		}
	}
}

// WithRetryBackoff overrides the pause policy between GET attempts.
func WithRetryBackoff(initial, maxPause time.Duration) HTTPOption {
	return func(b *HTTPBackend) {
		b.backoff = func() gax.Backoff {
			return gax.Backoff{Initial: initial, Max: maxPause, Multiplier: 2}
		}
	}
}

// NewHTTPBackend constructs a backend for the document at url.
func NewHTTPBackend(url string, opts ...HTTPOption) (*HTTPBackend, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, errors.New("docstore: document url is required")
	}
	b := &HTTPBackend{
		client:   &http.Client{Timeout: defaultHTTPTimeout},
		url:      url,
		header:   http.Header{},
		attempts: defaultFetchAttempts,
		backoff: func() gax.Backoff {
			return gax.Backoff{Initial: 200 * time.Millisecond, Max: 2 * time.Second, Multiplier: 2}
		},
		sleep: gax.Sleep,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b, nil
}

// Fetch implements Backend. Network failures, 429 and 5xx responses are retried with backoff.
func (b *HTTPBackend) Fetch(ctx context.Context) (Document, error) {
	backoff := b.backoff()
	var lastErr error
	for attempt := 1; attempt <= b.attempts; attempt++ {
		doc, retryable, err := b.fetchOnce(ctx)
		if err == nil {
			return doc, nil
		}
		lastErr = err
		if !retryable || attempt == b.attempts {
			break
		}
		if err := b.sleep(ctx, backoff.Pause()); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

func (b *HTTPBackend) fetchOnce(ctx context.Context) (Document, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.url, nil)
	if err != nil {
		return nil, false, wrap("docstore.fetch", err)
	}
	b.decorate(req)

	resp, err := b.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		return nil, true, Unavailable("docstore.fetch", err)
	}
	defer resp.Body.Close()

	if err := statusError("docstore.fetch", resp); err != nil {
		var docErr *Error
		retryable := errors.As(err, &docErr) && docErr.Unavailable
		return nil, retryable, err
	}

	doc := Document{}
	body := io.LimitReader(resp.Body, maxDocumentResponseSize)
	if err := json.NewDecoder(body).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return Document{}, false, nil
		}
		return nil, false, wrap("docstore.fetch", fmt.Errorf("decode document: %w", err))
	}
	return doc, false, nil
}

// Replace implements Backend with a single POST of the whole document.
func (b *HTTPBackend) Replace(ctx context.Context, doc Document) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return wrap("docstore.replace", fmt.Errorf("encode document: %w", err))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.url, bytes.NewReader(payload))
	if err != nil {
		return wrap("docstore.replace", err)
	}
	b.decorate(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return Unavailable("docstore.replace", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	return statusError("docstore.replace", resp)
}

// Ping issues a HEAD request against the document url.
func (b *HTTPBackend) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, b.url, nil)
	if err != nil {
		return wrap("docstore.ping", err)
	}
	b.decorate(req)
	resp, err := b.client.Do(req)
	if err != nil {
		return Unavailable("docstore.ping", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusMethodNotAllowed {
		return nil
	}
	return statusError("docstore.ping", resp)
}

func (b *HTTPBackend) decorate(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	for name, values := range b.header {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}
}

func statusError(op string, resp *http.Response) error {
	code := resp.StatusCode
	if code >= 200 && code < 300 {
		return nil
	}
	err := fmt.Errorf("document service responded %d", code)
	switch {
	case code == http.StatusNotFound:
		return &Error{Op: op, Err: err, NotFound: true}
	case code == http.StatusConflict || code == http.StatusPreconditionFailed:
		return &Error{Op: op, Err: err, Conflict: true}
	case code == http.StatusTooManyRequests || code >= 500:
		return &Error{Op: op, Err: err, Unavailable: true}
	default:
		return &Error{Op: op, Err: err}
	}
}
