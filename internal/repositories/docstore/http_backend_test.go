package docstore

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHTTPBackend(t *testing.T, handler http.HandlerFunc, opts ...HTTPOption) *HTTPBackend {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	opts = append([]HTTPOption{WithRetryBackoff(time.Millisecond, time.Millisecond)}, opts...)
	b, err := NewHTTPBackend(srv.URL, opts...)
	require.NoError(t, err)
	return b
}

func TestHTTPBackendFetchRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	b := newTestHTTPBackend(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("X-API-Key"))
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, `{"tables": [{"id": 1}]}`)
	}, WithHeader("X-API-Key", "secret"), WithFetchAttempts(3))

	doc, err := b.Fetch(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id": 1}]`, string(doc[KeyTables]))
	assert.EqualValues(t, 3, calls.Load())
}

func TestHTTPBackendFetchGivesUp(t *testing.T) {
	var calls atomic.Int32
	b := newTestHTTPBackend(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}, WithFetchAttempts(2))

	_, err := b.Fetch(context.Background())
	var docErr *Error
	require.ErrorAs(t, err, &docErr)
	assert.True(t, docErr.IsUnavailable())
	assert.EqualValues(t, 2, calls.Load())
}

func TestHTTPBackendFetchDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	b := newTestHTTPBackend(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := b.Fetch(context.Background())
	var docErr *Error
	require.ErrorAs(t, err, &docErr)
	assert.True(t, docErr.IsNotFound())
	assert.EqualValues(t, 1, calls.Load())
}

func TestHTTPBackendFetchEmptyBody(t *testing.T) {
	b := newTestHTTPBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	doc, err := b.Fetch(context.Background())
	require.NoError(t, err)
	assert.Empty(t, doc)
}

func TestHTTPBackendReplaceIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	var body []byte
	b := newTestHTTPBackend(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusServiceUnavailable)
	}, WithFetchAttempts(5))

	err := b.Replace(context.Background(), Document{KeyOrders: []byte(`[]`)})
	var docErr *Error
	require.ErrorAs(t, err, &docErr)
	assert.True(t, docErr.IsUnavailable())
	assert.EqualValues(t, 1, calls.Load())
	assert.JSONEq(t, `{"orders": []}`, string(body))
}

func TestHTTPBackendPing(t *testing.T) {
	b := newTestHTTPBackend(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
	})
	require.NoError(t, b.Ping(context.Background()))

	b = newTestHTTPBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	require.Error(t, b.Ping(context.Background()))
}

func TestNewHTTPBackendRequiresURL(t *testing.T) {
	_, err := NewHTTPBackend("  ")
	require.Error(t, err)
}
