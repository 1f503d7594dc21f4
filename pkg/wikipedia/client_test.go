package wikipedia

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visitum/visitum-cli/internal/resilience"
)

func testClient(srvURL string) Client {
	return NewClient(
		WithBaseURL(srvURL),
		WithRetry(resilience.RetryConfig{MaxAttempts: 3, Delay: time.Millisecond}),
	)
}

func TestPageHTML_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "parse", r.URL.Query().Get("action"))
		assert.Equal(t, "List_of_most-visited_museums", r.URL.Query().Get("page"))
		assert.Equal(t, "text", r.URL.Query().Get("prop"))
		assert.Contains(t, r.Header.Get("User-Agent"), "visitum-cli")
		fmt.Fprint(w, `{"parse":{"title":"List of most-visited museums","text":{"*":"<table><tr><td>Louvre</td></tr></table>"}}}`)
	}))
	defer srv.Close()

	html, err := testClient(srv.URL).PageHTML(context.Background(), "List_of_most-visited_museums")
	require.NoError(t, err)
	assert.Contains(t, html, "<table>")
}

func TestPageHTML_CustomUserAgent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "museum-bot/2.0", r.Header.Get("User-Agent"))
		fmt.Fprint(w, `{"parse":{"title":"p","text":{"*":"<p>body</p>"}}}`)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithUserAgent("museum-bot/2.0"))
	_, err := c.PageHTML(context.Background(), "p")
	require.NoError(t, err)
}

func TestPageHTML_MissingPageNotRetried(t *testing.T) {
	calls := int32(0)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		fmt.Fprint(w, `{"error":{"code":"missingtitle","info":"The page you specified doesn't exist."}}`)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).PageHTML(context.Background(), "No_Such_Page")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missingtitle")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestPageHTML_RetriesTransientStatus(t *testing.T) {
	calls := int32(0)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"parse":{"title":"p","text":{"*":"<p>recovered</p>"}}}`)
	}))
	defer srv.Close()

	html, err := testClient(srv.URL).PageHTML(context.Background(), "p")
	require.NoError(t, err)
	assert.Contains(t, html, "recovered")
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestPageHTML_ExhaustedRetries(t *testing.T) {
	calls := int32(0)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).PageHTML(context.Background(), "p")
	require.Error(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestPageHTML_EmptyParseResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"parse":{"title":"p","text":{"*":""}}}`)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).PageHTML(context.Background(), "p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty parse result")
}
