package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obrasync/obrasync/internal/common"
	"github.com/obrasync/obrasync/internal/logging"
)

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// fakeTokens is a TokenSource with scripted tokens and a refresh counter.
type fakeTokens struct {
	access     atomic.Value // string
	refreshes  atomic.Int32
	refreshErr error
}

func newFakeTokens(access string) *fakeTokens {
	f := &fakeTokens{}
	f.access.Store(access)
	return f
}

func (f *fakeTokens) AccessToken(ctx context.Context) (string, error) {
	return f.access.Load().(string), nil
}

func (f *fakeTokens) Refresh(ctx context.Context) (string, error) {
	f.refreshes.Add(1)
	if f.refreshErr != nil {
		return "", f.refreshErr
	}
	f.access.Store("fresh-token")
	return "fresh-token", nil
}

func TestDo_SetsHeaders(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := NewRestClient(srv.URL, nil, newFakeTokens("tok"), testLogger())
	require.NoError(t, err)

	_, err = c.Do(context.Background(), Request{
		Method:         "POST",
		Endpoint:       "/log-entries",
		Body:           []byte(`{"title":"t"}`),
		IdempotencyKey: "key-1",
	})
	require.NoError(t, err)

	assert.Equal(t, "application/json", got.Get("Content-Type"))
	assert.Equal(t, "key-1", got.Get("Idempotency-Key"))
	assert.Equal(t, "Bearer tok", got.Get("Authorization"))
}

func TestDo_ContentTypeOverride(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := NewRestClient(srv.URL, nil, nil, testLogger())
	require.NoError(t, err)

	_, err = c.Do(context.Background(), Request{
		Method:      "POST",
		Endpoint:    "/attachments",
		Body:        []byte("binary"),
		ContentType: "multipart/form-data; boundary=xyz",
	})
	require.NoError(t, err)

	assert.Equal(t, "multipart/form-data; boundary=xyz", got)
}

func TestDo_RetriesOnceAfterRefresh(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer fresh-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	tokens := newFakeTokens("stale-token")
	c, err := NewRestClient(srv.URL, nil, tokens, testLogger())
	require.NoError(t, err)

	resp, err := c.Do(context.Background(), Request{Method: "GET", Endpoint: "/projects"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, tokens.refreshes.Load())
	assert.EqualValues(t, 1, calls.Load())
}

func TestDo_SecondUnauthorizedIsTerminal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	tokens := newFakeTokens("stale-token")
	c, err := NewRestClient(srv.URL, nil, tokens, testLogger())
	require.NoError(t, err)

	_, err = c.Do(context.Background(), Request{Method: "GET", Endpoint: "/projects"})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrUnauthorized)

	// exactly one refresh, no retry loop
	assert.EqualValues(t, 1, tokens.refreshes.Load())
}

func TestDo_RefreshFailurePropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	tokens := newFakeTokens("stale-token")
	tokens.refreshErr = common.ErrNoRefreshToken
	c, err := NewRestClient(srv.URL, nil, tokens, testLogger())
	require.NoError(t, err)

	_, err = c.Do(context.Background(), Request{Method: "GET", Endpoint: "/projects"})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrNoRefreshToken)
}

func TestDo_StatusErrorClasses(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, common.ErrUnauthorized},
		{http.StatusForbidden, common.ErrUnauthorized},
		{http.StatusInternalServerError, common.ErrUnavailable},
		{http.StatusBadGateway, common.ErrUnavailable},
	}

	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		}))

		c, err := NewRestClient(srv.URL, nil, nil, testLogger())
		require.NoError(t, err)

		_, err = c.Do(context.Background(), Request{Method: "GET", Endpoint: "/x"})
		require.Error(t, err, "status %d", tt.status)
		assert.ErrorIs(t, err, tt.want, "status %d", tt.status)

		var statusErr *StatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, tt.status, statusErr.StatusCode)

		srv.Close()
	}
}

func TestDo_ClientErrorHasNoSentinel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	c, err := NewRestClient(srv.URL, nil, nil, testLogger())
	require.NoError(t, err)

	_, err = c.Do(context.Background(), Request{Method: "POST", Endpoint: "/x"})
	require.Error(t, err)
	// a 4xx validation error is neither a connectivity nor an auth problem
	assert.False(t, errors.Is(err, common.ErrUnavailable))
	assert.False(t, errors.Is(err, common.ErrUnauthorized))
}

func TestDo_ConnectionRefusedMapsToUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listening anymore

	c, err := NewRestClient(srv.URL, nil, nil, testLogger())
	require.NoError(t, err)

	_, err = c.Do(context.Background(), Request{Method: "GET", Endpoint: "/x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrUnavailable)
}

func TestDo_MirrorsXSRFCookie(t *testing.T) {
	var gotHeader string
	mux := http.NewServeMux()
	mux.HandleFunc("/seed", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: XSRFCookieName, Value: "csrf-123", Path: "/"})
	})
	mux.HandleFunc("/action", func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get(XSRFHeaderName)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	c, err := NewRestClient(srv.URL, &http.Client{Jar: jar}, nil, testLogger())
	require.NoError(t, err)

	ctx := context.Background()
	_, err = c.Do(ctx, Request{Method: "GET", Endpoint: "/seed"})
	require.NoError(t, err)

	_, err = c.Do(ctx, Request{Method: "POST", Endpoint: "/action"})
	require.NoError(t, err)

	assert.Equal(t, "csrf-123", gotHeader)
}

func TestPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c, err := NewRestClient(srv.URL, nil, nil, testLogger())
	require.NoError(t, err)

	assert.NoError(t, c.Ping(context.Background()))

	srv.Close()
	err = c.Ping(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrUnavailable)
}

func TestResolve_JoinsPaths(t *testing.T) {
	u, _ := url.Parse("http://example.com/api/")
	c := &RestClient{baseURL: u}

	assert.Equal(t, "http://example.com/api/projects", c.resolve("/projects"))
	assert.Equal(t, "http://example.com/api/projects", c.resolve("projects"))
}
