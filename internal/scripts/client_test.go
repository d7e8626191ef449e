package scripts

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/GriffinCanCode/modbridge/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/modbridge/internal/shared/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(ClientConfig{BaseURL: srv.URL, Retries: 0})
}

func TestFetchReturnsBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/abc123", r.URL.Path)
		w.Write([]byte("console.log('hello');"))
	})

	src, err := client.Fetch(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, "console.log('hello');", src)
}

func TestFetchEscapesHash(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/a%20b%2Fc", r.URL.EscapedPath())
		w.Write([]byte("x = 1"))
	})

	_, err := client.Fetch(context.Background(), "a b/c")
	require.NoError(t, err)
}

func TestFetchRejectsEmptyHash(t *testing.T) {
	client := NewClient(ClientConfig{BaseURL: "http://127.0.0.1:1"})

	_, err := client.Fetch(context.Background(), "  ")
	assert.ErrorIs(t, err, types.ErrFetch)
}

func TestFetchStatusError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	for i := 0; i < 10; i++ {
		_, err := client.Fetch(context.Background(), "missing")
		require.Error(t, err)
		assert.ErrorIs(t, err, types.ErrFetch)
		assert.ErrorIs(t, err, ErrStatus)

		var status *StatusError
		require.True(t, errors.As(err, &status))
		assert.Equal(t, http.StatusNotFound, status.Code)
	}
	assert.Equal(t, resilience.StateClosed, client.Breaker().State(), "client errors do not trip the breaker")
}

func TestFetchServerErrorsTripBreaker(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	for i := 0; i < 5; i++ {
		_, err := client.Fetch(context.Background(), "abc")
		assert.ErrorIs(t, err, ErrStatus)
	}
	assert.Equal(t, resilience.StateOpen, client.Breaker().State())

	_, err := client.Fetch(context.Background(), "abc")
	assert.ErrorIs(t, err, types.ErrFetch)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
}

func TestFetchSizeLimit(t *testing.T) {
	exact := strings.Repeat("a", int(DefaultMaxBytes))
	over := exact + "a"

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/exact":
			w.Write([]byte(exact))
		case "/over":
			w.Write([]byte(over))
		}
	})

	src, err := client.Fetch(context.Background(), "exact")
	require.NoError(t, err)
	assert.Len(t, src, int(DefaultMaxBytes))

	_, err = client.Fetch(context.Background(), "over")
	assert.ErrorIs(t, err, ErrTooLarge)
	assert.ErrorIs(t, err, types.ErrFetch)
}

func TestFetchRejectsDeclaredLength(t *testing.T) {
	client := NewClient(ClientConfig{MaxBytes: 16})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "64")
		w.Write([]byte(strings.Repeat("b", 64)))
	}))
	defer srv.Close()
	client.baseURL = srv.URL

	_, err := client.Fetch(context.Background(), "big")
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestFetchEmptyBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("  \n\t"))
	})

	_, err := client.Fetch(context.Background(), "blank")
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestFetchRejectsBinary(t *testing.T) {
	png := append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 64)...)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(png)
	})

	_, err := client.Fetch(context.Background(), "image")
	assert.ErrorIs(t, err, ErrNotText)
}

func TestFetchTranscodesLegacyCharset(t *testing.T) {
	latin1 := []byte("// Le caf\xe9 est ouvert. Le caf\xe9 de la gare est tr\xe8s bon et tr\xe8s cher.\n" +
		"var message = \"caf\xe9\"; // d\xe9j\xe0 vu, \xe0 bient\xf4t, na\xefve fa\xe7ade\n")
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(latin1)
	})

	src, err := client.Fetch(context.Background(), "latin1")
	require.NoError(t, err)
	assert.True(t, utf8.ValidString(src))
	assert.Contains(t, src, "café")
}

func TestFetchHonoursContext(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("x"))
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Fetch(ctx, "abc")
	assert.ErrorIs(t, err, types.ErrFetch)
	assert.Equal(t, resilience.StateClosed, client.Breaker().State())
}
