package collyfetcher_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formpick/picklist-crawler/internal/fetcher"
	collyfetcher "github.com/formpick/picklist-crawler/internal/fetcher/colly"
)

func TestFetch(t *testing.T) {
	t.Run("ReturnsBodyAndStatus", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "picklist-test", r.UserAgent())
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<html>listing</html>"))
		}))
		defer server.Close()

		f := collyfetcher.New(collyfetcher.Config{UserAgent: "picklist-test", Timeout: 5 * time.Second})
		resp, err := f.Fetch(context.Background(), server.URL)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, []byte("<html>listing</html>"), resp.Body)
		assert.Greater(t, resp.Duration, time.Duration(0))
	})

	t.Run("AnyTwoHundredStatusSucceeds", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/no-content":
				w.WriteHeader(http.StatusNoContent)
			case "/partial":
				w.WriteHeader(http.StatusPartialContent)
				_, _ = w.Write([]byte("chunk"))
			default:
				w.WriteHeader(http.StatusNonAuthoritativeInfo)
				_, _ = w.Write([]byte("cached"))
			}
		}))
		defer server.Close()

		f := collyfetcher.New(collyfetcher.Config{Timeout: 5 * time.Second})

		resp, err := f.Fetch(context.Background(), server.URL+"/no-content")
		require.NoError(t, err)
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
		assert.Empty(t, resp.Body)

		resp, err = f.Fetch(context.Background(), server.URL+"/partial")
		require.NoError(t, err)
		assert.Equal(t, http.StatusPartialContent, resp.StatusCode)
		assert.Equal(t, []byte("chunk"), resp.Body)

		resp, err = f.Fetch(context.Background(), server.URL+"/cached")
		require.NoError(t, err)
		assert.Equal(t, http.StatusNonAuthoritativeInfo, resp.StatusCode)
	})

	t.Run("NotFoundIsFetchError", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "gone", http.StatusNotFound)
		}))
		defer server.Close()

		f := collyfetcher.New(collyfetcher.Config{Timeout: 5 * time.Second})
		_, err := f.Fetch(context.Background(), server.URL)
		require.Error(t, err)

		var fe *fetcher.FetchError
		require.ErrorAs(t, err, &fe)
		assert.Equal(t, http.StatusNotFound, fe.StatusCode)
		assert.Equal(t, server.URL, fe.URL)
	})

	t.Run("ServerErrorIsFetchError", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		defer server.Close()

		f := collyfetcher.New(collyfetcher.Config{Timeout: 5 * time.Second})
		_, err := f.Fetch(context.Background(), server.URL)

		var fe *fetcher.FetchError
		require.ErrorAs(t, err, &fe)
		assert.Equal(t, http.StatusInternalServerError, fe.StatusCode)
	})

	t.Run("UnreachableHostIsFetchError", func(t *testing.T) {
		f := collyfetcher.New(collyfetcher.Config{Timeout: time.Second})
		_, err := f.Fetch(context.Background(), "http://127.0.0.1:1/never")

		var fe *fetcher.FetchError
		require.ErrorAs(t, err, &fe)
		assert.Zero(t, fe.StatusCode)
	})

	t.Run("CanceledContextAborts", func(t *testing.T) {
		release := make(chan struct{})
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			<-release
		}))
		defer server.Close()
		defer close(release)

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(50 * time.Millisecond)
			cancel()
		}()

		f := collyfetcher.New(collyfetcher.Config{Timeout: 10 * time.Second})
		_, err := f.Fetch(ctx, server.URL)
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("SequentialFetchesAreIndependent", func(t *testing.T) {
		// Callbacks registered for one request must not fire for the next.
		var hits int
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			hits++
			if hits == 1 {
				http.Error(w, "flaky", http.StatusServiceUnavailable)
				return
			}
			_, _ = w.Write([]byte("recovered"))
		}))
		defer server.Close()

		f := collyfetcher.New(collyfetcher.Config{Timeout: 5 * time.Second})
		_, err := f.Fetch(context.Background(), server.URL)
		require.Error(t, err)

		resp, err := f.Fetch(context.Background(), server.URL)
		require.NoError(t, err)
		assert.Equal(t, []byte("recovered"), resp.Body)
	})
}
