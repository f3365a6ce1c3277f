package headless

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newAssetServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.mp3":
			_, _ = w.Write([]byte("ID3 fake mp3 payload"))
		case "/empty.mp3":
			w.WriteHeader(http.StatusOK)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestBackend_PlaysForDuration(t *testing.T) {
	srv := newAssetServer(t)
	backend := NewBackend(20*time.Millisecond, time.Second)

	track, err := backend.Load(context.Background(), srv.URL+"/ok.mp3", 1)
	require.NoError(t, err)

	done := make(chan error, 1)
	require.NoError(t, track.Start(func(err error) { done <- err }))
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("track never finished")
	}
}

func TestBackend_StopSuppressesCompletion(t *testing.T) {
	srv := newAssetServer(t)
	backend := NewBackend(30*time.Millisecond, time.Second)

	track, err := backend.Load(context.Background(), srv.URL+"/ok.mp3", 1)
	require.NoError(t, err)
	done := make(chan error, 1)
	require.NoError(t, track.Start(func(err error) { done <- err }))
	track.Stop()
	track.Stop()

	select {
	case <-done:
		t.Fatal("completion delivered after stop")
	case <-time.After(80 * time.Millisecond):
	}
	require.Error(t, track.Start(func(error) {}))
}

func TestBackend_LoadFailures(t *testing.T) {
	srv := newAssetServer(t)
	backend := NewBackend(time.Second, time.Second)

	_, err := backend.Load(context.Background(), srv.URL+"/missing.mp3", 1)
	require.Error(t, err)

	_, err = backend.Load(context.Background(), srv.URL+"/empty.mp3", 1)
	require.Error(t, err)

	_, err = backend.Load(context.Background(), "http://127.0.0.1:0/none.mp3", 1)
	require.Error(t, err)
}
