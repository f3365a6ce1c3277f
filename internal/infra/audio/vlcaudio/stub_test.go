//go:build !vlc

package vlcaudio

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStubReportsUnsupported(t *testing.T) {
	backend, err := NewBackend(slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.ErrorIs(t, err, ErrUnsupported)
	require.Nil(t, backend)

	_, err = (&Backend{}).Load(context.Background(), "http://x/a.mp3", 1)
	require.ErrorIs(t, err, ErrUnsupported)
}
