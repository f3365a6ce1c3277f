package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCodeOfWrappedChain(t *testing.T) {
	base := Wrap("timing_unavailable", "prayer times unavailable", errors.New("status=500"))
	wrapped := fmt.Errorf("refresh: %w", base)

	require.True(t, IsCode(wrapped, "timing_unavailable"))
	require.False(t, IsCode(wrapped, "timing_parse_error"))
	require.Equal(t, "prayer times unavailable", MessageOf(wrapped))
	require.Contains(t, base.Error(), "status=500")
}

func TestCodeOfPlainError(t *testing.T) {
	err := errors.New("boom")
	require.Equal(t, "", CodeOf(err))
	require.False(t, IsCode(err, ""))
	require.Equal(t, "boom", MessageOf(err))
	require.Equal(t, "", MessageOf(nil))
}
