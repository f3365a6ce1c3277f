package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDateKeyUsesLocation(t *testing.T) {
	riyadh := time.FixedZone("AST", 3*60*60)
	instant := time.Date(2024, 3, 10, 22, 30, 0, 0, time.UTC)

	require.Equal(t, "2024-03-10", DateKey(instant, time.UTC))
	require.Equal(t, "2024-03-11", DateKey(instant, riyadh))
}

func TestStartOfDay(t *testing.T) {
	riyadh := time.FixedZone("AST", 3*60*60)
	instant := time.Date(2024, 3, 10, 22, 30, 0, 0, time.UTC)

	start := StartOfDay(instant, riyadh)
	require.Equal(t, time.Date(2024, 3, 11, 0, 0, 0, 0, riyadh), start)
}
