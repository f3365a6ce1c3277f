package adhan

import (
	"context"
)

// Status is the playback state of a Player.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusPlaying Status = "playing"
	StatusError   Status = "error"
)

// Slot names used by the engine.
const (
	SlotCurrent = "current"
	SlotNext    = "next"
	SlotAlert   = "alert"
)

// State is a copy of a player's playback state.
type State struct {
	Slot              string `json:"slot"`
	Status            Status `json:"status"`
	SourceURL         string `json:"sourceUrl,omitempty"`
	AttemptedFallback bool   `json:"attemptedFallback"`
	SessionID         string `json:"sessionId,omitempty"`
	Error             string `json:"error,omitempty"`
}

// Track is a loaded audio source ready to play.
type Track interface {
	// Start begins playback. onDone is invoked once, from another goroutine, when
	// audio ends on its own, with a non-nil error when playback broke off. It is
	// not invoked after Stop.
	Start(onDone func(error)) error
	// Stop halts playback and releases the underlying resource. It must be idempotent.
	Stop()
}

// Backend loads audio from a URL. volume is in [0,1].
type Backend interface {
	Load(ctx context.Context, url string, volume float64) (Track, error)
}

// Assets are the candidate addresses for one call to prayer.
type Assets struct {
	Primary   string   `json:"primary"`
	Fallbacks []string `json:"fallbacks,omitempty"`
}
