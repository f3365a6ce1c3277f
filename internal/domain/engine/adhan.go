package engine

import (
	"context"
	"fmt"

	"github.com/yanqian/prayer-companion/internal/domain/adhan"
	"github.com/yanqian/prayer-companion/internal/domain/prayer"
	apperrors "github.com/yanqian/prayer-companion/pkg/errors"
)

// PlayAdhan starts the adhan for the prayer a slot points at: the current
// prayer, the next prayer, or the prayer whose onset last fired.
func (e *Engine) PlayAdhan(ctx context.Context, slot string) (adhan.State, error) {
	name, err := e.slotTarget(slot)
	if err != nil {
		return adhan.State{}, err
	}
	return e.playFor(ctx, slot, name)
}

// StopAdhan stops a slot. It is legal from every state.
func (e *Engine) StopAdhan(slot string) (adhan.State, error) {
	player, err := e.player(slot)
	if err != nil {
		return adhan.State{}, err
	}
	player.Stop()
	e.clearPlaybackIssue(slot)
	return player.State(), nil
}

// RetryAdhan reloads the failed source of a slot.
func (e *Engine) RetryAdhan(ctx context.Context, slot string) (adhan.State, error) {
	player, err := e.player(slot)
	if err != nil {
		return adhan.State{}, err
	}
	if err := player.Retry(playbackContext(ctx)); err != nil {
		if apperrors.IsCode(err, prayer.CodePlaybackFailure) {
			e.recordPlaybackIssue(slot)
		}
		return player.State(), err
	}
	e.clearPlaybackIssue(slot)
	return player.State(), nil
}

// FallbackAdhan switches a failed slot to its alternate source. It reports
// false when the fallback was already used for this failure or none exists.
func (e *Engine) FallbackAdhan(ctx context.Context, slot string) (adhan.State, bool, error) {
	player, err := e.player(slot)
	if err != nil {
		return adhan.State{}, false, err
	}
	e.slotMu.Lock()
	assets := e.slotAssets[slot]
	e.slotMu.Unlock()
	if len(assets.Fallbacks) == 0 {
		return player.State(), false, nil
	}
	tried, err := player.TryFallback(playbackContext(ctx), assets.Fallbacks[0])
	if err != nil {
		e.recordPlaybackIssue(slot)
		return player.State(), tried, err
	}
	if tried {
		e.clearPlaybackIssue(slot)
	}
	return player.State(), tried, nil
}

// AdhanStates returns every slot's playback state.
func (e *Engine) AdhanStates() []adhan.State {
	if e.deck == nil {
		return nil
	}
	return e.deck.States()
}

// AdhanState returns one slot's playback state.
func (e *Engine) AdhanState(slot string) (adhan.State, error) {
	player, err := e.player(slot)
	if err != nil {
		return adhan.State{}, err
	}
	return player.State(), nil
}

func (e *Engine) playFor(ctx context.Context, slot string, name prayer.Name) (adhan.State, error) {
	player, err := e.player(slot)
	if err != nil {
		return adhan.State{}, err
	}
	if e.assets == nil {
		return player.State(), apperrors.Wrap(prayer.CodePlaybackFailure, "no adhan assets configured", nil)
	}
	assets, err := e.assets.Resolve(ctx, name, e.prefs.Reciter(ctx))
	if err != nil {
		e.counters.IncPlaybackFailure()
		e.recordPlaybackIssue(slot)
		return player.State(), apperrors.Wrap(prayer.CodePlaybackFailure, "resolve adhan asset", err)
	}
	e.slotMu.Lock()
	e.slotAssets[slot] = assets
	e.slotMu.Unlock()

	if err := player.Play(playbackContext(ctx), assets.Primary); err != nil {
		if apperrors.IsCode(err, prayer.CodePlaybackFailure) {
			e.counters.IncPlaybackFailure()
			e.recordPlaybackIssue(slot)
		}
		return player.State(), err
	}
	e.clearPlaybackIssue(slot)
	return player.State(), nil
}

// playbackContext keeps the caller's values but not its cancellation. Audio
// keeps streaming after an HTTP request that started it has returned.
func playbackContext(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}

func (e *Engine) slotTarget(slot string) (prayer.Name, error) {
	var name prayer.Name
	switch slot {
	case adhan.SlotCurrent:
		name = e.Snapshot().Current.Name
	case adhan.SlotNext:
		name = e.Snapshot().Next.Name
	case adhan.SlotAlert:
		e.slotMu.Lock()
		name = e.alertPrayer
		e.slotMu.Unlock()
		if name == "" {
			name = e.Snapshot().Next.Name
		}
	default:
		return "", apperrors.Wrap(prayer.CodeInvalidInput, fmt.Sprintf("unknown adhan slot %q", slot), nil)
	}
	if name == "" {
		return "", apperrors.Wrap(prayer.CodeTimingUnavailable, "no schedule loaded", nil)
	}
	if !name.Notifiable() {
		return "", apperrors.Wrap(prayer.CodeInvalidInput, fmt.Sprintf("%s has no adhan", name), nil)
	}
	return name, nil
}

func (e *Engine) player(slot string) (*adhan.Player, error) {
	if e.deck == nil {
		return nil, apperrors.Wrap(prayer.CodePlaybackFailure, "audio output unavailable", nil)
	}
	return e.deck.Player(slot)
}

func (e *Engine) recordPlaybackIssue(slot string) {
	e.slotMu.Lock()
	defer e.slotMu.Unlock()
	actions := []string{prayer.ActionRetry}
	if len(e.slotAssets[slot].Fallbacks) > 0 {
		actions = append(actions, prayer.ActionFallbackSource)
	}
	e.playbackIssues[slot] = prayer.Notice{
		Code:    prayer.CodePlaybackFailure,
		Message: fmt.Sprintf("adhan playback failed on %s", slot),
		Actions: actions,
	}
}

func (e *Engine) clearPlaybackIssue(slot string) {
	e.slotMu.Lock()
	defer e.slotMu.Unlock()
	delete(e.playbackIssues, slot)
}
