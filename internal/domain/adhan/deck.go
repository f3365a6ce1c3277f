package adhan

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/yanqian/prayer-companion/internal/domain/prayer"
	apperrors "github.com/yanqian/prayer-companion/pkg/errors"
)

// Deck is the set of player slots sharing one Output.
type Deck struct {
	output  *Output
	players map[string]*Player
}

// NewDeck builds a player per slot on a fresh Output.
func NewDeck(backend Backend, logger *slog.Logger, slots []string, opts ...Option) *Deck {
	output := NewOutput()
	players := make(map[string]*Player, len(slots))
	for _, slot := range slots {
		players[slot] = NewPlayer(slot, backend, output, logger, opts...)
	}
	return &Deck{output: output, players: players}
}

// Player looks up a slot.
func (d *Deck) Player(slot string) (*Player, error) {
	p, ok := d.players[slot]
	if !ok {
		return nil, apperrors.Wrap(prayer.CodeInvalidInput, fmt.Sprintf("unknown adhan slot %q", slot), nil)
	}
	return p, nil
}

// States returns every slot's state ordered by slot name.
func (d *Deck) States() []State {
	slots := make([]string, 0, len(d.players))
	for slot := range d.players {
		slots = append(slots, slot)
	}
	sort.Strings(slots)
	out := make([]State, 0, len(slots))
	for _, slot := range slots {
		out = append(out, d.players[slot].State())
	}
	return out
}

// Active returns the slot holding the output, or "".
func (d *Deck) Active() string {
	return d.output.Active()
}

// StopAll halts every slot.
func (d *Deck) StopAll() {
	for _, p := range d.players {
		p.Stop()
	}
}
