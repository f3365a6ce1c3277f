package adhan

import "sync"

// Output is the single audio resource shared by every player. Claiming it
// halts whichever player held it before.
type Output struct {
	mu     sync.Mutex
	active *Player
}

// NewOutput constructs an unclaimed Output.
func NewOutput() *Output {
	return &Output{}
}

// claim halts the previous holder, makes p the active player and runs start,
// all under the output lock. A later claim therefore always halts the
// generation start opened, never a newer one.
func (o *Output) claim(p *Player, start func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.active != nil && o.active != p {
		o.active.halt()
	}
	o.active = p
	start()
}

// release clears p as the active player if it still holds the output.
func (o *Output) release(p *Player) {
	o.mu.Lock()
	if o.active == p {
		o.active = nil
	}
	o.mu.Unlock()
}

// Active returns the slot currently holding the output, or "".
func (o *Output) Active() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.active == nil {
		return ""
	}
	return o.active.slot
}
