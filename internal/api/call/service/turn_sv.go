package callService

import (
	"VoiceBridge/pkg/clock"
	"sync"
	"time"
)

type turnTimer struct {
	timer clock.Timer
}

// TurnController owns the two deadlines of a listening turn: the deferred
// start of a recording and the ceiling that force-stops it. Each call has
// at most one of each, and arming always replaces the previous one.
type TurnController struct {
	mu       sync.Mutex
	clock    clock.Clock
	ceiling  time.Duration
	onExpire func(callID string)
	ceilings map[string]*turnTimer
	starts   map[string]*turnTimer
}

func NewTurnController(clk clock.Clock, ceiling time.Duration, onExpire func(callID string)) *TurnController {
	return &TurnController{
		clock:    clk,
		ceiling:  ceiling,
		onExpire: onExpire,
		ceilings: make(map[string]*turnTimer),
		starts:   make(map[string]*turnTimer),
	}
}

// Arm (re)starts the speech ceiling for callID.
func (c *TurnController) Arm(callID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.ceilings[callID]; ok {
		old.timer.Stop()
	}

	entry := &turnTimer{}
	entry.timer = c.clock.AfterFunc(c.ceiling, func() {
		if c.take(c.ceilings, callID, entry) {
			c.onExpire(callID)
		}
	})
	c.ceilings[callID] = entry
}

// Defer schedules start to run after d, replacing any start still pending.
func (c *TurnController) Defer(callID string, d time.Duration, start func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.starts[callID]; ok {
		old.timer.Stop()
	}

	entry := &turnTimer{}
	entry.timer = c.clock.AfterFunc(d, func() {
		if c.take(c.starts, callID, entry) {
			start()
		}
	})
	c.starts[callID] = entry
}

// Cancel drops both deadlines. Safe when nothing is armed.
func (c *TurnController) Cancel(callID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, m := range []map[string]*turnTimer{c.ceilings, c.starts} {
		if t, ok := m[callID]; ok {
			t.timer.Stop()
			delete(m, callID)
		}
	}
}

// Recording reports whether a ceiling is armed, i.e. a recording is live.
func (c *TurnController) Recording(callID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.ceilings[callID]
	return ok
}

// startPending reports whether a deferred recording start is scheduled.
func (c *TurnController) startPending(callID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.starts[callID]
	return ok
}

// take claims a fired timer only if it is still the current one.
func (c *TurnController) take(m map[string]*turnTimer, callID string, entry *turnTimer) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if m[callID] != entry {
		return false
	}
	delete(m, callID)
	return true
}
