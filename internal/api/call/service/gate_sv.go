package callService

import (
	"VoiceBridge/pkg/clock"
	"sync"
	"time"
)

// Gate decides who may talk to the assistant and how often it may dial out.
type Gate struct {
	allow    map[string]struct{}
	outbound *OutboundLimiter
}

func NewGate(whitelist []string, outbound *OutboundLimiter) *Gate {
	allow := make(map[string]struct{}, len(whitelist))
	for _, n := range whitelist {
		allow[n] = struct{}{}
	}
	return &Gate{allow: allow, outbound: outbound}
}

// IsAllowed is true for everyone when no allow-list is configured.
func (g *Gate) IsAllowed(number string) bool {
	if len(g.allow) == 0 {
		return true
	}
	_, ok := g.allow[number]
	return ok
}

func (g *Gate) AcquireOutbound() (time.Duration, bool) {
	return g.outbound.Acquire()
}

// OutboundLimiter admits one outbound call per cooldown window, process
// wide. Only admitted requests move the window.
type OutboundLimiter struct {
	mu       sync.Mutex
	clock    clock.Clock
	cooldown time.Duration
	last     time.Time
	used     bool
}

func NewOutboundLimiter(clk clock.Clock, cooldown time.Duration) *OutboundLimiter {
	return &OutboundLimiter{clock: clk, cooldown: cooldown}
}

// Acquire returns how long to wait when the request is rejected.
func (l *OutboundLimiter) Acquire() (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	if l.used {
		if elapsed := now.Sub(l.last); elapsed < l.cooldown {
			return l.cooldown - elapsed, false
		}
	}

	l.last = now
	l.used = true
	return 0, true
}
