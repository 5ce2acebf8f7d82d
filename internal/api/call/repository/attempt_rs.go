package callRepository

import (
	"sync"
	"time"
)

// AttemptLog remembers when each unlisted caller was last challenged.
type AttemptLog struct {
	mu   sync.Mutex
	last map[string]time.Time
}

func NewAttemptLog() *AttemptLog {
	return &AttemptLog{last: make(map[string]time.Time)}
}

// Admit records an attempt at now unless the caller's previous admitted
// attempt is younger than cooldown. Rejections leave the log untouched.
func (l *AttemptLog) Admit(caller string, now time.Time, cooldown time.Duration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if prev, ok := l.last[caller]; ok && now.Sub(prev) < cooldown {
		return false
	}
	l.last[caller] = now
	return true
}

func (l *AttemptLog) Last(caller string) (time.Time, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	t, ok := l.last[caller]
	return t, ok
}
