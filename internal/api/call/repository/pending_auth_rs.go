package callRepository

import (
	"VoiceBridge/internal/entity"
	"VoiceBridge/pkg/clock"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// PinLength is the number of DTMF digits compared against the access code.
const PinLength = 4

type pendingRecord struct {
	auth       entity.PendingAuth
	timer      clock.Timer
	timerToken uint64
	evaluating bool
}

// PendingAuthStore holds unlisted callers mid PIN entry, each with at most
// one armed entry timeout.
type PendingAuthStore struct {
	mu      sync.Mutex
	records map[string]*pendingRecord
	tokens  uint64
	log     *logrus.Logger
	now     func() time.Time
}

func NewPendingAuthStore(log *logrus.Logger) *PendingAuthStore {
	return &PendingAuthStore{
		records: make(map[string]*pendingRecord),
		log:     log,
		now:     time.Now,
	}
}

// Create starts a PIN challenge. An existing challenge for callID is kept,
// digits and timer included, and Create reports false.
func (s *PendingAuthStore) Create(callID, callerNumber string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[callID]; ok {
		return false
	}
	s.records[callID] = &pendingRecord{
		auth: entity.PendingAuth{
			CallID:       callID,
			CallerNumber: callerNumber,
			CreatedAt:    s.now(),
		},
	}
	s.log.WithFields(logrus.Fields{
		"call_id": callID,
		"caller":  callerNumber,
	}).Debug("Pending auth created")
	return true
}

func (s *PendingAuthStore) Exists(callID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.records[callID]
	return ok
}

func (s *PendingAuthStore) Get(callID string) (entity.PendingAuth, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[callID]
	if !ok {
		return entity.PendingAuth{}, false
	}
	return rec.auth, true
}

// AppendDigit accumulates one digit. complete is true exactly once, on the
// digit that brings the sequence to PinLength; digits arriving after that
// are dropped.
func (s *PendingAuthStore) AppendDigit(callID, digit string) (digits string, complete bool, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[callID]
	if !ok {
		return "", false, false
	}
	if rec.evaluating || len(rec.auth.Digits) >= PinLength {
		return rec.auth.Digits, false, true
	}

	rec.auth.Digits += digit
	if len(rec.auth.Digits) < PinLength {
		return rec.auth.Digits, false, true
	}

	rec.evaluating = true
	if rec.timer != nil {
		rec.timer.Stop()
		rec.timer = nil
	}
	return rec.auth.Digits[:PinLength], true, true
}

// ArmTimer replaces the entry timeout. schedule receives the token the
// callback must present to Expire.
func (s *PendingAuthStore) ArmTimer(callID string, schedule func(token uint64) clock.Timer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[callID]
	if !ok || rec.evaluating {
		return false
	}
	if rec.timer != nil {
		rec.timer.Stop()
	}

	s.tokens++
	rec.timerToken = s.tokens
	rec.timer = schedule(rec.timerToken)
	return true
}

// Expire removes the pending record if the timer identified by token is
// still the armed one.
func (s *PendingAuthStore) Expire(callID string, token uint64) (entity.PendingAuth, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[callID]
	if !ok || rec.timer == nil || rec.timerToken != token || rec.evaluating {
		return entity.PendingAuth{}, false
	}
	delete(s.records, callID)
	return rec.auth, true
}

// Delete discards the record and cancels its timer.
func (s *PendingAuthStore) Delete(callID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[callID]
	if !ok {
		return false
	}
	if rec.timer != nil {
		rec.timer.Stop()
	}
	delete(s.records, callID)
	s.log.WithField("call_id", callID).Debug("Pending auth discarded")
	return true
}

func (s *PendingAuthStore) HasTimer(callID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[callID]
	return ok && rec.timer != nil
}
