package callRepository

import (
	"VoiceBridge/internal/entity"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// MaxTranscriptMessages bounds the prompt sent to the completion backend.
const MaxTranscriptMessages = 20

// SessionStore holds authenticated call sessions. Reads of a missing
// session return zero values and writes to one are no-ops, except
// AppendMessage which creates it. Late webhooks for a torn-down call rely
// on this.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*entity.CallSession
	log      *logrus.Logger
	now      func() time.Time
}

func NewSessionStore(log *logrus.Logger) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*entity.CallSession),
		log:      log,
		now:      time.Now,
	}
}

// Create registers a fresh session. It reports false and leaves the live
// session untouched when callID is already registered.
func (s *SessionStore) Create(callID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[callID]; ok {
		return false
	}
	s.sessions[callID] = s.newSession(callID)
	s.log.WithField("call_id", callID).Debug("Session created")
	return true
}

// Destroy removes the session and returns what it held so the caller can
// release the session's audio artifacts.
func (s *SessionStore) Destroy(callID string) (entity.CallSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[callID]
	if !ok {
		return entity.CallSession{}, false
	}
	delete(s.sessions, callID)
	s.log.WithField("call_id", callID).Debug("Session destroyed")

	return *sess, true
}

func (s *SessionStore) Exists(callID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.sessions[callID]
	return ok
}

func (s *SessionStore) AppendMessage(callID string, msg entity.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[callID]
	if !ok {
		sess = s.newSession(callID)
		s.sessions[callID] = sess
	}
	appendTrimmed(sess, msg)
}

// AppendIfActive appends only when the session still exists, so a handler
// resuming after a hangup cannot resurrect the call.
func (s *SessionStore) AppendIfActive(callID string, msg entity.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[callID]
	if !ok {
		return false
	}
	appendTrimmed(sess, msg)
	return true
}

func (s *SessionStore) GetMessages(callID string) []entity.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[callID]
	if !ok {
		return []entity.Message{}
	}

	out := make([]entity.Message, len(sess.Transcript))
	copy(out, sess.Transcript)
	return out
}

func (s *SessionStore) LastMessage(callID string) (entity.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[callID]
	if !ok || len(sess.Transcript) == 0 {
		return entity.Message{}, false
	}
	return sess.Transcript[len(sess.Transcript)-1], true
}

func (s *SessionStore) SetProcessing(callID string, v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[callID]; ok {
		sess.IsProcessing = v
	}
}

func (s *SessionStore) IsProcessing(callID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[callID]
	return ok && sess.IsProcessing
}

func (s *SessionStore) SetAwaitingInput(callID string, v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[callID]; ok {
		sess.AwaitingUserInput = v
	}
}

func (s *SessionStore) IsAwaitingInput(callID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[callID]
	return ok && sess.AwaitingUserInput
}

// SetTurnState sets both turn flags in one step.
func (s *SessionStore) SetTurnState(callID string, processing, awaiting bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[callID]
	if !ok {
		return false
	}
	sess.IsProcessing = processing
	sess.AwaitingUserInput = awaiting
	return true
}

// FinishPlayback clears the processing flag and, when the session was
// awaiting input, consumes that flag. It reports whether the session exists
// and whether it is now the user's turn.
func (s *SessionStore) FinishPlayback(callID string) (exists bool, userTurn bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[callID]
	if !ok {
		return false, false
	}
	sess.IsProcessing = false
	if !sess.AwaitingUserInput {
		return true, false
	}
	sess.AwaitingUserInput = false
	return true, true
}

func (s *SessionStore) HasProcessedRecording(callID, url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[callID]
	if !ok {
		return false
	}
	_, done := sess.ProcessedRecordings[url]
	return done
}

func (s *SessionStore) MarkProcessedRecording(callID, url string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[callID]; ok {
		sess.ProcessedRecordings[url] = struct{}{}
	}
}

// ClaimRecording admits a saved recording for processing at most once. It
// refuses when the session is gone, busy, or has already seen the url;
// otherwise it marks the url processed and the session processing.
func (s *SessionStore) ClaimRecording(callID, url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[callID]
	if !ok || sess.IsProcessing {
		return false
	}
	if _, done := sess.ProcessedRecordings[url]; done {
		return false
	}

	sess.ProcessedRecordings[url] = struct{}{}
	sess.IsProcessing = true
	sess.AwaitingUserInput = false
	return true
}

func (s *SessionStore) AddArtifact(callID, name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[callID]
	if !ok {
		return false
	}
	sess.AudioArtifacts = append(sess.AudioArtifacts, name)
	return true
}

func (s *SessionStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *SessionStore) newSession(callID string) *entity.CallSession {
	return &entity.CallSession{
		CallID:              callID,
		Transcript:          []entity.Message{},
		ProcessedRecordings: make(map[string]struct{}),
		CreatedAt:           s.now(),
	}
}

func appendTrimmed(sess *entity.CallSession, msg entity.Message) {
	sess.Transcript = append(sess.Transcript, msg)
	if over := len(sess.Transcript) - MaxTranscriptMessages; over > 0 {
		trimmed := make([]entity.Message, MaxTranscriptMessages)
		copy(trimmed, sess.Transcript[over:])
		sess.Transcript = trimmed
	}
}
