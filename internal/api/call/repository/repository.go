package callRepository

import (
	"github.com/sirupsen/logrus"
)

// Repository is the process-lifetime registry of call state. Call ids
// partition every map it owns.
type Repository struct {
	Sessions *SessionStore
	Pending  *PendingAuthStore
	Attempts *AttemptLog
}

func New(log *logrus.Logger) *Repository {
	return &Repository{
		Sessions: NewSessionStore(log),
		Pending:  NewPendingAuthStore(log),
		Attempts: NewAttemptLog(),
	}
}
