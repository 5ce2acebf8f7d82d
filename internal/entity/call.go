package entity

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// CallSession is the conversational state of one authenticated call.
type CallSession struct {
	CallID              string
	Transcript          []Message
	IsProcessing        bool
	AwaitingUserInput   bool
	ProcessedRecordings map[string]struct{}
	AudioArtifacts      []string
	CreatedAt           time.Time
}

// PendingAuth tracks an unlisted caller while the access PIN is collected.
type PendingAuth struct {
	CallID       string
	CallerNumber string
	Digits       string
	CreatedAt    time.Time
}
