package call

import (
	"VoiceBridge/internal/entity"
	"context"
)

// CallControl drives the telephony provider. Any method may return
// ErrCallEnded when the call is gone.
type CallControl interface {
	Answer(ctx context.Context, callID string) error
	Reject(ctx context.Context, callID string) error
	Hangup(ctx context.Context, callID string) error
	StartPlayback(ctx context.Context, callID string, audioURL string, loop bool) error
	StopPlayback(ctx context.Context, callID string) error
	StartRecording(ctx context.Context, callID string, opts RecordingOptions) error
	StopRecording(ctx context.Context, callID string) error
	StopTranscription(ctx context.Context, callID string) error
	PlaceCall(ctx context.Context, req DialRequest) (string, error)
	DownloadRecording(ctx context.Context, recordingURL string, destPath string) error
}

// Cognition wraps speech and language models. Transcribe returns an empty
// string and Complete an apology when the backend fails.
type Cognition interface {
	Transcribe(ctx context.Context, audio []byte, filename string) string
	Complete(ctx context.Context, transcript []entity.Message) string
	SynthesizeSpeech(ctx context.Context, text string) ([]byte, error)
	SummarizeTaskAsOpeningLine(ctx context.Context, task string) string
}

// AudioStore hosts synthesized audio where the provider can fetch it.
type AudioStore interface {
	Save(ctx context.Context, name string, audio []byte) (string, error)
	URL(ctx context.Context, name string) (string, error)
	Exists(ctx context.Context, name string) bool
	Delete(ctx context.Context, name string) error
	TempPath(name string) string
}
