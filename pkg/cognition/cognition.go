package cognition

import (
	"VoiceBridge/internal/entity"
	"context"
)

const (
	DefaultSystemPrompt = `You are being called per telephone. Keep your answers brief and conversational as they will be spoken over the phone.
Do not use markdown, bold, italics, or any kind of formatting.
Speak as a human would. Do not ever output technical tokens, heartbeat messages, or internal status updates like "HEARTBEAT_OK".
Use your memory to personalize the answer.
Always respond on the first response with a chat message while on the phone, tool calling can happen after.`

	TaskIntroSystemPrompt = "You are an AI assistant helping a user make a phone call. " +
		"Reply with only the first sentence you will say when the callee picks up."

	FallbackReply     = "I'm sorry, I encountered an error."
	FallbackTaskIntro = "Hello, I'm calling regarding a request from my user."
)

type Audio interface {
	Transcribe(ctx context.Context, audio []byte, filename string) string
	SynthesizeSpeech(ctx context.Context, text string) ([]byte, error)
}

type Chat interface {
	Complete(ctx context.Context, transcript []entity.Message) string
	SummarizeTaskAsOpeningLine(ctx context.Context, task string) string
}

// Composite routes speech work and language work to separate backends.
type Composite struct {
	Audio
	Chat
}

func Compose(audio Audio, chat Chat) *Composite {
	return &Composite{Audio: audio, Chat: chat}
}
