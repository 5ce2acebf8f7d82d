package gemini

import (
	"VoiceBridge/internal/entity"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/require"
)

func TestSplitTranscript(t *testing.T) {
	history, last := splitTranscript([]entity.Message{
		{Role: entity.RoleAssistant, Content: "Hello"},
		{Role: entity.RoleUser, Content: "what time is it"},
	})

	require.Equal(t, "what time is it", last)
	require.Len(t, history, 1)
	require.Equal(t, "model", history[0].Role)
	require.Equal(t, genai.Text("Hello"), history[0].Parts[0])

	history, last = splitTranscript(nil)
	require.Nil(t, history)
	require.Empty(t, last)
}

func TestFirstText(t *testing.T) {
	_, err := firstText(&genai.GenerateContentResponse{})
	require.Error(t, err)

	text, err := firstText(&genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text("It is "), genai.Text("noon.")}},
		}},
	})
	require.NoError(t, err)
	require.Equal(t, "It is noon.", text)
}
