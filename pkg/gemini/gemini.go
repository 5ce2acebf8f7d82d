package gemini

import (
	"VoiceBridge/internal/entity"
	"VoiceBridge/pkg/cognition"
	"context"
	"errors"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

type IGemini interface {
	cognition.Chat
	Close()
}

type geminiClient struct {
	modelName    string
	systemPrompt string
	client       *genai.Client
	log          *logrus.Logger
}

func NewGeminiClient(apiKey string, modelName string, systemPrompt string, log *logrus.Logger) (IGemini, error) {
	if apiKey == "" {
		return nil, errors.New("gemini API key is required")
	}
	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}
	if systemPrompt == "" {
		systemPrompt = cognition.DefaultSystemPrompt
	}

	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}

	return &geminiClient{
		modelName:    modelName,
		systemPrompt: systemPrompt,
		client:       client,
		log:          log,
	}, nil
}

func (g *geminiClient) Complete(ctx context.Context, transcript []entity.Message) string {
	history, last := splitTranscript(transcript)
	if last == "" {
		return cognition.FallbackReply
	}

	model := g.client.GenerativeModel(g.modelName)
	model.SystemInstruction = genai.NewUserContent(genai.Text(g.systemPrompt))
	model.SetMaxOutputTokens(1500)

	cs := model.StartChat()
	cs.History = history

	res, err := cs.SendMessage(ctx, genai.Text(last))
	if err != nil {
		g.log.WithError(err).Error("Gemini chat error")
		return cognition.FallbackReply
	}

	text, err := firstText(res)
	if err != nil {
		g.log.WithError(err).Error("Gemini chat error")
		return cognition.FallbackReply
	}
	return text
}

func (g *geminiClient) SummarizeTaskAsOpeningLine(ctx context.Context, task string) string {
	model := g.client.GenerativeModel(g.modelName)
	model.SystemInstruction = genai.NewUserContent(genai.Text(cognition.TaskIntroSystemPrompt))
	model.SetMaxOutputTokens(100)

	res, err := model.GenerateContent(ctx, genai.Text("Task: "+task))
	if err != nil {
		g.log.WithError(err).Error("Gemini task intro error")
		return cognition.FallbackTaskIntro
	}

	text, err := firstText(res)
	if err != nil || strings.TrimSpace(text) == "" {
		return cognition.FallbackTaskIntro
	}
	return text
}

func (g *geminiClient) Close() {
	if g.client != nil {
		g.client.Close()
	}
}

// splitTranscript maps the conversation onto Gemini roles. The final user
// message is returned separately since it is what gets sent.
func splitTranscript(transcript []entity.Message) ([]*genai.Content, string) {
	if len(transcript) == 0 {
		return nil, ""
	}

	lastIdx := len(transcript) - 1
	if transcript[lastIdx].Role != entity.RoleUser {
		return toContents(transcript), "Continue the conversation."
	}
	return toContents(transcript[:lastIdx]), transcript[lastIdx].Content
}

func toContents(msgs []entity.Message) []*genai.Content {
	out := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		role := "user"
		if m.Role == entity.RoleAssistant {
			role = "model"
		}
		out = append(out, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(m.Content)}})
	}
	return out
}

func firstText(res *genai.GenerateContentResponse) (string, error) {
	if res == nil || len(res.Candidates) == 0 || res.Candidates[0].Content == nil || len(res.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("no response from Gemini API")
	}

	var sb strings.Builder
	for _, part := range res.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	if sb.Len() == 0 {
		return "", errors.New("unexpected response format from Gemini API")
	}
	return sb.String(), nil
}
