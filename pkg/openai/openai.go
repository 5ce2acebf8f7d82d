package openai

import (
	"VoiceBridge/internal/entity"
	"VoiceBridge/pkg/cognition"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
)

type Config struct {
	APIKey          string
	TranscribeModel string
	TTSModel        string
	TTSVoice        string

	// Chat may point at any OpenAI compatible gateway.
	ChatAPIKey    string
	ChatBaseURL   string
	ChatModel     string
	ChatMaxTokens int
	SystemPrompt  string
}

type Client struct {
	audio  *openai.Client
	chat   *openai.Client
	config Config
	log    *logrus.Logger
}

var (
	_ cognition.Audio = (*Client)(nil)
	_ cognition.Chat  = (*Client)(nil)
)

func New(cfg Config, log *logrus.Logger) *Client {
	if cfg.TranscribeModel == "" {
		cfg.TranscribeModel = "gpt-4o-transcribe"
	}
	if cfg.TTSModel == "" {
		cfg.TTSModel = "gpt-4o-mini-tts"
	}
	if cfg.TTSVoice == "" {
		cfg.TTSVoice = string(openai.VoiceAlloy)
	}
	if cfg.ChatAPIKey == "" {
		cfg.ChatAPIKey = cfg.APIKey
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = openai.GPT4oMini
	}
	if cfg.ChatMaxTokens == 0 {
		cfg.ChatMaxTokens = 1500
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = cognition.DefaultSystemPrompt
	}

	chatConfig := openai.DefaultConfig(cfg.ChatAPIKey)
	if cfg.ChatBaseURL != "" {
		chatConfig.BaseURL = strings.TrimRight(cfg.ChatBaseURL, "/")
	}

	return &Client{
		audio:  openai.NewClient(cfg.APIKey),
		chat:   openai.NewClientWithConfig(chatConfig),
		config: cfg,
		log:    log,
	}
}

// NewWithClients is used to point both halves at a test server.
func NewWithClients(audio, chat *openai.Client, cfg Config, log *logrus.Logger) *Client {
	c := New(cfg, log)
	c.audio = audio
	c.chat = chat
	return c
}

func (c *Client) Transcribe(ctx context.Context, audio []byte, filename string) string {
	if len(audio) == 0 {
		return ""
	}

	resp, err := c.audio.CreateTranscription(ctx, openai.AudioRequest{
		Model:    c.config.TranscribeModel,
		Reader:   bytes.NewReader(audio),
		FilePath: filename,
	})
	if err != nil {
		c.log.WithError(err).Error("Transcription error")
		return ""
	}

	return resp.Text
}

func (c *Client) Complete(ctx context.Context, transcript []entity.Message) string {
	messages := make([]openai.ChatCompletionMessage, 0, len(transcript)+1)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: c.config.SystemPrompt,
	})
	for _, msg := range transcript {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}

	content, err := c.createChat(ctx, messages, c.config.ChatMaxTokens)
	if err != nil {
		c.log.WithError(err).Error("LLM error")
		return cognition.FallbackReply
	}
	return content
}

func (c *Client) SummarizeTaskAsOpeningLine(ctx context.Context, task string) string {
	content, err := c.createChat(ctx, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: cognition.TaskIntroSystemPrompt},
		{Role: openai.ChatMessageRoleUser, Content: "Task: " + task},
	}, 100)
	if err != nil || strings.TrimSpace(content) == "" {
		c.log.WithError(err).Error("Task intro error")
		return cognition.FallbackTaskIntro
	}
	return content
}

func (c *Client) SynthesizeSpeech(ctx context.Context, text string) ([]byte, error) {
	resp, err := c.audio.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(c.config.TTSModel),
		Input:          text,
		Voice:          openai.SpeechVoice(c.config.TTSVoice),
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return nil, fmt.Errorf("TTS error: %w", err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("read TTS audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, errors.New("TTS returned no audio")
	}
	return audio, nil
}

func (c *Client) createChat(ctx context.Context, messages []openai.ChatCompletionMessage, maxTokens int) (string, error) {
	resp, err := c.chat.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.config.ChatModel,
		Messages:  messages,
		MaxTokens: maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no response from chat completion")
	}
	return resp.Choices[0].Message.Content, nil
}
