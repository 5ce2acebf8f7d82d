package config

import (
	callService "VoiceBridge/internal/api/call/service"
	"VoiceBridge/pkg/utils"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type AppConfig struct {
	Port       string
	Env        string
	BaseURL    string
	AudioDir   string
	AudioStore string

	TelnyxAPIKey       string
	TelnyxBaseURL      string
	TelnyxConnectionID string
	TelnyxFromNumber   string

	OpenAIAPIKey          string
	OpenAITranscribeModel string
	OpenAITTSModel        string
	OpenAITTSVoice        string

	ChatProvider   string
	ChatBaseURL    string
	ChatAPIKey     string
	ChatModel      string
	GeminiAPIKey   string
	GeminiModel    string
	SystemPrompt   string
	GreetingText   string
	OutboundSecret string

	AccessPin     string
	AccessPinHash string

	Call callService.Config
}

const (
	AudioStoreLocal = "local"
	AudioStoreS3    = "s3"

	ChatProviderOpenAI = "openai"
	ChatProviderGemini = "gemini"
)

// LoadAppConfig reads the process environment. It fails only on values
// that are present but malformed.
func LoadAppConfig() (*AppConfig, error) {
	cfg := &AppConfig{
		Port:       getEnv("APP_PORT", "3023"),
		Env:        os.Getenv("APP_ENV"),
		BaseURL:    strings.TrimRight(os.Getenv("BASE_URL"), "/"),
		AudioDir:   getEnv("AUDIO_DIR", "./audio"),
		AudioStore: strings.ToLower(getEnv("AUDIO_STORE", AudioStoreLocal)),

		TelnyxAPIKey:       os.Getenv("TELNYX_API_KEY"),
		TelnyxBaseURL:      os.Getenv("TELNYX_API_BASE_URL"),
		TelnyxConnectionID: os.Getenv("TELNYX_CONNECTION_ID"),
		TelnyxFromNumber:   os.Getenv("TELNYX_FROM_NUMBER"),

		OpenAIAPIKey:          os.Getenv("OPENAI_API_KEY"),
		OpenAITranscribeModel: getEnv("OPENAI_TRANSCRIBE_MODEL", "gpt-4o-transcribe"),
		OpenAITTSModel:        getEnv("OPENAI_TTS_MODEL", "gpt-4o-mini-tts"),
		OpenAITTSVoice:        getEnv("OPENAI_TTS_VOICE", "alloy"),

		ChatProvider:   strings.ToLower(getEnv("CHAT_PROVIDER", ChatProviderOpenAI)),
		ChatBaseURL:    getEnv("OPENCLAW_BASE_URL", "http://localhost:18789/v1"),
		ChatAPIKey:     os.Getenv("OPENCLAW_API_KEY"),
		ChatModel:      os.Getenv("OPENCLAW_MODEL"),
		GeminiAPIKey:   os.Getenv("GEMINI_API_KEY"),
		GeminiModel:    os.Getenv("GEMINI_MODEL_NAME"),
		SystemPrompt:   os.Getenv("SYSTEM_PROMPT"),
		GreetingText:   os.Getenv("GREETING_TEXT"),
		OutboundSecret: os.Getenv("OUTBOUND_API_SECRET"),

		AccessPin:     os.Getenv("ACCESS_PIN"),
		AccessPinHash: os.Getenv("ACCESS_PIN_HASH"),
	}

	if cfg.ChatAPIKey == "" {
		cfg.ChatAPIKey = cfg.OpenAIAPIKey
	}

	switch cfg.AudioStore {
	case AudioStoreLocal, AudioStoreS3:
	default:
		return nil, fmt.Errorf("AUDIO_STORE must be %q or %q, got %q", AudioStoreLocal, AudioStoreS3, cfg.AudioStore)
	}
	switch cfg.ChatProvider {
	case ChatProviderOpenAI, ChatProviderGemini:
	default:
		return nil, fmt.Errorf("CHAT_PROVIDER must be %q or %q, got %q", ChatProviderOpenAI, ChatProviderGemini, cfg.ChatProvider)
	}

	pinCooldown, err := getSeconds("PIN_RETRY_COOLDOWN_SECS", 60)
	if err != nil {
		return nil, err
	}
	outboundCooldown, err := getSeconds("OUTBOUND_COOLDOWN_SECS", 60)
	if err != nil {
		return nil, err
	}

	call := callService.DefaultConfig()
	call.Whitelist = utils.New().SplitList(os.Getenv("WHITELIST_NUMBERS"))
	call.PinRetryCooldown = pinCooldown
	call.OutboundCooldown = outboundCooldown
	call.FromNumber = cfg.TelnyxFromNumber
	call.ConnectionID = cfg.TelnyxConnectionID
	call.WebhookURL = cfg.BaseURL + "/voice/webhook"
	if cfg.GreetingText != "" {
		call.GreetingText = cfg.GreetingText
	}
	cfg.Call = call

	return cfg, nil
}

func getEnv(key string, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getSeconds(key string, fallback int) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return time.Duration(fallback) * time.Second, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", key, raw)
	}
	return time.Duration(n) * time.Second, nil
}
