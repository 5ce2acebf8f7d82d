package callService

import (
	"VoiceBridge/internal/api/call"
	callRepository "VoiceBridge/internal/api/call/repository"
	"VoiceBridge/pkg/bcrypt"
	"VoiceBridge/pkg/clock"
	"VoiceBridge/pkg/utils"
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

type ICallService interface {
	HandleEvent(ctx context.Context, event call.Event) error
	PlaceOutboundCall(ctx context.Context, req call.OutboundCallRequest) (*call.OutboundCallResponse, error)
	PrepareAssets(ctx context.Context) error
	ActiveCalls() int
}

type callService struct {
	log       *logrus.Logger
	repo      *callRepository.Repository
	control   call.CallControl
	cognition call.Cognition
	audio     call.AudioStore
	pins      bcrypt.IPinVerifier
	utils     utils.IUtils
	clock     clock.Clock
	config    Config
	gate      *Gate
	turns     *TurnController
}

type Config struct {
	Whitelist        []string      `json:"whitelist"`
	PinRetryCooldown time.Duration `json:"pin_retry_cooldown"`
	PinTimeout       time.Duration `json:"pin_timeout"`
	OutboundCooldown time.Duration `json:"outbound_cooldown"`

	RecordingCeiling time.Duration `json:"recording_ceiling"`
	RecordDelay      time.Duration `json:"record_delay"`
	InterruptDelay   time.Duration `json:"interrupt_delay"`
	CommandTimeout   time.Duration `json:"command_timeout"`
	Recording        call.RecordingOptions

	GreetingText  string `json:"greeting_text"`
	PinPromptText string `json:"pin_prompt_text"`
	ThinkingText  string `json:"thinking_text"`

	FromNumber   string `json:"from_number"`
	ConnectionID string `json:"connection_id"`
	WebhookURL   string `json:"webhook_url"`

	KeepAliveSentinel string `json:"keep_alive_sentinel"`
}

const (
	GreetingAsset  = "greeting.mp3"
	ThinkingAsset  = "thinking.mp3"
	PinPromptAsset = "pin_prompt.mp3"
)

func DefaultConfig() Config {
	return Config{
		PinRetryCooldown: 60 * time.Second,
		PinTimeout:       10 * time.Second,
		OutboundCooldown: 60 * time.Second,
		RecordingCeiling: 8 * time.Second,
		RecordDelay:      500 * time.Millisecond,
		InterruptDelay:   300 * time.Millisecond,
		CommandTimeout:   15 * time.Second,
		Recording: call.RecordingOptions{
			Format:             "mp3",
			SilenceTimeoutSecs: 2,
			MaxLengthSecs:      120,
		},
		GreetingText:      "Hello! How can I help you today?",
		PinPromptText:     "Please enter your four digit access code.",
		ThinkingText:      "Hmm, let me think.",
		KeepAliveSentinel: "HEARTBEAT_OK",
	}
}

// withDefaults fills zero durations so a partially populated Config stays usable.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.PinRetryCooldown == 0 {
		c.PinRetryCooldown = d.PinRetryCooldown
	}
	if c.PinTimeout == 0 {
		c.PinTimeout = d.PinTimeout
	}
	if c.OutboundCooldown == 0 {
		c.OutboundCooldown = d.OutboundCooldown
	}
	if c.RecordingCeiling == 0 {
		c.RecordingCeiling = d.RecordingCeiling
	}
	if c.RecordDelay == 0 {
		c.RecordDelay = d.RecordDelay
	}
	if c.InterruptDelay == 0 {
		c.InterruptDelay = d.InterruptDelay
	}
	if c.CommandTimeout == 0 {
		c.CommandTimeout = d.CommandTimeout
	}
	if c.Recording.Format == "" {
		c.Recording = d.Recording
	}
	if c.GreetingText == "" {
		c.GreetingText = d.GreetingText
	}
	if c.PinPromptText == "" {
		c.PinPromptText = d.PinPromptText
	}
	if c.ThinkingText == "" {
		c.ThinkingText = d.ThinkingText
	}
	if c.KeepAliveSentinel == "" {
		c.KeepAliveSentinel = d.KeepAliveSentinel
	}
	return c
}

func NewCallService(
	log *logrus.Logger,
	repo *callRepository.Repository,
	control call.CallControl,
	cognition call.Cognition,
	audio call.AudioStore,
	pins bcrypt.IPinVerifier,
	utils utils.IUtils,
	clk clock.Clock,
	config Config,
) ICallService {
	return newCallService(log, repo, control, cognition, audio, pins, utils, clk, config)
}

func newCallService(
	log *logrus.Logger,
	repo *callRepository.Repository,
	control call.CallControl,
	cognition call.Cognition,
	audio call.AudioStore,
	pins bcrypt.IPinVerifier,
	utils utils.IUtils,
	clk clock.Clock,
	config Config,
) *callService {
	config = config.withDefaults()

	s := &callService{
		log:       log,
		repo:      repo,
		control:   control,
		cognition: cognition,
		audio:     audio,
		pins:      pins,
		utils:     utils,
		clock:     clk,
		config:    config,
		gate:      NewGate(config.Whitelist, NewOutboundLimiter(clk, config.OutboundCooldown)),
	}
	s.turns = NewTurnController(clk, config.RecordingCeiling, s.onRecordingCeiling)
	return s
}

func (s *callService) ActiveCalls() int {
	return s.repo.Sessions.Count()
}
