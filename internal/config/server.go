package config

import (
	"VoiceBridge/internal/api/call"
	callHandler "VoiceBridge/internal/api/call/handler"
	callRepository "VoiceBridge/internal/api/call/repository"
	callService "VoiceBridge/internal/api/call/service"
	"VoiceBridge/internal/middleware"
	"VoiceBridge/pkg/audio"
	"VoiceBridge/pkg/bcrypt"
	"VoiceBridge/pkg/clock"
	"VoiceBridge/pkg/cognition"
	"VoiceBridge/pkg/gemini"
	"VoiceBridge/pkg/openai"
	"VoiceBridge/pkg/s3"
	"VoiceBridge/pkg/telnyx"
	"VoiceBridge/pkg/utils"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type ServerOption func(*Server) error

type Server struct {
	engine       *fiber.App
	log          *logrus.Logger
	config       *AppConfig
	middleware   middleware.Middleware
	validator    *validator.Validate
	utils        utils.IUtils
	clock        clock.Clock
	pins         bcrypt.IPinVerifier
	callControl  call.CallControl
	cognition    call.Cognition
	audioStore   call.AudioStore
	localAudio   *audio.LocalStore
	s3Client     s3.ItfS3
	geminiClient gemini.IGemini
	callHandler  *callHandler.CallHandler
	handlers     []handler
}

type handler interface {
	Start(srv fiber.Router)
}

func NewServer(options ...ServerOption) (*Server, error) {
	server := &Server{}

	for _, option := range options {
		if err := option(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if server.engine == nil {
		return nil, fmt.Errorf("fiber app is required")
	}
	if server.log == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if server.config == nil {
		return nil, fmt.Errorf("app config is required")
	}
	if server.callControl == nil || server.cognition == nil || server.audioStore == nil {
		return nil, fmt.Errorf("call control, cognition and audio store are required")
	}
	if server.clock == nil {
		server.clock = clock.New()
	}
	if server.utils == nil {
		server.utils = utils.New()
	}

	return server, nil
}

func WithFiber(fiberApp *fiber.App) ServerOption {
	return func(s *Server) error {
		s.engine = fiberApp
		return nil
	}
}

func WithLogger(logger *logrus.Logger) ServerOption {
	return func(s *Server) error {
		s.log = logger
		return nil
	}
}

func WithValidator(validator *validator.Validate) ServerOption {
	return func(s *Server) error {
		s.validator = validator
		return nil
	}
}

func WithAppConfig(cfg *AppConfig) ServerOption {
	return func(s *Server) error {
		s.config = cfg
		return nil
	}
}

func WithClock(clk clock.Clock) ServerOption {
	return func(s *Server) error {
		s.clock = clk
		return nil
	}
}

func WithMiddleware() ServerOption {
	return func(s *Server) error {
		if s.log == nil || s.config == nil {
			return fmt.Errorf("logger and app config must be initialized before middleware")
		}
		if s.config.OutboundSecret == "" {
			s.log.Warn("OUTBOUND_API_SECRET is empty, outbound call API will reject every request")
		}
		var opts []middleware.Option
		if s.clock != nil {
			opts = append(opts, middleware.WithClock(s.clock))
		}
		s.middleware = middleware.New(s.log, s.config.OutboundSecret, opts...)
		return nil
	}
}

func WithUtils() ServerOption {
	return func(s *Server) error {
		s.utils = utils.New()
		return nil
	}
}

func WithPinVerifier() ServerOption {
	return func(s *Server) error {
		pins, err := bcrypt.New(s.config.AccessPin, s.config.AccessPinHash)
		if err != nil {
			return fmt.Errorf("failed to load access PIN: %w", err)
		}
		if !pins.Configured() {
			s.log.Warn("No access PIN configured, unlisted callers can never authenticate")
		}
		s.pins = pins
		return nil
	}
}

func WithCallControl() ServerOption {
	return func(s *Server) error {
		if s.config.TelnyxAPIKey == "" {
			return fmt.Errorf("TELNYX_API_KEY is required")
		}
		s.callControl = telnyx.New(s.config.TelnyxAPIKey, s.config.TelnyxBaseURL, s.log)
		return nil
	}
}

func WithS3Client() ServerOption {
	return func(s *Server) error {
		if s.config.AudioStore != AudioStoreS3 {
			return nil
		}
		client, err := s3.New()
		if err != nil {
			if s.log != nil {
				s.log.Errorf("Failed to initialize S3 client: %v", err)
			}
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		s.s3Client = client
		return nil
	}
}

// WithAudioStore picks the S3 store when a client was configured, otherwise
// the local directory served by Fiber.
func WithAudioStore() ServerOption {
	return func(s *Server) error {
		if s.s3Client != nil {
			store, err := audio.NewS3Store(s.s3Client, filepath.Join(os.TempDir(), "voicebridge"), s.log)
			if err != nil {
				return err
			}
			s.audioStore = store
			return nil
		}

		if s.config.BaseURL == "" {
			return fmt.Errorf("BASE_URL is required to serve local audio")
		}
		store, err := audio.NewLocalStore(s.config.AudioDir, s.config.BaseURL, s.log)
		if err != nil {
			return err
		}
		s.localAudio = store
		s.audioStore = store
		return nil
	}
}

func WithGeminiClient() ServerOption {
	return func(s *Server) error {
		if s.config.ChatProvider != ChatProviderGemini {
			return nil
		}
		client, err := gemini.NewGeminiClient(s.config.GeminiAPIKey, s.config.GeminiModel, s.config.SystemPrompt, s.log)
		if err != nil {
			if s.log != nil {
				s.log.Errorf("Failed to create Gemini client: %v", err)
			}
			return fmt.Errorf("failed to create Gemini client: %w", err)
		}
		s.geminiClient = client
		return nil
	}
}

// WithCognition always uses OpenAI for speech. Chat goes to Gemini when
// that client was configured.
func WithCognition() ServerOption {
	return func(s *Server) error {
		if s.config.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required")
		}
		oai := openai.New(openai.Config{
			APIKey:          s.config.OpenAIAPIKey,
			TranscribeModel: s.config.OpenAITranscribeModel,
			TTSModel:        s.config.OpenAITTSModel,
			TTSVoice:        s.config.OpenAITTSVoice,
			ChatAPIKey:      s.config.ChatAPIKey,
			ChatBaseURL:     s.config.ChatBaseURL,
			ChatModel:       s.config.ChatModel,
			SystemPrompt:    s.config.SystemPrompt,
		}, s.log)

		var chat cognition.Chat = oai
		if s.geminiClient != nil {
			chat = s.geminiClient
		}
		s.cognition = cognition.Compose(oai, chat)
		return nil
	}
}

func (s *Server) RegisterHandler() {
	repo := callRepository.New(s.log)
	callServices := callService.NewCallService(
		s.log,
		repo,
		s.callControl,
		s.cognition,
		s.audioStore,
		s.pins,
		s.utils,
		s.clock,
		s.config.Call,
	)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := callServices.PrepareAssets(ctx); err != nil {
		s.log.WithError(err).Warn("Some audio assets could not be rendered, they will be synthesized on demand")
	}

	s.callHandler = callHandler.New(s.log, s.validator, s.middleware, callServices)
	s.handlers = append(s.handlers, s.callHandler)
}

func (s *Server) Run() error {
	s.engine.Use(s.middleware.NewRequestIDMiddleware())
	s.engine.Use(middleware.LoggerConfig())

	if s.localAudio != nil {
		s.engine.Static(audio.PublicPath, s.localAudio.Dir())
	}

	for _, h := range s.handlers {
		h.Start(s.engine)
	}

	return s.engine.Listen(fmt.Sprintf(":%s", s.config.Port))
}

// Shutdown stops accepting requests and waits for in-flight webhook events.
func (s *Server) Shutdown(timeout time.Duration) error {
	err := s.engine.ShutdownWithTimeout(timeout)
	if s.callHandler != nil {
		s.callHandler.Wait()
	}
	if s.geminiClient != nil {
		s.geminiClient.Close()
	}
	return err
}
