package callHandler

import (
	callService "VoiceBridge/internal/api/call/service"
	"VoiceBridge/internal/middleware"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type CallHandler struct {
	log         *logrus.Logger
	validator   *validator.Validate
	middleware  middleware.Middleware
	callService callService.ICallService
	// eventTimeout bounds the work done for one webhook event.
	eventTimeout time.Duration
	// events serializes webhook work per call id.
	events *mailbox
}

func New(
	log *logrus.Logger,
	validate *validator.Validate,
	middleware middleware.Middleware,
	cs callService.ICallService,
) *CallHandler {
	return &CallHandler{
		log:          log,
		validator:    validate,
		middleware:   middleware,
		callService:  cs,
		eventTimeout: 2 * time.Minute,
		events:       newMailbox(),
	}
}

func (h *CallHandler) Start(srv fiber.Router) {
	srv.Get("/health", h.Health)

	// Provider webhooks never carry our bearer token.
	voice := srv.Group("/voice")
	voice.Post("/webhook", h.HandleWebhook)

	calls := srv.Group("/api/v1/calls")
	calls.Use(h.middleware.NewRateLimiter)
	calls.Use(h.middleware.NewTokenMiddleware)
	calls.Post("/outbound", h.PlaceOutboundCall)
}

// Wait blocks until every dispatched webhook event has been handled.
func (h *CallHandler) Wait() {
	h.events.wait()
}
