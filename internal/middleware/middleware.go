package middleware

import (
	"VoiceBridge/pkg/clock"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

type Middleware interface {
	NewRateLimiter(ctx *fiber.Ctx) error
	NewTokenMiddleware(ctx *fiber.Ctx) error
	NewRequestIDMiddleware() fiber.Handler
	GetRequestID(ctx *fiber.Ctx) string
}

type middleware struct {
	token               *tokenMiddleware
	rateLimitter        *rateLimiter
	requestIDMiddleware fiber.Handler
	log                 *logrus.Logger
}

type options struct {
	rate    rate.Limit
	burst   int
	idleTTL time.Duration
	clock   clock.Clock
}

type Option func(*options)

// WithRate sets the per-client token bucket for the operator API.
func WithRate(perSecond float64, burst int) Option {
	return func(o *options) {
		o.rate = rate.Limit(perSecond)
		o.burst = burst
	}
}

// WithClock overrides the clock used for request ids and bucket eviction.
func WithClock(clk clock.Clock) Option {
	return func(o *options) {
		o.clock = clk
	}
}

// New wires the shared middleware. tokenSecret signs operator tokens for the
// outbound call API; an empty secret rejects every token.
func New(logger *logrus.Logger, tokenSecret string, opts ...Option) Middleware {
	o := options{
		rate:    5,
		burst:   10,
		idleTTL: 10 * time.Minute,
		clock:   clock.New(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &middleware{
		token:               newTokenMiddleware(tokenSecret),
		rateLimitter:        newRateLimiter(o.rate, o.burst, o.idleTTL, o.clock),
		requestIDMiddleware: newRequestIDMiddleware(o.clock),
		log:                 logger,
	}
}

func (m *middleware) GetRequestID(ctx *fiber.Ctx) string {
	requestID, ok := ctx.Locals(RequestIDKey).(string)
	if !ok || requestID == "" {
		return "unknown"
	}
	return requestID
}

func (m *middleware) NewRequestIDMiddleware() fiber.Handler {
	return m.requestIDMiddleware
}
