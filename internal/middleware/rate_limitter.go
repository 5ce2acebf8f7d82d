package middleware

import (
	"VoiceBridge/pkg/clock"
	"VoiceBridge/pkg/response"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

var (
	ErrTooManyRequests = response.NewError(http.StatusTooManyRequests, "too many requests")
)

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type rateLimiter struct {
	mutex     sync.Mutex
	buckets   map[string]*bucket
	rate      rate.Limit
	burstSize int
	idleTTL   time.Duration
	clock     clock.Clock
	lastSweep time.Time
}

func newRateLimiter(reqRate rate.Limit, burstSize int, idleTTL time.Duration, clk clock.Clock) *rateLimiter {
	return &rateLimiter{
		buckets:   make(map[string]*bucket),
		rate:      reqRate,
		burstSize: burstSize,
		idleTTL:   idleTTL,
		clock:     clk,
		lastSweep: clk.Now(),
	}
}

// GetLimiterFrom keeps one token bucket per client address. Buckets idle for
// longer than idleTTL are dropped on the next sweep.
func (r *rateLimiter) GetLimiterFrom(ip string) *rate.Limiter {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	now := r.clock.Now()
	if now.Sub(r.lastSweep) >= r.idleTTL {
		for key, b := range r.buckets {
			if now.Sub(b.lastSeen) >= r.idleTTL {
				delete(r.buckets, key)
			}
		}
		r.lastSweep = now
	}

	b, ok := r.buckets[ip]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(r.rate, r.burstSize)}
		r.buckets[ip] = b
	}
	b.lastSeen = now

	return b.limiter
}

func (r *rateLimiter) size() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return len(r.buckets)
}

// retryAfterSecs is the time to refill one token, rounded up.
func (r *rateLimiter) retryAfterSecs() int {
	if r.rate <= 0 || r.rate == rate.Inf {
		return 1
	}
	return int(math.Max(1, math.Ceil(1/float64(r.rate))))
}

func (m *middleware) NewRateLimiter(ctx *fiber.Ctx) error {
	clientIP := ctx.IP()
	limiter := m.rateLimitter.GetLimiterFrom(clientIP)

	if !limiter.Allow() {
		m.log.WithFields(logrus.Fields{
			"client_ip": clientIP,
			"path":      ctx.Path(),
		}).Warn("Too many requests")

		retry := m.rateLimitter.retryAfterSecs()
		ctx.Set(fiber.HeaderRetryAfter, strconv.Itoa(retry))
		return ctx.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"error":            ErrTooManyRequests.Error(),
			"code":             "RATE_LIMITED",
			"retry_after_secs": retry,
		})
	}

	return ctx.Next()
}
