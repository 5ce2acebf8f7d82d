package middleware

import (
	"VoiceBridge/pkg/clock"
	jwtPkg "VoiceBridge/pkg/jwt"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func newTestApp(secret string) *fiber.App {
	log := logrus.New()
	log.SetOutput(io.Discard)
	m := New(log, secret)

	app := fiber.New()
	app.Use(m.NewRequestIDMiddleware())
	app.Get("/private", m.NewTokenMiddleware, func(c *fiber.Ctx) error {
		operator, err := jwtPkg.GetOperator(c)
		if err != nil {
			return err
		}
		return c.SendString(operator + " " + m.GetRequestID(c))
	})
	return app
}

func TestTokenMiddleware(t *testing.T) {
	app := newTestApp("s3cret")

	token, _, err := jwtPkg.Sign("s3cret", "ops", time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest(fiber.MethodGet, "/private", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set(RequestIDKey, "req-1")
	res, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, res.StatusCode)

	body, _ := io.ReadAll(res.Body)
	require.Equal(t, "ops req-1", string(body))
}

func TestTokenMiddlewareRejects(t *testing.T) {
	app := newTestApp("s3cret")

	wrong, _, err := jwtPkg.Sign("other", "ops", time.Minute)
	require.NoError(t, err)

	for _, header := range []string{"", "Basic abc", "Bearer ", "Bearer " + wrong} {
		req := httptest.NewRequest(fiber.MethodGet, "/private", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		res, err := app.Test(req)
		require.NoError(t, err)
		require.Equal(t, fiber.StatusUnauthorized, res.StatusCode, header)
	}
}

func TestRequestIDGenerated(t *testing.T) {
	app := newTestApp("s3cret")

	res, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/private", nil))
	require.NoError(t, err)
	require.Len(t, res.Header.Get(RequestIDKey), 26)
}

func TestSanitizeRedactsNestedDigits(t *testing.T) {
	body := `{"data":{"event_type":"call.dtmf.received","payload":{"digit":"7","call_control_id":"v3:1"}}}`

	out := sanitizeRequestBody("/voice/webhook", body)
	require.Contains(t, out, `"digit":"[SECRET]"`)
	require.Contains(t, out, `"call_control_id":"v3:1"`)

	require.Equal(t, "[non-JSON body]", sanitizeRequestBody("/x", "not json"))
	require.Contains(t, sanitizeRequestBody("/api/v1/calls/outbound", `{"token":"abc","to":"+1999"}`), `"token":"[SECRET]"`)
}

func TestRateLimiterPerIP(t *testing.T) {
	r := newRateLimiter(1, 2, time.Minute, clock.New())
	a := r.GetLimiterFrom("10.0.0.1")
	require.Same(t, a, r.GetLimiterFrom("10.0.0.1"))
	require.NotSame(t, a, r.GetLimiterFrom("10.0.0.2"))

	require.True(t, a.Allow())
	require.True(t, a.Allow())
	require.False(t, a.Allow())
}

func TestRateLimiterEvictsIdleBuckets(t *testing.T) {
	clk := clock.NewManual(time.Unix(0, 0))
	r := newRateLimiter(1, 1, time.Minute, clk)

	a := r.GetLimiterFrom("10.0.0.1")
	r.GetLimiterFrom("10.0.0.2")
	require.Equal(t, 2, r.size())

	clk.Advance(30 * time.Second)
	r.GetLimiterFrom("10.0.0.2")

	clk.Advance(40 * time.Second)
	r.GetLimiterFrom("10.0.0.3")
	require.Equal(t, 2, r.size())
	require.NotSame(t, a, r.GetLimiterFrom("10.0.0.1"))
}

func TestRateLimiterResponds429(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	m := New(log, "s3cret", WithRate(0.5, 1))

	app := fiber.New()
	app.Get("/limited", m.NewRateLimiter, func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	res, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/limited", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, res.StatusCode)

	res, err = app.Test(httptest.NewRequest(fiber.MethodGet, "/limited", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusTooManyRequests, res.StatusCode)
	require.Equal(t, "2", res.Header.Get(fiber.HeaderRetryAfter))
	body, _ := io.ReadAll(res.Body)
	require.Contains(t, string(body), `"code":"RATE_LIMITED"`)
}

func TestRequestIDReplacesUnsafeHeader(t *testing.T) {
	app := newTestApp("s3cret")

	req := httptest.NewRequest(fiber.MethodGet, "/private", nil)
	req.Header.Set(RequestIDKey, "bad id forged=1")
	res, err := app.Test(req)
	require.NoError(t, err)
	require.Len(t, res.Header.Get(RequestIDKey), 26)
}

func TestWebhookSummary(t *testing.T) {
	eventType, callID := webhookSummary([]byte(`{"data":{"event_type":"call.hangup","payload":{"call_control_id":"v3:9"}}}`))
	require.Equal(t, "call.hangup", eventType)
	require.Equal(t, "v3:9", callID)

	eventType, callID = webhookSummary([]byte(`nope`))
	require.Empty(t, eventType)
	require.Empty(t, callID)
}
