package middleware

import (
	jwtPkg "VoiceBridge/pkg/jwt"
	"VoiceBridge/pkg/log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
)

const webhookPath = "/voice/webhook"

var sensitiveFields = []string{
	"password", "token", "secret", "key", "auth",
	"credential", "authorization", "pin", "access_pin",
}

// LoggerConfig writes one access line per request. Webhook lines carry the
// event type and call id so a call can be followed across deliveries.
func LoggerConfig() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		requestID, ok := c.Locals(RequestIDKey).(string)
		if !ok || requestID == "" {
			requestID = "unknown"
		}
		c.Locals("request_id", requestID)

		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil && status == fiber.StatusInternalServerError {
			return err
		}

		logFields := log.Fields{
			"request_id":    requestID,
			"method":        c.Method(),
			"path":          c.Path(),
			"status":        status,
			"latency_ms":    time.Since(start).Milliseconds(),
			"ip":            c.IP(),
			"user_agent":    c.Get(fiber.HeaderUserAgent),
			"response_size": len(c.Response().Body()),
		}
		if operator, ok := c.Locals(jwtPkg.LocalsOperator).(string); ok && operator != "" {
			logFields["operator"] = operator
		}

		if body := c.Request().Body(); len(body) > 0 {
			if strings.HasPrefix(c.Path(), webhookPath) {
				eventType, callID := webhookSummary(body)
				logFields["event_type"] = eventType
				logFields["call_id"] = callID
			}
			logFields["request_body"] = sanitizeRequestBody(c.Path(), string(body))
		}

		switch {
		case status >= 500:
			log.Error(logFields, "Server error")
		case status >= 400:
			log.Warn(logFields, "Client error")
		case c.Path() == "/health":
			log.Debug(logFields, "Health probe")
		default:
			log.Info(logFields, "Success")
		}

		return err
	}
}

func webhookSummary(body []byte) (string, string) {
	data := jsoniter.Get(body, "data")
	return data.Get("event_type").ToString(), data.Get("payload", "call_control_id").ToString()
}

func sanitizeRequestBody(path string, body string) string {
	var jsonBody map[string]interface{}
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal([]byte(body), &jsonBody); err != nil {
		return "[non-JSON body]"
	}

	sensitive := make(map[string]struct{}, len(sensitiveFields)+2)
	for _, field := range sensitiveFields {
		sensitive[field] = struct{}{}
	}
	// Keypad input is the caller's PIN.
	if strings.HasPrefix(path, webhookPath) {
		sensitive["digit"] = struct{}{}
		sensitive["digits"] = struct{}{}
	}
	redact(jsonBody, sensitive)

	sanitized, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(jsonBody)
	if err != nil {
		return "[sanitization-failed]"
	}

	return string(sanitized)
}

func redact(v interface{}, sensitive map[string]struct{}) {
	switch node := v.(type) {
	case map[string]interface{}:
		for k, child := range node {
			if _, ok := sensitive[strings.ToLower(k)]; ok {
				node[k] = "[SECRET]"
				continue
			}
			redact(child, sensitive)
		}
	case []interface{}:
		for _, child := range node {
			redact(child, sensitive)
		}
	}
}
