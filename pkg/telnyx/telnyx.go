package telnyx

import (
	"VoiceBridge/internal/api/call"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

const (
	DefaultBaseURL = "https://api.telnyx.com/v2"

	// callEndedCode is what Telnyx answers with when a command targets a
	// call that has already hung up.
	callEndedCode = "90018"
)

type errorBody struct {
	Errors []struct {
		Code   string `json:"code"`
		Title  string `json:"title"`
		Detail string `json:"detail"`
	} `json:"errors"`
}

type dialResponse struct {
	Data struct {
		CallControlID string `json:"call_control_id"`
		CallLegID     string `json:"call_leg_id"`
	} `json:"data"`
}

type Client struct {
	apiKey  string
	baseURL string
	timeout time.Duration
	http    *fiber.Client
	log     *logrus.Logger
}

var _ call.CallControl = (*Client)(nil)

func New(apiKey string, baseURL string, log *logrus.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: 15 * time.Second,
		http: &fiber.Client{
			JSONEncoder: jsoniter.Marshal,
			JSONDecoder: jsoniter.Unmarshal,
		},
		log: log,
	}
}

func (c *Client) Answer(ctx context.Context, callID string) error {
	return c.action(ctx, callID, "answer", fiber.Map{})
}

func (c *Client) Reject(ctx context.Context, callID string) error {
	return c.action(ctx, callID, "reject", fiber.Map{"cause": "CALL_REJECTED"})
}

func (c *Client) Hangup(ctx context.Context, callID string) error {
	return c.action(ctx, callID, "hangup", fiber.Map{})
}

func (c *Client) StartPlayback(ctx context.Context, callID string, audioURL string, loop bool) error {
	body := fiber.Map{"audio_url": audioURL}
	if loop {
		body["loop"] = "infinity"
	}
	return c.action(ctx, callID, "playback_start", body)
}

func (c *Client) StopPlayback(ctx context.Context, callID string) error {
	return c.action(ctx, callID, "playback_stop", fiber.Map{"stop": "all"})
}

func (c *Client) StartRecording(ctx context.Context, callID string, opts call.RecordingOptions) error {
	format := opts.Format
	if format == "" {
		format = "mp3"
	}
	return c.action(ctx, callID, "record_start", fiber.Map{
		"format":         format,
		"channels":       "single",
		"play_beep":      true,
		"timeout_secs":   opts.SilenceTimeoutSecs,
		"maximum_length": opts.MaxLengthSecs,
	})
}

func (c *Client) StopRecording(ctx context.Context, callID string) error {
	return c.action(ctx, callID, "record_stop", fiber.Map{})
}

func (c *Client) StopTranscription(ctx context.Context, callID string) error {
	return c.action(ctx, callID, "transcription_stop", fiber.Map{})
}

func (c *Client) PlaceCall(ctx context.Context, req call.DialRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var out dialResponse
	agent := c.http.Post(c.baseURL + "/calls")
	c.prepare(ctx, agent).JSON(fiber.Map{
		"connection_id": req.LineID,
		"to":            req.To,
		"from":          req.From,
		"webhook_url":   req.CallbackURL,
	})

	code, body, errs := agent.Struct(&out)
	if err := c.check("dial", code, body, errs); err != nil {
		return "", err
	}
	if out.Data.CallControlID == "" {
		return "", errors.New("telnyx dial: response without call_control_id")
	}

	c.log.WithFields(logrus.Fields{
		"call_id": out.Data.CallControlID,
		"to":      req.To,
	}).Info("Outbound call placed")

	return out.Data.CallControlID, nil
}

func (c *Client) DownloadRecording(ctx context.Context, recordingURL string, destPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	agent := c.http.Get(recordingURL)
	agent.Timeout(c.timeoutFor(ctx))

	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("download recording: %w", errors.Join(errs...))
	}
	if code != fiber.StatusOK {
		return fmt.Errorf("failed to download, status: %d", code)
	}

	if err := os.WriteFile(destPath, body, 0o600); err != nil {
		return fmt.Errorf("write recording: %w", err)
	}
	return nil
}

func (c *Client) action(ctx context.Context, callID string, action string, body fiber.Map) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/calls/%s/actions/%s", c.baseURL, url.PathEscape(callID), action)
	agent := c.http.Post(endpoint)
	c.prepare(ctx, agent).JSON(body)

	code, respBody, errs := agent.Bytes()
	if err := c.check(action, code, respBody, errs); err != nil {
		return err
	}

	c.log.WithFields(logrus.Fields{
		"call_id": callID,
		"action":  action,
	}).Debug("Call control command sent")
	return nil
}

func (c *Client) prepare(ctx context.Context, agent *fiber.Agent) *fiber.Agent {
	agent.Set(fiber.HeaderAuthorization, "Bearer "+c.apiKey)
	agent.Set(fiber.HeaderAccept, fiber.MIMEApplicationJSON)
	agent.Timeout(c.timeoutFor(ctx))
	return agent
}

func (c *Client) timeoutFor(ctx context.Context) time.Duration {
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left > 0 && left < c.timeout {
			return left
		}
	}
	return c.timeout
}

func (c *Client) check(action string, code int, body []byte, errs []error) error {
	if len(errs) > 0 {
		return fmt.Errorf("telnyx %s: %w", action, errors.Join(errs...))
	}
	if code >= 200 && code < 300 {
		return nil
	}

	var parsed errorBody
	_ = jsoniter.Unmarshal(body, &parsed)
	for _, e := range parsed.Errors {
		if e.Code == callEndedCode || strings.Contains(strings.ToLower(e.Title+" "+e.Detail), "already ended") {
			return call.ErrCallEnded
		}
	}

	detail := ""
	if len(parsed.Errors) > 0 {
		detail = parsed.Errors[0].Title
	}
	return fmt.Errorf("telnyx %s: status %d %s", action, code, detail)
}
