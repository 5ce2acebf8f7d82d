package callHandler

import (
	"VoiceBridge/internal/api/call"
	contextPkg "VoiceBridge/pkg/context"
	"VoiceBridge/pkg/handlerUtil"
	jwtPkg "VoiceBridge/pkg/jwt"
	"VoiceBridge/pkg/log"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/net/context"
)

// HandleWebhook acknowledges every notification at once. The provider
// retries anything that is slow or non-2xx, so work continues in the
// background, one event at a time per call.
func (h *CallHandler) HandleWebhook(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)

	var env call.WebhookEnvelope
	if err := ctx.BodyParser(&env); err != nil {
		h.log.WithFields(log.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Warn("Unreadable webhook body")
		return ctx.Status(fiber.StatusOK).SendString("OK")
	}

	event, err := call.ParseEvent(env)
	if err != nil {
		entry := h.log.WithFields(log.Fields{
			"request_id": requestID,
			"event":      env.Data.EventType,
			"error":      err.Error(),
		})
		if errors.Is(err, call.ErrUnsupportedEvent) {
			entry.Debug("Skipping webhook event")
		} else {
			entry.Warn("Invalid webhook event")
		}
		return ctx.Status(fiber.StatusOK).SendString("OK")
	}

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"call_id":    event.CallID(),
		"event":      env.Data.EventType,
	}).Debug("Webhook received")

	c := contextPkg.WithCallID(contextPkg.FromFiberCtx(ctx), event.CallID())
	h.dispatch(c, requestID, env.Data.EventType, event)

	return ctx.Status(fiber.StatusOK).SendString("OK")
}

func (h *CallHandler) dispatch(parent context.Context, requestID string, eventType string, event call.Event) {
	h.events.submit(event.CallID(), func() {
		fields := log.Fields{
			"request_id": requestID,
			"call_id":    event.CallID(),
			"event":      eventType,
		}
		defer func() {
			if r := recover(); r != nil {
				fields["panic"] = r
				log.ErrorWithTraceID(h.log, fields, "Recovered from panic while handling event")
			}
		}()

		c, cancel := context.WithTimeout(parent, h.eventTimeout)
		defer cancel()

		if err := h.callService.HandleEvent(c, event); err != nil {
			fields["error"] = err.Error()
			h.log.WithFields(fields).Error("Failed to handle event")
		}
	})
}

func (h *CallHandler) PlaceOutboundCall(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 30*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	operator, err := jwtPkg.GetOperator(ctx)
	if err != nil {
		return errHandler.HandleUnauthorized(ctx, requestID, "Unauthorized")
	}

	var req call.OutboundCallRequest
	if err := ctx.BodyParser(&req); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}
	if err := h.validator.Struct(req); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"operator":   operator,
		"to":         req.To,
	}).Info("Outbound call requested")

	res, err := h.callService.PlaceOutboundCall(c, req)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "place_outbound_call")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusCreated, res)
	}
}

func (h *CallHandler) Health(ctx *fiber.Ctx) error {
	return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
		"status":       "ok",
		"active_calls": h.callService.ActiveCalls(),
	})
}
