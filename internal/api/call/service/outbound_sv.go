package callService

import (
	"VoiceBridge/internal/api/call"
	"VoiceBridge/internal/entity"
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

func (s *callService) PlaceOutboundCall(ctx context.Context, req call.OutboundCallRequest) (*call.OutboundCallResponse, error) {
	to := strings.TrimSpace(req.To)
	if !s.gate.IsAllowed(to) {
		return nil, call.ErrNumberNotAllowed
	}

	if wait, ok := s.gate.AcquireOutbound(); !ok {
		return nil, &call.RetryAfterError{RetryAfter: wait}
	}

	openingLine := s.cognition.SummarizeTaskAsOpeningLine(ctx, req.Task)

	callID, err := s.control.PlaceCall(ctx, call.DialRequest{
		To:          to,
		From:        s.config.FromNumber,
		CallbackURL: s.config.WebhookURL,
		LineID:      s.config.ConnectionID,
	})
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"to":    to,
			"error": err.Error(),
		}).Error("Failed to place outbound call")
		return nil, fmt.Errorf("%w: %v", call.ErrPlaceCallFailed, err)
	}
	if callID == "" {
		return nil, fmt.Errorf("%w: provider returned no call id", call.ErrPlaceCallFailed)
	}

	s.repo.Sessions.Create(callID)
	s.repo.Sessions.AppendMessage(callID, entity.Message{Role: entity.RoleAssistant, Content: openingLine})

	s.log.WithFields(logrus.Fields{
		"call_id": callID,
		"to":      to,
	}).Info("Outbound call placed")

	return &call.OutboundCallResponse{
		CallID:      callID,
		OpeningLine: openingLine,
	}, nil
}
