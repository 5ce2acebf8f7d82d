package callService

import (
	"VoiceBridge/internal/api/call"
	"VoiceBridge/internal/entity"
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"

	"github.com/sirupsen/logrus"
)

func (s *callService) HandleEvent(ctx context.Context, event call.Event) error {
	switch e := event.(type) {
	case call.CallInitiated:
		return s.onInitiated(ctx, e)
	case call.CallAnswered:
		return s.onAnswered(ctx, e)
	case call.PlaybackStarted:
		s.repo.Sessions.SetProcessing(e.CallID(), true)
		return nil
	case call.PlaybackEnded:
		return s.onPlaybackEnded(ctx, e)
	case call.DTMFReceived:
		return s.onDTMF(ctx, e)
	case call.RecordingSaved:
		return s.onRecordingSaved(ctx, e)
	case call.CallHangup:
		s.onHangup(ctx, e)
		return nil
	case call.Ignored:
		s.log.WithFields(logrus.Fields{
			"call_id": e.CallID(),
			"event":   e.Type,
		}).Debug("Ignoring event")
		return nil
	default:
		return fmt.Errorf("%w: %T", call.ErrUnsupportedEvent, event)
	}
}

// State is registered before the provider is told to answer, so a fast
// call.answered can never find the call unknown. A redelivered initiated
// for a call we already track is dropped, and a failed answer only rolls
// back the state this delivery created.
func (s *callService) onInitiated(ctx context.Context, e call.CallInitiated) error {
	id := e.CallID()
	if e.Direction != call.DirectionIncoming {
		return nil
	}
	if s.tracked(id) {
		s.log.WithField("call_id", id).Debug("Duplicate call.initiated, ignoring")
		return nil
	}

	if s.gate.IsAllowed(e.From) {
		if !s.repo.Sessions.Create(id) {
			return nil
		}
		if err := s.control.Answer(ctx, id); err != nil {
			s.repo.Sessions.Destroy(id)
			return s.benign(err)
		}
		s.log.WithFields(logrus.Fields{
			"call_id": id,
			"from":    e.From,
		}).Info("Answered allowed caller")
		return nil
	}

	if !s.repo.Attempts.Admit(e.From, s.clock.Now(), s.config.PinRetryCooldown) {
		s.log.WithFields(logrus.Fields{
			"call_id": id,
			"from":    e.From,
		}).Warn("Rejecting caller still in PIN cooldown")
		return s.benign(s.control.Reject(ctx, id))
	}

	if !s.repo.Pending.Create(id, e.From) {
		return nil
	}
	if err := s.control.Answer(ctx, id); err != nil {
		s.repo.Pending.Delete(id)
		return s.benign(err)
	}
	s.log.WithFields(logrus.Fields{
		"call_id": id,
		"from":    e.From,
	}).Info("Answered unlisted caller, awaiting PIN")
	return nil
}

func (s *callService) tracked(id string) bool {
	return s.repo.Sessions.Exists(id) || s.repo.Pending.Exists(id)
}

func (s *callService) onAnswered(ctx context.Context, e call.CallAnswered) error {
	id := e.CallID()

	if s.repo.Pending.Exists(id) {
		return s.playPinPrompt(ctx, id)
	}
	if !s.repo.Sessions.Exists(id) {
		s.log.WithField("call_id", id).Debug("Answered call has no state, ignoring")
		return nil
	}

	// Outbound calls carry their opening line as the only transcript entry.
	if last, ok := s.repo.Sessions.LastMessage(id); ok && last.Role == entity.RoleAssistant {
		s.repo.Sessions.SetTurnState(id, true, true)
		if err := s.speak(ctx, id, last.Content); err != nil {
			s.resetTurn(ctx, id)
			return err
		}
		return nil
	}

	return s.greet(ctx, id)
}

func (s *callService) onPlaybackEnded(ctx context.Context, e call.PlaybackEnded) error {
	id := e.CallID()

	if s.repo.Pending.Exists(id) {
		s.armPinTimeout(id)
		return nil
	}
	if s.isThinkingIndicator(e.MediaURL) {
		return nil
	}
	if s.turns.Recording(id) {
		return nil
	}

	exists, userTurn := s.repo.Sessions.FinishPlayback(id)
	if !exists || !userTurn {
		return nil
	}

	s.turns.Defer(id, s.config.RecordDelay, func() {
		s.guard(id, "deferred recording start", func(ctx context.Context) error {
			return s.startListening(ctx, id)
		})
	})
	return nil
}

func (s *callService) onDTMF(ctx context.Context, e call.DTMFReceived) error {
	id := e.CallID()

	if s.repo.Pending.Exists(id) {
		return s.collectPinDigit(ctx, id, e.Digit)
	}
	if !s.repo.Sessions.Exists(id) {
		return nil
	}

	s.turns.Cancel(id)
	s.repo.Sessions.SetTurnState(id, true, false)

	s.bestEffort(id, "stop playback", s.control.StopPlayback(ctx, id))
	s.bestEffort(id, "stop recording", s.control.StopRecording(ctx, id))
	s.bestEffort(id, "stop transcription", s.control.StopTranscription(ctx, id))

	s.log.WithFields(logrus.Fields{
		"call_id": id,
		"digit":   e.Digit,
	}).Info("Caller interrupted, restarting turn")

	s.turns.Defer(id, s.config.InterruptDelay, func() {
		s.guard(id, "interrupt restart", func(ctx context.Context) error {
			if !s.repo.Sessions.Exists(id) {
				return nil
			}
			s.repo.Sessions.SetProcessing(id, false)
			return s.startListening(ctx, id)
		})
	})
	return nil
}

func (s *callService) onRecordingSaved(ctx context.Context, e call.RecordingSaved) error {
	id := e.CallID()

	if !s.repo.Sessions.ClaimRecording(id, e.RecordingURL) {
		s.log.WithField("call_id", id).Debug("Dropping recording")
		return nil
	}
	s.turns.Cancel(id)

	return s.respond(ctx, id, e.RecordingURL)
}

func (s *callService) onHangup(ctx context.Context, e call.CallHangup) {
	id := e.CallID()

	s.turns.Cancel(id)
	s.repo.Pending.Delete(id)

	sess, ok := s.repo.Sessions.Destroy(id)
	if ok {
		for _, name := range sess.AudioArtifacts {
			if err := s.audio.Delete(ctx, name); err != nil {
				s.log.WithFields(logrus.Fields{
					"call_id": id,
					"file":    name,
					"error":   err.Error(),
				}).Warn("Failed to delete audio artifact")
			}
		}
	}

	s.log.WithFields(logrus.Fields{
		"call_id": id,
		"cause":   e.Cause,
	}).Info("Call ended")
}

func (s *callService) onRecordingCeiling(id string) {
	s.guard(id, "recording ceiling", func(ctx context.Context) error {
		if !s.repo.Sessions.Exists(id) {
			return nil
		}
		s.log.WithField("call_id", id).Debug("Recording ceiling reached")
		return s.benign(s.control.StopRecording(ctx, id))
	})
}

// startListening begins a recording and arms its ceiling.
func (s *callService) startListening(ctx context.Context, id string) error {
	if !s.repo.Sessions.Exists(id) {
		return nil
	}
	if err := s.control.StartRecording(ctx, id, s.config.Recording); err != nil {
		return s.benign(err)
	}
	s.turns.Arm(id)
	return nil
}

func (s *callService) isThinkingIndicator(mediaURL string) bool {
	if mediaURL == "" {
		return false
	}
	u, err := url.Parse(mediaURL)
	if err != nil {
		return false
	}
	return path.Base(u.Path) == ThinkingAsset
}

// benign swallows the provider's "call already ended" condition.
func (s *callService) benign(err error) error {
	if err == nil || errors.Is(err, call.ErrCallEnded) {
		return nil
	}
	return err
}

func (s *callService) bestEffort(id string, op string, err error) {
	if err = s.benign(err); err != nil {
		s.log.WithFields(logrus.Fields{
			"call_id": id,
			"error":   err.Error(),
		}).Debug("Best-effort " + op + " failed")
	}
}

// guard runs deferred work on its own context and keeps a panic in one
// call's timer from taking the process down.
func (s *callService) guard(id string, what string, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.CommandTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			s.log.WithFields(logrus.Fields{
				"call_id": id,
				"panic":   r,
			}).Error("Recovered from panic in " + what)
		}
	}()

	if err := fn(ctx); err != nil {
		s.log.WithFields(logrus.Fields{
			"call_id": id,
			"error":   err.Error(),
		}).Error("Failed " + what)
	}
}
