package callService

import (
	"VoiceBridge/pkg/clock"
	"context"

	"github.com/sirupsen/logrus"
)

// playPinPrompt renders the prompt once into a shared asset and plays it.
func (s *callService) playPinPrompt(ctx context.Context, id string) error {
	if !s.audio.Exists(ctx, PinPromptAsset) {
		if err := s.renderAsset(ctx, PinPromptAsset, s.config.PinPromptText); err != nil {
			return err
		}
	}

	promptURL, err := s.audio.URL(ctx, PinPromptAsset)
	if err != nil {
		return err
	}
	return s.benign(s.control.StartPlayback(ctx, id, promptURL, false))
}

func (s *callService) armPinTimeout(id string) {
	armed := s.repo.Pending.ArmTimer(id, func(token uint64) clock.Timer {
		return s.clock.AfterFunc(s.config.PinTimeout, func() {
			s.guard(id, "PIN timeout", func(ctx context.Context) error {
				return s.expirePin(ctx, id, token)
			})
		})
	})
	if armed {
		s.log.WithField("call_id", id).Debug("PIN timeout armed")
	}
}

func (s *callService) expirePin(ctx context.Context, id string, token uint64) error {
	auth, ok := s.repo.Pending.Expire(id, token)
	if !ok {
		return nil
	}

	s.log.WithFields(logrus.Fields{
		"call_id": id,
		"from":    auth.CallerNumber,
		"digits":  len(auth.Digits),
	}).Warn("PIN entry timed out")
	return s.benign(s.control.Hangup(ctx, id))
}

// collectPinDigit evaluates the code exactly once, when the fourth digit
// lands. Anything after that is dropped by the store.
func (s *callService) collectPinDigit(ctx context.Context, id string, digit string) error {
	digits, complete, ok := s.repo.Pending.AppendDigit(id, digit)
	if !ok || !complete {
		return nil
	}

	auth, _ := s.repo.Pending.Get(id)
	granted := s.pins.Verify(digits)

	if !granted {
		// Gone means a hangup landed during verification.
		if !s.repo.Pending.Delete(id) {
			return nil
		}
		s.log.WithFields(logrus.Fields{
			"call_id": id,
			"from":    auth.CallerNumber,
		}).Warn("Wrong PIN, hanging up")
		return s.benign(s.control.Hangup(ctx, id))
	}

	// The session is registered before the challenge is retired, so a
	// hangup at any point finds at least one of them and tears it down.
	if !s.repo.Sessions.Create(id) {
		s.repo.Pending.Delete(id)
		return nil
	}
	if !s.repo.Pending.Delete(id) {
		s.repo.Sessions.Destroy(id)
		return nil
	}

	s.log.WithFields(logrus.Fields{
		"call_id": id,
		"from":    auth.CallerNumber,
	}).Info("PIN accepted")

	return s.greet(ctx, id)
}
