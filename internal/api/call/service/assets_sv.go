package callService

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// PrepareAssets renders the shared prompts that are missing from the
// audio store. Existing files are kept so restarts cost nothing.
func (s *callService) PrepareAssets(ctx context.Context) error {
	assets := []struct {
		name string
		text string
	}{
		{GreetingAsset, s.config.GreetingText},
		{ThinkingAsset, s.config.ThinkingText},
		{PinPromptAsset, s.config.PinPromptText},
	}

	var errs []error
	for _, a := range assets {
		if s.audio.Exists(ctx, a.name) {
			continue
		}
		if err := s.renderAsset(ctx, a.name, a.text); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", a.name, err))
			continue
		}
		s.log.WithField("file", a.name).Info("Rendered audio asset")
	}
	return errors.Join(errs...)
}

func (s *callService) renderAsset(ctx context.Context, name string, text string) error {
	audio, err := s.cognition.SynthesizeSpeech(ctx, text)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"file":  name,
			"error": err.Error(),
		}).Error("Failed to synthesize asset")
		return err
	}
	_, err = s.audio.Save(ctx, name, audio)
	return err
}
