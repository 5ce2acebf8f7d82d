package callService

import (
	"VoiceBridge/internal/entity"
	"VoiceBridge/pkg/cognition"
	"VoiceBridge/pkg/nlp"
	"context"
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// greet plays the greeting. If it cannot be played the caller is listened
// to straight away rather than left in silence.
func (s *callService) greet(ctx context.Context, id string) error {
	if !s.repo.Sessions.AppendIfActive(id, entity.Message{Role: entity.RoleAssistant, Content: s.config.GreetingText}) {
		return nil
	}
	s.repo.Sessions.SetTurnState(id, true, true)

	if err := s.playGreeting(ctx, id); err != nil {
		s.resetTurn(ctx, id)
		return err
	}
	return nil
}

func (s *callService) playGreeting(ctx context.Context, id string) error {
	if !s.audio.Exists(ctx, GreetingAsset) {
		return s.speak(ctx, id, s.config.GreetingText)
	}
	greetingURL, err := s.audio.URL(ctx, GreetingAsset)
	if err != nil {
		return err
	}
	return s.benign(s.control.StartPlayback(ctx, id, greetingURL, false))
}

// speak synthesizes text into a per-call artifact and plays it once.
func (s *callService) speak(ctx context.Context, id string, text string) error {
	audio, err := s.cognition.SynthesizeSpeech(ctx, text)
	if err != nil {
		return err
	}

	name := s.utils.ArtifactName("res", id, "mp3")
	audioURL, err := s.audio.Save(ctx, name, audio)
	if err != nil {
		return err
	}

	// A hangup may have landed while synthesizing.
	if !s.repo.Sessions.AddArtifact(id, name) {
		s.deleteArtifact(ctx, id, name)
		return nil
	}

	return s.benign(s.control.StartPlayback(ctx, id, audioURL, false))
}

// respond runs one conversational turn for a claimed recording. On a
// failure before the reply is ready the turn is reset so the caller can
// speak again.
func (s *callService) respond(ctx context.Context, id string, recordingURL string) error {
	name := s.utils.ArtifactName("user", id, "mp3")
	tmpPath := s.audio.TempPath(name)
	defer func() {
		if err := os.Remove(tmpPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			s.log.WithFields(logrus.Fields{
				"call_id": id,
				"file":    tmpPath,
				"error":   err.Error(),
			}).Warn("Failed to remove downloaded recording")
		}
	}()

	if err := s.control.DownloadRecording(ctx, recordingURL, tmpPath); err != nil {
		s.resetTurn(ctx, id)
		return s.benign(err)
	}
	recording, err := os.ReadFile(tmpPath)
	if err != nil {
		s.resetTurn(ctx, id)
		return err
	}

	s.startThinking(ctx, id)

	transcript := nlp.Tidy(s.cognition.Transcribe(ctx, recording, name))
	if !s.repo.Sessions.Exists(id) {
		return nil
	}

	if nlp.IsBlank(transcript) {
		s.stopThinking(ctx, id)
		s.repo.Sessions.SetTurnState(id, false, true)
		return s.startListening(ctx, id)
	}

	s.log.WithFields(logrus.Fields{
		"call_id":    id,
		"transcript": transcript,
	}).Info("Caller said")

	if !s.repo.Sessions.AppendIfActive(id, entity.Message{Role: entity.RoleUser, Content: transcript}) {
		return nil
	}

	reply := s.completeReply(ctx, id)
	if !s.repo.Sessions.AppendIfActive(id, entity.Message{Role: entity.RoleAssistant, Content: reply}) {
		return nil
	}

	audio, err := s.cognition.SynthesizeSpeech(ctx, reply)
	if err != nil {
		s.stopThinking(ctx, id)
		s.resetTurn(ctx, id)
		return err
	}

	replyName := s.utils.ArtifactName("res", id, "mp3")
	replyURL, err := s.audio.Save(ctx, replyName, audio)
	if err != nil {
		s.stopThinking(ctx, id)
		s.resetTurn(ctx, id)
		return err
	}
	if !s.repo.Sessions.AddArtifact(id, replyName) {
		s.deleteArtifact(ctx, id, replyName)
		return nil
	}

	s.stopThinking(ctx, id)
	s.repo.Sessions.SetAwaitingInput(id, true)

	s.log.WithFields(logrus.Fields{
		"call_id": id,
		"reply":   reply,
	}).Info("Assistant replied")

	return s.benign(s.control.StartPlayback(ctx, id, replyURL, false))
}

// completeReply retries once when the model answers with the keep-alive
// sentinel, and never lets the sentinel reach the caller.
func (s *callService) completeReply(ctx context.Context, id string) string {
	for attempt := 0; attempt < 2; attempt++ {
		reply := strings.TrimSpace(s.cognition.Complete(ctx, s.repo.Sessions.GetMessages(id)))
		if nlp.IsBlank(reply) {
			return cognition.FallbackReply
		}
		if !nlp.Matches(reply, s.config.KeepAliveSentinel) {
			return reply
		}
		s.log.WithFields(logrus.Fields{
			"call_id": id,
			"attempt": attempt + 1,
		}).Warn("Completion returned keep-alive sentinel")
	}
	return cognition.FallbackReply
}

func (s *callService) resetTurn(ctx context.Context, id string) {
	if !s.repo.Sessions.SetTurnState(id, false, false) {
		return
	}
	if err := s.startListening(ctx, id); err != nil {
		s.log.WithFields(logrus.Fields{
			"call_id": id,
			"error":   err.Error(),
		}).Error("Failed to restart recording")
	}
}

func (s *callService) startThinking(ctx context.Context, id string) {
	thinkingURL, err := s.audio.URL(ctx, ThinkingAsset)
	if err != nil {
		s.bestEffort(id, "thinking indicator", err)
		return
	}
	s.bestEffort(id, "thinking indicator", s.control.StartPlayback(ctx, id, thinkingURL, true))
}

func (s *callService) stopThinking(ctx context.Context, id string) {
	s.bestEffort(id, "stop thinking indicator", s.control.StopPlayback(ctx, id))
}

func (s *callService) deleteArtifact(ctx context.Context, id string, name string) {
	if err := s.audio.Delete(ctx, name); err != nil {
		s.log.WithFields(logrus.Fields{
			"call_id": id,
			"file":    name,
			"error":   err.Error(),
		}).Warn("Failed to delete audio artifact")
	}
}
