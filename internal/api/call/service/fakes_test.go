package callService

import (
	"VoiceBridge/internal/api/call"
	callRepository "VoiceBridge/internal/api/call/repository"
	"VoiceBridge/internal/entity"
	"VoiceBridge/pkg/bcrypt"
	"VoiceBridge/pkg/clock"
	"VoiceBridge/pkg/utils"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

const testAudioBase = "http://voice.test/audio/"

type command struct {
	Op     string
	CallID string
	URL    string
	Loop   bool
}

type fakeControl struct {
	mu        sync.Mutex
	cmds      []command
	errs      map[string]error
	placeID   string
	recording []byte
	dials     []call.DialRequest
}

func newFakeControl() *fakeControl {
	return &fakeControl{errs: map[string]error{}, placeID: "v3:outbound-1", recording: []byte("ID3-recording")}
}

func (f *fakeControl) record(c command) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cmds = append(f.cmds, c)
	return f.errs[c.Op]
}

func (f *fakeControl) failWith(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[op] = err
}

func (f *fakeControl) ops(op string) []command {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []command
	for _, c := range f.cmds {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeControl) count(op string) int {
	return len(f.ops(op))
}

func (f *fakeControl) Answer(_ context.Context, id string) error {
	return f.record(command{Op: "answer", CallID: id})
}

func (f *fakeControl) Reject(_ context.Context, id string) error {
	return f.record(command{Op: "reject", CallID: id})
}

func (f *fakeControl) Hangup(_ context.Context, id string) error {
	return f.record(command{Op: "hangup", CallID: id})
}

func (f *fakeControl) StartPlayback(_ context.Context, id string, audioURL string, loop bool) error {
	return f.record(command{Op: "playback_start", CallID: id, URL: audioURL, Loop: loop})
}

func (f *fakeControl) StopPlayback(_ context.Context, id string) error {
	return f.record(command{Op: "playback_stop", CallID: id})
}

func (f *fakeControl) StartRecording(_ context.Context, id string, _ call.RecordingOptions) error {
	return f.record(command{Op: "record_start", CallID: id})
}

func (f *fakeControl) StopRecording(_ context.Context, id string) error {
	return f.record(command{Op: "record_stop", CallID: id})
}

func (f *fakeControl) StopTranscription(_ context.Context, id string) error {
	return f.record(command{Op: "transcription_stop", CallID: id})
}

func (f *fakeControl) PlaceCall(_ context.Context, req call.DialRequest) (string, error) {
	if err := f.record(command{Op: "dial", URL: req.CallbackURL}); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dials = append(f.dials, req)
	return f.placeID, nil
}

func (f *fakeControl) DownloadRecording(_ context.Context, recordingURL string, destPath string) error {
	if err := f.record(command{Op: "download", URL: recordingURL}); err != nil {
		return err
	}
	return os.WriteFile(destPath, f.recording, 0o644)
}

type fakeCognition struct {
	mu          sync.Mutex
	transcripts []string
	replies     []string
	opening     string
	synthErr    error
	transcribed [][]byte
	completions [][]entity.Message
	synthesized []string
}

func (f *fakeCognition) Transcribe(_ context.Context, audio []byte, _ string) string {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.transcribed = append(f.transcribed, audio)
	if len(f.transcripts) == 0 {
		return ""
	}
	out := f.transcripts[0]
	f.transcripts = f.transcripts[1:]
	return out
}

func (f *fakeCognition) Complete(_ context.Context, transcript []entity.Message) string {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.completions = append(f.completions, transcript)
	if len(f.replies) == 0 {
		return "Okay."
	}
	out := f.replies[0]
	f.replies = f.replies[1:]
	return out
}

func (f *fakeCognition) SynthesizeSpeech(_ context.Context, text string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.synthErr != nil {
		return nil, f.synthErr
	}
	f.synthesized = append(f.synthesized, text)
	return []byte("mp3:" + text), nil
}

func (f *fakeCognition) SummarizeTaskAsOpeningLine(_ context.Context, task string) string {
	if f.opening != "" {
		return f.opening
	}
	return "Hi, I'm calling about: " + task
}

func (f *fakeCognition) transcribeCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.transcribed)
}

func (f *fakeCognition) completeCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.completions)
}

type fakeAudio struct {
	mu    sync.Mutex
	files map[string][]byte
	dir   string
}

func newFakeAudio(t *testing.T) *fakeAudio {
	return &fakeAudio{files: map[string][]byte{}, dir: t.TempDir()}
}

func (f *fakeAudio) Save(_ context.Context, name string, audio []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[name] = audio
	return testAudioBase + name, nil
}

func (f *fakeAudio) URL(_ context.Context, name string) (string, error) {
	return testAudioBase + name, nil
}

func (f *fakeAudio) Exists(_ context.Context, name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.files[name]
	return ok
}

func (f *fakeAudio) Delete(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.files[name]; !ok {
		return errors.New("no such file")
	}
	delete(f.files, name)
	return nil
}

func (f *fakeAudio) TempPath(name string) string {
	return filepath.Join(f.dir, name)
}

func (f *fakeAudio) names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]string, 0, len(f.files))
	for n := range f.files {
		out = append(out, n)
	}
	return out
}

type harness struct {
	t       *testing.T
	svc     *callService
	repo    *callRepository.Repository
	control *fakeControl
	cog     *fakeCognition
	audio   *fakeAudio
	clock   *clock.Manual
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newHarness(t *testing.T, mutate func(*Config)) *harness {
	t.Helper()

	log := quietLogger()
	cfg := DefaultConfig()
	cfg.Whitelist = []string{"+1999"}
	cfg.FromNumber = "+1000"
	cfg.ConnectionID = "conn-1"
	cfg.WebhookURL = "https://voice.test/voice/webhook"
	if mutate != nil {
		mutate(&cfg)
	}

	pins, err := bcrypt.New("1234", "")
	require.NoError(t, err)

	h := &harness{
		t:       t,
		repo:    callRepository.New(log),
		control: newFakeControl(),
		cog:     &fakeCognition{},
		audio:   newFakeAudio(t),
		clock:   clock.NewManual(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)),
	}
	h.svc = newCallService(log, h.repo, h.control, h.cog, h.audio, pins, utils.New(), h.clock, cfg)
	require.NoError(t, h.svc.PrepareAssets(context.Background()))
	h.cog.synthesized = nil
	return h
}

func (h *harness) emit(ev call.Event) {
	h.t.Helper()
	require.NoError(h.t, h.svc.HandleEvent(context.Background(), ev))
}

// connect walks an allowed inbound call through the greeting up to the
// point where its first recording is live.
func (h *harness) connect(id string) {
	h.t.Helper()

	h.emit(call.NewCallInitiated(id, call.DirectionIncoming, "+1999", "+1000"))
	h.emit(call.NewCallAnswered(id))
	h.emit(call.NewPlaybackStarted(id, testAudioBase+GreetingAsset))
	h.emit(call.NewPlaybackEnded(id, testAudioBase+GreetingAsset, false))
	h.clock.Advance(500 * time.Millisecond)
	require.True(h.t, h.svc.turns.Recording(id))
}

func lastOf(cmds []command) command {
	if len(cmds) == 0 {
		return command{}
	}
	return cmds[len(cmds)-1]
}
