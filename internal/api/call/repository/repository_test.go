package callRepository

import (
	"VoiceBridge/internal/entity"
	"VoiceBridge/pkg/clock"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestSessionStoreMissingSessionIsSafe(t *testing.T) {
	s := NewSessionStore(testLogger())

	assert.False(t, s.Exists("gone"))
	assert.Empty(t, s.GetMessages("gone"))
	assert.NotNil(t, s.GetMessages("gone"))
	assert.False(t, s.IsProcessing("gone"))
	assert.False(t, s.IsAwaitingInput("gone"))
	assert.False(t, s.HasProcessedRecording("gone", "u"))

	s.SetProcessing("gone", true)
	s.SetAwaitingInput("gone", true)
	s.MarkProcessedRecording("gone", "u")
	assert.False(t, s.Exists("gone"))

	assert.False(t, s.AppendIfActive("gone", entity.Message{Role: entity.RoleUser, Content: "hi"}))
	assert.False(t, s.Exists("gone"))

	_, ok := s.Destroy("gone")
	assert.False(t, ok)
}

func TestSessionStoreAppendMessageCreatesSession(t *testing.T) {
	s := NewSessionStore(testLogger())

	s.AppendMessage("c1", entity.Message{Role: entity.RoleAssistant, Content: "hello"})
	require.True(t, s.Exists("c1"))
	require.Equal(t, []entity.Message{{Role: entity.RoleAssistant, Content: "hello"}}, s.GetMessages("c1"))
}

func TestSessionStoreCreateKeepsLiveSession(t *testing.T) {
	s := NewSessionStore(testLogger())

	require.True(t, s.Create("c1"))
	s.AppendMessage("c1", entity.Message{Role: entity.RoleAssistant, Content: "hello"})
	s.SetTurnState("c1", true, true)

	require.False(t, s.Create("c1"))
	require.Len(t, s.GetMessages("c1"), 1)
	require.True(t, s.IsProcessing("c1"))
	require.True(t, s.IsAwaitingInput("c1"))
}

func TestSessionStoreTrimsTranscript(t *testing.T) {
	s := NewSessionStore(testLogger())
	s.Create("c1")

	for i := 0; i < 25; i++ {
		s.AppendMessage("c1", entity.Message{Role: entity.RoleUser, Content: fmt.Sprintf("m%d", i)})
	}

	msgs := s.GetMessages("c1")
	require.Len(t, msgs, MaxTranscriptMessages)
	assert.Equal(t, "m5", msgs[0].Content)
	assert.Equal(t, "m24", msgs[len(msgs)-1].Content)
}

func TestSessionStoreGetMessagesReturnsCopy(t *testing.T) {
	s := NewSessionStore(testLogger())
	s.AppendMessage("c1", entity.Message{Role: entity.RoleUser, Content: "a"})

	msgs := s.GetMessages("c1")
	msgs[0].Content = "mutated"

	assert.Equal(t, "a", s.GetMessages("c1")[0].Content)
}

func TestSessionStoreClaimRecording(t *testing.T) {
	s := NewSessionStore(testLogger())
	s.Create("c1")
	s.SetAwaitingInput("c1", true)

	require.True(t, s.ClaimRecording("c1", "https://rec/1.mp3"))
	assert.True(t, s.IsProcessing("c1"))
	assert.False(t, s.IsAwaitingInput("c1"))
	assert.True(t, s.HasProcessedRecording("c1", "https://rec/1.mp3"))

	// busy
	assert.False(t, s.ClaimRecording("c1", "https://rec/2.mp3"))

	// duplicate after the turn finished
	s.SetProcessing("c1", false)
	assert.False(t, s.ClaimRecording("c1", "https://rec/1.mp3"))
	assert.True(t, s.ClaimRecording("c1", "https://rec/2.mp3"))

	assert.False(t, s.ClaimRecording("other", "https://rec/1.mp3"))
}

func TestSessionStoreFinishPlayback(t *testing.T) {
	s := NewSessionStore(testLogger())

	exists, turn := s.FinishPlayback("c1")
	assert.False(t, exists)
	assert.False(t, turn)

	s.Create("c1")
	s.SetTurnState("c1", true, false)
	exists, turn = s.FinishPlayback("c1")
	assert.True(t, exists)
	assert.False(t, turn)
	assert.False(t, s.IsProcessing("c1"))

	s.SetTurnState("c1", true, true)
	exists, turn = s.FinishPlayback("c1")
	assert.True(t, exists)
	assert.True(t, turn)
	assert.False(t, s.IsAwaitingInput("c1"))

	_, turn = s.FinishPlayback("c1")
	assert.False(t, turn)
}

func TestSessionStoreDestroyReturnsArtifacts(t *testing.T) {
	s := NewSessionStore(testLogger())
	s.Create("c1")
	require.True(t, s.AddArtifact("c1", "res_c1_1.mp3"))

	sess, ok := s.Destroy("c1")
	require.True(t, ok)
	assert.Equal(t, []string{"res_c1_1.mp3"}, sess.AudioArtifacts)
	assert.False(t, s.AddArtifact("c1", "late.mp3"))
	assert.Zero(t, s.Count())
}

func TestPendingAuthAppendDigit(t *testing.T) {
	p := NewPendingAuthStore(testLogger())

	_, _, ok := p.AppendDigit("c1", "1")
	require.False(t, ok)

	p.Create("c1", "+1555")
	for i, d := range []string{"1", "2", "3"} {
		digits, complete, ok := p.AppendDigit("c1", d)
		require.True(t, ok)
		require.False(t, complete)
		require.Len(t, digits, i+1)
	}

	digits, complete, ok := p.AppendDigit("c1", "4")
	require.True(t, ok)
	require.True(t, complete)
	require.Equal(t, "1234", digits)

	digits, complete, ok = p.AppendDigit("c1", "5")
	require.True(t, ok)
	require.False(t, complete)
	require.Equal(t, "1234", digits)
}

func TestPendingAuthCreateKeepsChallenge(t *testing.T) {
	p := NewPendingAuthStore(testLogger())

	require.True(t, p.Create("c1", "+1555"))
	p.AppendDigit("c1", "1")
	p.AppendDigit("c1", "2")

	require.False(t, p.Create("c1", "+1555"))
	auth, ok := p.Get("c1")
	require.True(t, ok)
	require.Equal(t, "12", auth.Digits)
}

func TestPendingAuthTimerReplacement(t *testing.T) {
	p := NewPendingAuthStore(testLogger())
	clk := clock.NewManual(time.Unix(0, 0))
	p.Create("c1", "+1555")

	var expired []uint64
	arm := func() {
		p.ArmTimer("c1", func(token uint64) clock.Timer {
			return clk.AfterFunc(10*time.Second, func() {
				if _, ok := p.Expire("c1", token); ok {
					expired = append(expired, token)
				}
			})
		})
	}

	arm()
	clk.Advance(5 * time.Second)
	arm()
	require.Equal(t, 1, clk.Pending())

	clk.Advance(6 * time.Second)
	require.Empty(t, expired)
	require.True(t, p.Exists("c1"))

	clk.Advance(5 * time.Second)
	require.Len(t, expired, 1)
	require.False(t, p.Exists("c1"))
}

func TestPendingAuthCompletionStopsTimer(t *testing.T) {
	p := NewPendingAuthStore(testLogger())
	clk := clock.NewManual(time.Unix(0, 0))
	p.Create("c1", "+1555")

	p.ArmTimer("c1", func(token uint64) clock.Timer {
		return clk.AfterFunc(10*time.Second, func() { p.Expire("c1", token) })
	})
	for _, d := range "4321" {
		p.AppendDigit("c1", string(d))
	}

	require.Zero(t, clk.Pending())
	require.False(t, p.HasTimer("c1"))
	require.False(t, p.ArmTimer("c1", func(uint64) clock.Timer {
		t.Fatal("must not arm after completion")
		return nil
	}))
}

func TestPendingAuthDeleteStopsTimer(t *testing.T) {
	p := NewPendingAuthStore(testLogger())
	clk := clock.NewManual(time.Unix(0, 0))
	p.Create("c1", "+1555")

	p.ArmTimer("c1", func(token uint64) clock.Timer {
		return clk.AfterFunc(10*time.Second, func() { p.Expire("c1", token) })
	})
	require.True(t, p.Delete("c1"))
	require.Zero(t, clk.Pending())
	require.False(t, p.Delete("c1"))
}

func TestAttemptLogAdmit(t *testing.T) {
	l := NewAttemptLog()
	t0 := time.Unix(1000, 0)

	require.True(t, l.Admit("+1555", t0, time.Minute))
	require.False(t, l.Admit("+1555", t0.Add(30*time.Second), time.Minute))

	last, ok := l.Last("+1555")
	require.True(t, ok)
	require.Equal(t, t0, last)

	require.True(t, l.Admit("+1666", t0.Add(30*time.Second), time.Minute))
	require.True(t, l.Admit("+1555", t0.Add(61*time.Second), time.Minute))
}
