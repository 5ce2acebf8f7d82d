package callService

import (
	"VoiceBridge/internal/api/call"
	"VoiceBridge/internal/entity"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestOutboundRateLimit(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	req := call.OutboundCallRequest{Task: "book a table", To: "+1999"}

	res, err := h.svc.PlaceOutboundCall(ctx, req)
	require.NoError(t, err)
	require.Equal(t, "v3:outbound-1", res.CallID)

	h.clock.Advance(10 * time.Second)
	_, err = h.svc.PlaceOutboundCall(ctx, req)
	var retry *call.RetryAfterError
	require.ErrorAs(t, err, &retry)
	require.ErrorIs(t, err, call.ErrRateLimited)
	require.Equal(t, 50, retry.RetryAfterSecs())

	h.clock.Advance(51 * time.Second)
	_, err = h.svc.PlaceOutboundCall(ctx, req)
	require.NoError(t, err)
	require.Equal(t, 2, h.control.count("dial"))
}

func TestOutboundRespectsAllowList(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.svc.PlaceOutboundCall(context.Background(), call.OutboundCallRequest{Task: "x", To: "+1555"})
	require.ErrorIs(t, err, call.ErrNumberNotAllowed)
	require.Equal(t, 0, h.control.count("dial"))

	// A refused number does not consume the window.
	_, err = h.svc.PlaceOutboundCall(context.Background(), call.OutboundCallRequest{Task: "x", To: "+1999"})
	require.NoError(t, err)
}

func TestOutboundDialRequestAndSession(t *testing.T) {
	h := newHarness(t, nil)
	h.cog.opening = "Hi, I'd like to book a table for two."

	res, err := h.svc.PlaceOutboundCall(context.Background(), call.OutboundCallRequest{Task: "book a table for two", To: " +1999 "})
	require.NoError(t, err)
	require.Equal(t, "Hi, I'd like to book a table for two.", res.OpeningLine)

	require.Equal(t, []call.DialRequest{{
		To:          "+1999",
		From:        "+1000",
		CallbackURL: "https://voice.test/voice/webhook",
		LineID:      "conn-1",
	}}, h.control.dials)

	require.Equal(t, []entity.Message{{Role: entity.RoleAssistant, Content: res.OpeningLine}}, h.repo.Sessions.GetMessages(res.CallID))
}

func TestOutboundAnsweredSpeaksOpeningLine(t *testing.T) {
	h := newHarness(t, nil)
	h.cog.opening = "Hello, calling about your order."

	res, err := h.svc.PlaceOutboundCall(context.Background(), call.OutboundCallRequest{Task: "order", To: "+1999"})
	require.NoError(t, err)

	h.emit(call.NewCallAnswered(res.CallID))
	require.Equal(t, []string{"Hello, calling about your order."}, h.cog.synthesized)
	require.True(t, h.repo.Sessions.IsProcessing(res.CallID))
	require.True(t, h.repo.Sessions.IsAwaitingInput(res.CallID))
	require.Len(t, h.repo.Sessions.GetMessages(res.CallID), 1)

	play := lastOf(h.control.ops("playback_start"))
	h.emit(call.NewPlaybackEnded(res.CallID, play.URL, false))
	h.clock.Advance(500 * time.Millisecond)
	require.Equal(t, 1, h.control.count("record_start"))
}

func TestOutboundDialFailure(t *testing.T) {
	h := newHarness(t, nil)
	h.control.failWith("dial", errors.New("invalid connection"))

	_, err := h.svc.PlaceOutboundCall(context.Background(), call.OutboundCallRequest{Task: "x", To: "+1999"})
	require.ErrorIs(t, err, call.ErrPlaceCallFailed)
	require.Equal(t, 0, h.repo.Sessions.Count())
}

func TestOutboundOpeningLineFailureStartsListening(t *testing.T) {
	h := newHarness(t, nil)

	res, err := h.svc.PlaceOutboundCall(context.Background(), call.OutboundCallRequest{Task: "order", To: "+1999"})
	require.NoError(t, err)

	h.cog.synthErr = errors.New("tts unavailable")
	err = h.svc.HandleEvent(context.Background(), call.NewCallAnswered(res.CallID))
	require.Error(t, err)

	require.Equal(t, 0, h.control.count("playback_start"))
	require.False(t, h.repo.Sessions.IsProcessing(res.CallID))
	require.False(t, h.repo.Sessions.IsAwaitingInput(res.CallID))
	require.Equal(t, 1, h.control.count("record_start"))
	require.True(t, h.svc.turns.Recording(res.CallID))
}
