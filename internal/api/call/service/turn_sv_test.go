package callService

import (
	"VoiceBridge/pkg/clock"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTurnControllerArmReplaces(t *testing.T) {
	clk := clock.NewManual(time.Unix(0, 0))
	var fired atomic.Int32
	tc := NewTurnController(clk, 8*time.Second, func(string) { fired.Add(1) })

	tc.Arm("a")
	clk.Advance(5 * time.Second)
	tc.Arm("a")
	require.Equal(t, 1, clk.Pending())

	clk.Advance(5 * time.Second)
	require.Equal(t, int32(0), fired.Load())
	clk.Advance(3 * time.Second)
	require.Equal(t, int32(1), fired.Load())
	require.False(t, tc.Recording("a"))
}

func TestTurnControllerCancel(t *testing.T) {
	clk := clock.NewManual(time.Unix(0, 0))
	var fired atomic.Int32
	tc := NewTurnController(clk, time.Second, func(string) { fired.Add(1) })

	started := false
	tc.Arm("a")
	tc.Defer("a", 100*time.Millisecond, func() { started = true })
	require.True(t, tc.startPending("a"))

	tc.Cancel("a")
	tc.Cancel("a")
	clk.Advance(time.Minute)

	require.False(t, started)
	require.Equal(t, int32(0), fired.Load())
	require.Equal(t, 0, clk.Pending())
}

func TestTurnControllerCallsAreIndependent(t *testing.T) {
	clk := clock.NewManual(time.Unix(0, 0))
	var got []string
	tc := NewTurnController(clk, time.Second, func(id string) { got = append(got, id) })

	tc.Arm("a")
	tc.Arm("b")
	tc.Cancel("a")
	clk.Advance(time.Second)

	require.Equal(t, []string{"b"}, got)
}

func TestGateAllowList(t *testing.T) {
	clk := clock.NewManual(time.Unix(0, 0))
	g := NewGate([]string{"+1999"}, NewOutboundLimiter(clk, time.Minute))

	require.True(t, g.IsAllowed("+1999"))
	require.False(t, g.IsAllowed("+1555"))
	require.True(t, NewGate(nil, nil).IsAllowed("+1555"))
}

func TestOutboundLimiterWindow(t *testing.T) {
	clk := clock.NewManual(time.Unix(0, 0))
	l := NewOutboundLimiter(clk, time.Minute)

	_, ok := l.Acquire()
	require.True(t, ok)

	clk.Advance(10 * time.Second)
	wait, ok := l.Acquire()
	require.False(t, ok)
	require.Equal(t, 50*time.Second, wait)

	// Rejections do not extend the window.
	clk.Advance(50 * time.Second)
	_, ok = l.Acquire()
	require.True(t, ok)
}
