package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestManualFiresInDeadlineOrder(t *testing.T) {
	m := NewManual(time.Unix(0, 0))
	var order []string

	m.AfterFunc(2*time.Second, func() { order = append(order, "b") })
	m.AfterFunc(1*time.Second, func() { order = append(order, "a") })
	m.AfterFunc(5*time.Second, func() { order = append(order, "c") })

	m.Advance(3 * time.Second)
	require.Equal(t, []string{"a", "b"}, order)
	require.Equal(t, 1, m.Pending())
	require.Equal(t, time.Unix(3, 0), m.Now())

	m.Advance(2 * time.Second)
	require.Equal(t, []string{"a", "b", "c"}, order)
	require.Zero(t, m.Pending())
}

func TestManualStop(t *testing.T) {
	m := NewManual(time.Unix(0, 0))
	fired := false

	tm := m.AfterFunc(time.Second, func() { fired = true })
	require.True(t, tm.Stop())
	require.False(t, tm.Stop())

	m.Advance(time.Minute)
	require.False(t, fired)
}

func TestManualCallbackCanSchedule(t *testing.T) {
	m := NewManual(time.Unix(0, 0))
	count := 0

	var tick func()
	tick = func() {
		count++
		if count < 3 {
			m.AfterFunc(time.Second, tick)
		}
	}
	m.AfterFunc(time.Second, tick)

	m.Advance(10 * time.Second)
	require.Equal(t, 3, count)
}
