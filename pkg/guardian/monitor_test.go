package guardian

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChangeMonitorCoalescesBursts(t *testing.T) {
	var fires int64
	m := NewChangeMonitor(50*time.Millisecond, func() {
		atomic.AddInt64(&fires, 1)
	}, zerolog.Nop())
	defer m.Stop()

	// A burst of events inside the quiet period fires exactly once.
	for i := 0; i < 10; i++ {
		m.Notify()
		time.Sleep(5 * time.Millisecond)
	}

	require.Eventually(t, func() bool {
		return atomic.LoadInt64(&fires) == 1
	}, time.Second, 10*time.Millisecond)

	// No extra firing afterwards.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int64(1), atomic.LoadInt64(&fires))
}

func TestChangeMonitorSeparateBursts(t *testing.T) {
	var fires int64
	m := NewChangeMonitor(30*time.Millisecond, func() {
		atomic.AddInt64(&fires, 1)
	}, zerolog.Nop())
	defer m.Stop()

	m.Notify()
	require.Eventually(t, func() bool {
		return atomic.LoadInt64(&fires) == 1
	}, time.Second, 5*time.Millisecond)

	m.Notify()
	require.Eventually(t, func() bool {
		return atomic.LoadInt64(&fires) == 2
	}, time.Second, 5*time.Millisecond)
}

func TestChangeMonitorPending(t *testing.T) {
	m := NewChangeMonitor(50*time.Millisecond, func() {}, zerolog.Nop())
	defer m.Stop()

	assert.False(t, m.Pending())

	m.Notify()
	assert.True(t, m.Pending())

	require.Eventually(t, func() bool {
		return !m.Pending()
	}, time.Second, 5*time.Millisecond)
}

func TestChangeMonitorStopCancelsPending(t *testing.T) {
	var fires int64
	m := NewChangeMonitor(30*time.Millisecond, func() {
		atomic.AddInt64(&fires, 1)
	}, zerolog.Nop())

	m.Notify()
	m.Stop()

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, int64(0), atomic.LoadInt64(&fires))

	// Notifications after Stop are ignored.
	m.Notify()
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, int64(0), atomic.LoadInt64(&fires))
}

func TestChangeMonitorDefaultQuiet(t *testing.T) {
	m := NewChangeMonitor(0, func() {}, zerolog.Nop())
	defer m.Stop()
	assert.Equal(t, DefaultDebounceQuiet, m.quiet)
}
