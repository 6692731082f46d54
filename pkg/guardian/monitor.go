package guardian

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sessionguard/sessionguard/internal/metrics"
)

// DefaultDebounceQuiet is the quiet period after the last qualifying
// change event before the auto-save record is refreshed.
const DefaultDebounceQuiet = 2 * time.Second

// ChangeMonitor coalesces bursts of live browser mutation events into a
// single auto-save refresh: a trailing-edge debounce where every new event
// replaces the pending timer, so at most one firing is ever armed.
//
// All trigger sources (window and tab mutations, scroll updates reported
// by pages) share this one timer rather than debouncing independently.
type ChangeMonitor struct {
	quiet  time.Duration
	fire   func()
	logger zerolog.Logger

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

// NewChangeMonitor creates a monitor that calls fire once per burst of
// events, quiet-period after the last one.
func NewChangeMonitor(quiet time.Duration, fire func(), logger zerolog.Logger) *ChangeMonitor {
	if quiet <= 0 {
		quiet = DefaultDebounceQuiet
	}
	return &ChangeMonitor{
		quiet:  quiet,
		fire:   fire,
		logger: logger,
	}
}

// Notify records a qualifying change event. Arming the timer cancels any
// pending firing first, resetting the quiet period.
func (m *ChangeMonitor) Notify() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return
	}
	if m.timer != nil {
		m.timer.Stop()
	}

	m.timer = time.AfterFunc(m.quiet, func() {
		m.mu.Lock()
		if m.stopped {
			m.mu.Unlock()
			return
		}
		m.timer = nil
		m.mu.Unlock()

		metrics.RecordDebounceFire()
		m.logger.Debug().Msg("Change burst settled, refreshing auto-save")
		m.fire()
	})
}

// Pending reports whether a firing is currently armed.
func (m *ChangeMonitor) Pending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.timer != nil
}

// Stop cancels any pending firing and rejects further notifications.
func (m *ChangeMonitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopped = true
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}
