// Package guardian coordinates session capture: the periodic auto-save,
// the debounced reaction to live browser changes, startup crash detection,
// and the save/list/restore/delete operations exposed to UI clients.
package guardian

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/sessionguard/sessionguard/pkg/browser"
	"github.com/sessionguard/sessionguard/pkg/restore"
	"github.com/sessionguard/sessionguard/pkg/snapshot"
	"github.com/sessionguard/sessionguard/pkg/store"
)

// opTimeout bounds background snapshot and store work triggered by timers
// rather than by a caller.
const opTimeout = 30 * time.Second

// ScrollUpdate is a scroll position report from a page-level collaborator.
type ScrollUpdate struct {
	URL       string `json:"url"`
	ScrollX   int    `json:"scrollX"`
	ScrollY   int    `json:"scrollY"`
	Timestamp int64  `json:"timestamp"`
}

// EventFunc receives lifecycle notifications (auto-save refreshed, crash
// recovery created, session saved/deleted/restored) for fan-out to clients.
type EventFunc func(event string, data interface{})

// Manager is the coordinator wired to all collaborators. It is constructed
// once at process start with its ports injected so tests can substitute
// fakes for the store, the live browser, and the clock.
type Manager struct {
	store   store.Store
	live    browser.Live
	clock   snapshot.Clock
	logger  zerolog.Logger
	onEvent EventFunc

	builder   *snapshot.Builder
	restorer  *restore.Restorer
	monitor   *ChangeMonitor
	autoSaver *AutoSaver
	crash     *CrashDetector

	stopEvents func()
}

// Config holds manager configuration.
type Config struct {
	Store store.Store
	Live  browser.Live
	Clock snapshot.Clock

	AutoSaveInterval time.Duration
	DebounceQuiet    time.Duration
	ProbeTimeout     time.Duration
	SettleDelay      time.Duration

	Logger  zerolog.Logger
	OnEvent EventFunc
}

// NewManager creates the coordinator.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Live == nil {
		return nil, fmt.Errorf("live browser port is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.AutoSaveInterval <= 0 {
		cfg.AutoSaveInterval = DefaultAutoSaveInterval
	}

	builder, err := snapshot.NewBuilder(snapshot.Config{
		Live:         cfg.Live,
		Clock:        cfg.Clock,
		ProbeTimeout: cfg.ProbeTimeout,
		Logger:       cfg.Logger,
	})
	if err != nil {
		return nil, err
	}

	restorer, err := restore.NewRestorer(restore.Config{
		Store:       cfg.Store,
		Live:        cfg.Live,
		SettleDelay: cfg.SettleDelay,
		Logger:      cfg.Logger,
	})
	if err != nil {
		return nil, err
	}

	m := &Manager{
		store:    cfg.Store,
		live:     cfg.Live,
		clock:    cfg.Clock,
		logger:   cfg.Logger,
		onEvent:  cfg.OnEvent,
		builder:  builder,
		restorer: restorer,
		crash:    NewCrashDetector(cfg.Store, cfg.Clock, cfg.AutoSaveInterval, cfg.Logger),
	}

	m.monitor = NewChangeMonitor(cfg.DebounceQuiet, m.refreshAutoSave, cfg.Logger)
	m.autoSaver = NewAutoSaver(cfg.AutoSaveInterval, m.autoSaveNow, cfg.Logger)

	return m, nil
}

// Start runs the startup crash check, subscribes to live browser mutation
// events when the port supports them, and arms the auto-save schedule.
func (m *Manager) Start(ctx context.Context) error {
	recovery, err := m.crash.Run(ctx)
	if err != nil {
		// Recovery is best-effort; a store failure here must not prevent
		// the daemon from running.
		m.logger.Error().Err(err).Msg("Crash recovery failed")
	}
	if recovery != nil {
		m.emit("session.crash_recovered", recovery)
	}

	if notifier, ok := m.live.(browser.ChangeNotifier); ok {
		stop, err := notifier.OnChange(m.NotifyChange)
		if err != nil {
			m.logger.Warn().Err(err).Msg("Could not subscribe to browser change events")
		} else {
			m.stopEvents = stop
		}
	}

	return m.autoSaver.Start()
}

// Stop tears down timers and subscriptions. A pending debounce firing is
// canceled; scroll restorations already scheduled run to completion.
func (m *Manager) Stop() {
	m.monitor.Stop()
	m.autoSaver.Stop()
	if m.stopEvents != nil {
		m.stopEvents()
		m.stopEvents = nil
	}
}

// SaveSession captures and persists a manual session. An empty name gets
// the default timestamp-derived label.
func (m *Manager) SaveSession(ctx context.Context, name string) (snapshot.SessionRecord, error) {
	record, err := m.builder.Build(ctx, name, false)
	if err != nil {
		return snapshot.SessionRecord{}, fmt.Errorf("failed to capture session: %w", err)
	}

	if err := m.store.Save(ctx, record); err != nil {
		return snapshot.SessionRecord{}, err
	}

	m.logger.Info().Str("id", record.ID).Str("name", record.Name).Msg("Session saved")
	m.emit("session.saved", record)
	return record, nil
}

// Sessions returns all stored records, most-recent-first.
func (m *Manager) Sessions(ctx context.Context) []snapshot.SessionRecord {
	return m.store.ListAll(ctx)
}

// RestoreSession replays a stored session into live windows and tabs.
func (m *Manager) RestoreSession(ctx context.Context, sessionID string) error {
	if err := m.restorer.Restore(ctx, sessionID); err != nil {
		return err
	}
	m.emit("session.restored", map[string]string{"sessionId": sessionID})
	return nil
}

// DeleteSession removes a stored record by id. Absent ids are a no-op.
func (m *Manager) DeleteSession(ctx context.Context, sessionID string) error {
	if err := m.store.Delete(ctx, sessionID); err != nil {
		return err
	}
	m.emit("session.deleted", map[string]string{"sessionId": sessionID})
	return nil
}

// NotifyChange records a qualifying window/tab mutation event. Bursts are
// coalesced into one auto-save refresh by the change monitor.
func (m *Manager) NotifyChange() {
	m.monitor.Notify()
}

// ReportScrollUpdate handles a scroll position report from a page. It rides
// the same debounced refresh path as mutation events, sharing one timer.
func (m *Manager) ReportScrollUpdate(update ScrollUpdate) {
	m.logger.Debug().
		Str("url", update.URL).
		Int("x", update.ScrollX).
		Int("y", update.ScrollY).
		Msg("Scroll update reported")
	m.monitor.Notify()
}

// autoSaveNow is the periodic job: capture a fresh auto-save record. The
// store replaces any previous auto-save with it.
func (m *Manager) autoSaveNow() {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	record, err := m.builder.Build(ctx, snapshot.AutoSaveName, true)
	if err != nil {
		m.logger.Error().Err(err).Msg("Auto-save capture failed")
		return
	}

	if err := m.store.Save(ctx, record); err != nil {
		m.logger.Error().Err(err).Msg("Auto-save persist failed")
		return
	}

	m.logger.Debug().Str("id", record.ID).Msg("Auto-save completed")
	m.emit("session.autosaved", record)
}

// refreshAutoSave is the debounced job: recapture current state and rewrite
// the existing auto-save record in place, preserving both its id and its
// position in the list. When no auto-save exists (never created, or evicted
// by the cap) the fresh record becomes the first one under its new id.
func (m *Manager) refreshAutoSave() {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	record, err := m.builder.Build(ctx, snapshot.AutoSaveName, true)
	if err != nil {
		m.logger.Error().Err(err).Msg("Auto-save refresh capture failed")
		return
	}

	if existing, ok := m.store.FindLatestAuto(ctx); ok {
		record.ID = existing.ID
		err = m.store.Update(ctx, record)
		if err == store.ErrNotFound {
			// Evicted between lookup and rewrite; fall through to insert.
			err = m.store.Save(ctx, record)
		}
	} else {
		err = m.store.Save(ctx, record)
	}
	if err != nil {
		m.logger.Error().Err(err).Msg("Auto-save refresh persist failed")
		return
	}

	m.logger.Debug().Str("id", record.ID).Msg("Auto-save refreshed")
	m.emit("session.autosaved", record)
}

func (m *Manager) emit(event string, data interface{}) {
	if m.onEvent != nil {
		m.onEvent(event, data)
	}
}
