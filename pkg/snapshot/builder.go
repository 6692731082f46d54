package snapshot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sessionguard/sessionguard/internal/metrics"
	"github.com/sessionguard/sessionguard/pkg/browser"
)

const (
	// DefaultProbeTimeout bounds a single scroll probe. A hung probe falls
	// back to the origin offset instead of stalling the whole snapshot.
	DefaultProbeTimeout = 3 * time.Second

	// AutoSaveName is the fixed label of auto-save records.
	AutoSaveName = "Auto-save"
)

// Clock supplies the current time. Injected so tests control timestamps.
type Clock func() time.Time

// Builder walks live browser state and produces session records.
type Builder struct {
	live         browser.Live
	clock        Clock
	probeTimeout time.Duration
	logger       zerolog.Logger
}

// Config holds builder configuration.
type Config struct {
	Live         browser.Live
	Clock        Clock
	ProbeTimeout time.Duration
	Logger       zerolog.Logger
}

// NewBuilder creates a snapshot builder.
func NewBuilder(cfg Config) (*Builder, error) {
	if cfg.Live == nil {
		return nil, fmt.Errorf("live browser port is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = DefaultProbeTimeout
	}

	return &Builder{
		live:         cfg.Live,
		clock:        cfg.Clock,
		probeTimeout: cfg.ProbeTimeout,
		logger:       cfg.Logger,
	}, nil
}

// Build captures the current browser state into a new record. The record is
// not persisted; that is the store's job.
//
// Window and tab attributes are copied verbatim. Scroll offsets are probed
// per tab with a bounded timeout; any per-tab failure degrades that tab to
// the origin offset and never aborts the snapshot. Only a failure to
// enumerate windows at all is returned to the caller.
func (b *Builder) Build(ctx context.Context, name string, autoSave bool) (SessionRecord, error) {
	start := time.Now()

	windows, err := b.live.Windows(ctx)
	if err != nil {
		return SessionRecord{}, fmt.Errorf("failed to enumerate windows: %w", err)
	}

	now := b.clock()

	record := SessionRecord{
		ID:        NewID(now),
		Name:      b.recordName(name, autoSave, now),
		Timestamp: now.UnixMilli(),
		Kind:      KindManual,
		Windows:   make([]WindowRecord, 0, len(windows)),
	}
	if autoSave {
		record.Kind = KindAuto
	}

	for _, win := range windows {
		record.Windows = append(record.Windows, b.captureWindow(ctx, win))
	}

	metrics.RecordSnapshot(string(record.Kind), time.Since(start))

	return record, nil
}

func (b *Builder) recordName(name string, autoSave bool, now time.Time) string {
	if name != "" {
		return name
	}
	if autoSave {
		return AutoSaveName
	}
	return "Session " + now.Format("Jan 2, 2006 3:04:05 PM")
}

func (b *Builder) captureWindow(ctx context.Context, win browser.WindowInfo) WindowRecord {
	record := WindowRecord{
		OriginalID: win.ID,
		Type:       win.Type,
		State:      win.State,
		Focused:    win.Focused,
		Incognito:  win.Incognito,
		Tabs:       make([]TabRecord, len(win.Tabs)),
	}

	// Probes run concurrently and may resolve out of order; each writes to
	// its own slot.
	var wg sync.WaitGroup
	for i, tab := range win.Tabs {
		record.Tabs[i] = TabRecord{
			URL:        tab.URL,
			Title:      tab.Title,
			Pinned:     tab.Pinned,
			Active:     tab.Active,
			Index:      tab.Index,
			FavIconURL: tab.FavIconURL,
		}

		if IsRestrictedURL(tab.URL) {
			continue
		}

		wg.Add(1)
		go func(slot *TabRecord, tab browser.TabInfo) {
			defer wg.Done()
			slot.ScrollPosition = b.probeScroll(ctx, tab)
		}(&record.Tabs[i], tab)
	}
	wg.Wait()

	return record
}

// probeScroll reads a tab's scroll offset, bounded by the probe timeout.
// Failure of any kind yields the origin offset.
func (b *Builder) probeScroll(ctx context.Context, tab browser.TabInfo) browser.ScrollOffset {
	probeCtx, cancel := context.WithTimeout(ctx, b.probeTimeout)
	defer cancel()

	offset, err := b.live.ReadScroll(probeCtx, tab.ID)
	if err != nil {
		metrics.RecordProbeFailure()
		b.logger.Debug().
			Err(err).
			Str("tab_id", tab.ID).
			Str("url", tab.URL).
			Msg("Scroll probe failed, using origin")
		return browser.ScrollOffset{}
	}

	return offset
}
