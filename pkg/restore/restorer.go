// Package restore replays stored session records into live browser
// windows and tabs.
package restore

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/sessionguard/sessionguard/internal/metrics"
	"github.com/sessionguard/sessionguard/pkg/browser"
	"github.com/sessionguard/sessionguard/pkg/snapshot"
	"github.com/sessionguard/sessionguard/pkg/store"
)

const (
	// DefaultSettleDelay is how long a restored tab gets to finish its own
	// layout before its scroll offset is applied. A heuristic for "page
	// settled", not a correctness guarantee.
	DefaultSettleDelay = 1 * time.Second

	// scrollTimeout bounds the scroll write itself once the delay elapses.
	scrollTimeout = 5 * time.Second
)

// Restorer replays session records into new live windows and tabs.
//
// Restoration is strictly additive (pre-existing windows are never touched)
// and not transactional: the first hard failure is surfaced to the caller
// and everything created up to that point stays in place.
type Restorer struct {
	store       store.Store
	live        browser.Live
	settleDelay time.Duration
	logger      zerolog.Logger
}

// Config holds restorer configuration.
type Config struct {
	Store       store.Store
	Live        browser.Live
	SettleDelay time.Duration
	Logger      zerolog.Logger
}

// NewRestorer creates a session restorer.
func NewRestorer(cfg Config) (*Restorer, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Live == nil {
		return nil, fmt.Errorf("live browser port is required")
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = DefaultSettleDelay
	}

	return &Restorer{
		store:       cfg.Store,
		live:        cfg.Live,
		settleDelay: cfg.SettleDelay,
		logger:      cfg.Logger,
	}, nil
}

// Restore recreates the windows and tabs of the stored record with the
// given id. Returns store.ErrNotFound (wrapped) when no such record exists.
func (r *Restorer) Restore(ctx context.Context, sessionID string) error {
	record, err := r.store.Get(ctx, sessionID)
	if err != nil {
		metrics.RecordRestore("not_found")
		return fmt.Errorf("session %s: %w", sessionID, err)
	}

	r.logger.Info().
		Str("id", record.ID).
		Str("name", record.Name).
		Int("windows", len(record.Windows)).
		Msg("Restoring session")

	for _, win := range record.Windows {
		if err := r.restoreWindow(ctx, win); err != nil {
			metrics.RecordRestore("failed")
			return err
		}
	}

	metrics.RecordRestore("ok")
	return nil
}

// restoreWindow replays one window in two phases: phase one creates the
// window seeded with the first tab's URL (a live window cannot exist
// without a tab), phase two attaches the remaining tabs in stored order.
func (r *Restorer) restoreWindow(ctx context.Context, win snapshot.WindowRecord) error {
	if len(win.Tabs) == 0 {
		r.logger.Warn().Int("original_id", win.OriginalID).Msg("Skipping window with no tabs")
		return nil
	}

	first := win.Tabs[0]
	created, err := r.live.CreateWindow(ctx, browser.CreateWindowParams{
		URL:       first.URL,
		Type:      win.Type,
		State:     win.State,
		Focused:   win.Focused,
		Incognito: win.Incognito,
	})
	if err != nil {
		return fmt.Errorf("failed to create window: %w", err)
	}

	// Window creation cannot take a pinned flag; apply it afterwards.
	if first.Pinned {
		if err := r.live.SetPinned(ctx, created.FirstTabID, true); err != nil {
			r.logger.Debug().Err(err).Str("tab_id", created.FirstTabID).Msg("Could not pin restored tab")
		}
	}
	r.scheduleScroll(created.FirstTabID, first.ScrollPosition)

	for _, tab := range win.Tabs[1:] {
		tabID, err := r.live.CreateTab(ctx, browser.CreateTabParams{
			WindowID: created.WindowID,
			URL:      tab.URL,
			Pinned:   tab.Pinned,
			Active:   tab.Active,
			Index:    tab.Index,
		})
		if err != nil {
			return fmt.Errorf("failed to create tab %q: %w", tab.URL, err)
		}
		r.scheduleScroll(tabID, tab.ScrollPosition)
	}

	return nil
}

// scheduleScroll arms a fire-and-forget scroll restoration for a tab.
// Origin offsets are skipped entirely. Failure after the settle delay
// (tab closed, restricted page, navigation superseded the target) is
// ignored; the attempt is an idempotent no-op when the tab is gone.
func (r *Restorer) scheduleScroll(tabID string, offset browser.ScrollOffset) {
	if offset.IsZero() {
		return
	}

	time.AfterFunc(r.settleDelay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), scrollTimeout)
		defer cancel()

		if err := r.live.SetScroll(ctx, tabID, offset); err != nil {
			metrics.RecordScrollRestore("failed")
			r.logger.Debug().
				Err(err).
				Str("tab_id", tabID).
				Int("x", offset.X).
				Int("y", offset.Y).
				Msg("Scroll restore failed")
			return
		}
		metrics.RecordScrollRestore("ok")
	})
}
