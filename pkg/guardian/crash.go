package guardian

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/sessionguard/sessionguard/internal/metrics"
	"github.com/sessionguard/sessionguard/pkg/snapshot"
	"github.com/sessionguard/sessionguard/pkg/store"
)

// crashWindowFactor scales the auto-save interval into the unexpected
// shutdown threshold: an auto-save younger than factor x interval at
// startup means the previous process did not shut down cleanly.
const crashWindowFactor = 2

// CrashDetector inspects the auto-save record once at startup to decide
// whether the previous shutdown was unexpected.
//
// This is a heuristic, not a guarantee: a browser left idle and restarted
// inside the window is indistinguishable from a crash, so false positives
// are possible and accepted.
type CrashDetector struct {
	store    store.Store
	clock    snapshot.Clock
	interval time.Duration
	logger   zerolog.Logger
}

// NewCrashDetector creates a crash detector. interval is the auto-save
// interval the threshold derives from.
func NewCrashDetector(st store.Store, clock snapshot.Clock, interval time.Duration, logger zerolog.Logger) *CrashDetector {
	if clock == nil {
		clock = time.Now
	}
	return &CrashDetector{
		store:    st,
		clock:    clock,
		interval: interval,
		logger:   logger,
	}
}

// Run performs the startup check. When an unexpected shutdown is detected
// it appends a crash-recovery clone of the auto-save record (fresh id; the
// auto-save record itself is left untouched) and returns it.
func (d *CrashDetector) Run(ctx context.Context) (*snapshot.SessionRecord, error) {
	auto, ok := d.store.FindLatestAuto(ctx)
	if !ok {
		d.logger.Debug().Msg("No auto-save record, skipping crash check")
		return nil, nil
	}

	now := d.clock()
	elapsed := now.Sub(auto.Time())
	threshold := crashWindowFactor * d.interval

	if elapsed >= threshold {
		d.logger.Debug().
			Dur("elapsed", elapsed).
			Dur("threshold", threshold).
			Msg("Auto-save is stale, previous shutdown looks clean")
		return nil, nil
	}

	recovery := auto
	recovery.ID = snapshot.NewID(now)
	recovery.Name = "Crash Recovery - " + now.Format("Jan 2, 2006 3:04:05 PM")
	recovery.Kind = snapshot.KindCrashRecovery

	if err := d.store.Save(ctx, recovery); err != nil {
		return nil, fmt.Errorf("failed to save crash recovery session: %w", err)
	}

	metrics.RecordCrashRecovery()
	d.logger.Warn().
		Str("id", recovery.ID).
		Dur("elapsed", elapsed).
		Msg("Unexpected shutdown detected, crash recovery session saved")

	return &recovery, nil
}
