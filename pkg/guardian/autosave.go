package guardian

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// DefaultAutoSaveInterval is how often the periodic auto-save fires.
const DefaultAutoSaveInterval = 5 * time.Minute

// AutoSaver runs the periodic auto-save job on a fixed schedule.
type AutoSaver struct {
	c        *cron.Cron
	interval time.Duration
	job      func()
	logger   zerolog.Logger
}

// NewAutoSaver creates the periodic auto-save schedule. The job is not run
// until Start.
func NewAutoSaver(interval time.Duration, job func(), logger zerolog.Logger) *AutoSaver {
	if interval <= 0 {
		interval = DefaultAutoSaveInterval
	}
	return &AutoSaver{
		c:        cron.New(),
		interval: interval,
		job:      job,
		logger:   logger,
	}
}

// Start arms the schedule.
func (a *AutoSaver) Start() error {
	spec := fmt.Sprintf("@every %s", a.interval)
	if _, err := a.c.AddFunc(spec, a.job); err != nil {
		return fmt.Errorf("failed to schedule auto-save: %w", err)
	}

	a.c.Start()
	a.logger.Info().Dur("interval", a.interval).Msg("Auto-save schedule started")
	return nil
}

// Stop cancels the schedule. A job already running completes.
func (a *AutoSaver) Stop() {
	ctx := a.c.Stop()
	<-ctx.Done()
	a.logger.Info().Msg("Auto-save schedule stopped")
}

// Interval returns the configured auto-save interval.
func (a *AutoSaver) Interval() time.Duration {
	return a.interval
}
