package guardian

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sessionguard/sessionguard/pkg/snapshot"
)

func TestCrashDetectorNoAutoSave(t *testing.T) {
	st := newMemStore()
	d := NewCrashDetector(st, nil, 5*time.Minute, zerolog.Nop())

	recovery, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.Nil(t, recovery)
	assert.Empty(t, st.ListAll(context.Background()))
}

func TestCrashDetectorCleanShutdown(t *testing.T) {
	now := time.UnixMilli(10_000_000_000)
	interval := 5 * time.Minute

	st := newMemStore()
	// Auto-save exactly at the threshold boundary counts as clean.
	saved := now.Add(-2 * interval)
	require.NoError(t, st.Save(context.Background(), autoRecord("auto1", saved)))

	d := NewCrashDetector(st, func() time.Time { return now }, interval, zerolog.Nop())

	recovery, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.Nil(t, recovery)
	assert.Len(t, st.ListAll(context.Background()), 1)
}

func TestCrashDetectorUnexpectedShutdown(t *testing.T) {
	now := time.UnixMilli(10_000_000_000)
	interval := 5 * time.Minute

	st := newMemStore()
	// Auto-save just inside the window means the process died mid-cycle.
	saved := now.Add(-2*interval + time.Second)
	require.NoError(t, st.Save(context.Background(), autoRecord("auto1", saved)))

	d := NewCrashDetector(st, func() time.Time { return now }, interval, zerolog.Nop())

	recovery, err := d.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, recovery)

	assert.Equal(t, snapshot.KindCrashRecovery, recovery.Kind)
	assert.NotEqual(t, "auto1", recovery.ID, "recovery must get a fresh id")
	assert.Contains(t, recovery.Name, "Crash Recovery - ")
	assert.Equal(t, saved.UnixMilli(), recovery.Timestamp, "recovery keeps the capture timestamp")

	// Both records exist: the original auto-save and the recovery clone.
	records := st.ListAll(context.Background())
	require.Len(t, records, 2)
	assert.Equal(t, recovery.ID, records[0].ID)
	assert.Equal(t, "auto1", records[1].ID)
	assert.Equal(t, snapshot.KindAuto, records[1].Kind)

	// Window contents are cloned verbatim.
	require.Len(t, recovery.Windows, 1)
	assert.Equal(t, "https://example.com", recovery.Windows[0].Tabs[0].URL)
}

func TestCrashDetectorSaveFailure(t *testing.T) {
	now := time.UnixMilli(10_000_000_000)
	interval := 5 * time.Minute

	st := newMemStore()
	require.NoError(t, st.Save(context.Background(), autoRecord("auto1", now.Add(-time.Minute))))
	st.saveErr = fmt.Errorf("disk full")

	d := NewCrashDetector(st, func() time.Time { return now }, interval, zerolog.Nop())

	_, err := d.Run(context.Background())
	assert.Error(t, err)
}
