package restore

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sessionguard/sessionguard/pkg/browser"
	"github.com/sessionguard/sessionguard/pkg/snapshot"
	"github.com/sessionguard/sessionguard/pkg/store"
)

// recordStore serves a fixed set of records.
type recordStore struct {
	records map[string]snapshot.SessionRecord
}

func (s *recordStore) ListAll(_ context.Context) []snapshot.SessionRecord { return nil }

func (s *recordStore) Get(_ context.Context, id string) (snapshot.SessionRecord, error) {
	if r, ok := s.records[id]; ok {
		return r, nil
	}
	return snapshot.SessionRecord{}, store.ErrNotFound
}

func (s *recordStore) Save(_ context.Context, _ snapshot.SessionRecord) error   { return nil }
func (s *recordStore) Update(_ context.Context, _ snapshot.SessionRecord) error { return nil }
func (s *recordStore) Delete(_ context.Context, _ string) error                 { return nil }
func (s *recordStore) FindLatestAuto(_ context.Context) (snapshot.SessionRecord, bool) {
	return snapshot.SessionRecord{}, false
}

// replayLive records create and scroll calls and can fail on demand.
type replayLive struct {
	mu sync.Mutex

	createdWindows []browser.CreateWindowParams
	createdTabs    []browser.CreateTabParams
	pinned         map[string]bool
	scrolled       map[string]browser.ScrollOffset

	windowErr  error
	tabErrURL  string
	nextWindow int
	nextTab    int
}

func newReplayLive() *replayLive {
	return &replayLive{
		pinned:   make(map[string]bool),
		scrolled: make(map[string]browser.ScrollOffset),
	}
}

func (l *replayLive) Windows(_ context.Context) ([]browser.WindowInfo, error) { return nil, nil }

func (l *replayLive) ReadScroll(_ context.Context, _ string) (browser.ScrollOffset, error) {
	return browser.ScrollOffset{}, nil
}

func (l *replayLive) SetScroll(_ context.Context, tabID string, offset browser.ScrollOffset) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.scrolled[tabID] = offset
	return nil
}

func (l *replayLive) CreateWindow(_ context.Context, params browser.CreateWindowParams) (browser.CreatedWindow, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.windowErr != nil {
		return browser.CreatedWindow{}, l.windowErr
	}

	l.createdWindows = append(l.createdWindows, params)
	l.nextWindow++
	l.nextTab++
	return browser.CreatedWindow{
		WindowID:   l.nextWindow,
		FirstTabID: fmt.Sprintf("tab-%d", l.nextTab),
	}, nil
}

func (l *replayLive) CreateTab(_ context.Context, params browser.CreateTabParams) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.tabErrURL != "" && params.URL == l.tabErrURL {
		return "", fmt.Errorf("tab creation refused")
	}

	l.createdTabs = append(l.createdTabs, params)
	l.nextTab++
	return fmt.Sprintf("tab-%d", l.nextTab), nil
}

func (l *replayLive) SetPinned(_ context.Context, tabID string, pinned bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pinned[tabID] = pinned
	return nil
}

func (l *replayLive) scrolledTo(tabID string) (browser.ScrollOffset, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	offset, ok := l.scrolled[tabID]
	return offset, ok
}

func newTestRestorer(t *testing.T, st store.Store, live browser.Live) *Restorer {
	t.Helper()

	r, err := NewRestorer(Config{
		Store:       st,
		Live:        live,
		SettleDelay: 10 * time.Millisecond,
		Logger:      zerolog.Nop(),
	})
	require.NoError(t, err)
	return r
}

func twoWindowRecord() snapshot.SessionRecord {
	return snapshot.SessionRecord{
		ID:   "sess1",
		Name: "Two windows",
		Kind: snapshot.KindManual,
		Windows: []snapshot.WindowRecord{
			{
				OriginalID: 1,
				Type:       "normal",
				State:      "maximized",
				Focused:    true,
				Tabs: []snapshot.TabRecord{
					{URL: "https://a.example", Pinned: true, Active: true, Index: 0, ScrollPosition: browser.ScrollOffset{Y: 200}},
					{URL: "https://b.example", Index: 1},
					{URL: "https://c.example", Index: 2, ScrollPosition: browser.ScrollOffset{X: 5, Y: 10}},
				},
			},
			{
				OriginalID: 2,
				Type:       "normal",
				State:      "normal",
				Incognito:  true,
				Tabs: []snapshot.TabRecord{
					{URL: "https://d.example", Index: 0},
				},
			},
		},
	}
}

func TestNewRestorerValidation(t *testing.T) {
	t.Run("requires store", func(t *testing.T) {
		_, err := NewRestorer(Config{Live: newReplayLive(), Logger: zerolog.Nop()})
		assert.Error(t, err)
	})

	t.Run("requires live port", func(t *testing.T) {
		_, err := NewRestorer(Config{Store: &recordStore{}, Logger: zerolog.Nop()})
		assert.Error(t, err)
	})
}

func TestRestoreNotFound(t *testing.T) {
	r := newTestRestorer(t, &recordStore{}, newReplayLive())

	err := r.Restore(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRestoreTwoPhase(t *testing.T) {
	live := newReplayLive()
	st := &recordStore{records: map[string]snapshot.SessionRecord{"sess1": twoWindowRecord()}}
	r := newTestRestorer(t, st, live)

	require.NoError(t, r.Restore(context.Background(), "sess1"))

	// Phase one: one window per stored window, seeded with the first tab.
	require.Len(t, live.createdWindows, 2)
	assert.Equal(t, "https://a.example", live.createdWindows[0].URL)
	assert.Equal(t, "maximized", live.createdWindows[0].State)
	assert.True(t, live.createdWindows[0].Focused)
	assert.Equal(t, "https://d.example", live.createdWindows[1].URL)
	assert.True(t, live.createdWindows[1].Incognito)

	// Phase two: remaining tabs in stored order.
	require.Len(t, live.createdTabs, 2)
	assert.Equal(t, "https://b.example", live.createdTabs[0].URL)
	assert.Equal(t, "https://c.example", live.createdTabs[1].URL)
	assert.Equal(t, 2, live.createdTabs[1].Index)

	// Pinned state is applied to the seed tab after creation.
	assert.True(t, live.pinned["tab-1"])
}

func TestRestoreScrollAfterSettle(t *testing.T) {
	live := newReplayLive()
	st := &recordStore{records: map[string]snapshot.SessionRecord{"sess1": twoWindowRecord()}}
	r := newTestRestorer(t, st, live)

	require.NoError(t, r.Restore(context.Background(), "sess1"))

	// First tab scrolls to its stored offset once the settle delay passes.
	require.Eventually(t, func() bool {
		offset, ok := live.scrolledTo("tab-1")
		return ok && offset.Y == 200
	}, time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		offset, ok := live.scrolledTo("tab-3")
		return ok && offset.X == 5 && offset.Y == 10
	}, time.Second, 10*time.Millisecond)

	// Origin offsets are never written.
	time.Sleep(50 * time.Millisecond)
	_, ok := live.scrolledTo("tab-2")
	assert.False(t, ok)
	_, ok = live.scrolledTo("tab-4")
	assert.False(t, ok)
}

func TestRestoreSkipsEmptyWindow(t *testing.T) {
	record := snapshot.SessionRecord{
		ID: "sess1",
		Windows: []snapshot.WindowRecord{
			{OriginalID: 1, Tabs: nil},
			{OriginalID: 2, Tabs: []snapshot.TabRecord{{URL: "https://a.example"}}},
		},
	}
	live := newReplayLive()
	st := &recordStore{records: map[string]snapshot.SessionRecord{"sess1": record}}
	r := newTestRestorer(t, st, live)

	require.NoError(t, r.Restore(context.Background(), "sess1"))
	require.Len(t, live.createdWindows, 1)
	assert.Equal(t, "https://a.example", live.createdWindows[0].URL)
}

func TestRestorePartialFailure(t *testing.T) {
	live := newReplayLive()
	live.tabErrURL = "https://c.example"
	st := &recordStore{records: map[string]snapshot.SessionRecord{"sess1": twoWindowRecord()}}
	r := newTestRestorer(t, st, live)

	err := r.Restore(context.Background(), "sess1")
	require.Error(t, err)

	// Not transactional: the window and the tab before the failure remain.
	assert.Len(t, live.createdWindows, 1)
	assert.Len(t, live.createdTabs, 1)
}

func TestRestoreWindowCreationFailure(t *testing.T) {
	live := newReplayLive()
	live.windowErr = fmt.Errorf("browser refused")
	st := &recordStore{records: map[string]snapshot.SessionRecord{"sess1": twoWindowRecord()}}
	r := newTestRestorer(t, st, live)

	assert.Error(t, r.Restore(context.Background(), "sess1"))
}
