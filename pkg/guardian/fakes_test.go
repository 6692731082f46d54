package guardian

import (
	"context"
	"sync"
	"time"

	"github.com/sessionguard/sessionguard/pkg/browser"
	"github.com/sessionguard/sessionguard/pkg/snapshot"
	"github.com/sessionguard/sessionguard/pkg/store"
)

// memStore is an in-memory store.Store with the same list semantics as the
// SQLite implementation.
type memStore struct {
	mu      sync.Mutex
	records []snapshot.SessionRecord
	saveErr error
}

func newMemStore() *memStore {
	return &memStore{}
}

func (s *memStore) ListAll(_ context.Context) []snapshot.SessionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]snapshot.SessionRecord, len(s.records))
	copy(out, s.records)
	return out
}

func (s *memStore) Get(_ context.Context, id string) (snapshot.SessionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.records {
		if r.ID == id {
			return r, nil
		}
	}
	return snapshot.SessionRecord{}, store.ErrNotFound
}

func (s *memStore) Save(_ context.Context, record snapshot.SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.saveErr != nil {
		return s.saveErr
	}

	if record.Kind == snapshot.KindAuto {
		kept := s.records[:0]
		for _, r := range s.records {
			if r.Kind != snapshot.KindAuto {
				kept = append(kept, r)
			}
		}
		s.records = kept
	}

	s.records = append([]snapshot.SessionRecord{record}, s.records...)
	if len(s.records) > store.MaxSessions {
		s.records = s.records[:store.MaxSessions]
	}
	return nil
}

func (s *memStore) Update(_ context.Context, record snapshot.SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.records {
		if s.records[i].ID == record.ID {
			s.records[i] = record
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *memStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.records[:0]
	for _, r := range s.records {
		if r.ID != id {
			kept = append(kept, r)
		}
	}
	s.records = kept
	return nil
}

func (s *memStore) FindLatestAuto(_ context.Context) (snapshot.SessionRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.records {
		if r.Kind == snapshot.KindAuto {
			return r, true
		}
	}
	return snapshot.SessionRecord{}, false
}

// fakeLive is a scriptable browser.Live recording restore calls.
type fakeLive struct {
	mu      sync.Mutex
	windows []browser.WindowInfo

	createdWindows []browser.CreateWindowParams
	createdTabs    []browser.CreateTabParams
	nextWindowID   int
	nextTabSeq     int
}

func newGuardianFakeLive() *fakeLive {
	return &fakeLive{nextWindowID: 100}
}

func (f *fakeLive) Windows(_ context.Context) ([]browser.WindowInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.windows, nil
}

func (f *fakeLive) ReadScroll(_ context.Context, _ string) (browser.ScrollOffset, error) {
	return browser.ScrollOffset{}, nil
}

func (f *fakeLive) SetScroll(_ context.Context, _ string, _ browser.ScrollOffset) error {
	return nil
}

func (f *fakeLive) CreateWindow(_ context.Context, params browser.CreateWindowParams) (browser.CreatedWindow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.createdWindows = append(f.createdWindows, params)
	f.nextWindowID++
	f.nextTabSeq++
	return browser.CreatedWindow{
		WindowID:   f.nextWindowID,
		FirstTabID: "fake-tab",
	}, nil
}

func (f *fakeLive) CreateTab(_ context.Context, params browser.CreateTabParams) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.createdTabs = append(f.createdTabs, params)
	f.nextTabSeq++
	return "fake-tab", nil
}

func (f *fakeLive) SetPinned(_ context.Context, _ string, _ bool) error {
	return nil
}

func autoRecord(id string, ts time.Time) snapshot.SessionRecord {
	return snapshot.SessionRecord{
		ID:        id,
		Name:      snapshot.AutoSaveName,
		Timestamp: ts.UnixMilli(),
		Kind:      snapshot.KindAuto,
		Windows: []snapshot.WindowRecord{
			{
				OriginalID: 1,
				Type:       "normal",
				State:      "normal",
				Tabs: []snapshot.TabRecord{
					{URL: "https://example.com", Title: "Example", Index: 0},
				},
			},
		},
	}
}
