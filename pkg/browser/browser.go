// Package browser defines the port to a live browser instance: enumerating
// windows and tabs, probing and restoring scroll offsets, and creating
// windows and tabs during session restore. The production implementation
// drives Chromium over the DevTools protocol via Rod; tests substitute fakes.
package browser

import "context"

// ScrollOffset is the pixel scroll offset of a page viewport.
type ScrollOffset struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// IsZero reports whether the offset is the page origin.
func (s ScrollOffset) IsZero() bool {
	return s.X == 0 && s.Y == 0
}

// TabInfo mirrors the live attributes of a single tab.
type TabInfo struct {
	ID         string
	URL        string
	Title      string
	Pinned     bool
	Active     bool
	Index      int
	FavIconURL string
}

// WindowInfo mirrors the live attributes of a window and its tabs.
// Tabs are ordered by their live index.
type WindowInfo struct {
	ID        int
	Type      string
	State     string
	Focused   bool
	Incognito bool
	Tabs      []TabInfo
}

// CreateWindowParams describes a new window seeded with one tab.
// A window cannot exist without a tab, so the first tab's URL is part
// of window creation.
type CreateWindowParams struct {
	URL       string
	Type      string
	State     string
	Focused   bool
	Incognito bool
}

// CreatedWindow identifies a freshly created window and its seed tab.
type CreatedWindow struct {
	WindowID   int
	FirstTabID string
}

// CreateTabParams describes a tab to attach to an existing window.
type CreateTabParams struct {
	WindowID int
	URL      string
	Pinned   bool
	Active   bool
	Index    int
}

// Live is the port to a running browser. Every call is asynchronous from
// the browser's point of view and may fail independently per target.
type Live interface {
	// Windows enumerates all open windows with their nested tabs.
	Windows(ctx context.Context) ([]WindowInfo, error)

	// ReadScroll probes the current scroll offset of a tab. Read-only.
	ReadScroll(ctx context.Context, tabID string) (ScrollOffset, error)

	// SetScroll scrolls a tab to the given offset.
	SetScroll(ctx context.Context, tabID string, offset ScrollOffset) error

	// CreateWindow creates a new window seeded with one tab.
	CreateWindow(ctx context.Context, params CreateWindowParams) (CreatedWindow, error)

	// CreateTab creates a tab attached to an existing window and returns
	// its id.
	CreateTab(ctx context.Context, params CreateTabParams) (string, error)

	// SetPinned updates a tab's pinned state.
	SetPinned(ctx context.Context, tabID string, pinned bool) error
}

// ChangeNotifier is implemented by Live ports that can push window/tab
// mutation events (creation, removal, significant updates such as a URL or
// title change). notify may be called from any goroutine.
type ChangeNotifier interface {
	// OnChange subscribes to mutation events. The returned function stops
	// the subscription.
	OnChange(notify func()) (stop func(), err error)
}
