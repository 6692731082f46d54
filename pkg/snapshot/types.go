// Package snapshot captures live browser state into immutable session
// records. A record is a point-in-time copy of every open window and tab,
// including a best-effort scroll offset per tab.
package snapshot

import (
	"strconv"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/sessionguard/sessionguard/pkg/browser"
)

// Kind classifies how a session record came to exist.
type Kind string

const (
	KindManual        Kind = "manual"
	KindAuto          Kind = "auto"
	KindCrashRecovery Kind = "crash_recovery"
)

// SessionRecord is an immutable capture of the full browser state.
type SessionRecord struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Timestamp int64          `json:"timestamp"`
	Kind      Kind           `json:"kind"`
	Windows   []WindowRecord `json:"windows"`
}

// Time returns the record timestamp as a time.Time.
func (r SessionRecord) Time() time.Time {
	return time.UnixMilli(r.Timestamp)
}

// WindowRecord captures one window. OriginalID is the live window id at
// capture time; it is not stable across browser restarts and is kept for
// display only.
type WindowRecord struct {
	OriginalID int         `json:"originalId"`
	Type       string      `json:"type"`
	State      string      `json:"state"`
	Focused    bool        `json:"focused"`
	Incognito  bool        `json:"incognito"`
	Tabs       []TabRecord `json:"tabs"`
}

// TabRecord captures one tab. Tab order within a window is the desired
// restore order, assigned from the live index.
type TabRecord struct {
	URL            string               `json:"url"`
	Title          string               `json:"title"`
	Pinned         bool                 `json:"pinned"`
	Active         bool                 `json:"active"`
	Index          int                  `json:"index"`
	FavIconURL     string               `json:"favIconUrl"`
	ScrollPosition browser.ScrollOffset `json:"scrollPosition"`
}

// NewID generates a record id unique across the process lifetime: a base36
// millisecond timestamp joined with a random suffix, so collisions require
// two ids generated in the same millisecond with identical random parts.
func NewID(now time.Time) string {
	suffix, err := gonanoid.New(12)
	if err != nil {
		// crypto/rand exhaustion; fall back to the nanosecond clock.
		suffix = strconv.FormatInt(now.UnixNano(), 36)
	}
	return strconv.FormatInt(now.UnixMilli(), 36) + suffix
}

// restrictedPrefixes are URL schemes that never accept script injection:
// browser-internal pages and extension pages. Tabs on these URLs are never
// probed for scroll state.
var restrictedPrefixes = []string{
	"chrome://",
	"chrome-extension://",
	"edge://",
	"brave://",
	"about:",
	"devtools://",
	"view-source:",
}

// IsRestrictedURL reports whether a URL must not be probed. An empty URL is
// treated as restricted.
func IsRestrictedURL(url string) bool {
	if url == "" {
		return true
	}
	for _, prefix := range restrictedPrefixes {
		if len(url) >= len(prefix) && url[:len(prefix)] == prefix {
			return true
		}
	}
	return false
}
