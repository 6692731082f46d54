package snapshot

import (
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsRestrictedURL(t *testing.T) {
	tests := []struct {
		name       string
		url        string
		restricted bool
	}{
		{"https page", "https://example.com/path", false},
		{"http page", "http://example.com", false},
		{"file url", "file:///tmp/page.html", false},
		{"chrome settings", "chrome://settings", true},
		{"chrome newtab", "chrome://newtab/", true},
		{"extension page", "chrome-extension://abcdef/popup.html", true},
		{"edge internal", "edge://settings", true},
		{"brave internal", "brave://rewards", true},
		{"about blank", "about:blank", true},
		{"devtools", "devtools://devtools/bundled/inspector.html", true},
		{"view-source", "view-source:https://example.com", true},
		{"empty url", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.restricted, IsRestrictedURL(tt.url))
		})
	}
}

func TestNewID(t *testing.T) {
	now := time.Now()

	t.Run("unique across calls", func(t *testing.T) {
		seen := make(map[string]bool)
		for i := 0; i < 100; i++ {
			id := NewID(now)
			assert.False(t, seen[id], "duplicate id %s", id)
			seen[id] = true
		}
	})

	t.Run("embeds the timestamp", func(t *testing.T) {
		ts := time.UnixMilli(1700000000000)
		prefix := strconv.FormatInt(ts.UnixMilli(), 36)

		id := NewID(ts)
		assert.True(t, strings.HasPrefix(id, prefix))
		assert.Greater(t, len(id), len(prefix))
	})
}

func TestSessionRecordTime(t *testing.T) {
	record := SessionRecord{Timestamp: 1700000000000}
	assert.Equal(t, time.UnixMilli(1700000000000), record.Time())
}
