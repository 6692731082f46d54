package browser

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog"
)

// Chrome drives a Chromium instance over the DevTools protocol via Rod.
//
// The protocol does not expose every attribute a browser UI has. Pinned
// state is tracked locally so snapshots taken through the same adapter
// round-trip it, tab focus within a window is approximated, and favicons
// are not reported.
type Chrome struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	logger   zerolog.Logger

	mu           sync.Mutex
	pinned       map[string]bool
	incognitoCtx map[proto.BrowserBrowserContextID]bool
	incognito    *rod.Browser
}

// Connect attaches to an already running Chromium exposing a DevTools
// control URL.
func Connect(controlURL string, logger zerolog.Logger) (*Chrome, error) {
	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to browser at %s: %w", controlURL, err)
	}

	logger.Info().Str("control_url", controlURL).Msg("Connected to browser")

	return newChrome(b, nil, logger), nil
}

// Launch starts a new Chromium process and attaches to it.
func Launch(headless bool, logger zerolog.Logger) (*Chrome, error) {
	l := launcher.New().Headless(headless)

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("failed to connect to launched browser: %w", err)
	}

	logger.Info().Bool("headless", headless).Msg("Browser launched")

	return newChrome(b, l, logger), nil
}

func newChrome(b *rod.Browser, l *launcher.Launcher, logger zerolog.Logger) *Chrome {
	return &Chrome{
		browser:      b,
		launcher:     l,
		logger:       logger,
		pinned:       make(map[string]bool),
		incognitoCtx: make(map[proto.BrowserBrowserContextID]bool),
	}
}

// Windows enumerates open windows with their nested tabs. Pages are grouped
// by their DevTools window id; tab order within a window follows target
// enumeration order.
func (c *Chrome) Windows(ctx context.Context) ([]WindowInfo, error) {
	pages, err := c.browser.Pages()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate pages: %w", err)
	}

	var order []int
	byWindow := make(map[int]*WindowInfo)

	for _, page := range pages {
		page = page.Context(ctx)

		info, err := page.Info()
		if err != nil {
			c.logger.Debug().Err(err).Str("tab_id", string(page.TargetID)).Msg("Skipping unreadable tab")
			continue
		}

		win, err := proto.BrowserGetWindowForTarget{}.Call(page)
		if err != nil {
			c.logger.Debug().Err(err).Str("tab_id", string(page.TargetID)).Msg("Skipping tab without window")
			continue
		}

		windowID := int(win.WindowID)
		w, exists := byWindow[windowID]
		if !exists {
			state := "normal"
			if win.Bounds != nil && win.Bounds.WindowState != "" {
				state = string(win.Bounds.WindowState)
			}
			w = &WindowInfo{
				ID:        windowID,
				Type:      "normal",
				State:     state,
				Incognito: c.isIncognitoContext(info.BrowserContextID),
			}
			byWindow[windowID] = w
			order = append(order, windowID)
		}

		tabID := string(page.TargetID)
		w.Tabs = append(w.Tabs, TabInfo{
			ID:     tabID,
			URL:    info.URL,
			Title:  info.Title,
			Pinned: c.isPinned(tabID),
			// The protocol does not expose which tab holds window focus;
			// the first tab stands in for it.
			Active: len(w.Tabs) == 0,
			Index:  len(w.Tabs),
		})
	}

	windows := make([]WindowInfo, 0, len(order))
	for _, id := range order {
		windows = append(windows, *byWindow[id])
	}

	return windows, nil
}

// ReadScroll probes a tab's current scroll offset. The probe is a read-only
// script evaluation and never mutates page state.
func (c *Chrome) ReadScroll(ctx context.Context, tabID string) (ScrollOffset, error) {
	page, err := c.pageByID(tabID)
	if err != nil {
		return ScrollOffset{}, err
	}

	result, err := page.Context(ctx).Eval(`() => ({ x: window.scrollX, y: window.scrollY })`)
	if err != nil {
		return ScrollOffset{}, fmt.Errorf("scroll probe failed for tab %s: %w", tabID, err)
	}

	var offset ScrollOffset
	if err := result.Value.Unmarshal(&offset); err != nil {
		return ScrollOffset{}, fmt.Errorf("scroll probe returned unexpected value for tab %s: %w", tabID, err)
	}

	return offset, nil
}

// SetScroll scrolls a tab to the given offset.
func (c *Chrome) SetScroll(ctx context.Context, tabID string, offset ScrollOffset) error {
	page, err := c.pageByID(tabID)
	if err != nil {
		return err
	}

	_, err = page.Context(ctx).Eval(`(x, y) => window.scrollTo(x, y)`, offset.X, offset.Y)
	if err != nil {
		return fmt.Errorf("failed to scroll tab %s: %w", tabID, err)
	}

	return nil
}

// CreateWindow creates a new browser window seeded with one tab.
func (c *Chrome) CreateWindow(ctx context.Context, params CreateWindowParams) (CreatedWindow, error) {
	b := c.browser
	if params.Incognito {
		ib, err := c.incognitoBrowser()
		if err != nil {
			return CreatedWindow{}, err
		}
		b = ib
	}

	page, err := b.Page(proto.TargetCreateTarget{
		URL:       params.URL,
		NewWindow: true,
	})
	if err != nil {
		return CreatedWindow{}, fmt.Errorf("failed to create window: %w", err)
	}
	page = page.Context(ctx)

	win, err := proto.BrowserGetWindowForTarget{}.Call(page)
	if err != nil {
		return CreatedWindow{}, fmt.Errorf("failed to resolve created window: %w", err)
	}

	if state := windowState(params.State); state != "" {
		err := proto.BrowserSetWindowBounds{
			WindowID: win.WindowID,
			Bounds:   &proto.BrowserBounds{WindowState: state},
		}.Call(page)
		if err != nil {
			c.logger.Debug().Err(err).Str("state", params.State).Msg("Could not apply window state")
		}
	}

	if params.Focused {
		if _, err := page.Activate(); err != nil {
			c.logger.Debug().Err(err).Msg("Could not focus created window")
		}
	}

	return CreatedWindow{
		WindowID:   int(win.WindowID),
		FirstTabID: string(page.TargetID),
	}, nil
}

// CreateTab creates a tab and returns its id. The DevTools protocol cannot
// target a specific window for new tabs; the tab opens in the most recently
// focused window, which during a restore is the window just created.
func (c *Chrome) CreateTab(ctx context.Context, params CreateTabParams) (string, error) {
	page, err := c.browser.Page(proto.TargetCreateTarget{
		URL:        params.URL,
		Background: !params.Active,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create tab: %w", err)
	}
	page = page.Context(ctx)

	tabID := string(page.TargetID)
	if params.Pinned {
		c.setPinned(tabID, true)
	}
	if params.Active {
		if _, err := page.Activate(); err != nil {
			c.logger.Debug().Err(err).Str("tab_id", tabID).Msg("Could not activate created tab")
		}
	}

	return tabID, nil
}

// SetPinned updates a tab's pinned state. Pinning is a browser UI concept
// absent from the DevTools protocol, so the state is tracked locally and
// reflected in subsequent enumerations through this adapter.
func (c *Chrome) SetPinned(_ context.Context, tabID string, pinned bool) error {
	c.setPinned(tabID, pinned)
	return nil
}

// OnChange subscribes to target lifecycle events: tab creation, removal,
// and info changes (URL and title updates, load completion). Events for
// non-page targets are filtered out.
func (c *Chrome) OnChange(notify func()) (func(), error) {
	ctx, cancel := context.WithCancel(context.Background())
	b := c.browser.Context(ctx)

	go b.EachEvent(
		func(e *proto.TargetTargetCreated) {
			if e.TargetInfo.Type == "page" {
				notify()
			}
		},
		func(e *proto.TargetTargetDestroyed) {
			notify()
		},
		func(e *proto.TargetTargetInfoChanged) {
			if e.TargetInfo.Type == "page" {
				notify()
			}
		},
	)()

	return cancel, nil
}

// Close disconnects from the browser and kills the launched process when
// this adapter owns it.
func (c *Chrome) Close() error {
	err := c.browser.Close()
	if c.launcher != nil {
		c.launcher.Kill()
	}
	return err
}

func (c *Chrome) pageByID(tabID string) (*rod.Page, error) {
	pages, err := c.browser.Pages()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate pages: %w", err)
	}

	for _, page := range pages {
		if string(page.TargetID) == tabID {
			return page, nil
		}
	}

	return nil, fmt.Errorf("tab not found: %s", tabID)
}

func (c *Chrome) incognitoBrowser() (*rod.Browser, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.incognito != nil {
		return c.incognito, nil
	}

	ib, err := c.browser.Incognito()
	if err != nil {
		return nil, fmt.Errorf("failed to create incognito context: %w", err)
	}

	c.incognito = ib
	c.incognitoCtx[ib.BrowserContextID] = true
	return ib, nil
}

func (c *Chrome) isIncognitoContext(id proto.BrowserBrowserContextID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.incognitoCtx[id]
}

func (c *Chrome) isPinned(tabID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pinned[tabID]
}

func (c *Chrome) setPinned(tabID string, pinned bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if pinned {
		c.pinned[tabID] = true
	} else {
		delete(c.pinned, tabID)
	}
}

func windowState(state string) proto.BrowserWindowState {
	switch state {
	case "maximized":
		return proto.BrowserWindowStateMaximized
	case "minimized":
		return proto.BrowserWindowStateMinimized
	case "fullscreen":
		return proto.BrowserWindowStateFullscreen
	case "normal":
		return proto.BrowserWindowStateNormal
	default:
		return ""
	}
}
