// Package daemon assembles the browser connection, session store,
// guardian, and gateway into a long-running service.
package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sessionguard/sessionguard/internal/config"
	"github.com/sessionguard/sessionguard/internal/logger"
	"github.com/sessionguard/sessionguard/internal/metrics"
	"github.com/sessionguard/sessionguard/pkg/browser"
	"github.com/sessionguard/sessionguard/pkg/gateway"
	"github.com/sessionguard/sessionguard/pkg/guardian"
	"github.com/sessionguard/sessionguard/pkg/store"
)

// Daemon represents the SessionGuard daemon service
type Daemon struct {
	config *config.Config
	logger *logger.Logger

	// Core modules
	chrome   *browser.Chrome
	sessions *store.SQLite
	guardian *guardian.Manager

	// Services
	gatewayServer *gateway.Server
	configWatcher *config.Watcher

	// Internal
	lifecycle *LifecycleManager

	ctx    context.Context
	cancel context.CancelFunc

	startTime time.Time
	running   bool
	mu        sync.RWMutex
}

// New creates a new daemon instance
func New(cfg *config.Config, log *logger.Logger) (*Daemon, error) {
	ctx, cancel := context.WithCancel(context.Background())

	metrics.EnsureRegistered()

	d := &Daemon{
		config: cfg,
		logger: log,
		ctx:    ctx,
		cancel: cancel,
	}

	if err := d.initializeCoreModules(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize core modules: %w", err)
	}

	if err := d.initializeServices(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	d.lifecycle = NewLifecycleManager(d)

	return d, nil
}

// initializeCoreModules initializes the browser, store, and guardian
func (d *Daemon) initializeCoreModules() error {
	var (
		chrome *browser.Chrome
		err    error
	)
	if d.config.Browser.ControlURL != "" {
		chrome, err = browser.Connect(d.config.Browser.ControlURL, d.logger.Zerolog())
	} else {
		chrome, err = browser.Launch(d.config.Browser.Headless, d.logger.Zerolog())
	}
	if err != nil {
		return fmt.Errorf("failed to attach to browser: %w", err)
	}
	d.chrome = chrome
	d.logger.Info().
		Str("control_url", d.config.Browser.ControlURL).
		Msg("Browser attached")

	sessions, err := store.NewSQLite(store.Config{
		Path:   d.config.Sessions.StorePath,
		Logger: d.logger.Zerolog(),
	})
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}
	d.sessions = sessions
	d.logger.Info().
		Str("path", d.config.Sessions.StorePath).
		Msg("Session store initialized")

	mgr, err := guardian.NewManager(guardian.Config{
		Store:            d.sessions,
		Live:             d.chrome,
		AutoSaveInterval: d.config.Sessions.AutoSaveInterval,
		DebounceQuiet:    d.config.Sessions.DebounceQuiet,
		ProbeTimeout:     d.config.Sessions.ScrollProbeTimeout,
		SettleDelay:      d.config.Sessions.ScrollSettleDelay,
		Logger:           d.logger.Zerolog(),
		OnEvent:          d.broadcastEvent,
	})
	if err != nil {
		return fmt.Errorf("failed to create session guardian: %w", err)
	}
	d.guardian = mgr
	d.logger.Info().Msg("Session guardian initialized")

	return nil
}

// initializeServices initializes the gateway and config watcher
func (d *Daemon) initializeServices() error {
	server, err := gateway.NewServer(gateway.Config{
		Port:         d.config.Gateway.Port,
		SharedSecret: d.config.Gateway.SharedSecret,
		Service:      d.guardian,
		Logger:       d.logger.Zerolog(),
	})
	if err != nil {
		return fmt.Errorf("failed to create gateway server: %w", err)
	}
	d.gatewayServer = server
	d.logger.Info().Int("port", d.config.Gateway.Port).Msg("Gateway initialized")

	return nil
}

// broadcastEvent forwards guardian events to gateway clients.
func (d *Daemon) broadcastEvent(event string, data interface{}) {
	if d.gatewayServer != nil {
		d.gatewayServer.Broadcast(event, data)
	}
}

// Start starts the daemon and all its services.
func (d *Daemon) Start() error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon already running")
	}
	d.running = true
	d.startTime = time.Now()
	d.mu.Unlock()

	if err := d.lifecycle.Start(); err != nil {
		return fmt.Errorf("failed to start lifecycle manager: %w", err)
	}

	if err := d.gatewayServer.Start(); err != nil {
		return fmt.Errorf("failed to start gateway: %w", err)
	}

	// Crash detection and auto-save run inside the guardian.
	if err := d.guardian.Start(d.ctx); err != nil {
		return fmt.Errorf("failed to start session guardian: %w", err)
	}

	d.startConfigWatcher()

	d.logger.Info().
		Int("pid", os.Getpid()).
		Msg("SessionGuard daemon started")

	return nil
}

// startConfigWatcher enables log-level hot reload from the config file.
func (d *Daemon) startConfigWatcher() {
	loader := config.NewLoader(d.config.SourcePath)
	watcher, err := config.NewWatcher(loader, d.logger.Zerolog(), func(cfg *config.Config) {
		if err := d.logger.SetLevel(cfg.Logging.Level); err != nil {
			d.logger.Warn().Err(err).Msg("Ignoring invalid log level from config reload")
		}
	})
	if err != nil {
		d.logger.Warn().Err(err).Msg("Config watcher disabled")
		return
	}
	d.configWatcher = watcher
}

// Run starts the daemon and blocks until a termination signal arrives.
func (d *Daemon) Run() error {
	if err := d.Start(); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		d.logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	case <-d.ctx.Done():
	}

	return d.Stop()
}

// Stop gracefully stops the daemon.
func (d *Daemon) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = false
	d.mu.Unlock()

	d.logger.Info().Msg("Stopping daemon")

	if d.configWatcher != nil {
		if err := d.configWatcher.Stop(); err != nil {
			d.logger.Warn().Err(err).Msg("Failed to stop config watcher")
		}
	}

	d.guardian.Stop()

	if err := d.gatewayServer.Stop(); err != nil {
		d.logger.Warn().Err(err).Msg("Failed to stop gateway")
	}

	if err := d.sessions.Close(); err != nil {
		d.logger.Warn().Err(err).Msg("Failed to close session store")
	}

	if err := d.chrome.Close(); err != nil {
		d.logger.Warn().Err(err).Msg("Failed to close browser connection")
	}

	if err := d.lifecycle.Stop(); err != nil {
		d.logger.Warn().Err(err).Msg("Failed to stop lifecycle manager")
	}

	d.cancel()

	d.logger.Info().Msg("Daemon stopped")
	return nil
}

// Status holds daemon runtime status.
type Status struct {
	Running   bool          `json:"running"`
	PID       int           `json:"pid"`
	Uptime    time.Duration `json:"uptime"`
	StartedAt time.Time     `json:"started_at"`
}

// Status returns the daemon status.
func (d *Daemon) Status() Status {
	d.mu.RLock()
	defer d.mu.RUnlock()

	s := Status{
		Running: d.running,
		PID:     os.Getpid(),
	}
	if d.running {
		s.StartedAt = d.startTime
		s.Uptime = time.Since(d.startTime)
	}
	return s
}
