// Package config - watcher.go provides config file hot-reload support.
//
// The watcher polls the config file for changes (stat-based, every 5 seconds)
// and notifies registered callbacks when risk parameters change.
//
// Only risk and sizing configuration is reloadable. Trading mode, symbols,
// and broker/database settings require an engine restart.
package config

import (
	"encoding/json"
	"log"
	"os"
	"sync"
	"time"
)

// ConfigWatcher monitors the config file for changes and invokes callbacks
// when risk-related fields change. It uses stat-based polling (no external
// dependencies like fsnotify required).
type ConfigWatcher struct {
	path     string
	logger   *log.Logger
	mu       sync.RWMutex
	current  *Config
	lastMod  time.Time
	onChange []func(old, new *Config)
	done     chan struct{}
	stopped  bool
}

// NewConfigWatcher creates a watcher for the given config file path.
// initial is the currently loaded config. The watcher does not start
// until Start() is called.
func NewConfigWatcher(path string, initial *Config, logger *log.Logger) *ConfigWatcher {
	if logger == nil {
		logger = log.New(log.Writer(), "", log.LstdFlags)
	}
	return &ConfigWatcher{
		path:    path,
		logger:  logger,
		current: initial,
		done:    make(chan struct{}),
	}
}

// OnChange registers a callback invoked when the config file changes and
// the new config passes validation. Multiple callbacks may be registered.
//
// Only risk/sizing config changes trigger callbacks; trading mode, symbol
// set, and broker/database settings are ignored (they require a restart).
func (w *ConfigWatcher) OnChange(fn func(old, new *Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = append(w.onChange, fn)
}

// Start begins polling the config file for changes. It returns immediately;
// the watcher runs in a background goroutine. Returns an error if the
// initial file stat fails.
func (w *ConfigWatcher) Start() error {
	info, err := os.Stat(w.path)
	if err != nil {
		return err
	}
	w.lastMod = info.ModTime()
	w.logger.Printf("[config-watcher] watching %s for changes (poll interval: 5s)", w.path)

	go w.pollLoop()
	return nil
}

// Stop stops the config watcher. Safe to call multiple times.
func (w *ConfigWatcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.stopped {
		w.stopped = true
		close(w.done)
		w.logger.Println("[config-watcher] stopped")
	}
}

// Current returns the most recently loaded valid config.
func (w *ConfigWatcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

func (w *ConfigWatcher) pollLoop() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.checkForChanges()
		}
	}
}

func (w *ConfigWatcher) checkForChanges() {
	info, err := os.Stat(w.path)
	if err != nil {
		w.logger.Printf("[config-watcher] stat error: %v", err)
		return
	}

	if !info.ModTime().After(w.lastMod) {
		return
	}
	w.lastMod = info.ModTime()

	data, err := os.ReadFile(w.path)
	if err != nil {
		w.logger.Printf("[config-watcher] read error: %v", err)
		return
	}

	newCfg := Default()
	if err := json.Unmarshal(data, &newCfg); err != nil {
		w.logger.Printf("[config-watcher] parse error (keeping old config): %v", err)
		return
	}

	if err := newCfg.Validate(); err != nil {
		w.logger.Printf("[config-watcher] validation error (keeping old config): %v", err)
		return
	}

	w.mu.RLock()
	oldCfg := w.current
	w.mu.RUnlock()

	if !reloadableChanged(oldCfg.Risk, newCfg.Risk, oldCfg.Sizing, newCfg.Sizing) {
		w.logger.Printf("[config-watcher] file changed but risk/sizing config unchanged, skipping")
		return
	}

	w.logChanges(oldCfg.Risk, newCfg.Risk, oldCfg.Sizing, newCfg.Sizing)

	w.mu.Lock()
	w.current = &newCfg
	callbacks := make([]func(old, new *Config), len(w.onChange))
	copy(callbacks, w.onChange)
	w.mu.Unlock()

	for _, fn := range callbacks {
		fn(oldCfg, &newCfg)
	}
}

func reloadableChanged(oldRisk, newRisk RiskConfig, oldSizing, newSizing SizingConfig) bool {
	return oldRisk != newRisk || !sizingEqual(oldSizing, newSizing)
}

func sizingEqual(a, b SizingConfig) bool {
	if a.RiskPerTrade != b.RiskPerTrade || a.StopPct != b.StopPct || a.TMaxBars != b.TMaxBars ||
		a.TimeExitRet != b.TimeExitRet || a.TrailEnabled != b.TrailEnabled ||
		a.TrailTrigger != b.TrailTrigger || a.TrailGiveBack != b.TrailGiveBack {
		return false
	}
	if len(a.TPLadder) != len(b.TPLadder) {
		return false
	}
	for i := range a.TPLadder {
		if a.TPLadder[i] != b.TPLadder[i] {
			return false
		}
	}
	return true
}

func (w *ConfigWatcher) logChanges(oldRisk, newRisk RiskConfig, oldSizing, newSizing SizingConfig) {
	if oldRisk != newRisk {
		w.logger.Printf("[config-watcher] risk config changed: %+v -> %+v", oldRisk, newRisk)
	}
	if !sizingEqual(oldSizing, newSizing) {
		w.logger.Printf("[config-watcher] sizing config changed: %+v -> %+v", oldSizing, newSizing)
	}
}
