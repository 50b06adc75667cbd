package config

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func watcherLogger() *log.Logger {
	return log.New(os.Stdout, "[watcher-test] ", log.LstdFlags)
}

func writeWatcherTestConfig(t *testing.T, path string, cfg *Config) {
	t.Helper()
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
}

func baseTestConfig() *Config {
	cfg := Default()
	cfg.Symbols = []string{"AAA", "BBB"}
	cfg.DatabaseURL = "postgres://localhost/test"
	return &cfg
}

func TestWatcherDetectsRiskChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	initial := baseTestConfig()
	writeWatcherTestConfig(t, path, initial)

	w := NewConfigWatcher(path, initial, watcherLogger())
	if err := w.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer w.Stop()

	changed := make(chan *Config, 1)
	w.OnChange(func(old, new *Config) { changed <- new })

	updated := baseTestConfig()
	updated.Risk.MaxPositions = 2

	// Ensure the mtime advances past the poll's stat granularity.
	time.Sleep(10 * time.Millisecond)
	writeWatcherTestConfig(t, path, updated)

	select {
	case got := <-changed:
		if got.Risk.MaxPositions != 2 {
			t.Fatalf("expected max_positions=2, got %d", got.Risk.MaxPositions)
		}
	case <-time.After(7 * time.Second):
		t.Fatal("timed out waiting for config change callback")
	}
}

func TestWatcherIgnoresNonReloadableChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	initial := baseTestConfig()
	writeWatcherTestConfig(t, path, initial)

	w := NewConfigWatcher(path, initial, watcherLogger())
	if err := w.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer w.Stop()

	called := false
	w.OnChange(func(old, new *Config) { called = true })

	updated := baseTestConfig()
	updated.DatabaseURL = "postgres://localhost/other" // non-reloadable field

	time.Sleep(10 * time.Millisecond)
	writeWatcherTestConfig(t, path, updated)
	time.Sleep(6 * time.Second)

	if called {
		t.Fatal("expected no callback for a non-reloadable field change")
	}
}

func TestWatcherCurrentReturnsInitialBeforeAnyChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	initial := baseTestConfig()
	writeWatcherTestConfig(t, path, initial)

	w := NewConfigWatcher(path, initial, watcherLogger())
	if got := w.Current(); got.Risk.MaxPositions != initial.Risk.MaxPositions {
		t.Fatalf("expected Current() to return initial config")
	}
}
