package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/wearsync/internal/infrastructure/config"
	"github.com/nerrad567/wearsync/internal/infrastructure/logging"
	"github.com/nerrad567/wearsync/internal/telemetry"
)

func discardLogger() *logging.Logger {
	return logging.NewWithWriter(config.LoggingConfig{Level: "error"}, "test", io.Discard)
}

// captureLogger returns a JSON logger at debug level and the buffer it writes to.
func captureLogger() (*logging.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return logging.NewWithWriter(config.LoggingConfig{Level: "debug", Format: "json"}, "test", &buf), &buf
}

// findEntry returns the first JSON log entry with the given message.
func findEntry(t *testing.T, buf *bytes.Buffer, msg string) map[string]any {
	t.Helper()
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("bad log line %q: %v", line, err)
		}
		if entry["msg"] == msg {
			return entry
		}
	}
	t.Fatalf("no %q entry in log:\n%s", msg, buf.String())
	return nil
}

func writeTestConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("WEARSYNC_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

func TestRun_InvalidJournalPath(t *testing.T) {
	// A file where the journal directory should be.
	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blocker, nil, 0600); err != nil {
		t.Fatalf("failed to create blocker file: %v", err)
	}

	t.Setenv("WEARSYNC_CONFIG", writeTestConfig(t, `
journal:
  enabled: true
  path: "`+filepath.Join(blocker, "sub", "journal.db")+`"
logging:
  level: error
`))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil || !strings.Contains(err.Error(), "journal") {
		t.Fatalf("run() error = %v, want journal error", err)
	}
}

// TestRun_ShutsDownOnCancel runs the full pipeline against an unreachable
// broker; startup must not depend on the broker and shutdown must drain.
func TestRun_ShutsDownOnCancel(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("WEARSYNC_CONFIG", writeTestConfig(t, `
mqtt:
  broker:
    host: "127.0.0.1"
    port: 19998
journal:
  enabled: true
  path: "`+filepath.Join(dir, "journal.db")+`"
sync:
  drain_timeout_ms: 500
logging:
  level: error
`))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx) }()

	time.Sleep(200 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run() error = %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("run() did not return after cancel")
	}

	if _, err := os.Stat(filepath.Join(dir, "journal.db")); err != nil {
		t.Errorf("journal not created: %v", err)
	}
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv("WEARSYNC_CONFIG", "")
	if got := getConfigPath(); got != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", got, defaultConfigPath)
	}

	t.Setenv("WEARSYNC_CONFIG", "/etc/wearsync.yaml")
	if got := getConfigPath(); got != "/etc/wearsync.yaml" {
		t.Errorf("getConfigPath() = %q, want /etc/wearsync.yaml", got)
	}
}

func TestOpenJournal(t *testing.T) {
	cfg := config.JournalConfig{
		Enabled:       true,
		Path:          filepath.Join(t.TempDir(), "journal.db"),
		WALMode:       true,
		BusyTimeout:   5,
		RetentionDays: 1,
	}

	db, err := openJournal(context.Background(), cfg, discardLogger())
	if err != nil {
		t.Fatalf("openJournal() error = %v", err)
	}
	defer db.Close() //nolint:errcheck // Test cleanup

	if err := healthCheck(context.Background(), db, nil); err != nil {
		t.Errorf("healthCheck() error = %v", err)
	}
}

func TestHealthCheck_NothingEnabled(t *testing.T) {
	if err := healthCheck(context.Background(), nil, nil); err != nil {
		t.Errorf("healthCheck() error = %v", err)
	}
}

func openTestJournal(t *testing.T) *telemetry.Journal {
	t.Helper()
	db, err := openJournal(context.Background(), config.JournalConfig{
		Enabled:     true,
		Path:        filepath.Join(t.TempDir(), "journal.db"),
		BusyTimeout: 5,
	}, discardLogger())
	if err != nil {
		t.Fatalf("openJournal() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup
	return telemetry.NewJournal(db)
}

func TestLogJournalSummary(t *testing.T) {
	ctx := context.Background()
	journal := openTestJournal(t)

	outcomes := []telemetry.Outcome{
		{Kind: telemetry.KindSensor, Path: "/sensors/1", Category: 1, Status: telemetry.StatusDelivered},
		{Kind: telemetry.KindSensor, Path: "/sensors/1", Category: 1, Status: telemetry.StatusDelivered},
		{Kind: telemetry.KindFall, Path: "/fall", Status: telemetry.StatusConnectTimeout},
	}
	for _, o := range outcomes {
		if err := journal.Record(ctx, o); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	log, buf := captureLogger()
	logJournalSummary(ctx, journal, log)

	entry := findEntry(t, buf, "journal summary")
	if entry[string(telemetry.StatusDelivered)] != float64(2) {
		t.Errorf("delivered = %v, want 2", entry[string(telemetry.StatusDelivered)])
	}
	if entry[string(telemetry.StatusConnectTimeout)] != float64(1) {
		t.Errorf("connect_timeout = %v, want 1", entry[string(telemetry.StatusConnectTimeout)])
	}
}

func TestLogLastOutcome(t *testing.T) {
	ctx := context.Background()
	journal := openTestJournal(t)

	log, buf := captureLogger()
	logLastOutcome(ctx, journal, log)
	findEntry(t, buf, "journal empty")

	base := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	kinds := map[string]telemetry.Kind{"/sensors/2": telemetry.KindSensor, "/fall": telemetry.KindFall}
	for i, path := range []string{"/sensors/2", "/fall"} {
		err := journal.Record(ctx, telemetry.Outcome{
			Kind:       kinds[path],
			Path:       path,
			Status:     telemetry.StatusDelivered,
			RecordedAt: base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	buf.Reset()
	logLastOutcome(ctx, journal, log)
	if entry := findEntry(t, buf, "last journaled outcome"); entry["path"] != "/fall" {
		t.Errorf("path = %v, want /fall", entry["path"])
	}
}
