package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	zerologlog "github.com/rs/zerolog/log"
)

func TestInitLoggerSetsDefaultsAndWritesJSON(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "test.log")

	prevLevel := zerolog.GlobalLevel()
	prevLogger := zerologlog.Logger
	t.Cleanup(func() {
		zerolog.SetGlobalLevel(prevLevel)
		zerologlog.Logger = prevLogger
	})

	logger, err := InitLogger(Config{
		Level:  "invalid-level",
		Format: "json",
		Output: logPath,
		Fields: map[string]string{
			"environment": "test",
		},
	})
	if err != nil {
		t.Fatalf("InitLogger returned error: %v", err)
	}

	logger.Info("structured message")

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) == 0 {
		t.Fatalf("expected log output to be written")
	}

	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &entry); err != nil {
		t.Fatalf("failed to decode log entry: %v", err)
	}

	if got := entry["service"]; got != "netpulse" {
		t.Fatalf("expected service field 'netpulse', got %v", got)
	}

	if got := entry["environment"]; got != "test" {
		t.Fatalf("expected environment field 'test', got %v", got)
	}

	if got := entry["message"]; got != "structured message" {
		t.Fatalf("expected message 'structured message', got %v", got)
	}

	if zerolog.GlobalLevel() != zerolog.InfoLevel {
		t.Fatalf("expected invalid level to fall back to info, got %s", zerolog.GlobalLevel())
	}
}

func TestInitLoggerFileOutputError(t *testing.T) {
	prevLevel := zerolog.GlobalLevel()
	prevLogger := zerologlog.Logger
	t.Cleanup(func() {
		zerolog.SetGlobalLevel(prevLevel)
		zerologlog.Logger = prevLogger
	})

	badPath := filepath.Join(t.TempDir(), "nested", "log.json")
	if _, err := InitLogger(Config{Output: badPath}); err == nil {
		t.Fatalf("expected error when log file path directory does not exist")
	}
}

func TestLoggerContextPropagation(t *testing.T) {
	var buf bytes.Buffer
	base := &Logger{logger: zerolog.New(&buf).With().Timestamp().Logger()}

	ctx := base.
		WithComponent(ComponentMonitor).
		WithTarget("primary-isp", "139.167.129.22").
		WithEvent(EventIncidentOpened)

	ctx = ctx.WithFields(map[string]interface{}{
		"consecutive_failures": 3,
		"interval":             2 * time.Second,
		"enabled":              true,
	})

	ctx = ctx.WithError(errors.New("request timed out"))

	ctx.Error("probe failed")

	output := strings.TrimSpace(buf.String())
	if output == "" {
		t.Fatalf("expected logger to emit output")
	}

	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(output), &entry); err != nil {
		t.Fatalf("failed to decode log entry: %v", err)
	}

	if got := entry["component"]; got != string(ComponentMonitor) {
		t.Fatalf("expected component %s, got %v", ComponentMonitor, got)
	}

	if got := entry["target"]; got != "primary-isp" {
		t.Fatalf("expected target 'primary-isp', got %v", got)
	}

	if got := entry["address"]; got != "139.167.129.22" {
		t.Fatalf("expected address field, got %v", got)
	}

	if got := entry["event"]; got != string(EventIncidentOpened) {
		t.Fatalf("expected event %s, got %v", EventIncidentOpened, got)
	}

	if got := entry["consecutive_failures"]; got != float64(3) {
		t.Fatalf("expected consecutive_failures 3, got %v", got)
	}

	if !strings.Contains(output, "request timed out") {
		t.Fatalf("expected error context to include error message, got %s", output)
	}
}

func TestIncidentEventLogging(t *testing.T) {
	var buf bytes.Buffer
	base := &Logger{logger: zerolog.New(&buf).With().Timestamp().Logger()}

	base.IncidentEvent(EventIncidentClosed, "dns", "high_latency", 42)

	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &entry); err != nil {
		t.Fatalf("failed to decode log entry: %v", err)
	}

	if got := entry["incident_id"]; got != float64(42) {
		t.Fatalf("expected incident_id 42, got %v", got)
	}
	if got := entry["message"]; got != "Incident closed" {
		t.Fatalf("expected close message, got %v", got)
	}
}
