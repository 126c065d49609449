package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ticket-template/internal/models"
)

func TestInitLoggerWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app.log")
	disabled := false
	if err := InitLogger(&models.Config{LogLevel: "info", LogFile: path, LogToStd: &disabled}); err != nil {
		t.Fatalf("InitLogger failed: %v", err)
	}
	Info("applied template %s", "tpl-1")
	Debug("hidden %d", 1)
	Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log failed: %v", err)
	}
	text := string(data)
	if !strings.Contains(text, "applied template tpl-1") {
		t.Fatalf("expected info line, got %q", text)
	}
	if strings.Contains(text, "hidden") {
		t.Fatalf("debug line should be filtered, got %q", text)
	}
}

func TestInitLoggerRejectsUnknownLevel(t *testing.T) {
	if err := InitLogger(&models.Config{LogLevel: "verbose"}); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestSetLogLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	disabled := false
	if err := InitLogger(&models.Config{LogLevel: "error", LogFile: path, LogToStd: &disabled}); err != nil {
		t.Fatalf("InitLogger failed: %v", err)
	}
	Warn("first")
	if err := SetLogLevel("warn"); err != nil {
		t.Fatalf("SetLogLevel failed: %v", err)
	}
	Warn("second")
	Close()

	data, _ := os.ReadFile(path)
	if strings.Contains(string(data), "first") || !strings.Contains(string(data), "second") {
		t.Fatalf("unexpected log content %q", string(data))
	}
}
