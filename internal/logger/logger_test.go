package logger

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewLoggerDefaultsToConsole(t *testing.T) {
	l, err := NewLogger(&Config{})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	if !l.consoleEnabled {
		t.Fatalf("expected console sink to be enabled by default")
	}
	l.Info("hello", "k", "v")
}

func TestNewLoggerWithFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.log")
	l, err := NewLogger(&Config{Level: "info", File: path})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	l.Info("hello")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(data) == 0 {
		t.Fatalf("expected log file to contain output")
	}
}
