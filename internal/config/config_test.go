package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("capture:\n  interfaces: [eth0]\n"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Capture.Interfaces) != 1 || cfg.Capture.Interfaces[0] != "eth0" {
		t.Fatalf("interfaces = %v", cfg.Capture.Interfaces)
	}
	if cfg.Aggregation.CapacityPerLane != 1000 {
		t.Fatalf("capacity_per_lane default = %d, want 1000", cfg.Aggregation.CapacityPerLane)
	}
	if cfg.Aggregation.ScanInterval != "5s" {
		t.Fatalf("scan_interval default = %q, want 5s", cfg.Aggregation.ScanInterval)
	}
	if cfg.Metrics.ListenAddr != ":9090" {
		t.Fatalf("metrics listen addr default = %q", cfg.Metrics.ListenAddr)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestLoadRespectsExplicitValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("aggregation:\n  capacity_per_lane: 50\n  scan_interval: 1s\nsampling:\n  rate: 10\n")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Aggregation.CapacityPerLane != 50 {
		t.Fatalf("capacity_per_lane = %d, want 50", cfg.Aggregation.CapacityPerLane)
	}
	if cfg.Sampling.Rate != 10 {
		t.Fatalf("sampling rate = %d, want 10", cfg.Sampling.Rate)
	}
}
