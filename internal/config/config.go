// Package config loads the agent's YAML configuration, grounded on
// the teacher's config.Load shape (read file, yaml.Unmarshal, apply
// defaults) generalized to this engine's datapath/userspace knobs
// instead of a TZSP server's.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Capture     CaptureConfig     `yaml:"capture"`
	Sampling    SamplingConfig    `yaml:"sampling"`
	Aggregation AggregationConfig `yaml:"aggregation"`
	Tracking    TrackingConfig    `yaml:"tracking"`
	Filter      FilterConfig      `yaml:"filter"`
	Export      ExportConfig      `yaml:"export"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// CaptureConfig selects the interfaces C1 attaches to and the libpcap
// parameters of the capture loop, standing in for TC/XDP attachment.
type CaptureConfig struct {
	Interfaces  []string `yaml:"interfaces"`
	Promiscuous bool     `yaml:"promiscuous"`
	SnapLen     int32    `yaml:"snap_len"`
	BufferSize  int      `yaml:"buffer_size"`
}

// SamplingConfig configures C2.
type SamplingConfig struct {
	// Rate is `sampling` from spec §6: 1-in-N admission, 0/1 admits all.
	Rate uint32 `yaml:"rate"`
}

// AggregationConfig configures C4/C5.
type AggregationConfig struct {
	// Lanes is the shard count; 0 defaults to runtime.GOMAXPROCS(0).
	Lanes int `yaml:"lanes"`
	// CapacityPerLane bounds entries per shard; spec §6 default is 1000.
	CapacityPerLane int `yaml:"capacity_per_lane"`
	// RingCapacityBytes sizes the direct-flow ring (C5); spec §4.5
	// default is 16 MiB.
	RingCapacityBytes int `yaml:"ring_capacity_bytes"`
	// ScanInterval is C10's periodic map-scan tick; spec §4.10 default 5s.
	ScanInterval string `yaml:"scan_interval"`
}

// TrackingConfig enables/disables the optional side channels, mirroring
// spec §6's enable_rtt/enable_dns_tracking/enable_pkt_drops/
// enable_network_events_monitoring/network_events_monitoring_groupid.
type TrackingConfig struct {
	TraceMessages                  bool   `yaml:"trace_messages"`
	EnableRTT                      bool   `yaml:"enable_rtt"`
	EnableDNSTracking              bool   `yaml:"enable_dns_tracking"`
	EnablePktDrops                 bool   `yaml:"enable_pkt_drops"`
	EnableNetworkEventsMonitoring  bool   `yaml:"enable_network_events_monitoring"`
	NetworkEventsMonitoringGroupID uint32 `yaml:"network_events_monitoring_groupid"`
}

// FilterRuleConfig is the YAML-serializable form of filter.Rule: IPs
// are plain strings since net.IP has no YAML mapping of its own.
type FilterRuleConfig struct {
	Action            string `yaml:"action"` // "accept" or "deny"
	SrcIP             string `yaml:"src_ip"`
	DstIP             string `yaml:"dst_ip"`
	SrcPort           uint16 `yaml:"src_port"`
	DstPort           uint16 `yaml:"dst_port"`
	TransportProtocol uint8  `yaml:"transport_protocol"`
	IfIndex           uint32 `yaml:"if_index"`
	Direction         string `yaml:"direction"` // "ingress", "egress", or "" for any
	MinDropReason     uint32 `yaml:"min_drop_reason"`
}

// FilterConfig configures C3's ordered rule list.
type FilterConfig struct {
	Rules []FilterRuleConfig `yaml:"rules"`
}

// ExportConfig configures C10's consumer; wire formats are out of
// scope, so this only selects between the built-in sinks.
type ExportConfig struct {
	Sink string `yaml:"sink"` // "log" (default) is the only built-in sink
}

// MetricsConfig configures the Prometheus HTTP listener.
type MetricsConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// LoggingConfig mirrors the teacher's logger.Config, generalized to a
// single flat struct (the teacher's cmd/main.go and logger.go disagree
// on a nested vs. flat shape; this config uses the flat shape that
// actually matches logger.Config).
type LoggingConfig struct {
	Level         string `yaml:"level"`
	Format        string `yaml:"format"`
	ConsoleOutput bool   `yaml:"console_output"`
	ConsoleLevel  string `yaml:"console_level"`
	ConsoleFormat string `yaml:"console_format"`
	File          string `yaml:"file"`
}

// Load reads and parses the configuration file at path, applying
// defaults for anything left zero-valued.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Capture.SnapLen == 0 {
		cfg.Capture.SnapLen = 262144
	}
	if cfg.Capture.BufferSize == 0 {
		cfg.Capture.BufferSize = 1 << 20
	}
	if cfg.Aggregation.CapacityPerLane == 0 {
		cfg.Aggregation.CapacityPerLane = 1000
	}
	if cfg.Aggregation.RingCapacityBytes == 0 {
		cfg.Aggregation.RingCapacityBytes = 16 << 20
	}
	if cfg.Aggregation.ScanInterval == "" {
		cfg.Aggregation.ScanInterval = "5s"
	}
	if cfg.Export.Sink == "" {
		cfg.Export.Sink = "log"
	}
	if cfg.Metrics.ListenAddr == "" {
		cfg.Metrics.ListenAddr = ":9090"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}
