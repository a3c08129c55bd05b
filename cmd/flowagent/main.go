package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/netobserv/netobserv-agent/internal/aggregation"
	"github.com/netobserv/netobserv-agent/internal/capture"
	"github.com/netobserv/netobserv-agent/internal/config"
	"github.com/netobserv/netobserv-agent/internal/decoder"
	"github.com/netobserv/netobserv-agent/internal/dns"
	"github.com/netobserv/netobserv-agent/internal/drops"
	"github.com/netobserv/netobserv-agent/internal/engine"
	"github.com/netobserv/netobserv-agent/internal/export"
	"github.com/netobserv/netobserv-agent/internal/filter"
	"github.com/netobserv/netobserv-agent/internal/flow"
	"github.com/netobserv/netobserv-agent/internal/logger"
	"github.com/netobserv/netobserv-agent/internal/metrics"
	"github.com/netobserv/netobserv-agent/internal/netevents"
	"github.com/netobserv/netobserv-agent/internal/reassembler"
	"github.com/netobserv/netobserv-agent/internal/ringbuf"
	"github.com/netobserv/netobserv-agent/internal/rtt"
	"github.com/netobserv/netobserv-agent/internal/sampler"
	"github.com/netobserv/netobserv-agent/internal/version"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("flowagent version %s\n", version.GetVersion())
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(&logger.Config{
		Level:         cfg.Logging.Level,
		Format:        cfg.Logging.Format,
		ConsoleOutput: true,
		ConsoleLevel:  cfg.Logging.ConsoleLevel,
		ConsoleFormat: cfg.Logging.ConsoleFormat,
		File:          cfg.Logging.File,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log.Info("========================================")
	log.Info("Starting flow metrics agent", "version", version.GetVersion())
	log.Info("========================================")
	log.Info("Configuration loaded", "file", *configPath)
	log.Info("Capture settings",
		"interfaces", cfg.Capture.Interfaces,
		"promiscuous", cfg.Capture.Promiscuous)
	log.Info("Aggregation settings",
		"lanes", cfg.Aggregation.Lanes,
		"capacity_per_lane", cfg.Aggregation.CapacityPerLane,
		"ring_capacity_bytes", cfg.Aggregation.RingCapacityBytes)

	scanInterval, err := time.ParseDuration(cfg.Aggregation.ScanInterval)
	if err != nil {
		log.Error("Invalid scan_interval", "error", err)
		os.Exit(1)
	}

	counters := metrics.NewCounters(prometheus.DefaultRegisterer)
	ring := ringbuf.New(cfg.Aggregation.RingCapacityBytes, counters)
	aggMap := aggregation.New(aggregation.Config{
		Lanes:           cfg.Aggregation.Lanes,
		CapacityPerLane: cfg.Aggregation.CapacityPerLane,
		Ring:            ring,
		Counters:        counters,
	})

	var dnsTracker *dns.Tracker
	if cfg.Tracking.EnableDNSTracking {
		dnsTracker = dns.New(aggMap, counters)
		log.Info("DNS tracking (C6): ENABLED")
	} else {
		log.Info("DNS tracking (C6): disabled")
	}

	var rttTracker *rtt.Tracker
	if cfg.Tracking.EnableRTT {
		rttTracker = rtt.New(aggMap)
		log.Info("RTT tracking (C7): ENABLED")
	} else {
		log.Info("RTT tracking (C7): disabled")
	}

	rules, err := buildFilterRules(cfg.Filter.Rules)
	if err != nil {
		log.Error("Invalid filter configuration", "error", err)
		os.Exit(1)
	}

	flowFilter := filter.New(rules)

	eng := engine.New(engine.Config{
		Decoder: decoder.NewDecoder(),
		Sampler: sampler.New(cfg.Sampling.Rate, cfg.Aggregation.Lanes),
		Filter:  flowFilter,
		Map:     aggMap,
		DNS:     dnsTracker,
		RTT:     rttTracker,
	})

	if cfg.Tracking.EnablePktDrops {
		// Constructed so a drop-event source (e.g. a netlink/conntrack
		// feed) can be wired to it later; plain packet capture never
		// observes a packet the kernel itself dropped, so there is no
		// in-process trigger for Tracker.Observe here. flowFilter is
		// passed through so drop events are re-evaluated against C3
		// exactly as pkt_drops.h's check_and_do_flow_filtering does.
		_ = drops.New(aggMap, flowFilter)
		log.Info("Packet drop tracking (C8): configured, awaiting a drop-event source")
	}

	if cfg.Tracking.EnableNetworkEventsMonitoring {
		// Constructed so a packet-sampling source (e.g. psample or an
		// equivalent kprobe feed) can be wired to it later; plain packet
		// capture has no userspace equivalent of that sampling facility,
		// so there is no in-process trigger for Tracker.Observe here
		// either. flowFilter is passed through for the same reason it is
		// passed to drops.New above.
		_ = netevents.New(aggMap, counters, flowFilter, cfg.Tracking.NetworkEventsMonitoringGroupID)
		log.Info("Network event tracking (C9): configured, awaiting a packet-sampling source")
	}

	var exporter export.Exporter = export.NewLogExporter(log.Underlying())
	defer exporter.Close()

	reasm := reassembler.New(reassembler.Config{
		Map:          aggMap,
		Ring:         ring,
		Exporter:     exporter,
		DNS:          dnsTracker,
		ScanInterval: scanInterval,
		Log:          log.Underlying(),
	})

	src := capture.New(capture.Config{
		Interfaces:  cfg.Capture.Interfaces,
		Promiscuous: cfg.Capture.Promiscuous,
		SnapLen:     cfg.Capture.SnapLen,
		Engine:      eng,
		Log:         log.Underlying(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metricsSrv := startMetricsServer(cfg.Metrics.ListenAddr, log)
	defer metricsSrv.Close()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		if err := src.Run(ctx); err != nil {
			errChan <- err
		}
	}()
	reasmDone := make(chan struct{})
	go func() {
		reasm.Run(ctx)
		close(reasmDone)
	}()

	log.Info("========================================")
	log.Info("Agent is now capturing and aggregating flows")
	log.Info("========================================")

	select {
	case <-sigChan:
		log.Info("Received shutdown signal")
		cancel()
		// Let C10's final scan export the flows still in the map.
		<-reasmDone
	case err := <-errChan:
		log.Error("Capture failed", "error", err)
		cancel()
		os.Exit(1)
	}

	log.Info("========================================")
	log.Info("flow metrics agent terminated")
	log.Info("========================================")
}

func buildFilterRules(in []config.FilterRuleConfig) ([]filter.Rule, error) {
	rules := make([]filter.Rule, 0, len(in))
	for _, r := range in {
		action := filter.Accept
		if r.Action == "deny" {
			action = filter.Deny
		}

		var srcIP, dstIP net.IP
		if r.SrcIP != "" {
			srcIP = net.ParseIP(r.SrcIP)
			if srcIP == nil {
				return nil, fmt.Errorf("invalid src_ip %q", r.SrcIP)
			}
		}
		if r.DstIP != "" {
			dstIP = net.ParseIP(r.DstIP)
			if dstIP == nil {
				return nil, fmt.Errorf("invalid dst_ip %q", r.DstIP)
			}
		}

		direction := flow.Unknown
		switch r.Direction {
		case "ingress":
			direction = flow.Ingress
		case "egress":
			direction = flow.Egress
		}

		rules = append(rules, filter.Rule{
			Action:            action,
			SrcIP:             srcIP,
			DstIP:             dstIP,
			SrcPort:           r.SrcPort,
			DstPort:           r.DstPort,
			TransportProtocol: r.TransportProtocol,
			IfIndex:           r.IfIndex,
			Direction:         direction,
			MinDropReason:     r.MinDropReason,
		})
	}
	return rules, nil
}

func startMetricsServer(addr string, log *logger.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Metrics server failed", "error", err)
		}
	}()
	return srv
}
