// Package reassembler implements C10, the Userspace Reassembler: the
// background task that drains the direct-flow ring continuously and
// scans the aggregation map periodically, merging per-shard entries
// into canonical flows and handing them to an export.Exporter. Its
// two-goroutine shape (ring-drain loop + ticker-driven scan loop) is
// grounded on the teacher's internal/server.Server receive-loop and
// reportStats ticker, both built around a ctx.Done() select.
package reassembler

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/netobserv/netobserv-agent/internal/aggregation"
	"github.com/netobserv/netobserv-agent/internal/dns"
	"github.com/netobserv/netobserv-agent/internal/export"
	"github.com/netobserv/netobserv-agent/internal/flow"
	"github.com/netobserv/netobserv-agent/internal/ringbuf"
)

// Config configures a Reassembler.
type Config struct {
	Map            *aggregation.Map
	Ring           *ringbuf.Ring
	Exporter       export.Exporter
	DNS            *dns.Tracker // optional; nil disables secondary-map joins
	ScanInterval   time.Duration
	Log            *logrus.Logger
}

// Reassembler drains C4/C5 and hands completed flows to an exporter.
type Reassembler struct {
	cfg Config
	log *logrus.Entry
}

// New builds a Reassembler from cfg. A zero ScanInterval defaults to
// 5s, the default from spec §4.10.
func New(cfg Config) *Reassembler {
	if cfg.ScanInterval <= 0 {
		cfg.ScanInterval = 5 * time.Second
	}
	log := cfg.Log
	if log == nil {
		log = logrus.New()
	}
	return &Reassembler{cfg: cfg, log: log.WithField("component", "reassembler")}
}

// Run starts the ring-drain and map-scan loops and blocks until ctx is
// cancelled. Both loops run as cooperatively-scheduled goroutines with
// no shared mutable state beyond the map and ring themselves, per
// spec §5.
func (r *Reassembler) Run(ctx context.Context) {
	done := make(chan struct{}, 2)
	go func() { r.drainRing(ctx); done <- struct{}{} }()
	go func() { r.scanMap(ctx); done <- struct{}{} }()
	<-done
	<-done
}

// drainRing blocks on the ring and forwards each record verbatim,
// preserving errno, per spec §4.10.1.
func (r *Reassembler) drainRing(ctx context.Context) {
	for {
		rec, ok := r.cfg.Ring.Read(ctx)
		if !ok {
			return
		}
		r.emit(rec)
	}
}

// scanMap runs the periodic map scan: evicts any flow that is
// terminated (FIN/RST) or idle past the scan interval, then emits it.
func (r *Reassembler) scanMap(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.finalScan()
			return
		case <-ticker.C:
			r.scanOnce()
			r.cfg.Map.ReportOccupancy()
		}
	}
}

func (r *Reassembler) scanOnce() {
	staleBefore := time.Now().Add(-r.cfg.ScanInterval).UnixNano()
	evicted := r.cfg.Map.EvictMatching(func(key flow.Key, m flow.Metrics) bool {
		terminated := m.Flags&(flow.FlagFIN|flow.FlagRST) != 0
		idle := int64(m.EndMonoTimeTs) <= staleBefore
		return terminated || idle
	})
	for _, rec := range evicted {
		r.emit(rec)
	}
}

// finalScan drains every remaining flow on shutdown, mirroring the
// teacher's exporter Close() behavior of flushing in-flight flows
// rather than discarding them.
func (r *Reassembler) finalScan() {
	evicted := r.cfg.Map.EvictMatching(func(flow.Key, flow.Metrics) bool { return true })
	for _, rec := range evicted {
		r.emit(rec)
	}
}

// emit joins rec with any pending DNS secondary-map annotation before
// handing it to the exporter, per spec §4.10's DNS-join-on-output.
func (r *Reassembler) emit(rec flow.Record) {
	if r.cfg.DNS != nil {
		if dnsRec, ok := r.cfg.DNS.TakeSecondary(rec.Key); ok {
			rec.Metrics.DNSRecord = dnsRec
		}
	}
	if err := r.cfg.Exporter.Export(rec); err != nil {
		r.log.WithError(err).Warn("export failed")
	}
}
