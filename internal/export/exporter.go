// Package export defines the sink that C10 (the userspace
// reassembler) hands completed flow.Records to. Wire formats
// (IPFIX/Kafka/gRPC) are out of scope; this package keeps the shape
// of the teacher's netflow.Exporter — a Close()-able sink fed one
// record at a time — and adapts it to a pluggable interface plus a
// logrus-based default implementation, since no exporter-protocol
// library from the example pack is in scope for this spec.
package export

import (
	"github.com/sirupsen/logrus"

	"github.com/netobserv/netobserv-agent/internal/flow"
)

// Exporter receives completed flow records from C10.
type Exporter interface {
	Export(rec flow.Record) error
	Close() error
}

// LogExporter writes each record as a structured log line, grounded
// on the teacher's logger.Logger usage in cmd/tzsp_server/main.go.
type LogExporter struct {
	log *logrus.Entry
}

// NewLogExporter builds an Exporter that logs every flow record at
// info level through log.
func NewLogExporter(log *logrus.Logger) *LogExporter {
	return &LogExporter{log: log.WithField("component", "export")}
}

// Export logs rec's key and metrics.
func (e *LogExporter) Export(rec flow.Record) error {
	e.log.WithFields(logrus.Fields{
		"src_ip":    ipString(rec.Key.SrcIP),
		"dst_ip":    ipString(rec.Key.DstIP),
		"src_port":  rec.Key.SrcPort,
		"dst_port":  rec.Key.DstPort,
		"protocol":  rec.Key.TransportProtocol,
		"if_index":  rec.Key.IfIndex,
		"direction": rec.Key.Direction.String(),
		"packets":   rec.Metrics.Packets,
		"bytes":     rec.Metrics.Bytes,
		"flow_rtt":  rec.Metrics.FlowRTT,
		"dscp":      rec.Metrics.DSCP,
		"source":    rec.Source,
	}).Info("flow")
	return nil
}

// Close is a no-op; LogExporter owns no external resources.
func (e *LogExporter) Close() error { return nil }

func ipString(raw [16]byte) string {
	ip := flow.IPFromBytes(raw)
	return ip.String()
}
