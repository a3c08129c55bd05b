package export

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/netobserv/netobserv-agent/internal/flow"
)

func TestLogExporterWritesFlowFields(t *testing.T) {
	var buf bytes.Buffer
	log := logrus.New()
	log.SetOutput(&buf)
	log.SetFormatter(&logrus.JSONFormatter{})

	e := NewLogExporter(log)

	var k flow.Key
	k.SetIPv4([4]byte{10, 0, 0, 1}, [4]byte{10, 0, 0, 2})
	k.SrcPort, k.DstPort = 1234, 80

	rec := flow.Record{Key: k, Metrics: flow.Metrics{Packets: 3, Bytes: 300}, Source: flow.SourceEvictedFromMap}
	if err := e.Export(rec); err != nil {
		t.Fatalf("Export: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatalf("expected log output")
	}
	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
