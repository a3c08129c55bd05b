// Package capture attaches to network interfaces and feeds captured
// frames into an engine.Engine. It replaces the TC/XDP attachment the
// original implementation uses with libpcap, one live handle per
// (interface, direction) pair — gopacket/pcap's Handle.SetDirection
// stands in for a hook's ingress/egress distinction, since this
// engine runs as an ordinary userspace process rather than inside the
// kernel. This loop's shape (receive loop + ctx.Done() select +
// periodic stats ticker) is grounded on the teacher's
// internal/server.Server.Start/reportStats.
package capture

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/gopacket/pcap"
	"github.com/sirupsen/logrus"

	"github.com/netobserv/netobserv-agent/internal/engine"
	"github.com/netobserv/netobserv-agent/internal/flow"
)

// Config configures a capture Source.
type Config struct {
	Interfaces  []string
	Promiscuous bool
	SnapLen     int32
	Engine      *engine.Engine
	Log         *logrus.Logger
}

// Source owns one live pcap handle per (interface, direction) and
// drives packets from each into the shared Engine.
type Source struct {
	cfg Config
	log *logrus.Entry

	mu              sync.Mutex
	packetsReceived uint64
	packetsDecoded  uint64
}

// New builds a Source from cfg.
func New(cfg Config) *Source {
	log := cfg.Log
	if log == nil {
		log = logrus.New()
	}
	if cfg.SnapLen == 0 {
		cfg.SnapLen = 262144
	}
	return &Source{cfg: cfg, log: log.WithField("component", "capture")}
}

// Run opens a handle per interface/direction and blocks, dispatching
// packets to the Engine, until ctx is cancelled.
func (s *Source) Run(ctx context.Context) error {
	if len(s.cfg.Interfaces) == 0 {
		return fmt.Errorf("capture: no interfaces configured")
	}

	var wg sync.WaitGroup
	for lane, ifaceName := range s.cfg.Interfaces {
		ifIndex, err := interfaceIndex(ifaceName)
		if err != nil {
			return err
		}

		for _, dir := range [2]struct {
			pcapDir pcap.Direction
			flowDir flow.Direction
		}{
			{pcap.DirectionIn, flow.Ingress},
			{pcap.DirectionOut, flow.Egress},
		} {
			handle, err := s.openHandle(ifaceName, dir.pcapDir)
			if err != nil {
				return fmt.Errorf("capture: open %s (%v): %w", ifaceName, dir.pcapDir, err)
			}

			wg.Add(1)
			go func(lane int, ifIndex uint32, direction flow.Direction, handle *pcap.Handle) {
				defer wg.Done()
				defer handle.Close()
				s.receiveLoop(ctx, lane, ifIndex, direction, handle)
			}(lane, ifIndex, dir.flowDir, handle)
		}
	}

	go s.reportStats(ctx)

	wg.Wait()
	return nil
}

func (s *Source) openHandle(ifaceName string, dir pcap.Direction) (*pcap.Handle, error) {
	inactive, err := pcap.NewInactiveHandle(ifaceName)
	if err != nil {
		return nil, err
	}
	defer inactive.CleanUp()

	if err := inactive.SetSnapLen(int(s.cfg.SnapLen)); err != nil {
		return nil, err
	}
	if err := inactive.SetPromisc(s.cfg.Promiscuous); err != nil {
		return nil, err
	}
	if err := inactive.SetTimeout(time.Second); err != nil {
		return nil, err
	}

	handle, err := inactive.Activate()
	if err != nil {
		return nil, err
	}
	if err := handle.SetDirection(dir); err != nil {
		handle.Close()
		return nil, err
	}
	return handle, nil
}

func (s *Source) receiveLoop(ctx context.Context, lane int, ifIndex uint32, direction flow.Direction, handle *pcap.Handle) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		data, _, err := handle.ReadPacketData()
		if err != nil {
			if err == pcap.NextErrorTimeoutExpired {
				continue
			}
			s.log.WithError(err).Debug("read packet failed")
			continue
		}

		s.mu.Lock()
		s.packetsReceived++
		s.mu.Unlock()

		if err := s.cfg.Engine.ProcessPacket(lane, data, ifIndex, direction); err != nil {
			s.log.WithError(err).Debug("packet not accounted")
			continue
		}

		s.mu.Lock()
		s.packetsDecoded++
		s.mu.Unlock()
	}
}

func (s *Source) reportStats(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			received, decoded := s.packetsReceived, s.packetsDecoded
			s.mu.Unlock()
			s.log.WithFields(logrus.Fields{
				"packets_received": received,
				"packets_decoded":  decoded,
			}).Info("capture statistics")
		}
	}
}

func interfaceIndex(name string) (uint32, error) {
	ifs, err := pcap.FindAllDevs()
	if err != nil {
		return 0, err
	}
	for i, iface := range ifs {
		if iface.Name == name {
			return uint32(i + 1), nil
		}
	}
	// FindAllDevs may not enumerate every name a handle can open (e.g.
	// "any"); fall back to a stable non-zero index derived from name
	// rather than failing outright.
	return hashIfIndex(name), nil
}

func hashIfIndex(name string) uint32 {
	var h uint32 = 2166136261
	for i := 0; i < len(name); i++ {
		h ^= uint32(name[i])
		h *= 16777619
	}
	if h < 2 {
		h += 2
	}
	return h
}
