package network

import "sync/atomic"

// PacketStatsInterface provides packet statistics management
type PacketStatsInterface interface {
	AddPacket(bytes int)
	AddLine()
	AddRejected()
	LogStats()
}

// PacketStats counts datagrams and lines. Safe for concurrent use.
type PacketStats struct {
	packets  atomic.Int64
	bytes    atomic.Int64
	lines    atomic.Int64
	rejected atomic.Int64
}

func (s *PacketStats) AddPacket(bytes int) {
	s.packets.Add(1)
	s.bytes.Add(int64(bytes))
}

func (s *PacketStats) AddLine()     { s.lines.Add(1) }
func (s *PacketStats) AddRejected() { s.rejected.Add(1) }

// Snapshot returns the current counters.
func (s *PacketStats) Snapshot() (packets, bytes, lines, rejected int64) {
	return s.packets.Load(), s.bytes.Load(), s.lines.Load(), s.rejected.Load()
}

// LogStats logs the current counters.
func (s *PacketStats) LogStats() {
	p, b, l, r := s.Snapshot()
	logf("packets=%d bytes=%d lines=%d rejected=%d", p, b, l, r)
}

// noopStats is used when no stats collector is provided.
type noopStats struct{}

func (n *noopStats) AddPacket(bytes int) {}
func (n *noopStats) AddLine()            {}
func (n *noopStats) AddRejected()        {}
func (n *noopStats) LogStats()           {}
