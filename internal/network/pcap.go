//go:build pcap
// +build pcap

package network

import (
	"context"
	"fmt"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
)

// ReadPCAPFile replays the UDP payloads sent to udpPort in a capture file
// through handler, in capture order. Only available with the 'pcap' build tag.
func ReadPCAPFile(ctx context.Context, pcapFile string, udpPort int, handler LineHandler, stats PacketStatsInterface) error {
	if stats == nil {
		stats = &noopStats{}
	}

	handle, err := pcap.OpenOffline(pcapFile)
	if err != nil {
		return fmt.Errorf("failed to open PCAP file %s: %w", pcapFile, err)
	}
	defer handle.Close()

	filterStr := fmt.Sprintf("udp port %d", udpPort)
	if err := handle.SetBPFFilter(filterStr); err != nil {
		return fmt.Errorf("failed to set BPF filter '%s': %w", filterStr, err)
	}
	logf("PCAP BPF filter set: %s", filterStr)

	packetSource := gopacket.NewPacketSource(handle, handle.LinkType())
	packetCount := 0
	startTime := time.Now()

	for {
		select {
		case <-ctx.Done():
			logf("PCAP reader stopping due to context cancellation (processed %d packets)", packetCount)
			return ctx.Err()
		case packet := <-packetSource.Packets():
			if packet == nil {
				logf("PCAP file reading complete: %d packets processed in %v", packetCount, time.Since(startTime))
				return nil
			}
			packetCount++

			udpLayer := packet.Layer(layers.LayerTypeUDP)
			if udpLayer == nil {
				continue
			}
			udp, ok := udpLayer.(*layers.UDP)
			if !ok || len(udp.Payload) == 0 {
				continue
			}

			if err := dispatchPayload(udp.Payload, handler, stats); err != nil {
				logf("error handling PCAP packet %d: %v", packetCount, err)
			}
		}
	}
}
