// Package network receives measurement lines over UDP, either live from a
// socket or replayed from a packet capture.
package network

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/banshee-data/sensorfusion/internal/monitoring"
)

var logf = monitoring.Prefixed("network")

// LineHandler receives each measurement line carried by a datagram.
type LineHandler interface {
	HandleLine(line string) error
}

// LineHandlerFunc adapts a function to LineHandler.
type LineHandlerFunc func(line string) error

func (f LineHandlerFunc) HandleLine(line string) error { return f(line) }

// UDPListener receives datagrams of newline separated measurement lines and
// hands each line to a LineHandler.
type UDPListener struct {
	address     string
	rcvBuf      int
	logInterval time.Duration
	handler     LineHandler
	stats       PacketStatsInterface

	mu    sync.Mutex
	conn  *net.UDPConn
	ready chan struct{}
}

// UDPListenerConfig contains configuration options for the UDP listener
type UDPListenerConfig struct {
	Address     string
	RcvBuf      int
	LogInterval time.Duration
	Handler     LineHandler
	Stats       PacketStatsInterface
}

// NewUDPListener creates a new UDP listener with the provided configuration
func NewUDPListener(config UDPListenerConfig) *UDPListener {
	stats := config.Stats
	if stats == nil {
		stats = &noopStats{}
	}

	logInterval := config.LogInterval
	if logInterval == 0 {
		logInterval = time.Minute
	}

	return &UDPListener{
		address:     config.Address,
		rcvBuf:      config.RcvBuf,
		logInterval: logInterval,
		handler:     config.Handler,
		stats:       stats,
		ready:       make(chan struct{}),
	}
}

// Ready is closed once the socket is bound.
func (l *UDPListener) Ready() <-chan struct{} { return l.ready }

// LocalAddr returns the bound address, or nil before Ready.
func (l *UDPListener) LocalAddr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == nil {
		return nil
	}
	return l.conn.LocalAddr()
}

// Start listens until ctx is cancelled, which is reported as ctx.Err().
func (l *UDPListener) Start(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp", l.address)
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address: %w", err)
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP address: %w", err)
	}
	defer conn.Close()

	if l.rcvBuf > 0 {
		if err := conn.SetReadBuffer(l.rcvBuf); err != nil {
			logf("failed to set UDP receive buffer size to %d: %v", l.rcvBuf, err)
		}
	}

	l.mu.Lock()
	l.conn = conn
	l.mu.Unlock()
	close(l.ready)

	logf("UDP listener started on %s", conn.LocalAddr())

	go l.startStatsLogging(ctx)

	buffer := make([]byte, 65535)
	for {
		select {
		case <-ctx.Done():
			logf("UDP listener stopping due to context cancellation")
			return ctx.Err()
		default:
		}

		// A short deadline lets the loop observe cancellation.
		conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
		n, from, err := conn.ReadFromUDP(buffer)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logf("UDP read error: %v", err)
			continue
		}

		if err := dispatchPayload(buffer[:n], l.handler, l.stats); err != nil {
			logf("error handling datagram from %v: %v", from, err)
		}
	}
}

func (l *UDPListener) startStatsLogging(ctx context.Context) {
	ticker := time.NewTicker(l.logInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.stats.LogStats()
		}
	}
}

// dispatchPayload splits a datagram into lines and hands each non-empty one
// to handler. Handler errors are counted and the first one is returned after
// the remaining lines have been delivered.
func dispatchPayload(payload []byte, handler LineHandler, stats PacketStatsInterface) error {
	stats.AddPacket(len(payload))
	if handler == nil {
		return nil
	}

	var first error
	for _, raw := range bytes.Split(payload, []byte{'\n'}) {
		line := string(bytes.TrimSpace(raw))
		if line == "" {
			continue
		}
		stats.AddLine()
		if err := handler.HandleLine(line); err != nil {
			stats.AddRejected()
			if first == nil {
				first = err
			}
		}
	}
	return first
}
