// internal/protocol/protocol.go
package protocol

import (
	"context"
	"time"
)

// LinkType identifies the transport carrying the firmware's console
type LinkType string

const (
	LinkTypeSerial LinkType = "serial"
	LinkTypeTCP    LinkType = "tcp"
)

// Link is a byte channel to the firmware console
type Link interface {
	// Connection lifecycle
	Open(ctx context.Context) error
	Close() error
	IsOpen() bool

	// Data communication. Read returns an empty slice when no data is
	// waiting; it never blocks longer than the configured read timeout.
	Write(ctx context.Context, data []byte) error
	Read(ctx context.Context, maxBytes int) ([]byte, error)
	ResetInput() error

	// Link information
	Type() LinkType
	Address() string
	Stats() Stats
}

// Stats provides link-level statistics
type Stats struct {
	BytesWritten   int64         `json:"bytes_written"`
	BytesRead      int64         `json:"bytes_read"`
	WriteCount     int64         `json:"write_count"`
	ErrorCount     int64         `json:"error_count"`
	LastActivity   time.Time     `json:"last_activity"`
	AverageLatency time.Duration `json:"average_latency"`
	IsConnected    bool          `json:"is_connected"`
}

func (s *Stats) recordWrite(n int, latency time.Duration) {
	s.BytesWritten += int64(n)
	s.WriteCount++
	s.LastActivity = time.Now()
	if s.AverageLatency == 0 {
		s.AverageLatency = latency
	} else {
		s.AverageLatency = (s.AverageLatency + latency) / 2
	}
}

func (s *Stats) recordRead(n int) {
	if n == 0 {
		return
	}
	s.BytesRead += int64(n)
	s.LastActivity = time.Now()
}
