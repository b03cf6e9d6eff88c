// internal/protocol/tcp_connection.go
package protocol

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

// drainTimeout bounds each read while ResetInput empties the socket
const drainTimeout = 5 * time.Millisecond

// TCPConnection implements Link for a console exposed by a serial-over-TCP bridge
type TCPConnection struct {
	config *TCPConfig
	conn   net.Conn
	logger *zap.Logger
	mutex  sync.RWMutex
	isOpen bool
	stats  Stats
}

// NewTCPConnection creates a new TCP connection
func NewTCPConnection(config *TCPConfig, logger *zap.Logger) *TCPConnection {
	return &TCPConnection{
		config: config,
		logger: logger.With(
			zap.String("link", string(LinkTypeTCP)),
			zap.String("host", config.Host),
			zap.Int("port", config.Port),
		),
	}
}

func (tc *TCPConnection) address() string {
	return net.JoinHostPort(tc.config.Host, strconv.Itoa(tc.config.Port))
}

// Open dials the bridge
func (tc *TCPConnection) Open(ctx context.Context) error {
	tc.mutex.Lock()
	defer tc.mutex.Unlock()

	if tc.isOpen {
		return nil
	}

	tc.logger.Info("Opening TCP connection")

	dialer := &net.Dialer{Timeout: tc.config.ConnectTimeout}
	if tc.config.KeepAlive {
		dialer.KeepAlive = 30 * time.Second
	} else {
		dialer.KeepAlive = -1
	}

	conn, err := dialer.DialContext(ctx, "tcp", tc.address())
	if err != nil {
		tc.logger.Error("Failed to open TCP connection", zap.Error(err))
		return fmt.Errorf("failed to connect to %s: %w", tc.address(), err)
	}

	tc.conn = conn
	tc.isOpen = true
	tc.stats.IsConnected = true
	tc.stats.LastActivity = time.Now()

	tc.logger.Info("TCP connection opened successfully")
	return nil
}

// Close closes the TCP connection
func (tc *TCPConnection) Close() error {
	tc.mutex.Lock()
	defer tc.mutex.Unlock()

	if !tc.isOpen || tc.conn == nil {
		return nil
	}

	err := tc.conn.Close()
	tc.conn = nil
	tc.isOpen = false
	tc.stats.IsConnected = false
	if err != nil {
		tc.logger.Error("Failed to close TCP connection", zap.Error(err))
		return fmt.Errorf("failed to close TCP connection: %w", err)
	}

	tc.logger.Info("TCP connection closed successfully")
	return nil
}

// IsOpen returns whether the connection is open
func (tc *TCPConnection) IsOpen() bool {
	tc.mutex.RLock()
	defer tc.mutex.RUnlock()
	return tc.isOpen && tc.conn != nil
}

// Write writes data to the TCP connection
func (tc *TCPConnection) Write(ctx context.Context, data []byte) error {
	tc.mutex.Lock()
	defer tc.mutex.Unlock()

	if !tc.isOpen || tc.conn == nil {
		return ErrNotOpen
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if tc.config.WriteTimeout > 0 {
		_ = tc.conn.SetWriteDeadline(time.Now().Add(tc.config.WriteTimeout))
	}

	start := time.Now()
	n, err := tc.conn.Write(data)
	if err != nil {
		tc.stats.ErrorCount++
		tc.logger.Error("TCP write failed", zap.Error(err))
		return fmt.Errorf("failed to write to TCP connection: %w", err)
	}
	if n != len(data) {
		tc.stats.ErrorCount++
		return fmt.Errorf("incomplete write: wrote %d of %d bytes", n, len(data))
	}

	tc.stats.recordWrite(n, time.Since(start))
	return nil
}

// Read returns the bytes that arrive within the read timeout. A deadline
// expiry means the console was quiet and yields an empty slice.
func (tc *TCPConnection) Read(ctx context.Context, maxBytes int) ([]byte, error) {
	tc.mutex.Lock()
	defer tc.mutex.Unlock()

	if !tc.isOpen || tc.conn == nil {
		return nil, ErrNotOpen
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := tc.readWithin(maxBytes, tc.config.ReadTimeout)
	if err != nil {
		tc.stats.ErrorCount++
		return nil, fmt.Errorf("failed to read from TCP connection: %w", err)
	}

	tc.stats.recordRead(len(data))
	return data, nil
}

// ResetInput discards whatever the bridge has already delivered
func (tc *TCPConnection) ResetInput() error {
	tc.mutex.Lock()
	defer tc.mutex.Unlock()

	if !tc.isOpen || tc.conn == nil {
		return ErrNotOpen
	}

	for {
		data, err := tc.readWithin(4096, drainTimeout)
		if err != nil {
			return fmt.Errorf("failed to reset TCP input: %w", err)
		}
		if len(data) == 0 {
			return nil
		}
	}
}

func (tc *TCPConnection) readWithin(maxBytes int, timeout time.Duration) ([]byte, error) {
	if timeout <= 0 {
		timeout = drainTimeout
	}
	if err := tc.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, err
	}

	buffer := make([]byte, maxBytes)
	n, err := tc.conn.Read(buffer)
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return buffer[:n], nil
		}
		if errors.Is(err, io.EOF) && n > 0 {
			return buffer[:n], nil
		}
		return nil, err
	}
	return buffer[:n], nil
}

// Type returns the link type
func (tc *TCPConnection) Type() LinkType {
	return LinkTypeTCP
}

// Address returns the bridge's host:port
func (tc *TCPConnection) Address() string {
	return tc.address()
}

// Stats returns a copy of the link statistics
func (tc *TCPConnection) Stats() Stats {
	tc.mutex.RLock()
	defer tc.mutex.RUnlock()
	return tc.stats
}
