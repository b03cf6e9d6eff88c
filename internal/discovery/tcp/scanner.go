// internal/discovery/tcp/scanner.go
package tcp

import (
	"context"
	"net"
	"strconv"
	"time"

	"go.uber.org/zap"

	"microconfig-service/internal/discovery"
)

// Scanner probes the configured serial-over-TCP bridge
type Scanner struct {
	logger  *zap.Logger
	address string
	timeout time.Duration
	dial    func(ctx context.Context, network, address string) (net.Conn, error)
}

// NewScanner creates a TCP scanner for host:port
func NewScanner(logger *zap.Logger, host string, port int, timeout time.Duration) *Scanner {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	dialer := &net.Dialer{}
	return &Scanner{
		logger:  logger.With(zap.String("scanner", "tcp")),
		address: net.JoinHostPort(host, strconv.Itoa(port)),
		timeout: timeout,
		dial:    dialer.DialContext,
	}
}

// ScannerType returns scanner type
func (s *Scanner) ScannerType() string {
	return "tcp"
}

// IsAvailable reports whether a bridge is configured
func (s *Scanner) IsAvailable() bool {
	return s.address != ""
}

// Scan reports whether the bridge accepts connections. The probe closes
// the connection at once; a bridge serving a single client may refuse it
// while the service holds the link.
func (s *Scanner) Scan(ctx context.Context) ([]*discovery.Port, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	reachable := true
	conn, err := s.dial(ctx, "tcp", s.address)
	if err != nil {
		reachable = false
		s.logger.Debug("Bridge not reachable", zap.String("address", s.address), zap.Error(err))
	} else {
		conn.Close()
	}

	return []*discovery.Port{{
		Transport:   "tcp",
		Address:     s.address,
		Description: "serial-over-TCP bridge",
		Configured:  true,
		Reachable:   &reachable,
	}}, nil
}
