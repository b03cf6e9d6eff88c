// internal/discovery/serial/scanner.go
package serial

import (
	"context"
	"fmt"

	"go.bug.st/serial/enumerator"
	"go.uber.org/zap"

	"microconfig-service/internal/discovery"
)

// Scanner lists the serial ports of the host
type Scanner struct {
	logger     *zap.Logger
	configured string
	list       func() ([]*enumerator.PortDetails, error)
}

// NewScanner creates a serial scanner. configured is the port the link
// is set up to use; it is flagged in the listing.
func NewScanner(logger *zap.Logger, configured string) *Scanner {
	return &Scanner{
		logger:     logger.With(zap.String("scanner", "serial")),
		configured: configured,
		list:       enumerator.GetDetailedPortsList,
	}
}

// ScannerType returns scanner type
func (s *Scanner) ScannerType() string {
	return "serial"
}

// IsAvailable reports whether the host can enumerate serial ports
func (s *Scanner) IsAvailable() bool {
	return s.list != nil
}

// Scan lists the serial ports
func (s *Scanner) Scan(ctx context.Context) ([]*discovery.Port, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	details, err := s.list()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate serial ports: %w", err)
	}

	ports := make([]*discovery.Port, 0, len(details))
	for _, d := range details {
		p := &discovery.Port{
			Transport:  "serial",
			Address:    d.Name,
			IsUSB:      d.IsUSB,
			Configured: d.Name == s.configured,
		}
		if d.IsUSB {
			p.VendorID = d.VID
			p.ProductID = d.PID
			p.SerialNumber = d.SerialNumber
			p.Description = d.Product
		}
		ports = append(ports, p)
	}
	s.logger.Debug("Serial ports listed", zap.Int("count", len(ports)))
	return ports, nil
}
