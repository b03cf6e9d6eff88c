// internal/protocol/factory.go
package protocol

import (
	"fmt"
	"slices"

	"go.uber.org/zap"

	"microconfig-service/internal/config"
)

var validBaudRates = []int{1200, 2400, 4800, 9600, 19200, 38400, 57600, 115200, 230400, 460800, 921600}

// NewLink creates the link selected by the configuration. The link is
// returned closed.
func NewLink(cfg config.LinkConfig, logger *zap.Logger) (Link, error) {
	switch LinkType(cfg.Type) {
	case LinkTypeSerial:
		return createSerialLink(cfg.Serial, logger)
	case LinkTypeTCP:
		return createTCPLink(cfg.TCP, logger)
	default:
		return nil, fmt.Errorf("unsupported link type: %s", cfg.Type)
	}
}

// createSerialLink creates a serial link
func createSerialLink(cfg config.SerialLinkConfig, logger *zap.Logger) (Link, error) {
	if cfg.Port == "" {
		return nil, fmt.Errorf("serial port is required")
	}
	if !slices.Contains(validBaudRates, cfg.BaudRate) {
		return nil, fmt.Errorf("invalid baud rate: %d", cfg.BaudRate)
	}

	serialConfig := &SerialConfig{
		Port:        cfg.Port,
		BaudRate:    cfg.BaudRate,
		DataBits:    cfg.DataBits,
		StopBits:    cfg.StopBits,
		Parity:      cfg.Parity,
		ReadTimeout: cfg.ReadTimeout,
	}
	if serialConfig.DataBits == 0 {
		serialConfig.DataBits = 8
	}

	logger.Info("Creating serial link",
		zap.String("port", serialConfig.Port),
		zap.Int("baud_rate", serialConfig.BaudRate),
	)
	return NewSerialConnection(serialConfig, logger), nil
}

// createTCPLink creates a TCP bridge link
func createTCPLink(cfg config.TCPLinkConfig, logger *zap.Logger) (Link, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("TCP host is required")
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port number: %d", cfg.Port)
	}

	tcpConfig := &TCPConfig{
		Host:           cfg.Host,
		Port:           cfg.Port,
		KeepAlive:      cfg.KeepAlive,
		ConnectTimeout: cfg.ConnectTimeout,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
	}

	logger.Info("Creating TCP link",
		zap.String("host", tcpConfig.Host),
		zap.Int("port", tcpConfig.Port),
	)
	return NewTCPConnection(tcpConfig, logger), nil
}
