package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"microconfig-service/internal/config"
)

func TestNewLink(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     config.LinkConfig
		want    LinkType
		wantErr string
	}{
		{
			name: "serial",
			cfg:  config.LinkConfig{Type: "serial", Serial: config.SerialLinkConfig{Port: "/dev/ttyUSB0", BaudRate: 115200}},
			want: LinkTypeSerial,
		},
		{
			name: "tcp",
			cfg:  config.LinkConfig{Type: "tcp", TCP: config.TCPLinkConfig{Host: "bridge", Port: 2000}},
			want: LinkTypeTCP,
		},
		{
			name:    "serial without port",
			cfg:     config.LinkConfig{Type: "serial", Serial: config.SerialLinkConfig{BaudRate: 9600}},
			wantErr: "serial port is required",
		},
		{
			name:    "odd baud rate",
			cfg:     config.LinkConfig{Type: "serial", Serial: config.SerialLinkConfig{Port: "COM3", BaudRate: 12345}},
			wantErr: "invalid baud rate",
		},
		{
			name:    "tcp port out of range",
			cfg:     config.LinkConfig{Type: "tcp", TCP: config.TCPLinkConfig{Host: "bridge", Port: 0}},
			wantErr: "invalid port number",
		},
		{
			name:    "unknown type",
			cfg:     config.LinkConfig{Type: "bluetooth"},
			wantErr: "unsupported link type",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			link, err := NewLink(tt.cfg, zaptest.NewLogger(t))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, link.Type())
			assert.False(t, link.IsOpen())
		})
	}
}
