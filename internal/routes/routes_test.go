package routes

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"microconfig-service/internal/config"
	"microconfig-service/internal/handler"
	"microconfig-service/internal/middleware"
	"microconfig-service/internal/protocol"
	"microconfig-service/internal/repository"
	"microconfig-service/internal/service"
)

// closedLink never opens
type closedLink struct{}

func (closedLink) Open(context.Context) error                { return errors.New("no such device") }
func (closedLink) Close() error                              { return nil }
func (closedLink) IsOpen() bool                              { return false }
func (closedLink) Write(context.Context, []byte) error       { return protocol.ErrNotOpen }
func (closedLink) Read(context.Context, int) ([]byte, error) { return nil, protocol.ErrNotOpen }
func (closedLink) ResetInput() error                         { return nil }
func (closedLink) Type() protocol.LinkType                   { return protocol.LinkTypeSerial }
func (closedLink) Address() string                           { return "/dev/ttyNONE" }
func (closedLink) Stats() protocol.Stats                     { return protocol.Stats{} }

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	cfg := &config.Config{
		App:      config.AppConfig{Name: "microconfig-service", Version: "test", Environment: "test"},
		Server:   config.ServerConfig{RequestTimeout: time.Second},
		Security: config.SecurityConfig{AllowedOrigins: []string{"*"}},
		Session:  config.SessionConfig{PollInterval: time.Millisecond, HistorySize: 10},
	}
	logger := zap.NewNop()
	svc := service.NewConfigService(closedLink{}, cfg.Session, repository.NewRequestRepository(10, logger), nil, nil, logger)
	bus := handler.NewEventBus(logger)
	ws := handler.NewWebSocketHandler(svc, bus, &cfg.Security, logger)
	return NewRouter(cfg, logger, svc, nil, ws).SetupRouter()
}

func TestRoutes(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t)

	tests := []struct {
		method string
		target string
		want   int
	}{
		{http.MethodGet, "/live", http.StatusOK},
		{http.MethodGet, "/ready", http.StatusServiceUnavailable},
		{http.MethodGet, "/health", http.StatusServiceUnavailable},
		{http.MethodGet, "/api/v1/session", http.StatusOK},
		{http.MethodGet, "/api/v1/menu", http.StatusServiceUnavailable},
		{http.MethodGet, "/api/v1/startup", http.StatusServiceUnavailable},
		{http.MethodPost, "/api/v1/config/save", http.StatusServiceUnavailable},
		{http.MethodPost, "/api/v1/device/reboot", http.StatusServiceUnavailable},
		{http.MethodGet, "/api/v1/requests", http.StatusOK},
		{http.MethodGet, "/api/v1/connections", http.StatusOK},
		{http.MethodGet, "/api/v1/ports", http.StatusNotFound},
		{http.MethodGet, "/swagger/index.html", http.StatusNotFound},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(tt.method, tt.target, nil))
		assert.Equal(t, tt.want, w.Code, "%s %s", tt.method, tt.target)
		require.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader), tt.target)
	}
}
