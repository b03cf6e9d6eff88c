package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"microconfig-service/internal/config"
	"microconfig-service/internal/menu"
	"microconfig-service/internal/model"
	"microconfig-service/internal/repository"
	"microconfig-service/internal/service"
	"microconfig-service/internal/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubConfigurator answers with canned values and records the calls
type stubConfigurator struct {
	mu     sync.Mutex
	status service.Status
	err    error
	result *service.Result
	flow   *service.FlowResult
	record *model.RequestRecord
	params []service.EntryInfo
	filter *repository.RequestFilter
	calls  []string
}

func (s *stubConfigurator) called(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, name)
}

func (s *stubConfigurator) Status() service.Status { return s.status }

func (s *stubConfigurator) Startup() (*service.StartupInfo, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &service.StartupInfo{Complete: true, Lines: []string{"Logger v2.1"}}, nil
}

func (s *stubConfigurator) Menu() (*menu.View, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &menu.View{Name: "Menu"}, nil
}

func (s *stubConfigurator) Entry(path string) (*service.EntryInfo, error) {
	s.called("entry " + path)
	if s.err != nil {
		return nil, s.err
	}
	return &service.EntryInfo{Path: path, Keys: []string{"1"}}, nil
}

func (s *stubConfigurator) Parameters() ([]service.EntryInfo, error) { return s.params, s.err }
func (s *stubConfigurator) Flows() []string                          { return []string{"save"} }

func (s *stubConfigurator) Read(_ context.Context, path string, stops []string) (*service.Result, error) {
	s.called("read " + path)
	return s.result, s.err
}

func (s *stubConfigurator) RunAction(_ context.Context, path string) (*service.Result, error) {
	s.called("action " + path)
	return s.result, s.err
}

func (s *stubConfigurator) SetParameter(_ context.Context, path, value string) (*service.Result, error) {
	s.called("set " + path + "=" + value)
	return s.result, s.err
}

func (s *stubConfigurator) RawRead(_ context.Context, identifier string, keys, stops []string) (*service.Result, error) {
	s.called("rawread " + identifier)
	return s.result, s.err
}

func (s *stubConfigurator) RawWrite(_ context.Context, payload string, keys []string) (*model.RequestRecord, error) {
	s.called("rawwrite " + payload)
	return s.record, s.err
}

func (s *stubConfigurator) RunFlow(_ context.Context, name string) (*service.FlowResult, error) {
	s.called("flow " + name)
	return s.flow, s.err
}

func (s *stubConfigurator) Reconnect(context.Context) error { s.called("reconnect"); return s.err }
func (s *stubConfigurator) Reboot(context.Context) error    { s.called("reboot"); return s.err }

func (s *stubConfigurator) Run(context.Context) (*model.RequestRecord, error) {
	s.called("run")
	return s.record, s.err
}

func (s *stubConfigurator) History(_ context.Context, filter *repository.RequestFilter) ([]*model.RequestRecord, int, error) {
	s.mu.Lock()
	s.filter = filter
	s.mu.Unlock()
	if s.err != nil {
		return nil, 0, s.err
	}
	return []*model.RequestRecord{s.record}, 41, nil
}

func (s *stubConfigurator) Request(_ context.Context, id uuid.UUID) (*model.RequestRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.record, nil
}

// newTestRouter mounts the API handlers on a bare engine
func newTestRouter(svc Configurator) *gin.Engine {
	logger := zap.NewNop()
	router := gin.New()
	api := router.Group("/api/v1")
	NewSessionHandler(svc, time.Second, logger).RegisterRoutes(api)
	NewParameterHandler(svc, time.Second, logger).RegisterRoutes(api)
	NewRequestHandler(svc, logger).RegisterRoutes(api)
	NewHealthHandler(svc, &config.Config{App: config.AppConfig{Name: "microconfig-service", Version: "test"}}, logger).
		RegisterRoutes(router.Group(""))
	return router
}

func do(t *testing.T, router http.Handler, method, target string, body interface{}) (*httptest.ResponseRecorder, utils.APIResponse) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp utils.APIResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w, resp
}
