// internal/handler/handler.go
package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"microconfig-service/internal/menu"
	"microconfig-service/internal/model"
	"microconfig-service/internal/repository"
	"microconfig-service/internal/service"
	"microconfig-service/internal/session"
	"microconfig-service/internal/utils"
)

// Configurator is the firmware session as the HTTP layer sees it.
// *service.ConfigService implements it.
type Configurator interface {
	Status() service.Status
	Startup() (*service.StartupInfo, error)
	Menu() (*menu.View, error)
	Entry(path string) (*service.EntryInfo, error)
	Parameters() ([]service.EntryInfo, error)
	Flows() []string

	Read(ctx context.Context, path string, stops []string) (*service.Result, error)
	RunAction(ctx context.Context, path string) (*service.Result, error)
	SetParameter(ctx context.Context, path, value string) (*service.Result, error)
	RawRead(ctx context.Context, identifier string, keys, stops []string) (*service.Result, error)
	RawWrite(ctx context.Context, payload string, keys []string) (*model.RequestRecord, error)
	RunFlow(ctx context.Context, name string) (*service.FlowResult, error)

	Reconnect(ctx context.Context) error
	Reboot(ctx context.Context) error
	Run(ctx context.Context) (*model.RequestRecord, error)

	History(ctx context.Context, filter *repository.RequestFilter) ([]*model.RequestRecord, int, error)
	Request(ctx context.Context, id uuid.UUID) (*model.RequestRecord, error)
}

var _ Configurator = (*service.ConfigService)(nil)

// DefaultRequestTimeout bounds a firmware request when none is configured
const DefaultRequestTimeout = 30 * time.Second

// statusFor maps service errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrNotReady), errors.Is(err, service.ErrAborted):
		return http.StatusServiceUnavailable
	case errors.Is(err, service.ErrNotFound), errors.Is(err, repository.ErrRequestNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidValue):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, service.ErrNotQueued):
		return http.StatusConflict
	case errors.Is(err, service.ErrRejected),
		errors.Is(err, session.ErrHalted),
		errors.Is(err, session.ErrLinkFault),
		errors.Is(err, session.ErrDecode),
		errors.Is(err, session.ErrParseTimeout):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes a service error. data, when set, is returned
// alongside the error.
func respondError(c *gin.Context, logger *utils.ServiceLogger, message string, err error, data interface{}) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error(message, zap.Error(err), zap.String("path", c.Request.URL.Path))
	} else {
		logger.Debug(message, zap.Error(err), zap.String("path", c.Request.URL.Path))
	}
	utils.ErrorResponseWithData(c, status, message, err, data)
}

// requestContext bounds a firmware request by the configured timeout
func requestContext(c *gin.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return context.WithTimeout(c.Request.Context(), timeout)
}
