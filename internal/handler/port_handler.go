// internal/handler/port_handler.go
package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"microconfig-service/internal/discovery"
	"microconfig-service/internal/utils"
)

// PortLister lists the consoles the service could attach to
type PortLister interface {
	ScanAll(ctx context.Context) ([]*discovery.Port, error)
	ScanByType(ctx context.Context, scannerType string) ([]*discovery.Port, error)
}

// PortHandler serves the port listing
type PortHandler struct {
	ports  PortLister
	logger *utils.ServiceLogger
}

// NewPortHandler creates a new port handler
func NewPortHandler(ports PortLister, logger *zap.Logger) *PortHandler {
	return &PortHandler{
		ports:  ports,
		logger: utils.NewServiceLogger(logger, "port-handler"),
	}
}

// RegisterRoutes registers port routes
func (h *PortHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/ports", h.ListPorts)
}

// ListPorts lists serial ports and the configured TCP bridge
// @Summary List ports
// @Tags Ports
// @Produce json
// @Param type query string false "Transport" Enums(all, serial, tcp) default(all)
// @Success 200 {object} utils.APIResponse{data=object{ports_found=int,ports=[]discovery.Port}}
// @Failure 400 {object} utils.APIResponse "Unknown transport"
// @Router /ports [get]
func (h *PortHandler) ListPorts(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	var (
		ports []*discovery.Port
		err   error
	)
	scanType := c.DefaultQuery("type", "all")
	if scanType == "all" {
		ports, err = h.ports.ScanAll(ctx)
	} else {
		ports, err = h.ports.ScanByType(ctx, scanType)
	}
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, discovery.ErrUnknownScanner) {
			status = http.StatusBadRequest
		}
		h.logger.Error("Failed to list ports", zap.Error(err))
		utils.ErrorResponse(c, status, "Failed to list ports", err)
		return
	}

	if ports == nil {
		ports = []*discovery.Port{}
	}
	utils.SuccessResponse(c, http.StatusOK, "Ports listed", gin.H{
		"ports_found": len(ports),
		"ports":       ports,
	})
}
