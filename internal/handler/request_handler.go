// internal/handler/request_handler.go
package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"microconfig-service/internal/model"
	"microconfig-service/internal/repository"
	"microconfig-service/internal/utils"
)

// RequestHandler serves the request history
type RequestHandler struct {
	svc    Configurator
	logger *utils.ServiceLogger
}

// NewRequestHandler creates a new request history handler
func NewRequestHandler(svc Configurator, logger *zap.Logger) *RequestHandler {
	return &RequestHandler{
		svc:    svc,
		logger: utils.NewServiceLogger(logger, "request-handler"),
	}
}

// RegisterRoutes registers request history routes
func (h *RequestHandler) RegisterRoutes(router *gin.RouterGroup) {
	requests := router.Group("/requests")
	{
		requests.GET("", h.ListRequests)
		requests.GET("/:id", h.GetRequest)
	}
}

// ListRequests lists the request history, newest first
// @Summary List requests
// @Tags Requests
// @Produce json
// @Param kind query string false "Request kind" Enums(READ, TRANSMIT, WRITE, ACTION, FLOW)
// @Param status query string false "Request status"
// @Param path query string false "Menu path"
// @Param page query int false "Page number" default(1)
// @Param per_page query int false "Items per page" default(20)
// @Success 200 {object} utils.APIResponse
// @Router /requests [get]
func (h *RequestHandler) ListRequests(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	filter := &repository.RequestFilter{Page: page, PerPage: perPage}
	if kind := c.Query("kind"); kind != "" {
		k := model.RequestKind(strings.ToUpper(kind))
		filter.Kind = &k
	}
	if status := c.Query("status"); status != "" {
		s := model.RequestStatus(strings.ToUpper(status))
		filter.Status = &s
	}
	if path := c.Query("path"); path != "" {
		filter.Path = &path
	}

	records, total, err := h.svc.History(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.logger, "Failed to list requests", err, nil)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Requests retrieved", gin.H{
		"requests": records,
		"pagination": gin.H{
			"page":        page,
			"per_page":    perPage,
			"total":       total,
			"total_pages": (total + perPage - 1) / perPage,
		},
	})
}

// GetRequest returns one history record
// @Summary Get request
// @Tags Requests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} utils.APIResponse{data=model.RequestRecord}
// @Failure 404 {object} utils.APIResponse "Request not found"
// @Router /requests/{id} [get]
func (h *RequestHandler) GetRequest(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request ID", err)
		return
	}

	record, err := h.svc.Request(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, "Request not found", err, nil)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Request retrieved", record)
}
