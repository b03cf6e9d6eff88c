// internal/handler/parameter_handler.go
package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"microconfig-service/internal/service"
	"microconfig-service/internal/utils"
)

// ParameterHandler serves parameter reads and writes, actions and raw
// requests
type ParameterHandler struct {
	svc     Configurator
	timeout time.Duration
	logger  *utils.ServiceLogger
}

// NewParameterHandler creates a new parameter handler
func NewParameterHandler(svc Configurator, timeout time.Duration, logger *zap.Logger) *ParameterHandler {
	return &ParameterHandler{
		svc:     svc,
		timeout: timeout,
		logger:  utils.NewServiceLogger(logger, "parameter-handler"),
	}
}

// RegisterRoutes registers parameter routes
func (h *ParameterHandler) RegisterRoutes(router *gin.RouterGroup) {
	params := router.Group("/parameters")
	{
		params.GET("", h.GetParameters)
		params.PUT("", h.SetParameter)
	}
	router.POST("/actions", h.RunAction)

	raw := router.Group("/raw")
	{
		raw.POST("/read", h.RawRead)
		raw.POST("/write", h.RawWrite)
	}
}

// SetParameterRequest is the body of PUT /parameters
type SetParameterRequest struct {
	Path  string `json:"path" binding:"required"`
	Value string `json:"value" binding:"required"`
}

// ActionRequest is the body of POST /actions
type ActionRequest struct {
	Path string `json:"path" binding:"required"`
}

// RawReadRequest is the body of POST /raw/read
type RawReadRequest struct {
	Identifier string   `json:"identifier" binding:"required"`
	Keys       []string `json:"keys" binding:"required,min=1"`
	Stops      []string `json:"stops"`
}

// RawWriteRequest is the body of POST /raw/write
type RawWriteRequest struct {
	Payload string   `json:"payload" binding:"required"`
	Keys    []string `json:"keys" binding:"required,min=1"`
}

// GetParameters lists the parameters, or reads one from the firmware
// when a path is given
// @Summary Parameters
// @Description Without a path, list every parameter with its last known value. With a path, read the entry from the firmware.
// @Tags Parameters
// @Produce json
// @Param path query string false "Entry path"
// @Param stop query []string false "Stop patterns for the read"
// @Success 200 {object} utils.APIResponse
// @Failure 503 {object} utils.APIResponse "Discovery not complete"
// @Router /parameters [get]
func (h *ParameterHandler) GetParameters(c *gin.Context) {
	path := c.Query("path")
	if path == "" {
		params, err := h.svc.Parameters()
		if err != nil {
			respondError(c, h.logger, "Parameters not available", err, nil)
			return
		}
		utils.SuccessResponse(c, http.StatusOK, "Parameters retrieved", gin.H{
			"total":      len(params),
			"parameters": params,
		})
		return
	}

	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	res, err := h.svc.Read(ctx, path, c.QueryArray("stop"))
	h.respondResult(c, "Entry read", "Failed to read entry", res, err)
}

// SetParameter transmits a new value
// @Summary Set parameter
// @Tags Parameters
// @Accept json
// @Produce json
// @Param request body SetParameterRequest true "Parameter and value"
// @Success 200 {object} utils.APIResponse{data=service.Result} "Value accepted"
// @Failure 422 {object} utils.APIResponse "Value does not fit the parameter"
// @Failure 502 {object} utils.APIResponse{data=service.Result} "Value rejected by the firmware"
// @Router /parameters [put]
func (h *ParameterHandler) SetParameter(c *gin.Context) {
	var req SetParameterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	res, err := h.svc.SetParameter(ctx, req.Path, req.Value)
	h.respondResult(c, "Parameter updated", "Failed to set parameter", res, err)
}

// RunAction selects an action entry
// @Summary Run action
// @Tags Parameters
// @Accept json
// @Produce json
// @Param request body ActionRequest true "Action path"
// @Success 200 {object} utils.APIResponse{data=service.Result}
// @Failure 422 {object} utils.APIResponse "Entry is not an action"
// @Router /actions [post]
func (h *ParameterHandler) RunAction(c *gin.Context) {
	var req ActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	res, err := h.svc.RunAction(ctx, req.Path)
	h.respondResult(c, "Action completed", "Failed to run action", res, err)
}

// RawRead sends keys and collects the output up to a stop pattern
// @Summary Raw read
// @Tags Raw
// @Accept json
// @Produce json
// @Param request body RawReadRequest true "Keys and stop patterns"
// @Success 200 {object} utils.APIResponse{data=service.Result}
// @Router /raw/read [post]
func (h *ParameterHandler) RawRead(c *gin.Context) {
	var req RawReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	res, err := h.svc.RawRead(ctx, req.Identifier, req.Keys, req.Stops)
	h.respondResult(c, "Raw read completed", "Raw read failed", res, err)
}

// RawWrite queues keys followed by a payload
// @Summary Raw write
// @Tags Raw
// @Accept json
// @Produce json
// @Param request body RawWriteRequest true "Keys and payload"
// @Success 202 {object} utils.APIResponse{data=model.RequestRecord}
// @Failure 409 {object} utils.APIResponse "Request not queued"
// @Router /raw/write [post]
func (h *ParameterHandler) RawWrite(c *gin.Context) {
	var req RawWriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	record, err := h.svc.RawWrite(ctx, req.Payload, req.Keys)
	if err != nil {
		respondError(c, h.logger, "Raw write failed", err, nil)
		return
	}
	utils.SuccessResponse(c, http.StatusAccepted, "Raw write queued", record)
}

func (h *ParameterHandler) respondResult(c *gin.Context, okMessage, failMessage string, res *service.Result, err error) {
	if err != nil {
		if res != nil {
			respondError(c, h.logger, failMessage, err, res)
		} else {
			respondError(c, h.logger, failMessage, err, nil)
		}
		return
	}
	utils.SuccessResponse(c, http.StatusOK, okMessage, res)
}
