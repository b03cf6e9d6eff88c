// internal/handler/session_handler.go
package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"microconfig-service/internal/utils"
)

// SessionHandler serves the session state, the discovered menu and the
// device level operations
type SessionHandler struct {
	svc     Configurator
	timeout time.Duration
	logger  *utils.ServiceLogger
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(svc Configurator, timeout time.Duration, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{
		svc:     svc,
		timeout: timeout,
		logger:  utils.NewServiceLogger(logger, "session-handler"),
	}
}

// RegisterRoutes registers session routes
func (h *SessionHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/session", h.GetSession)
	router.POST("/session/reconnect", h.Reconnect)
	router.GET("/startup", h.GetStartup)

	menu := router.Group("/menu")
	{
		menu.GET("", h.GetMenu)
		menu.GET("/entry", h.GetEntry)
	}

	router.POST("/config/:flow", h.RunFlow)

	device := router.Group("/device")
	{
		device.POST("/reboot", h.Reboot)
		device.POST("/run", h.Run)
	}
}

// GetSession returns the session status
// @Summary Session status
// @Description Get the session mode, link state and queue length
// @Tags Session
// @Produce json
// @Success 200 {object} utils.APIResponse{data=service.Status} "Session status"
// @Router /session [get]
func (h *SessionHandler) GetSession(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "Session status retrieved", h.svc.Status())
}

// Reconnect reopens the link and restarts the session
// @Summary Reconnect
// @Description Close the link, reopen it and repeat startup and discovery
// @Tags Session
// @Produce json
// @Success 202 {object} utils.APIResponse "Session restarted"
// @Failure 500 {object} utils.APIResponse "Link could not be opened"
// @Router /session/reconnect [post]
func (h *SessionHandler) Reconnect(c *gin.Context) {
	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	if err := h.svc.Reconnect(ctx); err != nil {
		respondError(c, h.logger, "Failed to reconnect", err, nil)
		return
	}
	utils.SuccessResponse(c, http.StatusAccepted, "Session restarted", h.svc.Status())
}

// GetStartup returns the startup banner
// @Summary Startup banner
// @Tags Session
// @Produce json
// @Success 200 {object} utils.APIResponse{data=service.StartupInfo}
// @Failure 503 {object} utils.APIResponse "No session"
// @Router /startup [get]
func (h *SessionHandler) GetStartup(c *gin.Context) {
	info, err := h.svc.Startup()
	if err != nil {
		respondError(c, h.logger, "Startup not available", err, nil)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Startup retrieved", info)
}

// GetMenu returns the discovered menu tree
// @Summary Menu tree
// @Tags Menu
// @Produce json
// @Success 200 {object} utils.APIResponse{data=menu.View}
// @Failure 503 {object} utils.APIResponse "Discovery not complete"
// @Router /menu [get]
func (h *SessionHandler) GetMenu(c *gin.Context) {
	root, err := h.svc.Menu()
	if err != nil {
		respondError(c, h.logger, "Menu not available", err, nil)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Menu retrieved", root)
}

// GetEntry looks up one menu entry without contacting the firmware
// @Summary Menu entry
// @Tags Menu
// @Produce json
// @Param path query string true "Entry path, segments separated by >"
// @Success 200 {object} utils.APIResponse{data=service.EntryInfo}
// @Failure 404 {object} utils.APIResponse "No such entry"
// @Router /menu/entry [get]
func (h *SessionHandler) GetEntry(c *gin.Context) {
	path := c.Query("path")
	if path == "" {
		utils.ValidationErrorResponse(c, map[string]string{"path": "required"})
		return
	}
	entry, err := h.svc.Entry(path)
	if err != nil {
		respondError(c, h.logger, "Menu entry not found", err, nil)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Menu entry retrieved", entry)
}

// RunFlow runs a configuration flow
// @Summary Configuration flow
// @Description Run put, get, clear, save, load, erase or check
// @Tags Configuration
// @Produce json
// @Param flow path string true "Flow name" Enums(put, get, clear, save, load, erase, check)
// @Success 200 {object} utils.APIResponse{data=service.FlowResult}
// @Failure 404 {object} utils.APIResponse "Flow not offered by the firmware"
// @Failure 502 {object} utils.APIResponse{data=service.FlowResult} "Flow reported a failure"
// @Router /config/{flow} [post]
func (h *SessionHandler) RunFlow(c *gin.Context) {
	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	res, err := h.svc.RunFlow(ctx, c.Param("flow"))
	if err != nil {
		respondError(c, h.logger, "Configuration flow failed", err, nil)
		return
	}
	if !res.Success {
		utils.ErrorResponseWithData(c, http.StatusBadGateway, "Configuration flow failed", errFlow(res.Message), res)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Configuration flow completed", res)
}

// Reboot restarts the firmware
// @Summary Reboot firmware
// @Tags Device
// @Produce json
// @Success 202 {object} utils.APIResponse "Reboot requested"
// @Failure 503 {object} utils.APIResponse "Link is down"
// @Router /device/reboot [post]
func (h *SessionHandler) Reboot(c *gin.Context) {
	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	if err := h.svc.Reboot(ctx); err != nil {
		respondError(c, h.logger, "Failed to reboot firmware", err, nil)
		return
	}
	utils.SuccessResponse(c, http.StatusAccepted, "Reboot requested", nil)
}

// Run starts the measurement loop. Output is streamed over the websocket.
// @Summary Run
// @Tags Device
// @Produce json
// @Success 202 {object} utils.APIResponse{data=model.RequestRecord} "Run queued"
// @Router /device/run [post]
func (h *SessionHandler) Run(c *gin.Context) {
	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	record, err := h.svc.Run(ctx)
	if err != nil {
		respondError(c, h.logger, "Failed to start run", err, nil)
		return
	}
	utils.SuccessResponse(c, http.StatusAccepted, "Run queued", record)
}

type errFlow string

func (e errFlow) Error() string { return string(e) }
