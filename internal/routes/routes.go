// internal/routes/routes.go
package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"microconfig-service/internal/config"
	"microconfig-service/internal/handler"
	"microconfig-service/internal/middleware"
	"microconfig-service/internal/utils"
)

// Router holds all dependencies for routing
type Router struct {
	config    *config.Config
	logger    *zap.Logger
	svc       handler.Configurator
	ports     handler.PortLister
	websocket *handler.WebSocketHandler
}

// NewRouter creates a new router instance. The WebSocket handler is
// created by the caller, which also runs its event forwarding.
func NewRouter(
	config *config.Config,
	logger *zap.Logger,
	svc handler.Configurator,
	ports handler.PortLister,
	websocket *handler.WebSocketHandler,
) *Router {
	return &Router{
		config:    config,
		logger:    logger,
		svc:       svc,
		ports:     ports,
		websocket: websocket,
	}
}

// SetupRouter creates and configures the Gin router
func (r *Router) SetupRouter() *gin.Engine {
	if r.config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	} else if r.config.App.Environment == "test" {
		gin.SetMode(gin.TestMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	r.addMiddleware(router)
	r.addRoutes(router)
	return router
}

// addMiddleware adds middleware to the router
func (r *Router) addMiddleware(router *gin.Engine) {
	router.Use(middleware.RecoveryMiddleware(r.logger))
	router.Use(middleware.RequestIDMiddleware())

	serviceLogger := utils.NewServiceLogger(r.logger, "http-server")
	router.Use(middleware.LoggingMiddleware(serviceLogger))

	router.Use(middleware.CORSMiddleware(&r.config.Security))

	r.logger.Debug("Middleware configured")
}

// addRoutes sets up all application routes
func (r *Router) addRoutes(router *gin.Engine) {
	timeout := r.config.Server.RequestTimeout

	healthHandler := handler.NewHealthHandler(r.svc, r.config, r.logger)
	sessionHandler := handler.NewSessionHandler(r.svc, timeout, r.logger)
	parameterHandler := handler.NewParameterHandler(r.svc, timeout, r.logger)
	requestHandler := handler.NewRequestHandler(r.svc, r.logger)

	healthHandler.RegisterRoutes(router.Group(""))

	apiV1 := router.Group("/api/v1")
	sessionHandler.RegisterRoutes(apiV1)
	parameterHandler.RegisterRoutes(apiV1)
	requestHandler.RegisterRoutes(apiV1)
	if r.ports != nil {
		handler.NewPortHandler(r.ports, r.logger).RegisterRoutes(apiV1)
	}

	if r.websocket != nil {
		r.websocket.RegisterRoutes(router.Group("/ws"))
		apiV1.GET("/connections", func(c *gin.Context) {
			utils.SuccessResponse(c, http.StatusOK, "Connections retrieved", r.websocket.GetConnectionStats())
		})
	}

	router.NoRoute(func(c *gin.Context) {
		utils.ErrorResponse(c, http.StatusNotFound, "Route not found", nil)
	})

	r.logger.Debug("All routes configured successfully")
}
