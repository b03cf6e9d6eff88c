// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"microconfig-service/internal/config"
	"microconfig-service/internal/discovery"
	serialscan "microconfig-service/internal/discovery/serial"
	tcpscan "microconfig-service/internal/discovery/tcp"
	"microconfig-service/internal/handler"
	"microconfig-service/internal/protocol"
	"microconfig-service/internal/repository"
	"microconfig-service/internal/routes"
	"microconfig-service/internal/service"
	"microconfig-service/internal/utils"
)

// configFileEnv names an explicit configuration file
const configFileEnv = "MICROCONFIG_CONFIG_FILE"

// Application represents the main application
type Application struct {
	config *config.Config
	logger *zap.Logger
	server *http.Server

	link      protocol.Link
	history   repository.RequestRepository
	events    *handler.EventBus
	websocket *handler.WebSocketHandler
	scanners  *discovery.ScannerManager

	configService *service.ConfigService

	cancel context.CancelFunc
}

func main() {
	app, err := NewApplication()
	if err != nil {
		fmt.Printf("Failed to initialize application: %v\n", err)
		os.Exit(1)
	}

	if err := app.Start(); err != nil {
		app.logger.Fatal("Failed to start application", zap.Error(err))
	}
}

// NewApplication creates a new application instance
func NewApplication() (*Application, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := utils.NewLogger(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	serviceLogger := utils.NewServiceLogger(logger, "microconfig-service")
	serviceLogger.LogServiceStart(cfg.App.Version, cfg)

	app := &Application{
		config: cfg,
		logger: logger,
	}

	if err := app.initializeLink(); err != nil {
		return nil, fmt.Errorf("failed to initialize link: %w", err)
	}

	app.initializeServices()
	app.initializeScanners()
	app.initializeServer()

	return app, nil
}

func loadConfig() (*config.Config, error) {
	if path := os.Getenv(configFileEnv); path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

// initializeLink creates the transport to the firmware console. It is
// opened when the session starts.
func (app *Application) initializeLink() error {
	link, err := protocol.NewLink(app.config.Link, app.logger)
	if err != nil {
		return err
	}
	app.link = link

	app.logger.Info("Link configured",
		zap.String("type", string(link.Type())),
		zap.String("address", link.Address()),
	)
	return nil
}

// initializeServices creates the request history, the event bus and the
// configuration service
func (app *Application) initializeServices() {
	app.history = repository.NewRequestRepository(app.config.Session.HistorySize, app.logger)
	app.events = handler.NewEventBus(app.logger)

	app.configService = service.NewConfigService(
		app.link,
		app.config.Session,
		app.history,
		app.events,
		nil,
		app.logger,
	)
	app.websocket = handler.NewWebSocketHandler(app.configService, app.events, &app.config.Security, app.logger)

	app.logger.Info("Services initialized successfully")
}

// initializeScanners registers the port scanners for the listing endpoint
func (app *Application) initializeScanners() {
	app.scanners = discovery.NewScannerManager(app.logger)
	app.scanners.RegisterScanner(serialscan.NewScanner(app.logger, app.config.Link.Serial.Port))
	if app.config.Link.Type == string(protocol.LinkTypeTCP) {
		tcp := app.config.Link.TCP
		app.scanners.RegisterScanner(tcpscan.NewScanner(app.logger, tcp.Host, tcp.Port, tcp.ConnectTimeout))
	}
}

// initializeServer sets up HTTP server and routes
func (app *Application) initializeServer() {
	routerManager := routes.NewRouter(
		app.config,
		app.logger,
		app.configService,
		app.scanners,
		app.websocket,
	)

	app.server = &http.Server{
		Addr:         app.config.GetServerAddr(),
		Handler:      routerManager.SetupRouter(),
		ReadTimeout:  app.config.Server.ReadTimeout,
		WriteTimeout: app.config.Server.WriteTimeout,
		IdleTimeout:  app.config.Server.IdleTimeout,
	}

	app.logger.Info("HTTP server initialized",
		zap.String("address", app.config.GetServerAddr()),
	)
}

// startBackgroundServices starts the event distribution, the session and
// the history reporter
func (app *Application) startBackgroundServices(ctx context.Context) {
	go app.events.Run(ctx)
	go app.websocket.Run(ctx)

	// A link that cannot be opened leaves the service up; the session is
	// retried through POST /session/reconnect.
	if err := app.configService.Start(ctx); err != nil {
		app.logger.Error("Firmware session not started", zap.Error(err))
	}

	go app.startHistoryReporter(ctx)

	app.logger.Info("Background services started")
}

// startHistoryReporter logs request history statistics every hour
func (app *Application) startHistoryReporter(ctx context.Context) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats, err := app.history.GetRequestStats(ctx)
			if err != nil {
				app.logger.Error("Failed to collect request statistics", zap.Error(err))
				continue
			}
			app.logger.Info("Request history",
				zap.Int("total", stats.TotalRequests),
				zap.Int("successful", stats.Successful),
				zap.Int("failed", stats.Failed),
				zap.Int("pending", stats.Pending),
				zap.Duration("average_duration", stats.AvgDuration),
			)
		}
	}
}

// waitForShutdown waits for shutdown signal and performs graceful shutdown
func (app *Application) waitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	app.logger.Info("Received shutdown signal", zap.String("signal", sig.String()))

	app.shutdown()
}

// shutdown performs graceful shutdown
func (app *Application) shutdown() {
	serviceLogger := utils.NewServiceLogger(app.logger, "microconfig-service")
	serviceLogger.LogServiceStop("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), app.config.Server.ShutdownTimeout)
	defer cancel()

	// Pending requests fail with ErrAborted so their handlers return
	// before the server drains connections
	app.configService.Stop()
	app.cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		app.logger.Info("HTTP server stopped")
	}

	app.logger.Info("Application shutdown completed")
	_ = app.logger.Sync()
}

// Start runs the application until a shutdown signal arrives
func (app *Application) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	app.cancel = cancel

	go func() {
		app.logger.Info("Starting HTTP server",
			zap.String("address", app.server.Addr),
		)

		if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.logger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	app.startBackgroundServices(ctx)
	app.waitForShutdown()

	return nil
}
