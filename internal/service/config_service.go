// internal/service/config_service.go
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"microconfig-service/internal/config"
	"microconfig-service/internal/menu"
	"microconfig-service/internal/model"
	"microconfig-service/internal/protocol"
	"microconfig-service/internal/repository"
	"microconfig-service/internal/session"
	"microconfig-service/internal/utils"
)

// EventPublisher receives session events for subscribers
type EventPublisher interface {
	Publish(event model.SessionEvent)
}

// ConfirmPolicy decides how firmware yes/no prompts are answered
type ConfirmPolicy string

const (
	ConfirmDefault ConfirmPolicy = "default"
	ConfirmYes     ConfirmPolicy = "yes"
	ConfirmNo      ConfirmPolicy = "no"
)

// ConfigService owns the firmware session and serialises access to it.
// A background loop polls the session; API calls queue requests and wait
// for their delivery.
type ConfigService struct {
	link     protocol.Link
	options  session.Options
	interval time.Duration
	policy   ConfirmPolicy
	history  repository.RequestRepository
	events   EventPublisher
	clock    clockwork.Clock
	base     *zap.Logger
	logger   *utils.ServiceLogger
	sessLog  *utils.SessionLogger

	mu            sync.Mutex
	sess          *session.Session
	pending       map[*waiter]struct{}
	flows         map[string][]string
	configFile    string
	configPresent bool
	startedAt     time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// NewConfigService creates a service for the given link. The link is
// opened by Start.
func NewConfigService(
	link protocol.Link,
	cfg config.SessionConfig,
	history repository.RequestRepository,
	events EventPublisher,
	clock clockwork.Clock,
	logger *zap.Logger,
) *ConfigService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = 2 * time.Millisecond
	}
	policy := ConfirmPolicy(cfg.ConfirmPolicy)
	if policy == "" {
		policy = ConfirmDefault
	}
	return &ConfigService{
		link:     link,
		options:  SessionOptions(cfg),
		interval: interval,
		policy:   policy,
		history:  history,
		events:   events,
		clock:    clock,
		base:     logger,
		logger:   utils.NewServiceLogger(logger, "config-service"),
		sessLog:  utils.NewSessionLogger(logger, string(link.Type()), link.Address()),
		pending:  make(map[*waiter]struct{}),
	}
}

// SessionOptions maps the session configuration onto the firmware
// vocabulary. Unset fields keep the stock defaults.
func SessionOptions(cfg config.SessionConfig) session.Options {
	opts := session.DefaultOptions()
	setString := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	setString(&opts.RootTitle, cfg.RootTitle)
	setString(&opts.RootKey, cfg.RootKey)
	setString(&opts.BackKey, cfg.BackKey)
	setString(&opts.ListCommand, cfg.ListCommand)
	setString(&opts.EnableCommand, cfg.EnableCommand)
	setString(&opts.KeepValueCommand, cfg.KeepValueCommand)
	setString(&opts.RebootCommand, cfg.RebootCommand)
	setString(&opts.StartupTerminator, cfg.StartupTerminator)
	if cfg.SetupCommands != nil {
		opts.SetupCommands = cfg.SetupCommands
	}
	if cfg.PruneEntries != nil {
		opts.PruneEntries = cfg.PruneEntries
	}
	if cfg.StartupRebootPolls > 0 {
		opts.StartupRebootPolls = cfg.StartupRebootPolls
	}
	if cfg.StartupMinLines > 0 {
		opts.StartupMinLines = cfg.StartupMinLines
	}
	if cfg.ReadChunk > 0 {
		opts.ReadChunk = cfg.ReadChunk
	}
	opts.MaxParsePolls = cfg.MaxParsePolls
	return opts
}

// Start opens the link, creates the session and starts the poll loop. The
// loop keeps running when the link cannot be opened; Reconnect retries.
func (s *ConfigService) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	err := s.connect(ctx)
	s.mu.Unlock()

	s.logger.Info("Starting poll loop", zap.Duration("interval", s.interval))
	go s.run(loopCtx)
	return err
}

// Stop ends the poll loop, abandons pending requests and closes the link
func (s *ConfigService) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done

	s.mu.Lock()
	defer s.mu.Unlock()
	s.failPending(fmt.Errorf("%w: service stopped", ErrAborted))
	s.closeSession()
	s.logger.LogServiceStop("stopped")
}

// Reconnect closes the current session and starts a fresh one on a
// reopened link
func (s *ConfigService) Reconnect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failPending(fmt.Errorf("%w: reconnecting", ErrAborted))
	s.closeSession()
	return s.connect(ctx)
}

// connect opens the link and starts a session. Callers hold mu.
func (s *ConfigService) connect(ctx context.Context) error {
	if err := s.link.Open(ctx); err != nil {
		s.sessLog.LogConnection("open", false, err)
		s.publish(model.EventSessionFault, "ERROR", model.JSONObject{"error": err.Error()})
		return fmt.Errorf("failed to open link: %w", err)
	}
	s.sessLog.LogConnection("open", true, nil)

	s.flows = nil
	s.configFile, s.configPresent = "", false
	s.startedAt = s.clock.Now()
	s.sess = session.New(s.link, &observer{svc: s}, s.options, s.sessLog.Logger)
	s.publish(model.EventSessionStarted, "INFO", model.JSONObject{"link": string(s.link.Type())})
	return nil
}

// closeSession tears down the session. Callers hold mu.
func (s *ConfigService) closeSession() {
	if s.sess == nil {
		return
	}
	if err := s.sess.Close(); err != nil {
		s.sessLog.LogConnection("close", false, err)
	} else {
		s.sessLog.LogConnection("close", true, nil)
	}
	s.sess = nil
	s.flows = nil
}

func (s *ConfigService) run(ctx context.Context) {
	defer close(s.done)
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			s.poll(ctx)
		}
	}
}

func (s *ConfigService) poll(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sess != nil {
		s.sess.Poll(ctx)
	}
}

// Status describes the session for operators
type Status struct {
	Mode              string            `json:"mode"`
	LinkType          protocol.LinkType `json:"link_type"`
	LinkOpen          bool              `json:"link_open"`
	Ready             bool              `json:"ready"`
	QueueLength       int               `json:"queue_length"`
	Busy              bool              `json:"busy"`
	Held              bool              `json:"held"`
	Pending           int               `json:"pending"`
	Fault             string            `json:"fault,omitempty"`
	ConfigFile        string            `json:"config_file,omitempty"`
	ConfigFilePresent bool              `json:"config_file_present"`
	Flows             []string          `json:"flows,omitempty"`
	Link              protocol.Stats    `json:"link"`
}

// Status returns a snapshot of the session state
func (s *ConfigService) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		Mode:              "disconnected",
		LinkType:          s.link.Type(),
		Pending:           len(s.pending),
		ConfigFile:        s.configFile,
		ConfigFilePresent: s.configPresent,
		Flows:             s.flowNames(),
		Link:              s.link.Stats(),
	}
	if s.sess == nil {
		return st
	}
	st.Mode = s.sess.Mode().String()
	st.LinkOpen = s.sess.LinkUp() && s.link.IsOpen()
	st.Ready = s.sess.Ready()
	st.QueueLength = s.sess.QueueLen()
	st.Busy = s.sess.Busy()
	st.Held = s.sess.Held()
	if err := s.sess.Fault(); err != nil {
		st.Fault = err.Error()
	}
	return st
}

// StartupInfo is the firmware's startup output
type StartupInfo struct {
	Complete bool           `json:"complete"`
	Banner   session.Banner `json:"banner"`
	Lines    []string       `json:"lines"`
}

// Startup returns the startup banner and the raw startup lines
func (s *ConfigService) Startup() (*StartupInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sess == nil {
		return nil, ErrNotReady
	}
	banner, ok := s.sess.Banner()
	return &StartupInfo{Complete: ok, Banner: banner, Lines: s.sess.StartupLines()}, nil
}

// EntryInfo is an indexed menu entry
type EntryInfo struct {
	Path  string    `json:"path"`
	Keys  []string  `json:"keys"`
	Entry menu.View `json:"entry"`
}

// Menu returns the discovered menu tree
func (s *ConfigService) Menu() (*menu.View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sess == nil || !s.sess.Ready() {
		return nil, ErrNotReady
	}
	view := menu.Describe(s.sess.Tree().Root)
	return &view, nil
}

// Entry looks up a menu entry by path without contacting the firmware
func (s *ConfigService) Entry(path string) (*EntryInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, err := s.lookup(path)
	if err != nil {
		return nil, err
	}
	return describeIndexed(item), nil
}

// Parameters lists every parameter with its last known value
func (s *ConfigService) Parameters() ([]EntryInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sess == nil || !s.sess.Ready() {
		return nil, ErrNotReady
	}
	items := s.sess.Index().Parameters()
	out := make([]EntryInfo, 0, len(items))
	for _, item := range items {
		out = append(out, *describeIndexed(item))
	}
	return out, nil
}

// lookup finds an indexed entry. Callers hold mu.
func (s *ConfigService) lookup(path string) (*menu.Indexed, error) {
	if s.sess == nil || !s.sess.Ready() {
		return nil, ErrNotReady
	}
	item, ok := s.sess.Index().Find(path)
	if !ok {
		return nil, fmt.Errorf("%w: menu entry %q", ErrNotFound, path)
	}
	return item, nil
}

func describeIndexed(item *menu.Indexed) *EntryInfo {
	return &EntryInfo{
		Path:  item.Path,
		Keys:  append([]string(nil), item.Keys...),
		Entry: menu.Describe(item.Entry),
	}
}

func (s *ConfigService) publish(eventType model.EventType, severity string, data model.JSONObject) {
	if s.events == nil {
		return
	}
	s.events.Publish(model.NewSessionEvent(eventType, severity, data))
}
