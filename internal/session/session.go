// internal/session/session.go
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"

	"microconfig-service/internal/menu"
)

// Link is the byte channel to the firmware. Read must not block: it
// returns an empty slice when nothing is available.
type Link interface {
	Read(ctx context.Context, maxBytes int) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	ResetInput() error
	Close() error
}

// Mode is the active phase of the session
type Mode int

const (
	ModeStartup Mode = iota
	ModeSetup
	ModeDiscovery
	ModeExecutor
	ModeIdle
)

func (m Mode) String() string {
	switch m {
	case ModeStartup:
		return "startup"
	case ModeSetup:
		return "setup"
	case ModeDiscovery:
		return "discovery"
	case ModeExecutor:
		return "executor"
	case ModeIdle:
		return "idle"
	default:
		return "unknown"
	}
}

// Options holds the firmware vocabulary and the polling limits
type Options struct {
	RootTitle          string
	RootKey            string
	BackKey            string
	ListCommand        string
	EnableCommand      string
	KeepValueCommand   string
	RebootCommand      string
	SetupCommands      []string
	StartupTerminator  string
	StartupRebootPolls int
	StartupMinLines    int
	MaxParsePolls      int
	PruneEntries       []string
	ReadChunk          int
}

// DefaultOptions returns the vocabulary of the stock firmware
func DefaultOptions() Options {
	return Options{
		RootTitle:          "Menu",
		RootKey:            "h",
		BackKey:            "q",
		ListCommand:        "print",
		EnableCommand:      "gui on",
		KeepValueCommand:   "keepthevalue",
		RebootCommand:      "reboot",
		SetupCommands:      []string{"detailed on", "echo off", "mode both"},
		StartupTerminator:  strings.Repeat(":", delimiterWidth),
		StartupRebootPolls: 100,
		StartupMinLines:    10,
		MaxParsePolls:      6000,
		PruneEntries:       []string{"Help"},
		ReadChunk:          4096,
	}
}

// Session drives the firmware menu over a link. It is not safe for
// concurrent use: Poll, Submit and the accessors must be called from one
// goroutine or under one lock.
type Session struct {
	link     Link
	linkUp   bool
	observer Observer
	opts     Options
	logger   *zap.Logger
	encoder  *encoding.Encoder

	mode  Mode
	input LineBuffer

	startup   startupState
	setupStep int
	discovery discoveryState
	banner    *Banner

	tree  *menu.Tree
	index *menu.Index

	queue []*Request
	exec  execState
	lock  sessionLock

	fault error
}

// New creates a session in startup mode. The link must already be open.
func New(link Link, observer Observer, opts Options, logger *zap.Logger) *Session {
	if observer == nil {
		observer = NopObserver{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.ReadChunk <= 0 {
		opts.ReadChunk = 4096
	}
	return &Session{
		link:     link,
		linkUp:   true,
		observer: observer,
		opts:     opts,
		logger:   logger.With(zap.String("component", "session")),
		encoder:  encoding.ReplaceUnsupported(charmap.ISO8859_1.NewEncoder()),
		mode:     ModeStartup,
		tree:     menu.NewTree(opts.RootTitle),
	}
}

// Poll performs one cooperative step: buffered input is drained into the
// line buffer, and only when nothing arrived the active mode advances.
func (s *Session) Poll(ctx context.Context) {
	if s.mode == ModeIdle || !s.linkUp {
		return
	}

	data, err := s.link.Read(ctx, s.opts.ReadChunk)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.linkFault(fmt.Errorf("%w: read: %v", ErrLinkFault, err))
		return
	}
	if len(data) > 0 {
		if err := s.input.Feed(data); err != nil {
			s.linkFault(err)
		}
		return
	}

	s.advance(ctx)
}

func (s *Session) advance(ctx context.Context) {
	switch s.mode {
	case ModeStartup:
		s.advanceStartup(ctx)
	case ModeSetup:
		s.advanceSetup(ctx)
	case ModeDiscovery:
		s.advanceDiscovery(ctx)
	case ModeExecutor:
		s.advanceExecutor(ctx)
	}
}

// Mode returns the active phase
func (s *Session) Mode() Mode { return s.mode }

// LinkUp reports whether the link is still in use
func (s *Session) LinkUp() bool { return s.linkUp }

// Fault returns the error that stopped the session, if any
func (s *Session) Fault() error { return s.fault }

// Banner returns the parsed startup banner once startup has completed
func (s *Session) Banner() (Banner, bool) {
	if s.banner == nil {
		return Banner{}, false
	}
	return *s.banner, true
}

// StartupLines returns every line received during startup
func (s *Session) StartupLines() []string {
	return append([]string(nil), s.startup.lines...)
}

// Tree returns the menu tree. It is complete once Ready reports true.
func (s *Session) Tree() *menu.Tree { return s.tree }

// Index returns the path index built after discovery, or nil before
func (s *Session) Index() *menu.Index { return s.index }

// Ready reports whether discovery has completed and requests are served
func (s *Session) Ready() bool { return s.mode == ModeExecutor }

// Encodable reports whether text can be sent to the firmware unchanged
func (s *Session) Encodable(text string) bool {
	_, err := charmap.ISO8859_1.NewEncoder().String(text)
	return err == nil
}

// Close tears the link down without reporting a fault
func (s *Session) Close() error {
	s.mode = ModeIdle
	s.queue = nil
	s.exec = execState{}
	if !s.linkUp {
		return nil
	}
	s.linkUp = false
	return s.link.Close()
}

// write sends one command line. It returns false when the link failed.
func (s *Session) write(ctx context.Context, text string) bool {
	if !s.linkUp {
		return false
	}
	data, err := s.encoder.Bytes([]byte(text))
	if err != nil {
		s.linkFault(fmt.Errorf("%w: encode %q: %v", ErrLinkFault, text, err))
		return false
	}
	data = append(data, '\n')
	if err := s.link.Write(ctx, data); err != nil {
		if ctx.Err() != nil {
			return false
		}
		s.linkFault(fmt.Errorf("%w: write: %v", ErrLinkFault, err))
		return false
	}
	s.logger.Debug("Command written", zap.String("command", text), zap.Stringer("mode", s.mode))
	return true
}

// clearInput discards buffered lines and unread bytes on the link
func (s *Session) clearInput() bool {
	s.input.Reset()
	if !s.linkUp {
		return false
	}
	if err := s.link.ResetInput(); err != nil {
		s.linkFault(fmt.Errorf("%w: reset input: %v", ErrLinkFault, err))
		return false
	}
	return true
}

// halt stops all parsing after the firmware printed HALT. lines are the
// lines preceding the HALT line.
func (s *Session) halt(lines []string) {
	msg := lastNonBlank(lines)
	s.stop(fmt.Errorf("%w: %s", ErrHalted, msg))
}

// linkFault closes the link and abandons all work
func (s *Session) linkFault(err error) {
	if s.linkUp {
		s.linkUp = false
		if cerr := s.link.Close(); cerr != nil {
			s.logger.Warn("Failed to close link after fault", zap.Error(cerr))
		}
	}
	s.stop(err)
}

func (s *Session) stop(err error) {
	if s.mode == ModeIdle && s.fault != nil {
		return
	}
	s.fault = err
	s.mode = ModeIdle
	s.queue = nil
	s.exec = execState{}
	s.lock = sessionLock{}
	s.input.Reset()

	if errors.Is(err, ErrHalted) {
		s.logger.Error("Firmware halted", zap.Error(err))
	} else {
		s.logger.Error("Session fault", zap.Error(err))
	}
	s.observer.OnFault(err)
}

func containsHalt(lines []string) int {
	for i, l := range lines {
		if strings.Contains(l, "HALT") {
			return i
		}
	}
	return -1
}
