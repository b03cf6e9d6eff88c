// internal/session/startup.go
package session

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"microconfig-service/internal/menu"
)

type startupState struct {
	lines     []string
	idlePolls int
}

func (s *Session) advanceStartup(ctx context.Context) {
	complete := s.input.TakeComplete()
	if len(complete) == 0 {
		s.startupIdle(ctx)
		return
	}
	s.startup.idlePolls = 0

	for _, l := range complete {
		s.startup.lines = append(s.startup.lines, l)
		if strings.Contains(l, "HALT") {
			s.halt(s.startup.lines[:len(s.startup.lines)-1])
			return
		}
		if strings.HasPrefix(l, s.opts.StartupTerminator) {
			banner := ParseBanner(s.startup.lines)
			s.banner = &banner
			s.input.Reset()
			s.logger.Info("Startup complete",
				zap.Int("lines", len(s.startup.lines)),
				zap.String("config_file", banner.ConfigFile),
				zap.Bool("config_file_present", banner.ConfigFilePresent),
			)
			s.observer.OnStartup(banner)
			s.mode = ModeSetup
			s.setupStep = 0
			return
		}
	}
}

func (s *Session) startupIdle(ctx context.Context) {
	s.startup.idlePolls++
	if s.startup.idlePolls <= s.opts.StartupRebootPolls {
		return
	}
	s.startup.idlePolls = 0

	if len(s.startup.lines) < s.opts.StartupMinLines {
		s.logger.Warn("Firmware silent during startup, requesting reboot",
			zap.Int("lines", len(s.startup.lines)))
		s.write(ctx, s.opts.RebootCommand)
		return
	}
	if !hasOpeningDelimiter(s.startup.lines) {
		s.stop(fmt.Errorf("%w: no startup banner in %d lines", ErrHalted, len(s.startup.lines)))
	}
}

// Reboot asks the firmware to restart and runs startup and discovery
// again. Queued and active requests are abandoned and a halt is cleared.
// It returns false when the link is down or the command could not be
// written.
func (s *Session) Reboot(ctx context.Context) bool {
	if !s.linkUp {
		return false
	}
	s.queue = nil
	s.exec = execState{}
	s.lock = sessionLock{}
	s.fault = nil
	s.banner = nil
	s.index = nil
	s.tree = menu.NewTree(s.opts.RootTitle)
	s.startup = startupState{}
	s.discovery = discoveryState{}
	s.mode = ModeStartup
	s.logger.Info("Rebooting firmware")

	return s.clearInput() && s.write(ctx, s.opts.RebootCommand)
}

// advanceSetup sends one configuration command per poll before discovery
func (s *Session) advanceSetup(ctx context.Context) {
	if s.setupStep < len(s.opts.SetupCommands) {
		if s.write(ctx, s.opts.SetupCommands[s.setupStep]) {
			s.setupStep++
		}
		return
	}
	s.startDiscovery()
}
