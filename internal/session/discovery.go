// internal/session/discovery.go
package session

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"microconfig-service/internal/menu"
)

type discoveryStep int

const (
	stepRequestRoot discoveryStep = iota
	stepAwaitRoot
	stepNextEntry
	stepRequestSubmenu
	stepAwaitSubmenu
	stepRequestParameter
	stepAwaitParameter
)

type frame struct {
	menu *menu.Submenu
	next int
}

type discoveryState struct {
	step      discoveryStep
	stack     []frame
	current   menu.Entry
	waitPolls int
}

func (s *Session) startDiscovery() {
	s.mode = ModeDiscovery
	s.tree = menu.NewTree(s.opts.RootTitle)
	s.index = nil
	s.discovery = discoveryState{step: stepRequestRoot}
	s.logger.Info("Menu discovery started")
}

func (s *Session) advanceDiscovery(ctx context.Context) {
	d := &s.discovery
	switch d.step {
	case stepRequestRoot:
		if s.clearInput() && s.write(ctx, s.opts.ListCommand) {
			d.step = stepAwaitRoot
			d.waitPolls = 0
		}

	case stepAwaitRoot:
		lines := s.input.Lines()
		if i := containsHalt(lines); i >= 0 {
			s.halt(lines[:i])
			return
		}
		var entries []menu.Entry
		if menu.IsSelectPrompt(s.input.Last()) {
			entries = menu.ParseListing(lines, s.opts.RootTitle)
		}
		if len(entries) == 0 {
			s.awaitParse(s.opts.RootTitle)
			return
		}
		s.tree.Root.Merge(entries)
		s.input.Reset()
		d.stack = []frame{{menu: s.tree.Root}}
		d.step = stepNextEntry

	case stepNextEntry:
		s.nextEntry(ctx)

	case stepRequestSubmenu, stepRequestParameter:
		if s.clearInput() && s.write(ctx, d.current.Key()) {
			d.step++
			d.waitPolls = 0
		}

	case stepAwaitSubmenu:
		lines := s.input.Lines()
		if i := containsHalt(lines); i >= 0 {
			s.halt(lines[:i])
			return
		}
		var entries []menu.Entry
		if len(lines) > 1 && menu.IsSelectPrompt(s.input.Last()) {
			entries = menu.ParseListing(lines, d.current.Name())
		}
		if len(entries) == 0 {
			s.awaitParse(d.current.Name())
			return
		}
		sub := d.current.(*menu.Submenu)
		sub.Merge(entries)
		s.input.Reset()
		d.stack = append(d.stack, frame{menu: sub})
		d.step = stepNextEntry

	case stepAwaitParameter:
		lines := s.input.Lines()
		if i := containsHalt(lines); i >= 0 {
			s.halt(lines[:i])
			return
		}
		p := d.current.(*menu.Parameter)
		screen, ok := menu.ParseParameterScreen(lines, p.Name())
		if !ok {
			s.awaitParse(p.Name())
			return
		}
		desc, err := menu.ParseDescriptor(screen.DescriptorText)
		if err != nil {
			s.logger.Warn("Unrecognised parameter instructions",
				zap.String("parameter", p.Name()), zap.Error(err))
			desc = &menu.Descriptor{Type: menu.TypeString}
		}
		p.Descriptor = desc
		p.Selection = menu.ParseSelection(screen.SelectionLines)
		if s.write(ctx, s.opts.KeepValueCommand) {
			d.step = stepNextEntry
		}
	}
}

// nextEntry advances the depth-first walk by one entry
func (s *Session) nextEntry(ctx context.Context) {
	d := &s.discovery
	top := &d.stack[len(d.stack)-1]
	if top.next >= top.menu.Len() {
		d.stack = d.stack[:len(d.stack)-1]
		if len(d.stack) == 0 {
			s.finishDiscovery(ctx)
			return
		}
		s.write(ctx, s.opts.BackKey)
		return
	}

	e := top.menu.ChildAt(top.next)
	top.next++
	d.current = e
	switch v := e.(type) {
	case *menu.Submenu:
		d.step = stepRequestSubmenu
	case *menu.Parameter:
		if v.IsConstant() {
			v.Descriptor, _ = menu.ParseDescriptor(menu.ConstantDescriptorText)
			return
		}
		d.step = stepRequestParameter
	}
}

func (s *Session) finishDiscovery(ctx context.Context) {
	if !s.write(ctx, s.opts.EnableCommand) {
		return
	}
	for _, name := range s.opts.PruneEntries {
		s.tree.Prune(name)
	}
	s.index = menu.NewIndex(s.tree)
	s.logger.Info("Menu discovery complete", zap.Int("entries", s.index.Len()))
	s.observer.OnMenuReady(s.tree, s.index)
	if !s.clearInput() {
		return
	}
	s.mode = ModeExecutor
}

func (s *Session) awaitParse(what string) {
	s.discovery.waitPolls++
	if s.opts.MaxParsePolls > 0 && s.discovery.waitPolls > s.opts.MaxParsePolls {
		s.stop(fmt.Errorf("%w: %s", ErrParseTimeout, what))
	}
}
