// internal/session/executor.go
package session

import (
	"context"
	"slices"
	"strings"

	"go.uber.org/zap"

	"microconfig-service/internal/menu"
)

type execStep int

const (
	execDispatch execStep = iota
	execAwaitPrompt
	execDrain
	execAwait
	execFinalize
	execPayload
	execReturn
)

type execState struct {
	req       *Request
	remaining []string
	step      execStep
	match     int
}

// sessionLock reserves the firmware menu for one target while a
// stay-open flow is in progress
type sessionLock struct {
	held  bool
	owner Target
}

// SubmitRead queues a read request. Identifiers starting with "run"
// stream their output.
func (s *Session) SubmitRead(ctx context.Context, target Target, identifier string, keys, stops []string) bool {
	return s.Submit(ctx, Request{
		Target:     target,
		Identifier: identifier,
		Keys:       keys,
		Stops:      stops,
		Kind:       KindRead,
		Streaming:  StreamingIdentifier(identifier),
	})
}

// SubmitTransmit queues a request that enters a new parameter value. The
// last key is the value itself.
func (s *Session) SubmitTransmit(ctx context.Context, target Target, identifier string, keys []string) bool {
	return s.Submit(ctx, Request{
		Target:     target,
		Identifier: identifier,
		Keys:       keys,
		Kind:       KindTransmit,
	})
}

// SubmitWrite queues keystrokes followed by a payload line
func (s *Session) SubmitWrite(ctx context.Context, payload string, keys []string) bool {
	return s.Submit(ctx, Request{Keys: keys, Payload: payload, Kind: KindWrite})
}

// Submit queues a request. It returns false when the request was dropped
// because its path is empty, an equivalent request is already queued, or
// the session is no longer running. While the executor is idle the
// request is dispatched immediately.
func (s *Session) Submit(ctx context.Context, req Request) bool {
	if s.mode == ModeIdle {
		s.logger.Warn("Request dropped, session idle", zap.String("identifier", req.Identifier))
		return false
	}
	keys := slices.Clone(req.Keys)
	if n := len(keys); n > 0 && keys[n-1] == StaySentinel {
		keys = keys[:n-1]
		req.stay = true
	}
	if len(keys) == 0 {
		s.logger.Debug("Request with empty keystroke path ignored", zap.String("identifier", req.Identifier))
		return false
	}
	req.Keys = keys
	req.Stops = slices.Clone(req.Stops)
	if req.Kind == KindTransmit && len(req.Stops) == 0 {
		req.Stops = []string{"select", "new value"}
	}

	for _, q := range s.queue {
		if req.duplicates(q) {
			s.logger.Debug("Duplicate request ignored",
				zap.String("identifier", req.Identifier), zap.Stringer("kind", req.Kind))
			return false
		}
	}
	s.queue = append(s.queue, &req)

	if s.mode == ModeExecutor && s.exec.req == nil {
		s.dispatchNext(ctx)
	}
	return true
}

// QueueLen returns the number of requests waiting for dispatch
func (s *Session) QueueLen() int { return len(s.queue) }

// Busy reports whether a request is being executed
func (s *Session) Busy() bool { return s.exec.req != nil }

// Held reports whether a stay-open flow reserves the menu
func (s *Session) Held() bool { return s.lock.held }

func (s *Session) advanceExecutor(ctx context.Context) {
	if s.exec.req == nil {
		s.dispatchNext(ctx)
		return
	}
	s.advanceRequest(ctx)
}

func (s *Session) dispatchNext(ctx context.Context) {
	i := slices.IndexFunc(s.queue, s.eligible)
	if i < 0 {
		return
	}
	req := s.queue[i]
	s.queue = slices.Delete(s.queue, i, i+1)

	if req.stay && !s.lock.held {
		s.lock = sessionLock{held: true, owner: req.Target}
	}
	s.exec = execState{
		req:       req,
		remaining: slices.Clone(req.Keys),
		step:      execDispatch,
		match:     -1,
	}
	s.logger.Debug("Request dispatched",
		zap.String("identifier", req.Identifier),
		zap.Stringer("kind", req.Kind),
		zap.Strings("keys", req.Keys),
	)
	s.advanceRequest(ctx)
}

func (s *Session) eligible(r *Request) bool {
	return !s.lock.held || r.Target == s.lock.owner
}

func (s *Session) ownerQueued() bool {
	return slices.ContainsFunc(s.queue, func(r *Request) bool { return r.Target == s.lock.owner })
}

func (s *Session) advanceRequest(ctx context.Context) {
	if s.exec.req.Kind == KindWrite {
		s.advanceWrite(ctx)
		return
	}

	e := &s.exec
	req := e.req
	switch e.step {
	case execDispatch:
		if !s.clearInput() || !s.write(ctx, e.remaining[0]) {
			return
		}
		e.remaining = e.remaining[1:]
		if len(e.remaining) > 0 {
			e.step = execAwaitPrompt
		} else {
			e.step = execDrain
		}

	case execAwaitPrompt:
		prompt := "select"
		if req.Kind == KindTransmit && len(e.remaining) == 1 {
			prompt = "new value"
		}
		if s.input.Len() > 0 && strings.Contains(strings.ToLower(s.input.Last()), prompt) {
			e.step = execDispatch
		}

	case execDrain:
		s.input.DropLeadingBlank()
		e.step = execAwait

	case execAwait:
		s.await(ctx)

	case execFinalize:
		s.finalize(ctx)

	case execReturn:
		s.finishRequest(ctx)
	}
}

func (s *Session) await(ctx context.Context) {
	e := &s.exec
	req := e.req
	switch {
	case req.Kind == KindRead && s.input.Len() > 0 &&
		strings.HasSuffix(strings.ToLower(s.input.Last()), " [y/n] "):
		s.confirm(ctx)
	case len(req.Stops) == 0:
		e.step = execFinalize
	case s.input.Len() > 0:
		if k := matchStop(req, s.input.LastNonBlank()); k >= 0 {
			e.match = k
			e.step = execFinalize
		}
	}
	if !req.Streaming || e.step != execAwait || s.input.Len() == 0 {
		return
	}
	if st, ok := req.Target.(Streamer); ok {
		st.Stream(req.Identifier, s.input.Snapshot())
	}
}

// matchStop returns the index of the first stop pattern contained in
// line. A transmit checks its rejection pattern first: the re-prompt of a
// selection parameter ("Select new value") also contains "select".
func matchStop(req *Request, line string) int {
	line = strings.ToLower(line)
	if req.Kind == KindTransmit && len(req.Stops) > 1 &&
		strings.Contains(line, strings.ToLower(req.Stops[1])) {
		return 1
	}
	for k, stop := range req.Stops {
		if strings.Contains(line, strings.ToLower(stop)) {
			return k
		}
	}
	return -1
}

func (s *Session) confirm(ctx context.Context) {
	lines := s.input.Snapshot()
	last := lines[len(lines)-1]
	i := strings.Index(strings.ToLower(last), " [y/n] ")
	lines[len(lines)-1] = last[:i]

	answer := s.observer.Confirm(Prompt{Lines: lines, Default: strings.Contains(last, "[Y/")})
	if !s.clearInput() {
		return
	}
	key := "n"
	if answer {
		key = "y"
	}
	s.write(ctx, key)
}

func (s *Session) finalize(ctx context.Context) {
	e := &s.exec
	req := e.req
	if e.match == 0 {
		s.input.DropLast()
		if s.input.Len() > 0 && isBlank(s.input.Last()) {
			s.input.DropLast()
		}
	}
	if !req.Streaming {
		s.input.DropLeadingBlank()
	}
	lines := s.input.Snapshot()

	if req.Kind == KindTransmit && req.Parameter != nil {
		updateParameter(req.Parameter, lines, e.match)
	}
	if req.Target != nil {
		req.Target.Deliver(req.Identifier, lines, e.match == 0)
	}
	if req.Kind == KindTransmit && e.match == 1 {
		if !s.write(ctx, s.opts.KeepValueCommand) {
			return
		}
	}
	e.step = execReturn
}

// advanceWrite sends one key per poll, then the payload
func (s *Session) advanceWrite(ctx context.Context) {
	e := &s.exec
	switch e.step {
	case execDispatch:
		if !s.clearInput() {
			return
		}
		if len(e.remaining) == 0 {
			e.step = execPayload
			return
		}
		if s.write(ctx, e.remaining[0]) {
			e.remaining = e.remaining[1:]
		}

	case execPayload:
		if !s.clearInput() {
			return
		}
		if e.req.Payload != "" && !s.write(ctx, e.req.Payload) {
			return
		}
		e.step = execReturn

	case execReturn:
		s.finishRequest(ctx)
	}
}

// finishRequest returns the firmware to its root menu unless the request
// keeps the menu open for its owner
func (s *Session) finishRequest(ctx context.Context) {
	req := s.exec.req
	if !s.clearInput() {
		return
	}
	toRoot := !req.stay
	if s.lock.held && req.Target == s.lock.owner && (toRoot || !s.ownerQueued()) {
		s.lock = sessionLock{}
		toRoot = true
		s.logger.Debug("Session lock released", zap.String("identifier", req.Identifier))
	}
	if toRoot && !s.write(ctx, s.opts.RootKey) {
		return
	}
	s.exec = execState{}
}

// updateParameter records the value the firmware reports after a
// transmit. A rejected value leaves the parameter unverified.
func updateParameter(p *menu.Parameter, lines []string, match int) {
	if match != 0 {
		p.Verified = false
		return
	}
	for _, l := range lines {
		e, ok := menu.ParseListingLine(l).(*menu.Parameter)
		if ok && strings.EqualFold(e.Name(), p.Name()) {
			p.RawValue = e.RawValue
			p.Verified = true
			return
		}
	}
}
