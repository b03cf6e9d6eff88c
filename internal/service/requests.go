// internal/service/requests.go
package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"microconfig-service/internal/menu"
	"microconfig-service/internal/model"
	"microconfig-service/internal/repository"
	"microconfig-service/internal/session"
	"microconfig-service/internal/utils"
)

// Result is the firmware's answer to a request
type Result struct {
	RequestID  uuid.UUID  `json:"request_id"`
	Identifier string     `json:"identifier"`
	Success    bool       `json:"success"`
	Lines      []string   `json:"lines"`
	Entry      *menu.View `json:"entry,omitempty"`

	err error
}

// waiter is the session target of one API request. Its methods run with
// the service mutex held.
type waiter struct {
	svc        *ConfigService
	record     *model.RequestRecord
	log        *utils.RequestLogger
	streamLen  int
	streamTail string
	param      *menu.Parameter
	done       bool
	result     chan Result
}

func (w *waiter) Deliver(_ string, lines []string, success bool) {
	status := model.RequestStatusSuccess
	var err error
	if !success {
		status = model.RequestStatusRejected
		err = ErrRejected
	}
	w.finish(status, lines, err)
}

// Stream publishes the output of a running streaming request whenever a
// line is added or the open last line grows
func (w *waiter) Stream(identifier string, lines []string) {
	if w.done || len(lines) == 0 {
		return
	}
	tail := lines[len(lines)-1]
	if len(lines) == w.streamLen && tail == w.streamTail {
		return
	}
	w.streamLen, w.streamTail = len(lines), tail
	w.svc.publish(model.EventStreamOutput, "INFO", model.JSONObject{
		"request_id": w.record.ID.String(),
		"identifier": identifier,
		"lines":      lines,
	})
}

// finish records the outcome and wakes the caller
func (w *waiter) finish(status model.RequestStatus, lines []string, err error) {
	if w.done {
		return
	}
	w.done = true
	s := w.svc
	delete(s.pending, w)

	res := Result{
		RequestID:  w.record.ID,
		Identifier: w.record.Identifier,
		Success:    status == model.RequestStatusSuccess,
		Lines:      append([]string{}, lines...),
		err:        err,
	}
	if w.param != nil {
		if res.Success && w.record.Kind == model.RequestKindRead {
			readParameter(w.param, lines)
		}
		view := menu.Describe(w.param)
		res.Entry = &view
		if res.Success {
			s.publish(model.EventParameterUpdate, "INFO", model.JSONObject{
				"path":     w.record.Path,
				"value":    w.param.RawValue,
				"verified": w.param.Verified,
			})
		}
	}

	w.record.Complete(status, lines, err, s.clock.Now())
	if uerr := s.history.Update(context.Background(), w.record); uerr != nil {
		s.logger.Warn("Failed to update request history", zap.Error(uerr))
	}
	if err != nil {
		w.log.Error(err, zap.String("status", string(status)))
	} else {
		w.log.Success(zap.Int("lines", len(lines)))
	}
	s.publish(model.EventRequestDone, severityFor(status), model.JSONObject{
		"request_id": w.record.ID.String(),
		"identifier": w.record.Identifier,
		"status":     string(status),
	})

	select {
	case w.result <- res:
	default:
	}
}

func severityFor(status model.RequestStatus) string {
	switch status {
	case model.RequestStatusSuccess:
		return "INFO"
	case model.RequestStatusRejected, model.RequestStatusTimeout:
		return "WARNING"
	default:
		return "ERROR"
	}
}

// readParameter takes the parameter's value from a submenu listing
func readParameter(p *menu.Parameter, lines []string) {
	for _, l := range lines {
		e, ok := menu.ParseListingLine(l).(*menu.Parameter)
		if ok && strings.EqualFold(e.Name(), p.Name()) {
			p.RawValue = e.RawValue
			p.Verified = true
			return
		}
	}
}

// failPending aborts every request still waiting. Callers hold mu.
func (s *ConfigService) failPending(err error) {
	status := model.RequestStatusFailed
	for w := range s.pending {
		w.finish(status, nil, err)
	}
}

// submit queues a request with a waiter as its target. Callers hold mu.
func (s *ConfigService) submit(ctx context.Context, kind model.RequestKind, path string, req session.Request) (*waiter, error) {
	if s.sess == nil {
		return nil, ErrNotReady
	}

	record := model.NewRequestRecord(kind, path, req.Identifier, req.Keys)
	record.Payload = req.Payload
	record.QueuedAt = s.clock.Now()
	if err := s.history.Create(ctx, record); err != nil {
		s.logger.Warn("Failed to record request", zap.Error(err))
	}

	w := &waiter{
		svc:    s,
		record: record,
		log:    utils.NewRequestLogger(s.base, strings.ToLower(string(kind)), record.ID.String()),
		result: make(chan Result, 1),
	}
	w.log.Start(zap.String("path", path), zap.Strings("keys", req.Keys))

	if req.Kind != session.KindWrite {
		req.Target = w
		s.pending[w] = struct{}{}
	}
	if !s.sess.Submit(ctx, req) {
		w.finish(model.RequestStatusDropped, nil, ErrNotQueued)
		return nil, ErrNotQueued
	}
	return w, nil
}

// wait blocks until the request was delivered or ctx ends
func (s *ConfigService) wait(ctx context.Context, w *waiter) (*Result, error) {
	select {
	case res := <-w.result:
		return &res, res.err
	case <-ctx.Done():
		s.mu.Lock()
		w.finish(model.RequestStatusTimeout, nil, fmt.Errorf("%w: %v", ErrTimeout, ctx.Err()))
		s.mu.Unlock()
		res := <-w.result
		return &res, res.err
	}
}

// Read asks the firmware for an entry. A submenu or action is selected
// and its output returned. A parameter is read from its parent listing
// and its value updated.
func (s *ConfigService) Read(ctx context.Context, path string, stops []string) (*Result, error) {
	s.mu.Lock()
	item, err := s.lookup(path)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if len(stops) == 0 {
		stops = []string{"select"}
	}

	req := session.Request{
		Identifier: item.Path,
		Keys:       item.Keys,
		Stops:      stops,
		Kind:       session.KindRead,
	}
	param, isParam := item.Entry.(*menu.Parameter)
	if isParam {
		req.Keys = item.Keys[:len(item.Keys)-1]
		if len(req.Keys) == 0 {
			req.Keys = []string{s.options.RootKey}
		}
	}
	w, err := s.submit(ctx, model.RequestKindRead, item.Path, req)
	if err == nil && isParam {
		w.param = param
	}
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.wait(ctx, w)
}

// RunAction executes an action entry and returns its output
func (s *ConfigService) RunAction(ctx context.Context, path string) (*Result, error) {
	s.mu.Lock()
	item, err := s.lookup(path)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if item.Entry.Kind() != menu.KindAction {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %q is a %s, not an action", ErrInvalidValue, item.Path, item.Entry.Kind())
	}
	w, err := s.submit(ctx, model.RequestKindAction, item.Path, session.Request{
		Identifier: item.Path,
		Keys:       item.Keys,
		Stops:      []string{"select"},
		Kind:       session.KindRead,
	})
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.wait(ctx, w)
}

// SetParameter validates value against the parameter and enters it. The
// parameter reflects the value the firmware reports back.
func (s *ConfigService) SetParameter(ctx context.Context, path, value string) (*Result, error) {
	s.mu.Lock()
	item, err := s.lookup(path)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	param, ok := item.Entry.(*menu.Parameter)
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %q is a %s, not a parameter", ErrInvalidValue, item.Path, item.Entry.Kind())
	}
	text, err := transmitValue(param, value)
	if err == nil && !s.sess.Encodable(text) {
		err = fmt.Errorf("%w: %q contains characters the firmware cannot receive", ErrInvalidValue, value)
	}
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}

	keys := append(append([]string(nil), item.Keys...), text)
	w, err := s.submit(ctx, model.RequestKindTransmit, item.Path, session.Request{
		Identifier: item.Path,
		Keys:       keys,
		Kind:       session.KindTransmit,
		Parameter:  param,
	})
	if err == nil {
		w.param = param
	}
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.wait(ctx, w)
}

var numberSeparators = strings.NewReplacer("_", "", "'", "", " ", "")

// transmitValue converts a user value into the text the firmware expects
func transmitValue(p *menu.Parameter, value string) (string, error) {
	if p.IsConstant() {
		return "", fmt.Errorf("%w: %q is constant", ErrInvalidValue, p.Name())
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("%w: empty value", ErrInvalidValue)
	}

	if p.Descriptor != nil && p.Descriptor.Type == menu.TypeBoolean {
		b, ok := menu.ParseBool(value)
		if !ok {
			return "", fmt.Errorf("%w: %q is not a boolean", ErrInvalidValue, value)
		}
		for _, c := range p.Selection {
			if cb, ok := menu.ParseBool(c.Label); ok && cb == b && c.ID != "" {
				return c.ID, nil
			}
		}
		if b {
			return "2", nil
		}
		return "1", nil
	}

	if len(p.Selection) > 0 {
		if c, ok := p.Choice(value); ok {
			if c.ID != "" {
				return c.ID, nil
			}
			return c.Label, nil
		}
		for _, c := range p.Selection {
			if c.ID != "" && c.ID == value {
				return c.ID, nil
			}
		}
		return "", fmt.Errorf("%w: %q is not one of the choices", ErrInvalidValue, value)
	}

	if p.Descriptor != nil {
		if p.Descriptor.IsNumeric() {
			value = numberSeparators.Replace(value)
		}
		if err := p.Descriptor.Check(value); err != nil {
			return "", err
		}
	}
	return value, nil
}

// RawRead sends a keystroke path and collects the output up to one of
// the stop patterns
func (s *ConfigService) RawRead(ctx context.Context, identifier string, keys, stops []string) (*Result, error) {
	s.mu.Lock()
	if err := s.checkKeys(keys); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	w, err := s.submit(ctx, model.RequestKindRead, "", session.Request{
		Identifier: identifier,
		Keys:       keys,
		Stops:      stops,
		Kind:       session.KindRead,
		Streaming:  session.StreamingIdentifier(identifier),
	})
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.wait(ctx, w)
}

// RawWrite sends a keystroke path followed by a payload line. Writes
// produce no output; the record is complete once the session accepts it.
func (s *ConfigService) RawWrite(ctx context.Context, payload string, keys []string) (*model.RequestRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkKeys(append([]string{payload}, keys...)); err != nil {
		return nil, err
	}
	w, err := s.submit(ctx, model.RequestKindWrite, "", session.Request{
		Identifier: "write",
		Keys:       keys,
		Payload:    payload,
		Kind:       session.KindWrite,
	})
	if err != nil {
		return nil, err
	}
	w.finish(model.RequestStatusSuccess, nil, nil)
	return w.record, nil
}

func (s *ConfigService) checkKeys(keys []string) error {
	if s.sess == nil {
		return ErrNotReady
	}
	for _, k := range keys {
		if !s.sess.Encodable(k) {
			return fmt.Errorf("%w: %q contains characters the firmware cannot receive", ErrInvalidValue, k)
		}
	}
	return nil
}

// History lists recorded requests, newest first
func (s *ConfigService) History(ctx context.Context, filter *repository.RequestFilter) ([]*model.RequestRecord, int, error) {
	return s.history.List(ctx, filter)
}

// Request returns one recorded request
func (s *ConfigService) Request(ctx context.Context, id uuid.UUID) (*model.RequestRecord, error) {
	record, err := s.history.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return record, nil
}
