// internal/service/flows.go
package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"microconfig-service/internal/menu"
	"microconfig-service/internal/model"
	"microconfig-service/internal/session"
)

// Flow names
const (
	FlowPut   = "put"
	FlowGet   = "get"
	FlowClear = "clear"
	FlowSave  = "save"
	FlowLoad  = "load"
	FlowErase = "erase"
	FlowCheck = "check"
)

// flowPaths are the menu entries claimed for configuration flows
var flowPaths = map[string]string{
	FlowPut:   "configuration>put configuration to eeprom",
	FlowGet:   "configuration>get configuration from eeprom",
	FlowClear: "clear eeprom memory",
	FlowSave:  "configuration>save",
	FlowLoad:  "configuration>load",
	FlowErase: "configuration>erase",
	FlowCheck: "configuration>print",
}

// runKeys start the firmware's measurement loop; it ends with a halt line
var runKeys = []string{"q"}

// claimFlows looks up the flow entries. The lookup consumes entries, so
// it runs on a copy of the tree. Callers hold mu.
func (s *ConfigService) claimFlows(tree *menu.Tree) {
	work := tree.Clone()
	s.flows = make(map[string][]string)
	for _, name := range sortedFlowNames() {
		if keys, ok := work.Retrieve(flowPaths[name]); ok {
			s.flows[name] = keys
		}
	}
	s.logger.Info("Configuration flows claimed", zap.Strings("flows", s.flowNames()))
}

func sortedFlowNames() []string {
	names := make([]string, 0, len(flowPaths))
	for name := range flowPaths {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// flowNames lists the flows the firmware offers. Callers hold mu.
func (s *ConfigService) flowNames() []string {
	names := make([]string, 0, len(s.flows))
	for name := range s.flows {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Flows lists the configuration flows the firmware offers
func (s *ConfigService) Flows() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flowNames()
}

// ValueUpdate is a parameter value reported by a get or load flow
type ValueUpdate struct {
	Name    string `json:"name"`
	Value   string `json:"value"`
	Address string `json:"address,omitempty"`
	Known   bool   `json:"known"`
}

// ValueCheck compares a printed configuration value with the menu
type ValueCheck struct {
	Path    string `json:"path"`
	Printed string `json:"printed"`
	Current string `json:"current,omitempty"`
	Known   bool   `json:"known"`
	Match   bool   `json:"match"`
}

// FlowResult is the outcome of a configuration flow
type FlowResult struct {
	Flow              string        `json:"flow"`
	RequestID         uuid.UUID     `json:"request_id"`
	Success           bool          `json:"success"`
	Message           string        `json:"message,omitempty"`
	Lines             []string      `json:"lines"`
	Updates           []ValueUpdate `json:"updates,omitempty"`
	Checks            []ValueCheck  `json:"checks,omitempty"`
	ConfigFilePresent *bool         `json:"config_file_present,omitempty"`
}

// RunFlow executes a configuration flow and interprets its output
func (s *ConfigService) RunFlow(ctx context.Context, name string) (*FlowResult, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if _, known := flowPaths[name]; !known {
		return nil, fmt.Errorf("%w: flow %q", ErrNotFound, name)
	}

	s.mu.Lock()
	if s.sess == nil || !s.sess.Ready() {
		s.mu.Unlock()
		return nil, ErrNotReady
	}
	keys, ok := s.flows[name]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: firmware offers no %s flow", ErrNotFound, name)
	}
	w, err := s.submit(ctx, model.RequestKindFlow, flowPaths[name], session.Request{
		Identifier: name,
		Keys:       append([]string(nil), keys...),
		Stops:      []string{"select"},
		Kind:       session.KindRead,
	})
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	res, err := s.wait(ctx, w)
	if err != nil {
		return nil, err
	}

	out := &FlowResult{Flow: name, RequestID: res.RequestID, Success: true, Lines: res.Lines}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interpretFlow(out)
	return out, nil
}

// interpretFlow parses the flow output. Callers hold mu.
func (s *ConfigService) interpretFlow(out *FlowResult) {
	lines := out.Lines
	switch out.Flow {
	case FlowGet, FlowLoad:
		failure := "error"
		if out.Flow == FlowLoad {
			failure = "not found"
		}
		if len(lines) > 0 && strings.Contains(strings.ToLower(lines[0]), failure) {
			out.Success = false
			out.Message = strings.TrimSpace(lines[0])
			return
		}
		if len(lines) > 0 {
			out.Message = strings.TrimSpace(lines[0])
			lines = lines[1:]
		}
		for _, l := range lines {
			if u, ok := parseSetLine(l); ok {
				u.Known = s.applyUpdate(u.Name, u.Value)
				out.Updates = append(out.Updates, u)
			}
		}
		if out.Flow == FlowLoad {
			present := true
			out.ConfigFilePresent = &present
			s.configPresent = true
		}

	case FlowSave, FlowErase:
		for _, l := range lines {
			l = strings.ToLower(strings.TrimSpace(l))
			switch {
			case out.Flow == FlowSave && strings.HasPrefix(l, "saved"):
				s.setConfigPresent(out, true)
			case out.Flow == FlowErase && strings.HasPrefix(l, "removed"):
				s.setConfigPresent(out, false)
			}
		}

	case FlowPut:
		for _, l := range lines {
			if strings.Contains(strings.ToLower(l), "error") {
				out.Success = false
				out.Message = strings.TrimSpace(l)
				return
			}
		}

	case FlowCheck:
		out.Checks = s.checkPrinted(lines)
		for _, c := range out.Checks {
			if c.Known && !c.Match {
				out.Success = false
				out.Message = "configuration differs from menu"
			}
		}
	}
	if out.Success && out.Message == "" && len(lines) > 0 {
		out.Message = strings.TrimSpace(lines[len(lines)-1])
	}
}

func (s *ConfigService) setConfigPresent(out *FlowResult, present bool) {
	out.ConfigFilePresent = &present
	s.configPresent = present
}

// parseSetLine parses "set NAME to VALUE" with an optional "from ADDRESS"
func parseSetLine(line string) (ValueUpdate, bool) {
	line = strings.TrimSpace(line)
	rest, ok := strings.CutPrefix(line, "set ")
	if !ok {
		return ValueUpdate{}, false
	}
	name, value, ok := strings.Cut(rest, " to ")
	if !ok {
		return ValueUpdate{}, false
	}
	u := ValueUpdate{Name: strings.TrimSpace(name)}
	if v, addr, ok := strings.Cut(value, " from "); ok {
		value = v
		u.Address = strings.TrimSpace(addr)
	}
	u.Value = strings.TrimSpace(value)
	return u, u.Name != ""
}

// applyUpdate stores a reported value on the matching parameter
func (s *ConfigService) applyUpdate(name, value string) bool {
	if s.sess == nil || !s.sess.Ready() {
		return false
	}
	item, ok := s.sess.Index().Find(name)
	if !ok {
		return false
	}
	p, ok := item.Entry.(*menu.Parameter)
	if !ok {
		return false
	}
	p.RawValue = value
	p.Verified = true
	s.publish(model.EventParameterUpdate, "INFO", model.JSONObject{
		"path":     item.Path,
		"value":    value,
		"verified": true,
	})
	return true
}

// checkPrinted compares a printed configuration with the parameter
// values. Lines without a value open a section; the rest are
// "name: value" pairs within it.
func (s *ConfigService) checkPrinted(lines []string) []ValueCheck {
	var (
		checks  []ValueCheck
		section string
	)
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		key, value, _ := strings.Cut(l, ":")
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		if value == "" {
			section = key
			continue
		}

		path := key
		if section != "" {
			path = section + menu.PathSeparator + key
		}
		c := ValueCheck{Path: path, Printed: value}
		if s.sess != nil && s.sess.Ready() {
			if item, ok := s.sess.Index().Find(path); ok {
				if p, ok := item.Entry.(*menu.Parameter); ok {
					c.Known = true
					c.Current = p.RawValue
					c.Match = p.Matches(value)
				}
			}
		}
		checks = append(checks, c)
	}
	return checks
}

// Reboot restarts the firmware. Pending requests are abandoned and the
// session repeats startup and discovery.
func (s *ConfigService) Reboot(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sess == nil {
		return ErrNotReady
	}
	s.failPending(fmt.Errorf("%w: firmware rebooting", ErrAborted))
	s.flows = nil
	s.configFile, s.configPresent = "", false
	s.startedAt = s.clock.Now()
	if !s.sess.Reboot(ctx) {
		return fmt.Errorf("%w: link is down", ErrNotReady)
	}
	s.logger.Info("Firmware reboot requested")
	s.publish(model.EventSessionStarted, "INFO", model.JSONObject{
		"link":   string(s.link.Type()),
		"reboot": true,
	})
	return nil
}

// Run starts the firmware's measurement loop. Output is published as
// stream events until the firmware halts the loop; the returned record
// completes then.
func (s *ConfigService) Run(ctx context.Context) (*model.RequestRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sess == nil || !s.sess.Ready() {
		return nil, ErrNotReady
	}
	w, err := s.submit(ctx, model.RequestKindRead, "", session.Request{
		Identifier: "run",
		Keys:       append([]string(nil), runKeys...),
		Stops:      []string{"halt"},
		Kind:       session.KindRead,
		Streaming:  true,
	})
	if err != nil {
		return nil, err
	}
	return w.record.Clone(), nil
}
