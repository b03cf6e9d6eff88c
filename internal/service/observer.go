// internal/service/observer.go
package service

import (
	"errors"

	"microconfig-service/internal/menu"
	"microconfig-service/internal/model"
	"microconfig-service/internal/session"
)

// observer receives session milestones. Session callbacks run inside
// Poll, so the service mutex is already held.
type observer struct {
	svc *ConfigService
}

func (o *observer) OnStartup(banner session.Banner) {
	s := o.svc
	s.configFile = banner.ConfigFile
	s.configPresent = banner.ConfigFilePresent
	s.sessLog.LogStartup(banner.ConfigFile, banner.ConfigFilePresent, len(banner.Lines))
	s.publish(model.EventStartupComplete, "INFO", model.JSONObject{
		"config_file":         banner.ConfigFile,
		"config_file_present": banner.ConfigFilePresent,
		"info":                banner.Info,
	})
}

func (o *observer) OnMenuReady(tree *menu.Tree, index *menu.Index) {
	s := o.svc
	s.claimFlows(tree)
	params := len(index.Parameters())
	s.sessLog.LogMenuReady(index.Len(), params, s.clock.Since(s.startedAt))
	s.publish(model.EventMenuReady, "INFO", model.JSONObject{
		"entries":    index.Len(),
		"parameters": params,
		"flows":      s.flowNames(),
	})
}

func (o *observer) Confirm(prompt session.Prompt) bool {
	s := o.svc
	answer := prompt.Default
	switch s.policy {
	case ConfirmYes:
		answer = true
	case ConfirmNo:
		answer = false
	}
	s.publish(model.EventConfirmation, "WARNING", model.JSONObject{
		"prompt":  prompt.Lines,
		"default": prompt.Default,
		"answer":  answer,
		"policy":  string(s.policy),
	})
	return answer
}

func (o *observer) OnFault(err error) {
	s := o.svc
	s.sessLog.LogFault(err)
	s.publish(model.EventSessionFault, "ERROR", model.JSONObject{
		"error": err.Error(),
		"code":  faultCode(err),
	})
	s.failPending(err)
}

func faultCode(err error) string {
	switch {
	case errors.Is(err, session.ErrHalted):
		return "HALTED"
	case errors.Is(err, session.ErrDecode):
		return "DECODE"
	case errors.Is(err, session.ErrParseTimeout):
		return "PARSE_TIMEOUT"
	default:
		return "LINK"
	}
}
