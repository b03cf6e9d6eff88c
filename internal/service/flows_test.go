package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"microconfig-service/internal/model"
)

func TestFlowCheck(t *testing.T) {
	t.Parallel()

	fw := newFirmware()
	svc, _ := startReady(t, fw, testSessionConfig())

	res, err := svc.RunFlow(callCtx(t), "check")
	require.NoError(t, err)
	assert.True(t, res.Success)
	require.Len(t, res.Checks, 2)
	for _, c := range res.Checks {
		assert.True(t, c.Known, c.Path)
		assert.True(t, c.Match, c.Path)
	}
	assert.Equal(t, "Setup>Sample rate", res.Checks[0].Path)

	fw.setRate("300Hz")
	res, err = svc.RunFlow(callCtx(t), FlowCheck)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "configuration differs from menu", res.Message)
	assert.Equal(t, ValueCheck{
		Path: "Setup>Sample rate", Printed: "300Hz", Current: "100Hz", Known: true,
	}, res.Checks[0])
}

func TestFlowLoadUpdatesParameters(t *testing.T) {
	t.Parallel()

	fw := newFirmware()
	svc, ev := startReady(t, fw, testSessionConfig())

	res, err := svc.RunFlow(callCtx(t), "LOAD")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, `Load configuration from "logger.cfg"`, res.Message)
	assert.Equal(t, []ValueUpdate{
		{Name: "Sample rate", Value: "250Hz", Known: true},
		{Name: "Unknown", Value: "3"},
	}, res.Updates)
	require.NotNil(t, res.ConfigFilePresent)
	assert.True(t, *res.ConfigFilePresent)

	entry, err := svc.Entry("sample rate")
	require.NoError(t, err)
	assert.Equal(t, "250Hz", entry.Entry.Value)
	assert.True(t, entry.Entry.Verified)
	assert.Equal(t, 1, ev.count(model.EventParameterUpdate))

	record, err := svc.Request(context.Background(), res.RequestID)
	require.NoError(t, err)
	assert.Equal(t, model.RequestKindFlow, record.Kind)
	assert.Equal(t, "configuration>load", record.Path)
}

func TestFlowSaveAndErase(t *testing.T) {
	t.Parallel()

	svc, _ := startReady(t, newFirmware(), testSessionConfig())

	res, err := svc.RunFlow(callCtx(t), FlowErase)
	require.NoError(t, err)
	require.NotNil(t, res.ConfigFilePresent)
	assert.False(t, *res.ConfigFilePresent)
	assert.False(t, svc.Status().ConfigFilePresent)

	res, err = svc.RunFlow(callCtx(t), FlowSave)
	require.NoError(t, err)
	require.NotNil(t, res.ConfigFilePresent)
	assert.True(t, *res.ConfigFilePresent)
	assert.True(t, svc.Status().ConfigFilePresent)
}

func TestFlowUnavailable(t *testing.T) {
	t.Parallel()

	svc, _ := startReady(t, newFirmware(), testSessionConfig())

	_, err := svc.RunFlow(callCtx(t), FlowPut)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.RunFlow(callCtx(t), "format")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInterpretFlowOutput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		flow    string
		lines   []string
		success bool
		message string
		updates int
	}{
		{"get", FlowGet, []string{"Get configuration from EEPROM", "set Gain to 10dB from 0x10"}, true, "Get configuration from EEPROM", 1},
		{"get error", FlowGet, []string{"error: EEPROM empty"}, false, "error: EEPROM empty", 0},
		{"load not found", FlowLoad, []string{"Configuration file not found"}, false, "Configuration file not found", 0},
		{"put", FlowPut, []string{"put 12 bytes", "done"}, true, "done", 0},
		{"put error", FlowPut, []string{"put 12 bytes", "Error writing EEPROM"}, false, "Error writing EEPROM", 0},
		{"clear", FlowClear, []string{"EEPROM cleared"}, true, "EEPROM cleared", 0},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc, _ := newTestService(t, newFirmware(), testSessionConfig(), nil)
			out := &FlowResult{Flow: tt.flow, Success: true, Lines: tt.lines}
			svc.interpretFlow(out)
			assert.Equal(t, tt.success, out.Success)
			assert.Equal(t, tt.message, out.Message)
			assert.Len(t, out.Updates, tt.updates)
		})
	}
}

func TestParseSetLine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		line string
		want ValueUpdate
		ok   bool
	}{
		{"  set Sample rate to 200Hz", ValueUpdate{Name: "Sample rate", Value: "200Hz"}, true},
		{"set Gain to 10dB from 0x1f", ValueUpdate{Name: "Gain", Value: "10dB", Address: "0x1f"}, true},
		{"set to nothing", ValueUpdate{}, false},
		{"settings loaded", ValueUpdate{}, false},
	}
	for _, tt := range tests {
		got, ok := parseSetLine(tt.line)
		assert.Equal(t, tt.ok, ok, tt.line)
		if tt.ok {
			assert.Equal(t, tt.want, got)
		}
	}
}

func TestReboot(t *testing.T) {
	t.Parallel()

	fw := newFirmware()
	svc, ev := startReady(t, fw, testSessionConfig())

	require.NoError(t, svc.Reboot(callCtx(t)))
	assert.Contains(t, fw.commands(), "reboot")
	assert.False(t, svc.Status().Ready)
	assert.Empty(t, svc.Status().Flows)

	require.Eventually(t, func() bool { return svc.Status().Ready }, 5*time.Second, time.Millisecond)
	assert.Equal(t, 2, ev.count(model.EventMenuReady))
	assert.Equal(t, 2, ev.count(model.EventStartupComplete))
	assert.NotEmpty(t, svc.Flows())
}

func TestRun(t *testing.T) {
	t.Parallel()

	fw := newFirmware()
	svc, ev := startReady(t, fw, testSessionConfig())

	record, err := svc.Run(callCtx(t))
	require.NoError(t, err)
	assert.Equal(t, model.RequestStatusQueued, record.Status)
	assert.Equal(t, "run", record.Identifier)

	require.Eventually(t, func() bool {
		r, err := svc.Request(context.Background(), record.ID)
		return err == nil && r.IsCompleted()
	}, 5*time.Second, time.Millisecond)

	done, err := svc.Request(context.Background(), record.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RequestStatusSuccess, done.Status)
	assert.Contains(t, done.Lines, "sample 2")
	assert.Equal(t, 1, ev.count(model.EventRequestDone))
}
