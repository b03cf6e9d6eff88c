package service

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"microconfig-service/internal/menu"
	"microconfig-service/internal/model"
	"microconfig-service/internal/repository"
	"microconfig-service/internal/utils"
)

func TestReadSubmenu(t *testing.T) {
	t.Parallel()

	svc, _ := startReady(t, newFirmware(), testSessionConfig())

	res, err := svc.Read(callCtx(t), "setup", nil)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, []string{"Setup:", "  1) Sample rate: 100Hz", "  2) Gain: 20dB"}, res.Lines)
	assert.Nil(t, res.Entry)

	record, err := svc.Request(context.Background(), res.RequestID)
	require.NoError(t, err)
	assert.Equal(t, model.RequestStatusSuccess, record.Status)
	assert.Equal(t, model.RequestKindRead, record.Kind)
	assert.Equal(t, "Setup", record.Path)
	assert.NotNil(t, record.CompletedAt)
}

func TestReadParameterVerifiesValue(t *testing.T) {
	t.Parallel()

	fw := newFirmware()
	svc, ev := startReady(t, fw, testSessionConfig())
	fw.setRate("300Hz")

	res, err := svc.Read(callCtx(t), "sample rate", nil)
	require.NoError(t, err)
	require.NotNil(t, res.Entry)
	assert.Equal(t, "300Hz", res.Entry.Value)
	assert.True(t, res.Entry.Verified)

	entry, err := svc.Entry("setup>sample rate")
	require.NoError(t, err)
	assert.Equal(t, "300Hz", entry.Entry.Value)
	assert.Equal(t, 1, ev.count(model.EventParameterUpdate))
}

func TestRunAction(t *testing.T) {
	t.Parallel()

	fw := newFirmware()
	svc, _ := startReady(t, fw, testSessionConfig())

	res, err := svc.RunAction(callCtx(t), "self test")
	require.NoError(t, err)
	assert.Equal(t, []string{"running self test", "all good"}, res.Lines)

	require.Eventually(t, func() bool { return lastCommand(fw) == "h" }, 5*time.Second, time.Millisecond)
	cmds := fw.commands()
	assert.Equal(t, []string{"4", "h"}, cmds[len(cmds)-2:])

	_, err = svc.RunAction(callCtx(t), "setup")
	assert.ErrorIs(t, err, ErrInvalidValue)
	_, err = svc.RunAction(callCtx(t), "no such entry")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConfirmationPolicy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		policy ConfirmPolicy
		answer string
		output string
	}{
		{"default answers no for [y/N]", ConfirmDefault, "n", "cancelled"},
		{"yes", ConfirmYes, "y", "reset done"},
		{"no", ConfirmNo, "n", "cancelled"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := testSessionConfig()
			cfg.ConfirmPolicy = string(tt.policy)
			fw := newFirmware()
			svc, ev := startReady(t, fw, cfg)

			res, err := svc.RunAction(callCtx(t), "factory reset")
			require.NoError(t, err)
			assert.Equal(t, []string{tt.output}, res.Lines)
			assert.Contains(t, fw.commands(), tt.answer)

			prompt, ok := ev.last(model.EventConfirmation)
			require.True(t, ok)
			assert.Equal(t, []string{"Erase all settings?", "Really reset?"}, prompt.Data["prompt"])
			assert.Equal(t, false, prompt.Data["default"])
		})
	}
}

func TestSetParameter(t *testing.T) {
	t.Parallel()

	fw := newFirmware()
	svc, _ := startReady(t, fw, testSessionConfig())

	res, err := svc.SetParameter(callCtx(t), "setup>sample rate", "250Hz")
	require.NoError(t, err)
	require.NotNil(t, res.Entry)
	assert.Equal(t, "250Hz", res.Entry.Value)
	assert.True(t, res.Entry.Verified)

	res, err = svc.SetParameter(callCtx(t), "gain", "10dB")
	require.NoError(t, err)
	assert.Equal(t, "10dB", res.Entry.Value)

	require.Eventually(t, func() bool { return lastCommand(fw) == "h" }, 5*time.Second, time.Millisecond)
	cmds := fw.commands()
	assert.Equal(t, []string{"1", "2", "1", "h"}, cmds[len(cmds)-4:], "selection label sent as its id")
}

func TestSetParameterRejected(t *testing.T) {
	t.Parallel()

	fw := newFirmware()
	svc, _ := startReady(t, fw, testSessionConfig())

	res, err := svc.SetParameter(callCtx(t), "sample rate", "999Hz")
	require.ErrorIs(t, err, ErrRejected)
	assert.False(t, res.Success)
	assert.Equal(t, "100Hz", res.Entry.Value)
	assert.False(t, res.Entry.Verified)
	require.Eventually(t, func() bool { return lastCommand(fw) == "h" }, 5*time.Second, time.Millisecond)
	assert.Contains(t, fw.commands(), "keepthevalue")

	record, err := svc.Request(context.Background(), res.RequestID)
	require.NoError(t, err)
	assert.Equal(t, model.RequestStatusRejected, record.Status)
	require.NotNil(t, record.ErrorMessage)
}

func TestSetParameterValidation(t *testing.T) {
	t.Parallel()

	svc, _ := startReady(t, newFirmware(), testSessionConfig())
	before := len(svc.link.(*firmware).commands())

	tests := []struct {
		name  string
		path  string
		value string
		want  error
	}{
		{"above maximum", "sample rate", "5000Hz", ErrInvalidValue},
		{"not a number", "sample rate", "fast", ErrInvalidValue},
		{"unknown choice", "gain", "30dB", ErrInvalidValue},
		{"constant", "version", "2.0", ErrInvalidValue},
		{"submenu", "setup", "x", ErrInvalidValue},
		{"unknown path", "setup>offset", "1", ErrNotFound},
		{"not latin-1", "sample rate", "100€", ErrInvalidValue},
	}
	for _, tt := range tests {
		_, err := svc.SetParameter(context.Background(), tt.path, tt.value)
		assert.ErrorIs(t, err, tt.want, tt.name)
	}
	assert.Len(t, svc.link.(*firmware).commands(), before, "nothing sent for invalid values")
}

func TestRequestTimeout(t *testing.T) {
	t.Parallel()

	svc, _ := startReady(t, newFirmware(), testSessionConfig())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	res, err := svc.RunAction(ctx, "wait for trigger")
	require.ErrorIs(t, err, ErrTimeout)

	record, err := svc.Request(context.Background(), res.RequestID)
	require.NoError(t, err)
	assert.Equal(t, model.RequestStatusTimeout, record.Status)
	assert.Zero(t, svc.Status().Pending)
}

func TestRawReadAndWrite(t *testing.T) {
	t.Parallel()

	fw := newFirmware()
	svc, _ := startReady(t, fw, testSessionConfig())

	res, err := svc.RawRead(callCtx(t), "config", []string{"2"}, []string{"select"})
	require.NoError(t, err)
	assert.Equal(t, "Configuration:", res.Lines[0])

	record, err := svc.RawWrite(callCtx(t), "hello", []string{"1"})
	require.NoError(t, err)
	assert.Equal(t, model.RequestStatusSuccess, record.Status)
	assert.Equal(t, "hello", record.Payload)
	require.Eventually(t, func() bool {
		return slices.Contains(fw.commands(), "hello") && lastCommand(fw) == "h"
	}, 5*time.Second, time.Millisecond)

	_, err = svc.RawWrite(callCtx(t), "x", nil)
	assert.ErrorIs(t, err, ErrNotQueued)
	_, err = svc.RawRead(callCtx(t), "bad", []string{"☃"}, nil)
	assert.ErrorIs(t, err, ErrInvalidValue)

	records, total, err := svc.History(context.Background(), &repository.RequestFilter{})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, model.RequestStatusDropped, records[0].Status)
}

func TestStreamingWaiter(t *testing.T) {
	t.Parallel()

	svc, ev := newTestService(t, newFirmware(), testSessionConfig(), nil)
	record := model.NewRequestRecord(model.RequestKindRead, "", "run", []string{"q"})
	require.NoError(t, svc.history.Create(context.Background(), record))
	w := &waiter{
		svc:    svc,
		record: record,
		log:    utils.NewRequestLogger(zap.NewNop(), "read", record.ID.String()),
		result: make(chan Result, 1),
	}
	svc.pending[w] = struct{}{}

	w.Stream("run", []string{"sample 1"})
	w.Stream("run", []string{"sample 1"})
	w.Stream("run", []string{"sample 1", "sample 2"})
	assert.Equal(t, 2, ev.count(model.EventStreamOutput))
	assert.Empty(t, w.result)

	w.Stream("run", []string{"progress 10%"})
	w.Stream("run", []string{"progress 10%... 20%"})
	assert.Equal(t, 4, ev.count(model.EventStreamOutput), "growth of the open line is streamed")

	w.Deliver("run", []string{"sample 1", "sample 2", "halt"}, true)
	res := <-w.result
	assert.True(t, res.Success)
	assert.Len(t, res.Lines, 3)
	assert.Empty(t, svc.pending)

	w.Stream("run", []string{"late"})
	w.Deliver("run", []string{"late"}, true)
	assert.Equal(t, 4, ev.count(model.EventStreamOutput))
	assert.Equal(t, 1, ev.count(model.EventRequestDone))
}

func TestStreamingReadEndsOnLaterPattern(t *testing.T) {
	t.Parallel()

	fw := newFirmware()
	svc, _ := startReady(t, fw, testSessionConfig())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res, err := svc.RawRead(ctx, "run until stopped", []string{"q"}, []string{"stopped", "halt"})
	require.ErrorIs(t, err, ErrRejected)
	assert.False(t, res.Success)
	assert.Contains(t, res.Lines, "halt")

	record, err := svc.Request(context.Background(), res.RequestID)
	require.NoError(t, err)
	assert.Equal(t, model.RequestStatusRejected, record.Status)
	require.Eventually(t, func() bool { return lastCommand(fw) == "h" }, 5*time.Second, time.Millisecond)
}

func TestTransmitValue(t *testing.T) {
	t.Parallel()

	rate := menu.NewParameter("Sample rate", "1", "100Hz")
	rate.Descriptor, _ = menu.ParseDescriptor("A, integer, Hz, between 1 and 100000")
	flag := menu.NewParameter("Logging", "2", "yes")
	flag.Descriptor = &menu.Descriptor{Type: menu.TypeBoolean}
	labelled := menu.NewParameter("Trigger", "3", "off")
	labelled.Descriptor = &menu.Descriptor{Type: menu.TypeBoolean}
	labelled.Selection = []menu.Choice{{ID: "1", Label: "on"}, {ID: "2", Label: "off"}}
	mode := menu.NewParameter("Mode", "4", "fast")
	mode.Descriptor = &menu.Descriptor{Type: menu.TypeEnum}
	mode.Selection = []menu.Choice{{ID: "1", Label: "Fast"}, {ID: "2", Label: "Slow"}, {Label: "custom"}}
	name := menu.NewParameter("Name", "5", "logger")
	name.Descriptor = &menu.Descriptor{Type: menu.TypeString, MaxChars: 5}
	constant := menu.NewParameter("Version", "", "1.0")

	tests := []struct {
		name    string
		param   *menu.Parameter
		value   string
		want    string
		wantErr bool
	}{
		{"number", rate, "200Hz", "200Hz", false},
		{"number with separators", rate, "10_000", "10000", false},
		{"number out of range", rate, "0", "", true},
		{"boolean true", flag, "on", "2", false},
		{"boolean false", flag, "No", "1", false},
		{"boolean invalid", flag, "maybe", "", true},
		{"boolean from selection", labelled, "true", "1", false},
		{"selection label", mode, "slow", "2", false},
		{"selection id", mode, "1", "1", false},
		{"selection without id", mode, "custom", "custom", false},
		{"selection unknown", mode, "medium", "", true},
		{"string", name, "abcd", "abcd", false},
		{"string too long", name, "abcdef", "", true},
		{"constant", constant, "2.0", "", true},
		{"empty", name, "  ", "", true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := transmitValue(tt.param, tt.value)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidValue)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
