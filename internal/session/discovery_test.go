package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"microconfig-service/internal/menu"
)

const (
	rootListing = "Menu:\n" +
		"  1) Setup...\n" +
		"     Version: 1.0\n" +
		"  3) Help...\n" +
		"  4) Reboot\n" +
		"Select: "
	setupListing = "Setup:\n" +
		"  1) Sample rate: 100Hz\n" +
		"  2) Gain: 20dB\n" +
		"Select: "
	helpListing = "Help:\n" +
		"  1) Show commands\n" +
		"Select: "
	rateScreen = "Sample rate     : 100Hz\n" +
		"Enter new value (A, integer, Hz, between 1 and 1000): "
	gainScreen = "Gain            : 20dB\n" +
		"  - 1) 10dB\n" +
		"  - 2) 20dB\n" +
		"Select new value (A, enum): "
)

// menuFirmware answers commands like the firmware's menu would
func menuFirmware(overrides map[string]string) func(string) string {
	var path []string
	return func(cmd string) string {
		current := ""
		if len(path) > 0 {
			current = path[len(path)-1]
		}
		if out, ok := overrides[current+"/"+cmd]; ok {
			return out
		}
		switch {
		case cmd == "print":
			path = nil
			return rootListing
		case cmd == "q":
			if len(path) > 0 {
				path = path[:len(path)-1]
			}
			return "\nSelect: "
		case current == "" && cmd == "1":
			path = append(path, "setup")
			return setupListing
		case current == "" && cmd == "3":
			path = append(path, "help")
			return helpListing
		case current == "setup" && cmd == "1":
			return rateScreen
		case current == "setup" && cmd == "2":
			return gainScreen
		case cmd == "keepthevalue":
			return "\n" + setupListing
		}
		return ""
	}
}

func runDiscovery(t *testing.T, link *fakeLink, obs *testObserver, opts Options) *Session {
	t.Helper()
	ctx := context.Background()

	s := newTestSession(t, link, obs, opts)
	s.mode = ModeSetup
	for i := 0; i < 500 && s.Mode() != ModeExecutor && s.Mode() != ModeIdle; i++ {
		s.Poll(ctx)
	}
	return s
}

func TestDiscoveryBuildsTree(t *testing.T) {
	t.Parallel()

	link := &fakeLink{respond: menuFirmware(nil)}
	obs := &testObserver{}
	s := runDiscovery(t, link, obs, DefaultOptions())

	require.Equal(t, ModeExecutor, s.Mode())
	assert.Equal(t, 1, obs.ready)
	assert.Equal(t, []string{
		"detailed on", "echo off", "mode both",
		"print",
		"1", "1", "keepthevalue", "2", "keepthevalue", "q",
		"3", "q",
		"gui on",
	}, link.writes)

	root := s.Tree().Root
	assert.Nil(t, root.Child("Help"), "help is pruned after discovery")
	require.Equal(t, 3, root.Len())

	setup, ok := root.Child("Setup").(*menu.Submenu)
	require.True(t, ok)
	require.Equal(t, 2, setup.Len())

	rate := setup.Child("Sample rate").(*menu.Parameter)
	assert.Equal(t, "100Hz", rate.RawValue)
	require.NotNil(t, rate.Descriptor)
	assert.Equal(t, menu.TypeInteger, rate.Descriptor.Type)
	assert.Equal(t, "Hz", rate.Descriptor.Unit)
	assert.Equal(t, "1", rate.Descriptor.Min)
	assert.Equal(t, "1000", rate.Descriptor.Max)
	assert.Empty(t, rate.Selection)

	gain := setup.Child("Gain").(*menu.Parameter)
	assert.Equal(t, menu.TypeEnum, gain.Descriptor.Type)
	assert.Equal(t, []menu.Choice{{ID: "1", Label: "10dB"}, {ID: "2", Label: "20dB"}}, gain.Selection)

	version := root.Child("Version").(*menu.Parameter)
	assert.True(t, version.IsConstant())
	assert.Equal(t, menu.TypeString, version.Descriptor.Type)
	assert.Equal(t, 128, version.Descriptor.MaxChars)

	assert.Equal(t, menu.KindAction, root.Child("Reboot").Kind())

	item, ok := s.Index().Find("setup>gain")
	require.True(t, ok)
	assert.Equal(t, []string{"1", "2"}, item.Keys)
}

func TestDiscoveryHalt(t *testing.T) {
	t.Parallel()

	link := &fakeLink{respond: menuFirmware(map[string]string{
		"/1": "Setup:\n\nerror: sensor missing\n\nHALT\n",
	})}
	obs := &testObserver{}
	s := runDiscovery(t, link, obs, DefaultOptions())

	assert.Equal(t, ModeIdle, s.Mode())
	require.Len(t, obs.faults, 1)
	assert.ErrorIs(t, obs.faults[0], ErrHalted)
	assert.Contains(t, obs.faults[0].Error(), "error: sensor missing")
	assert.Zero(t, obs.ready)
	assert.NotContains(t, link.writes, "gui on")
}

func TestDiscoveryRetriesUntilBlockComplete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	link := &fakeLink{}
	obs := &testObserver{}
	s := newTestSession(t, link, obs, DefaultOptions())
	s.startDiscovery()

	s.Poll(ctx)
	assert.Equal(t, []string{"print"}, link.writes)

	link.feed("Menu:\n  1) Setup...\n")
	pollN(ctx, s, 5)
	assert.Zero(t, s.Tree().Root.Len(), "listing without closer is not parsed")

	link.feed("  2) Run\nSelect: ")
	pollN(ctx, s, 2)
	assert.Equal(t, 2, s.Tree().Root.Len())
}

func TestDiscoveryWaitsForSelectionPrompt(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	link := &fakeLink{}
	s := newTestSession(t, link, &testObserver{}, DefaultOptions())
	s.startDiscovery()
	s.Poll(ctx)

	link.feed("Menu:\n  1) Setup...\n  2) Select channel:")
	pollN(ctx, s, 3)
	assert.Zero(t, s.Tree().Root.Len(), "entry cut mid-line")

	link.feed(" 3\n")
	pollN(ctx, s, 3)
	assert.Zero(t, s.Tree().Root.Len(), "entry naming Select is not the prompt")

	link.feed("  3) Run\nSelect: ")
	pollN(ctx, s, 2)

	children := s.Tree().Root.Children()
	require.Len(t, children, 3)
	assert.Equal(t, "Setup", children[0].Name())
	assert.Equal(t, "Select channel", children[1].Name())
	assert.Equal(t, menu.KindParameter, children[1].Kind())
	assert.Equal(t, "Run", children[2].Name())
	assert.Equal(t, []string{"print"}, link.writes)
}

func TestDiscoveryParseTimeout(t *testing.T) {
	t.Parallel()

	opts := DefaultOptions()
	opts.MaxParsePolls = 5
	link := &fakeLink{respond: menuFirmware(map[string]string{"setup/2": "Gain: 20dB\n"})}
	obs := &testObserver{}
	s := runDiscovery(t, link, obs, opts)

	assert.Equal(t, ModeIdle, s.Mode())
	require.Len(t, obs.faults, 1)
	assert.ErrorIs(t, obs.faults[0], ErrParseTimeout)
	assert.Contains(t, obs.faults[0].Error(), "Gain")
}
