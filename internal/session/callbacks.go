// internal/session/callbacks.go
package session

import "microconfig-service/internal/menu"

// Target receives the output of a read or transmit request. Targets are
// compared for de-duplication and session ownership, so implementations
// must be comparable (typically pointers).
type Target interface {
	Deliver(identifier string, lines []string, success bool)
}

// Streamer is implemented by targets that follow the output of a
// streaming request while it runs. Deliver still receives the final
// output exactly once.
type Streamer interface {
	Stream(identifier string, lines []string)
}

// Prompt is a yes/no question asked by the firmware
type Prompt struct {
	Lines   []string
	Default bool
}

// Observer is notified of session milestones. All methods are called
// from within Poll.
type Observer interface {
	// OnStartup is called once the startup banner has been parsed
	OnStartup(banner Banner)
	// OnMenuReady is called after discovery with the final tree and its index
	OnMenuReady(tree *menu.Tree, index *menu.Index)
	// Confirm answers a yes/no prompt synchronously
	Confirm(prompt Prompt) bool
	// OnFault reports a halt, link fault or decode fault. The session is
	// idle afterwards.
	OnFault(err error)
}

// NopObserver ignores every notification and answers prompts with their default
type NopObserver struct{}

func (NopObserver) OnStartup(Banner)                    {}
func (NopObserver) OnMenuReady(*menu.Tree, *menu.Index) {}
func (NopObserver) Confirm(p Prompt) bool               { return p.Default }
func (NopObserver) OnFault(error)                       {}
