// internal/session/request.go
package session

import (
	"slices"
	"strings"

	"microconfig-service/internal/menu"
)

// StaySentinel ends a keystroke path whose flow keeps the menu open
const StaySentinel = "STAY"

// RequestKind selects how the executor drives a request
type RequestKind int

const (
	KindRead RequestKind = iota
	KindTransmit
	KindWrite
)

func (k RequestKind) String() string {
	switch k {
	case KindRead:
		return "read"
	case KindTransmit:
		return "transmit"
	case KindWrite:
		return "write"
	default:
		return "unknown"
	}
}

// Request is a queued menu interaction
type Request struct {
	Target     Target
	Identifier string
	Keys       []string
	Stops      []string
	Kind       RequestKind
	// Payload is written after the keys of a write request
	Payload string
	// Streaming requests pass partial output to a Streamer target on every poll
	Streaming bool
	// Parameter is updated from the firmware's answer to a transmit
	Parameter *menu.Parameter

	stay bool
}

// StreamingIdentifier reports whether an identifier names a streaming
// run request
func StreamingIdentifier(identifier string) bool {
	return strings.HasPrefix(identifier, "run")
}

func (r *Request) duplicates(o *Request) bool {
	if r.Kind != o.Kind {
		return false
	}
	if r.Kind == KindWrite {
		return r.Payload == o.Payload && slices.Equal(r.Keys, o.Keys)
	}
	return r.Target == o.Target && r.Identifier == o.Identifier
}
