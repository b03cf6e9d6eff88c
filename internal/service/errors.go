// internal/service/errors.go
package service

import (
	"errors"

	"microconfig-service/internal/menu"
)

var (
	// ErrNotReady is returned while no session is running or menu discovery
	// has not completed
	ErrNotReady = errors.New("session not ready")
	// ErrNotFound is returned for an unknown menu path or flow
	ErrNotFound = errors.New("not found")
	// ErrNotQueued is returned when the session refused a request
	ErrNotQueued = errors.New("request not queued")
	// ErrInvalidValue is returned for a value the parameter cannot take
	ErrInvalidValue = menu.ErrInvalidValue
	// ErrRejected is returned when the firmware did not answer with the
	// expected prompt
	ErrRejected = errors.New("rejected by firmware")
	// ErrTimeout is returned when the caller stopped waiting for a request
	ErrTimeout = errors.New("request timed out")
	// ErrAborted is returned to requests abandoned by a fault, reboot,
	// reconnect or shutdown
	ErrAborted = errors.New("request aborted")
	// ErrAlreadyStarted is returned by a second Start
	ErrAlreadyStarted = errors.New("service already started")
)
