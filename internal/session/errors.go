// internal/session/errors.go
package session

import "errors"

var (
	// ErrHalted reports a HALT printed by the firmware
	ErrHalted = errors.New("firmware halted")
	// ErrLinkFault reports a failed read or write on the link
	ErrLinkFault = errors.New("link fault")
	// ErrDecode reports bytes that are not valid UTF-8
	ErrDecode = errors.New("invalid utf-8 from firmware")
	// ErrParseTimeout reports a listing or parameter screen that never completed
	ErrParseTimeout = errors.New("menu response not received")
)
