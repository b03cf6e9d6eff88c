// internal/protocol/errors.go
package protocol

import "errors"

// ErrNotOpen is returned by I/O on a closed link
var ErrNotOpen = errors.New("link not open")
