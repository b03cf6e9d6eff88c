package discovery

import "errors"

// ErrUnknownScanner is returned for a transport no scanner serves
var ErrUnknownScanner = errors.New("scanner type not found")
