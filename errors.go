package mxprobe

import "errors"

// ErrInvalidOptions is returned by New when the options cannot be used,
// e.g. a MailFrom that is not an address.
var ErrInvalidOptions = errors.New("mxprobe: invalid options")
