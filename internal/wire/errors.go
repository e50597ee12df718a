package wire

import "errors"

// Errors surfaced by the wire codec and frame envelope (component A).
var (
	// ErrFraming covers short reads of either the length prefix or the body.
	ErrFraming = errors.New("wire: framing error")
	// ErrOverSize means the declared length exceeded MaxMessageSize; the
	// body is never read in this case.
	ErrOverSize = errors.New("wire: message exceeds max size")
	// ErrDecode means the body was not a valid tagged message of the
	// expected family.
	ErrDecode = errors.New("wire: decode error")
)
