package tcp

import "errors"

var (
	// ErrLineTooLong marks a peer streaming bytes without ever sending a
	// newline.
	ErrLineTooLong = errors.New("line exceeds maximum length")

	// ErrServerClosed is returned by Serve after Stop has been called.
	ErrServerClosed = errors.New("server closed")
)
