package ical

import "errors"

// Structural errors reported while decoding a document. All of them mean the
// upstream feed is unusable as-is; none of them is transient.
var (
	// ErrMalformedFold is returned when a continuation line appears before
	// any logical line it could continue.
	ErrMalformedFold = errors.New("folded continuation line with no preceding line")

	// ErrMalformedContentLine is returned when a logical line does not
	// match the content-line grammar.
	ErrMalformedContentLine = errors.New("malformed content line")

	// ErrUnbalancedBlock is returned when an END does not match the kind of
	// the currently open BEGIN.
	ErrUnbalancedBlock = errors.New("END does not match open BEGIN")

	// ErrUnterminatedBlock is returned when the input ends while one or
	// more BEGIN blocks are still open.
	ErrUnterminatedBlock = errors.New("input ended with unterminated blocks")

	// ErrMultipleCalendars is returned when a document contains more than
	// one top-level component. Feeds bundling several calendars into one
	// body are not supported.
	ErrMultipleCalendars = errors.New("document contains multiple top-level components")
)
