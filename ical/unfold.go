package ical

import (
	"bytes"
	"fmt"
)

// lineScanner yields the logical lines of a raw document, joining folded
// continuations as it goes. A physical line starting with a single space or
// horizontal tab continues the previous logical line; the whitespace prefix
// is dropped and the remainder appended. CRLF is the canonical terminator,
// bare LF is tolerated.
//
// A scanner is single-use; create a new one to restart from the beginning.
type lineScanner struct {
	rest []byte
	err  error
	done bool
}

func newLineScanner(data []byte) *lineScanner {
	return &lineScanner{rest: data}
}

// Next returns the next logical line. It reports false when the input is
// exhausted or a fold error occurred; check Err afterwards.
func (s *lineScanner) Next() (string, bool) {
	if s.done || s.err != nil {
		return "", false
	}
	if len(s.rest) == 0 {
		s.done = true
		return "", false
	}

	first, rest := cutLine(s.rest)
	if isContinuation(first) {
		s.err = fmt.Errorf("%w: %q", ErrMalformedFold, truncateForError(first))
		return "", false
	}

	logical := append([]byte(nil), first...)
	for len(rest) > 0 {
		next, afterNext := cutLine(rest)
		if !isContinuation(next) {
			break
		}
		if len(first) == 0 {
			// A blank line ends a logical line; a continuation right after
			// one has nothing to continue.
			s.err = fmt.Errorf("%w: %q", ErrMalformedFold, truncateForError(next))
			return "", false
		}
		logical = append(logical, next[1:]...)
		rest = afterNext
	}
	if len(rest) == 0 {
		s.done = true
	} else {
		s.rest = rest
	}
	return string(logical), true
}

// Err returns the first error encountered while scanning, if any.
func (s *lineScanner) Err() error {
	return s.err
}

// cutLine splits data at the first line terminator, returning the line
// without its terminator and the remaining bytes.
func cutLine(data []byte) (line, rest []byte) {
	i := bytes.IndexByte(data, '\n')
	if i < 0 {
		return data, nil
	}
	line = data[:i]
	if len(line) > 0 && line[len(line)-1] == '\r' {
		line = line[:len(line)-1]
	}
	return line, data[i+1:]
}

func isContinuation(line []byte) bool {
	return len(line) > 0 && (line[0] == ' ' || line[0] == '\t')
}

func truncateForError(line []byte) string {
	const max = 40
	if len(line) <= max {
		return string(line)
	}
	return string(line[:max]) + "..."
}
