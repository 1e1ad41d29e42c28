package ical

import (
	"fmt"
	"strings"
)

// Param is a single property parameter with its ordered values.
type Param struct {
	Name   string
	Values []string
}

// ContentLine is one decoded property: a name, its parameters in document
// order, and the unescaped value.
type ContentLine struct {
	Name   string
	Params []Param
	Value  string
}

// parseContentLine decodes one logical line per the grammar
//
//	name *(";" param-name "=" param-value *("," param-value)) ":" value
//
// Parameter values may be double-quoted; quotes are stripped here and
// re-applied on encoding only when the value requires them. The value is
// unescaped; unrecognized escape sequences pass through literally so that
// noncompliant feeds still parse.
func parseContentLine(line string) (ContentLine, error) {
	var cl ContentLine

	i := 0
	name, rest, delim, err := scanToken(line, i)
	if err != nil {
		return cl, err
	}
	if name == "" {
		return cl, fmt.Errorf("%w: empty property name in %q", ErrMalformedContentLine, truncateForError([]byte(line)))
	}
	cl.Name = name
	i = rest

	for delim == ';' {
		var param Param
		param.Name, rest, delim, err = scanToken(line, i)
		if err != nil {
			return cl, err
		}
		if param.Name == "" || delim != '=' {
			return cl, fmt.Errorf("%w: parameter without value in %q", ErrMalformedContentLine, truncateForError([]byte(line)))
		}
		i = rest
		for {
			var val string
			val, rest, delim, err = scanParamValue(line, i)
			if err != nil {
				return cl, err
			}
			param.Values = append(param.Values, val)
			i = rest
			if delim != ',' {
				break
			}
		}
		cl.Params = append(cl.Params, param)
	}

	if delim != ':' {
		return cl, fmt.Errorf("%w: no colon in %q", ErrMalformedContentLine, truncateForError([]byte(line)))
	}
	cl.Value = unescapeValue(line[i:])
	return cl, nil
}

// scanToken reads a name token until one of the structural delimiters
// ';' '=' ':' and returns the token, the index after the delimiter, and the
// delimiter itself. Reaching end of line before a delimiter is a grammar
// violation: every content line must contain a colon.
func scanToken(line string, start int) (tok string, rest int, delim byte, err error) {
	for i := start; i < len(line); i++ {
		switch line[i] {
		case ';', '=', ':':
			return line[start:i], i + 1, line[i], nil
		}
	}
	return "", 0, 0, fmt.Errorf("%w: no colon in %q", ErrMalformedContentLine, truncateForError([]byte(line)))
}

// scanParamValue reads one parameter value, which is either a quoted string
// or a run of characters up to ',' ';' or ':'.
func scanParamValue(line string, start int) (val string, rest int, delim byte, err error) {
	if start < len(line) && line[start] == '"' {
		end := strings.IndexByte(line[start+1:], '"')
		if end < 0 {
			return "", 0, 0, fmt.Errorf("%w: unterminated quoted parameter in %q", ErrMalformedContentLine, truncateForError([]byte(line)))
		}
		val = line[start+1 : start+1+end]
		i := start + 2 + end
		if i >= len(line) {
			return "", 0, 0, fmt.Errorf("%w: no colon in %q", ErrMalformedContentLine, truncateForError([]byte(line)))
		}
		switch line[i] {
		case ',', ';', ':':
			return val, i + 1, line[i], nil
		}
		return "", 0, 0, fmt.Errorf("%w: garbage after quoted parameter in %q", ErrMalformedContentLine, truncateForError([]byte(line)))
	}

	for i := start; i < len(line); i++ {
		switch line[i] {
		case ',', ';', ':':
			return line[start:i], i + 1, line[i], nil
		}
	}
	return "", 0, 0, fmt.Errorf("%w: no colon in %q", ErrMalformedContentLine, truncateForError([]byte(line)))
}

// unescapeValue resolves the backslash escapes of the value segment.
// \\ \; \, stand for the literal character, \n and \N for a newline.
// Any other backslash pair passes through untouched.
func unescapeValue(s string) string {
	if !strings.ContainsRune(s, '\\') {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 >= len(s) {
			b.WriteByte(c)
			continue
		}
		switch s[i+1] {
		case '\\', ';', ',':
			b.WriteByte(s[i+1])
			i++
		case 'n', 'N':
			b.WriteByte('\n')
			i++
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// escapeValue is the inverse of unescapeValue, applied when encoding.
func escapeValue(s string) string {
	if !strings.ContainsAny(s, "\\;,\n") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 8)
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\\':
			b.WriteString(`\\`)
		case ';':
			b.WriteString(`\;`)
		case ',':
			b.WriteString(`\,`)
		case '\n':
			b.WriteString(`\n`)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
