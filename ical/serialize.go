package ical

import (
	"strings"
	"unicode/utf8"
)

// maxLineOctets is the output fold width: physical lines are kept at or
// under 75 octets excluding the terminator, per the format's convention.
const maxLineOctets = 75

// Encode serializes the component tree back into document bytes. Values are
// re-escaped, parameter values re-quoted only when they need it, and long
// lines folded. The output re-parses into a tree structurally equal to the
// receiver.
func (c *Component) Encode() []byte {
	var b strings.Builder
	c.encode(&b)
	return []byte(b.String())
}

func (c *Component) encode(b *strings.Builder) {
	writeFolded(b, propBegin+":"+c.Kind)
	for _, p := range c.Props {
		writeFolded(b, encodeContentLine(p))
	}
	for _, child := range c.Children {
		child.encode(b)
	}
	writeFolded(b, propEnd+":"+c.Kind)
}

func encodeContentLine(cl ContentLine) string {
	var b strings.Builder
	b.WriteString(cl.Name)
	for _, p := range cl.Params {
		b.WriteByte(';')
		b.WriteString(p.Name)
		b.WriteByte('=')
		for j, v := range p.Values {
			if j > 0 {
				b.WriteByte(',')
			}
			b.WriteString(encodeParamValue(v))
		}
	}
	b.WriteByte(':')
	b.WriteString(escapeValue(cl.Value))
	return b.String()
}

// encodeParamValue quotes a parameter value only when it contains a
// character that would otherwise terminate it.
func encodeParamValue(v string) string {
	if strings.ContainsAny(v, ":;,") {
		return `"` + v + `"`
	}
	return v
}

// writeFolded emits one logical line, splitting it into continuation lines
// whenever the octet limit is reached. Split points never fall inside a
// multi-byte character or between a backslash and the character it escapes,
// so unfolding reproduces the logical line exactly.
func writeFolded(b *strings.Builder, line string) {
	room := maxLineOctets
	for i := 0; i < len(line); {
		n := tokenLen(line, i)
		if n > room {
			b.WriteString("\r\n ")
			room = maxLineOctets - 1
		}
		b.WriteString(line[i : i+n])
		room -= n
		i += n
	}
	b.WriteString("\r\n")
}

// tokenLen returns the length of the indivisible unit starting at i: an
// escape pair or a single (possibly multi-byte) character. Escaped
// characters are always ASCII, so an escape pair is exactly two octets. A
// backslash in front of a multi-byte character is not an escape (parameter
// sections are emitted unescaped); it folds on its own so the character
// stays whole.
func tokenLen(s string, i int) int {
	if s[i] == '\\' && i+1 < len(s) && s[i+1] < utf8.RuneSelf {
		return 2
	}
	_, n := utf8.DecodeRuneInString(s[i:])
	return n
}
