package ical

import (
	"bytes"
	"strings"
	"testing"
	"unicode/utf8"

	goical "github.com/emersion/go-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{name: "sample calendar", in: sampleCalendar},
		{
			name: "escapes survive",
			in: "BEGIN:VCALENDAR\r\nBEGIN:VEVENT\r\n" +
				`DESCRIPTION:Bring list: apples\, pears\; note\nsecond line` + "\r\n" +
				"END:VEVENT\r\nEND:VCALENDAR\r\n",
		},
		{
			name: "quoted parameters survive",
			in: "BEGIN:VCALENDAR\r\nBEGIN:VEVENT\r\n" +
				`ORGANIZER;CN="Doe, John";ROLE=CHAIR:mailto:j@example.org` + "\r\n" +
				"END:VEVENT\r\nEND:VCALENDAR\r\n",
		},
		{
			name: "long folded line",
			in: "BEGIN:VCALENDAR\r\nBEGIN:VEVENT\r\nSUMMARY:" +
				strings.Repeat("word ", 60) + "\r\n" +
				"END:VEVENT\r\nEND:VCALENDAR\r\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first, err := Parse([]byte(tt.in))
			require.NoError(t, err)

			out := first.Encode()
			second, err := Parse(out)
			require.NoError(t, err)
			assert.Equal(t, first, second, "tree must survive a serialize/parse cycle")

			// Serializer output is canonical: re-encoding is byte-identical.
			assert.Equal(t, out, second.Encode())
		})
	}
}

func TestEncode_FoldWidth(t *testing.T) {
	cal := &Component{
		Kind: KindCalendar,
		Children: []*Component{{
			Kind: KindEvent,
			Props: []ContentLine{
				{Name: "UID", Value: "1"},
				{Name: "SUMMARY", Value: strings.Repeat("été ", 80)},
			},
		}},
	}

	for _, line := range bytes.Split(cal.Encode(), []byte("\r\n")) {
		assert.LessOrEqual(t, len(line), maxLineOctets, "physical line %q too long", line)
	}

	// Folding must not have split a multi-byte rune.
	parsed, err := Parse(cal.Encode())
	require.NoError(t, err)
	got := parsed.Children[0].PropValue("SUMMARY")
	require.True(t, got.IsPresent())
	assert.Equal(t, strings.Repeat("été ", 80), got.MustGet())
}

func TestEncode_EscapeSequenceNotSplitByFold(t *testing.T) {
	// A value of only commas escapes to "\,\,...". Every other octet starts
	// an escape pair, so any bad fold boundary would corrupt the value.
	val := strings.Repeat(",", 200)
	cal := &Component{
		Kind: KindCalendar,
		Children: []*Component{{
			Kind:  KindEvent,
			Props: []ContentLine{{Name: "DESCRIPTION", Value: val}},
		}},
	}

	parsed, err := Parse(cal.Encode())
	require.NoError(t, err)
	got := parsed.Children[0].PropValue("DESCRIPTION")
	require.True(t, got.IsPresent())
	assert.Equal(t, val, got.MustGet())
}

func TestEncode_BackslashBeforeMultiByteRuneNotSplitByFold(t *testing.T) {
	// Parameter sections are emitted without escaping, so a backslash can
	// sit directly in front of a multi-byte character. Sized so the
	// backslash lands with exactly two octets of room on the first physical
	// line: pairing it with the character's first byte would fold the
	// continuation byte onto the next line and leave both lines invalid
	// UTF-8.
	val := strings.Repeat("a", 69) + `\é`
	cal := &Component{
		Kind: KindCalendar,
		Children: []*Component{{
			Kind: KindEvent,
			Props: []ContentLine{{
				Name:   "X",
				Params: []Param{{Name: "C", Values: []string{val}}},
				Value:  "v",
			}},
		}},
	}

	out := cal.Encode()
	for _, line := range bytes.Split(out, []byte("\r\n")) {
		assert.True(t, utf8.Valid(line), "physical line %q is not valid UTF-8", line)
		assert.LessOrEqual(t, len(line), maxLineOctets)
	}

	parsed, err := Parse(out)
	require.NoError(t, err)
	got := parsed.Children[0].Props[0].Params[0].Values[0]
	assert.Equal(t, val, got)
}

func TestEncode_QuotesParamOnlyWhenNeeded(t *testing.T) {
	cal := &Component{
		Kind: KindCalendar,
		Children: []*Component{{
			Kind: KindEvent,
			Props: []ContentLine{{
				Name: "ATTENDEE",
				Params: []Param{
					{Name: "CN", Values: []string{"Doe, John"}},
					{Name: "ROLE", Values: []string{"CHAIR"}},
				},
				Value: "mailto:j@example.org",
			}},
		}},
	}

	out := string(cal.Encode())
	assert.Contains(t, out, `CN="Doe, John"`)
	assert.Contains(t, out, `ROLE=CHAIR`)
	assert.NotContains(t, out, `"CHAIR"`)
}

// The serializer's output must be consumable by an independent decoder, not
// just by our own parser.
func TestEncode_CrossDecode(t *testing.T) {
	first, err := Parse([]byte(sampleCalendar))
	require.NoError(t, err)

	dec := goical.NewDecoder(bytes.NewReader(first.Encode()))
	cal, err := dec.Decode()
	require.NoError(t, err)

	events := cal.Events()
	require.Len(t, events, 1)
	summary, err := events[0].Props.Text(goical.PropSummary)
	require.NoError(t, err)
	assert.Equal(t, "Dentist", summary)
}
