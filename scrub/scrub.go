// Package scrub rewrites calendar documents according to a privacy policy.
// It offers two independent, pure transforms over a parsed component tree:
// Anonymize strips identifying content while preserving scheduling fields,
// Filter drops whole events whose summary matches a configured value. The
// byte-level entry points run the full parse → transform → serialize
// pipeline for callers that hold a raw feed body.
package scrub

import (
	"github.com/calmux/icalmask/ical"
)

// AnonymizeConfig drives one Anonymize call. The zero value is not useful:
// Seed must be a secret non-empty string for the rewritten identifiers to be
// unlinkable to the originals.
type AnonymizeConfig struct {
	// CalendarName replaces the calendar's display name.
	CalendarName string
	// RedactionMessage replaces every event summary.
	RedactionMessage string
	// Seed keys the one-way identifier digest.
	Seed string
	// IgnoreUnknownProperties drops unrecognized event properties silently
	// instead of failing the transform.
	IgnoreUnknownProperties bool
}

// FilterConfig drives one Filter call.
type FilterConfig struct {
	// MatchValue is compared byte-for-byte against event summaries.
	MatchValue string
}

// Anonymize parses raw, anonymizes the document and serializes it back.
func Anonymize(raw []byte, cfg AnonymizeConfig) ([]byte, error) {
	cal, err := ical.Parse(raw)
	if err != nil {
		return nil, err
	}
	out, err := AnonymizeCalendar(cal, cfg)
	if err != nil {
		return nil, err
	}
	return out.Encode(), nil
}

// Filter parses raw, removes matching events and serializes the rest back.
func Filter(raw []byte, cfg FilterConfig) ([]byte, error) {
	cal, err := ical.Parse(raw)
	if err != nil {
		return nil, err
	}
	return FilterCalendar(cal, cfg).Encode(), nil
}
