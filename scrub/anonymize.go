package scrub

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base32"
	"errors"
	"fmt"
	"strings"

	"github.com/calmux/icalmask/ical"
)

// ErrUnknownProperty is returned when an event carries a property that is on
// neither the allow-list nor the removal list and the configuration does not
// permit dropping it silently. The gate exists so unrecognized, potentially
// identifying properties from unfamiliar feeds are never leaked.
var ErrUnknownProperty = errors.New("unknown property")

// UnknownPropertyError carries the offending property name.
type UnknownPropertyError struct {
	Name string
}

func (e *UnknownPropertyError) Error() string {
	return fmt.Sprintf("unknown property %s", e.Name)
}

func (e *UnknownPropertyError) Unwrap() error {
	return ErrUnknownProperty
}

// propCalendarName is the conventional calendar display-name property.
const propCalendarName = "X-WR-CALNAME"

// propAction classifies every property an event-like component may carry.
// The set is closed and matched exhaustively below, so a new action cannot
// slip past the unknown-property gate.
type propAction int

const (
	actionKeep   propAction = iota // scheduling field, pass through
	actionRedact                   // summary, replaced by the redaction message
	actionDigest                   // unique identifier, replaced by a seeded digest
	actionRemove                   // identifying content, dropped
	actionUnknown
)

// classify maps a property name to its action. The allow-list covers the
// fields a downstream client needs to render the occupied time slots and
// nothing else.
func classify(name string) propAction {
	switch strings.ToUpper(name) {
	case "DTSTART", "DTEND", "DURATION", "DTSTAMP",
		"RRULE", "RDATE", "EXDATE", "EXRULE", "RECURRENCE-ID",
		"STATUS", "TRANSP", "SEQUENCE":
		return actionKeep
	case "SUMMARY":
		return actionRedact
	case "UID":
		return actionDigest
	case "DESCRIPTION", "LOCATION", "ATTENDEE", "ORGANIZER",
		"COMMENT", "CATEGORIES", "URL", "CONTACT", "ATTACH",
		"RELATED-TO", "CREATED", "LAST-MODIFIED", "CLASS",
		"PRIORITY", "GEO", "RESOURCES":
		return actionRemove
	default:
		return actionUnknown
	}
}

// eventLike reports whether a component kind carries a schedulable
// occurrence subject to anonymization.
func eventLike(c *ical.Component) bool {
	return c.Is(ical.KindEvent) || c.Is(ical.KindTodo) || c.Is(ical.KindJournal)
}

// AnonymizeCalendar produces a new tree with the same schedule but without
// identifying content. The input tree is not modified.
//
// Top-level handling: the calendar display name is forced to
// cfg.CalendarName, timezone definitions pass through untouched (clients
// need them to localize DTSTART/DTEND), event-like children are rewritten
// property by property, and any other child passes through once its
// properties clear the unknown-property gate.
func AnonymizeCalendar(cal *ical.Component, cfg AnonymizeConfig) (*ical.Component, error) {
	out := &ical.Component{Kind: cal.Kind}

	named := false
	for _, p := range cal.Props {
		if strings.EqualFold(p.Name, propCalendarName) {
			out.Props = append(out.Props, ical.ContentLine{Name: p.Name, Value: cfg.CalendarName})
			named = true
			continue
		}
		out.Props = append(out.Props, p)
	}
	if !named {
		out.Props = append(out.Props, ical.ContentLine{Name: propCalendarName, Value: cfg.CalendarName})
	}

	for _, child := range cal.Children {
		switch {
		case eventLike(child):
			ev, err := anonymizeEvent(child, cfg)
			if err != nil {
				return nil, err
			}
			out.Children = append(out.Children, ev)
		case child.Is(ical.KindTimezone):
			out.Children = append(out.Children, child)
		default:
			if !cfg.IgnoreUnknownProperties {
				if err := gateProps(child); err != nil {
					return nil, err
				}
			}
			out.Children = append(out.Children, child)
		}
	}
	return out, nil
}

// anonymizeEvent rewrites one event-like component. Nested sub-components
// (alarms) are dropped entirely: they carry no timing of their own and often
// embed free-text reminders.
func anonymizeEvent(ev *ical.Component, cfg AnonymizeConfig) (*ical.Component, error) {
	out := &ical.Component{Kind: ev.Kind}
	for _, p := range ev.Props {
		switch classify(p.Name) {
		case actionKeep:
			out.Props = append(out.Props, p)
		case actionRedact:
			// Parameters are dropped too; ALTREP and friends can point at
			// the original text.
			out.Props = append(out.Props, ical.ContentLine{Name: p.Name, Value: cfg.RedactionMessage})
		case actionDigest:
			out.Props = append(out.Props, ical.ContentLine{Name: p.Name, Value: digestUID(p.Value, cfg.Seed)})
		case actionRemove:
			// dropped
		case actionUnknown:
			if !cfg.IgnoreUnknownProperties {
				return nil, &UnknownPropertyError{Name: p.Name}
			}
		}
	}
	return out, nil
}

// gateProps applies the unknown-property check to a component that is
// otherwise passed through unmodified.
func gateProps(c *ical.Component) error {
	for _, p := range c.Props {
		if classify(p.Name) == actionUnknown {
			return &UnknownPropertyError{Name: p.Name}
		}
	}
	return nil
}

// digestUID maps an upstream identifier to a stable anonymized one: an
// HMAC-SHA256 of the identifier keyed by the seed, truncated and base32
// encoded. The same identifier and seed always produce the same output, so
// clients see re-fetched events as updates; distinct seeds produce
// unlinkable identifiers.
func digestUID(uid, seed string) string {
	mac := hmac.New(sha256.New, []byte(seed))
	mac.Write([]byte(uid))
	sum := mac.Sum(nil)
	enc := base32.StdEncoding.WithPadding(base32.NoPadding)
	return strings.ToLower(enc.EncodeToString(sum[:20])) + "@icalmask"
}
