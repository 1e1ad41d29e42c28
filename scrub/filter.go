package scrub

import (
	"github.com/calmux/icalmask/ical"
)

// FilterCalendar produces a new tree without the event-like children whose
// summary equals cfg.MatchValue exactly, byte for byte. Everything else
// passes through unmodified: calendar properties, timezones and
// non-matching events keep their free-text content. Pair with Anonymize
// when the remaining events must be redacted too.
func FilterCalendar(cal *ical.Component, cfg FilterConfig) *ical.Component {
	out := &ical.Component{Kind: cal.Kind, Props: cal.Props}
	for _, child := range cal.Children {
		if eventLike(child) && summaryMatches(child, cfg.MatchValue) {
			continue
		}
		out.Children = append(out.Children, child)
	}
	return out
}

func summaryMatches(ev *ical.Component, match string) bool {
	summary := ev.PropValue("SUMMARY")
	return summary.IsPresent() && summary.MustGet() == match
}
