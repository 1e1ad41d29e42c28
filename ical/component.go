package ical

import (
	"fmt"
	"strings"

	"github.com/samber/mo"
)

// Well-known component kinds. Kind comparison is case-insensitive; these are
// the canonical spellings used on output of new components.
const (
	KindCalendar = "VCALENDAR"
	KindEvent    = "VEVENT"
	KindTodo     = "VTODO"
	KindJournal  = "VJOURNAL"
	KindTimezone = "VTIMEZONE"
	KindAlarm    = "VALARM"
)

const (
	propBegin = "BEGIN"
	propEnd   = "END"
)

// Component is a BEGIN/END-delimited block: its kind, its properties in
// document order, and its child components in document order. Order is
// preserved end-to-end so that an untouched document round-trips.
type Component struct {
	Kind     string
	Props    []ContentLine
	Children []*Component
}

// Is reports whether the component has the given kind, ignoring case.
func (c *Component) Is(kind string) bool {
	return strings.EqualFold(c.Kind, kind)
}

// Prop returns the first property with the given name (case-insensitive),
// or None when the component carries no such property.
func (c *Component) Prop(name string) mo.Option[*ContentLine] {
	for i := range c.Props {
		if strings.EqualFold(c.Props[i].Name, name) {
			return mo.Some(&c.Props[i])
		}
	}
	return mo.None[*ContentLine]()
}

// PropValue returns the value of the first property with the given name, or
// None when absent.
func (c *Component) PropValue(name string) mo.Option[string] {
	for i := range c.Props {
		if strings.EqualFold(c.Props[i].Name, name) {
			return mo.Some(c.Props[i].Value)
		}
	}
	return mo.None[string]()
}

// build assembles the component tree from a stream of content lines using
// BEGIN/END bracketing. It returns the single top-level component.
func build(scanner *lineScanner) (*Component, error) {
	root := &Component{}
	stack := []*Component{root}

	for {
		line, ok := scanner.Next()
		if !ok {
			break
		}
		if line == "" {
			continue
		}
		cl, err := parseContentLine(line)
		if err != nil {
			return nil, err
		}

		top := stack[len(stack)-1]
		switch {
		case strings.EqualFold(cl.Name, propBegin):
			if top == root && len(root.Children) > 0 {
				return nil, fmt.Errorf("%w: second BEGIN:%s after the first component closed", ErrMultipleCalendars, cl.Value)
			}
			child := &Component{Kind: cl.Value}
			top.Children = append(top.Children, child)
			stack = append(stack, child)
		case strings.EqualFold(cl.Name, propEnd):
			if top == root {
				return nil, fmt.Errorf("%w: END:%s with no open block", ErrUnbalancedBlock, cl.Value)
			}
			if !strings.EqualFold(top.Kind, cl.Value) {
				return nil, fmt.Errorf("%w: END:%s closes BEGIN:%s", ErrUnbalancedBlock, cl.Value, top.Kind)
			}
			stack = stack[:len(stack)-1]
		default:
			if top == root {
				return nil, fmt.Errorf("%w: property %s outside any component", ErrMalformedContentLine, cl.Name)
			}
			top.Props = append(top.Props, cl)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(stack) > 1 {
		return nil, fmt.Errorf("%w: %d block(s) still open, innermost %s", ErrUnterminatedBlock, len(stack)-1, stack[len(stack)-1].Kind)
	}
	if len(root.Children) == 0 {
		return nil, fmt.Errorf("%w: no component found", ErrMalformedContentLine)
	}
	return root.Children[0], nil
}

// Parse decodes a complete document into its component tree: unfold the raw
// bytes into logical lines, parse each into a content line, and bracket them
// into components. The returned component is the top-level container,
// conventionally a VCALENDAR.
func Parse(data []byte) (*Component, error) {
	return build(newLineScanner(data))
}
