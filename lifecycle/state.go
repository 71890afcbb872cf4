// Package lifecycle implements the DOI state machine as a pure function.
//
// A DOI starts in draft, becomes registered once it has a resolvable URL and
// findable once its metadata is complete. Findable records can be hidden back
// to registered. Flagged and broken are side states reachable from registered.
package lifecycle

import (
	"fmt"
	"strings"
)

// State is a DOI lifecycle state.
type State string

const (
	Draft      State = "draft"
	Registered State = "registered"
	Findable   State = "findable"
	Flagged    State = "flagged"
	Broken     State = "broken"
)

// States lists every state in lifecycle order.
var States = []State{Draft, Registered, Findable, Flagged, Broken}

// ParseState converts a stored or user-supplied state name.
func ParseState(s string) (State, error) {
	st := State(strings.ToLower(strings.TrimSpace(s)))
	if st == "" {
		return Draft, nil
	}
	if !st.Valid() {
		return "", fmt.Errorf("unknown state %q", s)
	}
	return st, nil
}

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	switch s {
	case Draft, Registered, Findable, Flagged, Broken:
		return true
	}
	return false
}

// Active is true exactly when the DOI is findable.
func (s State) Active() bool {
	return s == Findable
}

func (s State) String() string {
	return string(s)
}

// Event names a requested transition.
type Event string

const (
	Start     Event = "start"
	Register  Event = "register"
	Publish   Event = "publish"
	Hide      Event = "hide"
	Flag      Event = "flag"
	LinkCheck Event = "link_check"
)

// Events lists every event the machine understands.
var Events = []Event{Start, Register, Publish, Hide, Flag, LinkCheck}

// ParseEvent accepts event names as sent by API clients. "link-check" and
// "linkCheck" are accepted as spellings of link_check.
func ParseEvent(s string) (Event, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	normalized = strings.ReplaceAll(normalized, "-", "_")
	if normalized == "linkcheck" {
		normalized = string(LinkCheck)
	}
	ev := Event(normalized)
	for _, known := range Events {
		if ev == known {
			return ev, nil
		}
	}
	return "", fmt.Errorf("unknown event %q", s)
}

func (e Event) String() string {
	return string(e)
}
