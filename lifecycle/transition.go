package lifecycle

import (
	"fmt"
	"slices"
	"strings"

	"github.com/lehigh-university-libraries/doiregistry/hub"
)

// Rejection codes.
const (
	CodeInvalidTransition = "invalid_transition"
	CodeURLMissing        = "url_missing"
	CodeTestPrefix        = "test_prefix"
	CodeValidationFailed  = "validation_failed"
)

// Rejection explains why a transition was refused.
type Rejection struct {
	Code    string           `json:"code"`
	Message string           `json:"message"`
	Errors  []hub.FieldError `json:"errors,omitempty"`
}

func (r *Rejection) Error() string {
	if len(r.Errors) == 0 {
		return r.Message
	}
	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		msgs = append(msgs, e.Error())
	}
	return fmt.Sprintf("%s: %s", r.Message, strings.Join(msgs, "; "))
}

// Guard is everything a transition may inspect besides the current state.
type Guard struct {
	// DOI is used for the test prefix check and error attribution.
	DOI string
	URL string

	// TestPrefixes overrides hub.DefaultTestPrefix.
	TestPrefixes []string

	// Metadata is validated for findable on publish.
	Metadata       *hub.Metadata
	SchemaVersion  string
	ExemptCreators bool

	// Reason is recorded when hiding.
	Reason string
}

// Result is the outcome of Transition. On rejection To equals From.
type Result struct {
	From      State      `json:"from"`
	To        State      `json:"to"`
	Event     Event      `json:"event"`
	Reason    string     `json:"reason,omitempty"`
	Rejection *Rejection `json:"rejection,omitempty"`
}

// Rejected reports whether the transition was refused.
func (r Result) Rejected() bool {
	return r.Rejection != nil
}

// Changed reports whether the state moved.
func (r Result) Changed() bool {
	return r.From != r.To
}

// Active is the active flag after the transition.
func (r Result) Active() bool {
	return r.To.Active()
}

type rule struct {
	from      []State // empty means any state
	to        State
	needsURL  bool
	sandboxed bool // test prefix DOIs stay in draft
	findable  bool // metadata must validate for findable
}

var rules = map[Event]rule{
	Start:     {to: Draft},
	Register:  {from: []State{Draft}, to: Registered, needsURL: true, sandboxed: true},
	Publish:   {from: []State{Draft, Registered}, to: Findable, needsURL: true, sandboxed: true, findable: true},
	Hide:      {from: []State{Findable}, to: Registered},
	Flag:      {from: []State{Registered}, to: Flagged},
	LinkCheck: {from: []State{Registered}, to: Broken},
}

// Transition computes the state that event ev moves a DOI to. It never
// fails: a refused transition returns a Result whose To equals From and
// whose Rejection says why.
func Transition(from State, ev Event, g Guard) Result {
	res := Result{From: from, To: from, Event: ev}

	r, ok := rules[ev]
	if !ok {
		res.Rejection = &Rejection{
			Code:    CodeInvalidTransition,
			Message: fmt.Sprintf("unknown event %q", ev),
		}
		return res
	}
	if len(r.from) > 0 && !slices.Contains(r.from, from) {
		res.Rejection = &Rejection{
			Code:    CodeInvalidTransition,
			Message: fmt.Sprintf("cannot %s a DOI in state %s", ev, from),
		}
		return res
	}
	if r.needsURL && strings.TrimSpace(g.URL) == "" {
		res.Rejection = &Rejection{
			Code:    CodeURLMissing,
			Message: "URL can't be blank.",
		}
		return res
	}
	if r.sandboxed && hub.IsTestPrefix(hub.PrefixOf(g.DOI), g.TestPrefixes) {
		res.Rejection = &Rejection{
			Code:    CodeTestPrefix,
			Message: fmt.Sprintf("DOI %s uses a test prefix and stays in draft", g.DOI),
		}
		return res
	}
	if r.findable {
		m := g.Metadata
		if m == nil {
			m = &hub.Metadata{DOI: g.DOI, URL: g.URL}
		} else if m.URL == "" || m.DOI == "" {
			m = m.Clone()
			if m.URL == "" {
				m.URL = g.URL
			}
			if m.DOI == "" {
				m.DOI = g.DOI
			}
		}
		result := hub.Validate(m, hub.ValidationOptions{
			UID:            g.DOI,
			Target:         hub.TargetFindable,
			SchemaVersion:  g.SchemaVersion,
			ExemptCreators: g.ExemptCreators,
		})
		if !result.IsValid() {
			res.Rejection = &Rejection{
				Code:    CodeValidationFailed,
				Message: "metadata is not valid for findable",
				Errors:  result.Errors,
			}
			return res
		}
	}

	res.To = r.to
	if ev == Hide {
		res.Reason = strings.TrimSpace(g.Reason)
	}
	return res
}

// Allowed lists the events that can leave state s, ignoring guards.
func Allowed(s State) []Event {
	var out []Event
	for _, ev := range Events {
		r := rules[ev]
		if len(r.from) == 0 || slices.Contains(r.from, s) {
			out = append(out, ev)
		}
	}
	return out
}
