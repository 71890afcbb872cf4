package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/lehigh-university-libraries/doiregistry/hub"
)

func publishable() Guard {
	return Guard{
		DOI: "10.5438/abcd-1234",
		URL: "https://example.org",
		Metadata: &hub.Metadata{
			DOI:             "10.5438/abcd-1234",
			URL:             "https://example.org",
			Creators:        hub.List[hub.Creator]{hub.PersonFromParts("Jane", "Doe")},
			Titles:          hub.List[hub.Title]{{Title: "Data"}},
			Publisher:       hub.PlainPublisher("Lehigh University"),
			PublicationYear: 2024,
			Types:           &hub.Types{ResourceTypeGeneral: "Dataset"},
		},
	}
}

func TestTransitionTable(t *testing.T) {
	tests := []struct {
		name     string
		from     State
		event    Event
		guard    Guard
		want     State
		rejected string
	}{
		{"start from findable", Findable, Start, Guard{}, Draft, ""},
		{"register", Draft, Register, publishable(), Registered, ""},
		{"register without url", Draft, Register, Guard{DOI: "10.5438/x"}, Draft, CodeURLMissing},
		{"register blank url", Draft, Register, Guard{DOI: "10.5438/x", URL: "  "}, Draft, CodeURLMissing},
		{"register test prefix", Draft, Register, Guard{DOI: "10.5072/x", URL: "https://example.org"}, Draft, CodeTestPrefix},
		{"register from findable", Findable, Register, publishable(), Findable, CodeInvalidTransition},
		{"publish from draft", Draft, Publish, publishable(), Findable, ""},
		{"publish from registered", Registered, Publish, publishable(), Findable, ""},
		{"publish from flagged", Flagged, Publish, publishable(), Flagged, CodeInvalidTransition},
		{"publish test prefix", Draft, Publish, Guard{DOI: "10.5072/x", URL: "https://example.org"}, Draft, CodeTestPrefix},
		{"hide", Findable, Hide, Guard{}, Registered, ""},
		{"hide from registered", Registered, Hide, Guard{}, Registered, CodeInvalidTransition},
		{"flag", Registered, Flag, Guard{}, Flagged, ""},
		{"flag draft", Draft, Flag, Guard{}, Draft, CodeInvalidTransition},
		{"link check", Registered, LinkCheck, Guard{}, Broken, ""},
		{"link check draft", Draft, LinkCheck, Guard{}, Draft, CodeInvalidTransition},
		{"unknown event", Draft, Event("explode"), Guard{}, Draft, CodeInvalidTransition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Transition(tt.from, tt.event, tt.guard)
			assert.Equal(t, tt.from, res.From)
			assert.Equal(t, tt.want, res.To)
			if tt.rejected == "" {
				assert.Nil(t, res.Rejection)
				return
			}
			require.NotNil(t, res.Rejection)
			assert.Equal(t, tt.rejected, res.Rejection.Code)
			assert.NotEmpty(t, res.Rejection.Error())
		})
	}
}

func TestPublishRequiresCreators(t *testing.T) {
	g := publishable()
	g.Metadata.Creators = nil

	res := Transition(Draft, Publish, g)
	require.True(t, res.Rejected())
	assert.Equal(t, CodeValidationFailed, res.Rejection.Code)
	require.Len(t, res.Rejection.Errors, 1)
	assert.Equal(t, "creators", res.Rejection.Errors[0].Source)
	assert.Equal(t, "10.5438/abcd-1234", res.Rejection.Errors[0].UID)
	assert.Contains(t, res.Rejection.Error(), "creators")

	g.ExemptCreators = true
	res = Transition(Draft, Publish, g)
	assert.False(t, res.Rejected())
	assert.Equal(t, Findable, res.To)
}

func TestPublishFillsURLFromGuard(t *testing.T) {
	g := publishable()
	g.Metadata.URL = ""

	res := Transition(Registered, Publish, g)
	assert.Equal(t, Findable, res.To)
	// the guard's metadata is not modified
	assert.Empty(t, g.Metadata.URL)
}

func TestCustomTestPrefixes(t *testing.T) {
	g := publishable()
	g.TestPrefixes = []string{"10.5438"}
	res := Transition(Draft, Register, g)
	assert.Equal(t, CodeTestPrefix, res.Rejection.Code)

	g.DOI = "10.5072/now-allowed"
	g.Metadata.DOI = g.DOI
	res = Transition(Draft, Register, g)
	assert.Equal(t, Registered, res.To)
}

func TestHideRecordsReason(t *testing.T) {
	res := Transition(Findable, Hide, Guard{Reason: " withdrawn by author "})
	assert.Equal(t, Registered, res.To)
	assert.Equal(t, "withdrawn by author", res.Reason)
	assert.False(t, res.Active())
	assert.True(t, res.Changed())

	// a reason on any other event is ignored
	res = Transition(Registered, Flag, Guard{Reason: "spam"})
	assert.Empty(t, res.Reason)
}

func TestActive(t *testing.T) {
	for _, s := range States {
		assert.Equal(t, s == Findable, s.Active(), s)
	}
}

func TestAllowed(t *testing.T) {
	assert.Equal(t, []Event{Start, Register, Publish}, Allowed(Draft))
	assert.Equal(t, []Event{Start, Publish, Flag, LinkCheck}, Allowed(Registered))
	assert.Equal(t, []Event{Start, Hide}, Allowed(Findable))
	assert.Equal(t, []Event{Start}, Allowed(Broken))
}

func TestParse(t *testing.T) {
	s, err := ParseState(" Findable ")
	require.NoError(t, err)
	assert.Equal(t, Findable, s)

	s, err = ParseState("")
	require.NoError(t, err)
	assert.Equal(t, Draft, s)

	_, err = ParseState("tombstoned")
	assert.Error(t, err)

	for in, want := range map[string]Event{
		"publish":    Publish,
		"link-check": LinkCheck,
		"linkCheck":  LinkCheck,
		"LINK_CHECK": LinkCheck,
	} {
		ev, err := ParseEvent(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, ev, in)
	}
	_, err = ParseEvent("show")
	assert.Error(t, err)
}

func TestTransitionProperties(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		from := rapid.SampledFrom(States).Draw(rt, "from")
		ev := rapid.SampledFrom(Events).Draw(rt, "event")
		prefix := rapid.SampledFrom([]string{"10.5072", "10.5438", "10.14454"}).Draw(rt, "prefix")
		suffix := rapid.StringMatching(`[a-z0-9]{1,8}`).Draw(rt, "suffix")
		url := rapid.SampledFrom([]string{"", " ", "https://example.org/x"}).Draw(rt, "url")
		withCreator := rapid.Bool().Draw(rt, "creator")

		doi := prefix + "/" + suffix
		m := &hub.Metadata{DOI: doi, URL: url}
		if withCreator {
			m.Creators = hub.List[hub.Creator]{{Name: "Doe, Jane"}}
		}
		g := Guard{DOI: doi, URL: url, Metadata: m}

		first := Transition(from, ev, g)
		second := Transition(from, ev, g)
		if first.To != second.To || first.Rejected() != second.Rejected() {
			rt.Fatalf("transition is not deterministic: %+v vs %+v", first, second)
		}
		if !first.To.Valid() {
			rt.Fatalf("invalid target state %q", first.To)
		}
		if first.Rejected() && first.To != from {
			rt.Fatalf("rejected transition moved %s to %s", from, first.To)
		}
		if prefix == hub.DefaultTestPrefix && from == Draft && ev != Start && first.To != Draft {
			rt.Fatalf("test prefix DOI left draft via %s", ev)
		}
		if from == Draft && ev == Register && url != "https://example.org/x" && first.To != Draft {
			rt.Fatalf("register without a URL moved to %s", first.To)
		}
		if from == Draft && ev == Register && url == "https://example.org/x" && prefix != hub.DefaultTestPrefix && first.To != Registered {
			rt.Fatalf("register with URL and real prefix stayed in %s", first.To)
		}
	})
}
