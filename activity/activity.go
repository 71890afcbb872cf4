// Package activity records the audit trail of DOI changes.
//
// An Activity is written whenever a tracked attribute of a DOI changes,
// including its state. Activities are append-only.
package activity

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/lehigh-university-libraries/doiregistry/hub"
)

// Action is the kind of change an activity records.
type Action string

const (
	ActionCreate  Action = "create"
	ActionUpdate  Action = "update"
	ActionDestroy Action = "destroy"
)

// TrackedAttributes are the attributes whose changes are audited, in the
// order they are reported.
var TrackedAttributes = []string{
	"doi",
	"url",
	"creators",
	"contributors",
	"titles",
	"publisher",
	"publicationYear",
	"types",
	"descriptions",
	"container",
	"sizes",
	"formats",
	"version",
	"language",
	"dates",
	"identifiers",
	"relatedIdentifiers",
	"relatedItems",
	"fundingReferences",
	"geoLocations",
	"rightsList",
	"subjects",
	"schemaVersion",
	"contentUrl",
	"landingPage",
	"state",
	"reason",
}

// Activity is one audit entry.
type Activity struct {
	ID        uuid.UUID         `json:"id"`
	DOI       string            `json:"doi"`
	RequestID string            `json:"requestUuid,omitempty"`
	Action    Action            `json:"action"`
	Changes   map[string]Change `json:"changes"`
	Actor     string            `json:"actor,omitempty"`
	Version   int               `json:"version"`
	Created   time.Time         `json:"created"`
}

// Change holds the JSON encoding of an attribute before and after. Old is
// null for created attributes and New is null for removed ones.
type Change struct {
	Old json.RawMessage `json:"old"`
	New json.RawMessage `json:"new"`
}

// New builds an activity with a fresh id.
func New(doi string, action Action, changes map[string]Change, now time.Time) *Activity {
	if changes == nil {
		changes = map[string]Change{}
	}
	return &Activity{
		ID:      uuid.New(),
		DOI:     doi,
		Action:  action,
		Changes: changes,
		Created: now.UTC(),
	}
}

// Subject is the view of a DOI the audit log compares.
type Subject struct {
	DOI           string
	URL           string
	State         string
	Reason        string
	SchemaVersion string
	ContentURLs   []string
	LandingPage   any
	Metadata      *hub.Metadata
}

// Attributes returns the JSON encoding of every tracked attribute that is
// set on s. Attributes on the subject win over those in its metadata.
func Attributes(s Subject) (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage)
	if s.Metadata != nil {
		data, err := json.Marshal(s.Metadata)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, &out); err != nil {
			return nil, err
		}
	}

	set := func(key string, v any) error {
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		out[key] = data
		return nil
	}
	if s.DOI != "" {
		if err := set("doi", s.DOI); err != nil {
			return nil, err
		}
	}
	if s.URL != "" {
		if err := set("url", s.URL); err != nil {
			return nil, err
		}
	}
	if s.State != "" {
		if err := set("state", s.State); err != nil {
			return nil, err
		}
	}
	if s.Reason != "" {
		if err := set("reason", s.Reason); err != nil {
			return nil, err
		}
	}
	if s.SchemaVersion != "" {
		if err := set("schemaVersion", s.SchemaVersion); err != nil {
			return nil, err
		}
	}
	if len(s.ContentURLs) > 0 {
		if err := set("contentUrl", s.ContentURLs); err != nil {
			return nil, err
		}
	}
	if s.LandingPage != nil {
		if err := set("landingPage", s.LandingPage); err != nil {
			return nil, err
		}
	}

	tracked := make(map[string]json.RawMessage, len(out))
	for _, key := range TrackedAttributes {
		if v, ok := out[key]; ok {
			tracked[key] = v
		}
	}
	return tracked, nil
}

// Diff compares two subjects and returns the tracked attributes that
// differ. A nil before yields every attribute set on after.
func Diff(before, after *Subject) (map[string]Change, error) {
	var old, cur map[string]json.RawMessage
	var err error
	if before != nil {
		if old, err = Attributes(*before); err != nil {
			return nil, err
		}
	}
	if after != nil {
		if cur, err = Attributes(*after); err != nil {
			return nil, err
		}
	}

	changes := make(map[string]Change)
	for _, key := range TrackedAttributes {
		o, hadOld := old[key]
		n, hasNew := cur[key]
		if !hadOld && !hasNew {
			continue
		}
		if hadOld && hasNew && bytes.Equal(o, n) {
			continue
		}
		c := Change{Old: json.RawMessage("null"), New: json.RawMessage("null")}
		if hadOld {
			c.Old = o
		}
		if hasNew {
			c.New = n
		}
		changes[key] = c
	}
	return changes, nil
}

// ChangedKeys returns the changed attribute names in tracked order.
func ChangedKeys(changes map[string]Change) []string {
	keys := make([]string, 0, len(changes))
	for _, key := range TrackedAttributes {
		if _, ok := changes[key]; ok {
			keys = append(keys, key)
		}
	}
	return keys
}
