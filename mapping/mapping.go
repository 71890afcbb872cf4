// Package mapping provides the controlled vocabularies that drive relation
// classification and metadata validation.
package mapping

import (
	"fmt"
	"slices"
	"strings"
)

// Vocabulary is one complete set of classification rules.
type Vocabulary struct {
	// Name is the vocabulary identifier
	Name string `yaml:"name" json:"name"`

	// Description provides human-readable documentation
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Families lists relation families in precedence order.
	Families []Family `yaml:"families" json:"families"`

	// Relations maps an event relation type id to the family it falls in,
	// depending on whether the aggregated DOI is the event's subject or object.
	Relations map[string]RelationRule `yaml:"relations" json:"relations"`

	// Counters maps usage relation types to the counter they feed.
	Counters map[string]string `yaml:"counters" json:"counters"`

	// ContributorTypes are the contributorType values per schema generation.
	ContributorTypes ContributorTypes `yaml:"contributor_types" json:"contributor_types"`

	// NameTypes are the accepted nameType values (case-sensitive).
	NameTypes []string `yaml:"name_types" json:"name_types"`
}

// Family is a group of relations aggregated together.
type Family struct {
	Name string `yaml:"name" json:"name"`

	// Exclusive families drop identifiers claimed by any earlier family.
	Exclusive bool `yaml:"exclusive,omitempty" json:"exclusive,omitempty"`

	// Bucket is the time-series granularity: "year" or "month".
	Bucket string `yaml:"bucket,omitempty" json:"bucket,omitempty"`
}

// RelationRule places a relation type into a family by direction.
type RelationRule struct {
	Subject string `yaml:"subject" json:"subject"`
	Object  string `yaml:"object" json:"object"`
}

// ContributorTypes holds the current enumeration and values that only the
// older schema generation allowed.
type ContributorTypes struct {
	Supported []string `yaml:"supported" json:"supported"`
	Legacy    []string `yaml:"legacy" json:"legacy"`
}

// FamilyNames returns the family names in precedence order.
func (v *Vocabulary) FamilyNames() []string {
	names := make([]string, 0, len(v.Families))
	for _, f := range v.Families {
		names = append(names, f.Name)
	}
	return names
}

// Family returns the family with the given name.
func (v *Vocabulary) Family(name string) (Family, bool) {
	for _, f := range v.Families {
		if f.Name == name {
			return f, true
		}
	}
	return Family{}, false
}

// Classify returns the family of a relation for the given direction.
// ok is false for relation types the vocabulary does not know.
func (v *Vocabulary) Classify(relationTypeID string, asSubject bool) (string, bool) {
	rule, ok := v.Relations[strings.ToLower(relationTypeID)]
	if !ok {
		return "", false
	}
	if asSubject {
		return rule.Subject, rule.Subject != ""
	}
	return rule.Object, rule.Object != ""
}

// Counter returns the usage counter fed by a relation type.
func (v *Vocabulary) Counter(relationTypeID string) (string, bool) {
	c, ok := v.Counters[strings.ToLower(relationTypeID)]
	return c, ok
}

// SupportsContributorType reports whether t is valid in the current schema.
func (v *Vocabulary) SupportsContributorType(t string) bool {
	return slices.Contains(v.ContributorTypes.Supported, t)
}

// LegacyContributorType reports whether t was only valid in older schemas.
func (v *Vocabulary) LegacyContributorType(t string) bool {
	return slices.Contains(v.ContributorTypes.Legacy, t)
}

// ValidNameType reports whether t is an accepted nameType.
func (v *Vocabulary) ValidNameType(t string) bool {
	return slices.Contains(v.NameTypes, t)
}

// WithPrecedence returns a copy whose families follow the given order.
// Families not named keep their relative order after the named ones.
func (v *Vocabulary) WithPrecedence(order []string) (*Vocabulary, error) {
	out := *v
	out.Families = make([]Family, 0, len(v.Families))
	seen := make(map[string]bool)
	for _, name := range order {
		f, ok := v.Family(name)
		if !ok {
			return nil, fmt.Errorf("unknown relation family %q", name)
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		out.Families = append(out.Families, f)
	}
	for _, f := range v.Families {
		if !seen[f.Name] {
			out.Families = append(out.Families, f)
		}
	}
	return &out, nil
}

// Check reports rules that point at families the vocabulary does not define.
func (v *Vocabulary) Check() error {
	known := make(map[string]bool)
	for _, f := range v.Families {
		known[f.Name] = true
	}
	for rt, rule := range v.Relations {
		for _, fam := range []string{rule.Subject, rule.Object} {
			if fam != "" && !known[fam] {
				return fmt.Errorf("relation %q refers to unknown family %q", rt, fam)
			}
		}
	}
	return nil
}
