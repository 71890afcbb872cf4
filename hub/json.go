package hub

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Affiliation is an organizational affiliation of a creator or contributor.
type Affiliation struct {
	Name                        string `json:"name,omitempty"`
	AffiliationIdentifier       string `json:"affiliationIdentifier,omitempty"`
	AffiliationIdentifierScheme string `json:"affiliationIdentifierScheme,omitempty"`
	SchemeURI                   string `json:"schemeUri,omitempty"`
}

// UnmarshalJSON accepts the kernel-3 string form as well as the object form.
func (a *Affiliation) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return err
		}
		*a = Affiliation{Name: name}
		return nil
	}
	type alias Affiliation
	var v alias
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*a = Affiliation(v)
	return nil
}

// objectFields lists the repeated fields whose elements must be objects,
// with the label used in error messages.
var objectFields = []struct {
	key   string
	label string
}{
	{"titles", "Title"},
	{"descriptions", "Description"},
	{"subjects", "Subject"},
	{"creators", "Creator"},
	{"contributors", "Contributor"},
	{"identifiers", "Identifier"},
	{"relatedIdentifiers", "Related identifier"},
	{"relatedItems", "Related item"},
	{"fundingReferences", "Funding reference"},
	{"geoLocations", "Geolocation"},
	{"rightsList", "Rights"},
}

// MarshalJSON encodes the metadata in the DataCite JSON shape.
func (m Metadata) MarshalJSON() ([]byte, error) {
	type alias Metadata
	return json.Marshal(alias(m))
}

// UnmarshalJSON decodes DataCite JSON. Bare strings where objects are
// required are dropped and recorded as problems instead of failing the
// whole document; a string publicationYear is converted to a number.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var problems []FieldError
	for _, f := range objectFields {
		v, ok := raw[f.key]
		if !ok {
			continue
		}
		cleaned, errs := keepObjects(v, f.key, f.label)
		raw[f.key] = cleaned
		problems = append(problems, errs...)
	}

	if v, ok := raw["publicationYear"]; ok {
		year, err := coerceYear(v)
		if err != nil {
			problems = append(problems, FieldError{
				Source: "publicationYear",
				Title:  fmt.Sprintf("Publication year %s is not a valid year.", v),
			})
			delete(raw, "publicationYear")
		} else {
			raw["publicationYear"] = year
		}
	}

	if v, ok := raw["container"]; ok {
		trimmed := bytes.TrimSpace(v)
		if len(trimmed) > 0 && trimmed[0] == '"' {
			problems = append(problems, FieldError{
				Source: "container",
				Title:  fmt.Sprintf("Container '%s' should be an object instead of a string.", unquote(trimmed)),
			})
			delete(raw, "container")
		}
	}

	if v, ok := raw["types"]; ok {
		trimmed := bytes.TrimSpace(v)
		if len(trimmed) > 0 && trimmed[0] == '"' {
			problems = append(problems, FieldError{
				Source: "types",
				Title:  fmt.Sprintf("Types '%s' should be an object instead of a string.", unquote(trimmed)),
			})
			delete(raw, "types")
		}
	}

	normalized, err := json.Marshal(raw)
	if err != nil {
		return err
	}

	type alias Metadata
	var out alias
	if err := json.Unmarshal(normalized, &out); err != nil {
		return err
	}
	*m = Metadata(out)
	m.problems = problems
	return nil
}

// keepObjects drops string elements from a value that should hold objects
// (an array or a single object) and reports each one.
func keepObjects(v json.RawMessage, key, label string) (json.RawMessage, []FieldError) {
	trimmed := bytes.TrimSpace(v)
	if len(trimmed) == 0 {
		return v, nil
	}

	problem := func(s string) FieldError {
		return FieldError{
			Source: key,
			Title:  fmt.Sprintf("%s '%s' should be an object instead of a string.", label, s),
		}
	}

	switch trimmed[0] {
	case '"':
		return json.RawMessage("null"), []FieldError{problem(unquote(trimmed))}
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return v, nil
		}
		var kept []json.RawMessage
		var errs []FieldError
		for _, item := range items {
			it := bytes.TrimSpace(item)
			if len(it) > 0 && it[0] == '"' {
				errs = append(errs, problem(unquote(it)))
				continue
			}
			kept = append(kept, item)
		}
		if len(errs) == 0 {
			return v, nil
		}
		if kept == nil {
			kept = []json.RawMessage{}
		}
		out, err := json.Marshal(kept)
		if err != nil {
			return v, errs
		}
		return out, errs
	default:
		return v, nil
	}
}

func coerceYear(v json.RawMessage) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(v)
	if bytes.Equal(trimmed, []byte("null")) {
		return json.RawMessage("0"), nil
	}
	if len(trimmed) > 0 && trimmed[0] == '"' {
		s := strings.TrimSpace(unquote(trimmed))
		if s == "" {
			return json.RawMessage("0"), nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, err
		}
		return json.RawMessage(strconv.Itoa(n)), nil
	}
	var n int
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return nil, err
	}
	return trimmed, nil
}

func unquote(b []byte) string {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return string(b)
	}
	return s
}
