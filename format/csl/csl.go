// Package csl provides a format plugin for CSL-JSON (Citation Style Language),
// the citeproc input format.
package csl

import (
	"bytes"

	"github.com/lehigh-university-libraries/doiregistry/format"
)

// Version documents the CSL specification this implementation targets.
const Version = "1.0.2"

// MediaType is the content type of CSL-JSON.
const MediaType = "application/vnd.citationstyles.csl+json"

// Format implements the CSL-JSON format.
type Format struct{}

// Ensure Format implements the interfaces
var (
	_ format.Parser     = (*Format)(nil)
	_ format.Serializer = (*Format)(nil)
)

// Name returns the format identifier.
func (f *Format) Name() string {
	return "csl"
}

// Description returns a human-readable format description.
func (f *Format) Description() string {
	return "CSL-JSON (Citation Style Language v" + Version + ")"
}

// Extensions returns file extensions associated with this format.
func (f *Format) Extensions() []string {
	return []string{"json", "csl"}
}

// MediaType returns the content type used for content negotiation.
func (f *Format) MediaType() string {
	return MediaType
}

// CanParse returns true if the input looks like CSL-JSON. DataCite JSON and
// JSON-LD share some keys, so their markers rule the input out.
func (f *Format) CanParse(peek []byte) bool {
	peek = bytes.TrimSpace(peek)
	if len(peek) == 0 {
		return false
	}

	// CSL-JSON starts with [ or { and contains type field
	if peek[0] != '[' && peek[0] != '{' {
		return false
	}
	if !bytes.Contains(peek, []byte(`"type"`)) {
		return false
	}

	// the custom block is last and may nest DataCite keys
	head := peek
	if i := bytes.Index(peek, []byte(`"custom"`)); i >= 0 {
		head = peek[:i]
	}
	for _, marker := range [][]byte{
		[]byte(`"@context"`),
		[]byte(`"@type"`),
		[]byte(`"creators"`),
		[]byte(`"titles"`),
		[]byte(`"types"`),
	} {
		if bytes.Contains(head, marker) {
			return false
		}
	}

	patterns := [][]byte{
		[]byte(`"author"`),
		[]byte(`"issued"`),
		[]byte(`"container-title"`),
		[]byte(`"DOI"`),
		[]byte(`"title"`),
	}

	matchCount := 0
	for _, pattern := range patterns {
		if bytes.Contains(peek, pattern) {
			matchCount++
		}
	}

	return matchCount >= 2
}

func init() {
	format.Register(&Format{})
}
