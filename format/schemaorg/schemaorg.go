// Package schemaorg provides a format plugin for schema.org JSON-LD.
package schemaorg

import (
	"bytes"

	"github.com/lehigh-university-libraries/doiregistry/format"
)

// Version is the schema.org version this implementation targets.
const Version = "29.4"

// MediaType is the content type of schema.org JSON-LD.
const MediaType = "application/vnd.schemaorg.ld+json"

// Context is written as @context.
const Context = "http://schema.org"

// Format implements the schema.org JSON-LD format.
type Format struct{}

// Ensure Format implements the interfaces
var (
	_ format.Format     = (*Format)(nil)
	_ format.Parser     = (*Format)(nil)
	_ format.Serializer = (*Format)(nil)
)

// Name returns the format identifier.
func (f *Format) Name() string {
	return "schemaorg"
}

// Description returns a human-readable format description.
func (f *Format) Description() string {
	return "schema.org JSON-LD (v" + Version + ")"
}

// Extensions returns file extensions associated with this format.
func (f *Format) Extensions() []string {
	return []string{"jsonld"}
}

// MediaType returns the content type used for content negotiation.
func (f *Format) MediaType() string {
	return MediaType
}

// CanParse returns true if the input looks like schema.org JSON-LD.
func (f *Format) CanParse(peek []byte) bool {
	peek = bytes.TrimSpace(peek)
	if len(peek) == 0 {
		return false
	}

	// Must be JSON
	if peek[0] != '{' && peek[0] != '[' {
		return false
	}
	if !bytes.Contains(peek, []byte(`"@context"`)) && !bytes.Contains(peek, []byte(`"@type"`)) {
		return false
	}

	// Look for schema.org patterns
	schemaOrgPatterns := [][]byte{
		[]byte(`"@context"`),
		[]byte(`"@type"`),
		[]byte(`schema.org`),
		[]byte(`"ScholarlyArticle"`),
		[]byte(`"Dataset"`),
		[]byte(`"Book"`),
		[]byte(`"Person"`),
		[]byte(`"Organization"`),
	}

	matchCount := 0
	for _, pattern := range schemaOrgPatterns {
		if bytes.Contains(peek, pattern) {
			matchCount++
		}
	}

	return matchCount >= 2
}

func init() {
	format.Register(&Format{})
}
