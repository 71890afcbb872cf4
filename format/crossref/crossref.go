// Package crossref provides a format plugin for Crossref XML: deposit
// batches (doi_batch) and unixref query results (doi_records).
package crossref

import (
	"bytes"

	"github.com/lehigh-university-libraries/doiregistry/format"
)

// Version documents the Crossref deposit schema this implementation targets.
const Version = "5.3.1"

// MediaType is the content type of Crossref unixref XML.
const MediaType = "application/vnd.crossref.unixref+xml"

// Namespaces written on doi_batch.
const (
	NamespaceCrossref = "http://www.crossref.org/schema/" + Version
	NamespaceJATS     = "http://www.ncbi.nlm.nih.gov/JATS1"
	NamespaceFundRef  = "http://www.crossref.org/fundref.xsd"
	NamespaceAI       = "http://www.crossref.org/AccessIndicators.xsd"
	NamespaceRel      = "http://www.crossref.org/relations.xsd"
)

// Format implements the Crossref XML format.
type Format struct{}

// Ensure Format implements the interfaces
var (
	_ format.Format     = (*Format)(nil)
	_ format.Parser     = (*Format)(nil)
	_ format.Serializer = (*Format)(nil)
)

// Name returns the format identifier.
func (f *Format) Name() string {
	return "crossref"
}

// Description returns a human-readable format description.
func (f *Format) Description() string {
	return "Crossref XML (deposit schema v" + Version + ", unixref)"
}

// Extensions returns file extensions associated with this format.
func (f *Format) Extensions() []string {
	return []string{"xml"}
}

// MediaType returns the content type used for content negotiation.
func (f *Format) MediaType() string {
	return MediaType
}

// CanParse returns true if the input looks like Crossref XML. The patterns
// are element names so DataCite XML mentioning Crossref funder ids does not
// match.
func (f *Format) CanParse(peek []byte) bool {
	peek = bytes.TrimSpace(peek)
	if len(peek) == 0 {
		return false
	}

	if peek[0] != '<' {
		return false
	}

	patterns := [][]byte{
		[]byte("<doi_batch"),
		[]byte("<doi_records"),
		[]byte("<crossref>"),
		[]byte("<crossref "),
		[]byte("crossref.org/schema/"),
	}

	for _, pattern := range patterns {
		if bytes.Contains(peek, pattern) {
			return true
		}
	}

	return false
}

func init() {
	format.Register(&Format{})
}
