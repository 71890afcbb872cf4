// Package bibtex provides a format plugin for BibTeX bibliography entries.
package bibtex

import (
	"bytes"

	"github.com/lehigh-university-libraries/doiregistry/format"
)

// Version documents the BibTeX specification this implementation targets.
const Version = "bibtex-1988+biblatex"

// MediaType is the content type of BibTeX.
const MediaType = "application/x-bibtex"

// Format implements the BibTeX format.
type Format struct{}

// Ensure Format implements the interfaces
var (
	_ format.Parser     = (*Format)(nil)
	_ format.Serializer = (*Format)(nil)
)

// Name returns the format identifier.
func (f *Format) Name() string {
	return "bibtex"
}

// Description returns a human-readable format description.
func (f *Format) Description() string {
	return "BibTeX bibliography format"
}

// Extensions returns file extensions associated with this format.
func (f *Format) Extensions() []string {
	return []string{"bib", "bibtex"}
}

// MediaType returns the content type used for content negotiation.
func (f *Format) MediaType() string {
	return MediaType
}

// CanParse returns true if the input starts with a BibTeX entry.
func (f *Format) CanParse(peek []byte) bool {
	peek = bytes.TrimSpace(peek)
	if len(peek) == 0 || peek[0] != '@' {
		return false
	}

	bibtexPatterns := [][]byte{
		[]byte("@article"),
		[]byte("@book"),
		[]byte("@inproceedings"),
		[]byte("@misc"),
		[]byte("@phdthesis"),
		[]byte("@mastersthesis"),
		[]byte("@techreport"),
		[]byte("@incollection"),
		[]byte("@inbook"),
		[]byte("@proceedings"),
		[]byte("@unpublished"),
		[]byte("@online"),
		[]byte("@dataset"),
		[]byte("@software"),
		[]byte("@string"),
		[]byte("@preamble"),
		[]byte("@comment"),
	}

	lowerPeek := bytes.ToLower(peek)
	for _, pattern := range bibtexPatterns {
		if bytes.HasPrefix(lowerPeek, pattern) {
			return true
		}
	}

	return false
}

func init() {
	format.Register(&Format{})
}
