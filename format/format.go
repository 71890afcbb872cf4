// Package format defines the interface for metadata format plugins.
package format

import (
	"io"

	"github.com/lehigh-university-libraries/doiregistry/hub"
	"github.com/lehigh-university-libraries/doiregistry/mapping"
)

// Format defines the interface that all format plugins must implement.
type Format interface {
	// Name returns the format identifier (e.g., "datacite", "bibtex")
	Name() string

	// Description returns a human-readable format description
	Description() string

	// Extensions returns file extensions associated with this format
	Extensions() []string

	// MediaType returns the content type used for content negotiation
	MediaType() string

	// CanParse returns true if this format can parse the given input
	CanParse(peek []byte) bool
}

// Parser is a format that can parse input into canonical metadata.
type Parser interface {
	Format

	// Parse reads input and returns one Metadata per record found.
	// Options is format-specific configuration.
	Parse(r io.Reader, opts *ParseOptions) ([]*hub.Metadata, error)
}

// Serializer is a format that can write canonical metadata to output.
type Serializer interface {
	Format

	// Serialize writes the records to the output.
	// Options is format-specific configuration.
	Serialize(w io.Writer, records []*hub.Metadata, opts *SerializeOptions) error
}

// UnsupportedSchemaError is returned for DataCite schema versions that can
// no longer be read or written.
type UnsupportedSchemaError = hub.UnsupportedSchemaError

// ParseOptions contains options for parsing.
type ParseOptions struct {
	// Vocabulary supplies enumerations; nil uses mapping.Default()
	Vocabulary *mapping.Vocabulary

	// StripHTML removes HTML from text fields
	StripHTML bool

	// SourceName is an identifier for the source (for error messages)
	SourceName string
}

// SerializeOptions contains options for serialization.
type SerializeOptions struct {
	// SchemaVersion is the target DataCite schema; empty means the current
	// kernel-4 version.
	SchemaVersion string

	// Vocabulary supplies enumerations; nil uses mapping.Default()
	Vocabulary *mapping.Vocabulary

	// Pretty enables pretty-printing (for JSON/XML formats)
	Pretty bool
}

// NewParseOptions creates ParseOptions with defaults.
func NewParseOptions() *ParseOptions {
	return &ParseOptions{
		StripHTML: true,
	}
}

// NewSerializeOptions creates SerializeOptions with defaults.
func NewSerializeOptions() *SerializeOptions {
	return &SerializeOptions{
		Pretty: true,
	}
}

// VocabularyOf returns the vocabulary to use for the given options.
func (o *ParseOptions) VocabularyOf() *mapping.Vocabulary {
	if o == nil || o.Vocabulary == nil {
		return mapping.Default()
	}
	return o.Vocabulary
}

// VocabularyOf returns the vocabulary to use for the given options.
func (o *SerializeOptions) VocabularyOf() *mapping.Vocabulary {
	if o == nil || o.Vocabulary == nil {
		return mapping.Default()
	}
	return o.Vocabulary
}
