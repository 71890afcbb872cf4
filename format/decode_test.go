package format_test

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lehigh-university-libraries/doiregistry/format"
	_ "github.com/lehigh-university-libraries/doiregistry/format/bibtex"
	"github.com/lehigh-university-libraries/doiregistry/format/crossref"
	_ "github.com/lehigh-university-libraries/doiregistry/format/csl"
	_ "github.com/lehigh-university-libraries/doiregistry/format/datacite"
	_ "github.com/lehigh-university-libraries/doiregistry/format/dcjson"
	_ "github.com/lehigh-university-libraries/doiregistry/format/ris"
	_ "github.com/lehigh-university-libraries/doiregistry/format/schemaorg"
)

const dataciteXML = `<?xml version="1.0" encoding="UTF-8"?>
<resource xmlns="http://datacite.org/schema/kernel-4">
  <identifier identifierType="DOI">10.5072/example-1</identifier>
  <creators>
    <creator>
      <creatorName nameType="Personal">Doe, Jane</creatorName>
      <givenName>Jane</givenName>
      <familyName>Doe</familyName>
    </creator>
  </creators>
  <titles>
    <title>Metadata Crosswalks for DOIs</title>
  </titles>
  <publisher>Lehigh University</publisher>
  <publicationYear>2023</publicationYear>
  <resourceType resourceTypeGeneral="Dataset">Survey Data</resourceType>
  <relatedIdentifiers>
    <relatedIdentifier relatedIdentifierType="ISSN" relationType="IsPartOf">2049-3630</relatedIdentifier>
  </relatedIdentifiers>
</resource>`

func TestDecodeSniffsFormat(t *testing.T) {
	d, err := format.Decode([]byte(dataciteXML), "")
	require.NoError(t, err)
	assert.Equal(t, "datacite", d.Format)
	assert.Equal(t, "10.5072/example-1", d.Metadata.DOI)
	assert.Equal(t, "http://datacite.org/schema/kernel-4", d.SchemaVersion)
	assert.Empty(t, d.Event)

	// the container is derived on every decode
	require.NotNil(t, d.Metadata.Container)
	assert.Equal(t, "2049-3630", d.Metadata.Container.Identifier)
	assert.Equal(t, "ISSN", d.Metadata.Container.IdentifierType)
}

func TestDecodeBase64(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString([]byte(dataciteXML))
	// line-wrapped base64 is accepted too
	wrapped := encoded[:40] + "\n" + encoded[40:]

	for _, input := range []string{encoded, wrapped} {
		d, err := format.Decode([]byte(input), "")
		require.NoError(t, err)
		assert.Equal(t, "datacite", d.Format)
		assert.Equal(t, "Metadata Crosswalks for DOIs", d.Metadata.MainTitle())
	}
}

func TestDecodeEnvelope(t *testing.T) {
	attrs := map[string]any{
		"event":  "publish",
		"xml":    base64.StdEncoding.EncodeToString([]byte(dataciteXML)),
		"titles": []map[string]string{{"title": "Overridden Title"}},
	}
	body, err := json.Marshal(map[string]any{"data": map[string]any{"type": "dois", "attributes": attrs}})
	require.NoError(t, err)

	d, err := format.Decode(body, "")
	require.NoError(t, err)
	assert.Equal(t, "datacite", d.Format)
	assert.Equal(t, "publish", d.Event)
	assert.Equal(t, "10.5072/example-1", d.Metadata.DOI)
	// attributes sent next to the payload win
	assert.Equal(t, "Overridden Title", d.Metadata.MainTitle())
	assert.Equal(t, 2023, d.Metadata.PublicationYear)
}

func TestDecodeEnvelopeWithoutXML(t *testing.T) {
	body := `{"data": {"type": "dois", "attributes": {
  "doi": "https://doi.org/10.5072/abc",
  "event": "register",
  "titles": [{"title": "JSON Only"}],
  "publicationYear": 2020
}}}`

	d, err := format.Decode([]byte(body), "")
	require.NoError(t, err)
	assert.Equal(t, "datacite-json", d.Format)
	assert.Equal(t, "register", d.Event)
	assert.Equal(t, "10.5072/abc", d.Metadata.DOI)
	assert.Equal(t, "JSON Only", d.Metadata.MainTitle())
}

func TestDecodeDeclaredFormat(t *testing.T) {
	deposit := `<doi_batch><body><dissertation>
  <titles><title>A Thesis</title></titles>
  <approval_date><year>2001</year></approval_date>
  <doi_data><doi>10.5072/thesis</doi></doi_data>
</dissertation></body></doi_batch>`

	for _, declared := range []string{"crossref", crossref.MediaType} {
		d, err := format.Decode([]byte(deposit), declared)
		require.NoError(t, err, declared)
		assert.Equal(t, "crossref", d.Format)
		assert.Equal(t, "A Thesis", d.Metadata.MainTitle())
	}
}

func TestDecodeErrors(t *testing.T) {
	_, err := format.Decode([]byte("   \n"), "")
	assert.True(t, errors.Is(err, format.ErrEmptyInput))

	_, err = format.Decode([]byte("hello world"), "")
	assert.Error(t, err)

	_, err = format.Decode([]byte(dataciteXML), "marcxml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown format")
}

func TestEncodeUnknownFormat(t *testing.T) {
	d, err := format.Decode([]byte(dataciteXML), "")
	require.NoError(t, err)

	_, err = format.Encode(d.Metadata, "marcxml", "")
	assert.Error(t, err)
}

func TestEncodeRejectsKernel3(t *testing.T) {
	d, err := format.Decode([]byte(dataciteXML), "")
	require.NoError(t, err)

	_, err = format.Encode(d.Metadata, "datacite", "http://datacite.org/schema/kernel-3")
	var unsupported *format.UnsupportedSchemaError
	assert.True(t, errors.As(err, &unsupported))
}

// TestConvert writes the decoded record in every format and reads it back
// through content sniffing.
func TestConvert(t *testing.T) {
	source, err := format.Decode([]byte(dataciteXML), "")
	require.NoError(t, err)

	for _, name := range []string{"bibtex", "crossref", "csl", "datacite", "datacite-json", "ris", "schemaorg"} {
		t.Run(name, func(t *testing.T) {
			out, err := format.Encode(source.Metadata, name, "")
			require.NoError(t, err)

			d, err := format.Decode(out, "")
			require.NoError(t, err, string(out))
			assert.Equal(t, name, d.Format)
			assert.True(t, strings.EqualFold("10.5072/example-1", d.Metadata.DOI), d.Metadata.DOI)
			assert.Equal(t, "Metadata Crosswalks for DOIs", d.Metadata.MainTitle())
			assert.Equal(t, 2023, d.Metadata.PublicationYear)
		})
	}
}

func TestRegistryList(t *testing.T) {
	names := format.DefaultRegistry.List()
	for _, want := range []string{"bibtex", "crossref", "csl", "datacite", "datacite-json", "ris", "schemaorg"} {
		assert.Contains(t, names, want)
	}
}
