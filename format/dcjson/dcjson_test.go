package dcjson

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lehigh-university-libraries/doiregistry/format"
	"github.com/lehigh-university-libraries/doiregistry/hub"
)

func TestParse(t *testing.T) {
	input := `{
  "id": "https://doi.org/10.5438/4K3M-NYVG",
  "types": {"resourceTypeGeneral": "Text", "resourceType": "Blog Post"},
  "creators": {"name": "Fenner, Martin", "nameType": "Personal", "givenName": "Martin", "familyName": "Fenner",
               "nameIdentifiers": {"nameIdentifier": "https://orcid.org/0000-0003-1419-2405", "nameIdentifierScheme": "ORCID"},
               "affiliation": "DataCite"},
  "titles": [{"title": "Eating your own Dog Food"}, "Stray title"],
  "publisher": {"name": "DataCite", "publisherIdentifier": "https://ror.org/04wxnsj81", "publisherIdentifierScheme": "ROR"},
  "publicationYear": "2016",
  "descriptions": [{"description": "<p>Eating your own dog food.</p>", "descriptionType": "Abstract"}],
  "geoLocations": [{"geoLocationPoint": {"pointLatitude": "49.0850736", "pointLongitude": "-123.3300992"}}]
}`

	records, err := (&Format{}).Parse(strings.NewReader(input), format.NewParseOptions())
	require.NoError(t, err)
	require.Len(t, records, 1)
	m := records[0]

	assert.Equal(t, "10.5438/4K3M-NYVG", m.DOI)
	assert.Equal(t, 2016, m.PublicationYear)
	require.Len(t, m.Creators, 1)
	assert.Equal(t, "0000-0003-1419-2405", m.Creators[0].ORCID())
	assert.Equal(t, "DataCite", m.Creators[0].Affiliation[0].Name)

	require.Len(t, m.Titles, 1)
	assert.Equal(t, "Eating your own Dog Food", m.MainTitle())

	sp, ok := m.Publisher.Structured()
	require.True(t, ok)
	assert.Equal(t, "ROR", sp.PublisherIdentifierScheme)

	assert.Equal(t, "Eating your own dog food.", m.Abstract())
	assert.Equal(t, 49.0850736, m.GeoLocations[0].GeoLocationPoint.PointLatitude.Value)

	require.Len(t, m.Problems(), 1)
	assert.Equal(t, "titles", m.Problems()[0].Source)
	assert.Equal(t, "Title 'Stray title' should be an object instead of a string.", m.Problems()[0].Title)
}

func TestParseArray(t *testing.T) {
	input := `[{"doi": "10.5072/one"}, {"doi": "10.5072/two"}]`
	records, err := (&Format{}).Parse(strings.NewReader(input), nil)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "10.5072/two", records[1].DOI)
}

func TestSerializeRoundTrip(t *testing.T) {
	m := &hub.Metadata{
		DOI:             "10.5072/JSON",
		SchemaVersion:   hub.NamespaceKernel4,
		Creators:        hub.List[hub.Creator]{hub.PersonFromParts("Ada", "Lovelace")},
		Titles:          hub.List[hub.Title]{{Title: "Notes"}},
		Publisher:       hub.PlainPublisher("Example"),
		PublicationYear: 1843,
		GeoLocations: hub.List[hub.GeoLocation]{{
			GeoLocationBox: &hub.GeoLocationBox{
				WestBoundLongitude: hub.Deg(-10), EastBoundLongitude: hub.Deg(10),
				SouthBoundLatitude: hub.Deg(-5), NorthBoundLatitude: hub.Deg(5.5),
			},
		}},
	}

	var buf bytes.Buffer
	require.NoError(t, (&Format{}).Serialize(&buf, []*hub.Metadata{m}, nil))
	assert.Contains(t, buf.String(), `"publisher": "Example"`)

	records, err := (&Format{}).Parse(&buf, nil)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, m, records[0])
}

func TestSerializeRejectsOldSchema(t *testing.T) {
	opts := format.NewSerializeOptions()
	opts.SchemaVersion = hub.NamespaceKernel3
	err := (&Format{}).Serialize(&bytes.Buffer{}, []*hub.Metadata{{DOI: "10.5072/x"}}, opts)

	var unsupported *hub.UnsupportedSchemaError
	require.True(t, errors.As(err, &unsupported))
}

func TestCanParse(t *testing.T) {
	f := &Format{}
	assert.True(t, f.CanParse([]byte(`{"doi": "10.5072/x", "titles": []}`)))
	assert.False(t, f.CanParse([]byte(`{"@context": "http://schema.org", "@type": "Dataset"}`)))
	assert.False(t, f.CanParse([]byte(`<resource/>`)))
}
