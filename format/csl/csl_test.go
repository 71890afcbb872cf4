package csl

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/lehigh-university-libraries/doiregistry/hub"
)

func TestParse(t *testing.T) {
	input := `{
  "type": "article-journal",
  "id": "https://doi.org/10.7554/elife.01567",
  "title": "Automated quantitative histology",
  "author": [{"family": "Sankar", "given": "Martial"}, {"literal": "eLife Sciences"}],
  "issued": {"date-parts": [["2014", 2, 11]]},
  "container-title": "eLife",
  "volume": 3,
  "page": "e01567",
  "ISSN": "2050-084X",
  "publisher": "eLife Sciences Publications, Ltd",
  "copyright": "CC-BY"
}`

	records, err := (&Format{}).Parse(strings.NewReader(input), nil)
	require.NoError(t, err)
	require.Len(t, records, 1)
	m := records[0]

	assert.Equal(t, "10.7554/elife.01567", m.DOI)
	assert.Equal(t, "JournalArticle", m.Types.ResourceTypeGeneral)
	assert.Equal(t, "Sankar, Martial", m.Creators[0].Name)
	assert.True(t, m.Creators[1].IsOrganization())
	assert.Equal(t, 2014, m.PublicationYear)
	assert.Equal(t, "2014-02-11", m.DateOf(hub.DateIssued))

	c := hub.DeriveContainer(m)
	require.NotNil(t, c)
	assert.Equal(t, "eLife", c.Title)
	assert.Equal(t, "3", c.Volume)
	assert.Equal(t, "e01567", c.FirstPage)
	assert.Equal(t, "Journal", c.Type)
}

func TestSerialize(t *testing.T) {
	m := &hub.Metadata{
		DOI:             "10.5061/DRYAD.8515",
		Types:           &hub.Types{ResourceTypeGeneral: "Dataset"},
		Creators:        hub.List[hub.Creator]{hub.PersonFromParts("Benjamin", "Ollomo")},
		Titles:          hub.List[hub.Title]{{Title: "Data from: A new malaria agent"}},
		Publisher:       hub.PlainPublisher("Dryad"),
		PublicationYear: 2011,
	}

	var buf bytes.Buffer
	require.NoError(t, (&Format{}).Serialize(&buf, []*hub.Metadata{m}, nil))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "dataset", got["type"])
	assert.Equal(t, "https://doi.org/10.5061/dryad.8515", got["id"])
	assert.Equal(t, "10.5061/DRYAD.8515", got["DOI"])
	assert.Equal(t, map[string]any{"date-parts": []any{[]any{2011.0}}}, got["issued"])
}

func TestRoundTrip(t *testing.T) {
	general := []string{"Dataset", "Software", "JournalArticle", "Book", "Report"}
	word := rapid.StringMatching(`[A-Z][a-z]{1,8}`)

	rapid.Check(t, func(rt *rapid.T) {
		g := rapid.SampledFrom(general).Draw(rt, "general")
		year := rapid.IntRange(1900, 2030).Draw(rt, "year")

		types := &hub.Types{ResourceTypeGeneral: g}
		if rapid.Bool().Draw(rt, "citeproc") {
			types.Citeproc = hub.TypesFor(g, "").Citeproc
		}
		publisher := hub.PlainPublisher(word.Draw(rt, "publisher"))
		if rapid.Bool().Draw(rt, "structured") {
			publisher = hub.NewStructuredPublisher(hub.StructuredPublisher{
				Name:                      word.Draw(rt, "publisherName"),
				PublisherIdentifier:       "https://ror.org/" + rapid.StringMatching(`0[a-z0-9]{8}`).Draw(rt, "ror"),
				PublisherIdentifierScheme: "ROR",
			})
		}

		m := &hub.Metadata{
			DOI:             rapid.StringMatching(`10\.[0-9]{4}/[A-Z0-9.]{1,12}`).Draw(rt, "doi"),
			Types:           types,
			Creators:        hub.List[hub.Creator]{hub.PersonFromParts(word.Draw(rt, "given"), word.Draw(rt, "family"))},
			Titles:          hub.List[hub.Title]{{Title: rapid.StringMatching(`[A-Za-z][A-Za-z ]{0,30}[a-z]`).Draw(rt, "title")}},
			Publisher:       publisher,
			PublicationYear: year,
			GeoLocations: hub.List[hub.GeoLocation]{{
				GeoLocationPoint: &hub.GeoLocationPoint{
					PointLongitude: hub.Deg(float64(rapid.IntRange(-18000, 18000).Draw(rt, "lon")) / 100),
					PointLatitude:  hub.Deg(float64(rapid.IntRange(-9000, 9000).Draw(rt, "lat")) / 100),
				},
			}},
			RelatedIdentifiers: hub.List[hub.RelatedIdentifier]{{
				RelatedIdentifier:     rapid.StringMatching(`10\.[0-9]{4}/[a-z0-9]{1,8}`).Draw(rt, "related"),
				RelatedIdentifierType: "DOI",
				RelationType:          rapid.SampledFrom([]string{"IsPartOf", "References", "IsSupplementTo"}).Draw(rt, "relation"),
			}},
		}
		if rapid.Bool().Draw(rt, "issued") {
			month := rapid.IntRange(1, 12).Draw(rt, "month")
			m.Dates = hub.List[hub.Date]{{Date: hub.FormatDateParts([]int{year, month}, "-"), DateType: hub.DateIssued}}
		}

		var buf bytes.Buffer
		if err := (&Format{}).Serialize(&buf, []*hub.Metadata{m}, nil); err != nil {
			rt.Fatalf("Serialize failed: %v", err)
		}
		records, err := (&Format{}).Parse(&buf, nil)
		if err != nil {
			rt.Fatalf("Parse failed: %v", err)
		}
		assert.Equal(rt, m, records[0])
	})
}

func TestRoundTripKeepsDataCiteFields(t *testing.T) {
	input := `{
  "doi": "10.5072/geo-1",
  "titles": [{"title": "Sediment cores"}],
  "creators": [{"name": "Garcia, Sofia", "nameType": "Personal", "givenName": "Sofia", "familyName": "Garcia"}],
  "publisher": {"name": "P", "publisherIdentifier": "https://ror.org/012345678", "publisherIdentifierScheme": "ROR"},
  "publicationYear": 2024,
  "types": {"resourceTypeGeneral": "Dataset"},
  "geoLocations": [
    {"geoLocationPoint": {"pointLongitude": "+123.", "pointLatitude": 60.2312}},
    {"geoLocationBox": {"westBoundLongitude": -10, "eastBoundLongitude": 10, "southBoundLatitude": -5, "northBoundLatitude": 5}}
  ],
  "relatedIdentifiers": [{"relatedIdentifier": "10.5072/collection", "relatedIdentifierType": "DOI", "relationType": "IsPartOf"}]
}`
	var m hub.Metadata
	require.NoError(t, json.Unmarshal([]byte(input), &m))

	var buf bytes.Buffer
	require.NoError(t, (&Format{}).Serialize(&buf, []*hub.Metadata{&m}, nil))
	assert.True(t, (&Format{}).CanParse(buf.Bytes()), buf.String())

	records, err := (&Format{}).Parse(&buf, nil)
	require.NoError(t, err)
	got := records[0]

	assert.Equal(t, m.Types, got.Types)
	assert.Equal(t, 2024, got.PublicationYear)
	assert.Empty(t, got.Dates)
	assert.Equal(t, m.GeoLocations, got.GeoLocations)
	assert.Equal(t, m.RelatedIdentifiers, got.RelatedIdentifiers)
	sp, ok := got.Publisher.Structured()
	require.True(t, ok)
	assert.Equal(t, "ROR", sp.PublisherIdentifierScheme)
	require.Len(t, got.GeoLocations, 2)
	assert.Equal(t, 123.0, got.GeoLocations[0].GeoLocationPoint.PointLongitude.Value)
	require.Len(t, got.RelatedIdentifiers, 1)
	assert.Equal(t, "IsPartOf", got.RelatedIdentifiers[0].RelationType)
	assert.Empty(t, got.RelatedItems, "the container comes from the related identifier, not a new item")
}

func TestCanParse(t *testing.T) {
	f := &Format{}
	assert.True(t, f.CanParse([]byte(`{"type": "dataset", "title": "x", "author": []}`)))
	assert.False(t, f.CanParse([]byte(`{"types": {"resourceTypeGeneral": "Dataset"}, "titles": [], "container": {"type": "Journal", "title": "x"}}`)))
	assert.False(t, f.CanParse([]byte(`{"@context": "http://schema.org", "@type": "Dataset", "author": []}`)))
}
