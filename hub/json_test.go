package hub

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListAcceptsSingleValue(t *testing.T) {
	var m Metadata
	require.NoError(t, json.Unmarshal([]byte(`{
  "titles": {"title": "One"},
  "sizes": "12 MB",
  "formats": ["text/csv", "application/json"]
}`), &m))

	assert.Equal(t, List[Title]{{Title: "One"}}, m.Titles)
	assert.Equal(t, List[string]{"12 MB"}, m.Sizes)
	assert.Equal(t, List[string]{"text/csv", "application/json"}, m.Formats)
	assert.Equal(t, "One", m.Titles.First().Title)

	var empty List[Title]
	assert.Equal(t, Title{}, empty.First())
}

func TestPublisherJSON(t *testing.T) {
	var plain Publisher
	require.NoError(t, json.Unmarshal([]byte(`" DataCite "`), &plain))
	assert.Equal(t, "DataCite", plain.Name())
	_, ok := plain.Structured()
	assert.False(t, ok)

	out, err := json.Marshal(plain)
	require.NoError(t, err)
	assert.JSONEq(t, `"DataCite"`, string(out))

	var structured Publisher
	require.NoError(t, json.Unmarshal([]byte(`{"name": "DataCite", "publisherIdentifier": "https://ror.org/04wxnsj81", "publisherIdentifierScheme": "ROR"}`), &structured))
	assert.Equal(t, "DataCite", structured.Name())
	sp, ok := structured.Structured()
	require.True(t, ok)
	assert.Equal(t, "https://ror.org/04wxnsj81", sp.PublisherIdentifier)

	out, err = json.Marshal(structured)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name": "DataCite", "publisherIdentifier": "https://ror.org/04wxnsj81", "publisherIdentifierScheme": "ROR"}`, string(out))

	var zero Publisher
	require.NoError(t, json.Unmarshal([]byte(`null`), &zero))
	assert.True(t, zero.IsZero())

	var bad Publisher
	assert.Error(t, json.Unmarshal([]byte(`42`), &bad))
}

func TestMetadataOmitsZeroPublisher(t *testing.T) {
	out, err := json.Marshal(Metadata{DOI: "10.5072/x"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"doi": "10.5072/x"}`, string(out))
}

func TestAffiliationString(t *testing.T) {
	var c Creator
	require.NoError(t, json.Unmarshal([]byte(`{"name": "Doe, Jane", "affiliation": ["DataCite", {"name": "ROR", "affiliationIdentifier": "https://ror.org/1"}]}`), &c))
	require.Len(t, c.Affiliation, 2)
	assert.Equal(t, Affiliation{Name: "DataCite"}, c.Affiliation[0])
	assert.Equal(t, "https://ror.org/1", c.Affiliation[1].AffiliationIdentifier)
}

func TestUnmarshalRecordsShapeProblems(t *testing.T) {
	var m Metadata
	require.NoError(t, json.Unmarshal([]byte(`{
  "doi": "10.5072/x",
  "titles": [{"title": "Kept"}, "Stray"],
  "creators": "Doe, Jane",
  "types": "Dataset",
  "container": "Journal of Things",
  "publicationYear": "2019"
}`), &m))

	assert.Equal(t, List[Title]{{Title: "Kept"}}, m.Titles)
	assert.Empty(t, m.Creators)
	assert.Nil(t, m.Types)
	assert.Nil(t, m.Container)
	assert.Equal(t, 2019, m.PublicationYear)

	sources := make([]string, 0, len(m.Problems()))
	for _, p := range m.Problems() {
		sources = append(sources, p.Source)
	}
	assert.ElementsMatch(t, []string{"titles", "creators", "types", "container"}, sources)
	assert.Contains(t, m.Problems()[0].Title, "should be an object instead of a string")
}

func TestUnmarshalInvalidYear(t *testing.T) {
	var m Metadata
	require.NoError(t, json.Unmarshal([]byte(`{"publicationYear": "next year"}`), &m))
	assert.Equal(t, 0, m.PublicationYear)
	require.Len(t, m.Problems(), 1)
	assert.Equal(t, "publicationYear", m.Problems()[0].Source)

	var blank Metadata
	require.NoError(t, json.Unmarshal([]byte(`{"publicationYear": ""}`), &blank))
	assert.Equal(t, 0, blank.PublicationYear)
	assert.Empty(t, blank.Problems())
}

func TestDegreesJSON(t *testing.T) {
	var g GeoLocation
	require.NoError(t, json.Unmarshal([]byte(`{"geoLocationPoint": {"pointLatitude": "+45.", "pointLongitude": "north"}}`), &g))
	require.NotNil(t, g.GeoLocationPoint)
	assert.True(t, g.GeoLocationPoint.PointLatitude.Valid())
	assert.Equal(t, 45.0, g.GeoLocationPoint.PointLatitude.Value)
	assert.False(t, g.GeoLocationPoint.PointLongitude.Valid())
	assert.Equal(t, "north", g.GeoLocationPoint.PointLongitude.String())

	out, err := json.Marshal(g)
	require.NoError(t, err)
	assert.JSONEq(t, `{"geoLocationPoint": {"pointLatitude": 45, "pointLongitude": "north"}}`, string(out))
}

func TestDegreesFromText(t *testing.T) {
	assert.Nil(t, DegreesFromText("  "))
	assert.Equal(t, &Degrees{Value: -0.8}, DegreesFromText("-0.8"))
	assert.Equal(t, &Degrees{Invalid: "1,5"}, DegreesFromText("1,5"))
	assert.Equal(t, "123", DegreesFromText("+123.").String())

	_, err := ParseDegrees("NaN")
	assert.Error(t, err)
}

func TestCloneAndOverlay(t *testing.T) {
	m := &Metadata{
		DOI:       "10.5072/x",
		Titles:    List[Title]{{Title: "Original"}},
		Publisher: PlainPublisher("Lehigh"),
		Language:  "en",
	}
	m.AddProblem(FieldError{Source: "titles", Title: "problem"})

	c := m.Clone()
	require.NotNil(t, c)
	assert.Equal(t, m, c)
	c.Titles[0].Title = "Changed"
	assert.Equal(t, "Original", m.MainTitle())

	m.Overlay(&Metadata{Titles: List[Title]{{Title: "Overlay"}}, PublicationYear: 2020})
	assert.Equal(t, "Overlay", m.MainTitle())
	assert.Equal(t, 2020, m.PublicationYear)
	assert.Equal(t, "Lehigh", m.Publisher.Name())
	assert.Equal(t, "en", m.Language)
	assert.Len(t, m.Problems(), 1)

	var nilMetadata *Metadata
	assert.Nil(t, nilMetadata.Clone())
}
