package hub

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDOI(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"10.5072/ABC", "10.5072/ABC"},
		{"  10.5072/abc  ", "10.5072/abc"},
		{"https://doi.org/10.5072/Abc", "10.5072/Abc"},
		{"http://dx.doi.org/10.5072/abc", "10.5072/abc"},
		{"doi:10.5072/abc", "10.5072/abc"},
		{"https://handle.test.datacite.org/10.5072/abc", "10.5072/abc"},
		{"not a doi", "not a doi"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeDOI(tt.input), tt.input)
	}
}

func TestDOIFromURL(t *testing.T) {
	assert.Equal(t, "10.5061/DRYAD.8515", DOIFromURL("https://doi.org/10.5061/dryad.8515"))
	assert.Equal(t, "10.5061/DRYAD.8515", DOIFromURL("doi:10.5061/dryad.8515"))
	assert.Empty(t, DOIFromURL("https://example.org/record/1"))
}

func TestDOIURL(t *testing.T) {
	assert.Equal(t, "https://doi.org/10.5072/abc", DOIURL("10.5072/ABC"))
	assert.Equal(t, "https://doi.org/10.5072/abc", DOIURL("https://doi.org/10.5072/ABC"))
}

func TestParseDOI(t *testing.T) {
	d, err := ParseDOI("https://doi.org/10.5072/Mixed-Case")
	require.NoError(t, err)
	assert.Equal(t, "10.5072", d.Prefix)
	assert.Equal(t, "Mixed-Case", d.Suffix)
	assert.Equal(t, "10.5072/Mixed-Case", d.String())
	assert.Equal(t, "10.5072/mixed-case", d.Key())
	assert.True(t, d.Valid())

	for _, bad := range []string{"", "10.5072", "10.5072/", "11.5072/abc", "10.12/abc"} {
		_, err := ParseDOI(bad)
		assert.Error(t, err, bad)
	}
}

func TestValidDOI(t *testing.T) {
	assert.True(t, ValidDOI("10.5072/abc-123_(x)"))
	assert.True(t, ValidDOI("10.12345/a/b/c"))
	assert.False(t, ValidDOI("10.5072/abc def"))
	assert.False(t, ValidDOI("10.5072/abc+def"))
	assert.False(t, ValidDOI("https://doi.org/10.5072/abc"))
}

func TestPrefixOf(t *testing.T) {
	assert.Equal(t, "10.5072", PrefixOf("https://doi.org/10.5072/abc"))
	assert.Equal(t, "10.5072", PrefixOf("10.5072"))
}

func TestIsTestPrefix(t *testing.T) {
	assert.True(t, IsTestPrefix("10.5072", nil))
	assert.False(t, IsTestPrefix("10.5438", nil))
	assert.True(t, IsTestPrefix("10.80225", []string{"10.5072", "10.80225"}))
	assert.False(t, IsTestPrefix("10.5072", []string{"10.80225"}))
}

func TestORCID(t *testing.T) {
	assert.Equal(t, "0000-0002-1825-0097", NormalizeORCID("https://orcid.org/0000-0002-1825-0097"))
	assert.Equal(t, "0000-0002-1825-0097", NormalizeORCID(" http://orcid.org/0000-0002-1825-0097 "))
	assert.True(t, ValidORCID("https://orcid.org/0000-0002-1694-233X"))
	assert.False(t, ValidORCID("0000-0002-1825"))
}

func TestValidLanguage(t *testing.T) {
	for _, ok := range []string{"en", "en-US", "zh-Hant-TW", "de"} {
		assert.True(t, ValidLanguage(ok), ok)
	}
	for _, bad := range []string{"english language", "en_US", "-en", ""} {
		assert.False(t, ValidLanguage(bad), bad)
	}
}

func TestRelationTypes(t *testing.T) {
	assert.Equal(t, "IsCitedBy", RelationInverse("Cites"))
	assert.Equal(t, "Cites", RelationInverse("IsCitedBy"))
	assert.Equal(t, "HasPart", RelationInverse("IsPublishedIn"))
	assert.Equal(t, "Unknown", RelationInverse("Unknown"))

	assert.Equal(t, "is-cited-by", RelationTypeID("IsCitedBy"))
	assert.Equal(t, "is-cited-by", RelationTypeID("is_cited_by"))
	assert.Equal(t, "IsCitedBy", RelationTypeName("is-cited-by"))

	assert.Equal(t, "IsPartOf", NormalizeRelationType("is_part_of"))
	assert.Equal(t, "IsPartOf", NormalizeRelationType("Is Part Of"))
	assert.Equal(t, "IsSupplementedBy", NormalizeRelationType("isSupplementedBy"))
	assert.Equal(t, "Unknown", NormalizeRelationType("Unknown"))
}
