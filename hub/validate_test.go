package hub

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validMetadata() *Metadata {
	return &Metadata{
		DOI:             "10.5072/valid-1",
		URL:             "https://example.org/records/1",
		Types:           &Types{ResourceTypeGeneral: "Dataset"},
		Creators:        List[Creator]{PersonFromParts("Jane", "Doe")},
		Titles:          List[Title]{{Title: "A Dataset"}},
		Publisher:       PlainPublisher("Lehigh University"),
		PublicationYear: 2024,
	}
}

func sourcesOf(errs []FieldError) []string {
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Source)
	}
	return out
}

func TestValidateValid(t *testing.T) {
	for _, target := range []Target{TargetDraft, TargetRegistered, TargetFindable} {
		result := Validate(validMetadata(), ValidationOptions{Target: target})
		assert.True(t, result.IsValid(), "%s: %v", target, result.Errors)
		assert.Empty(t, result.Warnings)
		assert.NoError(t, result.Error())
	}
}

func TestValidateDraftNeedsLittle(t *testing.T) {
	result := Validate(&Metadata{DOI: "10.5072/draft"}, ValidationOptions{Target: TargetDraft})
	assert.True(t, result.IsValid(), result.Errors)
}

func TestValidateRequiredForTarget(t *testing.T) {
	m := &Metadata{DOI: "10.5072/x"}

	registered := Validate(m, ValidationOptions{Target: TargetRegistered})
	assert.Equal(t, []string{"url"}, sourcesOf(registered.Errors))
	assert.Equal(t, "URL can't be blank.", registered.Errors[0].Title)
	assert.Equal(t, "10.5072/x", registered.Errors[0].UID)

	findable := Validate(m, ValidationOptions{Target: TargetFindable})
	assert.Equal(t, []string{"url", "creators"}, sourcesOf(findable.Errors))
	assert.ElementsMatch(t, []string{"titles", "publisher", "publicationYear", "types"}, sourcesOf(findable.Warnings))

	exempt := Validate(m, ValidationOptions{Target: TargetFindable, ExemptCreators: true})
	assert.Equal(t, []string{"url"}, sourcesOf(exempt.Errors))
}

func TestValidateFieldErrors(t *testing.T) {
	m := validMetadata()
	m.URL = "example.org/no-scheme"
	m.Language = "english language"
	m.Creators = append(m.Creators, Creator{Name: "Someone", NameType: "Person"})
	m.Contributors = List[Contributor]{
		{Name: "No Type"},
		{Name: "Old Funder", ContributorType: "Funder"},
		{GivenName: "Bad", FamilyName: "Name", ContributorType: "Editor", NameType: "personal"},
	}
	m.Identifiers = List[AlternateIdentifier]{{Identifier: "10.5072/other", IdentifierType: "DOI"}}
	m.GeoLocations = List[GeoLocation]{{
		GeoLocationPoint: &GeoLocationPoint{PointLatitude: Deg(91), PointLongitude: &Degrees{Invalid: "east"}},
	}}

	result := Validate(m, ValidationOptions{Target: TargetFindable})
	require.False(t, result.IsValid())
	assert.Equal(t, []string{
		"url",
		"creators[1].nameType",
		"contributors[0]",
		"contributors[1]",
		"contributors[2].nameType",
		"identifiers[0]",
		"language",
		"geoLocations[0].geoLocationPoint.pointLongitude",
		"geoLocations[0].geoLocationPoint.pointLatitude",
	}, sourcesOf(result.Errors))

	byID := make(map[string]string)
	for _, e := range result.Errors {
		byID[e.Source] = e.Title
	}
	assert.Equal(t, "Creator nameType 'Person' is not one of Personal, Organizational.", byID["creators[1].nameType"])
	assert.Equal(t, "Contributor 'No Type': missing required element: contributor type.", byID["contributors[0]"])
	assert.Equal(t, "Contributor type Funder is not supported in schema 4.", byID["contributors[1]"])
	assert.Equal(t, "Geolocation geoLocationPoint.pointLatitude 91 is out of range.", byID["geoLocations[0].geoLocationPoint.pointLatitude"])
	assert.Equal(t, "Geolocation geoLocationPoint.pointLongitude 'east' is not a valid number.", byID["geoLocations[0].geoLocationPoint.pointLongitude"])

	assert.Contains(t, result.Error().Error(), "validation failed: url: URL is not valid.")
}

func TestValidateKernel3AllowsLegacyContributor(t *testing.T) {
	m := validMetadata()
	m.SchemaVersion = NamespaceKernel3
	m.Contributors = List[Contributor]{{Name: "Old Funder", ContributorType: "Funder"}}

	result := Validate(m, ValidationOptions{Target: TargetFindable})
	assert.True(t, result.IsValid(), result.Errors)
}

func TestValidateInvalidDOI(t *testing.T) {
	result := Validate(&Metadata{}, ValidationOptions{})
	assert.Equal(t, []FieldError{{Source: "doi", Title: "DOI can't be blank."}}, result.Errors)

	result = Validate(&Metadata{DOI: "10.5072/has space"}, ValidationOptions{})
	assert.Equal(t, "DOI 10.5072/has space is not valid.", result.Errors[0].Title)

	// the UID option names the record regardless of the metadata
	result = Validate(&Metadata{DOI: "garbage"}, ValidationOptions{UID: "10.5072/real"})
	assert.True(t, result.IsValid())
}

func TestValidateUnsupportedSchemaIsFatal(t *testing.T) {
	m := validMetadata()
	m.Contributors = List[Contributor]{{Name: "No Type"}}

	result := Validate(m, ValidationOptions{SchemaVersion: "http://datacite.org/schema/kernel-2.2"})
	assert.True(t, result.Fatal)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "xml", result.Errors[0].Source)
	assert.Equal(t, "Schema http://datacite.org/schema/kernel-2.2 is no longer supported", result.Errors[0].Title)
}

func TestValidateReportsNormalizationProblems(t *testing.T) {
	m := validMetadata()
	m.AddProblem(FieldError{Source: "creators[0].nameType", Title: "shape problem"})
	m.Creators[0].NameType = "Person"

	result := Validate(m, ValidationOptions{})
	// the problem is reported once, not again by the nameType check
	assert.Equal(t, []string{"creators[0].nameType"}, sourcesOf(result.Errors))
	assert.Equal(t, "shape problem", result.Errors[0].Title)
	assert.Equal(t, "10.5072/valid-1", result.Errors[0].UID)
}

func TestKernelOf(t *testing.T) {
	tests := []struct {
		schema  string
		want    string
		wantErr bool
	}{
		{"", Kernel4, false},
		{"http://datacite.org/schema/kernel-4", Kernel4, false},
		{"http://datacite.org/schema/kernel-4.5", Kernel4, false},
		{"https://datacite.org/schema/kernel-4/", Kernel4, false},
		{"http://datacite.org/schema/kernel-3", Kernel3, false},
		{"http://datacite.org/schema/kernel-3.0", "", true},
		{"http://datacite.org/schema/kernel-3.1", "", true},
		{"http://datacite.org/schema/kernel-2.2", "", true},
		{"4.6", Kernel4, false},
		{"kernel-4.3", Kernel4, false},
		{"3.1", Kernel3, false},
		{"kernel-3", Kernel3, false},
		{"2.1", "", true},
		{"4.9", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.schema, func(t *testing.T) {
			got, err := KernelOf(tt.schema)
			if tt.wantErr {
				var unsupported *UnsupportedSchemaError
				assert.True(t, errors.As(err, &unsupported))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Equal(t, NamespaceKernel3, NamespaceFor(Kernel3))
	assert.Equal(t, NamespaceKernel4, NamespaceFor(Kernel4))
}
