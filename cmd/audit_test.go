package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lehigh-university-libraries/doiregistry/hub"
)

func TestFieldOf(t *testing.T) {
	tests := []struct {
		source string
		want   string
	}{
		{"titles", "titles"},
		{"contributors[0]", "contributors"},
		{"creators[2].nameIdentifiers[0]", "creators.nameIdentifiers"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, fieldOf(tt.source), tt.source)
	}
}

func TestAuditRecords(t *testing.T) {
	records := []*hub.Metadata{
		{
			DOI:             "10.5072/ok",
			Titles:          hub.List[hub.Title]{{Title: "Complete"}},
			Creators:        hub.List[hub.Creator]{{Name: "Garcia, Sofia"}},
			Publisher:       hub.PlainPublisher("Lehigh University"),
			PublicationYear: 2024,
			Types:           &hub.Types{ResourceTypeGeneral: "Dataset"},
		},
		{DOI: "10.5072/empty"},
		{DOI: "10.5072/funder", Contributors: hub.List[hub.Contributor]{{Name: "Funding Body", ContributorType: "Funder"}}},
	}

	report := auditRecords(records, hub.TargetDraft, 2)
	assert.Equal(t, 3, report.TotalRecords)
	assert.Equal(t, 1, report.InvalidRecords)
	require.Contains(t, report.FieldFrequency, "contributors")
	assert.Equal(t, 1, report.FieldFrequency["contributors"].Count)

	// none of the records has a URL
	report = auditRecords(records, hub.TargetFindable, 2)
	assert.Equal(t, 3, report.InvalidRecords)
	assert.Equal(t, 3, report.FieldFrequency["url"].Count)
	require.Contains(t, report.FieldFrequency, "creators")
	assert.InDelta(t, 66.7, report.FieldFrequency["creators"].Percentage, 0.1)
	assert.Contains(t, formatAuditReport(report), "FAILING FIELDS BY FREQUENCY")
}

func TestParseTarget(t *testing.T) {
	target, err := parseTarget("registered")
	require.NoError(t, err)
	assert.Equal(t, hub.TargetRegistered, target)

	_, err = parseTarget("published")
	assert.Error(t, err)
}
