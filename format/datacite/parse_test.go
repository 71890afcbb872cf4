package datacite

import (
	"errors"
	"strings"
	"testing"

	"github.com/lehigh-university-libraries/doiregistry/hub"
)

func TestParseDataCiteRecord(t *testing.T) {
	input := `<?xml version="1.0" encoding="UTF-8"?>
<resource xmlns="http://datacite.org/schema/kernel-4"
          xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance"
          xsi:schemaLocation="http://datacite.org/schema/kernel-4 http://schema.datacite.org/meta/kernel-4.6/metadata.xsd">
  <identifier identifierType="DOI">10.5281/zenodo.1234567</identifier>
  <creators>
    <creator>
      <creatorName nameType="Personal">Doe, Jane</creatorName>
      <givenName>Jane</givenName>
      <familyName>Doe</familyName>
      <nameIdentifier nameIdentifierScheme="ORCID" schemeURI="https://orcid.org">https://orcid.org/0000-0002-1825-0097</nameIdentifier>
      <affiliation affiliationIdentifier="https://ror.org/012abcd34" affiliationIdentifierScheme="ROR">University of Example</affiliation>
    </creator>
    <creator>
      <creatorName nameType="Organizational">Example Lab</creatorName>
    </creator>
  </creators>
  <titles>
    <title xml:lang="en">A Comprehensive Study of Metadata Crosswalking</title>
    <title titleType="Subtitle">Methods and Applications</title>
  </titles>
  <publisher xml:lang="en" publisherIdentifier="https://ror.org/04wxnsj81" publisherIdentifierScheme="ROR" schemeURI="https://ror.org/">Zenodo</publisher>
  <publicationYear>2024</publicationYear>
  <resourceType resourceTypeGeneral="Dataset">Research Data</resourceType>
  <subjects>
    <subject subjectScheme="LCSH" valueURI="http://id.loc.gov/authorities/subjects/sh85082139">Metadata</subject>
    <subject>Digital Libraries</subject>
  </subjects>
  <contributors>
    <contributor contributorType="DataCurator">
      <contributorName nameType="Personal">Smith, John</contributorName>
    </contributor>
  </contributors>
  <dates>
    <date dateType="Created">2024-01-15</date>
    <date dateType="Issued">2024-03-01</date>
  </dates>
  <language>en</language>
  <alternateIdentifiers>
    <alternateIdentifier alternateIdentifierType="URL">https://zenodo.org/record/1234567</alternateIdentifier>
  </alternateIdentifiers>
  <relatedIdentifiers>
    <relatedIdentifier relatedIdentifierType="DOI" relationType="IsSupplementTo">10.1000/xyz123</relatedIdentifier>
  </relatedIdentifiers>
  <sizes><size>12 MB</size></sizes>
  <formats><format>text/csv</format></formats>
  <version>1.2</version>
  <rightsList>
    <rights rightsURI="https://creativecommons.org/licenses/by/4.0/" rightsIdentifier="cc-by-4.0" rightsIdentifierScheme="SPDX">Creative Commons Attribution 4.0 International</rights>
  </rightsList>
  <descriptions>
    <description descriptionType="Abstract">Crosswalk mappings between repository standards.</description>
  </descriptions>
  <geoLocations>
    <geoLocation>
      <geoLocationPlace>Atlantic Ocean</geoLocationPlace>
      <geoLocationPoint>
        <pointLongitude>-67.302</pointLongitude>
        <pointLatitude>31.233</pointLatitude>
      </geoLocationPoint>
      <geoLocationBox>
        <westBoundLongitude>-71.032</westBoundLongitude>
        <eastBoundLongitude>+123.</eastBoundLongitude>
        <southBoundLatitude>41.090</southBoundLatitude>
        <northBoundLatitude>60.2312</northBoundLatitude>
      </geoLocationBox>
    </geoLocation>
  </geoLocations>
  <fundingReferences>
    <fundingReference>
      <funderName>National Science Foundation</funderName>
      <funderIdentifier funderIdentifierType="Crossref Funder ID">https://doi.org/10.13039/100000001</funderIdentifier>
      <awardNumber awardURI="https://www.nsf.gov/award/1234567">1234567</awardNumber>
      <awardTitle>Metadata Standards Research</awardTitle>
    </fundingReference>
  </fundingReferences>
  <relatedItems>
    <relatedItem relationType="IsPublishedIn" relatedItemType="Journal">
      <relatedItemIdentifier relatedItemIdentifierType="ISSN">1234-5678</relatedItemIdentifier>
      <titles><title>Journal of Metadata</title></titles>
      <volume>7</volume>
      <issue>2</issue>
      <firstPage>10</firstPage>
      <lastPage>20</lastPage>
    </relatedItem>
  </relatedItems>
</resource>`

	f := &Format{}
	records, err := f.Parse(strings.NewReader(input), nil)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if len(records) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(records))
	}

	m := records[0]

	if m.DOI != "10.5281/zenodo.1234567" {
		t.Errorf("DOI: got %q", m.DOI)
	}
	if m.SchemaVersion != hub.NamespaceKernel4 {
		t.Errorf("SchemaVersion: got %q", m.SchemaVersion)
	}
	if m.MainTitle() != "A Comprehensive Study of Metadata Crosswalking" {
		t.Errorf("Title: got %q", m.MainTitle())
	}
	if m.Titles[0].Lang != "en" {
		t.Errorf("Title lang: got %q", m.Titles[0].Lang)
	}
	if len(m.Titles) != 2 || m.Titles[1].TitleType != "Subtitle" {
		t.Errorf("Titles: got %+v", m.Titles)
	}

	sp, ok := m.Publisher.Structured()
	if !ok {
		t.Fatalf("Publisher: expected structured, got %q", m.Publisher.Name())
	}
	if sp.Name != "Zenodo" || sp.PublisherIdentifier != "https://ror.org/04wxnsj81" || sp.PublisherIdentifierScheme != "ROR" || sp.Lang != "en" {
		t.Errorf("Publisher: got %+v", sp)
	}

	if m.PublicationYear != 2024 {
		t.Errorf("PublicationYear: got %d", m.PublicationYear)
	}
	if m.Types == nil || m.Types.ResourceTypeGeneral != "Dataset" || m.Types.ResourceType != "Research Data" {
		t.Errorf("Types: got %+v", m.Types)
	}

	if len(m.Creators) != 2 {
		t.Fatalf("Expected 2 creators, got %d", len(m.Creators))
	}
	jane := m.Creators[0]
	if jane.GivenName != "Jane" || jane.FamilyName != "Doe" || jane.NameType != "Personal" {
		t.Errorf("Creator: got %+v", jane)
	}
	if jane.ORCID() != "0000-0002-1825-0097" {
		t.Errorf("ORCID: got %q", jane.ORCID())
	}
	if len(jane.Affiliation) != 1 || jane.Affiliation[0].AffiliationIdentifierScheme != "ROR" {
		t.Errorf("Affiliation: got %+v", jane.Affiliation)
	}
	if !m.Creators[1].IsOrganization() {
		t.Errorf("Expected organizational creator, got %+v", m.Creators[1])
	}

	if len(m.Contributors) != 1 || m.Contributors[0].ContributorType != "DataCurator" {
		t.Errorf("Contributors: got %+v", m.Contributors)
	}

	if m.DateOf(hub.DateIssued) != "2024-03-01" {
		t.Errorf("Issued: got %q", m.DateOf(hub.DateIssued))
	}
	if len(m.Sizes) != 1 || m.Sizes[0] != "12 MB" || len(m.Formats) != 1 {
		t.Errorf("Sizes/Formats: got %v %v", m.Sizes, m.Formats)
	}
	if m.Version != "1.2" {
		t.Errorf("Version: got %q", m.Version)
	}

	if len(m.RelatedIdentifiers) != 1 || m.RelatedIdentifiers[0].RelationType != "IsSupplementTo" {
		t.Errorf("RelatedIdentifiers: got %+v", m.RelatedIdentifiers)
	}

	if len(m.GeoLocations) != 1 {
		t.Fatalf("Expected 1 geoLocation, got %d", len(m.GeoLocations))
	}
	g := m.GeoLocations[0]
	if g.GeoLocationPoint.PointLatitude.Value != 31.233 || g.GeoLocationPoint.PointLongitude.Value != -67.302 {
		t.Errorf("Point: got %s %s", g.GeoLocationPoint.PointLatitude, g.GeoLocationPoint.PointLongitude)
	}
	if g.GeoLocationBox.EastBoundLongitude.Value != 123.0 || !g.GeoLocationBox.EastBoundLongitude.Valid() {
		t.Errorf("EastBoundLongitude: got %+v", g.GeoLocationBox.EastBoundLongitude)
	}
	if g.GeoLocationBox.NorthBoundLatitude.Value != 60.2312 {
		t.Errorf("NorthBoundLatitude: got %+v", g.GeoLocationBox.NorthBoundLatitude)
	}

	fr := m.FundingReferences[0]
	if fr.FunderIdentifierType != "Crossref Funder ID" || fr.AwardNumber != "1234567" || fr.AwardURI == "" {
		t.Errorf("FundingReference: got %+v", fr)
	}

	if len(m.RelatedItems) != 1 {
		t.Fatalf("Expected 1 related item, got %d", len(m.RelatedItems))
	}
	c := hub.DeriveContainer(m)
	if c == nil || c.Title != "Journal of Metadata" || c.Volume != "7" || c.FirstPage != "10" || c.Identifier != "1234-5678" {
		t.Errorf("Container: got %+v", c)
	}

	if len(m.Problems()) != 0 {
		t.Errorf("Expected no problems, got %v", m.Problems())
	}
}

func TestParseKernel3(t *testing.T) {
	input := `<resource xmlns="http://datacite.org/schema/kernel-3">
  <identifier identifierType="DOI">10.5072/K3</identifier>
  <creators><creator><creatorName>Garcia, Sofia</creatorName><affiliation>Example University</affiliation></creator></creators>
  <titles><title>Kernel three</title></titles>
  <publisher>Example</publisher>
  <publicationYear>2013</publicationYear>
  <contributors>
    <contributor contributorType="Funder"><contributorName>Funding Body</contributorName></contributor>
  </contributors>
  <geoLocations>
    <geoLocation>
      <geoLocationPoint>31.233 -67.302</geoLocationPoint>
      <geoLocationBox>41.090 -71.032 42.893 -68.211</geoLocationBox>
    </geoLocation>
  </geoLocations>
</resource>`

	records, err := (&Format{}).Parse(strings.NewReader(input), nil)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	m := records[0]

	if m.SchemaVersion != hub.NamespaceKernel3 {
		t.Errorf("SchemaVersion: got %q", m.SchemaVersion)
	}
	if m.Creators[0].Affiliation[0].Name != "Example University" {
		t.Errorf("Affiliation: got %+v", m.Creators[0].Affiliation)
	}
	if m.Contributors[0].ContributorType != "Funder" {
		t.Errorf("Contributor type: got %q", m.Contributors[0].ContributorType)
	}

	g := m.GeoLocations[0]
	if g.GeoLocationPoint.PointLatitude.Value != 31.233 || g.GeoLocationPoint.PointLongitude.Value != -67.302 {
		t.Errorf("Point: got %+v", g.GeoLocationPoint)
	}
	b := g.GeoLocationBox
	if b.SouthBoundLatitude.Value != 41.090 || b.WestBoundLongitude.Value != -71.032 ||
		b.NorthBoundLatitude.Value != 42.893 || b.EastBoundLongitude.Value != -68.211 {
		t.Errorf("Box: got %s %s %s %s", b.SouthBoundLatitude, b.WestBoundLongitude, b.NorthBoundLatitude, b.EastBoundLongitude)
	}
}

func TestParseUnsupportedSchema(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{
			name:  "kernel-2.2 namespace",
			input: `<resource xmlns="http://datacite.org/schema/kernel-2.2"><identifier identifierType="DOI">10.5072/A</identifier></resource>`,
		},
		{
			name:  "kernel-3.1 namespace",
			input: `<resource xmlns="http://datacite.org/schema/kernel-3.1"><identifier identifierType="DOI">10.5072/A</identifier></resource>`,
		},
		{
			name:  "kernel-2.1 schema location",
			input: `<resource xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" xsi:schemaLocation="x http://schema.datacite.org/meta/kernel-2.1/metadata.xsd"><identifier identifierType="DOI">10.5072/A</identifier></resource>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := (&Format{}).Parse(strings.NewReader(tt.input), nil)
			var unsupported *hub.UnsupportedSchemaError
			if !errors.As(err, &unsupported) {
				t.Fatalf("Expected UnsupportedSchemaError, got %v", err)
			}
			if !strings.Contains(err.Error(), "is no longer supported") {
				t.Errorf("Message: got %q", err.Error())
			}
		})
	}
}

func TestParseVersionedKernel4Namespace(t *testing.T) {
	input := `<resource xmlns="http://datacite.org/schema/kernel-4.3"><identifier identifierType="DOI">10.5072/A</identifier></resource>`
	records, err := (&Format{}).Parse(strings.NewReader(input), nil)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if records[0].SchemaVersion != "http://datacite.org/schema/kernel-4.3" {
		t.Errorf("SchemaVersion: got %q", records[0].SchemaVersion)
	}
}

func TestParseNameTypePosition(t *testing.T) {
	input := `<resource xmlns="http://datacite.org/schema/kernel-4">
  <identifier identifierType="DOI">10.14454/NAMETYPE</identifier>
  <creators>
    <creator>
      <creatorName nameType="Personal">Doe, Jane</creatorName>
    </creator>
    <creator>
      <creatorName nameType="personal">Roe, Richard</creatorName>
    </creator>
  </creators>
</resource>`

	records, err := (&Format{}).Parse(strings.NewReader(input), nil)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	m := records[0]

	problems := m.Problems()
	if len(problems) != 1 {
		t.Fatalf("Expected 1 problem, got %v", problems)
	}
	p := problems[0]
	if p.Source != "creators[1].nameType" {
		t.Errorf("Source: got %q", p.Source)
	}
	for _, want := range []string{"creatorName", "'personal'", "line 8"} {
		if !strings.Contains(p.Title, want) {
			t.Errorf("Title %q does not mention %q", p.Title, want)
		}
	}

	result := hub.Validate(m, hub.ValidationOptions{Target: hub.TargetDraft})
	count := 0
	for _, e := range result.Errors {
		if e.Source == "creators[1].nameType" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("Expected the nameType error once, got %d in %v", count, result.Errors)
	}
}

func TestParseOAIWrapped(t *testing.T) {
	input := `<OAI-PMH><ListRecords>
  <record><metadata><resource xmlns="http://datacite.org/schema/kernel-4"><identifier identifierType="DOI">10.5072/ONE</identifier></resource></metadata></record>
  <record><metadata><resource xmlns="http://datacite.org/schema/kernel-4"><identifier identifierType="DOI">10.5072/TWO</identifier></resource></metadata></record>
</ListRecords></OAI-PMH>`

	records, err := (&Format{}).Parse(strings.NewReader(input), nil)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(records) != 2 || records[1].DOI != "10.5072/TWO" {
		t.Errorf("Records: got %d", len(records))
	}
}

func TestCanParse(t *testing.T) {
	f := &Format{}
	if !f.CanParse([]byte(`<?xml version="1.0"?><resource xmlns="http://datacite.org/schema/kernel-4">`)) {
		t.Error("Expected DataCite XML to be detected")
	}
	if f.CanParse([]byte(`{"doi": "10.5072/x"}`)) {
		t.Error("JSON should not be detected as DataCite XML")
	}
}
