package schemaorg

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/lehigh-university-libraries/doiregistry/format"
	"github.com/lehigh-university-libraries/doiregistry/hub"
)

// Serialize writes metadata as schema.org JSON-LD: a single document for one
// record, an array otherwise.
func (f *Format) Serialize(w io.Writer, records []*hub.Metadata, opts *format.SerializeOptions) error {
	if opts == nil {
		opts = format.NewSerializeOptions()
	}

	docs := make([]Document, 0, len(records))
	for _, m := range records {
		docs = append(docs, metadataToDocument(m))
	}

	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	if opts.Pretty {
		encoder.SetIndent("", "  ")
	}

	if len(docs) == 1 {
		return encoder.Encode(docs[0])
	}
	return encoder.Encode(docs)
}

// metadataToDocument converts canonical metadata to a JSON-LD document.
func metadataToDocument(m *hub.Metadata) Document {
	doc := Document{
		Context:        Context,
		Type:           schemaTypeFor(m),
		URL:            m.URL,
		Description:    m.Abstract(),
		InLanguage:     m.Language,
		DateCreated:    m.DateOf(hub.DateCreated),
		DatePublished:  m.PublicationDate(),
		DateModified:   m.DateOf(hub.DateUpdated),
		Version:        m.Version,
		SchemaVersion:  m.SchemaVersion,
		ContentURL:     m.ContentURL,
		ContentSize:    m.Sizes,
		EncodingFormat: m.Formats,
	}
	if m.Types != nil {
		doc.AdditionalType = m.Types.ResourceType
	}

	if doi := hub.NormalizeDOI(m.DOI); doi != "" {
		doc.ID = hub.DOIURL(doi)
		doc.Identifier = append(doc.Identifier, PropertyValue{Type: "PropertyValue", PropertyID: "DOI", Value: doc.ID})
	}
	for _, id := range m.Identifiers {
		if id.IdentifierType == "ISBN" && doc.ISBN == "" {
			doc.ISBN = id.Identifier
			continue
		}
		doc.Identifier = append(doc.Identifier, PropertyValue{Type: "PropertyValue", PropertyID: id.IdentifierType, Value: id.Identifier})
	}

	doc.Name = m.MainTitle()
	for _, t := range m.Titles {
		if t.TitleType != "" && t.Title != doc.Name {
			doc.AlternateName = append(doc.AlternateName, t.Title)
		}
	}

	for _, c := range m.Creators {
		doc.Author = append(doc.Author, creatorToAgent(c))
	}
	for _, c := range m.Contributors {
		switch c.ContributorType {
		case "Editor":
			doc.Editor = append(doc.Editor, creatorToAgent(c.AsCreator()))
		case "Funder":
			// written as funder below
		default:
			doc.Contributor = append(doc.Contributor, creatorToAgent(c.AsCreator()))
		}
	}

	if !m.Publisher.IsZero() {
		pub := &Agent{Type: "Organization", Name: m.Publisher.Name()}
		if sp, ok := m.Publisher.Structured(); ok {
			pub.ID = sp.PublisherIdentifier
		}
		doc.Publisher = pub
	}

	var keywords []string
	for _, s := range m.Subjects {
		if s.Subject != "" {
			keywords = append(keywords, s.Subject)
		}
	}
	doc.Keywords = strings.Join(keywords, ", ")

	for _, r := range m.RightsList {
		switch {
		case r.RightsURI != "":
			doc.License = append(doc.License, r.RightsURI)
		case r.Rights != "":
			doc.License = append(doc.License, r.Rights)
		}
	}

	doc.IsPartOf = containerPart(m)
	if c := containerOf(m); c != nil {
		doc.PageStart = c.FirstPage
		doc.PageEnd = c.LastPage
	}

	for _, ri := range m.RelatedIdentifiers {
		ref := Reference{Type: "CreativeWork", ID: referenceURL(ri)}
		switch ri.RelationType {
		case "References", "Cites":
			doc.Citation = append(doc.Citation, ref)
		case "HasPart":
			doc.HasPart = append(doc.HasPart, ref)
		case "IsDerivedFrom", "IsVariantFormOf":
			doc.IsBasedOn = append(doc.IsBasedOn, ref)
		}
	}

	for _, g := range m.GeoLocations {
		if place, ok := geoToPlace(g); ok {
			doc.SpatialCoverage = append(doc.SpatialCoverage, place)
		}
	}

	for _, fr := range m.FundingReferences {
		doc.Funder = append(doc.Funder, Agent{Type: "Organization", ID: fr.FunderIdentifier, Name: fr.FunderName})
	}

	return doc
}

// schemaTypeFor picks the @type, preferring the one the metadata was read
// with.
func schemaTypeFor(m *hub.Metadata) string {
	if m.Types == nil {
		return "CreativeWork"
	}
	if m.Types.SchemaOrg != "" {
		return m.Types.SchemaOrg
	}
	return hub.TypesFor(m.Types.ResourceTypeGeneral, m.Types.ResourceType).SchemaOrg
}

func creatorToAgent(c hub.Creator) Agent {
	a := Agent{Type: "Person", Name: c.DisplayName(), GivenName: c.GivenName, FamilyName: c.FamilyName}
	if c.IsOrganization() {
		a = Agent{Type: "Organization", Name: c.Name}
	}
	if len(c.NameIdentifiers) > 0 {
		ni := c.NameIdentifiers[0]
		a.ID = ni.NameIdentifier
		if strings.EqualFold(ni.NameIdentifierScheme, "ORCID") && !strings.HasPrefix(a.ID, "http") {
			a.ID = "https://orcid.org/" + a.ID
		}
	}
	for _, aff := range c.Affiliation {
		a.Affiliation = append(a.Affiliation, Agent{Type: "Organization", ID: aff.AffiliationIdentifier, Name: aff.Name})
	}
	return a
}

func containerOf(m *hub.Metadata) *hub.Container {
	if m.Container != nil {
		return m.Container
	}
	return hub.DeriveContainer(m)
}

// containerPart writes the container as an isPartOf chain, nesting the
// issue and volume inside the periodical.
func containerPart(m *hub.Metadata) *Part {
	c := containerOf(m)
	if c == nil {
		return nil
	}

	outer := &Part{Type: partTypeFor(c.Type), Name: c.Title}
	switch c.IdentifierType {
	case "ISSN":
		outer.ISSN = c.Identifier
	case "ISBN":
		outer.ISBN = c.Identifier
	case "DOI":
		outer.ID = hub.DOIURL(c.Identifier)
	case "URL":
		outer.ID = c.Identifier
	}
	if outer.Type != "Periodical" {
		return outer
	}

	part := outer
	if c.Volume != "" {
		part = &Part{Type: "PublicationVolume", VolumeNumber: c.Volume, IsPartOf: part}
	}
	if c.Issue != "" {
		part = &Part{Type: "PublicationIssue", IssueNumber: c.Issue, IsPartOf: part}
	}
	return part
}

func referenceURL(ri hub.RelatedIdentifier) string {
	if strings.EqualFold(ri.RelatedIdentifierType, "DOI") {
		return hub.DOIURL(ri.RelatedIdentifier)
	}
	return ri.RelatedIdentifier
}

// geoToPlace writes a point as GeoCoordinates and a box as a GeoShape.
// Polygons have no schema.org form here and are dropped.
func geoToPlace(g hub.GeoLocation) (Place, bool) {
	place := Place{Type: "Place", Name: g.GeoLocationPlace}
	switch {
	case g.GeoLocationPoint != nil && g.GeoLocationPoint.PointLatitude.Valid() && g.GeoLocationPoint.PointLongitude.Valid():
		place.Geo = GeoCoordinates{
			Type:      "GeoCoordinates",
			Latitude:  g.GeoLocationPoint.PointLatitude.Value,
			Longitude: g.GeoLocationPoint.PointLongitude.Value,
		}
	case g.GeoLocationBox != nil:
		b := g.GeoLocationBox
		box := strings.Join([]string{
			b.SouthBoundLatitude.String(), b.WestBoundLongitude.String(),
			b.NorthBoundLatitude.String(), b.EastBoundLongitude.String(),
		}, " ")
		place.Geo = GeoShape{Type: "GeoShape", Box: box}
	}
	if place.Name == "" && place.Geo == nil {
		return place, false
	}
	return place, true
}
