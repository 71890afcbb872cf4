package datacite

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/lehigh-university-libraries/doiregistry/format"
	"github.com/lehigh-university-libraries/doiregistry/helpers"
	"github.com/lehigh-university-libraries/doiregistry/hub"
)

var schemaLocationRegex = regexp.MustCompile(`kernel-(\d+(?:\.\d+)?)/metadata\.xsd`)

// Parse reads DataCite XML and returns one Metadata per <resource>.
// Handles both bare <resource> elements and OAI-PMH wrapped responses.
// A resource in an unsupported schema fails the whole parse with
// *hub.UnsupportedSchemaError.
func (f *Format) Parse(r io.Reader, opts *format.ParseOptions) ([]*hub.Metadata, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}

	resources, err := extractResources(data)
	if err != nil {
		return nil, err
	}

	if len(resources) == 0 {
		return nil, fmt.Errorf("no DataCite resource elements found in input")
	}

	positions, err := scanNameTypes(data)
	if err != nil {
		return nil, err
	}

	voc := opts.VocabularyOf()
	stripHTML := opts != nil && opts.StripHTML

	var records []*hub.Metadata
	for i, res := range resources {
		adapter, kernel, err := adapterFor(res.schema)
		if err != nil {
			return nil, err
		}

		m := resourceToMetadata(res.xml, adapter, stripHTML)
		m.SchemaVersion = res.schema
		if m.SchemaVersion == "" || !strings.Contains(m.SchemaVersion, "/") {
			m.SchemaVersion = hub.NamespaceFor(kernel)
		}

		if i < len(positions) {
			for _, p := range positions[i] {
				if voc.ValidNameType(p.value) {
					continue
				}
				m.AddProblem(hub.FieldError{
					Source: p.source,
					Title: fmt.Sprintf("Element '%s', attribute 'nameType': The value '%s' is not an element of the set {%s}. (line %d, column %d)",
						p.element, p.value, quoteList(voc.NameTypes), p.line, p.column),
				})
			}
		}

		records = append(records, m)
	}

	return records, nil
}

// parsedResource is a <resource> element with the schema it declared.
type parsedResource struct {
	xml    *xmlResource
	schema string
}

// extractResources finds all <resource> elements in the XML.
// Works for both bare resource documents and OAI-PMH wrapped responses.
func extractResources(data []byte) ([]parsedResource, error) {
	decoder := xml.NewDecoder(bytes.NewReader(data))
	var resources []parsedResource

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parsing XML: %w", err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		if start.Name.Local == "resource" {
			schema := schemaOf(start)
			// Reject before decoding: nothing of an unsupported schema is read.
			if _, err := hub.KernelOf(schema); err != nil {
				return nil, err
			}
			var res xmlResource
			if err := decoder.DecodeElement(&res, &start); err != nil {
				return nil, fmt.Errorf("decoding resource: %w", err)
			}
			resources = append(resources, parsedResource{xml: &res, schema: schema})
		}
	}

	return resources, nil
}

// schemaOf returns the namespace of a <resource>, or the version from its
// schemaLocation when it has no namespace.
func schemaOf(start xml.StartElement) string {
	if ns := strings.TrimSpace(start.Name.Space); ns != "" {
		return ns
	}
	for _, a := range start.Attr {
		if a.Name.Local == "schemaLocation" && (a.Name.Space == xsiNS || a.Name.Space == "xsi") {
			if m := schemaLocationRegex.FindStringSubmatch(a.Value); m != nil {
				return m[1]
			}
		}
	}
	return ""
}

// resourceToMetadata converts the shared parts of a resource and hands the
// generation-specific parts to the kernel adapter.
func resourceToMetadata(res *xmlResource, k kernelAdapter, stripHTML bool) *hub.Metadata {
	m := &hub.Metadata{
		DOI:      strings.TrimSpace(res.Identifier.Value),
		Language: strings.TrimSpace(res.Language),
		Version:  strings.TrimSpace(res.Version),
	}

	for _, c := range res.Creators {
		m.Creators = append(m.Creators, creatorFromXML(c))
	}

	for _, t := range res.Titles {
		val := strings.TrimSpace(t.Value)
		if val == "" {
			continue
		}
		m.Titles = append(m.Titles, hub.Title{Title: val, TitleType: t.TitleType, Lang: t.Lang})
	}

	if p := res.Publisher; p != nil {
		name := strings.TrimSpace(p.Value)
		if p.PublisherIdentifier != "" || p.PublisherIdentifierScheme != "" || p.SchemeURI != "" || p.Lang != "" {
			m.Publisher = hub.NewStructuredPublisher(hub.StructuredPublisher{
				Name:                      name,
				PublisherIdentifier:       p.PublisherIdentifier,
				PublisherIdentifierScheme: p.PublisherIdentifierScheme,
				SchemeURI:                 p.SchemeURI,
				Lang:                      p.Lang,
			})
		} else if name != "" {
			m.Publisher = hub.PlainPublisher(name)
		}
	}

	if y := strings.TrimSpace(res.PublicationYear); y != "" {
		year, err := strconv.Atoi(y)
		if err != nil {
			m.AddProblem(hub.FieldError{
				Source: "publicationYear",
				Title:  fmt.Sprintf("Publication year %s is not a valid year.", y),
			})
		} else {
			m.PublicationYear = year
		}
	}

	if rt := res.ResourceType; rt != nil {
		m.Types = &hub.Types{
			ResourceTypeGeneral: strings.TrimSpace(rt.ResourceTypeGeneral),
			ResourceType:        strings.TrimSpace(rt.Value),
		}
	}

	for _, s := range res.Subjects {
		val := strings.TrimSpace(s.Value)
		if val == "" {
			continue
		}
		m.Subjects = append(m.Subjects, hub.Subject{
			Subject:            val,
			SubjectScheme:      s.SubjectScheme,
			SchemeURI:          s.SchemeURI,
			ValueURI:           s.ValueURI,
			ClassificationCode: s.ClassificationCode,
			Lang:               s.Lang,
		})
	}

	for _, c := range res.Contributors {
		m.Contributors = append(m.Contributors, contributorFromXML(c))
	}

	for _, d := range res.Dates {
		val := strings.TrimSpace(d.Value)
		if val == "" {
			continue
		}
		m.Dates = append(m.Dates, hub.Date{Date: val, DateType: d.DateType, DateInformation: d.DateInformation})
	}

	for _, alt := range res.AlternateIdentifiers {
		val := strings.TrimSpace(alt.Value)
		if val == "" {
			continue
		}
		m.Identifiers = append(m.Identifiers, hub.AlternateIdentifier{
			Identifier:     val,
			IdentifierType: alt.AlternateIdentifierType,
		})
	}

	for _, rel := range res.RelatedIdentifiers {
		val := strings.TrimSpace(rel.Value)
		if val == "" {
			continue
		}
		m.RelatedIdentifiers = append(m.RelatedIdentifiers, hub.RelatedIdentifier{
			RelatedIdentifier:     val,
			RelatedIdentifierType: rel.RelatedIdentifierType,
			RelationType:          rel.RelationType,
			RelatedMetadataScheme: rel.RelatedMetadataScheme,
			SchemeURI:             rel.SchemeURI,
			SchemeType:            rel.SchemeType,
			ResourceTypeGeneral:   rel.ResourceTypeGeneral,
		})
	}

	for _, s := range res.Sizes {
		if s = strings.TrimSpace(s); s != "" {
			m.Sizes = append(m.Sizes, s)
		}
	}
	for _, s := range res.Formats {
		if s = strings.TrimSpace(s); s != "" {
			m.Formats = append(m.Formats, s)
		}
	}

	for _, r := range res.RightsList {
		m.RightsList = append(m.RightsList, hub.Rights{
			Rights:                 strings.TrimSpace(r.Value),
			RightsURI:              r.RightsURI,
			RightsIdentifier:       r.RightsIdentifier,
			RightsIdentifierScheme: r.RightsIdentifierScheme,
			SchemeURI:              r.SchemeURI,
			Lang:                   r.Lang,
		})
	}

	for _, d := range res.Descriptions {
		val := strings.TrimSpace(d.Value)
		if stripHTML {
			val = helpers.StripHTML(val)
		}
		if val == "" {
			continue
		}
		m.Descriptions = append(m.Descriptions, hub.Description{
			Description:     val,
			DescriptionType: d.DescriptionType,
			Lang:            d.Lang,
		})
	}

	for _, g := range res.GeoLocations {
		loc := hub.GeoLocation{
			GeoLocationPlace: strings.TrimSpace(g.GeoLocationPlace),
			GeoLocationPoint: k.decodeGeoPoint(g.GeoLocationPoint),
			GeoLocationBox:   k.decodeGeoBox(g.GeoLocationBox),
		}
		for _, poly := range g.GeoLocationPolygon {
			var hp hub.GeoLocationPolygon
			for i := range poly.PolygonPoints {
				if p := k.decodeGeoPoint(&poly.PolygonPoints[i]); p != nil {
					hp.PolygonPoints = append(hp.PolygonPoints, *p)
				}
			}
			hp.InPolygonPoint = k.decodeGeoPoint(poly.InPolygonPoint)
			loc.GeoLocationPolygon = append(loc.GeoLocationPolygon, hp)
		}
		m.GeoLocations = append(m.GeoLocations, loc)
	}

	for _, fr := range res.FundingReferences {
		ref := hub.FundingReference{
			FunderName: strings.TrimSpace(fr.FunderName),
			AwardTitle: strings.TrimSpace(fr.AwardTitle),
		}
		if fi := fr.FunderIdentifier; fi != nil {
			ref.FunderIdentifier = strings.TrimSpace(fi.Value)
			ref.FunderIdentifierType = fi.FunderIdentifierType
		}
		if an := fr.AwardNumber; an != nil {
			ref.AwardNumber = strings.TrimSpace(an.Value)
			ref.AwardURI = an.AwardURI
		}
		m.FundingReferences = append(m.FundingReferences, ref)
	}

	k.decodeExtra(res, m)

	return m
}

func nameIdentifiersFromXML(ids []xmlNameIdentifier) hub.List[hub.NameIdentifier] {
	var out hub.List[hub.NameIdentifier]
	for _, ni := range ids {
		val := strings.TrimSpace(ni.Value)
		if val == "" {
			continue
		}
		out = append(out, hub.NameIdentifier{
			NameIdentifier:       val,
			NameIdentifierScheme: ni.NameIdentifierScheme,
			SchemeURI:            ni.SchemeURI,
		})
	}
	return out
}

func affiliationsFromXML(affs []xmlAffiliation) hub.List[hub.Affiliation] {
	var out hub.List[hub.Affiliation]
	for _, a := range affs {
		name := strings.TrimSpace(a.Value)
		if name == "" {
			continue
		}
		out = append(out, hub.Affiliation{
			Name:                        name,
			AffiliationIdentifier:       a.AffiliationIdentifier,
			AffiliationIdentifierScheme: a.AffiliationIdentifierScheme,
			SchemeURI:                   a.SchemeURI,
		})
	}
	return out
}

// creatorFromXML converts a DataCite creator XML element.
func creatorFromXML(c xmlCreator) hub.Creator {
	return hub.Creator{
		Name:            strings.TrimSpace(c.CreatorName.Value),
		NameType:        strings.TrimSpace(c.CreatorName.NameType),
		GivenName:       strings.TrimSpace(c.GivenName),
		FamilyName:      strings.TrimSpace(c.FamilyName),
		NameIdentifiers: nameIdentifiersFromXML(c.NameIdentifiers),
		Affiliation:     affiliationsFromXML(c.Affiliations),
	}
}

// contributorFromXML converts a DataCite contributor XML element.
func contributorFromXML(c xmlContributor) hub.Contributor {
	return hub.Contributor{
		Name:            strings.TrimSpace(c.ContributorName.Value),
		NameType:        strings.TrimSpace(c.ContributorName.NameType),
		GivenName:       strings.TrimSpace(c.GivenName),
		FamilyName:      strings.TrimSpace(c.FamilyName),
		NameIdentifiers: nameIdentifiersFromXML(c.NameIdentifiers),
		Affiliation:     affiliationsFromXML(c.Affiliations),
		ContributorType: strings.TrimSpace(c.ContributorType),
	}
}

func relatedItemFromXML(item xmlRelatedItem) hub.RelatedItem {
	out := hub.RelatedItem{
		RelationType:    item.RelationType,
		RelatedItemType: item.RelatedItemType,
		PublicationYear: strings.TrimSpace(item.PublicationYear),
		Volume:          strings.TrimSpace(item.Volume),
		Issue:           strings.TrimSpace(item.Issue),
		FirstPage:       strings.TrimSpace(item.FirstPage),
		LastPage:        strings.TrimSpace(item.LastPage),
		Publisher:       strings.TrimSpace(item.Publisher),
		Edition:         strings.TrimSpace(item.Edition),
	}
	if id := item.RelatedItemIdentifier; id != nil {
		out.RelatedItemIdentifier = &hub.RelatedItemIdentifier{
			RelatedItemIdentifier:     strings.TrimSpace(id.Value),
			RelatedItemIdentifierType: id.RelatedItemIdentifierType,
		}
	}
	if n := item.Number; n != nil {
		out.Number = strings.TrimSpace(n.Value)
		out.NumberType = n.NumberType
	}
	for _, c := range item.Creators {
		out.Creators = append(out.Creators, creatorFromXML(c))
	}
	for _, t := range item.Titles {
		if val := strings.TrimSpace(t.Value); val != "" {
			out.Titles = append(out.Titles, hub.Title{Title: val, TitleType: t.TitleType, Lang: t.Lang})
		}
	}
	for _, c := range item.Contributors {
		out.Contributors = append(out.Contributors, contributorFromXML(c))
	}
	return out
}

func quoteList(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = "'" + v + "'"
	}
	return strings.Join(quoted, ", ")
}
