package datacite

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"

	"github.com/lehigh-university-libraries/doiregistry/format"
	"github.com/lehigh-university-libraries/doiregistry/hub"
)

// Serialize writes metadata as DataCite XML. The target schema comes from
// opts.SchemaVersion; only kernel-4 can be written.
func (f *Format) Serialize(w io.Writer, records []*hub.Metadata, opts *format.SerializeOptions) error {
	schema := ""
	if opts != nil {
		schema = opts.SchemaVersion
	}
	adapter, _, err := adapterFor(schema)
	if err != nil {
		return err
	}
	voc := opts.VocabularyOf()

	for i, m := range records {
		res := metadataToXML(m, adapter)
		if err := adapter.encode(m, res, voc); err != nil {
			return err
		}

		var output []byte
		if opts == nil || opts.Pretty {
			output, err = xml.MarshalIndent(res, "", "  ")
		} else {
			output, err = xml.Marshal(res)
		}
		if err != nil {
			return fmt.Errorf("marshaling record %d: %w", i, err)
		}

		if i == 0 {
			if _, err := w.Write([]byte(xml.Header)); err != nil {
				return err
			}
		}

		if _, err := w.Write(output); err != nil {
			return err
		}
		if _, err := w.Write([]byte("\n")); err != nil {
			return err
		}
	}

	return nil
}

// metadataToXML converts the parts of the schema every kernel shares.
func metadataToXML(m *hub.Metadata, k kernelAdapter) *xmlResource {
	res := &xmlResource{
		Xmlns:             k.namespace(),
		XmlnsXsi:          xsiNS,
		XsiSchemaLocation: k.schemaLocation(),
		Identifier:        xmlIdentifier{IdentifierType: "DOI", Value: hub.NormalizeDOI(m.DOI)},
		Language:          m.Language,
		Version:           m.Version,
	}

	for _, c := range m.Creators {
		res.Creators = append(res.Creators, creatorToXML(c))
	}

	for _, t := range m.Titles {
		res.Titles = append(res.Titles, xmlTitle{TitleType: t.TitleType, Lang: t.Lang, Value: t.Title})
	}

	if !m.Publisher.IsZero() {
		res.Publisher = &xmlPublisher{Value: m.Publisher.Name()}
	}

	if m.PublicationYear > 0 {
		res.PublicationYear = strconv.Itoa(m.PublicationYear)
	}

	if m.Types != nil && (m.Types.ResourceTypeGeneral != "" || m.Types.ResourceType != "") {
		res.ResourceType = &xmlResourceType{
			ResourceTypeGeneral: m.Types.ResourceTypeGeneral,
			Value:               m.Types.ResourceType,
		}
	}

	for _, s := range m.Subjects {
		res.Subjects = append(res.Subjects, xmlSubject{
			SubjectScheme:      s.SubjectScheme,
			SchemeURI:          s.SchemeURI,
			ValueURI:           s.ValueURI,
			ClassificationCode: s.ClassificationCode,
			Lang:               s.Lang,
			Value:              s.Subject,
		})
	}

	for _, c := range m.Contributors {
		res.Contributors = append(res.Contributors, contributorToXML(c))
	}

	for _, d := range m.Dates {
		res.Dates = append(res.Dates, xmlDate{DateType: d.DateType, DateInformation: d.DateInformation, Value: d.Date})
	}

	for _, a := range m.Identifiers {
		res.AlternateIdentifiers = append(res.AlternateIdentifiers, xmlAlternateIdentifier{
			AlternateIdentifierType: a.IdentifierType,
			Value:                   a.Identifier,
		})
	}

	for _, r := range m.RelatedIdentifiers {
		res.RelatedIdentifiers = append(res.RelatedIdentifiers, xmlRelatedIdentifier{
			RelatedIdentifierType: r.RelatedIdentifierType,
			RelationType:          r.RelationType,
			RelatedMetadataScheme: r.RelatedMetadataScheme,
			SchemeURI:             r.SchemeURI,
			SchemeType:            r.SchemeType,
			ResourceTypeGeneral:   r.ResourceTypeGeneral,
			Value:                 r.RelatedIdentifier,
		})
	}

	res.Sizes = append(res.Sizes, m.Sizes...)
	res.Formats = append(res.Formats, m.Formats...)

	for _, r := range m.RightsList {
		res.RightsList = append(res.RightsList, xmlRights{
			RightsURI:              r.RightsURI,
			RightsIdentifier:       r.RightsIdentifier,
			RightsIdentifierScheme: r.RightsIdentifierScheme,
			SchemeURI:              r.SchemeURI,
			Lang:                   r.Lang,
			Value:                  r.Rights,
		})
	}

	for _, d := range m.Descriptions {
		res.Descriptions = append(res.Descriptions, xmlDescription{
			DescriptionType: d.DescriptionType,
			Lang:            d.Lang,
			Value:           d.Description,
		})
	}

	for _, fr := range m.FundingReferences {
		ref := xmlFundingReference{FunderName: fr.FunderName, AwardTitle: fr.AwardTitle}
		if fr.FunderIdentifier != "" {
			ref.FunderIdentifier = &xmlFunderIdentifier{
				FunderIdentifierType: fr.FunderIdentifierType,
				Value:                fr.FunderIdentifier,
			}
		}
		if fr.AwardNumber != "" || fr.AwardURI != "" {
			ref.AwardNumber = &xmlAwardNumber{AwardURI: fr.AwardURI, Value: fr.AwardNumber}
		}
		res.FundingReferences = append(res.FundingReferences, ref)
	}

	return res
}

func nameIdentifiersToXML(ids hub.List[hub.NameIdentifier]) []xmlNameIdentifier {
	var out []xmlNameIdentifier
	for _, ni := range ids {
		out = append(out, xmlNameIdentifier{
			NameIdentifierScheme: ni.NameIdentifierScheme,
			SchemeURI:            ni.SchemeURI,
			Value:                ni.NameIdentifier,
		})
	}
	return out
}

func affiliationsToXML(affs hub.List[hub.Affiliation]) []xmlAffiliation {
	var out []xmlAffiliation
	for _, a := range affs {
		out = append(out, xmlAffiliation{
			AffiliationIdentifier:       a.AffiliationIdentifier,
			AffiliationIdentifierScheme: a.AffiliationIdentifierScheme,
			SchemeURI:                   a.SchemeURI,
			Value:                       a.Name,
		})
	}
	return out
}

func creatorToXML(c hub.Creator) xmlCreator {
	return xmlCreator{
		CreatorName:     xmlName{NameType: c.NameType, Value: c.Name},
		GivenName:       c.GivenName,
		FamilyName:      c.FamilyName,
		NameIdentifiers: nameIdentifiersToXML(c.NameIdentifiers),
		Affiliations:    affiliationsToXML(c.Affiliation),
	}
}

func contributorToXML(c hub.Contributor) xmlContributor {
	return xmlContributor{
		ContributorType: c.ContributorType,
		ContributorName: xmlName{NameType: c.NameType, Value: c.Name},
		GivenName:       c.GivenName,
		FamilyName:      c.FamilyName,
		NameIdentifiers: nameIdentifiersToXML(c.NameIdentifiers),
		Affiliations:    affiliationsToXML(c.Affiliation),
	}
}

func relatedItemToXML(item hub.RelatedItem) xmlRelatedItem {
	out := xmlRelatedItem{
		RelationType:    item.RelationType,
		RelatedItemType: item.RelatedItemType,
		PublicationYear: item.PublicationYear,
		Volume:          item.Volume,
		Issue:           item.Issue,
		FirstPage:       item.FirstPage,
		LastPage:        item.LastPage,
		Publisher:       item.Publisher,
		Edition:         item.Edition,
	}
	if id := item.RelatedItemIdentifier; id != nil {
		out.RelatedItemIdentifier = &xmlRelatedItemIdentifier{
			RelatedItemIdentifierType: id.RelatedItemIdentifierType,
			Value:                     id.RelatedItemIdentifier,
		}
	}
	if item.Number != "" {
		out.Number = &xmlNumber{NumberType: item.NumberType, Value: item.Number}
	}
	for _, c := range item.Creators {
		out.Creators = append(out.Creators, creatorToXML(c))
	}
	for _, t := range item.Titles {
		out.Titles = append(out.Titles, xmlTitle{TitleType: t.TitleType, Lang: t.Lang, Value: t.Title})
	}
	for _, c := range item.Contributors {
		out.Contributors = append(out.Contributors, contributorToXML(c))
	}
	return out
}
