package crossref

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/lehigh-university-libraries/doiregistry/format"
	"github.com/lehigh-university-libraries/doiregistry/helpers"
	"github.com/lehigh-university-libraries/doiregistry/hub"
)

// now stamps deposit batches; tests replace it.
var now = time.Now

const depositorName = "doiregistry"

// intraWorkRelations are the relation types Crossref files under
// intra_work_relation: other forms of the same work.
var intraWorkRelations = map[string]bool{
	"IsVersionOf":      true,
	"HasVersion":       true,
	"IsIdenticalTo":    true,
	"IsVariantFormOf":  true,
	"IsOriginalFormOf": true,
	"IsPreprintOf":     true,
	"HasPreprint":      true,
	"IsTranslationOf":  true,
	"HasTranslation":   true,
}

// Serialize writes records as one Crossref deposit batch.
func (f *Format) Serialize(w io.Writer, records []*hub.Metadata, opts *format.SerializeOptions) error {
	if opts == nil {
		opts = format.NewSerializeOptions()
	}

	stamp := now().UTC().Format("20060102150405")
	batch := xmlDoiBatch{
		Version:   Version,
		Xmlns:     NamespaceCrossref,
		XmlnsJATS: NamespaceJATS,
		XmlnsFR:   NamespaceFundRef,
		XmlnsAI:   NamespaceAI,
		XmlnsRel:  NamespaceRel,
		Head: xmlHead{
			DoiBatchID: depositorName + "-" + stamp,
			Timestamp:  stamp,
			Depositor:  xmlDepositor{DepositorName: depositorName},
			Registrant: depositorName,
		},
	}
	for _, m := range records {
		if !m.Publisher.IsZero() {
			batch.Head.Registrant = m.Publisher.Name()
			break
		}
	}

	for _, m := range records {
		addRecord(&batch.Body, m)
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	encoder := xml.NewEncoder(w)
	if opts.Pretty {
		encoder.Indent("", "  ")
	}
	if err := encoder.Encode(batch); err != nil {
		return fmt.Errorf("encoding Crossref deposit: %w", err)
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// addRecord places one record under the body element its type calls for.
func addRecord(body *xmlBody, m *hub.Metadata) {
	general := ""
	if m.Types != nil {
		general = m.Types.ResourceTypeGeneral
	}
	c := containerOf(m)
	work := metadataToWork(m)
	publisher := publisherOf(m)
	dates := publicationDates(m)

	switch general {
	case "JournalArticle", "DataPaper":
		work.PublicationDates = dates
		work.Pages = pagesOf(c)
		j := xmlJournal{Articles: []xmlWork{work}}
		j.Metadata.Language = m.Language
		if c != nil {
			j.Metadata.FullTitle = c.Title
			if c.IdentifierType == "ISSN" {
				j.Metadata.ISSN = []xmlISSN{{MediaType: "electronic", Value: c.Identifier}}
			}
			if c.Volume != "" || c.Issue != "" {
				j.Issue = &xmlJournalIssue{Volume: c.Volume, Issue: c.Issue}
			}
		}
		work.Language = ""
		j.Articles[0] = work
		body.Journals = append(body.Journals, j)

	case "BookChapter":
		work.ComponentType = "chapter"
		work.PublicationDates = dates
		work.Pages = pagesOf(c)
		bm := &xmlWork{Language: m.Language, Publisher: publisher, PublicationDates: dates}
		if c != nil {
			bm.Titles = []xmlTitles{{Title: faceTextOf(c.Title)}}
			if c.IdentifierType == "ISBN" {
				bm.ISBN = []xmlISBN{{Value: c.Identifier}}
			}
		}
		work.Language = ""
		body.Books = append(body.Books, xmlBook{BookType: "other", Metadata: bm, ContentItems: []xmlWork{work}})

	case "Book":
		work.EditionNumber = m.Version
		work.PublicationDates = dates
		work.Publisher = publisher
		for _, id := range m.Identifiers {
			if id.IdentifierType == "ISBN" {
				work.ISBN = append(work.ISBN, xmlISBN{Value: id.Identifier})
			}
		}
		body.Books = append(body.Books, xmlBook{BookType: "monograph", Metadata: &work})

	case "ConferencePaper":
		work.PublicationDates = dates
		work.Pages = pagesOf(c)
		pm := &xmlProceedingsMetadata{Language: m.Language, Publisher: publisher, PublicationDates: dates}
		if c != nil {
			pm.ProceedingsTitle = c.Title
			if c.IdentifierType == "ISBN" {
				pm.ISBN = []xmlISBN{{Value: c.Identifier}}
			}
		}
		work.Language = ""
		body.Conferences = append(body.Conferences, xmlConference{Proceedings: pm, Papers: []xmlWork{work}})

	case "Dataset":
		work.DatasetType = "record"
		if len(dates) > 0 {
			work.DatabaseDate = &dates[0]
		}
		db := xmlDatabase{Datasets: []xmlWork{work}}
		db.Metadata.Language = m.Language
		db.Metadata.Publisher = publisher
		title := m.MainTitle()
		if c != nil && c.Title != "" {
			title = c.Title
		}
		db.Metadata.Titles = []xmlTitles{{Title: faceTextOf(title)}}
		work.Language = ""
		db.Datasets[0] = work
		body.Databases = append(body.Databases, db)

	case "Dissertation":
		// A dissertation has a single author and no contributor list.
		if work.Contributors != nil && len(work.Contributors.Items) > 0 {
			author := work.Contributors.Items[0]
			author.XMLName = xml.Name{Local: "person_name"}
			author.Role = ""
			author.Sequence = ""
			work.PersonName = &author
		}
		work.Contributors = nil
		if len(dates) > 0 {
			work.ApprovalDate = &dates[0]
		}
		if publisher != nil {
			work.Institution = &xmlInstitution{Name: publisher.PublisherName}
		}
		body.Dissertations = append(body.Dissertations, work)

	case "PeerReview":
		work.Stage = "pre-publication"
		work.Type = "referee-report"
		if len(dates) > 0 {
			work.ReviewDate = &dates[0]
		}
		body.PeerReviews = append(body.PeerReviews, work)

	case "Report":
		work.PublicationDates = dates
		work.Publisher = publisher
		body.ReportPapers = append(body.ReportPapers, xmlReportPaper{Metadata: work})

	default:
		work.Type = "other"
		if general == "Preprint" {
			work.Type = "preprint"
		}
		for _, s := range m.Subjects {
			if s.Subject != "" && s.SubjectScheme == "" {
				work.GroupTitle = s.Subject
				break
			}
		}
		if len(dates) > 0 {
			work.PostedDate = &dates[0]
		}
		if publisher != nil {
			work.Institution = &xmlInstitution{Name: publisher.PublisherName}
		}
		body.PostedContent = append(body.PostedContent, work)
	}
}

// metadataToWork fills the fields every work type shares.
func metadataToWork(m *hub.Metadata) xmlWork {
	work := xmlWork{
		Language: m.Language,
		DoiData:  &xmlDoiData{DOI: hub.NormalizeDOI(m.DOI), Resource: m.URL},
	}

	if contributors := contributorsOf(m); len(contributors) > 0 {
		work.Contributors = &xmlContributors{Items: contributors}
	}

	var titles xmlTitles
	titles.Title = faceTextOf(m.MainTitle())
	for _, t := range m.Titles {
		switch t.TitleType {
		case "Subtitle":
			if titles.Subtitle == nil {
				sub := faceTextOf(t.Title)
				titles.Subtitle = &sub
			}
		case "TranslatedTitle":
			if titles.OriginalLanguageTitle == nil {
				titles.OriginalLanguageTitle = &xmlLangTitle{Language: t.Lang, Inner: escapeText(t.Title)}
			}
		}
	}
	work.Titles = []xmlTitles{titles}

	for _, d := range m.Descriptions {
		if d.DescriptionType != "Abstract" || d.Description == "" {
			continue
		}
		work.Abstracts = append(work.Abstracts, xmlAbstract{
			XMLName: xml.Name{Local: "jats:abstract"},
			Inner:   "<jats:p>" + escapeText(helpers.StripHTML(d.Description)) + "</jats:p>",
		})
	}

	if p, ok := fundingProgram(m.FundingReferences); ok {
		work.Programs = append(work.Programs, p)
	}
	if p, ok := licenseProgram(m.RightsList); ok {
		work.Programs = append(work.Programs, p)
	}
	if p, ok := relationProgram(m.RelatedIdentifiers); ok {
		work.Programs = append(work.Programs, p)
	}

	for _, ri := range m.RelatedIdentifiers {
		if ri.RelationType != "References" || !strings.EqualFold(ri.RelatedIdentifierType, "DOI") {
			continue
		}
		work.Citations = append(work.Citations, xmlCitation{
			Key: fmt.Sprintf("ref%d", len(work.Citations)+1),
			DOI: hub.NormalizeDOI(ri.RelatedIdentifier),
		})
	}

	return work
}

// contributorsOf lists creators as authors followed by editors and
// translators. Other contributor types have no Crossref role.
func contributorsOf(m *hub.Metadata) []xmlContributor {
	var out []xmlContributor
	for _, c := range m.Creators {
		out = append(out, creatorToContributor(c, "author"))
	}
	for _, c := range m.Contributors {
		switch c.ContributorType {
		case "Editor":
			out = append(out, creatorToContributor(c.AsCreator(), "editor"))
		case "Translator":
			out = append(out, creatorToContributor(c.AsCreator(), "translator"))
		}
	}
	for i := range out {
		out[i].Sequence = "additional"
		if i == 0 {
			out[i].Sequence = "first"
		}
	}
	return out
}

func creatorToContributor(c hub.Creator, role string) xmlContributor {
	if c.IsOrganization() {
		return xmlContributor{XMLName: xml.Name{Local: "organization"}, Role: role, Name: c.Name}
	}

	given, family := c.GivenName, c.FamilyName
	if given == "" && family == "" {
		p := helpers.PersonFromName(c.Name)
		given, family = p.GivenName, p.FamilyName
	}
	xc := xmlContributor{
		XMLName:   xml.Name{Local: "person_name"},
		Role:      role,
		GivenName: given,
		Surname:   family,
	}
	for _, a := range c.Affiliation {
		xc.Institutions = append(xc.Institutions, affiliationToInstitution(a))
	}
	if orcid := c.ORCID(); orcid != "" {
		xc.ORCID = &xmlORCID{Authenticated: "false", Value: "https://orcid.org/" + orcid}
	}
	return xc
}

func affiliationToInstitution(a hub.Affiliation) xmlInstitution {
	inst := xmlInstitution{Name: a.Name}
	if a.AffiliationIdentifier == "" {
		return inst
	}
	switch strings.ToUpper(a.AffiliationIdentifierScheme) {
	case "ROR":
		inst.IDs = []xmlInstitutionID{{Type: "ror", Value: a.AffiliationIdentifier}}
	case "ISNI":
		inst.IDs = []xmlInstitutionID{{Type: "isni", Value: a.AffiliationIdentifier}}
	case "WIKIDATA":
		inst.IDs = []xmlInstitutionID{{Type: "wikidata", Value: a.AffiliationIdentifier}}
	}
	return inst
}

// fundingProgram writes one fundgroup per funding reference.
func fundingProgram(refs []hub.FundingReference) (xmlProgram, bool) {
	p := xmlProgram{XMLName: xml.Name{Local: "fr:program"}, Name: "fundref"}
	for _, fr := range refs {
		if fr.FunderName == "" && fr.FunderIdentifier == "" {
			continue
		}
		name := assertion("funder_name", fr.FunderName)
		if fr.FunderIdentifier != "" {
			name.Assertions = append(name.Assertions, assertion("funder_identifier", fr.FunderIdentifier))
		}
		group := assertion("fundgroup", "")
		group.Assertions = append(group.Assertions, name)
		if fr.AwardNumber != "" {
			group.Assertions = append(group.Assertions, assertion("award_number", fr.AwardNumber))
		}
		p.Assertions = append(p.Assertions, group)
	}
	return p, len(p.Assertions) > 0
}

func assertion(name, value string) xmlAssertion {
	return xmlAssertion{XMLName: xml.Name{Local: "fr:assertion"}, Name: name, Value: value}
}

func licenseProgram(rights []hub.Rights) (xmlProgram, bool) {
	p := xmlProgram{XMLName: xml.Name{Local: "ai:program"}, Name: "AccessIndicators"}
	for _, r := range rights {
		if r.RightsURI == "" {
			continue
		}
		p.LicenseRefs = append(p.LicenseRefs, xmlLicenseRef{
			XMLName:   xml.Name{Local: "ai:license_ref"},
			AppliesTo: "vor",
			Value:     r.RightsURI,
		})
	}
	return p, len(p.LicenseRefs) > 0
}

// relationProgram writes every related identifier except DOI references,
// which go to the citation list.
func relationProgram(ids []hub.RelatedIdentifier) (xmlProgram, bool) {
	p := xmlProgram{XMLName: xml.Name{Local: "rel:program"}, Name: "relations"}
	for _, ri := range ids {
		if ri.RelatedIdentifier == "" || ri.RelationType == "" {
			continue
		}
		if ri.RelationType == "References" && strings.EqualFold(ri.RelatedIdentifierType, "DOI") {
			continue
		}
		local := "rel:inter_work_relation"
		if intraWorkRelations[ri.RelationType] {
			local = "rel:intra_work_relation"
		}
		value := ri.RelatedIdentifier
		if strings.EqualFold(ri.RelatedIdentifierType, "DOI") {
			value = hub.NormalizeDOI(value)
		}
		p.RelatedItems = append(p.RelatedItems, xmlRelatedItem{
			XMLName: xml.Name{Local: "rel:related_item"},
			Relations: []xmlRelation{{
				XMLName:          xml.Name{Local: local},
				RelationshipType: lowerFirst(ri.RelationType),
				IdentifierType:   identifierTypeToCrossref(ri.RelatedIdentifierType),
				Value:            value,
			}},
		})
	}
	return p, len(p.RelatedItems) > 0
}

func identifierTypeToCrossref(t string) string {
	for k, v := range crossrefIdentifierTypes {
		if v == t {
			return k
		}
	}
	return "other"
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

func containerOf(m *hub.Metadata) *hub.Container {
	if m.Container != nil {
		return m.Container
	}
	return hub.DeriveContainer(m)
}

func pagesOf(c *hub.Container) *xmlPages {
	if c == nil || c.FirstPage == "" {
		return nil
	}
	return &xmlPages{FirstPage: c.FirstPage, LastPage: c.LastPage}
}

func publisherOf(m *hub.Metadata) *xmlPublisher {
	if m.Publisher.IsZero() {
		return nil
	}
	return &xmlPublisher{PublisherName: m.Publisher.Name()}
}

// publicationDates returns the issued date as an online publication date.
func publicationDates(m *hub.Metadata) []xmlDate {
	parts := hub.DateParts(m.PublicationDate())
	if len(parts) == 0 {
		return nil
	}
	d := xmlDate{MediaType: "online", Year: fmt.Sprintf("%04d", parts[0])}
	if len(parts) > 1 {
		d.Month = fmt.Sprintf("%02d", parts[1])
	}
	if len(parts) > 2 {
		d.Day = fmt.Sprintf("%02d", parts[2])
	}
	return []xmlDate{d}
}

func faceTextOf(s string) xmlFaceText {
	return xmlFaceText{Inner: escapeText(s)}
}

// escapeText escapes s for use as inner XML.
func escapeText(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
