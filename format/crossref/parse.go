package crossref

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/lehigh-university-libraries/doiregistry/format"
	"github.com/lehigh-university-libraries/doiregistry/helpers"
	"github.com/lehigh-university-libraries/doiregistry/hub"
)

// Parse reads Crossref XML and returns one Metadata per work. Deposit
// batches are read from their <body>, unixref results from each <crossref>
// element. Container-level metadata (journal, book, proceedings, database)
// is folded into each work as a related item.
func (f *Format) Parse(r io.Reader, opts *format.ParseOptions) ([]*hub.Metadata, error) {
	decoder := xml.NewDecoder(r)

	var (
		bodies     []xmlBody
		registrant string
	)
	for {
		tok, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading Crossref XML: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if start.Name.Local == "head" {
			var head xmlHead
			if err := decoder.DecodeElement(&head, &start); err != nil {
				return nil, fmt.Errorf("decoding Crossref head: %w", err)
			}
			registrant = strings.TrimSpace(head.Registrant)
			continue
		}
		if start.Name.Local != "body" && start.Name.Local != "crossref" {
			continue
		}
		var body xmlBody
		if err := decoder.DecodeElement(&body, &start); err != nil {
			return nil, fmt.Errorf("decoding Crossref %s: %w", start.Name.Local, err)
		}
		bodies = append(bodies, body)
	}
	if len(bodies) == 0 {
		return nil, fmt.Errorf("no Crossref body or record found in input")
	}

	stripHTML := opts == nil || opts.StripHTML
	var records []*hub.Metadata
	for _, body := range bodies {
		if msg := strings.TrimSpace(body.Error); msg != "" {
			return nil, fmt.Errorf("crossref record holds an error: %s", msg)
		}
		records = append(records, bodyToMetadata(body, stripHTML)...)
	}

	// Journal articles and posted content carry no publisher of their own;
	// the deposit's registrant stands in.
	if registrant != "" {
		for _, m := range records {
			if m.Publisher.IsZero() {
				m.Publisher = hub.PlainPublisher(registrant)
			}
		}
	}
	return records, nil
}

// bodyToMetadata walks every container in a body and converts its works.
func bodyToMetadata(body xmlBody, stripHTML bool) []*hub.Metadata {
	var records []*hub.Metadata

	// Journals: articles carry the journal, volume and issue as container
	for _, j := range body.Journals {
		for _, article := range j.Articles {
			m := workToMetadata(article, "journal_article", stripHTML)
			if m.Language == "" {
				m.Language = j.Metadata.Language
			}
			if m.PublicationYear == 0 && j.Issue != nil && len(j.Issue.PublicationDates) > 0 {
				m.SetIssued(dateString(preferredDate(j.Issue.PublicationDates)))
			}
			if item, ok := journalContainer(j, article); ok {
				m.RelatedItems = append(m.RelatedItems, item)
			}
			records = append(records, m)
		}
	}

	// Books: each chapter is a record, otherwise the book itself is
	for _, b := range body.Books {
		bm := b.Metadata
		if bm == nil {
			bm = b.EditedBook
		}
		if len(b.ContentItems) == 0 && bm != nil {
			records = append(records, workToMetadata(*bm, "book", stripHTML))
			continue
		}
		for _, item := range b.ContentItems {
			m := workToMetadata(item, "book_chapter", stripHTML)
			if bm != nil {
				if m.Publisher.IsZero() && bm.Publisher != nil {
					m.Publisher = hub.PlainPublisher(bm.Publisher.PublisherName)
				}
				if m.Language == "" {
					m.Language = bm.Language
				}
				m.RelatedItems = append(m.RelatedItems, bookContainer(*bm, item))
			}
			records = append(records, m)
		}
	}

	// Conferences: papers are part of the proceedings
	for _, c := range body.Conferences {
		for _, paper := range c.Papers {
			m := workToMetadata(paper, "conference_paper", stripHTML)
			if pm := c.Proceedings; pm != nil {
				if m.Publisher.IsZero() && pm.Publisher != nil {
					m.Publisher = hub.PlainPublisher(pm.Publisher.PublisherName)
				}
				if m.Language == "" {
					m.Language = pm.Language
				}
				if item, ok := proceedingsContainer(*pm, paper); ok {
					m.RelatedItems = append(m.RelatedItems, item)
				}
			}
			records = append(records, m)
		}
	}

	// Databases: datasets are part of the database unless it only repeats
	// the dataset title
	for _, db := range body.Databases {
		dbTitle := titleText(db.Metadata.Titles)
		for _, ds := range db.Datasets {
			m := workToMetadata(ds, "dataset", stripHTML)
			if m.Publisher.IsZero() && db.Metadata.Publisher != nil {
				m.Publisher = hub.PlainPublisher(db.Metadata.Publisher.PublisherName)
			}
			if m.Language == "" {
				m.Language = db.Metadata.Language
			}
			if dbTitle != "" && dbTitle != m.MainTitle() {
				m.RelatedItems = append(m.RelatedItems, hub.RelatedItem{
					RelationType:    "IsPartOf",
					RelatedItemType: "Collection",
					Titles:          hub.List[hub.Title]{{Title: dbTitle}},
				})
			}
			records = append(records, m)
		}
	}

	for _, d := range body.Dissertations {
		records = append(records, workToMetadata(d, "dissertation", stripHTML))
	}
	for _, pc := range body.PostedContent {
		records = append(records, workToMetadata(pc, "posted_content", stripHTML))
	}
	for _, pr := range body.PeerReviews {
		records = append(records, workToMetadata(pr, "peer_review", stripHTML))
	}
	for _, rp := range body.ReportPapers {
		records = append(records, workToMetadata(rp.Metadata, "report_paper", stripHTML))
	}

	return records
}

// workToMetadata converts one work element. kind is the Crossref work type.
func workToMetadata(w xmlWork, kind string, stripHTML bool) *hub.Metadata {
	m := &hub.Metadata{
		Types:    &hub.Types{ResourceTypeGeneral: hub.GeneralFromCrossref(kind)},
		Language: w.Language,
	}

	if w.DoiData != nil {
		m.DOI = hub.NormalizeDOI(w.DoiData.DOI)
		m.URL = strings.TrimSpace(w.DoiData.Resource)
	}

	for _, t := range w.Titles {
		if title := faceText(t.Title.Inner); title != "" {
			m.Titles = append(m.Titles, hub.Title{Title: title})
		}
		if t.Subtitle != nil {
			if sub := faceText(t.Subtitle.Inner); sub != "" {
				m.Titles = append(m.Titles, hub.Title{Title: sub, TitleType: "Subtitle"})
			}
		}
		if t.OriginalLanguageTitle != nil {
			if orig := faceText(t.OriginalLanguageTitle.Inner); orig != "" {
				m.Titles = append(m.Titles, hub.Title{Title: orig, TitleType: "TranslatedTitle", Lang: t.OriginalLanguageTitle.Language})
			}
		}
	}

	if w.Contributors != nil {
		for _, c := range w.Contributors.Items {
			creator, ok := contributorToCreator(c)
			if !ok {
				continue
			}
			switch role := strings.ToLower(c.Role); role {
			case "author", "":
				m.Creators = append(m.Creators, creator)
			case "editor":
				m.Contributors = append(m.Contributors, creator.AsContributor("Editor"))
			case "translator":
				m.Contributors = append(m.Contributors, creator.AsContributor("Translator"))
			default:
				m.Contributors = append(m.Contributors, creator.AsContributor("Other"))
			}
		}
	}
	if w.PersonName != nil {
		if creator, ok := contributorToCreator(*w.PersonName); ok {
			m.Creators = append(m.Creators, creator)
		}
	}

	// The work's own dates, most specific element first
	switch {
	case w.PostedDate != nil:
		m.SetIssued(dateString(*w.PostedDate))
	case w.ApprovalDate != nil:
		m.SetIssued(dateString(*w.ApprovalDate))
	case w.ReviewDate != nil:
		m.SetIssued(dateString(*w.ReviewDate))
	case w.DatabaseDate != nil:
		m.SetIssued(dateString(*w.DatabaseDate))
	case len(w.PublicationDates) > 0:
		m.SetIssued(dateString(preferredDate(w.PublicationDates)))
	}

	for _, a := range w.Abstracts {
		text := a.Inner
		if stripHTML {
			text = helpers.StripHTML(text)
		}
		if text = strings.TrimSpace(text); text != "" {
			m.Descriptions = append(m.Descriptions, hub.Description{Description: text, DescriptionType: "Abstract"})
		}
	}
	if d := strings.TrimSpace(w.Description); d != "" {
		m.Descriptions = append(m.Descriptions, hub.Description{Description: d, DescriptionType: "Other"})
	}

	switch {
	case w.Publisher != nil:
		m.Publisher = hub.PlainPublisher(w.Publisher.PublisherName)
	case w.Institution != nil:
		m.Publisher = hub.PlainPublisher(w.Institution.Name)
	}

	// Book ISBNs identify the work itself only when it is the book
	if kind == "book" {
		for _, isbn := range w.ISBN {
			if v := strings.TrimSpace(isbn.Value); v != "" {
				m.Identifiers = append(m.Identifiers, hub.AlternateIdentifier{Identifier: v, IdentifierType: "ISBN"})
			}
		}
	}

	m.Version = strings.TrimSpace(w.EditionNumber)

	if g := strings.TrimSpace(w.GroupTitle); g != "" {
		m.Subjects = append(m.Subjects, hub.Subject{Subject: g})
	}

	for _, p := range w.Programs {
		m.FundingReferences = append(m.FundingReferences, fundingReferences(p)...)
		for _, lr := range p.LicenseRefs {
			if uri := strings.TrimSpace(lr.Value); uri != "" {
				m.RightsList = append(m.RightsList, hub.Rights{RightsURI: uri})
			}
		}
		m.RelatedIdentifiers = append(m.RelatedIdentifiers, relatedIdentifiers(p)...)
	}

	for _, c := range w.Citations {
		if doi := hub.NormalizeDOI(c.DOI); doi != "" {
			m.RelatedIdentifiers = append(m.RelatedIdentifiers, hub.RelatedIdentifier{
				RelatedIdentifier:     doi,
				RelatedIdentifierType: "DOI",
				RelationType:          "References",
			})
		}
	}

	return m
}

// contributorToCreator converts a person_name or organization element.
func contributorToCreator(c xmlContributor) (hub.Creator, bool) {
	if c.XMLName.Local == "organization" {
		name := strings.TrimSpace(c.Name)
		return hub.Creator{Name: name, NameType: hub.NameTypeOrganizational}, name != ""
	}

	given := strings.TrimSpace(c.GivenName)
	family := strings.TrimSpace(c.Surname)
	if given == "" && family == "" {
		return hub.Creator{}, false
	}
	creator := hub.PersonFromParts(given, family)
	if suffix := strings.TrimSpace(c.Suffix); suffix != "" {
		creator.Name += ", " + suffix
	}

	if c.ORCID != nil {
		if orcid := hub.NormalizeORCID(c.ORCID.Value); orcid != "" {
			creator.NameIdentifiers = append(creator.NameIdentifiers, hub.NameIdentifier{
				NameIdentifier:       "https://orcid.org/" + orcid,
				NameIdentifierScheme: "ORCID",
				SchemeURI:            "https://orcid.org",
			})
		}
	}

	for _, a := range c.Affiliation {
		if a = strings.TrimSpace(a); a != "" {
			creator.Affiliation = append(creator.Affiliation, hub.Affiliation{Name: a})
		}
	}
	for _, inst := range c.Institutions {
		creator.Affiliation = append(creator.Affiliation, institutionToAffiliation(inst))
	}
	return creator, true
}

// institutionToAffiliation keeps the first institution_id whose type has a
// DataCite scheme.
func institutionToAffiliation(inst xmlInstitution) hub.Affiliation {
	a := hub.Affiliation{Name: strings.TrimSpace(inst.Name)}
	for _, id := range inst.IDs {
		value := strings.TrimSpace(id.Value)
		switch strings.ToLower(id.Type) {
		case "ror":
			a.AffiliationIdentifier = value
			a.AffiliationIdentifierScheme = "ROR"
			a.SchemeURI = "https://ror.org"
		case "isni":
			a.AffiliationIdentifier = value
			a.AffiliationIdentifierScheme = "ISNI"
			a.SchemeURI = "http://isni.org/isni/"
		case "wikidata":
			a.AffiliationIdentifier = value
			a.AffiliationIdentifierScheme = "Wikidata"
		default:
			continue
		}
		break
	}
	return a
}

// journalContainer builds the journal related item of an article.
func journalContainer(j xmlJournal, article xmlWork) (hub.RelatedItem, bool) {
	item := hub.RelatedItem{
		RelationType:    "IsPublishedIn",
		RelatedItemType: "Journal",
	}
	if t := strings.TrimSpace(j.Metadata.FullTitle); t != "" {
		item.Titles = hub.List[hub.Title]{{Title: t}}
	}
	for _, issn := range j.Metadata.ISSN {
		if v := strings.TrimSpace(issn.Value); v != "" {
			item.RelatedItemIdentifier = &hub.RelatedItemIdentifier{RelatedItemIdentifier: v, RelatedItemIdentifierType: "ISSN"}
			break
		}
	}
	if j.Issue != nil {
		item.Volume = strings.TrimSpace(j.Issue.Volume)
		item.Issue = strings.TrimSpace(j.Issue.Issue)
	}
	addPages(&item, article.Pages)

	if item.Titles == nil && item.RelatedItemIdentifier == nil {
		return item, false
	}
	return item, true
}

// bookContainer builds the book related item of a chapter.
func bookContainer(bm xmlWork, chapter xmlWork) hub.RelatedItem {
	item := hub.RelatedItem{
		RelationType:    "IsPublishedIn",
		RelatedItemType: "Book",
	}
	if t := titleText(bm.Titles); t != "" {
		item.Titles = hub.List[hub.Title]{{Title: t}}
	}
	switch {
	case len(bm.ISBN) > 0:
		item.RelatedItemIdentifier = &hub.RelatedItemIdentifier{RelatedItemIdentifier: strings.TrimSpace(bm.ISBN[0].Value), RelatedItemIdentifierType: "ISBN"}
	case bm.DoiData != nil && bm.DoiData.DOI != "":
		item.RelatedItemIdentifier = &hub.RelatedItemIdentifier{RelatedItemIdentifier: hub.NormalizeDOI(bm.DoiData.DOI), RelatedItemIdentifierType: "DOI"}
	}
	item.Edition = strings.TrimSpace(bm.EditionNumber)
	addPages(&item, chapter.Pages)
	return item
}

// proceedingsContainer builds the proceedings related item of a paper.
func proceedingsContainer(pm xmlProceedingsMetadata, paper xmlWork) (hub.RelatedItem, bool) {
	title := strings.TrimSpace(pm.ProceedingsTitle)
	if title == "" {
		return hub.RelatedItem{}, false
	}
	item := hub.RelatedItem{
		RelationType:    "IsPublishedIn",
		RelatedItemType: "ConferenceProceeding",
		Titles:          hub.List[hub.Title]{{Title: title}},
	}
	if len(pm.ISBN) > 0 {
		item.RelatedItemIdentifier = &hub.RelatedItemIdentifier{RelatedItemIdentifier: strings.TrimSpace(pm.ISBN[0].Value), RelatedItemIdentifierType: "ISBN"}
	}
	addPages(&item, paper.Pages)
	return item, true
}

func addPages(item *hub.RelatedItem, pages *xmlPages) {
	if pages == nil {
		return
	}
	item.FirstPage = strings.TrimSpace(pages.FirstPage)
	item.LastPage = strings.TrimSpace(pages.LastPage)
}

// fundingReferences reads an fr:program. Assertions are grouped in
// fundgroups; a program without groups is one group.
func fundingReferences(p xmlProgram) []hub.FundingReference {
	if len(p.Assertions) == 0 {
		return nil
	}

	var groups [][]xmlAssertion
	for _, a := range p.Assertions {
		if a.Name == "fundgroup" {
			groups = append(groups, a.Assertions)
		}
	}
	if len(groups) == 0 {
		groups = [][]xmlAssertion{p.Assertions}
	}

	var refs []hub.FundingReference
	for _, group := range groups {
		var fr hub.FundingReference
		for _, a := range group {
			switch a.Name {
			case "funder_name":
				fr.FunderName = strings.TrimSpace(a.Value)
				for _, nested := range a.Assertions {
					if nested.Name == "funder_identifier" {
						fr.FunderIdentifier = strings.TrimSpace(nested.Value)
					}
				}
			case "funder_identifier":
				fr.FunderIdentifier = strings.TrimSpace(a.Value)
			case "award_number":
				fr.AwardNumber = strings.TrimSpace(a.Value)
			}
		}
		if fr.FunderIdentifier != "" {
			fr.FunderIdentifierType = funderIdentifierType(fr.FunderIdentifier)
		}
		if fr.FunderName != "" || fr.FunderIdentifier != "" {
			refs = append(refs, fr)
		}
	}
	return refs
}

func funderIdentifierType(id string) string {
	switch {
	case strings.Contains(id, "10.13039/"):
		return "Crossref Funder ID"
	case strings.Contains(id, "ror.org/"):
		return "ROR"
	default:
		return "Other"
	}
}

// relatedIdentifiers reads a rel:program.
func relatedIdentifiers(p xmlProgram) []hub.RelatedIdentifier {
	var ids []hub.RelatedIdentifier
	for _, item := range p.RelatedItems {
		for _, rel := range item.Relations {
			if !strings.HasSuffix(rel.XMLName.Local, "_work_relation") {
				continue
			}
			value := strings.TrimSpace(rel.Value)
			if value == "" || rel.RelationshipType == "" {
				continue
			}
			idType := identifierTypeFromCrossref(rel.IdentifierType)
			if idType == "DOI" {
				value = hub.NormalizeDOI(value)
			}
			ids = append(ids, hub.RelatedIdentifier{
				RelatedIdentifier:     value,
				RelatedIdentifierType: idType,
				RelationType:          upperFirst(hub.NormalizeRelationType(rel.RelationshipType)),
			})
		}
	}
	return ids
}

// upperFirst spells relation types DataCite lacks (hasPreprint) in its style.
func upperFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// crossrefIdentifierTypes maps Crossref identifier-type values to DataCite
// relatedIdentifierType values.
var crossrefIdentifierTypes = map[string]string{
	"doi":   "DOI",
	"issn":  "ISSN",
	"isbn":  "ISBN",
	"uri":   "URL",
	"pmid":  "PMID",
	"pmcid": "PMCID",
	"arxiv": "arXiv",
	"ark":   "ARK",
	"purl":  "PURL",
	"urn":   "URN",
	"other": "Other",
}

func identifierTypeFromCrossref(t string) string {
	if v, ok := crossrefIdentifierTypes[strings.ToLower(t)]; ok {
		return v
	}
	return "URL"
}

// preferredDate picks the online publication date when there is one.
func preferredDate(dates []xmlDate) xmlDate {
	for _, d := range dates {
		if d.MediaType == "online" {
			return d
		}
	}
	return dates[0]
}

// dateString formats a Crossref date as ISO 8601 with the precision given.
func dateString(d xmlDate) string {
	var parts []int
	for _, s := range []string{d.Year, d.Month, d.Day} {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil || n <= 0 {
			break
		}
		parts = append(parts, n)
	}
	return hub.FormatDateParts(parts, "-")
}

func titleText(titles []xmlTitles) string {
	for _, t := range titles {
		if s := faceText(t.Title.Inner); s != "" {
			return s
		}
	}
	return ""
}

// faceText strips face markup and entities from title text.
func faceText(inner string) string {
	return helpers.StripHTML(inner)
}
