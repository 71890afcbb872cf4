package hub

import (
	"strings"
)

// typeRow crosswalks one resourceTypeGeneral to the other vocabularies.
type typeRow struct {
	general   string
	schemaOrg string
	citeproc  string
	bibtex    string
	ris       string
}

// Order matters for reverse lookups: the first row matching wins.
var typeTable = []typeRow{
	{"JournalArticle", "ScholarlyArticle", "article-journal", "article", "JOUR"},
	{"Dataset", "Dataset", "dataset", "misc", "DATA"},
	{"Software", "SoftwareSourceCode", "software", "misc", "COMP"},
	{"Book", "Book", "book", "book", "BOOK"},
	{"BookChapter", "Chapter", "chapter", "inbook", "CHAP"},
	{"ConferencePaper", "Article", "paper-conference", "inproceedings", "CPAPER"},
	{"ConferenceProceeding", "Book", "book", "proceedings", "CONF"},
	{"Dissertation", "Thesis", "thesis", "phdthesis", "THES"},
	{"Report", "Report", "report", "techreport", "RPRT"},
	{"Preprint", "ScholarlyArticle", "article", "unpublished", "UNPB"},
	{"Image", "ImageObject", "graphic", "misc", "FIGURE"},
	{"Audiovisual", "MediaObject", "motion_picture", "misc", "MPCT"},
	{"Sound", "AudioObject", "song", "misc", "SOUND"},
	{"Journal", "Periodical", "periodical", "misc", "JFULL"},
	{"DataPaper", "ScholarlyArticle", "article-journal", "article", "JOUR"},
	{"ComputationalNotebook", "SoftwareSourceCode", "software", "misc", "COMP"},
	{"PeerReview", "Review", "review", "misc", "GEN"},
	{"Standard", "CreativeWork", "standard", "misc", "STAND"},
	{"Event", "Event", "event", "misc", "GEN"},
	{"Collection", "Collection", "collection", "misc", "GEN"},
	{"Service", "Service", "document", "misc", "GEN"},
	{"Text", "CreativeWork", "document", "misc", "GEN"},
	{"InteractiveResource", "CreativeWork", "webpage", "misc", "GEN"},
	{"Model", "CreativeWork", "document", "misc", "GEN"},
	{"Workflow", "CreativeWork", "document", "misc", "GEN"},
	{"PhysicalObject", "CreativeWork", "document", "misc", "GEN"},
	{"OutputManagementPlan", "CreativeWork", "document", "misc", "GEN"},
	{"Other", "CreativeWork", "article", "misc", "GEN"},
}

// TypesFor fills every vocabulary from a resourceTypeGeneral, keeping the
// free-text resourceType.
func TypesFor(general, resourceType string) *Types {
	t := &Types{ResourceTypeGeneral: general, ResourceType: resourceType}
	for _, row := range typeTable {
		if row.general == general {
			t.SchemaOrg = row.schemaOrg
			t.Citeproc = row.citeproc
			t.Bibtex = row.bibtex
			t.RIS = row.ris
			return t
		}
	}
	t.SchemaOrg = "CreativeWork"
	t.Citeproc = "article"
	t.Bibtex = "misc"
	t.RIS = "GEN"
	return t
}

// GeneralFromSchemaOrg maps a schema.org @type to resourceTypeGeneral.
func GeneralFromSchemaOrg(s string) string {
	return lookupGeneral(s, func(r typeRow) string { return r.schemaOrg })
}

// GeneralFromCiteproc maps a citeproc type to resourceTypeGeneral.
func GeneralFromCiteproc(s string) string {
	return lookupGeneral(s, func(r typeRow) string { return r.citeproc })
}

// GeneralFromBibtex maps a BibTeX entry type to resourceTypeGeneral.
func GeneralFromBibtex(s string) string {
	switch strings.ToLower(s) {
	case "mastersthesis":
		return "Dissertation"
	case "incollection":
		return "BookChapter"
	}
	return lookupGeneral(s, func(r typeRow) string { return r.bibtex })
}

// GeneralFromRIS maps a RIS TY value to resourceTypeGeneral.
func GeneralFromRIS(s string) string {
	switch strings.ToUpper(s) {
	case "EJOUR", "MGZN", "NEWS":
		return "JournalArticle"
	case "EBOOK":
		return "Book"
	case "ECHAP":
		return "BookChapter"
	case "DBASE":
		return "Dataset"
	}
	return lookupGeneral(s, func(r typeRow) string { return r.ris })
}

// GeneralFromCrossref maps a Crossref work type to resourceTypeGeneral.
func GeneralFromCrossref(s string) string {
	switch strings.ToLower(s) {
	case "journal-article", "journal_article":
		return "JournalArticle"
	case "book", "monograph", "edited-book", "edited_book":
		return "Book"
	case "book-chapter", "book_chapter", "chapter", "content_item":
		return "BookChapter"
	case "proceedings-article", "conference_paper":
		return "ConferencePaper"
	case "proceedings", "conference":
		return "ConferenceProceeding"
	case "dissertation":
		return "Dissertation"
	case "report", "report_paper":
		return "Report"
	case "posted-content", "posted_content":
		return "Preprint"
	case "dataset", "database":
		return "Dataset"
	case "peer-review", "peer_review":
		return "PeerReview"
	case "standard":
		return "Standard"
	case "journal":
		return "Journal"
	case "component":
		return "Other"
	default:
		return "Text"
	}
}

func lookupGeneral(s string, field func(typeRow) string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	for _, row := range typeTable {
		if strings.EqualFold(field(row), s) {
			return row.general
		}
	}
	return "Other"
}
