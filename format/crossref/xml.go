package crossref

import "encoding/xml"

// The types below read both deposit batches and unixref results, whose
// record elements share one shape. Elements carrying a namespace prefix
// (jats:, fr:, ai:, rel:) keep an untagged XMLName: decoding matches them
// by local name in any namespace, and encoding writes the prefixed name set
// by the serializer.

type xmlDoiBatch struct {
	XMLName   xml.Name `xml:"doi_batch"`
	Version   string   `xml:"version,attr,omitempty"`
	Xmlns     string   `xml:"xmlns,attr,omitempty"`
	XmlnsJATS string   `xml:"xmlns:jats,attr,omitempty"`
	XmlnsFR   string   `xml:"xmlns:fr,attr,omitempty"`
	XmlnsAI   string   `xml:"xmlns:ai,attr,omitempty"`
	XmlnsRel  string   `xml:"xmlns:rel,attr,omitempty"`
	Head      xmlHead  `xml:"head"`
	Body      xmlBody  `xml:"body"`
}

type xmlHead struct {
	DoiBatchID string       `xml:"doi_batch_id"`
	Timestamp  string       `xml:"timestamp"`
	Depositor  xmlDepositor `xml:"depositor"`
	Registrant string       `xml:"registrant"`
}

type xmlDepositor struct {
	DepositorName string `xml:"depositor_name"`
	EmailAddress  string `xml:"email_address"`
}

// xmlBody is the deposit <body> or the unixref <crossref> element.
type xmlBody struct {
	Journals      []xmlJournal     `xml:"journal"`
	Books         []xmlBook        `xml:"book"`
	Conferences   []xmlConference  `xml:"conference"`
	Databases     []xmlDatabase    `xml:"database"`
	Dissertations []xmlWork        `xml:"dissertation"`
	PostedContent []xmlWork        `xml:"posted_content"`
	PeerReviews   []xmlWork        `xml:"peer_review"`
	ReportPapers  []xmlReportPaper `xml:"report-paper"`
	Error         string           `xml:"error,omitempty"`
}

type xmlJournal struct {
	Metadata xmlJournalMetadata `xml:"journal_metadata"`
	Issue    *xmlJournalIssue   `xml:"journal_issue"`
	Articles []xmlWork          `xml:"journal_article"`
}

type xmlJournalMetadata struct {
	Language    string    `xml:"language,attr,omitempty"`
	FullTitle   string    `xml:"full_title"`
	AbbrevTitle string    `xml:"abbrev_title,omitempty"`
	ISSN        []xmlISSN `xml:"issn"`
}

type xmlISSN struct {
	MediaType string `xml:"media_type,attr,omitempty"`
	Value     string `xml:",chardata"`
}

type xmlJournalIssue struct {
	PublicationDates []xmlDate `xml:"publication_date"`
	Volume           string    `xml:"journal_volume>volume,omitempty"`
	Issue            string    `xml:"issue,omitempty"`
}

type xmlBook struct {
	BookType     string    `xml:"book_type,attr,omitempty"`
	Metadata     *xmlWork  `xml:"book_metadata"`
	EditedBook   *xmlWork  `xml:"edited_book_metadata"`
	ContentItems []xmlWork `xml:"content_item"`
}

type xmlConference struct {
	Event       *xmlEventMetadata       `xml:"event_metadata"`
	Proceedings *xmlProceedingsMetadata `xml:"proceedings_metadata"`
	Papers      []xmlWork               `xml:"conference_paper"`
}

type xmlEventMetadata struct {
	ConferenceName string `xml:"conference_name"`
}

type xmlProceedingsMetadata struct {
	Language         string        `xml:"language,attr,omitempty"`
	ProceedingsTitle string        `xml:"proceedings_title"`
	Publisher        *xmlPublisher `xml:"publisher"`
	PublicationDates []xmlDate     `xml:"publication_date"`
	ISBN             []xmlISBN     `xml:"isbn"`
}

type xmlDatabase struct {
	Metadata xmlDatabaseMetadata `xml:"database_metadata"`
	Datasets []xmlWork           `xml:"dataset"`
}

type xmlDatabaseMetadata struct {
	Language  string        `xml:"language,attr,omitempty"`
	Titles    []xmlTitles   `xml:"titles"`
	Publisher *xmlPublisher `xml:"publisher"`
}

type xmlReportPaper struct {
	Metadata xmlWork `xml:"report-paper_metadata"`
}

// xmlWork is the record-level element: journal_article, content_item,
// conference_paper, dataset, dissertation, posted_content, peer_review,
// book_metadata and report-paper_metadata. Each uses a subset of the fields,
// in schema order.
type xmlWork struct {
	Language         string           `xml:"language,attr,omitempty"`
	Type             string           `xml:"type,attr,omitempty"`
	Stage            string           `xml:"stage,attr,omitempty"`
	ComponentType    string           `xml:"component_type,attr,omitempty"`
	DatasetType      string           `xml:"dataset_type,attr,omitempty"`
	GroupTitle       string           `xml:"group_title,omitempty"`
	Contributors     *xmlContributors `xml:"contributors"`
	PersonName       *xmlContributor  `xml:"person_name"`
	Titles           []xmlTitles      `xml:"titles"`
	EditionNumber    string           `xml:"edition_number,omitempty"`
	Abstracts        []xmlAbstract    `xml:"abstract"`
	PostedDate       *xmlDate         `xml:"posted_date"`
	ApprovalDate     *xmlDate         `xml:"approval_date"`
	ReviewDate       *xmlDate         `xml:"review_date"`
	DatabaseDate     *xmlDate         `xml:"database_date>publication_date"`
	PublicationDates []xmlDate        `xml:"publication_date"`
	Institution      *xmlInstitution  `xml:"institution"`
	Degree           string           `xml:"degree,omitempty"`
	ISBN             []xmlISBN        `xml:"isbn"`
	Publisher        *xmlPublisher    `xml:"publisher"`
	Pages            *xmlPages        `xml:"pages"`
	Description      string           `xml:"description,omitempty"`
	Programs         []xmlProgram     `xml:"program"`
	DoiData          *xmlDoiData      `xml:"doi_data"`
	Citations        []xmlCitation    `xml:"citation_list>citation"`
}

type xmlContributors struct {
	Items []xmlContributor `xml:",any"`
}

// xmlContributor is a person_name or organization; XMLName tells which.
type xmlContributor struct {
	XMLName      xml.Name
	Sequence     string           `xml:"sequence,attr,omitempty"`
	Role         string           `xml:"contributor_role,attr,omitempty"`
	GivenName    string           `xml:"given_name,omitempty"`
	Surname      string           `xml:"surname,omitempty"`
	Suffix       string           `xml:"suffix,omitempty"`
	Affiliation  []string         `xml:"affiliation"`
	Institutions []xmlInstitution `xml:"affiliations>institution"`
	ORCID        *xmlORCID        `xml:"ORCID"`
	Name         string           `xml:",chardata"`
}

type xmlORCID struct {
	Authenticated string `xml:"authenticated,attr,omitempty"`
	Value         string `xml:",chardata"`
}

type xmlInstitution struct {
	Name       string             `xml:"institution_name"`
	IDs        []xmlInstitutionID `xml:"institution_id"`
	Department string             `xml:"institution_department,omitempty"`
}

type xmlInstitutionID struct {
	Type  string `xml:"type,attr,omitempty"`
	Value string `xml:",chardata"`
}

type xmlTitles struct {
	Title                 xmlFaceText   `xml:"title"`
	Subtitle              *xmlFaceText  `xml:"subtitle"`
	OriginalLanguageTitle *xmlLangTitle `xml:"original_language_title"`
}

// xmlFaceText is text that may carry face markup (<i>, <sup>...).
type xmlFaceText struct {
	Inner string `xml:",innerxml"`
}

type xmlLangTitle struct {
	Language string `xml:"language,attr,omitempty"`
	Inner    string `xml:",innerxml"`
}

type xmlAbstract struct {
	XMLName xml.Name
	Inner   string `xml:",innerxml"`
}

type xmlDate struct {
	MediaType string `xml:"media_type,attr,omitempty"`
	Month     string `xml:"month,omitempty"`
	Day       string `xml:"day,omitempty"`
	Year      string `xml:"year"`
}

type xmlISBN struct {
	MediaType string `xml:"media_type,attr,omitempty"`
	Value     string `xml:",chardata"`
}

type xmlPublisher struct {
	PublisherName  string `xml:"publisher_name"`
	PublisherPlace string `xml:"publisher_place,omitempty"`
}

type xmlPages struct {
	FirstPage string `xml:"first_page"`
	LastPage  string `xml:"last_page,omitempty"`
}

// xmlProgram is fr:program (funding), ai:program (licenses) or rel:program
// (relations); the content decides which.
type xmlProgram struct {
	XMLName      xml.Name
	Name         string           `xml:"name,attr,omitempty"`
	Assertions   []xmlAssertion   `xml:"assertion"`
	LicenseRefs  []xmlLicenseRef  `xml:"license_ref"`
	RelatedItems []xmlRelatedItem `xml:"related_item"`
}

type xmlAssertion struct {
	XMLName    xml.Name
	Name       string         `xml:"name,attr"`
	Value      string         `xml:",chardata"`
	Assertions []xmlAssertion `xml:"assertion"`
}

type xmlLicenseRef struct {
	XMLName   xml.Name
	AppliesTo string `xml:"applies_to,attr,omitempty"`
	StartDate string `xml:"start_date,attr,omitempty"`
	Value     string `xml:",chardata"`
}

type xmlRelatedItem struct {
	XMLName   xml.Name
	Relations []xmlRelation `xml:",any"`
}

// xmlRelation is an inter_work_relation or intra_work_relation.
type xmlRelation struct {
	XMLName          xml.Name
	RelationshipType string `xml:"relationship-type,attr"`
	IdentifierType   string `xml:"identifier-type,attr"`
	Value            string `xml:",chardata"`
}

type xmlDoiData struct {
	DOI      string `xml:"doi"`
	Resource string `xml:"resource,omitempty"`
}

type xmlCitation struct {
	Key          string `xml:"key,attr"`
	DOI          string `xml:"doi,omitempty"`
	Unstructured string `xml:"unstructured_citation,omitempty"`
}
