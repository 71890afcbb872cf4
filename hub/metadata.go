// Package hub holds the canonical metadata model that every format adapter
// converges to, plus the identifier, relation and validation helpers that
// operate on it.
package hub

// Metadata is the normalized, format-agnostic description of a DOI.
// JSON field names follow the DataCite JSON shape.
type Metadata struct {
	DOI                string                    `json:"doi,omitempty"`
	URL                string                    `json:"url,omitempty"`
	Types              *Types                    `json:"types,omitempty"`
	Creators           List[Creator]             `json:"creators,omitempty"`
	Contributors       List[Contributor]         `json:"contributors,omitempty"`
	Titles             List[Title]               `json:"titles,omitempty"`
	Publisher          Publisher                 `json:"publisher,omitzero"`
	PublicationYear    int                       `json:"publicationYear,omitempty"`
	Subjects           List[Subject]             `json:"subjects,omitempty"`
	Dates              List[Date]                `json:"dates,omitempty"`
	Language           string                    `json:"language,omitempty"`
	Identifiers        List[AlternateIdentifier] `json:"identifiers,omitempty"`
	RelatedIdentifiers List[RelatedIdentifier]   `json:"relatedIdentifiers,omitempty"`
	RelatedItems       List[RelatedItem]         `json:"relatedItems,omitempty"`
	Sizes              List[string]              `json:"sizes,omitempty"`
	Formats            List[string]              `json:"formats,omitempty"`
	Version            string                    `json:"version,omitempty"`
	RightsList         List[Rights]              `json:"rightsList,omitempty"`
	Descriptions       List[Description]         `json:"descriptions,omitempty"`
	GeoLocations       List[GeoLocation]         `json:"geoLocations,omitempty"`
	FundingReferences  List[FundingReference]    `json:"fundingReferences,omitempty"`
	Container          *Container                `json:"container,omitempty"`
	SchemaVersion      string                    `json:"schemaVersion,omitempty"`
	ContentURL         List[string]              `json:"contentUrl,omitempty"`

	// problems found while normalizing input; reported by Validate.
	problems []FieldError
}

// Types groups the resource type in each vocabulary the adapters speak.
type Types struct {
	ResourceTypeGeneral string `json:"resourceTypeGeneral,omitempty"`
	ResourceType        string `json:"resourceType,omitempty"`
	SchemaOrg           string `json:"schemaOrg,omitempty"`
	Bibtex              string `json:"bibtex,omitempty"`
	Citeproc            string `json:"citeproc,omitempty"`
	RIS                 string `json:"ris,omitempty"`
}

// Creator is a person or organization responsible for the resource.
type Creator struct {
	Name            string               `json:"name,omitempty"`
	NameType        string               `json:"nameType,omitempty"`
	GivenName       string               `json:"givenName,omitempty"`
	FamilyName      string               `json:"familyName,omitempty"`
	NameIdentifiers List[NameIdentifier] `json:"nameIdentifiers,omitempty"`
	Affiliation     List[Affiliation]    `json:"affiliation,omitempty"`
}

// Contributor is a creator with a contributorType.
type Contributor struct {
	Name            string               `json:"name,omitempty"`
	NameType        string               `json:"nameType,omitempty"`
	GivenName       string               `json:"givenName,omitempty"`
	FamilyName      string               `json:"familyName,omitempty"`
	NameIdentifiers List[NameIdentifier] `json:"nameIdentifiers,omitempty"`
	Affiliation     List[Affiliation]    `json:"affiliation,omitempty"`
	ContributorType string               `json:"contributorType,omitempty"`
}

// NameIdentifier identifies a creator or contributor (ORCID, ROR, ISNI...).
type NameIdentifier struct {
	NameIdentifier       string `json:"nameIdentifier,omitempty"`
	NameIdentifierScheme string `json:"nameIdentifierScheme,omitempty"`
	SchemeURI            string `json:"schemeUri,omitempty"`
}

// Title is a name of the resource.
type Title struct {
	Title     string `json:"title,omitempty"`
	TitleType string `json:"titleType,omitempty"`
	Lang      string `json:"lang,omitempty"`
}

// Subject is a keyword, classification code or key phrase.
type Subject struct {
	Subject            string `json:"subject,omitempty"`
	SubjectScheme      string `json:"subjectScheme,omitempty"`
	SchemeURI          string `json:"schemeUri,omitempty"`
	ValueURI           string `json:"valueUri,omitempty"`
	ClassificationCode string `json:"classificationCode,omitempty"`
	Lang               string `json:"lang,omitempty"`
}

// Date is a dated event in the resource's life.
type Date struct {
	Date            string `json:"date,omitempty"`
	DateType        string `json:"dateType,omitempty"`
	DateInformation string `json:"dateInformation,omitempty"`
}

// AlternateIdentifier is a non-DOI identifier of the same resource.
type AlternateIdentifier struct {
	Identifier     string `json:"identifier,omitempty"`
	IdentifierType string `json:"identifierType,omitempty"`
}

// RelatedIdentifier links the resource to another identified resource.
type RelatedIdentifier struct {
	RelatedIdentifier     string `json:"relatedIdentifier,omitempty"`
	RelatedIdentifierType string `json:"relatedIdentifierType,omitempty"`
	RelationType          string `json:"relationType,omitempty"`
	RelatedMetadataScheme string `json:"relatedMetadataScheme,omitempty"`
	SchemeURI             string `json:"schemeUri,omitempty"`
	SchemeType            string `json:"schemeType,omitempty"`
	ResourceTypeGeneral   string `json:"resourceTypeGeneral,omitempty"`
}

// RelatedItem describes a related resource inline, e.g. the journal an
// article was published in.
type RelatedItem struct {
	RelationType          string                 `json:"relationType,omitempty"`
	RelatedItemType       string                 `json:"relatedItemType,omitempty"`
	RelatedItemIdentifier *RelatedItemIdentifier `json:"relatedItemIdentifier,omitempty"`
	Creators              List[Creator]          `json:"creators,omitempty"`
	Titles                List[Title]            `json:"titles,omitempty"`
	PublicationYear       string                 `json:"publicationYear,omitempty"`
	Volume                string                 `json:"volume,omitempty"`
	Issue                 string                 `json:"issue,omitempty"`
	Number                string                 `json:"number,omitempty"`
	NumberType            string                 `json:"numberType,omitempty"`
	FirstPage             string                 `json:"firstPage,omitempty"`
	LastPage              string                 `json:"lastPage,omitempty"`
	Publisher             string                 `json:"publisher,omitempty"`
	Edition               string                 `json:"edition,omitempty"`
	Contributors          List[Contributor]      `json:"contributors,omitempty"`
}

// RelatedItemIdentifier identifies a related item.
type RelatedItemIdentifier struct {
	RelatedItemIdentifier     string `json:"relatedItemIdentifier,omitempty"`
	RelatedItemIdentifierType string `json:"relatedItemIdentifierType,omitempty"`
}

// Rights is a license or rights statement.
type Rights struct {
	Rights                 string `json:"rights,omitempty"`
	RightsURI              string `json:"rightsUri,omitempty"`
	RightsIdentifier       string `json:"rightsIdentifier,omitempty"`
	RightsIdentifierScheme string `json:"rightsIdentifierScheme,omitempty"`
	SchemeURI              string `json:"schemeUri,omitempty"`
	Lang                   string `json:"lang,omitempty"`
}

// Description is an abstract, methods statement or other free text.
type Description struct {
	Description     string `json:"description,omitempty"`
	DescriptionType string `json:"descriptionType,omitempty"`
	Lang            string `json:"lang,omitempty"`
}

// FundingReference credits a funder and optional award.
type FundingReference struct {
	FunderName           string `json:"funderName,omitempty"`
	FunderIdentifier     string `json:"funderIdentifier,omitempty"`
	FunderIdentifierType string `json:"funderIdentifierType,omitempty"`
	AwardNumber          string `json:"awardNumber,omitempty"`
	AwardURI             string `json:"awardUri,omitempty"`
	AwardTitle           string `json:"awardTitle,omitempty"`
}

// Container summarizes the periodical, series or book the resource is part of.
type Container struct {
	Type           string `json:"type,omitempty"`
	Identifier     string `json:"identifier,omitempty"`
	IdentifierType string `json:"identifierType,omitempty"`
	Title          string `json:"title,omitempty"`
	Volume         string `json:"volume,omitempty"`
	Issue          string `json:"issue,omitempty"`
	FirstPage      string `json:"firstPage,omitempty"`
	LastPage       string `json:"lastPage,omitempty"`
}

// MainTitle returns the first title without a titleType, falling back to
// the first title of any type.
func (m *Metadata) MainTitle() string {
	for _, t := range m.Titles {
		if t.TitleType == "" && t.Title != "" {
			return t.Title
		}
	}
	if len(m.Titles) > 0 {
		return m.Titles[0].Title
	}
	return ""
}

// Abstract returns the first description of type Abstract.
func (m *Metadata) Abstract() string {
	for _, d := range m.Descriptions {
		if d.DescriptionType == "Abstract" {
			return d.Description
		}
	}
	return ""
}

// DateOf returns the first date with the given dateType.
func (m *Metadata) DateOf(dateType string) string {
	for _, d := range m.Dates {
		if d.DateType == dateType {
			return d.Date
		}
	}
	return ""
}

// Problems returns the issues recorded while the metadata was normalized
// from its input format.
func (m *Metadata) Problems() []FieldError {
	return m.problems
}

// AddProblem records a normalization issue so Validate can report it.
func (m *Metadata) AddProblem(e FieldError) {
	m.problems = append(m.problems, e)
}

// Clone returns a deep copy made through the JSON form. Problems are kept.
func (m *Metadata) Clone() *Metadata {
	if m == nil {
		return nil
	}
	data, err := m.MarshalJSON()
	if err != nil {
		return nil
	}
	out := &Metadata{}
	if err := out.UnmarshalJSON(data); err != nil {
		return nil
	}
	out.problems = append([]FieldError(nil), m.problems...)
	return out
}

// Overlay copies every field set in o onto m. Lists replace, they do not
// merge. Problems from o are kept.
func (m *Metadata) Overlay(o *Metadata) {
	if o == nil {
		return
	}
	if o.DOI != "" {
		m.DOI = o.DOI
	}
	if o.URL != "" {
		m.URL = o.URL
	}
	if o.Types != nil {
		m.Types = o.Types
	}
	if o.Creators != nil {
		m.Creators = o.Creators
	}
	if o.Contributors != nil {
		m.Contributors = o.Contributors
	}
	if o.Titles != nil {
		m.Titles = o.Titles
	}
	if !o.Publisher.IsZero() {
		m.Publisher = o.Publisher
	}
	if o.PublicationYear != 0 {
		m.PublicationYear = o.PublicationYear
	}
	if o.Subjects != nil {
		m.Subjects = o.Subjects
	}
	if o.Dates != nil {
		m.Dates = o.Dates
	}
	if o.Language != "" {
		m.Language = o.Language
	}
	if o.Identifiers != nil {
		m.Identifiers = o.Identifiers
	}
	if o.RelatedIdentifiers != nil {
		m.RelatedIdentifiers = o.RelatedIdentifiers
	}
	if o.RelatedItems != nil {
		m.RelatedItems = o.RelatedItems
	}
	if o.Sizes != nil {
		m.Sizes = o.Sizes
	}
	if o.Formats != nil {
		m.Formats = o.Formats
	}
	if o.Version != "" {
		m.Version = o.Version
	}
	if o.RightsList != nil {
		m.RightsList = o.RightsList
	}
	if o.Descriptions != nil {
		m.Descriptions = o.Descriptions
	}
	if o.GeoLocations != nil {
		m.GeoLocations = o.GeoLocations
	}
	if o.FundingReferences != nil {
		m.FundingReferences = o.FundingReferences
	}
	if o.Container != nil {
		m.Container = o.Container
	}
	if o.SchemaVersion != "" {
		m.SchemaVersion = o.SchemaVersion
	}
	if o.ContentURL != nil {
		m.ContentURL = o.ContentURL
	}
	m.problems = append(m.problems, o.problems...)
}
