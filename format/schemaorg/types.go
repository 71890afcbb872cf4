package schemaorg

// Document is the JSON-LD object written for one resource. Parsing reads
// into a generic map instead since producers vary the shape of almost every
// property.
type Document struct {
	Context         string          `json:"@context"`
	Type            string          `json:"@type"`
	ID              string          `json:"@id,omitempty"`
	Identifier      []PropertyValue `json:"identifier,omitempty"`
	URL             string          `json:"url,omitempty"`
	AdditionalType  string          `json:"additionalType,omitempty"`
	Name            string          `json:"name,omitempty"`
	AlternateName   []string        `json:"alternateName,omitempty"`
	Author          []Agent         `json:"author,omitempty"`
	Editor          []Agent         `json:"editor,omitempty"`
	Contributor     []Agent         `json:"contributor,omitempty"`
	Description     string          `json:"description,omitempty"`
	Keywords        string          `json:"keywords,omitempty"`
	InLanguage      string          `json:"inLanguage,omitempty"`
	DateCreated     string          `json:"dateCreated,omitempty"`
	DatePublished   string          `json:"datePublished,omitempty"`
	DateModified    string          `json:"dateModified,omitempty"`
	Version         string          `json:"version,omitempty"`
	License         []string        `json:"license,omitempty"`
	Publisher       *Agent          `json:"publisher,omitempty"`
	IsPartOf        *Part           `json:"isPartOf,omitempty"`
	PageStart       string          `json:"pageStart,omitempty"`
	PageEnd         string          `json:"pageEnd,omitempty"`
	ISBN            string          `json:"isbn,omitempty"`
	Citation        []Reference     `json:"citation,omitempty"`
	HasPart         []Reference     `json:"hasPart,omitempty"`
	IsBasedOn       []Reference     `json:"isBasedOn,omitempty"`
	SpatialCoverage []Place         `json:"spatialCoverage,omitempty"`
	Funder          []Agent         `json:"funder,omitempty"`
	ContentURL      []string        `json:"contentUrl,omitempty"`
	EncodingFormat  []string        `json:"encodingFormat,omitempty"`
	ContentSize     []string        `json:"contentSize,omitempty"`
	SchemaVersion   string          `json:"schemaVersion,omitempty"`
}

// Agent is a Person or Organization.
type Agent struct {
	Type        string  `json:"@type"`
	ID          string  `json:"@id,omitempty"`
	Name        string  `json:"name,omitempty"`
	GivenName   string  `json:"givenName,omitempty"`
	FamilyName  string  `json:"familyName,omitempty"`
	Affiliation []Agent `json:"affiliation,omitempty"`
}

// PropertyValue represents a property-value pair for identifiers.
type PropertyValue struct {
	Type       string `json:"@type"`
	PropertyID string `json:"propertyID,omitempty"`
	Value      string `json:"value,omitempty"`
}

// Part is one level of the isPartOf chain: a PublicationIssue inside a
// PublicationVolume inside a Periodical, or a Book or CreativeSeries.
type Part struct {
	Type         string `json:"@type"`
	ID           string `json:"@id,omitempty"`
	Name         string `json:"name,omitempty"`
	ISSN         string `json:"issn,omitempty"`
	ISBN         string `json:"isbn,omitempty"`
	IssueNumber  string `json:"issueNumber,omitempty"`
	VolumeNumber string `json:"volumeNumber,omitempty"`
	IsPartOf     *Part  `json:"isPartOf,omitempty"`
}

// Reference points at a related work by URL.
type Reference struct {
	Type string `json:"@type"`
	ID   string `json:"@id"`
}

// Place is a spatialCoverage entry.
type Place struct {
	Type string `json:"@type"`
	Name string `json:"name,omitempty"`
	Geo  any    `json:"geo,omitempty"`
}

// GeoCoordinates is a point.
type GeoCoordinates struct {
	Type      string  `json:"@type"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// GeoShape is a bounding box written "south west north east".
type GeoShape struct {
	Type string `json:"@type"`
	Box  string `json:"box"`
}

// containerTypes maps isPartOf @type values to relatedItemType.
var containerTypes = map[string]string{
	"Periodical":        "Journal",
	"PublicationVolume": "Journal",
	"PublicationIssue":  "Journal",
	"Book":              "Book",
	"CreativeSeries":    "Series",
	"BookSeries":        "Series",
	"DataCatalog":       "Collection",
	"Collection":        "Collection",
}

// partTypeFor maps a relatedItemType back to the outermost isPartOf @type.
func partTypeFor(relatedItemType string) string {
	switch relatedItemType {
	case "Journal", "":
		return "Periodical"
	case "Book", "ConferenceProceeding":
		return "Book"
	case "Collection":
		return "Collection"
	default:
		return "CreativeSeries"
	}
}
