package datacite

import "encoding/xml"

const (
	xmlLangNS = "http://www.w3.org/XML/1998/namespace"
	xsiNS     = "http://www.w3.org/2001/XMLSchema-instance"
)

// XML types shared by both kernel generations. Kernel-specific shapes
// (point and box text in kernel-3, sub-elements in kernel-4) sit side by
// side and the kernel adapter picks the one it understands.

type xmlResource struct {
	XMLName              xml.Name                 `xml:"resource"`
	Xmlns                string                   `xml:"xmlns,attr,omitempty"`
	XmlnsXsi             string                   `xml:"xmlns:xsi,attr,omitempty"`
	XsiSchemaLocation    string                   `xml:"xsi:schemaLocation,attr,omitempty"`
	Identifier           xmlIdentifier            `xml:"identifier"`
	Creators             []xmlCreator             `xml:"creators>creator"`
	Titles               []xmlTitle               `xml:"titles>title"`
	Publisher            *xmlPublisher            `xml:"publisher"`
	PublicationYear      string                   `xml:"publicationYear,omitempty"`
	ResourceType         *xmlResourceType         `xml:"resourceType"`
	Subjects             []xmlSubject             `xml:"subjects>subject"`
	Contributors         []xmlContributor         `xml:"contributors>contributor"`
	Dates                []xmlDate                `xml:"dates>date"`
	Language             string                   `xml:"language,omitempty"`
	AlternateIdentifiers []xmlAlternateIdentifier `xml:"alternateIdentifiers>alternateIdentifier"`
	RelatedIdentifiers   []xmlRelatedIdentifier   `xml:"relatedIdentifiers>relatedIdentifier"`
	Sizes                []string                 `xml:"sizes>size"`
	Formats              []string                 `xml:"formats>format"`
	Version              string                   `xml:"version,omitempty"`
	RightsList           []xmlRights              `xml:"rightsList>rights"`
	Descriptions         []xmlDescription         `xml:"descriptions>description"`
	GeoLocations         []xmlGeoLocation         `xml:"geoLocations>geoLocation"`
	FundingReferences    []xmlFundingReference    `xml:"fundingReferences>fundingReference"`
	RelatedItems         []xmlRelatedItem         `xml:"relatedItems>relatedItem"`
}

type xmlIdentifier struct {
	IdentifierType string `xml:"identifierType,attr"`
	Value          string `xml:",chardata"`
}

type xmlName struct {
	NameType string `xml:"nameType,attr,omitempty"`
	Lang     string `xml:"http://www.w3.org/XML/1998/namespace lang,attr,omitempty"`
	Value    string `xml:",chardata"`
}

type xmlCreator struct {
	CreatorName     xmlName             `xml:"creatorName"`
	GivenName       string              `xml:"givenName,omitempty"`
	FamilyName      string              `xml:"familyName,omitempty"`
	NameIdentifiers []xmlNameIdentifier `xml:"nameIdentifier"`
	Affiliations    []xmlAffiliation    `xml:"affiliation"`
}

type xmlContributor struct {
	ContributorType string              `xml:"contributorType,attr"`
	ContributorName xmlName             `xml:"contributorName"`
	GivenName       string              `xml:"givenName,omitempty"`
	FamilyName      string              `xml:"familyName,omitempty"`
	NameIdentifiers []xmlNameIdentifier `xml:"nameIdentifier"`
	Affiliations    []xmlAffiliation    `xml:"affiliation"`
}

type xmlNameIdentifier struct {
	NameIdentifierScheme string `xml:"nameIdentifierScheme,attr,omitempty"`
	SchemeURI            string `xml:"schemeURI,attr,omitempty"`
	Value                string `xml:",chardata"`
}

type xmlAffiliation struct {
	AffiliationIdentifier       string `xml:"affiliationIdentifier,attr,omitempty"`
	AffiliationIdentifierScheme string `xml:"affiliationIdentifierScheme,attr,omitempty"`
	SchemeURI                   string `xml:"schemeURI,attr,omitempty"`
	Value                       string `xml:",chardata"`
}

type xmlTitle struct {
	TitleType string `xml:"titleType,attr,omitempty"`
	Lang      string `xml:"http://www.w3.org/XML/1998/namespace lang,attr,omitempty"`
	Value     string `xml:",chardata"`
}

type xmlPublisher struct {
	PublisherIdentifier       string `xml:"publisherIdentifier,attr,omitempty"`
	PublisherIdentifierScheme string `xml:"publisherIdentifierScheme,attr,omitempty"`
	SchemeURI                 string `xml:"schemeURI,attr,omitempty"`
	Lang                      string `xml:"http://www.w3.org/XML/1998/namespace lang,attr,omitempty"`
	Value                     string `xml:",chardata"`
}

type xmlResourceType struct {
	ResourceTypeGeneral string `xml:"resourceTypeGeneral,attr"`
	Value               string `xml:",chardata"`
}

type xmlSubject struct {
	SubjectScheme      string `xml:"subjectScheme,attr,omitempty"`
	SchemeURI          string `xml:"schemeURI,attr,omitempty"`
	ValueURI           string `xml:"valueURI,attr,omitempty"`
	ClassificationCode string `xml:"classificationCode,attr,omitempty"`
	Lang               string `xml:"http://www.w3.org/XML/1998/namespace lang,attr,omitempty"`
	Value              string `xml:",chardata"`
}

type xmlDate struct {
	DateType        string `xml:"dateType,attr"`
	DateInformation string `xml:"dateInformation,attr,omitempty"`
	Value           string `xml:",chardata"`
}

type xmlAlternateIdentifier struct {
	AlternateIdentifierType string `xml:"alternateIdentifierType,attr"`
	Value                   string `xml:",chardata"`
}

type xmlRelatedIdentifier struct {
	RelatedIdentifierType string `xml:"relatedIdentifierType,attr,omitempty"`
	RelationType          string `xml:"relationType,attr"`
	RelatedMetadataScheme string `xml:"relatedMetadataScheme,attr,omitempty"`
	SchemeURI             string `xml:"schemeURI,attr,omitempty"`
	SchemeType            string `xml:"schemeType,attr,omitempty"`
	ResourceTypeGeneral   string `xml:"resourceTypeGeneral,attr,omitempty"`
	Value                 string `xml:",chardata"`
}

type xmlRights struct {
	RightsURI              string `xml:"rightsURI,attr,omitempty"`
	RightsIdentifier       string `xml:"rightsIdentifier,attr,omitempty"`
	RightsIdentifierScheme string `xml:"rightsIdentifierScheme,attr,omitempty"`
	SchemeURI              string `xml:"schemeURI,attr,omitempty"`
	Lang                   string `xml:"http://www.w3.org/XML/1998/namespace lang,attr,omitempty"`
	Value                  string `xml:",chardata"`
}

type xmlDescription struct {
	DescriptionType string `xml:"descriptionType,attr"`
	Lang            string `xml:"http://www.w3.org/XML/1998/namespace lang,attr,omitempty"`
	Value           string `xml:",chardata"`
}

type xmlGeoLocation struct {
	GeoLocationPlace   string          `xml:"geoLocationPlace,omitempty"`
	GeoLocationPoint   *xmlGeoPoint    `xml:"geoLocationPoint"`
	GeoLocationBox     *xmlGeoBox      `xml:"geoLocationBox"`
	GeoLocationPolygon []xmlGeoPolygon `xml:"geoLocationPolygon"`
}

// xmlGeoPoint holds kernel-3 "lat lon" text or kernel-4 sub-elements.
type xmlGeoPoint struct {
	Text           string `xml:",chardata"`
	PointLongitude string `xml:"pointLongitude,omitempty"`
	PointLatitude  string `xml:"pointLatitude,omitempty"`
}

// xmlGeoBox holds kernel-3 "south west north east" text or kernel-4
// sub-elements.
type xmlGeoBox struct {
	Text               string `xml:",chardata"`
	WestBoundLongitude string `xml:"westBoundLongitude,omitempty"`
	EastBoundLongitude string `xml:"eastBoundLongitude,omitempty"`
	SouthBoundLatitude string `xml:"southBoundLatitude,omitempty"`
	NorthBoundLatitude string `xml:"northBoundLatitude,omitempty"`
}

type xmlGeoPolygon struct {
	PolygonPoints  []xmlGeoPoint `xml:"polygonPoint"`
	InPolygonPoint *xmlGeoPoint  `xml:"inPolygonPoint"`
}

type xmlFundingReference struct {
	FunderName       string               `xml:"funderName"`
	FunderIdentifier *xmlFunderIdentifier `xml:"funderIdentifier"`
	AwardNumber      *xmlAwardNumber      `xml:"awardNumber"`
	AwardTitle       string               `xml:"awardTitle,omitempty"`
}

type xmlFunderIdentifier struct {
	FunderIdentifierType string `xml:"funderIdentifierType,attr,omitempty"`
	Value                string `xml:",chardata"`
}

type xmlAwardNumber struct {
	AwardURI string `xml:"awardURI,attr,omitempty"`
	Value    string `xml:",chardata"`
}

type xmlRelatedItem struct {
	RelationType          string                    `xml:"relationType,attr"`
	RelatedItemType       string                    `xml:"relatedItemType,attr"`
	RelatedItemIdentifier *xmlRelatedItemIdentifier `xml:"relatedItemIdentifier"`
	Creators              []xmlCreator              `xml:"creators>creator"`
	Titles                []xmlTitle                `xml:"titles>title"`
	PublicationYear       string                    `xml:"publicationYear,omitempty"`
	Volume                string                    `xml:"volume,omitempty"`
	Issue                 string                    `xml:"issue,omitempty"`
	Number                *xmlNumber                `xml:"number"`
	FirstPage             string                    `xml:"firstPage,omitempty"`
	LastPage              string                    `xml:"lastPage,omitempty"`
	Publisher             string                    `xml:"publisher,omitempty"`
	Edition               string                    `xml:"edition,omitempty"`
	Contributors          []xmlContributor          `xml:"contributors>contributor"`
}

type xmlRelatedItemIdentifier struct {
	RelatedItemIdentifierType string `xml:"relatedItemIdentifierType,attr,omitempty"`
	Value                     string `xml:",chardata"`
}

type xmlNumber struct {
	NumberType string `xml:"numberType,attr,omitempty"`
	Value      string `xml:",chardata"`
}
