package schemaorg

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/lehigh-university-libraries/doiregistry/format"
	"github.com/lehigh-university-libraries/doiregistry/helpers"
	"github.com/lehigh-university-libraries/doiregistry/hub"
)

// Parse reads schema.org JSON-LD: one document, an array of documents, or
// a document holding an @graph.
func (f *Format) Parse(r io.Reader, opts *format.ParseOptions) ([]*hub.Metadata, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}

	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("empty JSON-LD input")
	}

	var docs []map[string]any

	// Parse based on first character
	switch data[0] {
	case '[':
		if err := json.Unmarshal(data, &docs); err != nil {
			return nil, fmt.Errorf("parsing JSON array: %w", err)
		}
	case '{':
		var doc map[string]any
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parsing JSON object: %w", err)
		}
		if graph, ok := doc["@graph"].([]any); ok {
			for _, node := range graph {
				if obj, ok := node.(map[string]any); ok {
					docs = append(docs, obj)
				}
			}
		} else {
			docs = []map[string]any{doc}
		}
	default:
		return nil, fmt.Errorf("invalid JSON: expected { or [")
	}

	stripHTML := opts != nil && opts.StripHTML
	records := make([]*hub.Metadata, 0, len(docs))
	for _, doc := range docs {
		records = append(records, documentToMetadata(doc, stripHTML))
	}
	return records, nil
}

// documentToMetadata converts a schema.org JSON-LD document to canonical
// metadata.
func documentToMetadata(doc map[string]any, stripHTML bool) *hub.Metadata {
	m := &hub.Metadata{
		URL:           getString(doc, "url"),
		SchemaVersion: getString(doc, "schemaVersion"),
	}

	if schemaType := firstString(doc["@type"]); schemaType != "" {
		m.Types = &hub.Types{
			ResourceTypeGeneral: hub.GeneralFromSchemaOrg(schemaType),
			ResourceType:        getString(doc, "additionalType"),
			SchemaOrg:           schemaType,
		}
	}

	m.DOI = doiOf(doc)
	for _, id := range parseIdentifiers(doc["identifier"]) {
		if id.IdentifierType == "DOI" {
			continue
		}
		m.Identifiers = append(m.Identifiers, id)
	}
	if isbn := getString(doc, "isbn"); isbn != "" {
		m.Identifiers = append(m.Identifiers, hub.AlternateIdentifier{Identifier: isbn, IdentifierType: "ISBN"})
	}

	// Titles
	if name := getString(doc, "name"); name != "" {
		m.Titles = append(m.Titles, hub.Title{Title: name})
	} else if headline := getString(doc, "headline"); headline != "" {
		m.Titles = append(m.Titles, hub.Title{Title: headline})
	}
	for _, alt := range stringList(doc["alternateName"]) {
		m.Titles = append(m.Titles, hub.Title{Title: alt, TitleType: "AlternativeTitle"})
	}

	// Creators and contributors
	for _, key := range []string{"author", "creator"} {
		for _, obj := range objects(doc[key]) {
			m.Creators = append(m.Creators, parseAgent(obj))
		}
	}
	for _, obj := range objects(doc["editor"]) {
		m.Contributors = append(m.Contributors, parseAgent(obj).AsContributor("Editor"))
	}
	for _, obj := range objects(doc["contributor"]) {
		m.Contributors = append(m.Contributors, parseAgent(obj).AsContributor("Other"))
	}

	m.Publisher = parsePublisher(doc["publisher"])

	// Dates
	if created := getString(doc, "dateCreated"); created != "" {
		m.Dates = append(m.Dates, hub.Date{Date: created, DateType: hub.DateCreated})
	}
	if published := getString(doc, "datePublished"); published != "" {
		m.SetIssued(published)
	}
	if modified := getString(doc, "dateModified"); modified != "" {
		m.Dates = append(m.Dates, hub.Date{Date: modified, DateType: hub.DateUpdated})
	}

	// Language
	switch l := doc["inLanguage"].(type) {
	case string:
		m.Language = l
	case map[string]any:
		m.Language = getString(l, "alternateName")
		if m.Language == "" {
			m.Language = getString(l, "name")
		}
	}

	for _, desc := range stringList(doc["description"]) {
		if stripHTML {
			desc = helpers.StripHTML(desc)
		}
		if desc = strings.TrimSpace(desc); desc != "" {
			m.Descriptions = append(m.Descriptions, hub.Description{Description: desc, DescriptionType: "Abstract"})
		}
	}

	m.Subjects = parseKeywords(doc["keywords"])
	m.Version = scalar(doc["version"])
	m.RightsList = parseLicense(doc["license"])

	if item, ok := parseContainer(doc); ok {
		m.RelatedItems = append(m.RelatedItems, item)
	} else if id := referenceID(doc["isPartOf"]); id != "" {
		m.RelatedIdentifiers = append(m.RelatedIdentifiers, relatedIdentifier(id, "IsPartOf"))
	}
	for key, relationType := range referenceProperties {
		for _, obj := range references(doc[key]) {
			m.RelatedIdentifiers = append(m.RelatedIdentifiers, relatedIdentifier(obj, relationType))
		}
	}
	sortRelated(m.RelatedIdentifiers)

	for _, place := range objects(doc["spatialCoverage"]) {
		if g, ok := parsePlace(place); ok {
			m.GeoLocations = append(m.GeoLocations, g)
		}
	}

	for _, obj := range objects(doc["funder"]) {
		m.FundingReferences = append(m.FundingReferences, parseFunder(obj))
	}

	m.ContentURL = stringList(doc["contentUrl"])
	m.Formats = stringList(doc["encodingFormat"])
	m.Sizes = stringList(doc["contentSize"])

	return m
}

// referenceProperties maps schema.org link properties to relation types.
var referenceProperties = map[string]string{
	"citation":  "References",
	"hasPart":   "HasPart",
	"isBasedOn": "IsDerivedFrom",
}

// relationOrder fixes the order related identifiers are returned in, since
// referenceProperties is iterated as a map.
var relationOrder = map[string]int{"IsPartOf": 0, "References": 1, "HasPart": 2, "IsDerivedFrom": 3}

func sortRelated(ids hub.List[hub.RelatedIdentifier]) {
	// Insertion sort keeps the order within one relation type.
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && relationOrder[ids[j].RelationType] < relationOrder[ids[j-1].RelationType]; j-- {
			ids[j], ids[j-1] = ids[j-1], ids[j]
		}
	}
}

// doiOf finds the DOI in @id, identifier or url, in that order.
func doiOf(doc map[string]any) string {
	if id := getString(doc, "@id"); hub.DOIFromURL(id) != "" {
		return hub.NormalizeDOI(id)
	}
	for _, id := range parseIdentifiers(doc["identifier"]) {
		if id.IdentifierType == "DOI" {
			return hub.NormalizeDOI(id.Identifier)
		}
	}
	if u := getString(doc, "url"); hub.DOIFromURL(u) != "" {
		return hub.NormalizeDOI(u)
	}
	return ""
}

// parseIdentifiers parses the identifier property: a URL, a PropertyValue
// or an array of either.
func parseIdentifiers(val any) []hub.AlternateIdentifier {
	var ids []hub.AlternateIdentifier
	for _, item := range list(val) {
		switch v := item.(type) {
		case string:
			if hub.DOIFromURL(v) != "" {
				ids = append(ids, hub.AlternateIdentifier{Identifier: v, IdentifierType: "DOI"})
			} else if v != "" {
				ids = append(ids, hub.AlternateIdentifier{Identifier: v, IdentifierType: "URL"})
			}
		case map[string]any:
			if id, ok := parsePropertyValue(v); ok {
				ids = append(ids, id)
			}
		}
	}
	return ids
}

// parsePropertyValue parses a PropertyValue object to an identifier.
func parsePropertyValue(pv map[string]any) (hub.AlternateIdentifier, bool) {
	value := scalar(pv["value"])
	if value == "" {
		return hub.AlternateIdentifier{}, false
	}
	propID := getString(pv, "propertyID")
	switch strings.ToLower(propID) {
	case "doi":
		propID = "DOI"
	case "isbn":
		propID = "ISBN"
	case "issn":
		propID = "ISSN"
	case "":
		propID = "Local"
	}
	return hub.AlternateIdentifier{Identifier: value, IdentifierType: propID}, true
}

// parseAgent reads a Person or Organization. A bare string is read as a
// person's name.
func parseAgent(obj map[string]any) hub.Creator {
	var c hub.Creator
	if t := firstString(obj["@type"]); t == "Organization" {
		c = hub.Creator{Name: getString(obj, "name"), NameType: hub.NameTypeOrganizational}
	} else if given, family := getString(obj, "givenName"), getString(obj, "familyName"); given != "" || family != "" {
		c = hub.PersonFromParts(given, family)
	} else {
		c = helpers.PersonFromName(getString(obj, "name"))
	}

	if id := getString(obj, "@id"); id != "" {
		c.NameIdentifiers = append(c.NameIdentifiers, nameIdentifier(id))
	}
	for _, aff := range objects(obj["affiliation"]) {
		a := hub.Affiliation{Name: getString(aff, "name")}
		if id := getString(aff, "@id"); id != "" {
			a.AffiliationIdentifier = id
			if strings.Contains(id, "ror.org/") {
				a.AffiliationIdentifierScheme = "ROR"
			}
		}
		if a.Name != "" || a.AffiliationIdentifier != "" {
			c.Affiliation = append(c.Affiliation, a)
		}
	}
	return c
}

// nameIdentifier classifies an agent @id by its resolver.
func nameIdentifier(id string) hub.NameIdentifier {
	switch {
	case strings.Contains(id, "orcid.org/"):
		return hub.NameIdentifier{NameIdentifier: id, NameIdentifierScheme: "ORCID", SchemeURI: "https://orcid.org"}
	case strings.Contains(id, "ror.org/"):
		return hub.NameIdentifier{NameIdentifier: id, NameIdentifierScheme: "ROR", SchemeURI: "https://ror.org"}
	case strings.Contains(id, "isni.org/"):
		return hub.NameIdentifier{NameIdentifier: id, NameIdentifierScheme: "ISNI", SchemeURI: "http://isni.org/isni/"}
	default:
		return hub.NameIdentifier{NameIdentifier: id}
	}
}

// parsePublisher reads a publisher name or Organization. An Organization
// with an @id becomes a structured publisher.
func parsePublisher(val any) hub.Publisher {
	switch p := val.(type) {
	case string:
		return hub.PlainPublisher(p)
	case map[string]any:
		name := getString(p, "name")
		id := getString(p, "@id")
		if id == "" {
			return hub.PlainPublisher(name)
		}
		sp := hub.StructuredPublisher{Name: name, PublisherIdentifier: id}
		if ni := nameIdentifier(id); ni.NameIdentifierScheme != "" {
			sp.PublisherIdentifierScheme = ni.NameIdentifierScheme
			sp.SchemeURI = ni.SchemeURI
		}
		return hub.NewStructuredPublisher(sp)
	}
	return hub.Publisher{}
}

// parseKeywords accepts a comma separated string, an array of strings or an
// array of DefinedTerm objects.
func parseKeywords(val any) hub.List[hub.Subject] {
	var subjects hub.List[hub.Subject]
	add := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			subjects = append(subjects, hub.Subject{Subject: s})
		}
	}
	switch k := val.(type) {
	case string:
		// Split comma-separated keywords
		for _, kw := range strings.Split(k, ",") {
			add(kw)
		}
	case []any:
		for _, item := range k {
			switch v := item.(type) {
			case string:
				add(v)
			case map[string]any:
				name := getString(v, "name")
				if name == "" {
					continue
				}
				s := hub.Subject{Subject: name, ValueURI: getString(v, "url")}
				if set, ok := v["inDefinedTermSet"].(map[string]any); ok {
					s.SubjectScheme = getString(set, "name")
					s.SchemeURI = getString(set, "url")
				}
				subjects = append(subjects, s)
			}
		}
	}
	return subjects
}

// parseLicense reads license URLs, names or CreativeWork objects.
func parseLicense(val any) hub.List[hub.Rights] {
	var rights hub.List[hub.Rights]
	for _, item := range list(val) {
		var r hub.Rights
		switch l := item.(type) {
		case string:
			if strings.HasPrefix(l, "http") {
				r.RightsURI = l
			} else {
				r.Rights = l
			}
		case map[string]any:
			r.RightsURI = getString(l, "url")
			if r.RightsURI == "" {
				r.RightsURI = getString(l, "@id")
			}
			r.Rights = getString(l, "name")
		}
		if r.RightsURI != "" || r.Rights != "" {
			rights = append(rights, r)
		}
	}
	return rights
}

// parseContainer walks the isPartOf chain (issue, volume, periodical) and
// folds it into one related item.
func parseContainer(doc map[string]any) (hub.RelatedItem, bool) {
	part, ok := doc["isPartOf"].(map[string]any)
	if !ok {
		return hub.RelatedItem{}, false
	}

	item := hub.RelatedItem{
		RelationType: "IsPublishedIn",
		FirstPage:    scalar(doc["pageStart"]),
		LastPage:     scalar(doc["pageEnd"]),
	}
	var title, issn, isbn, id string
	for depth := 0; part != nil && depth < 4; depth++ {
		t := firstString(part["@type"])
		if ct, ok := containerTypes[t]; ok {
			item.RelatedItemType = ct
		}
		switch t {
		case "PublicationIssue":
			item.Issue = scalar(part["issueNumber"])
		case "PublicationVolume":
			item.Volume = scalar(part["volumeNumber"])
		}
		if n := getString(part, "name"); n != "" {
			title = n
		}
		if v := getString(part, "issn"); v != "" {
			issn = v
		}
		if v := getString(part, "isbn"); v != "" {
			isbn = v
		}
		if v := getString(part, "@id"); v != "" {
			id = v
		}
		part, _ = part["isPartOf"].(map[string]any)
	}

	if title == "" && issn == "" && isbn == "" {
		return hub.RelatedItem{}, false
	}
	if item.RelatedItemType == "" {
		item.RelatedItemType = "Series"
	}
	if title != "" {
		item.Titles = hub.List[hub.Title]{{Title: title}}
	}
	switch {
	case issn != "":
		item.RelatedItemIdentifier = &hub.RelatedItemIdentifier{RelatedItemIdentifier: issn, RelatedItemIdentifierType: "ISSN"}
	case isbn != "":
		item.RelatedItemIdentifier = &hub.RelatedItemIdentifier{RelatedItemIdentifier: isbn, RelatedItemIdentifierType: "ISBN"}
	case hub.DOIFromURL(id) != "":
		item.RelatedItemIdentifier = &hub.RelatedItemIdentifier{RelatedItemIdentifier: hub.NormalizeDOI(id), RelatedItemIdentifierType: "DOI"}
	}
	return item, true
}

// references returns the @id or URL of every linked work.
func references(val any) []string {
	var ids []string
	for _, item := range list(val) {
		if id := referenceID(item); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func referenceID(val any) string {
	switch v := val.(type) {
	case string:
		if strings.HasPrefix(v, "http") || hub.DOIFromURL(v) != "" {
			return v
		}
	case map[string]any:
		if id := getString(v, "@id"); id != "" {
			return id
		}
		return getString(v, "url")
	}
	return ""
}

func relatedIdentifier(id, relationType string) hub.RelatedIdentifier {
	if hub.DOIFromURL(id) != "" {
		return hub.RelatedIdentifier{RelatedIdentifier: hub.NormalizeDOI(id), RelatedIdentifierType: "DOI", RelationType: relationType}
	}
	return hub.RelatedIdentifier{RelatedIdentifier: id, RelatedIdentifierType: "URL", RelationType: relationType}
}

// parsePlace reads a Place with GeoCoordinates or a GeoShape box.
func parsePlace(place map[string]any) (hub.GeoLocation, bool) {
	g := hub.GeoLocation{GeoLocationPlace: getString(place, "name")}

	if geo, ok := place["geo"].(map[string]any); ok {
		switch firstString(geo["@type"]) {
		case "GeoShape":
			if box := strings.Fields(scalar(geo["box"])); len(box) == 4 {
				g.GeoLocationBox = &hub.GeoLocationBox{
					SouthBoundLatitude: hub.DegreesFromText(box[0]),
					WestBoundLongitude: hub.DegreesFromText(box[1]),
					NorthBoundLatitude: hub.DegreesFromText(box[2]),
					EastBoundLongitude: hub.DegreesFromText(box[3]),
				}
			}
		default:
			lat, lon := scalar(geo["latitude"]), scalar(geo["longitude"])
			if lat != "" || lon != "" {
				g.GeoLocationPoint = &hub.GeoLocationPoint{
					PointLatitude:  hub.DegreesFromText(lat),
					PointLongitude: hub.DegreesFromText(lon),
				}
			}
		}
	}

	if g.GeoLocationPlace == "" && g.GeoLocationPoint == nil && g.GeoLocationBox == nil {
		return g, false
	}
	return g, true
}

// parseFunder reads a funding Organization. Crossref Funder Registry ids
// are DOIs under 10.13039.
func parseFunder(obj map[string]any) hub.FundingReference {
	fr := hub.FundingReference{FunderName: getString(obj, "name")}
	if id := getString(obj, "@id"); id != "" {
		fr.FunderIdentifier = id
		switch {
		case strings.Contains(id, "10.13039/"):
			fr.FunderIdentifierType = "Crossref Funder ID"
		case strings.Contains(id, "ror.org/"):
			fr.FunderIdentifierType = "ROR"
		default:
			fr.FunderIdentifierType = "Other"
		}
	}
	return fr
}

// getString safely extracts a string from a map.
func getString(m map[string]any, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// scalar formats a string or number value as text.
func scalar(v any) string {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case json.Number:
		return x.String()
	}
	return ""
}

// firstString returns a string value or the first string of an array, as
// used by multi-typed @type values.
func firstString(v any) string {
	for _, item := range list(v) {
		if s, ok := item.(string); ok {
			return s
		}
	}
	return ""
}

// stringList collects string values of a single value or an array.
func stringList(v any) []string {
	var out []string
	for _, item := range list(v) {
		if s := scalar(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// objects returns the objects of a single value or an array. Bare strings
// become {"name": s}.
func objects(v any) []map[string]any {
	var out []map[string]any
	for _, item := range list(v) {
		switch x := item.(type) {
		case map[string]any:
			out = append(out, x)
		case string:
			if x = strings.TrimSpace(x); x != "" {
				out = append(out, map[string]any{"name": x})
			}
		}
	}
	return out
}

func list(v any) []any {
	switch x := v.(type) {
	case nil:
		return nil
	case []any:
		return x
	default:
		return []any{x}
	}
}
