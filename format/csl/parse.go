package csl

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/lehigh-university-libraries/doiregistry/format"
	"github.com/lehigh-university-libraries/doiregistry/helpers"
	"github.com/lehigh-university-libraries/doiregistry/hub"
)

// Parse reads a CSL-JSON item or an array of items.
func (f *Format) Parse(r io.Reader, opts *format.ParseOptions) ([]*hub.Metadata, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("empty CSL-JSON input")
	}

	var items []Item
	if data[0] == '[' {
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, fmt.Errorf("parsing CSL-JSON: %w", err)
		}
	} else {
		var item Item
		if err := json.Unmarshal(data, &item); err != nil {
			return nil, fmt.Errorf("parsing CSL-JSON: %w", err)
		}
		items = []Item{item}
	}

	stripHTML := opts != nil && opts.StripHTML
	records := make([]*hub.Metadata, 0, len(items))
	for _, item := range items {
		records = append(records, itemToMetadata(item, stripHTML))
	}
	return records, nil
}

// itemToMetadata converts a CSL item to canonical metadata.
func itemToMetadata(item Item, stripHTML bool) *hub.Metadata {
	m := &hub.Metadata{
		Types: &hub.Types{
			ResourceTypeGeneral: hub.GeneralFromCiteproc(item.Type),
			Citeproc:            item.Type,
		},
		URL:      item.URL,
		Language: item.Language,
		Version:  string(item.Version),
	}

	switch {
	case item.DOI != "":
		m.DOI = hub.NormalizeDOI(item.DOI)
	case hub.DOIFromURL(item.ID) != "":
		m.DOI = hub.NormalizeDOI(item.ID)
	}

	if t := strings.TrimSpace(item.Title); t != "" {
		m.Titles = hub.List[hub.Title]{{Title: t}}
	}

	for _, n := range item.Author {
		m.Creators = append(m.Creators, nameToCreator(n))
	}
	for _, n := range item.Editor {
		m.Contributors = append(m.Contributors, nameToCreator(n).AsContributor("Editor"))
	}

	if item.Publisher != "" {
		m.Publisher = hub.PlainPublisher(item.Publisher)
	}

	if item.Custom != nil {
		applyCustom(m, item.Custom)
	} else if parts := item.Issued.Parts(); len(parts) > 0 {
		m.SetIssued(hub.FormatDateParts(parts, "-"))
	} else if item.Issued != nil && item.Issued.Raw != "" {
		m.SetIssued(item.Issued.Raw)
	}

	if ab := strings.TrimSpace(item.Abstract); ab != "" {
		if stripHTML {
			ab = helpers.StripHTML(ab)
		}
		m.Descriptions = hub.List[hub.Description]{{Description: ab, DescriptionType: "Abstract"}}
	}

	for _, c := range item.Categories {
		m.Subjects = append(m.Subjects, hub.Subject{Subject: c})
	}

	if item.Copyright != "" {
		m.RightsList = hub.List[hub.Rights]{{Rights: item.Copyright}}
	}

	if item.ISBN != "" {
		m.Identifiers = append(m.Identifiers, hub.AlternateIdentifier{Identifier: item.ISBN, IdentifierType: "ISBN"})
	}

	if item.Custom == nil && (item.ContainerTitle != "" || item.ISSN != "" || item.Volume != "") {
		rel := hub.RelatedItem{
			RelationType:    "IsPublishedIn",
			RelatedItemType: containerType(item.Type),
			Volume:          string(item.Volume),
			Issue:           string(item.Issue),
		}
		if item.ContainerTitle != "" {
			rel.Titles = hub.List[hub.Title]{{Title: item.ContainerTitle}}
		}
		if item.ISSN != "" {
			rel.RelatedItemIdentifier = &hub.RelatedItemIdentifier{RelatedItemIdentifier: item.ISSN, RelatedItemIdentifierType: "ISSN"}
		}
		if page := string(item.Page); page != "" {
			first, last, ok := strings.Cut(page, "-")
			rel.FirstPage = strings.TrimSpace(first)
			if ok {
				rel.LastPage = strings.TrimSpace(strings.TrimLeft(last, "-"))
			}
		}
		m.RelatedItems = append(m.RelatedItems, rel)
	}

	return m
}

// applyCustom restores the fields written under "custom".
func applyCustom(m *hub.Metadata, c *Custom) {
	if c.ResourceType != nil {
		types := *c.ResourceType
		m.Types = &types
	}
	if c.Publisher != nil {
		m.Publisher = hub.NewStructuredPublisher(*c.Publisher)
	}
	m.PublicationYear = c.PublicationYear
	m.Dates = c.Dates
	m.GeoLocations = c.GeoLocations
	m.RelatedIdentifiers = c.RelatedIdentifiers
	m.RelatedItems = c.RelatedItems
}

func nameToCreator(n Name) hub.Creator {
	if n.Literal != "" {
		return hub.Creator{Name: n.Literal, NameType: hub.NameTypeOrganizational}
	}
	c := hub.PersonFromParts(n.Given, n.Family)
	if n.Suffix != "" {
		c.Name += ", " + n.Suffix
	}
	return c
}

func containerType(itemType string) string {
	switch itemType {
	case "chapter":
		return "Book"
	case "paper-conference":
		return "ConferenceProceeding"
	case "article-journal", "article", "review":
		return "Journal"
	default:
		return "Series"
	}
}
