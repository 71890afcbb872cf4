package csl

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/lehigh-university-libraries/doiregistry/format"
	"github.com/lehigh-university-libraries/doiregistry/hub"
)

// Serialize writes metadata as CSL-JSON.
func (f *Format) Serialize(w io.Writer, records []*hub.Metadata, opts *format.SerializeOptions) error {
	if opts == nil {
		opts = format.NewSerializeOptions()
	}

	items := make([]Item, 0, len(records))
	for _, m := range records {
		items = append(items, metadataToItem(m))
	}

	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	if opts.Pretty {
		encoder.SetIndent("", "  ")
	}

	if len(items) == 1 {
		return encoder.Encode(items[0])
	}
	return encoder.Encode(items)
}

// metadataToItem converts canonical metadata to a CSL item.
func metadataToItem(m *hub.Metadata) Item {
	doi := hub.NormalizeDOI(m.DOI)
	item := Item{
		ID:        generateID(m),
		Type:      itemTypeFor(m),
		Title:     m.MainTitle(),
		Abstract:  m.Abstract(),
		Language:  m.Language,
		DOI:       doi,
		URL:       m.URL,
		Publisher: m.Publisher.Name(),
		Version:   Variable(m.Version),
	}

	for _, c := range m.Creators {
		item.Author = append(item.Author, creatorToName(c))
	}
	for _, c := range m.Contributors {
		if c.ContributorType == "Editor" {
			item.Editor = append(item.Editor, creatorToName(c.AsCreator()))
		}
	}

	if parts := hub.DateParts(m.PublicationDate()); len(parts) > 0 {
		d := &Date{DateParts: [][]Variable{{}}}
		for _, p := range parts {
			d.DateParts[0] = append(d.DateParts[0], Variable(strconv.Itoa(p)))
		}
		item.Issued = d
	}

	for _, s := range m.Subjects {
		item.Categories = append(item.Categories, s.Subject)
	}
	if len(m.RightsList) > 0 {
		item.Copyright = m.RightsList[0].Rights
	}
	for _, id := range m.Identifiers {
		if id.IdentifierType == "ISBN" && item.ISBN == "" {
			item.ISBN = id.Identifier
		}
	}

	item.Custom = customFor(m)

	c := m.Container
	if c == nil {
		c = hub.DeriveContainer(m)
	}
	if c != nil {
		item.ContainerTitle = c.Title
		item.Volume = Variable(c.Volume)
		item.Issue = Variable(c.Issue)
		if c.IdentifierType == "ISSN" {
			item.ISSN = c.Identifier
		}
		switch {
		case c.FirstPage != "" && c.LastPage != "":
			item.Page = Variable(c.FirstPage + "-" + c.LastPage)
		default:
			item.Page = Variable(c.FirstPage)
		}
	}

	return item
}

// customFor collects the fields CSL variables cannot hold. It returns nil
// when there are none.
func customFor(m *hub.Metadata) *Custom {
	c := &Custom{
		PublicationYear:    m.PublicationYear,
		Dates:              m.Dates,
		GeoLocations:       m.GeoLocations,
		RelatedIdentifiers: m.RelatedIdentifiers,
		RelatedItems:       m.RelatedItems,
	}
	if m.Types != nil {
		types := *m.Types
		c.ResourceType = &types
	}
	if sp, ok := m.Publisher.Structured(); ok {
		c.Publisher = &sp
	}
	if c.ResourceType == nil && c.PublicationYear == 0 && c.Publisher == nil && len(c.Dates) == 0 &&
		len(c.GeoLocations) == 0 && len(c.RelatedIdentifiers) == 0 && len(c.RelatedItems) == 0 {
		return nil
	}
	return c
}

func creatorToName(c hub.Creator) Name {
	if c.IsOrganization() || (c.FamilyName == "" && c.GivenName == "") {
		return Name{Literal: c.Name}
	}
	return Name{Family: c.FamilyName, Given: c.GivenName}
}

// itemTypeFor picks the CSL type, preferring the one the metadata was read
// with.
func itemTypeFor(m *hub.Metadata) string {
	if m.Types == nil {
		return "article"
	}
	if m.Types.Citeproc != "" {
		return m.Types.Citeproc
	}
	return hub.TypesFor(m.Types.ResourceTypeGeneral, m.Types.ResourceType).Citeproc
}

// generateID uses the DOI resolver URL, falling back to a key built from
// the first author and year.
func generateID(m *hub.Metadata) string {
	if doi := hub.NormalizeDOI(m.DOI); doi != "" {
		return hub.DOIURL(doi)
	}

	author := "item"
	if len(m.Creators) > 0 {
		c := m.Creators[0]
		switch {
		case c.FamilyName != "":
			author = c.FamilyName
		case len(strings.Fields(c.Name)) > 0:
			author = strings.Fields(c.Name)[0]
		}
	}
	if m.PublicationYear > 0 {
		return fmt.Sprintf("%s%d", strings.ToLower(author), m.PublicationYear)
	}
	return strings.ToLower(author)
}
