package bibtex

import (
	"fmt"
	"io"
	"strings"

	"github.com/lehigh-university-libraries/doiregistry/format"
	"github.com/lehigh-university-libraries/doiregistry/hub"
)

// Serialize writes metadata as BibTeX entries.
func (f *Format) Serialize(w io.Writer, records []*hub.Metadata, opts *format.SerializeOptions) error {
	// opts reserved for future use (e.g., encoding options)
	_ = opts

	for i, m := range records {
		// Step 1: Convert metadata to an entry
		entry := metadataToEntry(m)

		// Step 2: Serialize the entry to BibTeX text
		if _, err := io.WriteString(w, entryToBibtex(entry)); err != nil {
			return err
		}
		if i < len(records)-1 {
			if _, err := w.Write([]byte("\n")); err != nil {
				return err
			}
		}
	}

	return nil
}

// metadataToEntry converts canonical metadata to a BibTeX entry.
func metadataToEntry(m *hub.Metadata) *Entry {
	entry := &Entry{EntryType: entryTypeFor(m)}

	doi := hub.NormalizeDOI(m.DOI)
	if doi != "" {
		entry.CitationKey = hub.DOIURL(doi)
	} else {
		entry.CitationKey = generateCitationKey(m)
	}

	entry.Set("doi", doi)
	entry.Set("url", m.URL)
	entry.Set("author", formatPersons(m.Creators))

	var editors hub.List[hub.Creator]
	for _, c := range m.Contributors {
		if c.ContributorType == "Editor" {
			editors = append(editors, c.AsCreator())
		}
	}
	entry.Set("editor", formatPersons(editors))

	var keywords []string
	for _, s := range m.Subjects {
		keywords = append(keywords, s.Subject)
	}
	entry.Set("keywords", escapeBibtex(strings.Join(keywords, ", ")))
	entry.Set("language", m.Language)
	entry.Set("title", escapeBibtex(m.MainTitle()))

	c := m.Container
	if c == nil {
		c = hub.DeriveContainer(m)
	}
	if c != nil {
		if entry.EntryType == "article" {
			entry.Set("journal", escapeBibtex(c.Title))
		} else {
			entry.Set("booktitle", escapeBibtex(c.Title))
		}
		entry.Set("volume", c.Volume)
		entry.Set("number", c.Issue)
		switch {
		case c.FirstPage != "" && c.LastPage != "":
			entry.Set("pages", c.FirstPage+"--"+c.LastPage)
		default:
			entry.Set("pages", c.FirstPage)
		}
		if c.IdentifierType == "ISSN" {
			entry.Set("issn", c.Identifier)
		}
	}

	for _, id := range m.Identifiers {
		if id.IdentifierType == "ISBN" {
			entry.Set("isbn", id.Identifier)
			break
		}
	}

	entry.Set("publisher", escapeBibtex(m.Publisher.Name()))

	if parts := hub.DateParts(m.PublicationDate()); len(parts) > 0 {
		entry.Set("year", fmt.Sprintf("%d", parts[0]))
		if len(parts) > 1 {
			entry.Set("month", monthToString(parts[1]))
		}
	} else if m.PublicationYear > 0 {
		entry.Set("year", fmt.Sprintf("%d", m.PublicationYear))
	}

	entry.Set("abstract", escapeBibtex(m.Abstract()))
	if len(m.RightsList) > 0 {
		entry.Set("copyright", escapeBibtex(m.RightsList[0].Rights))
	}

	return entry
}

// entryTypeFor picks the entry type, preferring the one the metadata was
// read with.
func entryTypeFor(m *hub.Metadata) string {
	if m.Types == nil {
		return "misc"
	}
	if m.Types.Bibtex != "" {
		return m.Types.Bibtex
	}
	return hub.TypesFor(m.Types.ResourceTypeGeneral, m.Types.ResourceType).Bibtex
}

// generateCitationKey creates a citation key from record metadata.
func generateCitationKey(m *hub.Metadata) string {
	var author string
	if len(m.Creators) > 0 {
		c := m.Creators[0]
		if c.FamilyName != "" {
			author = c.FamilyName
		} else if c.Name != "" {
			parts := strings.Fields(c.Name)
			if len(parts) > 0 {
				author = parts[len(parts)-1]
			}
		}
	}
	if author == "" {
		author = "unknown"
	}

	year := "nd"
	if m.PublicationYear > 0 {
		year = fmt.Sprintf("%d", m.PublicationYear)
	}

	// Clean author name
	author = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			return r
		}
		return -1
	}, author)

	return strings.ToLower(author) + year
}

// monthToString converts month number to BibTeX month abbreviation.
func monthToString(month int) string {
	months := []string{"", "jan", "feb", "mar", "apr", "may", "jun", "jul", "aug", "sep", "oct", "nov", "dec"}
	if month >= 1 && month <= 12 {
		return months[month]
	}
	return ""
}

// entryToBibtex writes an entry as BibTeX text. Month macros stay bare.
func entryToBibtex(entry *Entry) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "@%s{%s,\n", entry.EntryType, entry.CitationKey)
	for _, name := range entry.order {
		value := entry.Fields[name]
		if name == "month" {
			fmt.Fprintf(&sb, "  month = %s,\n", value)
			continue
		}
		fmt.Fprintf(&sb, "  %s = {%s},\n", name, value)
	}
	sb.WriteString("}\n")
	return sb.String()
}

// formatPersons formats a list of persons for BibTeX.
func formatPersons(persons hub.List[hub.Creator]) string {
	var names []string
	for _, p := range persons {
		name := formatPerson(p)
		if name != "" {
			names = append(names, name)
		}
	}
	return strings.Join(names, " and ")
}

// formatPerson formats a single person for BibTeX. Organizations are
// braced so they are not split into name parts.
func formatPerson(p hub.Creator) string {
	if p.IsOrganization() {
		return "{" + escapeBibtex(p.Name) + "}"
	}
	if p.FamilyName != "" {
		if p.GivenName != "" {
			return escapeBibtex(p.FamilyName + ", " + p.GivenName)
		}
		return escapeBibtex(p.FamilyName)
	}
	return escapeBibtex(p.Name)
}

// escapeBibtex escapes special characters for BibTeX.
func escapeBibtex(s string) string {
	// BibTeX special characters that need escaping
	s = strings.ReplaceAll(s, "&", "\\&")
	s = strings.ReplaceAll(s, "%", "\\%")
	s = strings.ReplaceAll(s, "$", "\\$")
	s = strings.ReplaceAll(s, "#", "\\#")
	s = strings.ReplaceAll(s, "_", "\\_")
	return s
}
