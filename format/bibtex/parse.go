package bibtex

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/lehigh-university-libraries/doiregistry/format"
	"github.com/lehigh-university-libraries/doiregistry/helpers"
	"github.com/lehigh-university-libraries/doiregistry/hub"
)

var (
	latexEscapeRegex = regexp.MustCompile(`\\([&%$#_])`)
	pagesRegex       = regexp.MustCompile(`^\s*([^\s-]+)\s*-{1,2}\s*([^\s-]+)\s*$`)
)

// Parse reads BibTeX entries.
func (f *Format) Parse(r io.Reader, opts *format.ParseOptions) ([]*hub.Metadata, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}

	entries, err := parseEntries(string(data))
	if err != nil {
		return nil, fmt.Errorf("parsing BibTeX: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("no BibTeX entries found in input")
	}

	stripHTML := opts != nil && opts.StripHTML
	records := make([]*hub.Metadata, 0, len(entries))
	for _, e := range entries {
		records = append(records, entryToMetadata(e, stripHTML))
	}
	return records, nil
}

// entryToMetadata converts a BibTeX entry to canonical metadata.
func entryToMetadata(e *Entry, stripHTML bool) *hub.Metadata {
	m := &hub.Metadata{
		Types: &hub.Types{
			ResourceTypeGeneral: hub.GeneralFromBibtex(e.EntryType),
			Bibtex:              e.EntryType,
		},
		Language: unescape(e.Get("language")),
		URL:      strings.TrimSpace(e.Get("url")),
	}

	switch {
	case e.Get("doi") != "":
		m.DOI = hub.NormalizeDOI(e.Get("doi"))
	case hub.DOIFromURL(e.CitationKey) != "":
		m.DOI = hub.NormalizeDOI(e.CitationKey)
	}

	if t := unescape(e.Get("title")); t != "" {
		m.Titles = append(m.Titles, hub.Title{Title: t})
	}

	for _, name := range splitPersons(e.Get("author")) {
		m.Creators = append(m.Creators, personFromBibtex(name))
	}
	for _, name := range splitPersons(e.Get("editor")) {
		m.Contributors = append(m.Contributors, personFromBibtex(name).AsContributor("Editor"))
	}

	publisher := unescape(e.Get("publisher"))
	if publisher == "" {
		publisher = unescape(e.Get("school"))
	}
	if publisher == "" {
		publisher = unescape(e.Get("institution"))
	}
	if publisher != "" {
		m.Publisher = hub.PlainPublisher(publisher)
	}

	if y, err := strconv.Atoi(strings.TrimSpace(e.Get("year"))); err == nil {
		m.PublicationYear = y
		date := fmt.Sprintf("%04d", y)
		if mo, err := strconv.Atoi(strings.TrimSpace(e.Get("month"))); err == nil && mo >= 1 && mo <= 12 {
			date += fmt.Sprintf("-%02d", mo)
		}
		m.Dates = append(m.Dates, hub.Date{Date: date, DateType: hub.DateIssued})
	} else if d := strings.TrimSpace(e.Get("date")); d != "" {
		m.PublicationYear = hub.YearOf(d)
		m.Dates = append(m.Dates, hub.Date{Date: d, DateType: hub.DateIssued})
	}

	if abstract := unescape(e.Get("abstract")); abstract != "" {
		if stripHTML {
			abstract = helpers.StripHTML(abstract)
		}
		m.Descriptions = append(m.Descriptions, hub.Description{Description: abstract, DescriptionType: "Abstract"})
	}

	for _, kw := range strings.Split(e.Get("keywords"), ",") {
		if kw = unescape(kw); kw != "" {
			m.Subjects = append(m.Subjects, hub.Subject{Subject: kw})
		}
	}

	if isbn := strings.TrimSpace(e.Get("isbn")); isbn != "" {
		m.Identifiers = append(m.Identifiers, hub.AlternateIdentifier{Identifier: isbn, IdentifierType: "ISBN"})
	}

	if rights := unescape(e.Get("copyright")); rights != "" {
		m.RightsList = append(m.RightsList, hub.Rights{Rights: rights})
	}

	if item, ok := containerFromEntry(e); ok {
		m.RelatedItems = append(m.RelatedItems, item)
	}

	return m
}

// containerFromEntry builds the journal or book an entry was published in.
func containerFromEntry(e *Entry) (hub.RelatedItem, bool) {
	title := unescape(e.Get("journal"))
	itemType := "Journal"
	if title == "" {
		title = unescape(e.Get("booktitle"))
		itemType = "Book"
		if e.EntryType == "inproceedings" {
			itemType = "ConferenceProceeding"
		}
	}
	issn := strings.TrimSpace(e.Get("issn"))
	if title == "" && issn == "" {
		return hub.RelatedItem{}, false
	}

	item := hub.RelatedItem{
		RelationType:    "IsPublishedIn",
		RelatedItemType: itemType,
		Volume:          strings.TrimSpace(e.Get("volume")),
		Issue:           strings.TrimSpace(e.Get("number")),
	}
	if title != "" {
		item.Titles = hub.List[hub.Title]{{Title: title}}
	}
	if issn != "" {
		item.RelatedItemIdentifier = &hub.RelatedItemIdentifier{RelatedItemIdentifier: issn, RelatedItemIdentifierType: "ISSN"}
	}
	if pages := strings.TrimSpace(e.Get("pages")); pages != "" {
		if m := pagesRegex.FindStringSubmatch(pages); m != nil {
			item.FirstPage, item.LastPage = m[1], m[2]
		} else {
			item.FirstPage = pages
		}
	}
	return item, true
}

// splitPersons splits a name list on the top-level "and" separators.
func splitPersons(s string) []string {
	var (
		out   []string
		depth int
		start int
	)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
		}
		if depth == 0 && i+5 <= len(s) && strings.EqualFold(s[i:i+5], " and ") {
			out = append(out, s[start:i])
			start = i + 5
			i += 4
		}
	}
	out = append(out, s[start:])

	var names []string
	for _, n := range out {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	return names
}

// personFromBibtex reads one author. A name fully wrapped in braces is an
// organization.
func personFromBibtex(name string) hub.Creator {
	if strings.HasPrefix(name, "{") && strings.HasSuffix(name, "}") && strings.Count(name, "{") == 1 {
		return hub.Creator{Name: unescape(name), NameType: hub.NameTypeOrganizational}
	}
	return helpers.PersonFromName(unescape(name))
}

// unescape removes LaTeX escapes and protective braces.
func unescape(s string) string {
	s = strings.NewReplacer(`\{`, "\x01", `\}`, "\x02").Replace(s)
	s = latexEscapeRegex.ReplaceAllString(s, "$1")
	s = strings.NewReplacer("{", "", "}", "", "\x01", "{", "\x02", "}").Replace(s)
	return helpers.NormalizeWhitespace(s)
}
