package ris

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/lehigh-university-libraries/doiregistry/format"
	"github.com/lehigh-university-libraries/doiregistry/helpers"
	"github.com/lehigh-university-libraries/doiregistry/hub"
)

// Record is one RIS reference: tag to values, in input order per tag.
type Record map[string][]string

// Get returns the first value of the first tag present.
func (r Record) Get(tags ...string) string {
	for _, tag := range tags {
		if v := r[tag]; len(v) > 0 {
			return v[0]
		}
	}
	return ""
}

// All returns the values of every given tag, in tag order.
func (r Record) All(tags ...string) []string {
	var out []string
	for _, tag := range tags {
		out = append(out, r[tag]...)
	}
	return out
}

// Parse reads RIS references, one per TY ... ER block.
func (f *Format) Parse(r io.Reader, opts *format.ParseOptions) ([]*hub.Metadata, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}

	refs, err := readRecords(data)
	if err != nil {
		return nil, err
	}
	if len(refs) == 0 {
		return nil, fmt.Errorf("no RIS records found in input")
	}

	stripHTML := opts != nil && opts.StripHTML
	records := make([]*hub.Metadata, 0, len(refs))
	for _, ref := range refs {
		records = append(records, recordToMetadata(ref, stripHTML))
	}
	return records, nil
}

// readRecords splits input into records. Lines without a tag continue the
// previous value.
func readRecords(data []byte) ([]Record, error) {
	var (
		out     []Record
		current Record
		lastTag string
	)

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for n := 1; scanner.Scan(); n++ {
		line := strings.TrimRight(scanner.Text(), "\r ")
		line = strings.TrimPrefix(line, "\ufeff")
		if strings.TrimSpace(line) == "" {
			continue
		}

		tag, value, ok := splitTag(line)
		if !ok {
			if current == nil || lastTag == "" {
				return nil, fmt.Errorf("line %d: expected a RIS tag", n)
			}
			vals := current[lastTag]
			vals[len(vals)-1] += " " + strings.TrimSpace(line)
			continue
		}

		switch tag {
		case "TY":
			if current != nil {
				return nil, fmt.Errorf("line %d: TY before ER of the previous record", n)
			}
			current = Record{}
		case "ER":
			if current == nil {
				return nil, fmt.Errorf("line %d: ER without TY", n)
			}
			out = append(out, current)
			current, lastTag = nil, ""
			continue
		}
		if current == nil {
			return nil, fmt.Errorf("line %d: tag %s outside a record", n, tag)
		}
		current[tag] = append(current[tag], value)
		lastTag = tag
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading RIS: %w", err)
	}
	if current != nil {
		out = append(out, current)
	}
	return out, nil
}

// splitTag reads "XX  - value".
func splitTag(line string) (string, string, bool) {
	if len(line) < 5 || line[2:5] != "  -" {
		return "", "", false
	}
	tag := line[:2]
	for _, r := range tag {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return "", "", false
		}
	}
	return tag, strings.TrimSpace(line[5:]), true
}

// recordToMetadata converts a RIS record to canonical metadata.
func recordToMetadata(r Record, stripHTML bool) *hub.Metadata {
	ty := r.Get("TY")
	m := &hub.Metadata{
		Types:    &hub.Types{ResourceTypeGeneral: hub.GeneralFromRIS(ty), RIS: ty},
		DOI:      hub.NormalizeDOI(r.Get("DO")),
		URL:      r.Get("UR"),
		Language: r.Get("LA"),
	}

	if t := r.Get("TI", "T1"); t != "" {
		m.Titles = append(m.Titles, hub.Title{Title: t})
	}

	for _, name := range r.All("AU", "A1") {
		m.Creators = append(m.Creators, helpers.PersonFromName(name))
	}
	for _, name := range r.All("A2", "ED") {
		m.Contributors = append(m.Contributors, helpers.PersonFromName(name).AsContributor("Editor"))
	}

	if pb := r.Get("PB"); pb != "" {
		m.Publisher = hub.PlainPublisher(pb)
	}

	date := risDate(r.Get("DA"))
	if date == "" {
		date = risDate(r.Get("PY", "Y1"))
	}
	if date != "" {
		m.SetIssued(date)
	}

	if ab := r.Get("AB", "N2"); ab != "" {
		if stripHTML {
			ab = helpers.StripHTML(ab)
		}
		m.Descriptions = append(m.Descriptions, hub.Description{Description: ab, DescriptionType: "Abstract"})
	}

	for _, kw := range r.All("KW") {
		m.Subjects = append(m.Subjects, hub.Subject{Subject: kw})
	}

	container := r.Get("T2", "JO", "JF", "JA")
	sn := r.Get("SN")
	if container != "" || r.Get("VL") != "" {
		item := hub.RelatedItem{
			RelationType:    "IsPublishedIn",
			RelatedItemType: containerType(ty),
			Volume:          r.Get("VL"),
			Issue:           r.Get("IS"),
			FirstPage:       r.Get("SP"),
			LastPage:        r.Get("EP"),
		}
		if container != "" {
			item.Titles = hub.List[hub.Title]{{Title: container}}
		}
		if sn != "" {
			item.RelatedItemIdentifier = &hub.RelatedItemIdentifier{RelatedItemIdentifier: sn, RelatedItemIdentifierType: snType(ty)}
		}
		m.RelatedItems = append(m.RelatedItems, item)
	} else if sn != "" {
		m.Identifiers = append(m.Identifiers, hub.AlternateIdentifier{Identifier: sn, IdentifierType: snType(ty)})
	}

	return m
}

// risDate turns "2021/03/04/extra" or "2021-03-04" into an ISO date.
func risDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == '/' || r == '-' })
	var ints []int
	for _, p := range parts {
		var n int
		if _, err := fmt.Sscanf(p, "%d", &n); err != nil || n == 0 {
			break
		}
		ints = append(ints, n)
		if len(ints) == 3 {
			break
		}
	}
	return hub.FormatDateParts(ints, "-")
}

func containerType(ty string) string {
	switch ty {
	case "CHAP", "ECHAP":
		return "Book"
	case "CPAPER":
		return "ConferenceProceeding"
	default:
		return "Journal"
	}
}

// snType tells ISBN from ISSN by the reference type.
func snType(ty string) string {
	switch ty {
	case "BOOK", "EBOOK", "CHAP", "ECHAP", "CONF":
		return "ISBN"
	default:
		return "ISSN"
	}
}
