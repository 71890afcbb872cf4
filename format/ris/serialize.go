package ris

import (
	"fmt"
	"io"
	"strings"

	"github.com/lehigh-university-libraries/doiregistry/format"
	"github.com/lehigh-university-libraries/doiregistry/hub"
)

// Serialize writes metadata as RIS references.
func (f *Format) Serialize(w io.Writer, records []*hub.Metadata, opts *format.SerializeOptions) error {
	_ = opts

	for _, m := range records {
		if _, err := io.WriteString(w, metadataToRIS(m)); err != nil {
			return err
		}
	}
	return nil
}

// metadataToRIS renders one reference. Tags follow the order reference
// managers export them in.
func metadataToRIS(m *hub.Metadata) string {
	var sb strings.Builder
	tag := func(name, value string) {
		value = strings.TrimSpace(strings.ReplaceAll(value, "\n", " "))
		if value == "" {
			return
		}
		fmt.Fprintf(&sb, "%s  - %s\n", name, value)
	}

	tag("TY", typeFor(m))
	tag("T1", m.MainTitle())

	c := m.Container
	if c == nil {
		c = hub.DeriveContainer(m)
	}
	if c != nil {
		tag("T2", c.Title)
	}

	for _, cr := range m.Creators {
		tag("AU", cr.InvertedName())
	}
	for _, ct := range m.Contributors {
		if ct.ContributorType == "Editor" {
			tag("A2", ct.AsCreator().InvertedName())
		}
	}

	tag("DO", hub.NormalizeDOI(m.DOI))
	tag("UR", m.URL)
	tag("AB", m.Abstract())
	for _, s := range m.Subjects {
		tag("KW", s.Subject)
	}

	if parts := hub.DateParts(m.PublicationDate()); len(parts) > 0 {
		tag("PY", fmt.Sprintf("%d", parts[0]))
		if len(parts) > 1 {
			tag("DA", hub.FormatDateParts(parts, "/"))
		}
	}

	tag("PB", m.Publisher.Name())
	tag("LA", m.Language)

	if c != nil {
		if c.IdentifierType == "ISSN" || c.IdentifierType == "ISBN" {
			tag("SN", c.Identifier)
		}
		tag("VL", c.Volume)
		tag("IS", c.Issue)
		tag("SP", c.FirstPage)
		tag("EP", c.LastPage)
	} else {
		for _, id := range m.Identifiers {
			if id.IdentifierType == "ISSN" || id.IdentifierType == "ISBN" {
				tag("SN", id.Identifier)
				break
			}
		}
	}

	sb.WriteString("ER  - \n")
	return sb.String()
}

// typeFor picks the TY value, preferring the one the metadata was read with.
func typeFor(m *hub.Metadata) string {
	if m.Types == nil {
		return "GEN"
	}
	if m.Types.RIS != "" {
		return m.Types.RIS
	}
	return hub.TypesFor(m.Types.ResourceTypeGeneral, m.Types.ResourceType).RIS
}
