package csl

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/lehigh-university-libraries/doiregistry/hub"
)

// Item is a CSL-JSON item.
type Item struct {
	ID             string   `json:"id"`
	Type           string   `json:"type"`
	Title          string   `json:"title,omitempty"`
	Abstract       string   `json:"abstract,omitempty"`
	Language       string   `json:"language,omitempty"`
	Author         []Name   `json:"author,omitempty"`
	Editor         []Name   `json:"editor,omitempty"`
	Issued         *Date    `json:"issued,omitempty"`
	DOI            string   `json:"DOI,omitempty"`
	URL            string   `json:"URL,omitempty"`
	ISBN           string   `json:"ISBN,omitempty"`
	ISSN           string   `json:"ISSN,omitempty"`
	Publisher      string   `json:"publisher,omitempty"`
	ContainerTitle string   `json:"container-title,omitempty"`
	Volume         Variable `json:"volume,omitempty"`
	Issue          Variable `json:"issue,omitempty"`
	Page           Variable `json:"page,omitempty"`
	Version        Variable `json:"version,omitempty"`
	Categories     []string `json:"categories,omitempty"`
	Copyright      string   `json:"copyright,omitempty"`
	Custom         *Custom  `json:"custom,omitempty"`
}

// Custom is written under the CSL "custom" key. It holds the DataCite
// fields CSL has no variable for, so an item reads back as the metadata it
// was written from. When present it is authoritative for the related
// resources, the dates and the resource type.
type Custom struct {
	ResourceType       *hub.Types                      `json:"resource-type,omitempty"`
	PublicationYear    int                             `json:"publication-year,omitempty"`
	Publisher          *hub.StructuredPublisher        `json:"publisher,omitempty"`
	Dates              hub.List[hub.Date]              `json:"dates,omitempty"`
	GeoLocations       hub.List[hub.GeoLocation]       `json:"geo-locations,omitempty"`
	RelatedIdentifiers hub.List[hub.RelatedIdentifier] `json:"related-identifiers,omitempty"`
	RelatedItems       hub.List[hub.RelatedItem]       `json:"related-items,omitempty"`
}

// Name is a CSL name. Literal holds organization names.
type Name struct {
	Family  string `json:"family,omitempty"`
	Given   string `json:"given,omitempty"`
	Suffix  string `json:"suffix,omitempty"`
	Literal string `json:"literal,omitempty"`
}

// Date is a CSL date; only the first date-parts range is used.
type Date struct {
	DateParts [][]Variable `json:"date-parts,omitempty"`
	Raw       string       `json:"raw,omitempty"`
}

// Parts returns the first date as integers, stopping at the first part that
// is not a number.
func (d *Date) Parts() []int {
	if d == nil || len(d.DateParts) == 0 {
		return nil
	}
	var out []int
	for _, p := range d.DateParts[0] {
		n, err := strconv.Atoi(string(p))
		if err != nil || n == 0 {
			break
		}
		out = append(out, n)
	}
	return out
}

// MarshalJSON writes date-parts as numbers.
func (d Date) MarshalJSON() ([]byte, error) {
	type out struct {
		DateParts [][]int `json:"date-parts,omitempty"`
		Raw       string  `json:"raw,omitempty"`
	}
	o := out{Raw: d.Raw}
	if parts := d.Parts(); len(parts) > 0 {
		o.DateParts = [][]int{parts}
	}
	return json.Marshal(o)
}

// Variable is a CSL variable that producers write as a string or a number.
type Variable string

// UnmarshalJSON accepts a string or a number.
func (v *Variable) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = Variable(strings.TrimSpace(s))
		return nil
	}
	if bytes.Equal(data, []byte("null")) {
		*v = ""
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*v = Variable(n.String())
	return nil
}
