// Package dcjson provides a format plugin for DataCite JSON, the canonical
// JSON shape of the metadata model.
package dcjson

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

// MediaType is the content type of DataCite JSON.
const MediaType = "application/vnd.datacite.datacite+json"

// Format implements DataCite JSON.
type Format struct{}

var (
	_ format.Parser     = (*Format)(nil)
	_ format.Serializer = (*Format)(nil)
)

// Name returns the format identifier.
func (f *Format) Name() string {
	return "datacite-json"
}

// Description returns a human-readable format description.
func (f *Format) Description() string {
	return "DataCite JSON"
}

// Extensions returns file extensions associated with this format.
func (f *Format) Extensions() []string {
	return []string{"json"}
}

// MediaType returns the content type used for content negotiation.
func (f *Format) MediaType() string {
	return MediaType
}

// keys that only DataCite JSON uses at the top level.
var markers = [][]byte{
	[]byte(`"creators"`),
	[]byte(`"titles"`),
	[]byte(`"publicationYear"`),
	[]byte(`"types"`),
	[]byte(`"relatedIdentifiers"`),
	[]byte(`"schemaVersion"`),
	[]byte(`"doi"`),
}

// CanParse returns true for a JSON object or array carrying DataCite keys
// and no JSON-LD context.
func (f *Format) CanParse(peek []byte) bool {
	peek = bytes.TrimSpace(peek)
	if len(peek) == 0 || (peek[0] != '{' && peek[0] != '[') {
		return false
	}
	if bytes.Contains(peek, []byte(`"@context"`)) || bytes.Contains(peek, []byte(`"@type"`)) {
		return false
	}
	for _, m := range markers {
		if bytes.Contains(peek, m) {
			return true
		}
	}
	return false
}

// record is the part of a DataCite JSON document outside the model: the
// resolver-form id some producers send instead of doi.
type record struct {
	ID         string `json:"id"`
	Identifier string `json:"identifier"`
}

// Parse reads one DataCite JSON object or an array of them.
func (f *Format) Parse(r io.Reader, opts *format.ParseOptions) ([]*hub.Metadata, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("empty DataCite JSON input")
	}

	var items []json.RawMessage
	if data[0] == '[' {
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, fmt.Errorf("parsing DataCite JSON: %w", err)
		}
	} else {
		items = []json.RawMessage{data}
	}

	stripHTML := opts != nil && opts.StripHTML
	records := make([]*hub.Metadata, 0, len(items))
	for i, item := range items {
		m := &hub.Metadata{}
		if err := json.Unmarshal(item, m); err != nil {
			return nil, fmt.Errorf("parsing DataCite JSON record %d: %w", i, err)
		}

		if m.DOI == "" {
			var extra record
			if err := json.Unmarshal(item, &extra); err == nil {
				switch {
				case hub.DOIFromURL(extra.ID) != "":
					m.DOI = hub.NormalizeDOI(extra.ID)
				case hub.DOIFromURL(extra.Identifier) != "":
					m.DOI = hub.NormalizeDOI(extra.Identifier)
				}
			}
		}

		if stripHTML {
			for j := range m.Descriptions {
				m.Descriptions[j].Description = helpers.StripHTML(m.Descriptions[j].Description)
			}
		}

		records = append(records, m)
	}
	return records, nil
}

// Serialize writes DataCite JSON: a single object for one record, an array
// otherwise. Target schemas below kernel-4 are rejected.
func (f *Format) Serialize(w io.Writer, records []*hub.Metadata, opts *format.SerializeOptions) error {
	if opts == nil {
		opts = format.NewSerializeOptions()
	}
	if strings.TrimSpace(opts.SchemaVersion) != "" {
		kernel, err := hub.KernelOf(opts.SchemaVersion)
		if err != nil {
			return err
		}
		if kernel != hub.Kernel4 {
			return &format.UnsupportedSchemaError{Schema: opts.SchemaVersion}
		}
	}

	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	if opts.Pretty {
		encoder.SetIndent("", "  ")
	}

	if len(records) == 1 {
		return encoder.Encode(records[0])
	}
	return encoder.Encode(records)
}

func init() {
	format.Register(&Format{})
}
