package format

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lehigh-university-libraries/doiregistry/hub"
)

// ErrEmptyInput is returned by Decode for blank input.
var ErrEmptyInput = errors.New("empty metadata input")

// Decoded is the result of Decode.
type Decoded struct {
	Metadata *hub.Metadata
	// SchemaVersion is the DataCite namespace the input declared, empty for
	// formats that carry none.
	SchemaVersion string
	// Format is the name of the format that parsed the input.
	Format string
	// Event is the lifecycle event named in a request envelope, if any.
	Event string
}

// envelope is the request wrapper clients send metadata in.
type envelope struct {
	Data struct {
		Type       string          `json:"type"`
		Attributes json.RawMessage `json:"attributes"`
	} `json:"data"`
}

// envelopeAttributes are the envelope fields Decode acts on; the rest of
// the attributes are DataCite JSON.
type envelopeAttributes struct {
	XML   string `json:"xml"`
	Event string `json:"event"`
}

// Decode reads metadata in any registered format. When declared is empty
// the format is sniffed from the content. Base64 input and request
// envelopes are unwrapped first.
func Decode(raw []byte, declared string) (*Decoded, error) {
	return DefaultRegistry.Decode(raw, declared)
}

// Encode writes metadata in the named format. targetSchema selects the
// DataCite schema generation where the format has one.
func Encode(m *hub.Metadata, formatName, targetSchema string) ([]byte, error) {
	return DefaultRegistry.Encode(m, formatName, targetSchema)
}

// Decode reads metadata using this registry's formats.
func (r *Registry) Decode(raw []byte, declared string) (*Decoded, error) {
	data := bytes.TrimSpace(raw)
	if len(data) == 0 {
		return nil, ErrEmptyInput
	}
	data = unwrapBase64(data)

	if data[0] == '{' {
		var env envelope
		if err := json.Unmarshal(data, &env); err == nil && len(env.Data.Attributes) > 0 {
			return r.decodeEnvelope(env.Data.Attributes, declared)
		}
	}

	return r.decode(data, declared)
}

func (r *Registry) decodeEnvelope(attrs json.RawMessage, declared string) (*Decoded, error) {
	var ea envelopeAttributes
	if err := json.Unmarshal(attrs, &ea); err != nil {
		return nil, fmt.Errorf("reading request attributes: %w", err)
	}

	var fromJSON hub.Metadata
	if err := json.Unmarshal(attrs, &fromJSON); err != nil {
		return nil, fmt.Errorf("reading request attributes: %w", err)
	}

	if strings.TrimSpace(ea.XML) == "" {
		d := &Decoded{
			Metadata:      &fromJSON,
			SchemaVersion: fromJSON.SchemaVersion,
			Format:        "datacite-json",
			Event:         ea.Event,
		}
		normalize(d.Metadata)
		return d, nil
	}

	d, err := r.decode(unwrapBase64(bytes.TrimSpace([]byte(ea.XML))), declared)
	if err != nil {
		return nil, err
	}
	// Attributes sent next to the payload win over the payload.
	d.Metadata.Overlay(&fromJSON)
	d.Event = ea.Event
	return d, nil
}

func (r *Registry) decode(data []byte, declared string) (*Decoded, error) {
	var (
		f   Format
		err error
	)
	if strings.TrimSpace(declared) != "" {
		f, err = r.lookup(declared)
	} else {
		f, err = r.DetectFromContent(data)
	}
	if err != nil {
		return nil, err
	}

	p, ok := f.(Parser)
	if !ok {
		return nil, fmt.Errorf("format %s does not support parsing", f.Name())
	}

	records, err := p.Parse(bytes.NewReader(data), NewParseOptions())
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("no %s records found in input", f.Name())
	}
	if len(records) > 1 {
		slog.Debug("Input holds several records, using the first", "format", f.Name(), "count", len(records))
	}

	m := records[0]
	normalize(m)
	return &Decoded{
		Metadata:      m,
		SchemaVersion: m.SchemaVersion,
		Format:        f.Name(),
	}, nil
}

// Encode writes metadata using this registry's formats.
func (r *Registry) Encode(m *hub.Metadata, formatName, targetSchema string) ([]byte, error) {
	f, err := r.lookup(formatName)
	if err != nil {
		return nil, err
	}
	s, ok := f.(Serializer)
	if !ok {
		return nil, fmt.Errorf("format %s does not support serialization", f.Name())
	}

	opts := NewSerializeOptions()
	opts.SchemaVersion = targetSchema

	var buf bytes.Buffer
	if err := s.Serialize(&buf, []*hub.Metadata{m}, opts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// lookup finds a format by name or media type.
func (r *Registry) lookup(name string) (Format, error) {
	if f, ok := r.Get(name); ok {
		return f, nil
	}
	if strings.Contains(name, "/") {
		for _, f := range r.sorted() {
			if strings.EqualFold(f.MediaType(), name) {
				return f, nil
			}
		}
	}
	return nil, fmt.Errorf("unknown format: %s", name)
}

// normalize fills the derived fields every decoded record carries.
func normalize(m *hub.Metadata) {
	if m.Container == nil {
		m.Container = hub.DeriveContainer(m)
	}
	m.DOI = hub.NormalizeDOI(m.DOI)
}

// unwrapBase64 returns the decoded payload when data is base64 of an XML
// or JSON document, and data unchanged otherwise.
func unwrapBase64(data []byte) []byte {
	switch data[0] {
	case '<', '{', '[', '@':
		return data
	}
	if bytes.HasPrefix(data, []byte("TY  -")) {
		return data
	}

	compact := strings.Join(strings.Fields(string(data)), "")
	decoded, err := base64.StdEncoding.DecodeString(compact)
	if err != nil {
		return data
	}
	decoded = bytes.TrimSpace(decoded)
	if len(decoded) == 0 {
		return data
	}
	switch decoded[0] {
	case '<', '{', '[', '@':
		return decoded
	}
	return data
}
