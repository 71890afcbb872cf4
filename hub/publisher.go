package hub

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Publisher is a tagged union: either a plain name or a structured record
// carrying an identifier. The zero value means no publisher.
type Publisher struct {
	name       string
	structured *StructuredPublisher
}

// StructuredPublisher is the kernel-4.5+ publisher with identifier attributes.
type StructuredPublisher struct {
	Name                      string `json:"name"`
	PublisherIdentifier       string `json:"publisherIdentifier,omitempty"`
	PublisherIdentifierScheme string `json:"publisherIdentifierScheme,omitempty"`
	SchemeURI                 string `json:"schemeUri,omitempty"`
	Lang                      string `json:"lang,omitempty"`
}

// PlainPublisher returns a publisher that is only a name.
func PlainPublisher(name string) Publisher {
	return Publisher{name: strings.TrimSpace(name)}
}

// NewStructuredPublisher returns a publisher carrying identifier attributes.
func NewStructuredPublisher(p StructuredPublisher) Publisher {
	p.Name = strings.TrimSpace(p.Name)
	return Publisher{name: p.Name, structured: &p}
}

// Name returns the publisher name regardless of variant.
func (p Publisher) Name() string {
	return p.name
}

// Structured returns the structured variant, if that is what p holds.
func (p Publisher) Structured() (StructuredPublisher, bool) {
	if p.structured == nil {
		return StructuredPublisher{}, false
	}
	return *p.structured, true
}

// IsZero reports whether no publisher is set.
func (p Publisher) IsZero() bool {
	return p.name == "" && p.structured == nil
}

// String implements fmt.Stringer.
func (p Publisher) String() string {
	return p.name
}

// MarshalJSON writes a string for the plain variant and an object for the
// structured one.
func (p Publisher) MarshalJSON() ([]byte, error) {
	if p.structured != nil {
		return json.Marshal(p.structured)
	}
	return json.Marshal(p.name)
}

// UnmarshalJSON accepts a string or a publisher object.
func (p *Publisher) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*p = Publisher{}
		return nil
	}

	switch data[0] {
	case '"':
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return err
		}
		*p = PlainPublisher(name)
		return nil
	case '{':
		var sp StructuredPublisher
		if err := json.Unmarshal(data, &sp); err != nil {
			return err
		}
		*p = NewStructuredPublisher(sp)
		return nil
	default:
		return fmt.Errorf("publisher must be a string or an object, got %s", data)
	}
}
