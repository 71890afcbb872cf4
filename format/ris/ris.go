// Package ris provides a format plugin for RIS, the tagged reference format
// read by most reference managers.
package ris

import (
	"bufio"
	"bytes"

	"github.com/lehigh-university-libraries/doiregistry/format"
)

// MediaType is the content type of RIS.
const MediaType = "application/x-research-info-systems"

// Format implements the RIS format.
type Format struct{}

var (
	_ format.Parser     = (*Format)(nil)
	_ format.Serializer = (*Format)(nil)
)

// Name returns the format identifier.
func (f *Format) Name() string {
	return "ris"
}

// Description returns a human-readable format description.
func (f *Format) Description() string {
	return "RIS (Research Information Systems)"
}

// Extensions returns file extensions associated with this format.
func (f *Format) Extensions() []string {
	return []string{"ris"}
}

// MediaType returns the content type used for content negotiation.
func (f *Format) MediaType() string {
	return MediaType
}

// CanParse returns true if the first non-blank line is a TY tag.
func (f *Format) CanParse(peek []byte) bool {
	scanner := bufio.NewScanner(bytes.NewReader(peek))
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		return bytes.HasPrefix(line, []byte("TY  -"))
	}
	return false
}

func init() {
	format.Register(&Format{})
}
