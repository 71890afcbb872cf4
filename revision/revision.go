// Package revision keeps the metadata history of a DOI.
//
// A Snapshot is taken on every content change and stored next to the
// record. Undo restores the snapshot before the latest one.
package revision

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/lehigh-university-libraries/doiregistry/hub"
)

// ErrNothingToUndo is returned when a DOI has fewer than two snapshots.
var ErrNothingToUndo = errors.New("no earlier revision to restore")

// Snapshot is an immutable copy of a DOI's metadata at one version.
type Snapshot struct {
	ID        uuid.UUID       `json:"id"`
	DOI       string          `json:"doi"`
	Version   int             `json:"version"`
	XML       []byte          `json:"xml,omitempty"`
	Namespace string          `json:"namespace,omitempty"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	Created   time.Time       `json:"created"`
}

// Content is the part of a DOI a snapshot captures.
type Content struct {
	DOI      string
	XML      []byte
	Metadata *hub.Metadata
}

// Take captures c as the given version.
func Take(c Content, version int, now time.Time) (*Snapshot, error) {
	s := &Snapshot{
		ID:        uuid.New(),
		DOI:       c.DOI,
		Version:   version,
		XML:       slices.Clone(c.XML),
		Namespace: Namespace(c.XML),
		Created:   now.UTC(),
	}
	if c.Metadata != nil {
		data, err := json.Marshal(c.Metadata)
		if err != nil {
			return nil, fmt.Errorf("encoding metadata: %w", err)
		}
		s.Metadata = data
	}
	return s, nil
}

// Restore decodes the snapshot's metadata.
func (s *Snapshot) Restore() (*hub.Metadata, error) {
	m := &hub.Metadata{}
	if len(s.Metadata) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(s.Metadata, m); err != nil {
		return nil, fmt.Errorf("decoding snapshot %d of %s: %w", s.Version, s.DOI, err)
	}
	return m, nil
}

// Namespace returns the default namespace of the root element, or "" when
// data is not XML.
func Namespace(data []byte) string {
	if len(bytes.TrimSpace(data)) == 0 {
		return ""
	}
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err != nil {
			return ""
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		for _, attr := range start.Attr {
			if attr.Name.Space == "" && attr.Name.Local == "xmlns" {
				return attr.Value
			}
		}
		return start.Name.Space
	}
}

// Sort orders snapshots by version, oldest first.
func Sort(snaps []Snapshot) {
	slices.SortStableFunc(snaps, func(a, b Snapshot) int {
		return a.Version - b.Version
	})
}

// Latest returns the snapshot with the highest version.
func Latest(snaps []Snapshot) (Snapshot, bool) {
	if len(snaps) == 0 {
		return Snapshot{}, false
	}
	best := snaps[0]
	for _, s := range snaps[1:] {
		if s.Version > best.Version {
			best = s
		}
	}
	return best, true
}

// UndoTarget picks the snapshot preceding the latest one. Undo is one
// level: calling it again after the restore was saved returns the
// snapshot that the undo replaced.
func UndoTarget(snaps []Snapshot) (Snapshot, error) {
	if len(snaps) < 2 {
		return Snapshot{}, ErrNothingToUndo
	}
	sorted := slices.Clone(snaps)
	Sort(sorted)
	return sorted[len(sorted)-2], nil
}

// NextVersion is the version the next snapshot of a DOI should carry.
func NextVersion(snaps []Snapshot) int {
	latest, ok := Latest(snaps)
	if !ok {
		return 1
	}
	return latest.Version + 1
}

// Patch renders a line diff between two snapshots. XML is compared when
// both snapshots have it, metadata JSON otherwise. Lines are prefixed with
// "-", "+" or " ".
func Patch(a, b Snapshot) string {
	useXML := len(a.XML) > 0 && len(b.XML) > 0
	before, after := patchText(a, useXML), patchText(b, useXML)
	if before == after {
		return ""
	}

	dmp := diffmatchpatch.New()
	oldChars, newChars, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffMain(oldChars, newChars, false)
	diffs = dmp.DiffCharsToLines(diffs, lines)

	var sb strings.Builder
	fmt.Fprintf(&sb, "--- %s version %d\n", a.DOI, a.Version)
	fmt.Fprintf(&sb, "+++ %s version %d\n", b.DOI, b.Version)
	for _, d := range diffs {
		prefix := " "
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			sb.WriteString(prefix)
			sb.WriteString(line)
			if !strings.HasSuffix(line, "\n") {
				sb.WriteString("\n")
			}
		}
	}
	return sb.String()
}

func patchText(s Snapshot, useXML bool) string {
	if useXML {
		return string(s.XML)
	}
	if len(s.Metadata) == 0 {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, s.Metadata, "", "  "); err != nil {
		return string(s.Metadata)
	}
	return buf.String()
}
