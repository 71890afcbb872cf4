// Package doi holds the DOI aggregate root and the service that moves it
// through its lifecycle.
package doi

import (
	"slices"
	"strings"
	"time"

	"github.com/lehigh-university-libraries/doiregistry/activity"
	"github.com/lehigh-university-libraries/doiregistry/hub"
	"github.com/lehigh-university-libraries/doiregistry/lifecycle"
	"github.com/lehigh-university-libraries/doiregistry/revision"
)

// Record is the aggregate root for a registered identifier.
//
// Invariants:
//   - DOI never changes after creation
//   - registered and findable records have a non-blank URL
//   - findable records have at least one creator unless exempted
//   - XML is always kernel-4; older kernels are re-encoded on write
//   - only draft records can be deleted
//   - Active is true exactly when State is findable
type Record struct {
	DOI             string          `json:"doi"`
	ClientID        string          `json:"clientId"`
	State           lifecycle.State `json:"state"`
	Active          bool            `json:"isActive"`
	URL             string          `json:"url,omitempty"`
	Metadata        *hub.Metadata   `json:"metadata,omitempty"`
	SchemaVersion   string          `json:"schemaVersion,omitempty"`
	XML             []byte          `json:"xml,omitempty"`
	Reason          string          `json:"reason,omitempty"`
	LandingPage     *LandingPage    `json:"landingPage,omitempty"`
	ContentURLs     []string        `json:"contentUrl,omitempty"`
	ExemptCreators  bool            `json:"exemptCreators,omitempty"`
	MetadataVersion int             `json:"metadataVersion"`
	LockVersion     int             `json:"lockVersion"`
	Created         time.Time       `json:"created"`
	Updated         time.Time       `json:"updated"`
	Registered      *time.Time      `json:"registered,omitempty"`
	Published       *time.Time      `json:"published,omitempty"`
}

// LandingPage is the last result reported by the landing page checker.
type LandingPage struct {
	URL         string    `json:"url,omitempty"`
	Status      int       `json:"status"`
	ContentType string    `json:"contentType,omitempty"`
	Error       string    `json:"error,omitempty"`
	Checked     time.Time `json:"checked"`
}

// Key is the lowercase form used to match DOIs.
func Key(doi string) string {
	return strings.ToLower(hub.NormalizeDOI(doi))
}

// Prefix returns the DOI prefix.
func (r *Record) Prefix() string {
	return hub.PrefixOf(r.DOI)
}

// Subject is the audited view of the record.
func (r *Record) Subject() activity.Subject {
	s := activity.Subject{
		DOI:           r.DOI,
		URL:           r.URL,
		State:         string(r.State),
		Reason:        r.Reason,
		SchemaVersion: r.SchemaVersion,
		ContentURLs:   r.ContentURLs,
		Metadata:      r.Metadata,
	}
	if r.LandingPage != nil {
		s.LandingPage = r.LandingPage
	}
	return s
}

// Content is the part of the record a snapshot captures.
func (r *Record) Content() revision.Content {
	return revision.Content{DOI: r.DOI, XML: r.XML, Metadata: r.Metadata}
}

// Clone returns a deep copy.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	c.Metadata = r.Metadata.Clone()
	c.XML = slices.Clone(r.XML)
	c.ContentURLs = slices.Clone(r.ContentURLs)
	if r.LandingPage != nil {
		lp := *r.LandingPage
		c.LandingPage = &lp
	}
	if r.Registered != nil {
		t := *r.Registered
		c.Registered = &t
	}
	if r.Published != nil {
		t := *r.Published
		c.Published = &t
	}
	return &c
}

// Title is the main title of the record.
func (r *Record) Title() string {
	if r.Metadata == nil {
		return ""
	}
	return r.Metadata.MainTitle()
}
