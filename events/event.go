// Package events models the relation and usage events between identifiers
// and folds them into per-DOI aggregates.
package events

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lehigh-university-libraries/doiregistry/hub"
)

// Usage relation types.
const (
	RelationViews     = "unique-dataset-investigations-regular"
	RelationDownloads = "unique-dataset-requests-regular"

	DefaultRelation = "references"
)

// Event is one directional relation between two identifiers. Events are
// append-only; Seq is assigned by the store that accepted the event.
type Event struct {
	ID             uuid.UUID `json:"id"`
	SubjID         string    `json:"subjId"`
	ObjID          string    `json:"objId"`
	RelationTypeID string    `json:"relationTypeId"`
	SourceID       string    `json:"sourceId,omitempty"`
	OccurredAt     time.Time `json:"occurredAt"`
	Total          int       `json:"total"`
	Seq            int64     `json:"seq,omitempty"`

	// Set by Derive.
	SourceDOI            string `json:"sourceDoi,omitempty"`
	TargetDOI            string `json:"targetDoi,omitempty"`
	SourceRelationTypeID string `json:"sourceRelationTypeId,omitempty"`
	TargetRelationTypeID string `json:"targetRelationTypeId,omitempty"`
}

// ApplyDefaults fills the fields producers may omit: a random id, a total
// of one, the references relation and an occurrence time of now. Subject
// and object DOIs are rewritten as lowercase resolver URLs.
func (e *Event) ApplyDefaults(now time.Time) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Total == 0 {
		e.Total = 1
	}
	e.RelationTypeID = strings.ToLower(strings.TrimSpace(e.RelationTypeID))
	if e.RelationTypeID == "" {
		e.RelationTypeID = DefaultRelation
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = now.UTC()
	}
	e.SubjID = normalizeSubject(e.SubjID)
	e.ObjID = normalizeSubject(e.ObjID)
}

func normalizeSubject(id string) string {
	id = strings.TrimSpace(id)
	if hub.DOIFromURL(id) != "" {
		return hub.DOIURL(id)
	}
	return id
}

type direction struct {
	reversed       bool
	sourceRelation string
	targetRelation string
	targetOnly     bool
}

var derivations = map[string]direction{
	"cites":              {sourceRelation: "references", targetRelation: "citations"},
	"is-supplemented-by": {sourceRelation: "references", targetRelation: "citations"},
	"references":         {sourceRelation: "references", targetRelation: "citations"},
	"is-cited-by":        {reversed: true, sourceRelation: "references", targetRelation: "citations"},
	"is-supplement-to":   {reversed: true, sourceRelation: "references", targetRelation: "citations"},
	"is-referenced-by":   {reversed: true, sourceRelation: "references", targetRelation: "citations"},
	RelationViews:        {targetOnly: true, targetRelation: "views"},
	RelationDownloads:    {targetOnly: true, targetRelation: "downloads"},
	"has-version":        {sourceRelation: "versions", targetRelation: "version_of"},
	"is-version-of":      {reversed: true, sourceRelation: "versions", targetRelation: "version_of"},
	"has-part":           {sourceRelation: "parts", targetRelation: "part_of"},
	"is-part-of":         {reversed: true, sourceRelation: "parts", targetRelation: "part_of"},
}

// Derive sets the source and target DOIs and their relation names from the
// relation type. DOIs are extracted from resolver URLs and uppercased.
// Relation types without a direction leave the derived fields empty.
//
// The derived fields describe the edge registry-wide: for "A cites B" the
// citing A is the source and records a reference, the cited B is the target
// and records a citation. Aggregate does not read them; it classifies each
// event from the aggregated DOI's side through the vocabulary, which files
// the related identifier of a cites event under citations on both ends.
func (e *Event) Derive() {
	d, ok := derivations[strings.ToLower(e.RelationTypeID)]
	if !ok || e.SubjID == "" || e.ObjID == "" {
		return
	}
	if d.targetOnly {
		e.TargetDOI = hub.DOIFromURL(e.ObjID)
		e.TargetRelationTypeID = d.targetRelation
		return
	}
	source, target := e.SubjID, e.ObjID
	if d.reversed {
		source, target = target, source
	}
	e.SourceDOI = hub.DOIFromURL(source)
	e.TargetDOI = hub.DOIFromURL(target)
	e.SourceRelationTypeID = d.sourceRelation
	e.TargetRelationTypeID = d.targetRelation
}

// Involves reports whether the event has doi as subject or object,
// ignoring case and resolver prefixes.
func (e *Event) Involves(doi string) bool {
	key := Key(doi)
	return Key(e.SubjID) == key || Key(e.ObjID) == key
}

// Key is the normalized form identifiers are matched and deduplicated by:
// resolver prefixes removed and lowercased.
func Key(id string) string {
	return strings.ToLower(hub.NormalizeDOI(id))
}

// Year returns the occurrence year, e.g. "2024".
func (e *Event) Year() string {
	if e.OccurredAt.IsZero() {
		return ""
	}
	return e.OccurredAt.UTC().Format("2006")
}

// YearMonth returns the occurrence month, e.g. "2024-03".
func (e *Event) YearMonth() string {
	if e.OccurredAt.IsZero() {
		return ""
	}
	return e.OccurredAt.UTC().Format("2006-01")
}
