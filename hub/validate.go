package hub

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lehigh-university-libraries/doiregistry/mapping"
)

// Target is the lifecycle state the metadata is validated for.
type Target string

const (
	TargetDraft      Target = "draft"
	TargetRegistered Target = "registered"
	TargetFindable   Target = "findable"
)

// FieldError is a validation failure attributed to one field.
type FieldError struct {
	Source string `json:"source"` // field path, e.g. "contributors[1]"
	Title  string `json:"title"`  // human-readable message
	UID    string `json:"uid,omitempty"`
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Source, e.Title)
}

// ValidationResult holds every error found; Fatal marks a result that
// stopped at an unsupported schema version.
type ValidationResult struct {
	Errors   []FieldError
	Warnings []FieldError // recommended elements that are missing
	Fatal    bool
}

// IsValid returns true if there are no errors.
func (r *ValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

// Error returns a combined error message, or nil if valid.
func (r *ValidationResult) Error() error {
	if r.IsValid() {
		return nil
	}
	var msgs []string
	for _, e := range r.Errors {
		msgs = append(msgs, e.Error())
	}
	return fmt.Errorf("validation failed: %s", strings.Join(msgs, "; "))
}

// ValidationOptions configures Validate.
type ValidationOptions struct {
	// UID is the DOI the errors are attributed to.
	UID string
	// Target is the state the record is moving to.
	Target Target
	// SchemaVersion overrides the metadata's own schemaVersion.
	SchemaVersion string
	// ExemptCreators allows findable records without creators.
	ExemptCreators bool
	// Vocabulary supplies enumerations; nil uses mapping.Default().
	Vocabulary *mapping.Vocabulary
}

// Validate checks metadata against the DataCite contract for the target
// state. All errors are collected, except an unsupported schema version,
// which is returned alone.
func Validate(m *Metadata, opts ValidationOptions) *ValidationResult {
	result := &ValidationResult{}
	voc := opts.Vocabulary
	if voc == nil {
		voc = mapping.Default()
	}
	uid := opts.UID
	if uid == "" {
		uid = NormalizeDOI(m.DOI)
	}
	add := func(source, title string) {
		result.Errors = append(result.Errors, FieldError{Source: source, Title: title, UID: uid})
	}

	schema := opts.SchemaVersion
	if schema == "" {
		schema = m.SchemaVersion
	}
	kernel, err := KernelOf(schema)
	if err != nil {
		var unsupported *UnsupportedSchemaError
		if errors.As(err, &unsupported) {
			result.Fatal = true
		}
		add("xml", err.Error())
		return result
	}

	reported := make(map[string]bool)
	for _, p := range m.Problems() {
		p.UID = uid
		result.Errors = append(result.Errors, p)
		reported[p.Source] = true
	}

	switch {
	case uid == "":
		add("doi", "DOI can't be blank.")
	case !ValidDOI(uid):
		add("doi", fmt.Sprintf("DOI %s is not valid.", uid))
	}

	requiresURL := opts.Target == TargetRegistered || opts.Target == TargetFindable
	switch {
	case strings.TrimSpace(m.URL) == "":
		if requiresURL {
			add("url", "URL can't be blank.")
		}
	case !ValidURL(m.URL):
		add("url", "URL is not valid.")
	}

	if opts.Target == TargetFindable && len(m.Creators) == 0 && !opts.ExemptCreators {
		add("creators", "Missing required element: creators. At least one creator is required.")
	}

	for i, c := range m.Creators {
		source := fmt.Sprintf("creators[%d].nameType", i)
		if c.NameType != "" && !voc.ValidNameType(c.NameType) && !reported[source] {
			add(source, nameTypeMessage("Creator", c.NameType, voc))
		}
	}

	for i, c := range m.Contributors {
		source := fmt.Sprintf("contributors[%d]", i)
		label := c.Name
		if label == "" {
			label = strings.TrimSpace(c.GivenName + " " + c.FamilyName)
		}
		switch {
		case strings.TrimSpace(c.ContributorType) == "":
			add(source, fmt.Sprintf("Contributor '%s': missing required element: contributor type.", label))
		case kernel == Kernel4 && !voc.SupportsContributorType(c.ContributorType):
			add(source, fmt.Sprintf("Contributor type %s is not supported in schema 4.", c.ContributorType))
		}

		nameSource := source + ".nameType"
		if c.NameType != "" && !voc.ValidNameType(c.NameType) && !reported[nameSource] {
			add(nameSource, nameTypeMessage("Contributor", c.NameType, voc))
		}
	}

	for i, id := range m.Identifiers {
		if strings.EqualFold(id.IdentifierType, "DOI") {
			add(fmt.Sprintf("identifiers[%d]", i), "IdentifierType DOI not supported in identifiers property. Use id or related identifier.")
		}
	}

	if m.Language != "" && !ValidLanguage(m.Language) {
		add("language", fmt.Sprintf("Language %s is in an invalid format.", m.Language))
	}

	for i, g := range m.GeoLocations {
		for _, e := range validateGeoLocation(g, fmt.Sprintf("geoLocations[%d]", i)) {
			add(e.Source, e.Title)
		}
	}

	if opts.Target == TargetFindable {
		warn := func(source, title string) {
			result.Warnings = append(result.Warnings, FieldError{Source: source, Title: title, UID: uid})
		}
		if m.MainTitle() == "" {
			warn("titles", "Recommended element missing: title.")
		}
		if m.Publisher.IsZero() {
			warn("publisher", "Recommended element missing: publisher.")
		}
		if m.PublicationYear == 0 {
			warn("publicationYear", "Recommended element missing: publicationYear.")
		}
		if m.Types == nil || m.Types.ResourceTypeGeneral == "" {
			warn("types", "Recommended element missing: resourceTypeGeneral.")
		}
	}

	return result
}

func nameTypeMessage(label, value string, voc *mapping.Vocabulary) string {
	return fmt.Sprintf("%s nameType '%s' is not one of %s.", label, value, strings.Join(voc.NameTypes, ", "))
}

func validateGeoLocation(g GeoLocation, source string) []FieldError {
	var errs []FieldError
	check := func(name string, d *Degrees, limit float64) {
		if d == nil {
			return
		}
		if !d.Valid() {
			errs = append(errs, FieldError{
				Source: source + "." + name,
				Title:  fmt.Sprintf("Geolocation %s '%s' is not a valid number.", name, d.Invalid),
			})
			return
		}
		if d.Value < -limit || d.Value > limit {
			errs = append(errs, FieldError{
				Source: source + "." + name,
				Title:  fmt.Sprintf("Geolocation %s %s is out of range.", name, d.String()),
			})
		}
	}
	checkPoint := func(prefix string, p *GeoLocationPoint) {
		if p == nil {
			return
		}
		check(prefix+"pointLongitude", p.PointLongitude, 180)
		check(prefix+"pointLatitude", p.PointLatitude, 90)
	}

	checkPoint("geoLocationPoint.", g.GeoLocationPoint)
	if b := g.GeoLocationBox; b != nil {
		check("geoLocationBox.westBoundLongitude", b.WestBoundLongitude, 180)
		check("geoLocationBox.eastBoundLongitude", b.EastBoundLongitude, 180)
		check("geoLocationBox.southBoundLatitude", b.SouthBoundLatitude, 90)
		check("geoLocationBox.northBoundLatitude", b.NorthBoundLatitude, 90)
	}
	for i, poly := range g.GeoLocationPolygon {
		for j := range poly.PolygonPoints {
			checkPoint(fmt.Sprintf("geoLocationPolygon[%d].polygonPoints[%d].", i, j), &poly.PolygonPoints[j])
		}
		checkPoint(fmt.Sprintf("geoLocationPolygon[%d].inPolygonPoint.", i), poly.InPolygonPoint)
	}
	return errs
}
