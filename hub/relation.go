package hub

import (
	"strings"
	"unicode"
)

// RelationTypes are the DataCite kernel-4 relationType values.
var RelationTypes = []string{
	"IsCitedBy", "Cites",
	"IsSupplementTo", "IsSupplementedBy",
	"IsContinuedBy", "Continues",
	"IsDescribedBy", "Describes",
	"HasMetadata", "IsMetadataFor",
	"HasVersion", "IsVersionOf",
	"IsNewVersionOf", "IsPreviousVersionOf",
	"IsPartOf", "HasPart",
	"IsPublishedIn",
	"IsReferencedBy", "References",
	"IsDocumentedBy", "Documents",
	"IsCompiledBy", "Compiles",
	"IsVariantFormOf", "IsOriginalFormOf",
	"IsIdenticalTo",
	"IsReviewedBy", "Reviews",
	"IsDerivedFrom", "IsSourceOf",
	"IsRequiredBy", "Requires",
	"IsObsoletedBy", "Obsoletes",
	"IsCollectedBy", "Collects",
	"IsTranslationOf", "HasTranslation",
}

var relationInverses = map[string]string{
	"IsCitedBy":           "Cites",
	"IsSupplementTo":      "IsSupplementedBy",
	"IsContinuedBy":       "Continues",
	"IsDescribedBy":       "Describes",
	"HasMetadata":         "IsMetadataFor",
	"HasVersion":          "IsVersionOf",
	"IsNewVersionOf":      "IsPreviousVersionOf",
	"IsPartOf":            "HasPart",
	"IsReferencedBy":      "References",
	"IsDocumentedBy":      "Documents",
	"IsCompiledBy":        "Compiles",
	"IsVariantFormOf":     "IsOriginalFormOf",
	"IsReviewedBy":        "Reviews",
	"IsDerivedFrom":       "IsSourceOf",
	"IsRequiredBy":        "Requires",
	"IsObsoletedBy":       "Obsoletes",
	"IsCollectedBy":       "Collects",
	"IsTranslationOf":     "HasTranslation",
	"IsIdenticalTo":       "IsIdenticalTo",
	"IsPublishedIn":       "HasPart",
	"Cites":               "IsCitedBy",
	"IsSupplementedBy":    "IsSupplementTo",
	"Continues":           "IsContinuedBy",
	"Describes":           "IsDescribedBy",
	"IsMetadataFor":       "HasMetadata",
	"IsVersionOf":         "HasVersion",
	"IsPreviousVersionOf": "IsNewVersionOf",
	"HasPart":             "IsPartOf",
	"References":          "IsReferencedBy",
	"Documents":           "IsDocumentedBy",
	"Compiles":            "IsCompiledBy",
	"IsOriginalFormOf":    "IsVariantFormOf",
	"Reviews":             "IsReviewedBy",
	"IsSourceOf":          "IsDerivedFrom",
	"Requires":            "IsRequiredBy",
	"Obsoletes":           "IsObsoletedBy",
	"Collects":            "IsCollectedBy",
	"HasTranslation":      "IsTranslationOf",
}

// RelationInverse returns the inverse DataCite relation type, or rt itself
// when it has none.
func RelationInverse(rt string) string {
	if inv, ok := relationInverses[rt]; ok {
		return inv
	}
	return rt
}

// RelationTypeID converts a DataCite relationType ("IsCitedBy") to the
// event vocabulary form ("is-cited-by"). Values already in that form are
// returned lowercased.
func RelationTypeID(rt string) string {
	rt = strings.TrimSpace(rt)
	if strings.Contains(rt, "-") || strings.Contains(rt, "_") {
		return strings.ToLower(strings.ReplaceAll(rt, "_", "-"))
	}
	var b strings.Builder
	for i, r := range rt {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// RelationTypeName converts an event relation type id ("is-cited-by") to
// the DataCite form ("IsCitedBy").
func RelationTypeName(id string) string {
	parts := strings.FieldsFunc(strings.ToLower(id), func(r rune) bool {
		return r == '-' || r == '_'
	})
	var b strings.Builder
	for _, p := range parts {
		if p == "" {
			continue
		}
		b.WriteString(strings.ToUpper(p[:1]))
		b.WriteString(p[1:])
	}
	return b.String()
}

// NormalizeRelationType maps loosely written relation names ("is_part_of",
// "ispartof", "Is Part Of") to the DataCite spelling. Unknown values are
// returned unchanged.
func NormalizeRelationType(value string) string {
	squash := func(s string) string {
		return strings.Map(func(r rune) rune {
			if r == '-' || r == '_' || unicode.IsSpace(r) {
				return -1
			}
			return unicode.ToLower(r)
		}, s)
	}
	want := squash(value)
	for _, rt := range RelationTypes {
		if squash(rt) == want {
			return rt
		}
	}
	return value
}

// IsContainerRelation reports whether a relation places the resource inside
// a larger container (journal, book, series).
func IsContainerRelation(rt string) bool {
	return rt == "IsPublishedIn" || rt == "IsPartOf"
}
