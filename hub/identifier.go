package hub

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	// crossref's recommended DOI pattern, without "+".
	doiRegex    = regexp.MustCompile(`^10\.\d{4,5}/[-._;()/:a-zA-Z0-9*~$=]+$`)
	prefixRegex = regexp.MustCompile(`^10\.\d{4,5}$`)
	doiURLRegex = regexp.MustCompile(`(?i)^(?:https?://(?:dx\.)?(?:doi\.org|handle\.test\.datacite\.org)/)?(?:doi:)?(10\.\d{4,5}/.+)$`)
	urlRegex    = regexp.MustCompile(`^(ftp|http|https)://\S+`)
	orcidRegex  = regexp.MustCompile(`^\d{4}-\d{4}-\d{4}-\d{3}[\dX]$`)
	langRegex   = regexp.MustCompile(`^[a-zA-Z]{1,8}(-[a-zA-Z0-9]{1,8})*$`)
)

// DefaultTestPrefix is the DataCite prefix reserved for sandboxed DOIs.
const DefaultTestPrefix = "10.5072"

// DOI is a parsed identifier. Prefix and Suffix keep the caller's case;
// Key returns the lowercase form used for matching.
type DOI struct {
	Prefix string
	Suffix string
}

// ParseDOI strips resolver and "doi:" prefixes and splits prefix from suffix.
func ParseDOI(s string) (DOI, error) {
	s = NormalizeDOI(s)
	prefix, suffix, ok := strings.Cut(s, "/")
	if !ok || prefix == "" || suffix == "" {
		return DOI{}, fmt.Errorf("invalid DOI %q", s)
	}
	if !prefixRegex.MatchString(prefix) {
		return DOI{}, fmt.Errorf("invalid DOI prefix %q", prefix)
	}
	return DOI{Prefix: prefix, Suffix: suffix}, nil
}

// String returns "prefix/suffix".
func (d DOI) String() string {
	return d.Prefix + "/" + d.Suffix
}

// Key returns the lowercase identifier used for matching and storage keys.
func (d DOI) Key() string {
	return strings.ToLower(d.String())
}

// Valid reports whether the full identifier uses only permitted characters.
func (d DOI) Valid() bool {
	return ValidDOI(d.String())
}

// ValidDOI reports whether s is a well formed DOI without resolver prefix.
func ValidDOI(s string) bool {
	return doiRegex.MatchString(s)
}

// ValidURL reports whether s is an ftp, http or https URL.
func ValidURL(s string) bool {
	return urlRegex.MatchString(s)
}

// ValidLanguage reports whether s looks like a BCP 47 language tag.
func ValidLanguage(s string) bool {
	return langRegex.MatchString(s)
}

// NormalizeDOI trims whitespace and removes https://doi.org/, dx.doi.org and
// doi: prefixes. It does not change case.
func NormalizeDOI(s string) string {
	s = strings.TrimSpace(s)
	if m := doiURLRegex.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return s
}

// DOIFromURL extracts an uppercase DOI from a resolver URL or doi: string.
// It returns "" when s does not contain a DOI.
func DOIFromURL(s string) string {
	m := doiURLRegex.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return ""
	}
	return strings.ToUpper(m[1])
}

// DOIURL returns the https resolver URL for a DOI.
func DOIURL(doi string) string {
	return "https://doi.org/" + strings.ToLower(NormalizeDOI(doi))
}

// ValidPrefix reports whether s is a DOI prefix such as 10.5072.
func ValidPrefix(s string) bool {
	return prefixRegex.MatchString(s)
}

// PrefixOf returns the prefix part of a DOI string.
func PrefixOf(doi string) string {
	prefix, _, _ := strings.Cut(NormalizeDOI(doi), "/")
	return prefix
}

// IsTestPrefix reports whether prefix is one of the sandbox prefixes.
// With no prefixes configured DefaultTestPrefix applies.
func IsTestPrefix(prefix string, testPrefixes []string) bool {
	if len(testPrefixes) == 0 {
		testPrefixes = []string{DefaultTestPrefix}
	}
	for _, p := range testPrefixes {
		if strings.EqualFold(prefix, p) {
			return true
		}
	}
	return false
}

// NormalizeORCID strips the orcid.org resolver from an ORCID iD.
func NormalizeORCID(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "https://orcid.org/")
	s = strings.TrimPrefix(s, "http://orcid.org/")
	return s
}

// ValidORCID reports whether s is a bare or resolver-prefixed ORCID iD.
func ValidORCID(s string) bool {
	return orcidRegex.MatchString(NormalizeORCID(s))
}
