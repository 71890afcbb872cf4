// Package helpers holds the name and markup handling shared by the format
// adapters.
package helpers

import (
	"slices"
	"strings"

	"github.com/lehigh-university-libraries/doiregistry/hub"
)

// ParsedName holds the components of a personal name.
type ParsedName struct {
	Given  string // given name followed by any middle names
	Family string // includes a nobiliary particle ("van Gogh")
	Suffix string
}

var (
	// Suffixes that appear after a name
	nameSuffixes = []string{"Jr.", "Jr", "Sr.", "Sr", "III", "II", "IV", "PhD", "Ph.D.", "MD", "M.D.", "Esq.", "Esq"}

	// Nobiliary particles kept with the family name
	particles = []string{"van", "von", "de", "del", "della", "di", "da", "le", "la", "du", "des", "den", "der", "ter", "ten", "mc", "mac", "o'", "d'", "al-", "el-", "ibn"}
)

// ParseName splits "Family, Given Middle" and "Given Middle Family" names.
// A single word is a family name. It returns nil for blank input.
func ParseName(name string) *ParsedName {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}

	var p ParsedName
	if family, rest, ok := strings.Cut(name, ","); ok && strings.TrimSpace(rest) != "" && !isSuffix(strings.TrimSpace(rest)) {
		p.Family = strings.TrimSpace(family)
		rest, p.Suffix = cutSuffix(strings.TrimSpace(rest))
		p.Given = strings.Join(strings.Fields(rest), " ")
		return &p
	}

	name, p.Suffix = cutSuffix(name)
	parts := strings.Fields(name)
	switch len(parts) {
	case 0:
		return nil
	case 1:
		p.Family = parts[0]
		return &p
	}
	familyStart := len(parts) - 1
	if familyStart > 1 && isParticle(parts[familyStart-1]) {
		familyStart--
	}
	p.Given = strings.Join(parts[:familyStart], " ")
	p.Family = strings.Join(parts[familyStart:], " ")
	return &p
}

// cutSuffix removes a generational or academic suffix from the end of name.
func cutSuffix(name string) (string, string) {
	for _, suffix := range nameSuffixes {
		for _, sep := range []string{", ", " "} {
			if rest, ok := strings.CutSuffix(name, sep+suffix); ok {
				return strings.TrimSpace(rest), suffix
			}
		}
	}
	return name, ""
}

func isSuffix(word string) bool {
	return slices.Contains(nameSuffixes, word)
}

func isParticle(word string) bool {
	lower := strings.ToLower(word)
	for _, p := range particles {
		if lower == p || lower == strings.TrimSuffix(p, "'") {
			return true
		}
	}
	return false
}

// PersonFromName builds a creator from a free-text name. Names that do not
// split into parts are kept whole.
func PersonFromName(name string) hub.Creator {
	parsed := ParseName(name)
	if parsed == nil || parsed.Given == "" {
		return hub.Creator{Name: strings.TrimSpace(name), NameType: hub.NameTypePersonal}
	}
	c := hub.PersonFromParts(parsed.Given, parsed.Family)
	if parsed.Suffix != "" {
		c.Name += ", " + parsed.Suffix
	}
	return c
}
