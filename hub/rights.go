package hub

import (
	"strings"
)

// licenses maps normalized license URLs to SPDX identifiers.
var licenses = map[string]string{
	"creativecommons.org/licenses/by/4.0":       "CC-BY-4.0",
	"creativecommons.org/licenses/by/3.0":       "CC-BY-3.0",
	"creativecommons.org/licenses/by-sa/4.0":    "CC-BY-SA-4.0",
	"creativecommons.org/licenses/by-nc/4.0":    "CC-BY-NC-4.0",
	"creativecommons.org/licenses/by-nd/4.0":    "CC-BY-ND-4.0",
	"creativecommons.org/licenses/by-nc-sa/4.0": "CC-BY-NC-SA-4.0",
	"creativecommons.org/licenses/by-nc-nd/4.0": "CC-BY-NC-ND-4.0",
	"creativecommons.org/publicdomain/zero/1.0": "CC0-1.0",
	"opensource.org/licenses/mit":               "MIT",
	"www.apache.org/licenses/license-2.0":       "Apache-2.0",
	"apache.org/licenses/license-2.0":           "Apache-2.0",
	"www.gnu.org/licenses/gpl-3.0":              "GPL-3.0",
}

// normalizeLicenseURL strips scheme, trailing slash, "legalcode" and case.
func normalizeLicenseURL(uri string) string {
	u := strings.ToLower(strings.TrimSpace(uri))
	u = strings.TrimPrefix(u, "https://")
	u = strings.TrimPrefix(u, "http://")
	u = strings.TrimSuffix(u, "/")
	u = strings.TrimSuffix(u, "/legalcode")
	u = strings.TrimSuffix(u, ".html")
	return u
}

// NormalizeRights fills rightsIdentifier and its scheme from a known
// license URL. Entries that already carry an identifier are left as is.
func NormalizeRights(r Rights) Rights {
	if r.RightsIdentifier != "" || r.RightsURI == "" {
		return r
	}
	if id, ok := licenses[normalizeLicenseURL(r.RightsURI)]; ok {
		r.RightsIdentifier = strings.ToLower(id)
		r.RightsIdentifierScheme = "SPDX"
		r.SchemeURI = "https://spdx.org/licenses/"
	}
	return r
}

// LicenseURL returns the first rights URI of the metadata.
func (m *Metadata) LicenseURL() string {
	for _, r := range m.RightsList {
		if r.RightsURI != "" {
			return r.RightsURI
		}
	}
	return ""
}

// IsOpenAccess reports whether a rights entry is an open license.
func IsOpenAccess(r Rights) bool {
	uri := strings.ToLower(r.RightsURI)
	id := strings.ToLower(r.RightsIdentifier)
	switch {
	case strings.Contains(uri, "creativecommons.org"):
		return true
	case strings.HasPrefix(id, "cc"):
		return true
	case strings.Contains(uri, "publicdomain"):
		return true
	case strings.Contains(uri, "info:eu-repo/semantics/openaccess"):
		return true
	}
	return false
}
