package hub

import (
	"strings"
)

// Name type values.
const (
	NameTypePersonal       = "Personal"
	NameTypeOrganizational = "Organizational"
)

// DisplayName returns "Given Family" for people, falling back to Name.
func (c Creator) DisplayName() string {
	if c.GivenName != "" || c.FamilyName != "" {
		return strings.TrimSpace(c.GivenName + " " + c.FamilyName)
	}
	return c.Name
}

// InvertedName returns "Family, Given" when the parts are known.
func (c Creator) InvertedName() string {
	switch {
	case c.FamilyName != "" && c.GivenName != "":
		return c.FamilyName + ", " + c.GivenName
	case c.FamilyName != "":
		return c.FamilyName
	default:
		return c.Name
	}
}

// IsOrganization reports whether the creator is an organization.
func (c Creator) IsOrganization() bool {
	return c.NameType == NameTypeOrganizational
}

// ORCID returns the creator's ORCID iD without resolver prefix.
func (c Creator) ORCID() string {
	for _, ni := range c.NameIdentifiers {
		if strings.EqualFold(ni.NameIdentifierScheme, "ORCID") {
			return NormalizeORCID(ni.NameIdentifier)
		}
	}
	return ""
}

// AsCreator drops the contributor type.
func (c Contributor) AsCreator() Creator {
	return Creator{
		Name:            c.Name,
		NameType:        c.NameType,
		GivenName:       c.GivenName,
		FamilyName:      c.FamilyName,
		NameIdentifiers: c.NameIdentifiers,
		Affiliation:     c.Affiliation,
	}
}

// AsContributor attaches a contributor type to a creator.
func (c Creator) AsContributor(contributorType string) Contributor {
	return Contributor{
		Name:            c.Name,
		NameType:        c.NameType,
		GivenName:       c.GivenName,
		FamilyName:      c.FamilyName,
		NameIdentifiers: c.NameIdentifiers,
		Affiliation:     c.Affiliation,
		ContributorType: contributorType,
	}
}

// PersonFromParts builds a personal creator from name parts, filling Name
// in the inverted "Family, Given" form DataCite uses.
func PersonFromParts(given, family string) Creator {
	given = strings.TrimSpace(given)
	family = strings.TrimSpace(family)
	c := Creator{NameType: NameTypePersonal, GivenName: given, FamilyName: family}
	c.Name = c.InvertedName()
	return c
}
