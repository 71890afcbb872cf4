package hub

// DeriveContainer summarizes the periodical or series holding the resource.
// The first container-like related item wins; otherwise the first IsPartOf
// related identifier of a container identifier type is used. Returns nil when
// nothing qualifies.
func DeriveContainer(m *Metadata) *Container {
	for _, item := range m.RelatedItems {
		if !IsContainerRelation(item.RelationType) {
			continue
		}
		c := &Container{
			Type:      item.RelatedItemType,
			Volume:    item.Volume,
			Issue:     item.Issue,
			FirstPage: item.FirstPage,
			LastPage:  item.LastPage,
		}
		if item.RelatedItemIdentifier != nil {
			c.Identifier = item.RelatedItemIdentifier.RelatedItemIdentifier
			c.IdentifierType = item.RelatedItemIdentifier.RelatedItemIdentifierType
		}
		for _, t := range item.Titles {
			if t.Title != "" {
				c.Title = t.Title
				break
			}
		}
		if c.Type == "" {
			c.Type = containerTypeFor(m)
		}
		return c
	}

	for _, ri := range m.RelatedIdentifiers {
		if ri.RelationType != "IsPartOf" {
			continue
		}
		switch ri.RelatedIdentifierType {
		case "ISSN", "DOI", "URL", "ISBN":
		default:
			continue
		}
		return &Container{
			Type:           containerTypeFor(m),
			Identifier:     ri.RelatedIdentifier,
			IdentifierType: ri.RelatedIdentifierType,
		}
	}

	return nil
}

// containerTypeFor guesses the container type from the resource type.
func containerTypeFor(m *Metadata) string {
	if m.Types == nil {
		return "Series"
	}
	switch m.Types.ResourceTypeGeneral {
	case "JournalArticle", "DataPaper":
		return "Journal"
	case "BookChapter":
		return "Book"
	case "ConferencePaper":
		return "Proceedings"
	default:
		return "Series"
	}
}
