package ris

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lehigh-university-libraries/doiregistry/hub"
)

const sample = `TY  - JOUR
T1  - Eating your own Dog Food
T2  - DataCite Blog
AU  - Fenner, Martin
AU  - Jane Q. Public
A2  - Roe, Richard
DO  - 10.5438/4K3M-NYVG
UR  - https://blog.datacite.org/eating-your-own-dog-food
AB  - Eating your own dog food is a slang term
  for using one's own products.
KW  - datacite
KW  - doi
PY  - 2016
DA  - 2016/12/20/
PB  - DataCite
LA  - en
SN  - 2749-9952
VL  - 3
IS  - 4
SP  - 10
EP  - 12
ER  - 
`

func TestParse(t *testing.T) {
	records, err := (&Format{}).Parse(strings.NewReader(sample), nil)
	require.NoError(t, err)
	require.Len(t, records, 1)
	m := records[0]

	assert.Equal(t, "10.5438/4K3M-NYVG", m.DOI)
	assert.Equal(t, "JournalArticle", m.Types.ResourceTypeGeneral)
	assert.Equal(t, "JOUR", m.Types.RIS)
	assert.Equal(t, "Eating your own Dog Food", m.MainTitle())

	require.Len(t, m.Creators, 2)
	assert.Equal(t, "Fenner", m.Creators[0].FamilyName)
	assert.Equal(t, "Public", m.Creators[1].FamilyName)
	assert.Equal(t, "Jane Q.", m.Creators[1].GivenName)
	require.Len(t, m.Contributors, 1)
	assert.Equal(t, "Editor", m.Contributors[0].ContributorType)

	assert.Equal(t, "Eating your own dog food is a slang term for using one's own products.", m.Abstract())
	assert.Len(t, m.Subjects, 2)
	assert.Equal(t, 2016, m.PublicationYear)
	assert.Equal(t, "2016-12-20", m.DateOf(hub.DateIssued))
	assert.Equal(t, "DataCite", m.Publisher.Name())

	c := hub.DeriveContainer(m)
	require.NotNil(t, c)
	assert.Equal(t, "DataCite Blog", c.Title)
	assert.Equal(t, "2749-9952", c.Identifier)
	assert.Equal(t, "ISSN", c.IdentifierType)
	assert.Equal(t, "3", c.Volume)
	assert.Equal(t, "12", c.LastPage)
}

func TestParseMultiple(t *testing.T) {
	input := "TY  - DATA\nT1  - One\nER  - \n\nTY  - COMP\nT1  - Two\nER  - \n"
	records, err := (&Format{}).Parse(strings.NewReader(input), nil)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Dataset", records[0].Types.ResourceTypeGeneral)
	assert.Equal(t, "Software", records[1].Types.ResourceTypeGeneral)
}

func TestParseErrors(t *testing.T) {
	tests := map[string]string{
		"no tag":        "just text\n",
		"ER without TY": "ER  - \n",
		"nested TY":     "TY  - JOUR\nTY  - BOOK\nER  - \n",
		"empty":         "\n\n",
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := (&Format{}).Parse(strings.NewReader(input), nil)
			assert.Error(t, err)
		})
	}
}

func TestSerialize(t *testing.T) {
	m := &hub.Metadata{
		DOI:             "10.5072/RIS",
		Types:           &hub.Types{ResourceTypeGeneral: "Dataset"},
		Creators:        hub.List[hub.Creator]{hub.PersonFromParts("Benjamin", "Ollomo")},
		Titles:          hub.List[hub.Title]{{Title: "Data from: A new malaria agent"}},
		Publisher:       hub.PlainPublisher("Dryad"),
		PublicationYear: 2011,
	}

	var buf bytes.Buffer
	require.NoError(t, (&Format{}).Serialize(&buf, []*hub.Metadata{m}, nil))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "TY  - DATA\n"), out)
	assert.Contains(t, out, "AU  - Ollomo, Benjamin\n")
	assert.Contains(t, out, "DO  - 10.5072/RIS\n")
	assert.Contains(t, out, "PY  - 2011\n")
	assert.True(t, strings.HasSuffix(out, "ER  - \n"))
}

func TestSerializeParseStable(t *testing.T) {
	records, err := (&Format{}).Parse(strings.NewReader(sample), nil)
	require.NoError(t, err)

	var first, second bytes.Buffer
	require.NoError(t, (&Format{}).Serialize(&first, records, nil))
	again, err := (&Format{}).Parse(bytes.NewReader(first.Bytes()), nil)
	require.NoError(t, err)
	require.NoError(t, (&Format{}).Serialize(&second, again, nil))

	assert.Equal(t, first.String(), second.String())
}

func TestCanParse(t *testing.T) {
	f := &Format{}
	assert.True(t, f.CanParse([]byte("\nTY  - JOUR\n")))
	assert.False(t, f.CanParse([]byte("T1  - no type first\n")))
	assert.False(t, f.CanParse([]byte("@misc{x}")))
}
