package mapping

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultVocabulary(t *testing.T) {
	v := Default()
	require.NotNil(t, v)
	assert.Equal(t, DefaultName, v.Name)
	require.NoError(t, v.Check())

	assert.Equal(t, []string{"citations", "references", "versions", "version_of", "parts", "part_of", "other"}, v.FamilyNames())
	other, ok := v.Family("other")
	require.True(t, ok)
	assert.True(t, other.Exclusive)

	assert.True(t, v.SupportsContributorType("Editor"))
	assert.False(t, v.SupportsContributorType("Funder"))
	assert.True(t, v.LegacyContributorType("Funder"))
	assert.True(t, v.ValidNameType("Organizational"))
	assert.False(t, v.ValidNameType("organizational"))
}

func TestClassify(t *testing.T) {
	v := Default()

	fam, ok := v.Classify("references", true)
	require.True(t, ok)
	assert.Equal(t, "references", fam)

	fam, ok = v.Classify("References", false)
	require.True(t, ok)
	assert.Equal(t, "citations", fam)

	fam, ok = v.Classify("is-part-of", true)
	require.True(t, ok)
	assert.Equal(t, "part_of", fam)

	_, ok = v.Classify("unique-dataset-requests-regular", true)
	assert.False(t, ok)

	counter, ok := v.Counter("unique-dataset-requests-regular")
	require.True(t, ok)
	assert.Equal(t, "downloads", counter)
}

func TestWithPrecedence(t *testing.T) {
	v := Default()

	reordered, err := v.WithPrecedence([]string{"parts", "citations", "parts"})
	require.NoError(t, err)
	assert.Equal(t, []string{"parts", "citations", "references", "versions", "version_of", "part_of", "other"}, reordered.FamilyNames())
	// the original is untouched
	assert.Equal(t, "citations", v.FamilyNames()[0])

	_, err = v.WithPrecedence([]string{"nonsense"})
	assert.Error(t, err)
}

func TestLoadVocabularyFromString(t *testing.T) {
	v, err := LoadVocabularyFromString(`
name: tiny
families:
  - name: links
relations:
  Cites: {subject: links, object: links}
name_types: [Personal]
`)
	require.NoError(t, err)
	fam, ok := v.Classify("cites", false)
	require.True(t, ok)
	assert.Equal(t, "links", fam)

	_, err = LoadVocabularyFromString(`
families:
  - name: links
relations:
  cites: {subject: missing}
`)
	assert.Error(t, err)
}

func TestRegistry(t *testing.T) {
	r, err := NewRegistry()
	require.NoError(t, err)
	assert.Contains(t, r.List(), DefaultName)

	r.Register(&Vocabulary{Name: "custom"})
	_, ok := r.Get("custom")
	assert.True(t, ok)
}

func TestLoadFromDirectory(t *testing.T) {
	dir := t.TempDir()
	tiny := "families:\n  - name: links\nrelations:\n  cites: {subject: links, object: links}\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tiny.yaml"), []byte(tiny), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	r, err := NewRegistry()
	require.NoError(t, err)
	require.NoError(t, r.LoadFromDirectory(dir))

	v, ok := r.Get("tiny")
	require.True(t, ok)
	assert.Equal(t, []string{"links"}, v.FamilyNames())

	assert.Error(t, r.LoadFromDirectory(filepath.Join(dir, "missing")))
}
