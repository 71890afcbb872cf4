package mapping

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// DefaultName is the vocabulary used when none is configured.
const DefaultName = "datacite"

//go:embed vocabularies/*.yaml
var embeddedVocabularies embed.FS

// Registry holds loaded vocabularies.
type Registry struct {
	vocabularies map[string]*Vocabulary
}

// NewRegistry creates a registry with the embedded vocabularies loaded.
func NewRegistry() (*Registry, error) {
	r := &Registry{
		vocabularies: make(map[string]*Vocabulary),
	}

	entries, err := embeddedVocabularies.ReadDir("vocabularies")
	if err != nil {
		return nil, fmt.Errorf("reading embedded vocabularies: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}

		data, err := embeddedVocabularies.ReadFile("vocabularies/" + entry.Name())
		if err != nil {
			return nil, err
		}

		v, err := parseVocabulary(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", entry.Name(), err)
		}
		if v.Name == "" {
			v.Name = strings.TrimSuffix(entry.Name(), ".yaml")
		}
		r.vocabularies[v.Name] = v
	}

	return r, nil
}

// Get retrieves a vocabulary by name.
func (r *Registry) Get(name string) (*Vocabulary, bool) {
	v, ok := r.vocabularies[name]
	return v, ok
}

// Register adds a vocabulary, replacing one with the same name.
func (r *Registry) Register(v *Vocabulary) {
	r.vocabularies[v.Name] = v
}

// List returns all registered vocabulary names.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.vocabularies))
	for name := range r.vocabularies {
		names = append(names, name)
	}
	return names
}

// LoadFromDirectory loads every *.yaml vocabulary in dir.
func (r *Registry) LoadFromDirectory(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading vocabulary directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}

		v, err := LoadVocabulary(filepath.Join(dir, entry.Name()))
		if err != nil {
			return err
		}
		if v.Name == "" {
			v.Name = strings.TrimSuffix(entry.Name(), ".yaml")
		}
		r.vocabularies[v.Name] = v
	}

	return nil
}

// LoadVocabulary loads a vocabulary from a file path.
func LoadVocabulary(path string) (*Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading vocabulary file: %w", err)
	}

	v, err := parseVocabulary(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return v, nil
}

// LoadVocabularyFromString loads a vocabulary from YAML content.
func LoadVocabularyFromString(content string) (*Vocabulary, error) {
	return parseVocabulary([]byte(content))
}

func parseVocabulary(data []byte) (*Vocabulary, error) {
	var v Vocabulary
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("parsing vocabulary YAML: %w", err)
	}
	lowered := make(map[string]RelationRule, len(v.Relations))
	for k, rule := range v.Relations {
		lowered[strings.ToLower(k)] = rule
	}
	v.Relations = lowered
	if err := v.Check(); err != nil {
		return nil, err
	}
	return &v, nil
}

var (
	defaultOnce sync.Once
	defaultVoc  *Vocabulary
)

// Default returns the embedded DataCite vocabulary. It panics if the
// embedded file is broken, which the package tests guard against.
func Default() *Vocabulary {
	defaultOnce.Do(func() {
		r, err := NewRegistry()
		if err != nil {
			panic(err)
		}
		v, ok := r.Get(DefaultName)
		if !ok {
			panic("mapping: embedded vocabulary " + DefaultName + " missing")
		}
		defaultVoc = v
	})
	return defaultVoc
}
