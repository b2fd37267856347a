// Package classify assigns a category to every dictionary variable using
// a keyword model.
package classify

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// OtherCategory is assigned when no keyword matches.
const OtherCategory = "Other"

// Category is one label with its keywords.
type Category struct {
	Label    string
	Keywords []string
}

// Model is an ordered list of categories. Earlier categories win ties.
type Model struct {
	Categories []Category
	// Fallback is the label for rows without any keyword hit.
	Fallback string
}

// modelFile is the on-disk shape:
//
//	fallback: Other
//	categories:
//	  Health: [hospital, illness]
//	  Education: [school]
type modelFile struct {
	Fallback   string    `yaml:"fallback"`
	Categories yaml.Node `yaml:"categories"`
}

// LoadModel reads a YAML keyword model.
func LoadModel(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading model: %w", err)
	}
	m, err := ParseModel(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// ParseModel decodes a YAML keyword model, keeping the category order of
// the document.
func ParseModel(data []byte) (*Model, error) {
	var f modelFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("invalid model: %w", err)
	}
	if f.Categories.Kind != yaml.MappingNode || len(f.Categories.Content) == 0 {
		return nil, fmt.Errorf("invalid model: categories must be a non-empty mapping of label to keywords")
	}

	m := &Model{Fallback: f.Fallback}
	if m.Fallback == "" {
		m.Fallback = OtherCategory
	}
	seen := make(map[string]bool)
	content := f.Categories.Content
	for i := 0; i+1 < len(content); i += 2 {
		label := strings.TrimSpace(content[i].Value)
		if label == "" || seen[label] {
			return nil, fmt.Errorf("invalid model: line %d: empty or duplicate category %q", content[i].Line, label)
		}
		seen[label] = true

		var keywords []string
		if err := content[i+1].Decode(&keywords); err != nil {
			return nil, fmt.Errorf("invalid model: category %q: %w", label, err)
		}
		c := Category{Label: label}
		for _, k := range keywords {
			if k = fold(k); k != "" {
				c.Keywords = append(c.Keywords, k)
			}
		}
		if len(c.Keywords) == 0 {
			return nil, fmt.Errorf("invalid model: category %q has no keywords", label)
		}
		m.Categories = append(m.Categories, c)
	}
	return m, nil
}

// Labels returns the category labels in model order.
func (m *Model) Labels() []string {
	out := make([]string, len(m.Categories))
	for i, c := range m.Categories {
		out[i] = c.Label
	}
	return out
}

// Predict returns the label with the most keyword hits in text.
func (m *Model) Predict(text string) string {
	text = fold(text)
	best, bestHits := m.Fallback, 0
	for _, c := range m.Categories {
		hits := 0
		for _, k := range c.Keywords {
			hits += strings.Count(text, k)
		}
		if hits > bestHits {
			best, bestHits = c.Label, hits
		}
	}
	return best
}

func fold(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
