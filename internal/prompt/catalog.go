package prompt

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var embeddedCatalog []byte

// Category groups analysis prompts under a named focus area.
type Category struct {
	Name    string   `yaml:"name"`
	Prompts []string `yaml:"prompts"`
}

// Catalog is the full set of analysis prompts available for selection.
type Catalog struct {
	Categories []Category `yaml:"categories"`
}

// DefaultCatalog parses the embedded catalog. The embedded file is part of
// the build, so a parse failure is a programming error.
func DefaultCatalog() Catalog {
	var c Catalog
	if err := yaml.Unmarshal(embeddedCatalog, &c); err != nil {
		panic(fmt.Sprintf("embedded catalog invalid: %v", err))
	}
	return c
}

// LoadCatalog reads a catalog override from a YAML file.
func LoadCatalog(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("read catalog %s: %w", path, err)
	}
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Catalog{}, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	if len(c.All()) == 0 {
		return Catalog{}, fmt.Errorf("catalog %s holds no prompts", path)
	}
	return c, nil
}

// Entry is one selectable prompt with its category.
type Entry struct {
	Category string
	Text     string
}

// All flattens the catalog in category order.
func (c Catalog) All() []Entry {
	var out []Entry
	for _, cat := range c.Categories {
		for _, p := range cat.Prompts {
			out = append(out, Entry{Category: cat.Name, Text: p})
		}
	}
	return out
}

// ByCategory returns the prompts of one category, or nil if unknown.
func (c Catalog) ByCategory(name string) []Entry {
	for _, cat := range c.Categories {
		if cat.Name != name {
			continue
		}
		out := make([]Entry, 0, len(cat.Prompts))
		for _, p := range cat.Prompts {
			out = append(out, Entry{Category: cat.Name, Text: p})
		}
		return out
	}
	return nil
}
