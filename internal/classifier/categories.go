package classifier

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"expensetracker/internal/core"
)

// DefaultCategories returns the built-in category table and its seed keywords.
func DefaultCategories() []core.Category {
	return []core.Category{
		{ID: 1, Name: "Food", Type: core.CategoryTypeExpense, Keywords: []string{
			"food", "restaurant", "lunch", "dinner", "breakfast", "coffee", "meal", "eat", "cafe", "pizza", "burger",
		}},
		{ID: 2, Name: "Transport", Type: core.CategoryTypeExpense, Keywords: []string{
			"transport", "taxi", "uber", "bus", "train", "metro", "subway", "gas", "fuel", "parking", "ticket",
		}},
		{ID: 3, Name: "Entertainment", Type: core.CategoryTypeExpense, Keywords: []string{
			"entertainment", "movie", "cinema", "game", "concert", "show", "theater", "music", "netflix", "spotify",
		}},
		{ID: core.CategoryOthers, Name: "Others", Type: core.CategoryTypeExpense, Keywords: []string{
			"other", "misc", "shopping", "store", "market", "pharmacy", "medicine", "utility", "bill",
		}},
	}
}

type categoryFile struct {
	Categories []struct {
		ID       int      `yaml:"id"`
		Name     string   `yaml:"name"`
		Type     string   `yaml:"type"`
		Keywords []string `yaml:"keywords"`
	} `yaml:"categories"`
}

// LoadCategories reads a category table from a YAML file. The fallback
// category must be present so unclassifiable notes always have a home.
// Names are unique; a name may move to another id, but not to an id while a
// category missing from the file still holds it in the database.
func LoadCategories(path string) ([]core.Category, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read categories file: %w", err)
	}
	var f categoryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse categories file: %w", err)
	}

	seen := make(map[core.CategoryID]bool, len(f.Categories))
	names := make(map[string]bool, len(f.Categories))
	out := make([]core.Category, 0, len(f.Categories))
	for _, c := range f.Categories {
		id := core.CategoryID(c.ID)
		if id <= 0 {
			return nil, fmt.Errorf("category %q: id must be positive", c.Name)
		}
		if seen[id] {
			return nil, fmt.Errorf("category id %d defined twice", id)
		}
		seen[id] = true
		if name := strings.TrimSpace(c.Name); name == "" || names[name] {
			return nil, fmt.Errorf("category %d: name %q is empty or already used", id, c.Name)
		}
		names[strings.TrimSpace(c.Name)] = true
		typ := c.Type
		if typ == "" {
			typ = core.CategoryTypeExpense
		}
		out = append(out, core.Category{ID: id, Name: c.Name, Type: typ, Keywords: c.Keywords})
	}
	if !seen[core.CategoryOthers] {
		return nil, fmt.Errorf("category %d (fallback) is missing", core.CategoryOthers)
	}
	return out, nil
}

// SeedCorpus builds one training example per keyword, in table order.
func SeedCorpus(categories []core.Category) []TrainingExample {
	var out []TrainingExample
	for _, c := range categories {
		for _, kw := range c.Keywords {
			out = append(out, TrainingExample{Note: kw, CategoryID: c.ID})
		}
	}
	return out
}
