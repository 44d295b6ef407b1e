package aspects

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Category struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

// Taxonomy is ordered; detection reports categories in this order.
type Taxonomy struct {
	Categories []Category `yaml:"categories"`
}

// DefaultTaxonomy leaves fast/slow out of PERFORMANCE; they match DELIVERY and SERVICE text.
func DefaultTaxonomy() Taxonomy {
	return Taxonomy{Categories: []Category{
		{Name: "PRODUCT", Keywords: []string{"quality", "product", "item", "material", "build", "features"}},
		{Name: "PRICE", Keywords: []string{"price", "cost", "value", "expensive", "cheap", "affordable"}},
		{Name: "DELIVERY", Keywords: []string{"delivery", "shipping", "logistics", "arrival", "package"}},
		{Name: "SERVICE", Keywords: []string{"service", "support", "customer service", "help", "assistance"}},
		{Name: "USABILITY", Keywords: []string{"easy", "difficult", "simple", "complex", "user-friendly", "intuitive"}},
		{Name: "PERFORMANCE", Keywords: []string{"performance", "speed", "efficient", "responsive", "lag"}},
		{Name: "DESIGN", Keywords: []string{"design", "look", "appearance", "aesthetic", "style", "interface"}},
	}}
}

// LoadTaxonomy reads a YAML taxonomy. An empty path returns the default.
func LoadTaxonomy(path string) (Taxonomy, error) {
	if path == "" {
		return DefaultTaxonomy(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Taxonomy{}, fmt.Errorf("[Taxonomy] failed to read %s: %w", path, err)
	}

	var t Taxonomy
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return Taxonomy{}, fmt.Errorf("[Taxonomy] failed to parse %s: %w", path, err)
	}

	if err := t.normalize(); err != nil {
		return Taxonomy{}, err
	}

	slog.Info("[Taxonomy] Loaded taxonomy",
		slog.String("path", path),
		slog.Int("categories", len(t.Categories)))
	return t, nil
}

func (t *Taxonomy) normalize() error {
	if len(t.Categories) == 0 {
		return fmt.Errorf("[Taxonomy] no categories defined")
	}

	seen := make(map[string]struct{}, len(t.Categories))
	for i := range t.Categories {
		name := strings.ToUpper(strings.TrimSpace(t.Categories[i].Name))
		if name == "" {
			return fmt.Errorf("[Taxonomy] category %d has no name", i)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("[Taxonomy] duplicate category %s", name)
		}
		if len(t.Categories[i].Keywords) == 0 {
			return fmt.Errorf("[Taxonomy] category %s has no keywords", name)
		}
		seen[name] = struct{}{}
		t.Categories[i].Name = name
	}
	return nil
}
