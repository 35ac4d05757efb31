package schedule

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Category is one entry in the rotation.
type Category struct {
	Label  string   `yaml:"label"`
	Angles []string `yaml:"angles"`
}

// Catalog is the ordered category rotation.
type Catalog struct {
	Categories []Category `yaml:"categories"`
}

// DefaultCatalog returns the built-in rotation.
func DefaultCatalog() *Catalog {
	return &Catalog{Categories: []Category{
		{Label: "Product Metrics", Angles: []string{"activation drop-off", "feature adoption", "north-star metric drift"}},
		{Label: "A/B Testing", Angles: []string{"sample ratio mismatch", "novelty effect", "underpowered test"}},
		{Label: "Funnel Analysis", Angles: []string{"checkout abandonment", "onboarding leakage", "trial-to-paid conversion"}},
		{Label: "Retention & Churn", Angles: []string{"cohort decay", "silent churn", "reactivation campaign"}},
		{Label: "Marketing Attribution", Angles: []string{"last-click bias", "channel cannibalization", "CAC payback"}},
		{Label: "Data Quality", Angles: []string{"duplicate events", "tracking outage", "timezone skew"}},
		{Label: "Forecasting", Angles: []string{"seasonal demand", "capacity planning", "revenue shortfall"}},
	}}
}

// LoadCatalog reads a YAML catalog from path.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid catalog %s: %w", path, err)
	}
	return &c, nil
}

// Validate checks that the catalog can drive Assign.
func (c *Catalog) Validate() error {
	if len(c.Categories) == 0 {
		return errors.New("catalog has no categories")
	}
	for i, cat := range c.Categories {
		if strings.TrimSpace(cat.Label) == "" {
			return fmt.Errorf("category %d has an empty label", i)
		}
	}
	return nil
}
