// Package taxonomy holds the closed, versioned catalogue of ticket
// categories the classifier is allowed to choose from. The built-in
// catalogue can be replaced wholesale by a YAML file; it is validated at
// load so a bad catalogue fails the run before any ticket is processed.
package taxonomy

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Category struct {
	ID       string `yaml:"id"`
	Label    string `yaml:"label"`
	Criteria string `yaml:"criteria"`
}

type Catalogue struct {
	Version    string     `yaml:"version"`
	Categories []Category `yaml:"categories"`
}

// Default returns the built-in catalogue.
func Default() Catalogue {
	return Catalogue{
		Version: "2026-08",
		Categories: []Category{
			{
				ID:       "product_defect",
				Label:    "Product defect",
				Criteria: "The product behaved contrary to its documented behavior: crashes, data corruption, wrong results, regressions after upgrade.",
			},
			{
				ID:       "configuration",
				Label:    "Configuration issue",
				Criteria: "The product worked as designed but was set up incorrectly: wrong settings, missing prerequisites, environment mismatches, expired credentials.",
			},
			{
				ID:       "how_to",
				Label:    "How-to / usage question",
				Criteria: "The customer asked how to accomplish something the product already supports; no malfunction was involved.",
			},
			{
				ID:       "performance",
				Label:    "Performance",
				Criteria: "The product functioned correctly but too slowly, or consumed excessive memory, CPU, or storage under the customer's workload.",
			},
			{
				ID:       "integration_failure",
				Label:    "Third-party integration failure",
				Criteria: "The root cause lay in an external system the product integrates with: upstream API changes, third-party outages, protocol mismatches.",
			},
			{
				ID:       "account_billing",
				Label:    "Account or billing",
				Criteria: "Licensing, entitlements, seat counts, invoicing, or account access; no product malfunction.",
			},
			{
				ID:       "feature_request",
				Label:    "Feature request",
				Criteria: "The customer asked for behavior the product does not support; the ticket is a request for new capability, not a malfunction report.",
			},
		},
	}
}

// Load reads a YAML catalogue from path, replacing the built-in set.
func Load(path string) (Catalogue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalogue{}, fmt.Errorf("read taxonomy: %w", err)
	}
	var c Catalogue
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Catalogue{}, fmt.Errorf("parse taxonomy yaml: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Catalogue{}, fmt.Errorf("invalid taxonomy %s: %w", path, err)
	}
	return c, nil
}

// Validate checks structural soundness: a version, at least one category,
// no blank or duplicate IDs, and criteria text for every category.
func (c Catalogue) Validate() error {
	if strings.TrimSpace(c.Version) == "" {
		return fmt.Errorf("missing version")
	}
	if len(c.Categories) == 0 {
		return fmt.Errorf("no categories defined")
	}
	seen := make(map[string]bool, len(c.Categories))
	for _, cat := range c.Categories {
		id := strings.TrimSpace(cat.ID)
		if id == "" {
			return fmt.Errorf("category with empty id")
		}
		if seen[id] {
			return fmt.Errorf("duplicate category id %q", id)
		}
		seen[id] = true
		if strings.TrimSpace(cat.Criteria) == "" {
			return fmt.Errorf("category %q has no criteria", id)
		}
	}
	return nil
}

// Contains reports whether id names a catalogue category.
func (c Catalogue) Contains(id string) bool {
	for _, cat := range c.Categories {
		if cat.ID == id {
			return true
		}
	}
	return false
}

// PromptBlock renders the catalogue as the category list embedded in the
// classification prompt.
func (c Catalogue) PromptBlock() string {
	var b strings.Builder
	for _, cat := range c.Categories {
		fmt.Fprintf(&b, "- %s (%s): %s\n", cat.ID, cat.Label, cat.Criteria)
	}
	return b.String()
}
