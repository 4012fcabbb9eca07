package taxonomy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalogueIsValid(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())
	assert.NotEmpty(t, c.Version)
	assert.True(t, c.Contains("product_defect"))
	assert.True(t, c.Contains("feature_request"))
	assert.False(t, c.Contains("weather"))
}

func TestLoadReplacesCatalogue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taxonomy.yaml")
	yaml := `version: "custom-1"
categories:
  - id: hardware
    label: Hardware fault
    criteria: A physical component failed.
  - id: software
    label: Software fault
    criteria: The software misbehaved.
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "custom-1", c.Version)
	require.Len(t, c.Categories, 2)
	assert.True(t, c.Contains("hardware"))
	assert.False(t, c.Contains("product_defect"))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidateRejectsBadCatalogues(t *testing.T) {
	cases := []struct {
		name string
		c    Catalogue
	}{
		{"no version", Catalogue{Categories: []Category{{ID: "a", Criteria: "x"}}}},
		{"no categories", Catalogue{Version: "1"}},
		{"empty id", Catalogue{Version: "1", Categories: []Category{{ID: " ", Criteria: "x"}}}},
		{"duplicate id", Catalogue{Version: "1", Categories: []Category{
			{ID: "a", Criteria: "x"},
			{ID: "a", Criteria: "y"},
		}}},
		{"no criteria", Catalogue{Version: "1", Categories: []Category{{ID: "a"}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Error(t, tc.c.Validate())
		})
	}
}

func TestPromptBlockListsEveryCategory(t *testing.T) {
	c := Default()
	block := c.PromptBlock()
	for _, cat := range c.Categories {
		assert.Contains(t, block, cat.ID)
		assert.Contains(t, block, cat.Criteria)
	}
}
