package evaluation

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ExpectedBook is a book known to be visible on a shelf photo
type ExpectedBook struct {
	Title  string `yaml:"title"`
	Author string `yaml:"author"`
}

// Shelf is one labeled shelf photo
type Shelf struct {
	Image string         `yaml:"image"`
	Books []ExpectedBook `yaml:"books"`
}

// Dataset is a set of labeled shelf photos
type Dataset struct {
	Shelves []Shelf `yaml:"shelves"`
}

// LoadDataset reads a dataset YAML file. Relative image paths are resolved
// against the file's directory.
func LoadDataset(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset: %w", err)
	}

	var ds Dataset
	if err := yaml.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("failed to parse dataset %s: %w", path, err)
	}
	if len(ds.Shelves) == 0 {
		return nil, fmt.Errorf("dataset %s has no shelves", path)
	}

	base := filepath.Dir(path)
	for i, shelf := range ds.Shelves {
		if strings.TrimSpace(shelf.Image) == "" {
			return nil, fmt.Errorf("shelf %d has no image", i+1)
		}
		if !filepath.IsAbs(shelf.Image) {
			ds.Shelves[i].Image = filepath.Join(base, shelf.Image)
		}
	}
	return &ds, nil
}
