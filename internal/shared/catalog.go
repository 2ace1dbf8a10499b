package shared

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"bank_reviews/internal/domain"
)

//go:embed catalog.yaml
var defaultCatalog []byte

type catalogFile struct {
	Banks []struct {
		ID      int    `yaml:"id"`
		Name    string `yaml:"name"`
		AppName string `yaml:"app_name"`
		AppID   string `yaml:"app_id"`
	} `yaml:"banks"`
	Themes []struct {
		Name     string   `yaml:"name"`
		Keywords []string `yaml:"keywords"`
	} `yaml:"themes"`
}

// LoadCatalog reads the bank/theme catalog from path, or the embedded
// default when path is empty.
func LoadCatalog(path string) (*domain.Catalog, error) {
	data := defaultCatalog
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read catalog file: %w", err)
		}
		data = b
	}
	return ParseCatalog(data)
}

func ParseCatalog(data []byte) (*domain.Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse catalog YAML: %w", err)
	}
	banks := make([]domain.Bank, 0, len(f.Banks))
	for _, b := range f.Banks {
		banks = append(banks, domain.Bank{ID: b.ID, Name: b.Name, AppName: b.AppName, AppID: b.AppID})
	}
	themes := make([]domain.Theme, 0, len(f.Themes))
	for _, t := range f.Themes {
		themes = append(themes, domain.Theme{Name: t.Name, Keywords: t.Keywords})
	}
	c, err := domain.NewCatalog(banks, themes)
	if err != nil {
		return nil, fmt.Errorf("catalog validation failed: %w", err)
	}
	return c, nil
}
