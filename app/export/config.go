package export

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SiteConfig carries the metadata rendered into the static snapshot. It is
// loaded from an optional YAML file; defaults apply when the file is absent.
type SiteConfig struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Footer      string `yaml:"footer"`
}

func DefaultSiteConfig() SiteConfig {
	return SiteConfig{
		Title:       "My Record Collection",
		Description: "A snapshot of my vinyl collection",
	}
}

// LoadSiteConfig reads the YAML site configuration. A missing file is not an
// error; the defaults are returned instead.
func LoadSiteConfig(path string) (SiteConfig, error) {
	config := DefaultSiteConfig()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return config, nil
	}
	if err != nil {
		return config, fmt.Errorf("failed to read export config: %w", err)
	}

	if err := yaml.Unmarshal(data, &config); err != nil {
		return config, fmt.Errorf("failed to parse export config %s: %w", path, err)
	}

	if config.Title == "" {
		config.Title = DefaultSiteConfig().Title
	}

	return config, nil
}
