// config/config.go
//
// Shipped defaults: the configuration template copied on first launch and
// the helper-library manifest read by the dependency bootstrapper.

package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed agms.template.yaml
var Template []byte

//go:embed requirements.yaml
var Requirements []byte

// Dependency is one helper library: the import name probed, the pip
// specifier installed, and the feature it unlocks (optional entries only).
type Dependency struct {
	Probe   string `yaml:"probe"`
	Spec    string `yaml:"spec"`
	Feature string `yaml:"feature,omitempty"`
}

type Manifest struct {
	Required []Dependency `yaml:"required"`
	Optional []Dependency `yaml:"optional"`
}

// LoadManifest reads the manifest at path. An empty path or a missing file
// yields the embedded defaults.
func LoadManifest(path string) (*Manifest, error) {
	data := Requirements
	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case err == nil:
			data = raw
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("failed to open requirements file: %w", err)
		}
	}
	return ParseManifest(data)
}

func ParseManifest(data []byte) (*Manifest, error) {
	m := &Manifest{}
	if err := yaml.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("failed to decode requirements file: %w", err)
	}
	for i, d := range append(append([]Dependency{}, m.Required...), m.Optional...) {
		if d.Probe == "" || d.Spec == "" {
			return nil, fmt.Errorf("requirements entry %d: probe and spec are required", i)
		}
	}
	return m, nil
}
