package registry

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/conneroisu/courseview/internal/errors"
)

// Manifest is the on-disk description of a course.
//
//	title: Curso de Vue
//	default: modulo1
//	modules:
//	  - id: modulo1
//	    name: Introdução
//	    type: modulo
type Manifest struct {
	Title   string             `yaml:"title"`
	Default string             `yaml:"default"`
	Modules []ModuleDescriptor `yaml:"modules"`
}

// ParseManifest decodes a manifest and builds its registry.
func ParseManifest(data []byte) (*Manifest, *Registry, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, nil, errors.NewValidationError(errors.ErrCodeConfigInvalid,
			fmt.Sprintf("invalid course manifest: %v", err))
	}
	if len(m.Modules) == 0 {
		return nil, nil, errors.NewValidationError(errors.ErrCodeConfigInvalid,
			"course manifest lists no modules")
	}

	r, err := New(m.Modules...)
	if err != nil {
		return nil, nil, err
	}

	if m.Default != "" {
		if _, ok := r.Lookup(m.Default); !ok {
			return nil, nil, errors.ModuleNotFound(m.Default)
		}
	}

	return &m, r, nil
}

// LoadManifest reads a manifest file from disk.
func LoadManifest(path string) (*Manifest, *Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, errors.NewIOError(errors.ErrCodeInvalidPath,
			fmt.Sprintf("cannot read course manifest %s", path), err)
	}
	return ParseManifest(data)
}
