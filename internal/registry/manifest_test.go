package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/courseview/internal/errors"
)

const sampleManifest = `
title: Curso de Vue
default: modulo2
modules:
  - id: modulo1
    name: Introdução
    type: modulo
  - id: modulo2
    name: Fundamentos
  - id: exercicios_praticos
    type: complementar
`

func TestParseManifest(t *testing.T) {
	m, r, err := ParseManifest([]byte(sampleManifest))
	require.NoError(t, err)

	assert.Equal(t, "Curso de Vue", m.Title)
	assert.Equal(t, "modulo2", m.Default)
	assert.Equal(t, 3, r.Count())

	ex, ok := r.Lookup("exercicios_praticos")
	require.True(t, ok)
	assert.Equal(t, CategorySupplementary, ex.Category)
	assert.Equal(t, "Exercicios Praticos", ex.Name)
}

func TestParseManifest_Errors(t *testing.T) {
	tests := map[string]string{
		"invalid yaml":    "modules: [",
		"no modules":      "title: empty\n",
		"unknown default": "default: nope\nmodules:\n  - id: a\n",
		"duplicate ids":   "modules:\n  - id: a\n  - id: a\n",
	}

	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, _, err := ParseManifest([]byte(data))
			assert.Error(t, err)
		})
	}
}

func TestParseManifest_UnknownDefaultIsNotFound(t *testing.T) {
	_, _, err := ParseManifest([]byte("default: nope\nmodules:\n  - id: a\n"))
	assert.ErrorIs(t, err, errors.ErrModuleNotFound)
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "course.yml")
	require.NoError(t, os.WriteFile(path, []byte(sampleManifest), 0600))

	_, r, err := LoadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, 3, r.Count())

	_, _, err = LoadManifest(filepath.Join(dir, "missing.yml"))
	assert.Error(t, err)
}
