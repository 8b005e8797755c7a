package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidatePath(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		expectErr bool
	}{
		{"relative", "markdown", false},
		{"nested", "course/markdown", false},
		{"absolute", "/srv/course", false},
		{"dot", ".", false},
		{"dotted name", "notes..md", false},
		{"empty", "", true},
		{"traversal", "../secret", true},
		{"nested traversal", "course/../../etc", true},
		{"semicolon", "course;rm -rf", true},
		{"backtick", "course`id`", true},
		{"nul", "course\x00", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePath(tt.path)
			if tt.expectErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateHost(t *testing.T) {
	assert.NoError(t, ValidateHost("localhost"))
	assert.NoError(t, ValidateHost("0.0.0.0"))
	assert.NoError(t, ValidateHost(""))
	assert.Error(t, ValidateHost("localhost; rm"))
	assert.Error(t, ValidateHost("evil.example/path"))
}

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name      string
		url       string
		expectErr bool
	}{
		{"http", "http://localhost:8080", false},
		{"https with path", "https://cdn.example.com/curso/", false},
		{"query", "https://cdn.example.com/curso?v=2", false},
		{"javascript", "javascript:alert(1)", true},
		{"file", "file:///etc/passwd", true},
		{"no host", "http://", true},
		{"traversal", "https://cdn.example.com/../admin", true},
		{"encoded traversal", "https://cdn.example.com/%2e%2e/admin", true},
		{"space", "https://cdn.example.com/a b", true},
		{"quote", `https://cdn.example.com/"x`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateURL(tt.url)
			if tt.expectErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateModuleID(t *testing.T) {
	assert.NoError(t, ValidateModuleID("modulo1"))
	assert.NoError(t, ValidateModuleID("cronograma_estudos"))
	assert.Error(t, ValidateModuleID(""))
	assert.Error(t, ValidateModuleID(".."))
	assert.Error(t, ValidateModuleID("markdown/modulo1"))
	assert.Error(t, ValidateModuleID(`a\b`))
}
