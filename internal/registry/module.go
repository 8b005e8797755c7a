// Package registry holds the ordered, immutable list of course modules the
// viewer can display.
//
// A module id is both the navigation anchor and the content file key, so the
// registry refuses duplicate ids when it is built.
package registry

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/conneroisu/courseview/internal/errors"
)

// Category classifies a module into one of the two navigation groups.
type Category string

const (
	// CategoryPrimary is the main course sequence.
	CategoryPrimary Category = "modulo"
	// CategorySupplementary is supporting material listed separately.
	CategorySupplementary Category = "complementar"
)

// String returns the wire name of the category.
func (c Category) String() string {
	return string(c)
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	return c == CategoryPrimary || c == CategorySupplementary
}

// ParseCategory accepts the wire names as well as the English aliases.
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "modulo", "primary", "":
		return CategoryPrimary, nil
	case "complementar", "supplementary":
		return CategorySupplementary, nil
	default:
		return "", fmt.Errorf("unknown category %q", s)
	}
}

// ModuleDescriptor identifies one unit of course content.
type ModuleDescriptor struct {
	ID       string   `json:"id" yaml:"id" mapstructure:"id"`
	Name     string   `json:"name" yaml:"name" mapstructure:"name"`
	Category Category `json:"type" yaml:"type" mapstructure:"type"`
}

var idPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

// ValidateID checks that id is usable both as a URL fragment and as a file
// name inside the content directory.
func ValidateID(id string) error {
	if id == "" {
		return errors.NewValidationError(errors.ErrCodeInvalidPath, "empty module id")
	}
	if !idPattern.MatchString(id) {
		return errors.NewValidationError(errors.ErrCodeInvalidPath,
			fmt.Sprintf("module id %q contains invalid characters", id))
	}
	return nil
}

// DisplayName derives a human readable name from a module id.
func DisplayName(id string) string {
	words := strings.FieldsFunc(id, func(r rune) bool {
		return r == '_' || r == '-'
	})
	caser := cases.Title(language.BrazilianPortuguese)
	return caser.String(strings.Join(words, " "))
}

// Registry is the ordered set of modules. It is safe for concurrent reads
// because it never changes after New returns.
type Registry struct {
	modules []ModuleDescriptor
	index   map[string]int
}

// New builds a registry, filling in missing names and categories and
// rejecting invalid or duplicate ids.
func New(modules ...ModuleDescriptor) (*Registry, error) {
	r := &Registry{
		modules: make([]ModuleDescriptor, 0, len(modules)),
		index:   make(map[string]int, len(modules)),
	}

	for _, m := range modules {
		if err := ValidateID(m.ID); err != nil {
			return nil, err
		}
		if _, exists := r.index[m.ID]; exists {
			return nil, errors.NewValidationError(errors.ErrCodeDuplicateModule,
				fmt.Sprintf("duplicate module id %q", m.ID)).WithModule(m.ID)
		}

		category, err := ParseCategory(string(m.Category))
		if err != nil {
			return nil, errors.NewValidationError(errors.ErrCodeConfigInvalid, err.Error()).WithModule(m.ID)
		}
		m.Category = category

		if strings.TrimSpace(m.Name) == "" {
			m.Name = DisplayName(m.ID)
		}

		r.index[m.ID] = len(r.modules)
		r.modules = append(r.modules, m)
	}

	return r, nil
}

// MustNew is New for static tables known to be valid.
func MustNew(modules ...ModuleDescriptor) *Registry {
	r, err := New(modules...)
	if err != nil {
		panic(err)
	}
	return r
}

// All returns the modules in registry order.
func (r *Registry) All() []ModuleDescriptor {
	result := make([]ModuleDescriptor, len(r.modules))
	copy(result, r.modules)
	return result
}

// ByCategory returns the modules of one category in registry order.
func (r *Registry) ByCategory(category Category) []ModuleDescriptor {
	var result []ModuleDescriptor
	for _, m := range r.modules {
		if m.Category == category {
			result = append(result, m)
		}
	}
	return result
}

// Lookup finds a module by id.
func (r *Registry) Lookup(id string) (ModuleDescriptor, bool) {
	i, ok := r.index[id]
	if !ok {
		return ModuleDescriptor{}, false
	}
	return r.modules[i], true
}

// Count returns the number of modules.
func (r *Registry) Count() int {
	return len(r.modules)
}

// First returns the first module, used when no default is configured.
func (r *Registry) First() (ModuleDescriptor, bool) {
	if len(r.modules) == 0 {
		return ModuleDescriptor{}, false
	}
	return r.modules[0], true
}
