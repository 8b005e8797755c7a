package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/courseview/internal/errors"
)

func TestDefault(t *testing.T) {
	r := Default()

	assert.Equal(t, 11, r.Count())
	assert.Len(t, r.ByCategory(CategoryPrimary), 8)
	assert.Len(t, r.ByCategory(CategorySupplementary), 3)

	first, ok := r.First()
	require.True(t, ok)
	assert.Equal(t, DefaultModuleID, first.ID)

	m, ok := r.Lookup("cronograma_estudos")
	require.True(t, ok)
	assert.Equal(t, "Cronograma de Estudos", m.Name)
	assert.Equal(t, CategorySupplementary, m.Category)
}

func TestRegistry_PreservesOrder(t *testing.T) {
	r, err := New(
		ModuleDescriptor{ID: "c", Name: "C"},
		ModuleDescriptor{ID: "a", Name: "A", Category: CategorySupplementary},
		ModuleDescriptor{ID: "b", Name: "B"},
	)
	require.NoError(t, err)

	var ids []string
	for _, m := range r.All() {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []string{"c", "a", "b"}, ids)

	primary := r.ByCategory(CategoryPrimary)
	require.Len(t, primary, 2)
	assert.Equal(t, "c", primary[0].ID)
	assert.Equal(t, "b", primary[1].ID)
}

func TestRegistry_AllReturnsCopy(t *testing.T) {
	r := Default()

	all := r.All()
	all[0].Name = "changed"

	m, _ := r.Lookup(all[0].ID)
	assert.Equal(t, "Introdução", m.Name)
}

func TestNew_RejectsDuplicates(t *testing.T) {
	_, err := New(
		ModuleDescriptor{ID: "modulo1", Name: "One"},
		ModuleDescriptor{ID: "modulo1", Name: "Again"},
	)
	require.Error(t, err)

	var ve *errors.ViewerError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, errors.ErrCodeDuplicateModule, ve.Code)
}

func TestNew_RejectsInvalidIDs(t *testing.T) {
	for _, id := range []string{"", "../etc/passwd", "a b", "mod/1", "_hidden"} {
		t.Run(id, func(t *testing.T) {
			_, err := New(ModuleDescriptor{ID: id, Name: "x"})
			assert.Error(t, err)
		})
	}
}

func TestNew_RejectsUnknownCategory(t *testing.T) {
	_, err := New(ModuleDescriptor{ID: "a", Category: "bonus"})
	assert.Error(t, err)
}

func TestNew_FillsDefaults(t *testing.T) {
	r, err := New(
		ModuleDescriptor{ID: "exercicios_praticos", Category: "supplementary"},
		ModuleDescriptor{ID: "modulo-extra"},
	)
	require.NoError(t, err)

	m, ok := r.Lookup("exercicios_praticos")
	require.True(t, ok)
	assert.Equal(t, "Exercicios Praticos", m.Name)
	assert.Equal(t, CategorySupplementary, m.Category)

	m, ok = r.Lookup("modulo-extra")
	require.True(t, ok)
	assert.Equal(t, "Modulo Extra", m.Name)
	assert.Equal(t, CategoryPrimary, m.Category)
}

func TestLookup_Unknown(t *testing.T) {
	_, ok := Default().Lookup("modulo99")
	assert.False(t, ok)
}

func TestFirst_Empty(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	_, ok := r.First()
	assert.False(t, ok)
	assert.Equal(t, 0, r.Count())
}

func TestParseCategory(t *testing.T) {
	tests := []struct {
		in       string
		expected Category
		wantErr  bool
	}{
		{"modulo", CategoryPrimary, false},
		{"Primary", CategoryPrimary, false},
		{"", CategoryPrimary, false},
		{"complementar", CategorySupplementary, false},
		{" supplementary ", CategorySupplementary, false},
		{"extra", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCategory(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
			assert.True(t, got.Valid())
		})
	}
}
