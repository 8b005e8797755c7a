package registry

import (
	"strings"
	"testing"
)

// FuzzParseManifest checks that arbitrary manifests never produce a registry
// with duplicate or unusable ids.
func FuzzParseManifest(f *testing.F) {
	f.Add(sampleManifest)
	f.Add("modules:\n  - id: ../../../etc/passwd\n")
	f.Add("modules:\n  - id: \"<script>alert('xss')</script>\"\n")
	f.Add("modules:\n  - id: a\n  - id: a\n")
	f.Add("modules:\n  - id: Unicode🎯\n")
	f.Add("modules:\n  - id: m" + strings.Repeat("A", 1000) + "\n")

	f.Fuzz(func(t *testing.T, data string) {
		if len(data) > 50000 {
			t.Skip("manifest too large")
		}

		_, r, err := ParseManifest([]byte(data))
		if err != nil {
			return
		}

		seen := make(map[string]bool)
		for _, m := range r.All() {
			if seen[m.ID] {
				t.Errorf("duplicate id %q accepted", m.ID)
			}
			seen[m.ID] = true

			if err := ValidateID(m.ID); err != nil {
				t.Errorf("invalid id %q accepted: %v", m.ID, err)
			}
			if m.Name == "" {
				t.Errorf("module %q has no name", m.ID)
			}
			if !m.Category.Valid() {
				t.Errorf("module %q has invalid category %q", m.ID, m.Category)
			}
		}
	})
}
