package validation

import (
	"net/url"
	"path/filepath"
	"strings"
	"testing"
)

func FuzzValidatePath(f *testing.F) {
	f.Add("markdown")
	f.Add("../etc/passwd")
	f.Add("course/../../etc")
	f.Add("a;b")
	f.Add("....//x")

	f.Fuzz(func(t *testing.T, path string) {
		if err := ValidatePath(path); err != nil {
			return
		}
		for _, part := range strings.Split(filepath.ToSlash(filepath.Clean(path)), "/") {
			if part == ".." {
				t.Errorf("accepted traversal: %q", path)
			}
		}
	})
}

func FuzzValidateURL(f *testing.F) {
	f.Add("http://localhost:8080/markdown")
	f.Add("http://localhost:8080/../admin")
	f.Add("http://localhost:8080/%2e%2e/admin")
	f.Add("javascript:alert(1)")

	f.Fuzz(func(t *testing.T, raw string) {
		if err := ValidateURL(raw); err != nil {
			return
		}
		parsed, err := url.Parse(raw)
		if err != nil {
			t.Fatalf("accepted unparsable URL %q", raw)
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			t.Errorf("accepted scheme %q", parsed.Scheme)
		}
		if strings.Contains(parsed.Path, "/../") || strings.HasSuffix(parsed.Path, "/..") {
			t.Errorf("accepted traversal: %q", raw)
		}
	})
}
