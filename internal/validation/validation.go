// Package validation checks user-supplied paths, hosts and URLs before they
// reach the file system or the network.
package validation

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// dangerousChars are shell metacharacters rejected in every input.
var dangerousChars = []string{";", "&", "|", "$", "`", "<", ">", "\"", "'"}

// ValidatePath rejects empty paths, traversal and shell metacharacters.
func ValidatePath(path string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}

	cleanPath := filepath.Clean(path)
	for _, part := range strings.Split(filepath.ToSlash(cleanPath), "/") {
		if part == ".." {
			return fmt.Errorf("path traversal detected: %s", path)
		}
	}

	for _, char := range dangerousChars {
		if strings.Contains(path, char) {
			return fmt.Errorf("path contains dangerous character: %s", char)
		}
	}
	if strings.ContainsRune(path, 0) {
		return fmt.Errorf("path contains NUL byte")
	}

	return nil
}

// ValidateHost rejects hosts that could smuggle shell syntax.
func ValidateHost(host string) error {
	for _, char := range append(dangerousChars, "(", ")", "\\", " ", "/") {
		if strings.Contains(host, char) {
			return fmt.Errorf("host contains dangerous character: %q", char)
		}
	}
	return nil
}

// ValidateURL accepts absolute http(s) URLs with a host and no traversal in
// the path, encoded or not.
func ValidateURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("invalid URL scheme: %s (only http/https allowed)", parsed.Scheme)
	}

	for _, char := range append(dangerousChars, "(", ")", "\\", "\n", "\r", " ") {
		if strings.Contains(rawURL, char) {
			return fmt.Errorf("URL contains dangerous character: %q", char)
		}
	}

	if parsed.Host == "" {
		return fmt.Errorf("URL must have a valid hostname")
	}

	for _, part := range strings.Split(parsed.Path, "/") {
		if part == ".." || strings.HasPrefix(part, "..") {
			return fmt.Errorf("URL path contains traversal: %s", parsed.Path)
		}
	}
	lower := strings.ToLower(parsed.RawPath + parsed.EscapedPath())
	if strings.Contains(lower, "%2e%2e") {
		return fmt.Errorf("URL path contains encoded traversal")
	}

	return nil
}

// ValidateModuleID accepts ids that are safe as a single path segment.
func ValidateModuleID(id string) error {
	if id == "" {
		return fmt.Errorf("module id cannot be empty")
	}
	if strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return fmt.Errorf("module id %q is not a single path segment", id)
	}
	return ValidatePath(id)
}
