// Package testutils holds fixtures shared by tests that need a course on
// disk: a content directory with markdown modules and a matching config.
package testutils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/courseview/internal/content"
)

// LessonsMarkdown builds module markdown with one lesson block per title.
// Each lesson carries a header so it gets a completion checkbox.
func LessonsMarkdown(heading string, titles ...string) string {
	var b strings.Builder
	if heading != "" {
		b.WriteString("# " + heading + "\n\n")
	}
	for _, title := range titles {
		b.WriteString("<div class=\"lesson\">\n<div class=\"lesson-header\">\n\n")
		b.WriteString("## " + title + "\n\n")
		b.WriteString("</div>\n\n")
		b.WriteString("```js\nconst lesson = '" + title + "'\n```\n\n")
		b.WriteString("</div>\n\n")
	}
	return b.String()
}

// CreateTempCourse creates a content directory laid out the default way and
// writes each module into it. It returns the course root.
func CreateTempCourse(t *testing.T, modules map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, content.DefaultDir), 0o755))
	for id, text := range modules {
		WriteModule(t, dir, id, text)
	}
	return dir
}

// WriteModule writes the markdown for moduleID under root and returns the
// file path.
func WriteModule(t *testing.T, root, moduleID, text string) string {
	t.Helper()
	path := filepath.Join(root, content.DefaultLayout().Path(moduleID))
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
	return path
}

// CreateTestConfig returns a viper instance pointing at root with progress
// kept in a sqlite file inside it.
func CreateTestConfig(root string) *viper.Viper {
	v := viper.New()
	v.Set("content.dir", root)
	v.Set("store.driver", "sqlite")
	v.Set("store.path", filepath.Join(root, "progress.db"))
	return v
}

// WaitForFileChange waits for a file to be modified (useful for testing file watchers)
func WaitForFileChange(
	t *testing.T,
	filePath string,
	originalModTime time.Time,
	timeout time.Duration,
) {
	t.Helper()
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		info, err := os.Stat(filePath)
		if err == nil && info.ModTime().After(originalModTime) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Fatalf("File %s was not modified within %v", filePath, timeout)
}
