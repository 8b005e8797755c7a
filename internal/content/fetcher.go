// Package content retrieves the raw markdown for a module.
//
// A module's content lives at <dir>/<id><ext>, by default markdown/<id>.md.
// Fetchers report failures as *errors.ContentLoadFailure carrying an
// HTTP-like status, whatever the underlying source is.
package content

import (
	"context"
	stderrors "errors"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/conneroisu/courseview/internal/errors"
)

// Default location of module files.
const (
	DefaultDir       = "markdown"
	DefaultExtension = ".md"
)

// Fetcher retrieves content text for a relative path.
type Fetcher interface {
	Fetch(ctx context.Context, relPath string) (string, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, relPath string) (string, error)

// Fetch implements Fetcher.
func (f FetcherFunc) Fetch(ctx context.Context, relPath string) (string, error) {
	return f(ctx, relPath)
}

// Layout maps module ids to content paths.
type Layout struct {
	Dir       string
	Extension string
}

// DefaultLayout is markdown/<id>.md.
func DefaultLayout() Layout {
	return Layout{Dir: DefaultDir, Extension: DefaultExtension}
}

// Ext returns the module file extension, DefaultExtension when unset.
func (l Layout) Ext() string {
	if l.Extension == "" {
		return DefaultExtension
	}
	return l.Extension
}

// Path returns the content path for moduleID.
func (l Layout) Path(moduleID string) string {
	ext := l.Ext()
	if l.Dir == "" {
		return moduleID + ext
	}
	return path.Join(l.Dir, moduleID+ext)
}

// ModuleID reverses Path. It reports false for files outside the layout.
func (l Layout) ModuleID(relPath string) (string, bool) {
	relPath = path.Clean(strings.ReplaceAll(relPath, "\\", "/"))
	ext := l.Ext()
	if !strings.HasSuffix(relPath, ext) {
		return "", false
	}
	if l.Dir != "" && path.Dir(relPath) != path.Clean(l.Dir) {
		return "", false
	}
	return strings.TrimSuffix(path.Base(relPath), ext), true
}

// FSFetcher reads content from a file system, such as os.DirFS or an
// embed.FS. Missing files are reported with status 404.
type FSFetcher struct {
	fsys fs.FS
}

// NewFSFetcher creates a fetcher over fsys.
func NewFSFetcher(fsys fs.FS) *FSFetcher {
	return &FSFetcher{fsys: fsys}
}

// NewDirFetcher creates a fetcher rooted at a directory on disk.
func NewDirFetcher(root string) *FSFetcher {
	return NewFSFetcher(os.DirFS(root))
}

// Fetch implements Fetcher.
func (f *FSFetcher) Fetch(ctx context.Context, relPath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", errors.NewTransportFailure(relPath, err)
	}

	clean := path.Clean(strings.TrimPrefix(relPath, "/"))
	if !fs.ValidPath(clean) {
		return "", errors.NewStatusFailure(relPath, http.StatusBadRequest)
	}

	data, err := fs.ReadFile(f.fsys, clean)
	if err != nil {
		switch {
		case stderrors.Is(err, fs.ErrNotExist):
			return "", errors.NewStatusFailure(relPath, http.StatusNotFound)
		case stderrors.Is(err, fs.ErrPermission):
			return "", errors.NewStatusFailure(relPath, http.StatusForbidden)
		default:
			return "", errors.NewTransportFailure(relPath, err)
		}
	}
	return string(data), nil
}

// HTTPFetcher retrieves content relative to a base URL, the way a browser
// resolves a relative fetch against the page location.
type HTTPFetcher struct {
	base   *url.URL
	client *http.Client
}

// NewHTTPFetcher creates a fetcher resolving paths against baseURL. A nil
// client means http.DefaultClient, which applies no timeout.
func NewHTTPFetcher(baseURL string, client *http.Client) (*HTTPFetcher, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid, "invalid content base URL: "+err.Error())
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid, "content base URL must be http or https")
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPFetcher{base: base, client: client}, nil
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, relPath string) (string, error) {
	ref, err := url.Parse(strings.TrimPrefix(relPath, "/"))
	if err != nil {
		return "", errors.NewTransportFailure(relPath, err)
	}
	target := f.base.ResolveReference(ref)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return "", errors.NewTransportFailure(relPath, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", errors.NewTransportFailure(relPath, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", errors.NewStatusFailure(relPath, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.NewTransportFailure(relPath, err)
	}
	return string(body), nil
}
