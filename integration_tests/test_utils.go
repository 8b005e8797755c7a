//go:build integration
// +build integration

package integration_tests

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/courseview/internal/config"
	"github.com/conneroisu/courseview/internal/highlight"
	"github.com/conneroisu/courseview/internal/logging"
	"github.com/conneroisu/courseview/internal/page"
	"github.com/conneroisu/courseview/internal/renderer"
	"github.com/conneroisu/courseview/internal/server"
	"github.com/conneroisu/courseview/internal/store"
	"github.com/conneroisu/courseview/internal/testutils"
	"github.com/conneroisu/courseview/internal/viewer"
	"github.com/conneroisu/courseview/internal/watcher"
)

// courseFixture is a content directory. Progress is kept in a sqlite file
// inside it, so servers started from the same fixture share progress.
type courseFixture struct {
	dir string
}

func newCourseFixture(t *testing.T, modules map[string]string) *courseFixture {
	t.Helper()
	return &courseFixture{dir: testutils.CreateTempCourse(t, modules)}
}

func (f *courseFixture) write(t *testing.T, moduleID, text string) {
	t.Helper()
	testutils.WriteModule(t, f.dir, moduleID, text)
}

// runningServer is a live courseview server on a loopback port.
type runningServer struct {
	URL    string
	WSURL  string
	Server *server.Server
	Viewer *viewer.Controller

	store store.Store
	done  chan error
}

// startServer wires the same stack the serve command does and waits until
// the health endpoint answers.
func startServer(t *testing.T, f *courseFixture, watch bool, configure ...func(*viper.Viper)) *runningServer {
	t.Helper()
	ctx := context.Background()

	v := testutils.CreateTestConfig(f.dir)
	v.Set("server.watch", watch)
	for _, fn := range configure {
		fn(v)
	}
	cfg, err := config.LoadFrom(v)
	require.NoError(t, err)

	reg, err := cfg.Registry()
	require.NoError(t, err)
	st, err := store.Open(cfg.StoreOptions())
	require.NoError(t, err)
	fetcher, err := cfg.Fetcher()
	require.NoError(t, err)
	surface, err := page.NewSurface(ctx, page.Config{Title: cfg.Course.Title, LiveUpdates: true})
	require.NoError(t, err)

	hl := highlight.New(cfg.Highlight.Aliases)
	vc, err := viewer.New(viewer.Options{
		Registry:    reg,
		Surface:     surface,
		Fetcher:     fetcher,
		Layout:      cfg.Layout(),
		Renderer:    renderer.New(renderer.Options{Highlight: highlight.Hook(hl)}),
		Highlighter: hl,
		Store:       st,
	})
	require.NoError(t, err)

	var fw *watcher.FileWatcher
	if watch {
		fw, err = watcher.NewFileWatcher(50*time.Millisecond, logging.Discard())
		require.NoError(t, err)
	}

	srv, err := server.New(server.Options{Config: cfg, Viewer: vc, Highlighter: hl, Watcher: fw})
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	rs := &runningServer{
		URL:    "http://" + ln.Addr().String(),
		WSURL:  "ws://" + ln.Addr().String() + "/ws",
		Server: srv,
		Viewer: vc,
		store:  st,
		done:   make(chan error, 1),
	}
	go func() { rs.done <- srv.Serve(ctx, ln) }()

	require.NoError(t, waitForServer(rs.URL+"/health", 10*time.Second))
	t.Cleanup(func() { rs.stop(t) })
	return rs
}

// stop shuts the server down and closes its store. It is safe to call more
// than once.
func (rs *runningServer) stop(t *testing.T) {
	t.Helper()
	if rs.done == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, rs.Server.Shutdown(ctx))
	require.NoError(t, <-rs.done)
	require.NoError(t, rs.store.Close())
	rs.done = nil
}

// waitForServer polls url until it answers 200 or the timeout passes.
func waitForServer(url string, timeout time.Duration) error {
	client := &http.Client{Timeout: time.Second}
	deadline := time.Now().Add(timeout)
	delay := 20 * time.Millisecond

	for time.Now().Before(deadline) {
		resp, err := client.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(delay)
		if delay < 200*time.Millisecond {
			delay *= 2
		}
	}
	return fmt.Errorf("server at %s not ready after %v", url, timeout)
}
