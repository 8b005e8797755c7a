package server

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	json "github.com/goccy/go-json"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/courseview/internal/config"
	"github.com/conneroisu/courseview/internal/content"
	"github.com/conneroisu/courseview/internal/errors"
	"github.com/conneroisu/courseview/internal/page"
	"github.com/conneroisu/courseview/internal/progress"
	"github.com/conneroisu/courseview/internal/registry"
	"github.com/conneroisu/courseview/internal/store"
	"github.com/conneroisu/courseview/internal/theme"
	"github.com/conneroisu/courseview/internal/viewer"
	ws "github.com/conneroisu/courseview/internal/websocket"
)

const lessonsMarkdown = `<div class="lesson">
<div class="lesson-header">

## Aula 1

</div>

Texto.

</div>

<div class="lesson">
<div class="lesson-header">

## Aula 2

</div>

` + "```js\nconst a = 1\n```" + `

</div>
`

type testEnv struct {
	server *Server
	viewer *viewer.Controller
	store  *store.MemoryStore
}

func setupTestServer(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	v := viper.New()
	v.Set("store.driver", "memory")
	cfg, err := config.LoadFrom(v)
	require.NoError(t, err)

	files := map[string]string{
		"markdown/modulo1.md": lessonsMarkdown,
		"markdown/modulo2.md": "# Fundamentos\n\nSem aulas.",
	}
	fetcher := content.FetcherFunc(func(_ context.Context, path string) (string, error) {
		if text, ok := files[path]; ok {
			return text, nil
		}
		return "", errors.NewStatusFailure(path, http.StatusNotFound)
	})

	surface, err := page.NewSurface(ctx, page.Config{Title: cfg.Course.Title})
	require.NoError(t, err)

	st := store.NewMemoryStore()
	vc, err := viewer.New(viewer.Options{
		Registry: registry.Default(),
		Surface:  surface,
		Fetcher:  fetcher,
		Store:    st,
	})
	require.NoError(t, err)

	srv, err := New(Options{Config: cfg, Viewer: vc})
	require.NoError(t, err)
	require.NoError(t, vc.Start(ctx))

	t.Cleanup(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	})

	return &testEnv{server: srv, viewer: vc, store: st}
}

func (e *testEnv) do(t *testing.T, method, target string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, req)
	return w
}

func TestNew_Requirements(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)

	cfg, err := config.LoadFrom(viper.New())
	require.NoError(t, err)
	_, err = New(Options{Config: cfg})
	assert.Error(t, err)
}

func TestHandleIndex(t *testing.T) {
	env := setupTestServer(t)

	w := env.do(t, http.MethodGet, "/", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))
	body := w.Body.String()
	assert.Contains(t, body, "<!DOCTYPE html>")
	assert.Contains(t, body, `<h1>Introdução</h1>`)
	assert.Contains(t, body, `href="#cronograma_estudos"`)
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, w.Header().Get("Content-Security-Policy"))
}

func TestHandleIndex_UnknownPath(t *testing.T) {
	env := setupTestServer(t)
	w := env.do(t, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleContent(t *testing.T) {
	env := setupTestServer(t)

	w := env.do(t, http.MethodGet, "/content", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Body.String(), `<div class="module"><h1>Introdução</h1>`))
	assert.Equal(t, "rendered", w.Header().Get("X-Module-State"))
	assert.Equal(t, "modulo1", w.Header().Get("X-Module"))
}

func TestHandleActivate(t *testing.T) {
	env := setupTestServer(t)

	w := env.do(t, http.MethodPost, "/modules/modulo2", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<h1>Fundamentos</h1>")
	assert.Equal(t, "modulo2", env.viewer.Current())
}

func TestHandleActivate_MissingContent(t *testing.T) {
	env := setupTestServer(t)

	w := env.do(t, http.MethodPost, "/modules/modulo3", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "<p>Erro ao carregar módulo: HTTP error! status: 404</p>", w.Body.String())
	assert.Equal(t, "failed", w.Header().Get("X-Module-State"))
	assert.Equal(t, "404", w.Header().Get("X-Content-Status"))
	assert.Empty(t, w.Header().Get("X-Module"))
}

func TestHandleActivate_UnknownModule(t *testing.T) {
	env := setupTestServer(t)
	before := env.viewer.Surface().Revision()

	w := env.do(t, http.MethodPost, "/modules/modulo99", "")

	assert.Equal(t, http.StatusNotFound, w.Code)
	var resp errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, errors.ErrCodeModuleNotFound, resp.Code)
	assert.Equal(t, before, env.viewer.Surface().Revision())
}

func TestHandleActivate_InvalidID(t *testing.T) {
	env := setupTestServer(t)
	w := env.do(t, http.MethodPost, "/modules/..", "")
	assert.NotEqual(t, http.StatusOK, w.Code)
}

func TestHandleActivate_WrongMethod(t *testing.T) {
	env := setupTestServer(t)
	w := env.do(t, http.MethodGet, "/modules/modulo2", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestHandleModules(t *testing.T) {
	env := setupTestServer(t)

	w := env.do(t, http.MethodGet, "/api/modules", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var modules []ModuleView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &modules))
	require.Len(t, modules, 11)
	assert.Equal(t, "modulo1", modules[0].ID)
	assert.True(t, modules[0].Current)
	assert.Equal(t, "#modulo1", modules[0].Href)
	assert.Equal(t, registry.CategorySupplementary, modules[10].Category)
	assert.False(t, modules[10].Current)
}

func TestHandleProgress_RoundTrip(t *testing.T) {
	env := setupTestServer(t)

	w := env.do(t, http.MethodPost, "/api/progress/modulo1/1", `{"completed": true}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var set ProgressView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &set))
	assert.Equal(t, ProgressView{Module: "modulo1", Lesson: 1, Key: "modulo1_lesson_1", Completed: true}, set)

	value, ok := env.store.Get(progress.Key("modulo1", 1))
	require.True(t, ok)
	assert.Equal(t, "true", value)

	w = env.do(t, http.MethodGet, "/api/progress/modulo1/1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var got ProgressView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.True(t, got.Completed)

	assert.Contains(t, env.do(t, http.MethodGet, "/content", "").Body.String(), "checked")
}

func TestHandleProgress_GetAnyModule(t *testing.T) {
	env := setupTestServer(t)
	require.NoError(t, env.store.Set("modulo5_lesson_0", "true"))

	w := env.do(t, http.MethodGet, "/api/progress/modulo5/0", "")

	require.Equal(t, http.StatusOK, w.Code)
	var got ProgressView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.True(t, got.Completed)
}

func TestHandleProgress_Errors(t *testing.T) {
	env := setupTestServer(t)

	tests := []struct {
		name   string
		method string
		target string
		body   string
		status int
	}{
		{"module not on surface", http.MethodPost, "/api/progress/modulo2/0", `{"completed":true}`, http.StatusConflict},
		{"lesson out of range", http.MethodPost, "/api/progress/modulo1/7", `{"completed":true}`, http.StatusNotFound},
		{"unknown module", http.MethodGet, "/api/progress/modulo99/0", "", http.StatusNotFound},
		{"negative index", http.MethodGet, "/api/progress/modulo1/-1", "", http.StatusBadRequest},
		{"non numeric index", http.MethodGet, "/api/progress/modulo1/x", "", http.StatusBadRequest},
		{"bad body", http.MethodPost, "/api/progress/modulo1/0", `completed`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, tt.method, tt.target, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}

	_, ok := env.store.Get("modulo2_lesson_0")
	assert.False(t, ok)
}

func TestHandleThemeToggle(t *testing.T) {
	env := setupTestServer(t)

	w := env.do(t, http.MethodPost, "/api/theme/toggle", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"theme":"dark"}`, w.Body.String())

	value, _ := env.store.Get(theme.StoreKey)
	assert.Equal(t, "dark", value)
	assert.Contains(t, env.do(t, http.MethodGet, "/", "").Body.String(), `class="dark-mode"`)

	w = env.do(t, http.MethodPost, "/api/theme/toggle", "")
	assert.JSONEq(t, `{"theme":"light"}`, w.Body.String())
}

func TestHandleHighlightCSS_FollowsTheme(t *testing.T) {
	env := setupTestServer(t)

	light := env.do(t, http.MethodGet, "/static/highlight.css", "")
	require.Equal(t, http.StatusOK, light.Code)
	assert.Equal(t, "text/css; charset=utf-8", light.Header().Get("Content-Type"))
	assert.NotEmpty(t, light.Body.String())

	env.do(t, http.MethodPost, "/api/theme/toggle", "")
	dark := env.do(t, http.MethodGet, "/static/highlight.css", "")
	assert.NotEqual(t, light.Body.String(), dark.Body.String())
}

func TestHandleHealth(t *testing.T) {
	env := setupTestServer(t)

	w := env.do(t, http.MethodGet, "/health", "")

	require.Equal(t, http.StatusOK, w.Code)
	var health map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health["status"])
	checks := health["checks"].(map[string]interface{})
	assert.Equal(t, "modulo1", checks["viewer"].(map[string]interface{})["module"])
}

func TestMiddleware_RejectsForeignOrigin(t *testing.T) {
	env := setupTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/theme/toggle", nil)
	req.Header.Set("Origin", "https://evil.example")
	w := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	_, ok := env.store.Get(theme.StoreKey)
	assert.False(t, ok)
}

func TestMiddleware_AllowsSameOrigin(t *testing.T) {
	env := setupTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "http://course.lan:8080/api/theme/toggle", nil)
	req.Header.Set("Origin", "http://course.lan:8080")
	w := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(&RateLimitConfig{RequestsPerSecond: 1, BurstSize: 2, IdleTimeout: time.Minute, Enabled: true}, nil)
	defer rl.Stop()

	assert.True(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.2"))

	disabled := NewRateLimiter(&RateLimitConfig{Enabled: false}, nil)
	defer disabled.Stop()
	for i := 0; i < 10; i++ {
		assert.True(t, disabled.Allow("10.0.0.1"))
	}
}

func TestWebSocket_BroadcastsSurfaceChanges(t *testing.T) {
	env := setupTestServer(t)
	ts := httptest.NewServer(env.server.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	require.Eventually(t, func() bool { return env.server.Hub().Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	read := func() ws.UpdateMessage {
		_, data, err := conn.Read(ctx)
		require.NoError(t, err)
		var msg ws.UpdateMessage
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	}

	resp, err := http.Post(ts.URL+"/api/theme/toggle", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()

	msg := read()
	assert.Equal(t, viewer.EventTheme, msg.Type)
	assert.Equal(t, "dark", msg.Content)

	resp, err = http.Post(ts.URL+"/modules/modulo2", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()

	msg = read()
	assert.Equal(t, viewer.EventContent, msg.Type)
	assert.Contains(t, msg.Content, "<h1>Fundamentos</h1>")
}

func TestServe_AndShutdown(t *testing.T) {
	env := setupTestServer(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- env.server.Serve(context.Background(), ln) }()

	url := "http://" + ln.Addr().String() + "/health"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, env.server.Shutdown(ctx))
	assert.NoError(t, <-done)

	// Shutdown is idempotent.
	assert.NoError(t, env.server.Shutdown(ctx))
}

func TestHandleEvent_ProgressCarriesContent(t *testing.T) {
	env := setupTestServer(t)
	ts := httptest.NewServer(env.server.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")
	require.Eventually(t, func() bool { return env.server.Hub().Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Post(ts.URL+"/api/progress/modulo1/0", "application/json", bytes.NewBufferString(`{"completed":true}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var msg ws.UpdateMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, viewer.EventProgress, msg.Type)
	assert.Contains(t, msg.Content, `data-key="modulo1_lesson_0"`)
}
