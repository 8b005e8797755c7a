package viewer

import (
	"context"
	stderrors "errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	xhtml "golang.org/x/net/html"

	"github.com/conneroisu/courseview/internal/content"
	"github.com/conneroisu/courseview/internal/dom"
	"github.com/conneroisu/courseview/internal/errors"
	"github.com/conneroisu/courseview/internal/highlight"
	"github.com/conneroisu/courseview/internal/progress"
	"github.com/conneroisu/courseview/internal/registry"
	"github.com/conneroisu/courseview/internal/store"
	"github.com/conneroisu/courseview/internal/theme"
)

const shell = `<html><head></head><body>
<button id="theme-toggle"></button>
<ul id="module-list"></ul><ul id="complementary-list"></ul>
<main id="content-area"><p>previous</p></main>
</body></html>`

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

// fakeSource serves markdown from a map and counts requests per path.
// Paths listed in gates block until the gate is closed.
type fakeSource struct {
	mu       sync.Mutex
	files    map[string]string
	requests map[string]int
	gates    map[string]chan struct{}
}

func newFakeSource(files map[string]string) *fakeSource {
	return &fakeSource{
		files:    files,
		requests: make(map[string]int),
		gates:    make(map[string]chan struct{}),
	}
}

func (f *fakeSource) gate(path string) chan struct{} {
	ch := make(chan struct{})
	f.mu.Lock()
	f.gates[path] = ch
	f.mu.Unlock()
	return ch
}

func (f *fakeSource) Fetch(ctx context.Context, path string) (string, error) {
	f.mu.Lock()
	f.requests[path]++
	gate := f.gates[path]
	text, ok := f.files[path]
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if !ok {
		return "", errors.NewStatusFailure(path, 404)
	}
	return text, nil
}

func (f *fakeSource) count(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[path]
}

func (f *fakeSource) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.requests {
		n += c
	}
	return n
}

func newController(t *testing.T, src content.Fetcher, s store.Store) *Controller {
	t.Helper()
	surface, err := dom.ParseString(shell)
	require.NoError(t, err)
	if s == nil {
		s = store.NewMemoryStore()
	}
	c, err := New(Options{
		Registry: registry.Default(),
		Surface:  surface,
		Fetcher:  src,
		Store:    s,
	})
	require.NoError(t, err)
	return c
}

func contentArea(t *testing.T, c *Controller) string {
	t.Helper()
	inner, err := c.Surface().InnerHTML(dom.ContentAreaID)
	require.NoError(t, err)
	return inner
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Options{Fetcher: newFakeSource(nil), Store: store.NewMemoryStore()})
	assert.Error(t, err)
	_, err = New(Options{Registry: registry.Default(), Store: store.NewMemoryStore()})
	assert.Error(t, err)
	_, err = New(Options{Registry: registry.Default(), Fetcher: newFakeSource(nil)})
	assert.Error(t, err)
}

func TestStart_LoadsDefaultModule(t *testing.T) {
	src := newFakeSource(map[string]string{"markdown/modulo1.md": "Bem-vindo."})
	c := newController(t, src, nil)

	require.NoError(t, c.Start(context.Background()))

	assert.Equal(t, 1, src.count("markdown/modulo1.md"))
	assert.Equal(t, 1, src.total())
	assert.Equal(t, "modulo1", c.Current())
	assert.Equal(t, Rendered, c.State())
	assert.Len(t, c.Entries(), 11)

	inner := contentArea(t, c)
	assert.True(t, strings.HasPrefix(inner, `<div class="module"><h1>Introdução</h1>`), inner)
	assert.NotContains(t, inner, "previous")

	page := c.Surface().String()
	assert.Contains(t, page, `<a href="#modulo1" class="module-link" data-module="modulo1">Introdução</a>`)
	assert.Contains(t, page, `data-module="cronograma_estudos"`)
}

func TestStart_AppliesSavedTheme(t *testing.T) {
	s := store.NewMemoryStore()
	require.NoError(t, s.Set(theme.StoreKey, "dark"))
	c := newController(t, newFakeSource(map[string]string{"markdown/modulo1.md": "x"}), s)

	require.NoError(t, c.Start(context.Background()))
	assert.Equal(t, theme.Dark, c.Theme().Current())
	assert.Contains(t, c.Surface().String(), `class="dark-mode"`)
}

func TestStart_MissingDefaultShowsError(t *testing.T) {
	c := newController(t, newFakeSource(nil), nil)

	require.NoError(t, c.Start(context.Background()))
	assert.Equal(t, Failed, c.State())
	assert.Equal(t, "<p>Erro ao carregar módulo: HTTP error! status: 404</p>", contentArea(t, c))
}

func TestActivate_SingleRetrieval(t *testing.T) {
	src := newFakeSource(map[string]string{
		"markdown/modulo1.md": "a",
		"markdown/modulo3.md": "# Ref\n\ntexto",
	})
	c := newController(t, src, nil)
	require.NoError(t, c.Start(context.Background()))

	before := src.total()
	require.NoError(t, c.Activate(context.Background(), "modulo3"))

	assert.Equal(t, before+1, src.total())
	assert.Equal(t, 1, src.count("markdown/modulo3.md"))

	inner := contentArea(t, c)
	assert.True(t, strings.HasPrefix(inner, `<div class="module"><h1>Reatividade</h1>`))
	assert.Contains(t, inner, `<h1 id="ref">Ref</h1>`)
	assert.NotContains(t, inner, "Introdução")
}

func TestActivate_UnknownEntry(t *testing.T) {
	src := newFakeSource(map[string]string{"markdown/modulo1.md": "a"})
	c := newController(t, src, nil)
	require.NoError(t, c.Start(context.Background()))

	err := c.Activate(context.Background(), "modulo99")
	assert.ErrorIs(t, err, errors.ErrModuleNotFound)
	assert.Equal(t, 0, src.count("markdown/modulo99.md"))
}

func TestEntryClick_LoadsAsynchronously(t *testing.T) {
	src := newFakeSource(map[string]string{
		"markdown/modulo1.md":            "a",
		"markdown/exercicios_praticos.md": "b",
	})
	c := newController(t, src, nil)
	require.NoError(t, c.Start(context.Background()))

	for _, e := range c.Entries() {
		if e.Module.ID == "exercicios_praticos" {
			e.Activate()
		}
	}

	assert.Eventually(t, func() bool {
		return c.Current() == "exercicios_praticos" && c.State() == Rendered
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, src.count("markdown/exercicios_praticos.md"))
}

func TestLoadModule_NotFoundShowsErrorOnly(t *testing.T) {
	src := newFakeSource(map[string]string{"markdown/modulo1.md": "conteúdo anterior"})
	c := newController(t, src, nil)
	require.NoError(t, c.LoadModule(context.Background(), "modulo1"))

	err := c.LoadModule(context.Background(), "modulo2")
	require.Error(t, err)

	var cf *errors.ContentLoadFailure
	require.True(t, stderrors.As(err, &cf))
	assert.Equal(t, 404, cf.Status)
	assert.Equal(t, "markdown/modulo2.md", cf.Path)

	assert.Equal(t, "<p>Erro ao carregar módulo: HTTP error! status: 404</p>", contentArea(t, c))
	assert.Equal(t, Failed, c.State())
	assert.Empty(t, c.Current())
	assert.Empty(t, c.Controls())
}

func TestLoadModule_TransportFailure(t *testing.T) {
	src := content.FetcherFunc(func(context.Context, string) (string, error) {
		return "", stderrors.New("connection refused")
	})
	c := newController(t, src, nil)

	err := c.LoadModule(context.Background(), "modulo1")
	var cf *errors.ContentLoadFailure
	require.True(t, stderrors.As(err, &cf))
	assert.Equal(t, "<p>Erro ao carregar módulo: connection refused</p>", contentArea(t, c))
}

func TestLoadModule_ErrorMessageIsEscaped(t *testing.T) {
	src := content.FetcherFunc(func(context.Context, string) (string, error) {
		return "", stderrors.New("<script>x</script>")
	})
	c := newController(t, src, nil)

	_ = c.LoadModule(context.Background(), "modulo1")
	assert.Equal(t, "<p>Erro ao carregar módulo: &lt;script&gt;x&lt;/script&gt;</p>", contentArea(t, c))
}

func TestLoadModule_UnknownIDShowsError(t *testing.T) {
	src := newFakeSource(map[string]string{
		"markdown/modulo1.md": lessonsMarkdown,
		"markdown/extra.md":   "orphan",
	})
	c := newController(t, src, nil)
	require.NoError(t, c.LoadModule(context.Background(), "modulo1"))
	require.Len(t, c.Controls(), 2)

	var events []Event
	c.Subscribe(func(ev Event) { events = append(events, ev) })

	err := c.LoadModule(context.Background(), "extra")
	assert.ErrorIs(t, err, errors.ErrModuleNotFound)
	assert.Equal(t, 1, src.count("markdown/extra.md"), "the fetch happens before the lookup")

	assert.Equal(t, "<p>Erro ao carregar módulo: module not found: extra</p>", contentArea(t, c))
	assert.NotContains(t, contentArea(t, c), "orphan")
	assert.Equal(t, Failed, c.State())
	assert.Empty(t, c.Current())
	assert.Empty(t, c.Controls())

	require.Len(t, events, 1)
	assert.Equal(t, EventContent, events[0].Type)
	assert.ErrorIs(t, events[0].Err, errors.ErrModuleNotFound)
}

func TestLoadModule_HighlightFailureShowsError(t *testing.T) {
	src := newFakeSource(map[string]string{
		"markdown/modulo1.md": lessonsMarkdown,
		"markdown/modulo2.md": lessonsMarkdown,
	})
	c := newController(t, src, nil)
	require.NoError(t, c.LoadModule(context.Background(), "modulo1"))

	c.highlightAll = func(root *xhtml.Node, _ highlight.Highlighter) (int, error) {
		// The pass runs before the swap: the surface still shows modulo1.
		assert.Nil(t, dom.GetElementByID(root, dom.ContentAreaID))
		assert.Contains(t, contentArea(t, c), "Introdução")
		return 0, stderrors.New("broken grammar")
	}

	err := c.LoadModule(context.Background(), "modulo2")
	require.Error(t, err)

	assert.Equal(t, "<p>Erro ao carregar módulo: highlighting code: modulo2</p>", contentArea(t, c))
	assert.Empty(t, c.Current())
	assert.Empty(t, c.Controls())
	assert.Equal(t, Failed, c.State())
}

func TestStart_StopsOnInternalFailure(t *testing.T) {
	src := newFakeSource(map[string]string{"markdown/modulo1.md": lessonsMarkdown})
	c := newController(t, src, nil)
	c.highlightAll = func(*xhtml.Node, highlight.Highlighter) (int, error) {
		return 0, stderrors.New("broken grammar")
	}

	err := c.Start(context.Background())
	require.Error(t, err)
	assert.False(t, errors.IsRecoverable(err))
	assert.Contains(t, contentArea(t, c), "Erro ao carregar módulo")
}

func TestStart_UnknownDefaultShowsError(t *testing.T) {
	src := newFakeSource(map[string]string{"markdown/modulo99.md": "orphan"})
	surface, err := dom.ParseString(shell)
	require.NoError(t, err)
	c, err := New(Options{
		Registry:      registry.Default(),
		Surface:       surface,
		Fetcher:       src,
		Store:         store.NewMemoryStore(),
		DefaultModule: "modulo99",
	})
	require.NoError(t, err)

	require.NoError(t, c.Start(context.Background()))
	assert.Equal(t, "<p>Erro ao carregar módulo: module not found: modulo99</p>", contentArea(t, c))
}

func TestNew_DefaultModuleFallsBackToFirst(t *testing.T) {
	reg, err := registry.New(
		registry.ModuleDescriptor{ID: "intro", Name: "Intro", Category: registry.CategoryPrimary},
		registry.ModuleDescriptor{ID: "extras", Name: "Extras", Category: registry.CategorySupplementary},
	)
	require.NoError(t, err)
	src := newFakeSource(map[string]string{"markdown/intro.md": "Olá."})
	surface, err := dom.ParseString(shell)
	require.NoError(t, err)

	c, err := New(Options{Registry: reg, Surface: surface, Fetcher: src, Store: store.NewMemoryStore()})
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))

	assert.Equal(t, "intro", c.Current())
	assert.Equal(t, 0, src.count("markdown/modulo1.md"))
}

func TestLoadModule_Idempotent(t *testing.T) {
	src := newFakeSource(map[string]string{"markdown/modulo2.md": lessonsMarkdown})
	c := newController(t, src, nil)

	require.NoError(t, c.LoadModule(context.Background(), "modulo2"))
	first := contentArea(t, c)
	require.NoError(t, c.LoadModule(context.Background(), "modulo2"))

	assert.Equal(t, first, contentArea(t, c))
	assert.Len(t, c.Controls(), 2)
}

func TestLoadModule_HighlightsCode(t *testing.T) {
	src := newFakeSource(map[string]string{"markdown/modulo2.md": lessonsMarkdown})
	c := newController(t, src, nil)

	require.NoError(t, c.LoadModule(context.Background(), "modulo2"))
	inner := contentArea(t, c)
	assert.Contains(t, inner, `<code class="language-js">`)
	assert.Contains(t, inner, `<span class="`)
}

func TestLoadModule_AttachesProgress(t *testing.T) {
	s := store.NewMemoryStore()
	require.NoError(t, s.Set(progress.Key("modulo2", 1), "true"))
	src := newFakeSource(map[string]string{"markdown/modulo2.md": lessonsMarkdown})
	c := newController(t, src, s)

	require.NoError(t, c.LoadModule(context.Background(), "modulo2"))

	controls := c.Controls()
	require.Len(t, controls, 2)
	assert.Equal(t, "Aula 1", controls[0].Title)
	assert.False(t, controls[0].Checked())
	assert.True(t, controls[1].Checked())

	inner := contentArea(t, c)
	assert.Contains(t, inner, `data-key="modulo2_lesson_0"/>`)
	assert.Contains(t, inner, `data-key="modulo2_lesson_1" checked=""/>`)
}

func TestSetProgress_RoundTrip(t *testing.T) {
	s := store.NewMemoryStore()
	src := newFakeSource(map[string]string{
		"markdown/modulo2.md": lessonsMarkdown,
		"markdown/modulo1.md": "a",
	})
	c := newController(t, src, s)
	ctx := context.Background()

	require.NoError(t, c.LoadModule(ctx, "modulo2"))
	_, err := c.SetProgress(ctx, "modulo2", 0, true)
	require.NoError(t, err)

	require.NoError(t, c.LoadModule(ctx, "modulo1"))
	_, err = c.SetProgress(ctx, "modulo2", 0, false)
	assert.Error(t, err, "modulo2 is no longer on the surface")

	require.NoError(t, c.LoadModule(ctx, "modulo2"))
	assert.True(t, c.Controls()[0].Checked())
	assert.False(t, c.Controls()[1].Checked())

	_, err = c.SetProgress(ctx, "modulo2", 0, false)
	require.NoError(t, err)
	require.NoError(t, c.LoadModule(ctx, "modulo2"))
	assert.False(t, c.Controls()[0].Checked())

	_, err = c.SetProgress(ctx, "modulo2", 7, true)
	assert.Error(t, err)
}

func TestLoadModuleAsync_LastWriteWins(t *testing.T) {
	src := newFakeSource(map[string]string{
		"markdown/modulo1.md": "um",
		"markdown/modulo2.md": lessonsMarkdown,
	})
	slow := src.gate("markdown/modulo1.md")
	c := newController(t, src, nil)
	ctx := context.Background()

	first := c.LoadModuleAsync(ctx, "modulo1")
	require.Eventually(t, func() bool { return src.count("markdown/modulo1.md") == 1 }, time.Second, time.Millisecond)

	second := c.LoadModuleAsync(ctx, "modulo2")
	require.NoError(t, <-second)
	assert.Equal(t, "modulo2", c.Current())
	assert.Equal(t, Fetching, c.State(), "modulo1 is still in flight")

	close(slow)
	require.NoError(t, <-first)

	assert.Equal(t, "modulo1", c.Current())
	assert.Equal(t, Rendered, c.State())
	inner := contentArea(t, c)
	assert.True(t, strings.HasPrefix(inner, `<div class="module"><h1>Introdução</h1>`))
	assert.NotContains(t, inner, "Fundamentos")
	assert.Empty(t, c.Controls(), "controls follow the winning content")
}

func TestReload_OnlyCurrentModule(t *testing.T) {
	src := newFakeSource(map[string]string{"markdown/modulo1.md": "a"})
	c := newController(t, src, nil)
	ctx := context.Background()
	require.NoError(t, c.LoadModule(ctx, "modulo1"))

	reloaded, err := c.Reload(ctx, "modulo2")
	require.NoError(t, err)
	assert.False(t, reloaded)

	src.mu.Lock()
	src.files["markdown/modulo1.md"] = "b"
	src.mu.Unlock()

	reloaded, err = c.Reload(ctx, "modulo1")
	require.NoError(t, err)
	assert.True(t, reloaded)
	assert.Contains(t, contentArea(t, c), "<p>b</p>")
	assert.Equal(t, 2, src.count("markdown/modulo1.md"))
}

func TestSubscribe_ReceivesEvents(t *testing.T) {
	src := newFakeSource(map[string]string{"markdown/modulo2.md": lessonsMarkdown})
	c := newController(t, src, nil)
	ctx := context.Background()

	var events []Event
	c.Subscribe(func(ev Event) { events = append(events, ev) })

	require.NoError(t, c.LoadModule(ctx, "modulo2"))
	_, err := c.SetProgress(ctx, "modulo2", 1, true)
	require.NoError(t, err)
	_, err = c.ToggleTheme(ctx)
	require.NoError(t, err)
	_ = c.LoadModule(ctx, "modulo5")

	require.Len(t, events, 4)
	assert.Equal(t, EventContent, events[0].Type)
	assert.Equal(t, "modulo2", events[0].ModuleID)
	assert.Equal(t, EventProgress, events[1].Type)
	assert.Equal(t, EventTheme, events[2].Type)
	assert.Equal(t, EventContent, events[3].Type)
	assert.Error(t, events[3].Err)
}

func TestToggleTheme_Persists(t *testing.T) {
	s := store.NewMemoryStore()
	c := newController(t, newFakeSource(nil), s)

	next, err := c.ToggleTheme(context.Background())
	require.NoError(t, err)
	assert.Equal(t, theme.Dark, next)
	assert.Equal(t, theme.Dark, theme.Saved(s))
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "fetching", Fetching.String())
	assert.Equal(t, "rendered", Rendered.String())
	assert.Equal(t, "failed", Failed.String())
}
