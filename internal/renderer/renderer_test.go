package renderer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender_Basic(t *testing.T) {
	r := New(Options{})

	out, err := r.RenderString("# Introdução\n\nTexto com **negrito**.\n")
	require.NoError(t, err)

	assert.Contains(t, out, "<h1")
	assert.Contains(t, out, "Introdução</h1>")
	assert.Contains(t, out, "<strong>negrito</strong>")
}

func TestRender_PassesLessonMarkup(t *testing.T) {
	r := New(Options{})

	src := `<div class="lesson">
<div class="lesson-header">

## Aula 1

</div>

Conteúdo da aula.

</div>
`
	out, err := r.RenderString(src)
	require.NoError(t, err)

	assert.Contains(t, out, `<div class="lesson">`)
	assert.Contains(t, out, `<div class="lesson-header">`)
	assert.Contains(t, out, "Aula 1</h2>")
	assert.Contains(t, out, "<p>Conteúdo da aula.</p>")
}

func TestRender_HighlightHook(t *testing.T) {
	type call struct{ code, lang string }
	var calls []call

	r := New(Options{Highlight: func(code, lang string) string {
		calls = append(calls, call{code, lang})
		return "<span>HL</span>"
	}})

	src := "```vue\n<template>\n  <p>{{ msg }}</p>\n</template>\n```\n\n```\nplain\n```\n"
	out, err := r.RenderString(src)
	require.NoError(t, err)

	require.Len(t, calls, 2)
	assert.Equal(t, "vue", calls[0].lang)
	assert.Equal(t, "<template>\n  <p>{{ msg }}</p>\n</template>\n", calls[0].code)
	assert.Equal(t, "", calls[1].lang)
	assert.Equal(t, "plain\n", calls[1].code)

	assert.Contains(t, out, `<pre><code class="language-vue"><span>HL</span></code></pre>`)
	assert.Contains(t, out, `<pre><code><span>HL</span></code></pre>`)
}

func TestRender_DefaultHookEscapes(t *testing.T) {
	r := New(Options{})

	out, err := r.RenderString("```html\n<b>bold</b>\n```\n")
	require.NoError(t, err)
	assert.Contains(t, out, `<code class="language-html">&lt;b&gt;bold&lt;/b&gt;`)
}

func TestRender_CustomLangPrefix(t *testing.T) {
	r := New(Options{LangPrefix: "lang-"})

	out, err := r.RenderString("```go\nx := 1\n```\n")
	require.NoError(t, err)
	assert.Contains(t, out, `class="lang-go"`)
}

func TestRender_GFMTable(t *testing.T) {
	r := New(Options{})

	out, err := r.RenderString("| Semana | Tema |\n|---|---|\n| 1 | Vue |\n")
	require.NoError(t, err)
	assert.True(t, strings.Contains(out, "<table>"))
}
