// Package renderer converts module markdown into HTML.
//
// Rendering uses goldmark with GitHub Flavored Markdown. Raw HTML in the
// source is passed through, since course content marks its lessons with
// hand-written <div class="lesson"> blocks. Every fenced code block goes
// through a highlight hook that receives the code and its language tag.
package renderer

import (
	"bytes"
	"fmt"
	"html"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	goldmarkhtml "github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/util"
)

// DefaultLangPrefix prefixes the language class of rendered code elements.
const DefaultLangPrefix = "language-"

// HighlightFunc returns markup for a fenced code block. Implementations
// return the code HTML-escaped when they cannot highlight it.
type HighlightFunc func(code, lang string) string

// Options configures a Renderer.
type Options struct {
	Highlight  HighlightFunc
	LangPrefix string
}

// Renderer converts markdown to HTML.
type Renderer struct {
	md goldmark.Markdown
}

// New creates a renderer. A nil Highlight hook escapes code verbatim.
func New(opts Options) *Renderer {
	if opts.Highlight == nil {
		opts.Highlight = func(code, _ string) string { return html.EscapeString(code) }
	}
	if opts.LangPrefix == "" {
		opts.LangPrefix = DefaultLangPrefix
	}

	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		goldmark.WithRendererOptions(
			goldmarkhtml.WithUnsafe(),
			renderer.WithNodeRenderers(
				util.Prioritized(&codeBlockRenderer{highlight: opts.Highlight, langPrefix: opts.LangPrefix}, 200),
			),
		),
	)

	return &Renderer{md: md}
}

// Render converts src to an HTML fragment.
func (r *Renderer) Render(src []byte) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert(src, &buf); err != nil {
		return "", fmt.Errorf("converting markdown: %w", err)
	}
	return buf.String(), nil
}

// RenderString is Render for string input.
func (r *Renderer) RenderString(src string) (string, error) {
	return r.Render([]byte(src))
}

// codeBlockRenderer replaces goldmark's fenced code block output so the
// highlight hook controls the block body.
type codeBlockRenderer struct {
	highlight  HighlightFunc
	langPrefix string
}

func (r *codeBlockRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(ast.KindFencedCodeBlock, r.renderFencedCodeBlock)
}

func (r *codeBlockRenderer) renderFencedCodeBlock(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}

	n := node.(*ast.FencedCodeBlock)
	lang := string(n.Language(source))

	var code bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		code.Write(line.Value(source))
	}

	_, _ = w.WriteString("<pre><code")
	if lang != "" {
		_, _ = w.WriteString(` class="`)
		_, _ = w.WriteString(html.EscapeString(r.langPrefix + lang))
		_, _ = w.WriteString(`"`)
	}
	_, _ = w.WriteString(">")
	_, _ = w.WriteString(r.highlight(code.String(), lang))
	_, _ = w.WriteString("</code></pre>\n")

	return ast.WalkSkipChildren, nil
}
