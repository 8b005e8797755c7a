// Package highlight turns code into syntax-highlighted HTML using chroma.
//
// Fenced code block tags are resolved through an alias table first, then
// used as-is. An unknown grammar is reported as absent, and callers fall back
// to the raw text.
package highlight

import (
	"bytes"
	"fmt"
	"html"
	"io"
	"strings"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	xhtml "golang.org/x/net/html"

	"github.com/conneroisu/courseview/internal/dom"
)

// ClassPrefix prefixes the language class of code elements.
const ClassPrefix = "language-"

// HighlightedAttr marks code elements that already went through chroma.
const HighlightedAttr = "data-highlighted"

// DefaultAliases maps fenced code tags to chroma lexer names.
var DefaultAliases = map[string]string{
	"vue":  "vue",
	"js":   "javascript",
	"ts":   "typescript",
	"sh":   "bash",
	"html": "html",
	"yml":  "yaml",
}

// Highlighter highlights code with a named grammar.
type Highlighter interface {
	// Highlight returns highlighted markup and true, or false when the
	// grammar is unknown.
	Highlight(code, grammar string) (string, bool)
}

// Chroma is the chroma-backed Highlighter.
type Chroma struct {
	aliases   map[string]string
	formatter *chromahtml.Formatter
}

// New creates a highlighter with DefaultAliases merged with aliases.
func New(aliases map[string]string) *Chroma {
	merged := make(map[string]string, len(DefaultAliases)+len(aliases))
	for k, v := range DefaultAliases {
		merged[k] = v
	}
	for k, v := range aliases {
		merged[strings.ToLower(k)] = v
	}

	return &Chroma{
		aliases: merged,
		formatter: chromahtml.New(
			chromahtml.WithClasses(true),
			chromahtml.PreventSurroundingPre(true),
		),
	}
}

// Resolve maps a fenced code tag to a grammar name, falling back to the tag
// itself.
func (c *Chroma) Resolve(tag string) string {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if grammar, ok := c.aliases[tag]; ok {
		return grammar
	}
	return tag
}

// Lexer returns the lexer for grammar, or nil when chroma has none.
func (c *Chroma) Lexer(grammar string) chroma.Lexer {
	if grammar == "" {
		return nil
	}
	return lexers.Get(grammar)
}

// Highlight implements Highlighter. The grammar is resolved through the
// alias table before lookup.
func (c *Chroma) Highlight(code, grammar string) (string, bool) {
	lexer := c.Lexer(c.Resolve(grammar))
	if lexer == nil {
		return "", false
	}
	lexer = chroma.Coalesce(lexer)

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return "", false
	}

	var buf bytes.Buffer
	if err := c.formatter.Format(&buf, styles.Fallback, iterator); err != nil {
		return "", false
	}
	return buf.String(), true
}

// Hook adapts a Highlighter to the markdown renderer's per-block hook:
// highlighted markup when the grammar is known, escaped raw text otherwise.
func Hook(h Highlighter) func(code, lang string) string {
	return func(code, lang string) string {
		if lang != "" {
			if out, ok := h.Highlight(code, lang); ok {
				return out
			}
		}
		return html.EscapeString(code)
	}
}

// StyleExists reports whether chroma knows styleName.
func StyleExists(styleName string) bool {
	_, ok := styles.Registry[styleName]
	return ok
}

// WriteCSS writes the stylesheet for a named chroma style.
func (c *Chroma) WriteCSS(w io.Writer, styleName string) error {
	style, ok := styles.Registry[styleName]
	if !ok {
		return fmt.Errorf("unknown highlight style %q", styleName)
	}
	return c.formatter.WriteCSS(w, style)
}

// LanguageOf returns the language named by a code element's class list.
func LanguageOf(n *xhtml.Node) string {
	for _, class := range dom.Classes(n) {
		if strings.HasPrefix(class, ClassPrefix) {
			return strings.TrimPrefix(class, ClassPrefix)
		}
	}
	return ""
}

// All highlights every code element below root whose class names a language
// and which still holds plain text. It returns the number of elements
// highlighted. Elements with an unknown grammar are left untouched.
func All(root *xhtml.Node, h Highlighter) (int, error) {
	count := 0
	for _, code := range dom.ElementsByTag(root, "code") {
		lang := LanguageOf(code)
		if lang == "" || dom.HasAttr(code, HighlightedAttr) || dom.HasElementChildren(code) {
			continue
		}

		out, ok := h.Highlight(dom.TextContent(code), lang)
		if !ok {
			continue
		}
		if err := dom.SetInnerHTML(code, out); err != nil {
			return count, fmt.Errorf("inserting highlighted %s block: %w", lang, err)
		}
		dom.SetAttr(code, HighlightedAttr, "")
		count++
	}
	return count, nil
}
