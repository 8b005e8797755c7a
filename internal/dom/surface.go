// Package dom provides the display surface: a parsed HTML document that the
// viewer mutates in place and renders on demand.
//
// All mutation goes through Surface.Update, which serializes writers. A
// replacement of a container's subtree is therefore atomic with respect to
// other loads, which gives overlapping loads last-write-wins semantics.
package dom

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ContentAreaID is the element module content is rendered into.
const ContentAreaID = "content-area"

// Surface is a mutable HTML document guarded by a mutex.
type Surface struct {
	mu       sync.RWMutex
	doc      *html.Node
	revision uint64
}

// Parse builds a surface from a full HTML document.
func Parse(r io.Reader) (*Surface, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing document: %w", err)
	}
	return &Surface{doc: doc}, nil
}

// ParseString is Parse for in-memory documents.
func ParseString(document string) (*Surface, error) {
	return Parse(strings.NewReader(document))
}

// Update runs fn with exclusive access to the document. The revision counter
// advances whenever fn returns nil.
func (s *Surface) Update(fn func(doc *html.Node) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := fn(s.doc); err != nil {
		return err
	}
	s.revision++
	return nil
}

// View runs fn with shared access to the document. fn must not mutate it.
func (s *Surface) View(fn func(doc *html.Node)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.doc)
}

// Revision counts successful updates.
func (s *Surface) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}

// Render writes the whole document.
func (s *Surface) Render(w io.Writer) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return html.Render(w, s.doc)
}

// String renders the whole document to a string.
func (s *Surface) String() string {
	var buf bytes.Buffer
	if err := s.Render(&buf); err != nil {
		return ""
	}
	return buf.String()
}

// InnerHTML renders the children of the element with the given id.
func (s *Surface) InnerHTML(id string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	el := GetElementByID(s.doc, id)
	if el == nil {
		return "", fmt.Errorf("element #%s not found", id)
	}
	return InnerHTML(el)
}

// ReplaceChildren swaps the entire subtree of the element with the given id
// for the parsed markup.
func (s *Surface) ReplaceChildren(id, markup string) error {
	return s.Update(func(doc *html.Node) error {
		el := GetElementByID(doc, id)
		if el == nil {
			return fmt.Errorf("element #%s not found", id)
		}
		return SetInnerHTML(el, markup)
	})
}

// InnerHTML renders the children of n.
func InnerHTML(n *html.Node) (string, error) {
	var buf bytes.Buffer
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return "", err
		}
	}
	return buf.String(), nil
}

// OuterHTML renders n itself.
func OuterHTML(n *html.Node) (string, error) {
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// SetInnerHTML removes every child of n and appends the nodes parsed from
// markup in the context of n.
func SetInnerHTML(n *html.Node, markup string) error {
	nodes, err := html.ParseFragment(strings.NewReader(markup), n)
	if err != nil {
		return fmt.Errorf("parsing fragment: %w", err)
	}

	RemoveChildren(n)
	for _, child := range nodes {
		n.AppendChild(child)
	}
	return nil
}

// RemoveChildren detaches all children of n.
func RemoveChildren(n *html.Node) {
	for n.FirstChild != nil {
		n.RemoveChild(n.FirstChild)
	}
}

// MoveChildren replaces the children of dst with the children of src,
// leaving src empty.
func MoveChildren(dst, src *html.Node) {
	RemoveChildren(dst)
	for src.FirstChild != nil {
		child := src.FirstChild
		src.RemoveChild(child)
		dst.AppendChild(child)
	}
}

// NewElement creates a detached element. attrs are key/value pairs.
func NewElement(tag string, attrs ...string) *html.Node {
	n := &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
	}
	for i := 0; i+1 < len(attrs); i += 2 {
		n.Attr = append(n.Attr, html.Attribute{Key: attrs[i], Val: attrs[i+1]})
	}
	return n
}

// NewText creates a detached text node.
func NewText(text string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: text}
}
