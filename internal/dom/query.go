package dom

import (
	"strings"

	"golang.org/x/net/html"
)

// Walk visits n and its descendants in document order. Returning false from
// fn stops the walk.
func Walk(n *html.Node, fn func(*html.Node) bool) bool {
	if !fn(n) {
		return false
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if !Walk(c, fn) {
			return false
		}
	}
	return true
}

// GetElementByID returns the first element below root with the given id.
func GetElementByID(root *html.Node, id string) *html.Node {
	var found *html.Node
	Walk(root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && Attr(n, "id") == id {
			found = n
			return false
		}
		return true
	})
	return found
}

// ElementsByClass returns every element below root (root included) carrying
// class, in document order.
func ElementsByClass(root *html.Node, class string) []*html.Node {
	var result []*html.Node
	Walk(root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && HasClass(n, class) {
			result = append(result, n)
		}
		return true
	})
	return result
}

// FirstByClass returns the first descendant of root carrying class. root
// itself is not considered.
func FirstByClass(root *html.Node, class string) *html.Node {
	var found *html.Node
	for c := root.FirstChild; c != nil && found == nil; c = c.NextSibling {
		Walk(c, func(n *html.Node) bool {
			if n.Type == html.ElementNode && HasClass(n, class) {
				found = n
				return false
			}
			return true
		})
	}
	return found
}

// ElementsByTag returns every element below root with the given tag name.
func ElementsByTag(root *html.Node, tag string) []*html.Node {
	var result []*html.Node
	Walk(root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.Data == tag {
			result = append(result, n)
		}
		return true
	})
	return result
}

// Body returns the document's body element.
func Body(doc *html.Node) *html.Node {
	bodies := ElementsByTag(doc, "body")
	if len(bodies) == 0 {
		return nil
	}
	return bodies[0]
}

// Attr returns the value of key on n, or the empty string.
func Attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// HasAttr reports whether n carries key.
func HasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

// SetAttr sets key on n, replacing any previous value.
func SetAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// RemoveAttr deletes key from n.
func RemoveAttr(n *html.Node, key string) {
	attrs := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Key != key {
			attrs = append(attrs, a)
		}
	}
	n.Attr = attrs
}

// Classes returns the class list of n.
func Classes(n *html.Node) []string {
	return strings.Fields(Attr(n, "class"))
}

// HasClass reports whether n's class list contains class.
func HasClass(n *html.Node, class string) bool {
	for _, c := range Classes(n) {
		if c == class {
			return true
		}
	}
	return false
}

// AddClass appends class to n's class list if missing.
func AddClass(n *html.Node, class string) {
	if HasClass(n, class) {
		return
	}
	SetAttr(n, "class", strings.TrimSpace(Attr(n, "class")+" "+class))
}

// RemoveClass drops class from n's class list.
func RemoveClass(n *html.Node, class string) {
	if !HasAttr(n, "class") {
		return
	}
	var kept []string
	for _, c := range Classes(n) {
		if c != class {
			kept = append(kept, c)
		}
	}
	SetAttr(n, "class", strings.Join(kept, " "))
}

// ToggleClass flips class on n and reports whether it is now present.
func ToggleClass(n *html.Node, class string) bool {
	if HasClass(n, class) {
		RemoveClass(n, class)
		return false
	}
	AddClass(n, class)
	return true
}

// TextContent concatenates the text nodes below n.
func TextContent(n *html.Node) string {
	var sb strings.Builder
	Walk(n, func(c *html.Node) bool {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
		return true
	})
	return sb.String()
}

// HasElementChildren reports whether any child of n is an element.
func HasElementChildren(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return true
		}
	}
	return false
}
