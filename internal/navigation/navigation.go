// Package navigation builds the module menu on the display surface.
package navigation

import (
	"fmt"

	"golang.org/x/net/html"

	"github.com/conneroisu/courseview/internal/dom"
	"github.com/conneroisu/courseview/internal/registry"
)

// Container ids for the two navigation groups.
const (
	PrimaryListID       = "module-list"
	SupplementaryListID = "complementary-list"
)

// LinkClass marks navigation anchors.
const LinkClass = "module-link"

// ActivateFunc is invoked with a module id when its entry is activated.
type ActivateFunc func(moduleID string)

// Entry is one navigation link bound to its activation handler.
type Entry struct {
	Module   registry.ModuleDescriptor
	activate ActivateFunc
}

// Activate runs the entry's handler, as a click on the link would.
func (e *Entry) Activate() {
	if e.activate != nil {
		e.activate(e.Module.ID)
	}
}

// Href is the link target of the entry.
func (e *Entry) Href() string {
	return "#" + e.Module.ID
}

// ContainerID returns the list a module of category c is appended to.
func ContainerID(c registry.Category) string {
	if c == registry.CategoryPrimary {
		return PrimaryListID
	}
	return SupplementaryListID
}

// Build appends one <li><a> per registry module to the list matching its
// category and returns the entries in registry order. A module whose
// container is missing from the surface still gets an entry; it just has no
// link on the page.
func Build(surface *dom.Surface, reg *registry.Registry, activate ActivateFunc) []*Entry {
	modules := reg.All()
	entries := make([]*Entry, 0, len(modules))

	_ = surface.Update(func(doc *html.Node) error {
		for _, m := range modules {
			entries = append(entries, &Entry{Module: m, activate: activate})

			container := dom.GetElementByID(doc, ContainerID(m.Category))
			if container == nil {
				continue
			}

			a := dom.NewElement("a", "href", "#"+m.ID, "class", LinkClass, "data-module", m.ID)
			a.AppendChild(dom.NewText(m.Name))
			li := dom.NewElement("li")
			li.AppendChild(a)
			container.AppendChild(li)
		}
		return nil
	})

	return entries
}

// Find returns the entry for moduleID.
func Find(entries []*Entry, moduleID string) (*Entry, error) {
	for _, e := range entries {
		if e.Module.ID == moduleID {
			return e, nil
		}
	}
	return nil, fmt.Errorf("no navigation entry for module %q", moduleID)
}
