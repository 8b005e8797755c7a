// Package theme manages the process-wide light/dark preference.
package theme

import (
	"sync"

	"golang.org/x/net/html"

	"github.com/conneroisu/courseview/internal/dom"
	"github.com/conneroisu/courseview/internal/store"
)

// Theme is the applied UI theme.
type Theme string

const (
	Light Theme = "light"
	Dark  Theme = "dark"
)

// StoreKey is the single store key holding the preference.
const StoreKey = "theme"

// DarkClass is added to <body> while the dark theme is applied.
const DarkClass = "dark-mode"

// Controller applies and persists the theme.
type Controller struct {
	store   store.Store
	surface *dom.Surface

	mu      sync.Mutex
	current Theme
}

// New creates a controller. The surface may be nil when only the preference
// matters, as in the CLI.
func New(s store.Store, surface *dom.Surface) *Controller {
	return &Controller{store: s, surface: surface, current: Light}
}

// Saved reads the persisted preference. Anything but exactly "dark" is light.
func Saved(s store.Store) Theme {
	if v, ok := s.Get(StoreKey); ok && v == string(Dark) {
		return Dark
	}
	return Light
}

// Apply reads the persisted preference and applies dark styling when it is
// exactly "dark". It never writes to the store.
func (c *Controller) Apply() Theme {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.current = Saved(c.store)
	if c.current == Dark {
		c.updateBody(func(body *html.Node) { dom.AddClass(body, DarkClass) })
	}
	return c.current
}

// Toggle flips the applied styling and persists the resulting theme.
func (c *Controller) Toggle() (Theme, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := Dark
	if c.current == Dark {
		next = Light
	}

	c.updateBody(func(body *html.Node) {
		if next == Dark {
			dom.AddClass(body, DarkClass)
		} else {
			dom.RemoveClass(body, DarkClass)
		}
	})
	c.current = next

	return next, c.store.Set(StoreKey, string(next))
}

// Current returns the applied theme.
func (c *Controller) Current() Theme {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *Controller) updateBody(fn func(body *html.Node)) {
	if c.surface == nil {
		return
	}
	_ = c.surface.Update(func(doc *html.Node) error {
		if body := dom.Body(doc); body != nil {
			fn(body)
		}
		return nil
	})
}
