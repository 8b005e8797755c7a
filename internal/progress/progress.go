// Package progress attaches completion checkboxes to the lessons of a
// rendered module and persists their state.
//
// A lesson is identified only by its position among the lesson elements of
// the rendered content. If the content changes so that lessons move, stored
// progress follows the position, not the lesson.
package progress

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/net/html"

	"github.com/conneroisu/courseview/internal/dom"
	"github.com/conneroisu/courseview/internal/store"
)

// Markup contract between course content and the controller.
const (
	LessonClass   = "lesson"
	HeaderClass   = "lesson-header"
	CheckboxClass = "lesson-completed"
)

// Stored values.
const (
	valueTrue  = "true"
	valueFalse = "false"
)

// Key returns the store key of lesson index in moduleID.
func Key(moduleID string, index int) string {
	return fmt.Sprintf("%s_lesson_%d", moduleID, index)
}

// ParseKey splits a progress key back into module id and index.
func ParseKey(key string) (string, int, bool) {
	i := strings.LastIndex(key, "_lesson_")
	if i <= 0 {
		return "", 0, false
	}
	index, err := strconv.Atoi(key[i+len("_lesson_"):])
	if err != nil || index < 0 {
		return "", 0, false
	}
	return key[:i], index, true
}

// IsCompleted reads a lesson's state. Only the exact string "true" counts.
func IsCompleted(s store.Store, moduleID string, index int) bool {
	v, ok := s.Get(Key(moduleID, index))
	return ok && v == valueTrue
}

// Control is the completion checkbox of one lesson.
type Control struct {
	ModuleID string
	Index    int
	Title    string

	mu       sync.Mutex
	checkbox *html.Node
	surface  *dom.Surface
	store    store.Store
	checked  bool
	attached bool
}

// Key returns the control's store key.
func (c *Control) Key() string {
	return Key(c.ModuleID, c.Index)
}

// Checked reports the checkbox state.
func (c *Control) Checked() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.checked
}

// Attached reports whether the checkbox was placed in a lesson header.
func (c *Control) Attached() bool {
	return c.attached
}

// Toggle flips the checkbox and persists the new state.
func (c *Control) Toggle() error {
	c.mu.Lock()
	next := !c.checked
	c.mu.Unlock()
	return c.Set(next)
}

// Set changes the checkbox state and writes it to the store. Every call
// writes, even when the state does not change.
func (c *Control) Set(checked bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.checked = checked
	if c.surface != nil && c.checkbox != nil {
		_ = c.surface.Update(func(*html.Node) error {
			setChecked(c.checkbox, checked)
			return nil
		})
	}

	value := valueFalse
	if checked {
		value = valueTrue
	}
	return c.store.Set(c.Key(), value)
}

func setChecked(n *html.Node, checked bool) {
	if checked {
		dom.SetAttr(n, "checked", "")
	} else {
		dom.RemoveAttr(n, "checked")
	}
}

// Setup scans root for lesson elements in document order and gives each a
// checkbox restored from s. It must be called while the caller holds
// surface's write lock (from inside Surface.Update); the returned controls
// take that lock themselves when toggled.
func Setup(root *html.Node, surface *dom.Surface, moduleID string, s store.Store) []*Control {
	lessons := dom.ElementsByClass(root, LessonClass)
	controls := make([]*Control, 0, len(lessons))

	for index, lesson := range lessons {
		c := &Control{
			ModuleID: moduleID,
			Index:    index,
			surface:  surface,
			store:    s,
			checked:  IsCompleted(s, moduleID, index),
		}

		checkbox := dom.NewElement("input",
			"type", "checkbox",
			"class", CheckboxClass,
			"data-key", c.Key(),
		)
		setChecked(checkbox, c.checked)
		c.checkbox = checkbox

		if header := dom.FirstByClass(lesson, HeaderClass); header != nil {
			c.Title = strings.TrimSpace(dom.TextContent(header))
			header.AppendChild(checkbox)
			c.attached = true
		}

		controls = append(controls, c)
	}

	return controls
}
