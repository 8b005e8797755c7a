// Package viewer loads course modules into the display surface and owns the
// progress controls of whichever module is currently shown.
package viewer

import (
	"context"
	stderrors "errors"
	"fmt"
	"html"
	"sync"
	"sync/atomic"

	xhtml "golang.org/x/net/html"

	"github.com/conneroisu/courseview/internal/content"
	"github.com/conneroisu/courseview/internal/dom"
	"github.com/conneroisu/courseview/internal/errors"
	"github.com/conneroisu/courseview/internal/highlight"
	"github.com/conneroisu/courseview/internal/logging"
	"github.com/conneroisu/courseview/internal/navigation"
	"github.com/conneroisu/courseview/internal/progress"
	"github.com/conneroisu/courseview/internal/registry"
	"github.com/conneroisu/courseview/internal/renderer"
	"github.com/conneroisu/courseview/internal/store"
	"github.com/conneroisu/courseview/internal/theme"
)

// State of the most recent load request.
type State int

const (
	Idle State = iota
	Fetching
	Rendered
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Fetching:
		return "fetching"
	case Rendered:
		return "rendered"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// ErrorPrefix starts the paragraph shown in place of content that failed to
// load.
const ErrorPrefix = "Erro ao carregar módulo: "

// Event types published after the surface changes.
const (
	EventContent  = "content_update"
	EventTheme    = "theme_update"
	EventProgress = "progress_update"
)

// Event describes one surface change.
type Event struct {
	Type     string
	Target   string // element id that changed
	ModuleID string
	Err      error
}

// Options wires a Controller to its collaborators. Registry, Fetcher and
// Store are required.
type Options struct {
	Registry      *registry.Registry
	Surface       *dom.Surface
	Fetcher       content.Fetcher
	Layout        content.Layout
	Renderer      *renderer.Renderer
	Highlighter   highlight.Highlighter
	Store         store.Store
	DefaultModule string
	Logger        logging.Logger
}

// Controller is the module loader and progress controller.
type Controller struct {
	registry    *registry.Registry
	surface     *dom.Surface
	fetcher     content.Fetcher
	layout      content.Layout
	renderer    *renderer.Renderer
	highlighter highlight.Highlighter
	store       store.Store
	theme       *theme.Controller
	defaultID   string
	logger      logging.Logger
	errs        *errors.ErrorHandler

	// highlightAll is highlight.All; tests replace it to fail the pass.
	highlightAll func(root *xhtml.Node, h highlight.Highlighter) (int, error)

	inflight atomic.Int32

	// mu guards the fields below. When both locks are needed the surface
	// lock is taken first.
	mu        sync.Mutex
	state     State
	current   string
	controls  []*progress.Control
	entries   []*navigation.Entry
	listeners []func(Event)
	baseCtx   context.Context
}

// New creates a controller. Missing optional collaborators get defaults: an
// empty page shell, the markdown/<id>.md layout, a chroma highlighter and a
// renderer hooked to it.
func New(opts Options) (*Controller, error) {
	if opts.Registry == nil {
		return nil, fmt.Errorf("viewer: registry is required")
	}
	if opts.Fetcher == nil {
		return nil, fmt.Errorf("viewer: content fetcher is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("viewer: store is required")
	}

	surface := opts.Surface
	if surface == nil {
		var err error
		surface, err = dom.ParseString(`<html><head></head><body><main id="` + dom.ContentAreaID + `"></main></body></html>`)
		if err != nil {
			return nil, err
		}
	}
	layout := opts.Layout
	if layout.Dir == "" && layout.Extension == "" {
		layout = content.DefaultLayout()
	}
	hl := opts.Highlighter
	if hl == nil {
		hl = highlight.New(nil)
	}
	r := opts.Renderer
	if r == nil {
		r = renderer.New(renderer.Options{Highlight: highlight.Hook(hl)})
	}
	defaultID := opts.DefaultModule
	if defaultID == "" {
		defaultID = registry.DefaultModuleID
		if _, ok := opts.Registry.Lookup(defaultID); !ok {
			if first, ok := opts.Registry.First(); ok {
				defaultID = first.ID
			}
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	logger = logger.WithComponent("viewer")

	return &Controller{
		registry:     opts.Registry,
		surface:      surface,
		fetcher:      opts.Fetcher,
		layout:       layout,
		renderer:     r,
		highlighter:  hl,
		highlightAll: highlight.All,
		store:        opts.Store,
		theme:        theme.New(opts.Store, surface),
		defaultID:    defaultID,
		logger:       logger,
		errs:         errors.NewErrorHandler(logger),
		baseCtx:      context.Background(),
	}, nil
}

// Surface returns the display surface.
func (c *Controller) Surface() *dom.Surface { return c.surface }

// Registry returns the module registry.
func (c *Controller) Registry() *registry.Registry { return c.registry }

// Store returns the progress and theme store.
func (c *Controller) Store() store.Store { return c.store }

// Theme returns the theme controller bound to the surface.
func (c *Controller) Theme() *theme.Controller { return c.theme }

// Layout returns the content layout used to locate module files.
func (c *Controller) Layout() content.Layout { return c.layout }

// Subscribe registers fn to be called after every surface change. Listeners
// run synchronously on the goroutine that made the change, with no locks
// held.
func (c *Controller) Subscribe(fn func(Event)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

func (c *Controller) publish(ev Event) {
	c.mu.Lock()
	listeners := append([]func(Event){}, c.listeners...)
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(ev)
	}
}

// Start builds the navigation, applies the saved theme and loads the default
// module. A failed default load is already shown on the surface, so only
// a missing content area or unknown default id is returned.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	c.baseCtx = context.WithoutCancel(ctx)
	c.mu.Unlock()

	entries := navigation.Build(c.surface, c.registry, func(id string) {
		c.LoadModuleAsync(c.backgroundContext(), id)
	})

	c.mu.Lock()
	c.entries = entries
	c.mu.Unlock()

	applied := c.theme.Apply()
	c.logger.Info(ctx, "Viewer started",
		"modules", len(entries),
		"theme", applied,
		"default_module", c.defaultID)

	// A failed default load is already on the surface as the error
	// paragraph; only internal failures stop startup.
	err := c.LoadModule(ctx, c.defaultID)
	if err != nil && errors.IsRecoverable(err) {
		return nil
	}
	return err
}

func (c *Controller) backgroundContext() context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.baseCtx
}

// Entries returns the navigation entries built by Start.
func (c *Controller) Entries() []*navigation.Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*navigation.Entry(nil), c.entries...)
}

// Activate loads the module behind a navigation entry and waits for it,
// which is what a click does minus the waiting.
func (c *Controller) Activate(ctx context.Context, moduleID string) error {
	if _, err := navigation.Find(c.Entries(), moduleID); err != nil {
		return errors.ModuleNotFound(moduleID).WithContext("reason", err.Error())
	}
	return c.LoadModule(ctx, moduleID)
}

// LoadModuleAsync runs LoadModule on its own goroutine. Overlapping loads are
// not cancelled; the one that finishes last owns the content area.
func (c *Controller) LoadModuleAsync(ctx context.Context, moduleID string) <-chan error {
	done := make(chan error, 1)
	c.inflight.Add(1)
	go func() {
		err := c.loadModule(ctx, moduleID)
		c.inflight.Add(-1)
		done <- err
		close(done)
	}()
	return done
}

// LoadModule fetches a module's markdown, renders it into the content area
// and attaches progress controls.
//
// A retrieval failure replaces the content area with an error paragraph and
// is returned as *errors.ContentLoadFailure. An id with no registry entry is
// found only after the fetch; it gets the error paragraph too and returns
// errors.ErrModuleNotFound.
func (c *Controller) LoadModule(ctx context.Context, moduleID string) error {
	c.inflight.Add(1)
	defer c.inflight.Add(-1)
	return c.loadModule(ctx, moduleID)
}

func (c *Controller) loadModule(ctx context.Context, moduleID string) error {
	c.setState(Fetching)

	path := c.layout.Path(moduleID)
	c.logger.Debug(ctx, "Fetching module", "module", moduleID, "path", path)

	text, err := c.fetcher.Fetch(ctx, path)
	if err != nil {
		var cf *errors.ContentLoadFailure
		if !stderrors.As(err, &cf) {
			cf = errors.NewTransportFailure(path, err)
		}
		c.fail(ctx, moduleID, cf)
		return cf
	}

	desc, ok := c.registry.Lookup(moduleID)
	if !ok {
		err := errors.ModuleNotFound(moduleID).WithContext("path", path)
		c.fail(ctx, moduleID, err)
		return err
	}

	body, err := c.renderer.RenderString(text)
	if err != nil {
		rerr := errors.NewInternalError(errors.ErrCodeRender, "markdown conversion failed", err).WithModule(moduleID)
		c.fail(ctx, moduleID, rerr)
		return rerr
	}

	markup := `<div class="module"><h1>` + html.EscapeString(desc.Name) + `</h1>` + body + `</div>`

	// The module is built and highlighted off the surface, so a failure here
	// never leaves a half-replaced content area.
	fragment := dom.NewElement("div")
	if err := dom.SetInnerHTML(fragment, markup); err != nil {
		rerr := errors.NewInternalError(errors.ErrCodeRender, "parsing rendered module", err).WithModule(moduleID)
		c.fail(ctx, moduleID, rerr)
		return rerr
	}
	highlighted, err := c.highlightAll(fragment, c.highlighter)
	if err != nil {
		rerr := errors.NewInternalError(errors.ErrCodeRender, "highlighting code", err).WithModule(moduleID)
		c.fail(ctx, moduleID, rerr)
		return rerr
	}

	var controls []*progress.Control
	err = c.surface.Update(func(doc *xhtml.Node) error {
		area := dom.GetElementByID(doc, dom.ContentAreaID)
		if area == nil {
			return fmt.Errorf("element #%s not found", dom.ContentAreaID)
		}
		dom.MoveChildren(area, fragment)
		controls = progress.Setup(area, c.surface, moduleID, c.store)

		// Swapped under the surface lock so the controls always match the
		// content on the surface.
		c.mu.Lock()
		c.current = moduleID
		c.controls = controls
		c.mu.Unlock()
		return nil
	})
	if err != nil {
		ierr := errors.NewInternalError(errors.ErrCodeRender, "updating content area", err).WithModule(moduleID)
		c.errs.Handle(ctx, ierr)
		c.setState(Failed)
		return ierr
	}

	c.setState(Rendered)
	c.logger.Info(ctx, "Module loaded",
		"module", moduleID,
		"lessons", len(controls),
		"highlighted", highlighted)
	c.publish(Event{Type: EventContent, Target: dom.ContentAreaID, ModuleID: moduleID})
	return nil
}

// fail replaces the content area with the error paragraph and forgets the
// module that was on it.
func (c *Controller) fail(ctx context.Context, moduleID string, cause error) {
	c.errs.Handle(ctx, cause)

	markup := `<p>` + html.EscapeString(ErrorPrefix+failureMessage(cause)) + `</p>`
	err := c.surface.Update(func(doc *xhtml.Node) error {
		area := dom.GetElementByID(doc, dom.ContentAreaID)
		if area == nil {
			return fmt.Errorf("element #%s not found", dom.ContentAreaID)
		}
		if err := dom.SetInnerHTML(area, markup); err != nil {
			return err
		}
		c.mu.Lock()
		c.current = ""
		c.controls = nil
		c.mu.Unlock()
		return nil
	})
	if err != nil {
		c.logger.Error(ctx, err, "Failed to show load error", "module", moduleID)
	}

	c.setState(Failed)
	c.publish(Event{Type: EventContent, Target: dom.ContentAreaID, ModuleID: moduleID, Err: cause})
}

// failureMessage is the text shown after ErrorPrefix. Content failures keep
// their status text; viewer errors show their message and module.
func failureMessage(err error) string {
	var ve *errors.ViewerError
	if stderrors.As(err, &ve) {
		if ve.Module != "" {
			return ve.Message + ": " + ve.Module
		}
		return ve.Message
	}
	return err.Error()
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = s
}

// State reports Fetching while any load is in flight, otherwise the outcome
// of the most recent one.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inflight.Load() > 0 {
		return Fetching
	}
	return c.state
}

// Current returns the id of the module on the surface, or "" when the
// content area shows nothing or an error.
func (c *Controller) Current() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Controls returns the progress controls of the module on the surface.
func (c *Controller) Controls() []*progress.Control {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*progress.Control(nil), c.controls...)
}

// Control returns the control of lesson index when moduleID is on the
// surface.
func (c *Controller) Control(moduleID string, index int) (*progress.Control, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if moduleID != c.current {
		return nil, errors.NewValidationError(errors.ErrCodeModuleNotLoaded, "module is not on the surface").WithModule(moduleID)
	}
	if index < 0 || index >= len(c.controls) {
		return nil, errors.NewValidationError(errors.ErrCodeLessonNotFound, fmt.Sprintf("no lesson %d", index)).WithModule(moduleID)
	}
	return c.controls[index], nil
}

// SetProgress sets a lesson's checkbox on the surface and persists it.
func (c *Controller) SetProgress(ctx context.Context, moduleID string, index int, completed bool) (*progress.Control, error) {
	ctrl, err := c.Control(moduleID, index)
	if err != nil {
		return nil, err
	}
	if err := ctrl.Set(completed); err != nil {
		serr := errors.NewStoreError(errors.ErrCodeStoreWrite, "saving progress", err).WithModule(moduleID)
		c.errs.Handle(ctx, serr)
		return nil, serr
	}

	c.logger.Debug(ctx, "Progress saved", "key", ctrl.Key(), "completed", completed)
	c.publish(Event{Type: EventProgress, Target: dom.ContentAreaID, ModuleID: moduleID})
	return ctrl, nil
}

// ToggleTheme flips and persists the theme.
func (c *Controller) ToggleTheme(ctx context.Context) (theme.Theme, error) {
	next, err := c.theme.Toggle()
	if err != nil {
		serr := errors.NewStoreError(errors.ErrCodeStoreWrite, "saving theme", err)
		c.errs.Handle(ctx, serr)
		return next, serr
	}
	c.logger.Debug(ctx, "Theme toggled", "theme", next)
	c.publish(Event{Type: EventTheme, Target: "body"})
	return next, nil
}

// Reload re-renders moduleID if it is the module on the surface. It reports
// whether a reload happened.
func (c *Controller) Reload(ctx context.Context, moduleID string) (bool, error) {
	if moduleID == "" || moduleID != c.Current() {
		return false, nil
	}
	return true, c.LoadModule(ctx, moduleID)
}
