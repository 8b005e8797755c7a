// Package page renders the document skeleton the display surface is built
// from.
package page

import (
	"bytes"
	"context"

	"github.com/conneroisu/courseview/internal/dom"
)

// StylesheetPath serves the highlight stylesheet for the current theme.
const StylesheetPath = "/static/highlight.css"

// ThemeToggleID is the theme switch button.
const ThemeToggleID = "theme-toggle"

// Config parameterises the shell.
type Config struct {
	Title string
	Lang  string
	// LiveUpdates includes the websocket client script.
	LiveUpdates bool
}

// DefaultConfig is the shell of the built-in course.
func DefaultConfig() Config {
	return Config{
		Title:       "Curso de Vue.js",
		Lang:        "pt-BR",
		LiveUpdates: true,
	}
}

func (c Config) lang() string {
	if c.Lang == "" {
		return "pt-BR"
	}
	return c.Lang
}

// NewSurface renders the shell and parses it into a display surface.
func NewSurface(ctx context.Context, cfg Config) (*dom.Surface, error) {
	var buf bytes.Buffer
	if err := Shell(cfg).Render(ctx, &buf); err != nil {
		return nil, err
	}
	return dom.Parse(&buf)
}

const baseCSS = `
body { font-family: system-ui, sans-serif; margin: 0; display: grid; grid-template-columns: 16rem 1fr; grid-template-rows: auto 1fr; color: #1f2933; background: #fff; }
header { grid-column: 1 / -1; display: flex; justify-content: space-between; align-items: center; padding: .75rem 1.5rem; border-bottom: 1px solid #e4e7eb; }
nav { padding: 1rem; border-right: 1px solid #e4e7eb; }
nav ul { list-style: none; padding: 0; }
main { padding: 1.5rem 2rem; max-width: 60rem; }
.lesson { border: 1px solid #e4e7eb; border-radius: 6px; padding: 1rem; margin: 1rem 0; }
.lesson-header { display: flex; justify-content: space-between; align-items: center; }
body.dark-mode { color: #e4e7eb; background: #1f2933; }
body.dark-mode .lesson, body.dark-mode header, body.dark-mode nav { border-color: #3e4c59; }
`

// The server owns the surface; the browser only forwards interactions and
// re-fetches what changed.
const clientJS = `
(function () {
  function post(url, body) {
    return fetch(url, {method: 'POST', headers: {'Content-Type': 'application/json'}, body: body ? JSON.stringify(body) : null});
  }
  function refreshContent() {
    fetch('/content').then(function (r) { return r.text(); }).then(function (html) {
      document.getElementById('content-area').innerHTML = html;
    });
  }
  document.addEventListener('click', function (e) {
    var link = e.target.closest('.module-link');
    if (link) {
      e.preventDefault();
      post('/modules/' + encodeURIComponent(link.dataset.module));
      return;
    }
    if (e.target.id === 'theme-toggle') {
      post('/api/theme/toggle');
    }
  });
  document.addEventListener('change', function (e) {
    if (!e.target.classList.contains('lesson-completed')) { return; }
    var m = /^(.*)_lesson_(\d+)$/.exec(e.target.dataset.key);
    if (m) { post('/api/progress/' + encodeURIComponent(m[1]) + '/' + m[2], {completed: e.target.checked}); }
  });
  function connect() {
    var proto = window.location.protocol === 'https:' ? 'wss:' : 'ws:';
    var ws = new WebSocket(proto + '//' + window.location.host + '/ws');
    ws.onmessage = function (event) {
      var msg = JSON.parse(event.data);
      switch (msg.type) {
        case 'content_update':
        case 'progress_update':
          if (msg.content) { document.getElementById('content-area').innerHTML = msg.content; } else { refreshContent(); }
          break;
        case 'theme_update':
          document.body.classList.toggle('dark-mode', msg.content === 'dark');
          document.querySelector('link[href="/static/highlight.css"]').href = '/static/highlight.css?t=' + Date.now();
          break;
      }
    };
    ws.onclose = function () { setTimeout(connect, 2000); };
  }
  connect();
})();
`
