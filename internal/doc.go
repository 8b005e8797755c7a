// Package internal contains the implementation packages for courseview.
//
// # Package Organization
//
//   - registry: the fixed catalog of course modules and course manifests
//   - navigation: the two module lists and the single active link
//   - content: retrieving module markdown from disk or over HTTP
//   - renderer, highlight: markdown to HTML and code coloring
//   - progress: per-lesson completion checkboxes backed by a store
//   - theme: the persisted light/dark preference
//   - store: memory, sqlite and redis key-value persistence
//   - dom, page: the display surface and the page shell it starts from
//   - viewer: the controller tying the above together
//   - server, websocket, watcher: serving the surface with live updates
//   - config, logging, errors, validation, version: ambient plumbing
//
// # Concurrency
//
// The display surface is shared by every request. Writers take the surface
// lock before the viewer's own lock; module loads may overlap and the last
// one to finish wins.
package internal
