// Package web carries the page templates and browser assets compiled into the
// fingrupo binary.
package web

import "embed"

// Templates holds layouts, partials and pages. Page templates define their
// own name as "pages/<file>".
//
//go:embed templates/layouts/*.html templates/partials/*.html templates/pages/*.html
var Templates embed.FS

// Static is served under /static/ with a one hour cache.
//
//go:embed static/css/*.css static/js/*.js
var Static embed.FS
