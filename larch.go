/*
Package larch holds application level constants and shared resources for the
larch benchmark history service.
*/
package larch

const (
	ShortDateFormat = "2006-01-02T15:04"

	// DefaultDocumentPath is where the chart frontend expects the
	// benchmark document when it is published with the site.
	DefaultDocumentPath = "dev/bench/data.js"
)

// BuildRevision stores the commit in the git repository at build time and is
// specified with -ldflags at build time.
var BuildRevision = ""
