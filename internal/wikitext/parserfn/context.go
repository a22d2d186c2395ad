// Package parserfn implements the parser-function library: the set of
// pure, spec-defined `{{#name:...}}` and magic-word functions a template
// expansion can dispatch into. Each function maps (args, expand-callback)
// to a result string; none of them touch cookies, frames, or the page
// store directly, so this package has no dependency on internal/wikitext
// and is called back into from there (grounded on the teacher's
// extensions/ pattern of small, independently testable leaf packages).
package parserfn

import (
	"strings"

	"github.com/danielledeleo/wikiforge/internal/wikitext/namespace"
)

// Diag is the subset of wikitext.Diagnostics a parser function needs to
// report a non-fatal problem. Satisfied structurally so this package
// never imports internal/wikitext.
type Diag interface {
	Debugf(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// Context carries everything a parser function needs beyond its own
// argument list: a way to recursively expand wikitext against the
// calling frame, title/namespace services, page existence and
// section-text lookups for #ifexist/#lst, a diagnostics sink, and the
// "now" timestamp (injected rather than read from the clock so dump
// replays are reproducible).
type Context struct {
	// Expand recursively expands a wikitext fragment (cookie-encoding
	// it first) against the frame the calling template is using.
	Expand func(text string) string

	// Title is the full page name currently being expanded.
	Title string

	Namespaces *namespace.Table

	// PageExists reports whether a page by that title is in the store.
	PageExists func(title string) bool

	// SectionText returns the concatenated text between
	// <section begin=NAME/> and <section end=NAME/> markers in the
	// named page, for #lst.
	SectionText func(title, section string) (string, bool)

	// InterwikiURL maps a project-configured interwiki prefix to its
	// URL template ("$1" is replaced with the page name); ok is false
	// for an unrecognized prefix.
	InterwikiURL func(prefix string) (tmpl string, ok bool)

	// Now is the timestamp #time treats as "now"; callers inject a
	// fixed value for reproducible dump replays.
	Now func() (unixSeconds int64)

	Diag Diag
}

// Func is one parser function's implementation.
type Func func(ctx *Context, args []string) string

// registry maps the canonical (lower-cased) function name to its
// implementation. Populated by each family file's init().
var registry = map[string]Func{}

// register adds fn under name (and is called once per family file).
func register(name string, fn Func) {
	registry[strings.ToLower(name)] = fn
}

// Lookup reports whether name (case-insensitive) is a known parser
// function and returns its implementation.
func Lookup(name string) (Func, bool) {
	fn, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	return fn, ok
}

// Dispatch runs the named parser function, or reports !ok if name isn't
// recognized (the caller falls back to ordinary template lookup).
func Dispatch(ctx *Context, name string, args []string) (string, bool) {
	fn, ok := Lookup(name)
	if !ok {
		return "", false
	}
	return fn(ctx, args), true
}

// arg returns args[i] or def if out of range, matching parser functions'
// permissive "missing trailing argument" behavior.
func arg(args []string, i int, def string) string {
	if i < 0 || i >= len(args) {
		return def
	}
	return args[i]
}

func trimmedArg(args []string, i int, def string) string {
	return strings.TrimSpace(arg(args, i, def))
}
