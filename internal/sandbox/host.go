// Package sandbox names the narrow trait spec.md §9 describes for the
// embedded-script collaborator ("any embeddable runtime satisfying the
// trait can plug in"). The trait itself is internal/wikitext.ScriptHost
// — this package re-exports it under sandbox.* names. No other package
// of the module imports it: internal/sandbox/lua implements
// wikitext.ScriptHost directly, and internal/wikitext never has to know a
// concrete runtime exists.
package sandbox

import "github.com/danielledeleo/wikiforge/internal/wikitext"

// Host is the script-runtime trait: construct a frame, run module.function,
// and return its text or an error.
type Host = wikitext.ScriptHost

// Request carries one #invoke call's module/function/frame/deadline.
type Request = wikitext.ScriptRequest

// Bridge is the frame-API surface a script invocation calls back into.
type Bridge = wikitext.ScriptBridge

// UserError and TimeoutError are the two error shapes a Host can return
// that the engine treats specially (spec.md §4.7's error handling).
type UserError = wikitext.ScriptUserError
type TimeoutError = wikitext.ScriptTimeoutError

// ModuleLoader resolves a module name to Lua (or other runtime) source:
// either a bundled standard-library file or a page fetched from the
// store's script-module pages. ok is false when no such module exists.
type ModuleLoader func(name string) (source string, ok bool)
