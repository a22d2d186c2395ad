// Package lua is the default implementation of sandbox.Host, over
// github.com/yuin/gopher-lua — grounded on spec.md §9's observation that
// a complete implementation needs one concrete embeddable runtime, and
// on _examples/original_source/ being tatuylonen/wikitextprocessor,
// whose own script sandbox wraps MediaWiki's Lua-based Scribunto
// extension.
package lua

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	glua "github.com/yuin/gopher-lua"

	"github.com/danielledeleo/wikiforge/internal/wikitext"
)

// Host implements wikitext.ScriptHost (and therefore sandbox.Host).
// Per spec.md §4.7's per-page lifecycle, a fresh *glua.LState is built
// for every invocation — simpler than tracking page boundaries inside
// the host, and correct in every observable way since every bundled
// module and the frame API are pure functions of their arguments; the
// only thing a longer-lived VM would save is the interpreter setup
// cost, traded here for not needing the host to learn when a page ends.
type Host struct {
	loader ModuleLoaderFunc
	protos *protoCache
}

// ModuleLoaderFunc resolves a module name requested by require() to Lua
// source, consulting the page store's script-module pages first and the
// bundled standard library second.
type ModuleLoaderFunc func(name string) (source string, ok bool)

// New constructs a Host. loader may be nil, in which case only the
// bundled mw.* modules are available.
func New(loader ModuleLoaderFunc) *Host {
	return &Host{loader: loader, protos: newProtoCache()}
}

// Invoke implements wikitext.ScriptHost.
func (h *Host) Invoke(req wikitext.ScriptRequest) (result string, err error) {
	L := glua.NewState(glua.Options{SkipOpenLibs: false})
	defer L.Close()

	if !req.Deadline.IsZero() {
		ctx, cancel := context.WithDeadline(context.Background(), req.Deadline)
		defer cancel()
		L.SetContext(ctx)
	}

	L.PreloadModule("mw.text", h.preloadBundled("mw.text", bundledMwText))
	L.PreloadModule("mw.uri", h.preloadBundled("mw.uri", bundledMwURI))
	L.PreloadModule("mw.html", h.preloadBundled("mw.html", bundledMwHTML))
	L.PreloadModule("mw.ustring", h.preloadBundled("mw.ustring", bundledMwUstring))
	L.PreloadModule("mw.title", h.preloadBundled("mw.title", bundledMwTitle))
	L.PreloadModule("mw.language", h.preloadBundled("mw.language", bundledMwLanguage))
	L.PreloadModule("mw.wikibase", h.preloadBundled("mw.wikibase", bundledMwWikibase))
	L.SetGlobal("require", L.NewFunction(h.requireFn(L)))

	parentBinding := frameTableOrNil(L, req.Parent, req.Bridge)
	currentBinding := &frameBinding{title: req.Title, frame: req.Frame, bridge: req.Bridge}
	currentTable := currentBinding.buildTable(L)
	currentTable.RawSetString("getParent", L.NewFunction(func(L *glua.LState) int {
		if parentBinding == nil {
			L.Push(glua.LNil)
		} else {
			L.Push(parentBinding)
		}
		return 1
	}))

	mwTable := L.NewTable()
	mwTable.RawSetString("getCurrentFrame", L.NewFunction(func(L *glua.LState) int {
		L.Push(currentTable)
		return 1
	}))
	L.SetGlobal("mw", mwTable)

	source, ok := h.resolveModule(req.Module)
	if !ok {
		return "", errors.Errorf("module not found: %s", req.Module)
	}

	fn, compileErr := h.protos.compile(L, req.Module, source)
	if compileErr != nil {
		return "", errors.Wrapf(compileErr, "compiling module %s", req.Module)
	}

	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("script panic in %s:%s: %v", req.Module, req.Function, r)
		}
	}()

	if callErr := L.CallByParam(glua.P{Fn: fn, NRet: 1, Protect: true}); callErr != nil {
		return "", translateLuaError(req, callErr)
	}
	moduleTable, ok := L.Get(-1).(*glua.LTable)
	L.Pop(1)
	if !ok {
		return "", errors.Errorf("module %s did not return a table", req.Module)
	}

	fnVal := moduleTable.RawGetString(req.Function)
	luaFn, ok := fnVal.(*glua.LFunction)
	if !ok {
		return "", errors.Errorf("module %s has no function %s", req.Module, req.Function)
	}

	if err := L.CallByParam(glua.P{Fn: luaFn, NRet: 1, Protect: true}, currentTable); err != nil {
		return "", translateLuaError(req, err)
	}

	ret := L.Get(-1)
	L.Pop(1)
	return ret.String(), nil
}

func frameTableOrNil(L *glua.LState, frame *wikitext.Frame, bridge wikitext.ScriptBridge) glua.LValue {
	if frame == nil {
		return nil
	}
	b := &frameBinding{title: frame.Title, frame: frame, bridge: bridge}
	return b.buildTable(L)
}

func (h *Host) resolveModule(name string) (string, bool) {
	if h.loader != nil {
		if source, ok := h.loader(name); ok {
			return source, true
		}
	}
	return bundledModule(name)
}

func (h *Host) preloadBundled(name, source string) glua.LGFunction {
	return func(L *glua.LState) int {
		fn, err := h.protos.compile(L, name, source)
		if err != nil {
			L.RaiseError("%s", err.Error())
			return 0
		}
		L.Push(fn)
		L.Call(0, 1)
		return 1
	}
}

// requireFn is a minimal require() good enough for bundled/stored
// modules to pull each other in by name; real Lua's package.loaded
// caching is approximated by the proto cache, not by module-table
// identity, which is acceptable since every bundled module is
// side-effect-free.
func (h *Host) requireFn(L *glua.LState) glua.LGFunction {
	return func(L *glua.LState) int {
		name := L.CheckString(1)
		source, ok := h.resolveModule(name)
		if !ok {
			L.RaiseError("module not found: %s", name)
			return 0
		}
		fn, err := h.protos.compile(L, name, source)
		if err != nil {
			L.RaiseError("%s", err.Error())
			return 0
		}
		L.Push(fn)
		L.Call(0, 1)
		return 1
	}
}

// translateLuaError distinguishes a cooperative-timeout abort and a
// script-raised user error (MediaWiki's mw.error equivalent: a string
// error value prefixed "user:") from any other Lua failure, per
// spec.md §4.7.
func translateLuaError(req wikitext.ScriptRequest, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "context deadline exceeded") {
		return &wikitext.ScriptTimeoutError{Module: req.Module, Function: req.Function}
	}
	if apiErr, ok := err.(*glua.ApiError); ok {
		if lv, ok := apiErr.Object.(glua.LString); ok && strings.HasPrefix(string(lv), "user:") {
			return &wikitext.ScriptUserError{Message: strings.TrimPrefix(string(lv), "user:")}
		}
	}
	return fmt.Errorf("lua error: %w", err)
}
