package wikitext

import (
	"fmt"
	"strings"
	"time"

	"github.com/danielledeleo/wikiforge/internal/wikitext/namespace"
	"github.com/danielledeleo/wikiforge/internal/wikitext/parserfn"
)

// maxRecursionDepth is spec.md §4.5's hard recursion-depth limit.
const maxRecursionDepth = 100

// Flags selects which parts of expansion run, per spec.md §4.5.
type Flags struct {
	// PreOnly restricts template substitution to templates C8 flagged
	// needs_pre_expand; everything else is left as an unresolved cookie
	// for the structural parser to see literally.
	PreOnly bool

	DisableParserFns bool
	DisableScripts   bool

	// QuietUndefined suppresses the {{{name}}} literal fallback and any
	// warning for an argument reference with no value and no default,
	// emitting an empty string instead.
	QuietUndefined bool

	// Deadline, if non-zero, is a hard wall-clock limit past which
	// script invocations abort (spec.md §4.7's cooperative timeout).
	Deadline time.Time
}

// Engine is the Expansion Engine (C5): it owns no per-page state of its
// own (that lives on *Page) and can be shared across workers.
type Engine struct {
	Store      PageSource
	Scripts    ScriptHost
	Namespaces *namespace.Table

	// FirstLetterCaseSensitive mirrors config.Project's namespace-casing
	// policy, consulted by template-name canonicalization.
	FirstLetterCaseSensitive bool

	// InterwikiURL maps a configured interwiki prefix to its URL
	// template, for parserfn's fullurl/localurl.
	InterwikiURL func(prefix string) (string, bool)

	// TemplateFn, if set, is consulted before store lookup for every
	// plain template invocation; returning ok=true substitutes its text
	// directly and skips the store entirely.
	TemplateFn func(canonicalName string, args []ArgPair) (string, bool)

	// PostTemplateFn, if set, can rewrite a template's expansion result
	// after the fact (observation or override).
	PostTemplateFn func(canonicalName string, args []ArgPair, expanded string) (string, bool)
}

// expandState threads the recursion-depth counter, template-title chain
// (for loop detection), current frame, and flags through one expand
// call tree. Expansion itself recurses through ordinary Go calls; depth
// is what bounds that recursion, and chain is the title stack used for
// loop detection.
type expandState struct {
	depth int
	chain []string
	frame *Frame
	flags Flags
}

func (s *expandState) onChain(title string) bool {
	for _, t := range s.chain {
		if t == title {
			return true
		}
	}
	return false
}

func (s *expandState) push(title string, frame *Frame) *expandState {
	chain := make([]string, len(s.chain), len(s.chain)+1)
	copy(chain, s.chain)
	chain = append(chain, title)
	return &expandState{depth: s.depth + 1, chain: chain, frame: frame, flags: s.flags}
}

// Expand is the engine's entry point: expand(text, parent?, flags) →
// text from spec.md §4.5.
func (e *Engine) Expand(p *Page, text string, parent *Frame, flags Flags) string {
	state := &expandState{frame: parent, flags: flags}
	return e.expandText(p, text, state)
}

// expandText walks text rune by rune; a rune in the cookie range is
// resolved via expandCookie, MAGIC_NOWIKI and ordinary characters pass
// through unchanged (outside-in expansion only ever touches cookies).
func (e *Engine) expandText(p *Page, text string, state *expandState) string {
	var b strings.Builder
	for _, r := range text {
		if r >= MagicFirst && r <= MagicLast {
			cookie, ok := p.CookieAt(r)
			if !ok {
				b.WriteRune(r)
				continue
			}
			b.WriteString(e.expandCookie(p, r, cookie, state))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (e *Engine) expandCookie(p *Page, r rune, c Cookie, state *expandState) string {
	if c.Nowiki {
		return NowikiQuote(c.Args[0])
	}

	switch c.Kind {
	case CookieNowiki:
		return NowikiQuote(c.Args[0])
	case CookieArg:
		return e.expandArgRef(p, r, c, state)
	case CookieLink:
		return e.expandBracketed(p, c, state, "[[", "]]")
	case CookieExtLink:
		return e.expandBracketed(p, c, state, "[", "]")
	case CookieTemplate:
		return e.expandTemplateCookie(p, r, c, state)
	default:
		return string(r)
	}
}

func (e *Engine) expandArgRef(p *Page, r rune, c Cookie, state *expandState) string {
	if state.frame == nil {
		// No enclosing template: spec.md §4.5 says emit the original
		// unexpanded form; the finalizer does exactly that for any
		// cookie nobody resolved, so leave it as-is.
		return string(r)
	}

	name := strings.TrimSpace(e.expandText(p, c.Args[0], state))
	if v, ok := state.frame.Get(name); ok {
		return v
	}
	if len(c.Args) >= 2 {
		return e.expandText(p, c.Args[1], state)
	}
	if state.flags.QuietUndefined {
		return ""
	}
	return "{{{" + name + "}}}"
}

func (e *Engine) expandBracketed(p *Page, c Cookie, state *expandState, open, close string) string {
	parts := make([]string, len(c.Args))
	for i, a := range c.Args {
		parts[i] = e.expandText(p, a, state)
	}
	return open + strings.Join(parts, "|") + close
}

// expandTemplateCookie is the Template (T) case: subst-prefix stripping,
// parser-function / #invoke dispatch, then ordinary template expansion.
func (e *Engine) expandTemplateCookie(p *Page, r rune, c Cookie, state *expandState) string {
	rawName := e.expandText(p, c.Args[0], state)
	name := stripSubstPrefix(rawName)
	rest := c.Args[1:]

	if fnName, fnArgs, ok := splitParserFnCall(name, rest); ok {
		lower := strings.ToLower(fnName)

		if lower == "invoke" && !state.flags.DisableScripts {
			return e.expandInvoke(p, fnArgs, state)
		}

		if !state.flags.DisableParserFns {
			if _, known := parserfn.Lookup(fnName); known {
				return e.dispatchParserFn(p, fnName, fnArgs, state)
			}
		}
	}

	return e.expandTemplateCall(p, r, name, rest, state)
}

// stripSubstPrefix removes a leading "subst:" or "safesubst:" token,
// which this offline engine treats as a no-op transclusion marker.
func stripSubstPrefix(name string) string {
	trimmed := strings.TrimSpace(name)
	lower := strings.ToLower(trimmed)
	switch {
	case strings.HasPrefix(lower, "safesubst:"):
		return strings.TrimSpace(trimmed[len("safesubst:"):])
	case strings.HasPrefix(lower, "subst:"):
		return strings.TrimSpace(trimmed[len("subst:"):])
	default:
		return trimmed
	}
}

// splitParserFnCall recognizes spec.md §4.5/§4.6's parser-function call
// shapes: "prefix:remainder" (the common case, remainder becomes the
// first positional argument) or a bare name with no colon (magic-word
// style). It does not itself check whether prefix is a *known* function;
// callers do that and fall back to template lookup on a miss.
func splitParserFnCall(name string, rest []string) (fnName string, args []string, ok bool) {
	if idx := strings.Index(name, ":"); idx >= 0 {
		prefix := strings.TrimSpace(strings.TrimPrefix(name[:idx], "#"))
		remainder := strings.TrimLeft(name[idx+1:], " \t")
		return prefix, append([]string{remainder}, rest...), true
	}
	bare := strings.TrimSpace(strings.TrimPrefix(name, "#"))
	return bare, rest, true
}

func (e *Engine) dispatchParserFn(p *Page, name string, rawArgs []string, state *expandState) string {
	ctx := &parserfn.Context{
		Title:      p.Title,
		Namespaces: e.Namespaces,
		Diag:       &p.Diag,
		PageExists: func(title string) bool {
			return e.Store != nil && e.Store.PageExists(title)
		},
		SectionText: func(title, section string) (string, bool) {
			if e.Store == nil {
				return "", false
			}
			return e.Store.SectionText(title, section)
		},
		InterwikiURL: e.InterwikiURL,
		Now: func() int64 {
			if state.flags.Deadline.IsZero() {
				return time.Now().Unix()
			}
			return state.flags.Deadline.Unix()
		},
		Expand: func(s string) string { return e.expandText(p, s, state) },
	}

	args := rawArgs
	if !parserfn.NeedsRawArgs(name) {
		args = make([]string, len(rawArgs))
		for i, a := range rawArgs {
			args[i] = e.expandText(p, a, state)
		}
	}

	result, _ := parserfn.Dispatch(ctx, name, args)
	return result
}

// expandTemplateCall is the ordinary (non-parser-function) Template
// case: canonicalize, apply hooks, look up the body, detect loops and
// depth, push a frame, and recurse.
func (e *Engine) expandTemplateCall(p *Page, r rune, rawName string, rawArgs []string, state *expandState) string {
	canonical := CanonicalizeTemplateName(rawName, e.FirstLetterCaseSensitive)

	frame := NewFrame(canonical, state.frame)
	positional := 0
	for _, a := range rawArgs {
		value := e.expandText(p, a, state)
		if k, v, ok := splitNamedArg(a); ok {
			frame.Set(k, e.expandText(p, v, state))
			continue
		}
		positional++
		frame.SetPositional(positional, value)
	}

	if e.TemplateFn != nil {
		if text, ok := e.TemplateFn(canonical, frame.Pairs()); ok {
			return e.applyPostTemplateFn(canonical, frame, text)
		}
	}

	if e.Store == nil {
		return e.applyPostTemplateFn(canonical, frame, missingTemplateMarker(canonical))
	}

	body, needsPreExpand, ok := e.Store.TemplateLookup(canonical)
	if !ok {
		p.Diag.Errorf("undefined template %q", canonical)
		return e.applyPostTemplateFn(canonical, frame, missingTemplateMarker(canonical))
	}

	if state.flags.PreOnly && !needsPreExpand {
		// Pre-expand-only passes leave anything C8 didn't flag as a
		// structural risk untouched, as an unresolved cookie — the
		// finalizer (or a later full pass) turns it back into text.
		return string(r)
	}

	if state.onChain(canonical) {
		p.Diag.Errorf("template loop detected: %s", canonical)
		return fmt.Sprintf(`<strong class="error">Template loop detected: [[:Template:%s]]</strong>`, canonical)
	}
	if state.depth >= maxRecursionDepth {
		p.Diag.Errorf("recursion depth exceeded expanding %q", canonical)
		return `<strong class="error">Expansion depth limit exceeded</strong>`
	}

	childState := state.push(canonical, frame)
	encodedBody := p.Encode(p.Preprocess(PrepareTemplateBody(body)))
	result := e.expandText(p, encodedBody, childState)

	return e.applyPostTemplateFn(canonical, frame, result)
}

func (e *Engine) applyPostTemplateFn(canonical string, frame *Frame, text string) string {
	if e.PostTemplateFn != nil {
		if override, ok := e.PostTemplateFn(canonical, frame.Pairs(), text); ok {
			return override
		}
	}
	return text
}

func missingTemplateMarker(canonical string) string {
	return fmt.Sprintf(`<strong class="error">Template:%s</strong>`, canonical)
}

// splitNamedArg recognizes "k=v" template-argument syntax; k is
// whitespace-trimmed on both sides. A bare positional argument (no
// top-level "=") reports ok=false.
func splitNamedArg(raw string) (key, value string, ok bool) {
	idx := strings.Index(raw, "=")
	if idx < 0 {
		return "", "", false
	}
	return strings.TrimSpace(raw[:idx]), raw[idx+1:], true
}

// expandInvoke implements #invoke:module|function|args... (spec.md
// §4.7's Invocation steps): build the child frame, call the script
// host, and translate its error modes into diagnostics.
func (e *Engine) expandInvoke(p *Page, args []string, state *expandState) string {
	module := strings.TrimSpace(e.expandText(p, arg0(args), state))
	function := strings.TrimSpace(e.expandText(p, arg1(args), state))

	if e.Scripts == nil {
		p.Diag.Errorf("script invocation requested but no script host is configured")
		return ""
	}

	frame := NewFrame(module+":"+function, state.frame)
	positional := 0
	for _, a := range argsFrom(args, 2) {
		if k, v, ok := splitNamedArg(a); ok {
			frame.Set(k, e.expandText(p, v, state))
			continue
		}
		positional++
		frame.SetPositional(positional, e.expandText(p, a, state))
	}

	bridge := &engineBridge{engine: e, page: p, state: state}
	req := ScriptRequest{
		Module: module, Function: function,
		Frame: frame, Parent: state.frame,
		Title: p.Title, Deadline: state.flags.Deadline,
		Bridge: bridge,
	}

	text, err := e.Scripts.Invoke(req)
	if err == nil {
		return text
	}

	if uerr, ok := asUserError(err); ok {
		p.Diag.Warnf("script %s:%s: %s", module, function, uerr.Message)
		return ""
	}
	if _, ok := asTimeoutError(err); ok {
		p.Diag.Errorf("script %s:%s timed out", module, function)
		return fmt.Sprintf(`<strong class="error">Timeout in %s:%s</strong>`, module, function)
	}
	p.Diag.Errorf("script %s:%s: %s", module, function, err)
	return ""
}

func asUserError(err error) (*ScriptUserError, bool) {
	if u, ok := err.(*ScriptUserError); ok {
		return u, true
	}
	return nil, false
}

func asTimeoutError(err error) (*ScriptTimeoutError, bool) {
	if t, ok := err.(*ScriptTimeoutError); ok {
		return t, true
	}
	return nil, false
}

func arg0(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return ""
}
func arg1(args []string) string {
	if len(args) > 1 {
		return args[1]
	}
	return ""
}
func argsFrom(args []string, n int) []string {
	if n >= len(args) {
		return nil
	}
	return args[n:]
}

// engineBridge implements ScriptBridge for one #invoke call, scoped to
// the page and expandState it was constructed from.
type engineBridge struct {
	engine *Engine
	page   *Page
	state  *expandState
}

func (b *engineBridge) Preprocess(text string, frame *Frame) string {
	encoded := b.page.Encode(b.page.Preprocess(text))
	s := &expandState{depth: b.state.depth, chain: b.state.chain, frame: frame, flags: b.state.flags}
	return b.engine.expandText(b.page, encoded, s)
}

func (b *engineBridge) ExpandTemplate(title string, args []ArgPair, frame *Frame) string {
	rawArgs := make([]string, len(args))
	for i, a := range args {
		rawArgs[i] = a.Key + "=" + a.Value
	}
	return b.engine.expandTemplateCall(b.page, 0, title, rawArgs, &expandState{
		depth: b.state.depth, chain: b.state.chain, frame: frame, flags: b.state.flags,
	})
}

func (b *engineBridge) CallParserFunction(name string, args []string, frame *Frame) (string, bool) {
	if _, ok := parserfn.Lookup(name); !ok {
		return "", false
	}
	s := &expandState{depth: b.state.depth, chain: b.state.chain, frame: frame, flags: b.state.flags}
	return b.engine.dispatchParserFn(b.page, name, args, s), true
}

func (b *engineBridge) ExtensionTag(name, content string, attrs map[string]string) string {
	args := []string{name, content}
	for k, v := range attrs {
		args = append(args, k+"="+v)
	}
	ctx := &parserfn.Context{Title: b.page.Title, Namespaces: b.engine.Namespaces, Diag: &b.page.Diag}
	result, _ := parserfn.Dispatch(ctx, "tag", args)
	return result
}
