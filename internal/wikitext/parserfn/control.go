package parserfn

import "strings"

// rawArgFunctions are the parser functions that receive their arguments
// unexpanded: each decides for itself, via ctx.Expand, which branch
// actually needs evaluating (MediaWiki's Parser.php registers exactly
// this set with its SFH_OBJECT_ARGS flag; everyone else gets plain,
// already-expanded string args).
var rawArgFunctions = map[string]bool{
	"if": true, "ifeq": true, "iferror": true,
	"ifexpr": true, "ifexist": true, "switch": true,
}

// NeedsRawArgs reports whether name must receive unexpanded sub-args
// (laziness: the caller should NOT pre-expand every sub-arg before
// dispatch, since an untaken branch must never be evaluated).
func NeedsRawArgs(name string) bool {
	return rawArgFunctions[strings.ToLower(strings.TrimSpace(name))]
}

func init() {
	register("if", pfIf)
	register("ifeq", pfIfeq)
	register("iferror", pfIferror)
	register("ifexpr", pfIfexpr)
	register("ifexist", pfIfexist)
	register("switch", pfSwitch)
}

func expandOf(ctx *Context, s string) string {
	if ctx.Expand == nil {
		return s
	}
	return ctx.Expand(s)
}

// pfIf implements #if: condition|then|else. Only the condition and the
// winning branch are ever expanded.
func pfIf(ctx *Context, args []string) string {
	cond := strings.TrimSpace(expandOf(ctx, arg(args, 0, "")))
	if cond != "" {
		return expandOf(ctx, arg(args, 1, ""))
	}
	return expandOf(ctx, arg(args, 2, ""))
}

func pfIfeq(ctx *Context, args []string) string {
	a := strings.TrimSpace(expandOf(ctx, arg(args, 0, "")))
	b := strings.TrimSpace(expandOf(ctx, arg(args, 1, "")))
	if a == b {
		return expandOf(ctx, arg(args, 2, ""))
	}
	return expandOf(ctx, arg(args, 3, ""))
}

// isErrorMarker reports whether text looks like a MediaWiki error
// marker, i.e. it contains a `class="error"` span, which is how #iferror
// detects an upstream failure.
func isErrorMarker(text string) bool {
	return strings.Contains(text, `class="error"`)
}

func pfIferror(ctx *Context, args []string) string {
	test := expandOf(ctx, arg(args, 0, ""))
	if isErrorMarker(test) {
		return expandOf(ctx, arg(args, 1, ""))
	}
	if len(args) >= 3 {
		return expandOf(ctx, arg(args, 2, ""))
	}
	return test
}

func pfIfexpr(ctx *Context, args []string) string {
	result, err := evalExpr(expandOf(ctx, arg(args, 0, "")))
	if err != nil {
		return errMarker(err)
	}
	if result.v != 0 {
		return expandOf(ctx, arg(args, 1, ""))
	}
	return expandOf(ctx, arg(args, 2, ""))
}

func pfIfexist(ctx *Context, args []string) string {
	title := strings.TrimSpace(expandOf(ctx, arg(args, 0, "")))
	exists := ctx.PageExists != nil && ctx.PageExists(title)
	if exists {
		return expandOf(ctx, arg(args, 1, ""))
	}
	return expandOf(ctx, arg(args, 2, ""))
}

// pfSwitch implements #switch: subject | case1=result1 | case2=result2 |
// ... | #default=resultN. A bare case (no "=") is remembered and its
// value returned once a later case matches ("fall-through"); the last
// bare/unlabeled arg with no following match is the implicit default
// when nothing else matches. Case labels are expanded for comparison;
// only the winning result is ever expanded.
func pfSwitch(ctx *Context, args []string) string {
	if len(args) == 0 {
		return ""
	}
	subject := strings.TrimSpace(expandOf(ctx, args[0]))

	var (
		defaultVal   string
		haveDefault  bool
		pendingFall  []string
		implicitLast string
		haveImplicit bool
	)

	for _, raw := range args[1:] {
		eq := strings.Index(raw, "=")
		if eq < 0 {
			label := strings.TrimSpace(expandOf(ctx, raw))
			pendingFall = append(pendingFall, label)
			implicitLast = raw
			haveImplicit = true
			continue
		}

		label := strings.TrimSpace(expandOf(ctx, raw[:eq]))
		value := raw[eq+1:]
		haveImplicit = false

		if label == "#default" {
			defaultVal = value
			haveDefault = true
			continue
		}

		if label == subject {
			return expandOf(ctx, value)
		}
		for _, pending := range pendingFall {
			if pending == subject {
				return expandOf(ctx, value)
			}
		}
		pendingFall = pendingFall[:0]
	}

	if haveDefault {
		return expandOf(ctx, defaultVal)
	}
	if haveImplicit {
		return expandOf(ctx, implicitLast)
	}
	return ""
}
