// Package analyzer implements the template analyzer (spec.md §4.8):
// for every stored template body, decide whether transcluding it can
// hand the structural parser a token it needs to see at top level (a
// list item, a bare table row/header, an unbalanced HTML tag), and
// propagate that flag transitively through the transclusion graph.
package analyzer

import (
	"regexp"
	"strings"
)

var (
	pairedTableRe = regexp.MustCompile(`(?s)\{\|.*?\|\}`)
	argCallRe     = regexp.MustCompile(`\{\{\{[^{}]*\}\}\}`)
	templateCallRe = regexp.MustCompile(`\{\{([^{}]*)\}\}`)

	listPrefixRe  = regexp.MustCompile(`(?m)^[ \t]*[*#;:]`)
	tableTokenRe  = regexp.MustCompile(`(?m)^[ \t]*(\|-|\|\+|!)`)
	unpairedTable = regexp.MustCompile(`\{\||\|\}`)

	htmlTagRe = regexp.MustCompile(`</?([A-Za-z][A-Za-z0-9]*)[^<>]*?(/?)>`)
)

// Result is one template's analysis outcome.
type Result struct {
	NeedsPreExpand bool
	Transcludes    []string // canonical names of templates this one calls
}

// stripInnerConstructs removes paired tables and nested
// template/argument calls to a fixed point, collecting every
// transcluded template's first (title) segment along the way — each
// occurrence, nested or outer, is a genuine transclusion of that body.
func stripInnerConstructs(body string, canonicalize func(string) string) (string, []string) {
	var transcludes []string
	text := body

	for {
		changed := false

		if pairedTableRe.MatchString(text) {
			text = pairedTableRe.ReplaceAllString(text, "")
			changed = true
		}
		if argCallRe.MatchString(text) {
			text = argCallRe.ReplaceAllString(text, "")
			changed = true
		}
		if matches := templateCallRe.FindAllStringSubmatch(text, -1); len(matches) > 0 {
			for _, m := range matches {
				inner := m[1]
				title := inner
				if i := strings.IndexByte(inner, '|'); i >= 0 {
					title = inner[:i]
				}
				title = strings.TrimSpace(title)
				if title != "" && !strings.HasPrefix(title, "#") {
					transcludes = append(transcludes, canonicalize(title))
				}
			}
			text = templateCallRe.ReplaceAllString(text, "")
			changed = true
		}

		if !changed {
			break
		}
	}

	return text, transcludes
}

// hasUnbalancedHTML reports whether any tag name in text has a
// different number of open and close occurrences; self-closing tags
// (trailing "/>") count toward neither side.
func hasUnbalancedHTML(text string) bool {
	counts := map[string]int{}
	for _, m := range htmlTagRe.FindAllStringSubmatch(text, -1) {
		if m[2] == "/" {
			continue // self-closing: <br/>
		}
		name := strings.ToLower(m[1])
		if strings.HasPrefix(m[0], "</") {
			counts[name]--
		} else {
			counts[name]++
		}
	}
	for _, n := range counts {
		if n != 0 {
			return true
		}
	}
	return false
}

// classifyBody decides needs_pre_expand for one already-stripped body
// (spec.md §4.8's four conditions on "the remaining outside text").
func classifyBody(remaining string) bool {
	if listPrefixRe.MatchString(remaining) {
		return true
	}
	if unpairedTable.MatchString(remaining) {
		return true
	}
	if tableTokenRe.MatchString(remaining) {
		return true
	}
	if hasUnbalancedHTML(remaining) {
		return true
	}
	return false
}

// AnalyzeBody classifies a single template body in isolation (no
// transitive propagation), returning its own flag and the canonical
// names of the templates it transcludes.
func AnalyzeBody(body string, canonicalize func(string) string) Result {
	remaining, transcludes := stripInnerConstructs(body, canonicalize)
	return Result{NeedsPreExpand: classifyBody(remaining), Transcludes: transcludes}
}

// Analyze runs spec.md §4.8's fixed-point transitive pass over every
// template body in bodies (canonical name -> wikitext), following
// redirects (canonical name -> redirect target's canonical name) so a
// redirect inherits its target's flag, and returns the final
// needs_pre_expand set.
func Analyze(bodies map[string]string, redirects map[string]string, canonicalize func(string) string) map[string]bool {
	flags := make(map[string]bool, len(bodies))
	transcludesOf := make(map[string][]string, len(bodies))

	for name, body := range bodies {
		r := AnalyzeBody(body, canonicalize)
		flags[name] = r.NeedsPreExpand
		transcludesOf[name] = r.Transcludes
	}

	for {
		changed := false
		for name, calls := range transcludesOf {
			if flags[name] {
				continue
			}
			for _, callee := range calls {
				target := resolveRedirect(callee, redirects)
				if flags[target] {
					flags[name] = true
					changed = true
					break
				}
			}
		}
		if !changed {
			break
		}
	}

	for name, target := range redirects {
		resolved := resolveRedirect(target, redirects)
		flags[name] = flags[resolved]
	}

	return flags
}

// resolveRedirect follows a redirect chain through the map to its
// terminal target, stopping when it revisits a name (a cyclic chain).
// Unlike the page store's resolver, which goes exactly one hop, this one
// follows every hop.
func resolveRedirect(name string, redirects map[string]string) string {
	seen := map[string]bool{}
	for {
		target, ok := redirects[name]
		if !ok || seen[name] {
			return name
		}
		seen[name] = true
		name = target
	}
}
