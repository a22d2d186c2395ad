package parse

import (
	"regexp"
	"strings"

	"golang.org/x/net/html/atom"

	"github.com/danielledeleo/wikiforge/internal/wikitext/node"
)

// permittedNames is spec.md §4.9's closed allow-list of HTML(-like) tags
// the parser will turn into HTML nodes; anything else is kept as
// literal text with a DEBUG note. Most of these are standard HTML tags,
// interned through golang.org/x/net/html/atom below so the parenting
// table can do integer comparisons — the same technique
// render/renderer.go's atom-keyed switch over *html.Node.Data uses for
// HTML tree walking. A few (nowiki, ref, references, gallery) are
// wiki-only extension tags with no HTML5 atom and are matched by name.
var permittedNames = map[string]bool{
	"b": true, "i": true, "u": true, "s": true, "strike": true,
	"sup": true, "sub": true, "small": true, "big": true,
	"tt": true, "code": true, "pre": true, "nowiki": true,
	"br": true, "hr": true, "span": true, "div": true,
	"p": true, "center": true, "blockquote": true,
	"ul": true, "ol": true, "li": true, "dl": true, "dt": true, "dd": true,
	"table": true, "tr": true, "td": true, "th": true,
	"caption": true, "thead": true, "tbody": true, "tfoot": true,
	"ref": true, "references": true, "gallery": true,
	"abbr": true, "cite": true, "q": true, "font": true,
}

// selfClosing is the subset of permitted tags that never take children
// (spec.md §4.9's "self-closing" HTML token shape).
var selfClosing = map[string]bool{"br": true, "hr": true}

// permittedParents restricts where a standard structural tag may nest
// without triggering an implicit-close warning; an entry absent from
// this table (including every wiki-only extension tag) means "any
// parent is fine". Keyed by atom.Atom since every tag here has one.
var permittedParents = map[atom.Atom]map[atom.Atom]bool{
	atom.Li:      {atom.Ul: true, atom.Ol: true},
	atom.Dt:      {atom.Dl: true},
	atom.Dd:      {atom.Dl: true},
	atom.Tr:      {atom.Table: true, atom.Thead: true, atom.Tbody: true, atom.Tfoot: true},
	atom.Td:      {atom.Tr: true},
	atom.Th:      {atom.Tr: true},
	atom.Caption: {atom.Table: true},
	atom.Thead:   {atom.Table: true},
	atom.Tbody:   {atom.Table: true},
	atom.Tfoot:   {atom.Table: true},
}

var htmlTagTokenRe = regexp.MustCompile(`(?i)^</?([a-z][a-z0-9]*)((?:\s+[^<>]*?)?)\s*(/?)>`)

// htmlToken is one recognized HTML-like token in the inline stream.
type htmlToken struct {
	name       string
	closing    bool
	selfClose  bool
	attrs      map[string]string
	raw        string
	matchedLen int
}

// matchHTMLTag tries to recognize an HTML tag token at the start of s,
// returning ok=false (leaving s untouched) when nothing matches or the
// tag name is not on the allow-list.
func matchHTMLTag(s string) (htmlToken, bool) {
	m := htmlTagTokenRe.FindStringSubmatchIndex(s)
	if m == nil {
		return htmlToken{}, false
	}
	name := strings.ToLower(s[m[2]:m[3]])
	if !permittedNames[name] {
		return htmlToken{}, false
	}
	raw := s[m[0]:m[1]]
	tok := htmlToken{
		name:       name,
		closing:    strings.HasPrefix(raw, "</"),
		selfClose:  (m[6] >= 0 && s[m[6]:m[7]] == "/") || selfClosing[name],
		raw:        raw,
		matchedLen: m[1] - m[0],
	}
	if m[4] >= 0 && m[5] > m[4] {
		tok.attrs = parseAttrs(s[m[4]:m[5]])
	}
	return tok, true
}

var attrRe = regexp.MustCompile(`([a-zA-Z][\w-]*)\s*=\s*("([^"]*)"|'([^']*)'|(\S+))`)

// parseAttrs parses a simple key="value" attribute list; this is also
// reused by the table-cell attribute heuristic (spec.md §4.9's "first
// segment of a |attr|content cell is parsed as HTML attributes when it
// syntactically looks like one").
func parseAttrs(s string) map[string]string {
	out := map[string]string{}
	for _, m := range attrRe.FindAllStringSubmatch(s, -1) {
		key := strings.ToLower(m[1])
		val := m[3]
		if val == "" {
			val = m[4]
		}
		if val == "" {
			val = m[5]
		}
		out[key] = val
	}
	return out
}

// looksLikeAttrs is the heuristic spec.md §4.9 calls for: a cell's
// leading "|attr|content" segment is treated as attributes only if it
// contains at least one key="value" pair and no raw '<'/'>' (which would
// suggest it's actual cell content instead).
func looksLikeAttrs(s string) bool {
	if strings.ContainsAny(s, "<>") {
		return false
	}
	return attrRe.MatchString(s)
}

// parentAllowed reports whether child may nest directly under parent.
// Tags with no permittedParents entry (every inline tag, plus every
// wiki-only extension tag) have no restriction.
func parentAllowed(parentName, childName string) bool {
	childAtom := atom.Lookup([]byte(childName))
	allowed, restricted := permittedParents[childAtom]
	if !restricted {
		return true
	}
	return allowed[atom.Lookup([]byte(parentName))]
}

// htmlKindForName maps an allow-listed tag to its node.Kind; structural
// tags (lists, tables) reuse the dedicated kinds the list/table builders
// already produce so downstream serializers don't need a second code
// path, and everything else becomes a generic node.HTML with the tag
// name kept in Args[0].
func htmlKindForName(name string) node.Kind {
	switch name {
	case "table":
		return node.Table
	case "caption":
		return node.TableCaption
	case "tr":
		return node.TableRow
	case "th":
		return node.TableHeaderCell
	case "td":
		return node.TableCell
	case "ul", "ol", "dl":
		return node.List
	case "li", "dt", "dd":
		return node.ListItem
	default:
		return node.HTML
	}
}
