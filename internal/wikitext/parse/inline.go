package parse

import (
	"regexp"
	"strings"

	"github.com/danielledeleo/wikiforge/internal/wikitext"
	"github.com/danielledeleo/wikiforge/internal/wikitext/node"
	"github.com/danielledeleo/wikiforge/internal/wikitext/parserfn"
)

var (
	quoteRunRe = regexp.MustCompile(`'{2,}`)
	bareURLRe  = regexp.MustCompile(`^https?://[^\s<>\[\]"]+`)
)

// parseInlineInto pushes dest, runs the inline tokenizer over text as
// dest's content, then pops — for callers (headings, preformatted
// lines, bare paragraph lines) whose destination isn't already the
// current stack top.
func (p *Parser) parseInlineInto(dest *node.Node, text string) {
	p.stack = append(p.stack, dest)
	p.parseInlineLine(text)
	p.stack = p.stack[:len(p.stack)-1]
}

// parseInlineLine tokenizes one line of inline content into p.current(),
// per spec.md §4.9: apostrophe runs, permitted HTML tags, cookie
// codepoints, bare URLs, and plain text. Any bold/italic spans still
// open at end of line are silently closed (the per-line balancing rule).
func (p *Parser) parseInlineLine(text string) {
	s := text
	for len(s) > 0 {
		switch {
		case s[0] == '\'' && quoteRunRe.MatchString(s):
			loc := quoteRunRe.FindStringIndex(s)
			if loc[0] == 0 {
				s = p.consumeQuoteRun(s)
				continue
			}
			p.appendText(s[:1])
			s = s[1:]

		case s[0] == '<':
			if tok, ok := matchHTMLTag(s); ok {
				p.handleHTMLToken(tok)
				s = s[tok.matchedLen:]
				continue
			}
			if m := htmlTagTokenRe.FindStringSubmatch(s); m != nil {
				p.page.Diag.Debugf("line %d: tag <%s> is not on the allow-list, keeping it as text", p.line, m[1])
			}
			p.appendText(s[:1])
			s = s[1:]

		case looksLikeCookieRune(s):
			r := []rune(s)[0]
			p.handleCookie(r)
			s = s[len(string(r)):]

		case strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://"):
			if loc := bareURLRe.FindString(s); loc != "" {
				u := node.New(node.URL, p.line)
				u.Args = []string{loc}
				p.current().AppendNode(u)
				s = s[len(loc):]
				continue
			}
			p.appendText(s[:1])
			s = s[1:]

		default:
			n := nextSpecialByte(s)
			p.appendText(s[:n])
			s = s[n:]
		}
	}
	p.closeAllSpans()
}

// nextSpecialByte returns the length of the leading run of bytes that
// contain none of the characters the switch above treats specially, so
// plain text is consumed in chunks rather than one byte at a time.
func nextSpecialByte(s string) int {
	for i := 1; i < len(s); i++ {
		switch s[i] {
		case '\'', '<', 'h':
			return i
		}
		if looksLikeCookieRune(s[i:]) {
			return i
		}
	}
	return len(s)
}

func (p *Parser) appendText(s string) {
	if s != "" {
		p.current().Append(s)
	}
}

// looksLikeCookieRune reports whether s begins with a private-use
// cookie codepoint or the standalone MAGIC_NOWIKI marker.
func looksLikeCookieRune(s string) bool {
	if s == "" {
		return false
	}
	r := []rune(s)[0]
	return r == wikitext.MagicNowiki || (r >= wikitext.MagicFirst && r <= wikitext.MagicLast)
}

// handleCookie dispatches a cookie codepoint to the node kind spec.md
// §4.9 calls for; a cookie the page doesn't recognize (or the bare
// MAGIC_NOWIKI marker) contributes nothing.
func (p *Parser) handleCookie(r rune) {
	if r == wikitext.MagicNowiki {
		return
	}
	c, ok := p.page.CookieAt(r)
	if !ok {
		return
	}
	switch c.Kind {
	case wikitext.CookieTemplate:
		p.appendCookieNode(templateNodeKind(c.Args), c.Args)
	case wikitext.CookieArg:
		p.appendCookieNode(node.TemplateArg, c.Args)
	case wikitext.CookieLink:
		p.appendCookieNode(node.Link, c.Args)
	case wikitext.CookieExtLink:
		p.appendCookieNode(node.URL, c.Args)
	case wikitext.CookieNowiki:
		if len(c.Args) > 0 {
			p.appendText(c.Args[0])
		}
	}
}

// templateNodeKind distinguishes an ordinary template transclusion from
// a parser-function call, both encoded as CookieTemplate by the
// encoder: a first argument starting with "#" (or a recognized bare
// magic word followed by ':') is a PARSER_FN, per spec.md §4.6's
// dispatch rule reused here for node classification only.
func templateNodeKind(args []string) node.Kind {
	if len(args) == 0 {
		return node.Template
	}
	first := strings.TrimSpace(args[0])
	if strings.HasPrefix(first, "#") {
		return node.ParserFn
	}
	if i := strings.Index(first, ":"); i > 0 {
		if _, ok := parserfn.Lookup(first[:i]); ok {
			return node.ParserFn
		}
	}
	return node.Template
}

func (p *Parser) appendCookieNode(kind node.Kind, args []string) {
	n := node.New(kind, p.line)
	n.Args = append([]string(nil), args...)
	p.current().AppendNode(n)
}

// handleHTMLToken pushes/pops/appends an allow-listed HTML tag,
// validating parenting per spec.md §4.9. A parenting violation records a
// warning only: the tag is still opened where it stands and nothing is
// closed implicitly.
func (p *Parser) handleHTMLToken(tok htmlToken) {
	if tok.selfClose {
		n := node.New(node.HTML, p.line)
		n.Args = []string{tok.name}
		for k, v := range tok.attrs {
			n.SetAttr(k, v)
		}
		p.current().AppendNode(n)
		return
	}

	if tok.closing {
		p.closeHTMLTag(tok.name)
		return
	}

	parentName := ""
	for i := len(p.stack) - 1; i >= 0; i-- {
		if len(p.stack[i].Args) > 0 && p.stack[i].Kind == node.HTML {
			parentName = p.stack[i].Args[0]
			break
		}
	}
	if parentName != "" && !parentAllowed(parentName, tok.name) {
		p.page.Diag.Warnf("line %d: <%s> not permitted inside <%s>", p.line, tok.name, parentName)
	}

	kind := htmlKindForName(tok.name)
	n := node.New(kind, p.line)
	n.Args = []string{tok.name}
	for k, v := range tok.attrs {
		n.SetAttr(k, v)
	}
	p.push(n)
}

// closeHTMLTag closes the nearest open HTML-ish node with a matching
// tag name; an unmatched closing tag is kept as literal text with a
// DEBUG note, per spec.md §4.9.
func (p *Parser) closeHTMLTag(name string) {
	for i := len(p.stack) - 1; i >= 1; i-- {
		if len(p.stack[i].Args) > 0 && p.stack[i].Args[0] == name {
			p.stack = p.stack[:i]
			return
		}
	}
	p.page.Diag.Debugf("line %d: unmatched closing tag </%s>, keeping as text", p.line, name)
	p.appendText("</" + name + ">")
}

// consumeQuoteRun handles one apostrophe run at the start of s
// (spec.md §4.9's bold/italic toggling) and returns the remainder.
func (p *Parser) consumeQuoteRun(s string) string {
	loc := quoteRunRe.FindStringIndex(s)
	run := s[loc[0]:loc[1]]
	rest := s[loc[1]:]
	n := len(run)

	switch {
	case n >= 5:
		p.toggleSpan(node.Bold)
		p.toggleSpan(node.Italic)
		if extra := n - 5; extra > 0 {
			p.appendText(strings.Repeat("'", extra))
		}
	case n >= 3:
		p.toggleSpan(node.Bold)
		if extra := n - 3; extra > 0 {
			p.appendText(strings.Repeat("'", extra))
		}
	default: // n == 2
		p.toggleSpan(node.Italic)
	}

	return rest
}

// toggleSpan opens kind if not currently open, or closes it — tolerating
// cross-nesting per spec.md §4.9: closing a span that isn't the
// innermost open one first closes everything above it (in reverse
// order), closes the target, then reopens what was above it so it can
// still be closed correctly by a later marker.
func (p *Parser) toggleSpan(kind node.Kind) {
	idx := -1
	for i := len(p.openSpans) - 1; i >= 0; i-- {
		if p.openSpans[i].kind == kind {
			idx = i
			break
		}
	}

	if idx == -1 {
		n := node.New(kind, p.line)
		p.push(n)
		p.openSpans = append(p.openSpans, openSpan{kind: kind, n: n})
		return
	}

	toReopen := append([]openSpan(nil), p.openSpans[idx+1:]...)
	for j := len(p.openSpans) - 1; j >= idx; j-- {
		p.popTo(p.openSpans[j].n)
	}
	p.openSpans = p.openSpans[:idx]

	for _, sp := range toReopen {
		n := node.New(sp.kind, p.line)
		p.push(n)
		p.openSpans = append(p.openSpans, openSpan{kind: sp.kind, n: n})
	}
}

// closeAllSpans force-closes any bold/italic left open at end of line
// (spec.md §4.9: "unbalanced bold/italic at end of line are silently
// closed").
func (p *Parser) closeAllSpans() {
	for len(p.openSpans) > 0 {
		last := p.openSpans[len(p.openSpans)-1]
		p.popTo(last.n)
		p.openSpans = p.openSpans[:len(p.openSpans)-1]
	}
}
