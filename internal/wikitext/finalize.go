package wikitext

import "strings"

// Finalize implements spec.md §4.5's finalizer: replace every remaining
// cookie codepoint with its literal surface form, iterated to a fixed
// point (substitution can reveal further cookies nested inside an
// unresolved one), then replace MAGIC_NOWIKI with "<nowiki />" and
// unmask the quote-masking placeholder Encode introduced.
func Finalize(p *Page, text string) string {
	for {
		out, changed := replaceCookiesLiteral(p, text)
		text = out
		if !changed {
			break
		}
	}
	text = strings.ReplaceAll(text, string(MagicNowiki), "<nowiki />")
	text = UnmaskQuotes(text)
	return text
}

func replaceCookiesLiteral(p *Page, text string) (string, bool) {
	changed := false
	var b strings.Builder
	for _, r := range text {
		if r >= MagicFirst && r <= MagicLast {
			if c, ok := p.CookieAt(r); ok {
				b.WriteString(literalSurface(c))
				changed = true
				continue
			}
		}
		b.WriteRune(r)
	}
	return b.String(), changed
}

// literalSurface reconstructs the original wikitext syntax for a cookie
// that outside-in expansion left untouched (e.g. a top-level argument
// reference, or a template a pre-expand-only pass chose to skip).
func literalSurface(c Cookie) string {
	switch c.Kind {
	case CookieArg:
		return "{{{" + strings.Join(c.Args, "|") + "}}}"
	case CookieTemplate:
		return "{{" + strings.Join(c.Args, "|") + "}}"
	case CookieLink:
		return "[[" + strings.Join(c.Args, "|") + "]]"
	case CookieExtLink:
		return "[" + strings.Join(c.Args, "|") + "]"
	case CookieNowiki:
		return NowikiQuote(c.Args[0])
	default:
		return ""
	}
}
