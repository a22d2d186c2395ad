package wikitext

import (
	"fmt"
	"regexp"
	"strings"
)

// CookieKind is spec.md §3's cookie `kind` field.
type CookieKind int

const (
	CookieTemplate CookieKind = iota // T: template-or-parserfn call
	CookieArg                        // A: template argument reference
	CookieLink                       // L: internal link
	CookieExtLink                    // E: external link
	CookieNowiki                     // N: nowiki body
)

func (k CookieKind) String() string {
	switch k {
	case CookieTemplate:
		return "T"
	case CookieArg:
		return "A"
	case CookieLink:
		return "L"
	case CookieExtLink:
		return "E"
	case CookieNowiki:
		return "N"
	default:
		return "?"
	}
}

// Cookie is spec.md §3's per-page cookie record.
type Cookie struct {
	Kind   CookieKind
	Args   []string
	Nowiki bool
}

// maskedQuote is a reserved private-use codepoint, one below MagicNowiki,
// used to hide single quotes inside balanced HTML opening tags before
// pipe-splitting and the bold/italic tokenizer run (spec.md §4.4's
// "balanced HTML opening tags whose single-quotes are first masked").
const maskedQuote rune = 0x0010203c

var htmlOpenTagRe = regexp.MustCompile(`<[A-Za-z!/][^<>]*>`)

// MaskQuotesInTags replaces single quotes inside balanced HTML opening
// tags with a reserved placeholder, so later bold/italic tokenization
// cannot mistake an attribute's quote for a formatting delimiter.
func MaskQuotesInTags(text string) string {
	return htmlOpenTagRe.ReplaceAllStringFunc(text, func(tag string) string {
		return strings.ReplaceAll(tag, "'", string(maskedQuote))
	})
}

// UnmaskQuotes reverses MaskQuotesInTags; called by the finalizer.
func UnmaskQuotes(text string) string {
	return strings.ReplaceAll(text, string(maskedQuote), "'")
}

var (
	linkRe     = regexp.MustCompile(`\[\[([^\[\]{}]*)\]\]`)
	extLinkRe  = regexp.MustCompile(`\[([^\[\]{}]*)\]`)
	argRe      = regexp.MustCompile(`\{\{\{([^{}]*)\}\}\}`)
	templateRe = regexp.MustCompile(`\{\{([^{}]*)\}\}`)

	missingArgCloseRe      = regexp.MustCompile(`\{\{\{([^{}]*)\}\}`)
	missingTemplateCloseRe = regexp.MustCompile(`\{\{([^{}]*)\}`)
)

// cookieKey dedups cookies by value (spec.md §3: "a reverse map
// deduplicates identical cookies").
func cookieKey(kind CookieKind, args []string, nowiki bool) string {
	return fmt.Sprintf("%d|%t|%s", kind, nowiki, strings.Join(args, "\x00"))
}

// saveCookie appends a cookie (or returns the existing index on an exact
// dedup hit) and returns the private-use codepoint that now stands for
// it. Returns an error once MaxMagics cookies have been allocated for
// this page.
func (p *Page) saveCookie(kind CookieKind, args []string, nowiki bool) (rune, error) {
	key := cookieKey(kind, args, nowiki)
	if idx, ok := p.reverse[key]; ok {
		return MagicFirst + rune(idx), nil
	}
	if len(p.cookies) >= MaxMagics {
		return 0, fmt.Errorf("wikitext: page %q exceeded %d cookies", p.Title, MaxMagics)
	}
	idx := len(p.cookies)
	p.cookies = append(p.cookies, Cookie{Kind: kind, Args: append([]string(nil), args...), Nowiki: nowiki})
	p.reverse[key] = idx
	return MagicFirst + rune(idx), nil
}

// CookieAt resolves a cookie codepoint back to its Cookie record.
func (p *Page) CookieAt(r rune) (Cookie, bool) {
	idx := int(r - MagicFirst)
	if idx < 0 || idx >= len(p.cookies) {
		return Cookie{}, false
	}
	return p.cookies[idx], true
}

// pipeSplit controls how a cookie's inner content is split into Args,
// which differs by construct: a template's pipes each separate a
// distinct positional/named argument, but an argument-reference or link
// only ever has one meaningful separator (the rest of the pipes, if any,
// belong to the default/display text).
type pipeSplit int

const (
	splitAll   pipeSplit = iota // template: every '|' separates an arg
	splitFirst                  // arg-ref, link: only the first '|' splits
	splitNone                   // ext-link: inner is not split at all
)

// splitTopLevelPipe splits cookie inner content on '|'. By the time a
// span reaches this point every nested bracket/brace construct has
// already been replaced by a single opaque codepoint, so a literal '|'
// can never be "inside" a nested construct — a plain split is correct
// (spec.md §4.4's "pipes inside balanced HTML tags and templates are
// ignored — achieved by iterative replacement after inner constructs are
// already cookies").
func splitTopLevelPipe(inner string, mode pipeSplit) []string {
	switch mode {
	case splitFirst:
		return strings.SplitN(inner, "|", 2)
	case splitNone:
		return []string{inner}
	default:
		return strings.Split(inner, "|")
	}
}

// encodeOnce replaces every non-overlapping match of re in text with a
// cookie of the given kind, returning the new text and whether anything
// changed.
func (p *Page) encodeOnce(text string, re *regexp.Regexp, kind CookieKind, mode pipeSplit) (string, bool) {
	matches := re.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return text, false
	}

	var b strings.Builder
	last := 0
	for _, m := range matches {
		if m[0] < last {
			continue // overlapped a prior replacement's consumed span
		}
		b.WriteString(text[last:m[0]])
		inner := text[m[2]:m[3]]
		args := splitTopLevelPipe(inner, mode)
		r, err := p.saveCookie(kind, args, ContainsMagicNowiki(inner))
		if err != nil {
			p.Diag.Errorf("%s", err)
			b.WriteString(text[m[0]:m[1]])
		} else {
			b.WriteRune(r)
		}
		last = m[1]
	}
	b.WriteString(text[last:])
	return b.String(), true
}

// recoverMissingBrace implements spec.md §4.4's heuristic recovery for a
// single missing closing brace: {{{name|default}} (missing one '}') or
// {{name|arg} (missing one '}'). Only tried once the fixed-point loop in
// Encode has made no further progress.
func (p *Page) recoverMissingBrace(text string) (string, bool) {
	if loc := missingArgCloseRe.FindStringSubmatchIndex(text); loc != nil && !followedByBrace(text, loc[1]) {
		inner := text[loc[2]:loc[3]]
		if r, err := p.saveCookie(CookieArg, splitTopLevelPipe(inner, splitFirst), ContainsMagicNowiki(inner)); err == nil {
			p.Diag.Debugf("heuristic brace recovery: closed unmatched template argument %q", inner)
			return text[:loc[0]] + string(r) + text[loc[1]:], true
		}
	}
	if loc := missingTemplateCloseRe.FindStringSubmatchIndex(text); loc != nil && !followedByBrace(text, loc[1]) {
		inner := text[loc[2]:loc[3]]
		if r, err := p.saveCookie(CookieTemplate, splitTopLevelPipe(inner, splitAll), ContainsMagicNowiki(inner)); err == nil {
			p.Diag.Debugf("heuristic brace recovery: closed unmatched template %q", inner)
			return text[:loc[0]] + string(r) + text[loc[1]:], true
		}
	}
	return text, false
}

func followedByBrace(text string, pos int) bool {
	return pos < len(text) && text[pos] == '}'
}

// Encode implements the Encoder (C4): inside-out cookie allocation for
// internal links, external links, template-argument references, and
// template/parser-function calls, iterated to a fixed point, with the
// single-missing-brace heuristic recovery as a last resort.
func (p *Page) Encode(text string) string {
	text = MaskQuotesInTags(text)

	for {
		changed := false
		if t, ok := p.encodeOnce(text, linkRe, CookieLink, splitFirst); ok {
			text, changed = t, true
		}
		if t, ok := p.encodeOnce(text, extLinkRe, CookieExtLink, splitNone); ok {
			text, changed = t, true
		}
		if t, ok := p.encodeOnce(text, argRe, CookieArg, splitFirst); ok {
			text, changed = t, true
		}
		if t, ok := p.encodeOnce(text, templateRe, CookieTemplate, splitAll); ok {
			text, changed = t, true
		}
		if changed {
			continue
		}
		if t, ok := p.recoverMissingBrace(text); ok {
			text = t
			continue
		}
		break
	}

	return text
}
