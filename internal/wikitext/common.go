// Package wikitext implements the core of the MediaWiki preprocessor and
// expansion engine: the cookie encoder (C4), the expansion engine (C5),
// and the shared magic-codepoint constants the preprocessor (C3) and
// encoder rely on.
package wikitext

import "regexp"

// Magic codepoints live in the Unicode private-use area, exactly as
// ported by value from original_source/wikitextprocessor/common.py —
// that file is the canonical source for these constants; spec.md itself
// only says "a reserved private-use codepoint".
const (
	// MagicNowiki stands in for a self-closing <nowiki/>.
	MagicNowiki rune = 0x0010203d
	// MagicFirst is the first codepoint usable as a cookie index.
	MagicFirst rune = 0x0010203e
	// MagicLast is the last codepoint usable as a cookie index.
	MagicLast rune = 0x0010fff0
	// MaxMagics bounds how many distinct cookies one page may hold.
	MaxMagics = int(MagicLast - MagicFirst + 1)
)

// nowikiEntities is the exact entity-quoting table from common.py's
// _nowiki_map, applied to text inside <nowiki>...</nowiki> (spec.md
// §4.5's Nowiki cookie expansion rule).
var nowikiEntities = map[rune]string{
	';': "&semi;", '&': "&amp;", '=': "&equals;", '<': "&lt;", '>': "&gt;",
	'*': "&ast;", '#': "&num;", ':': "&colon;", '!': "&excl;", '|': "&vert;",
	'[': "&lsqb;", ']': "&rsqb;", '{': "&lbrace;", '}': "&rbrace;",
	'"': "&quot;", '\'': "&apos;",
}

// NowikiQuote character-entity-encodes text inside a <nowiki> body so it
// survives subsequent parsing untouched (spec.md §4.5).
func NowikiQuote(text string) string {
	var result []byte
	for _, r := range text {
		if e, ok := nowikiEntities[r]; ok {
			result = append(result, e...)
			continue
		}
		result = append(result, string(r)...)
	}
	return string(result)
}

var magicRangeRe = regexp.MustCompile(`[\x{0010203e}-\x{0010fff0}]`)

// StripResidualCookies removes any cookie codepoint left in text after
// the finalizer has run; used only by tests asserting invariant 3 of
// spec.md §8 (no private-use codepoints survive _finalize_expand).
func StripResidualCookies(text string) string {
	return magicRangeRe.ReplaceAllString(text, "")
}

// ContainsMagicNowiki reports whether text contains the MAGIC_NOWIKI
// marker anywhere — used by the encoder to set a cookie's nowiki_flag.
func ContainsMagicNowiki(text string) bool {
	for _, r := range text {
		if r == MagicNowiki {
			return true
		}
	}
	return false
}
