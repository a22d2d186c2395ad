package wikitext

import "regexp"

var (
	nowikiPairRe  = regexp.MustCompile(`(?is)<nowiki\s*>(.*?)</nowiki\s*>`)
	nowikiSelfRe  = regexp.MustCompile(`(?si)<\s*nowiki\s*/\s*>`)
	commentRe     = regexp.MustCompile(`(?s)<!--.*?-->`)
	commentOpenRe = regexp.MustCompile(`(?s)<!--.*$`)

	onlyincludeRe  = regexp.MustCompile(`(?is)<onlyinclude\s*>(.*?)</onlyinclude\s*>`)
	noincludeRe    = regexp.MustCompile(`(?is)<noinclude\s*>.*?</noinclude\s*>`)
	includeonlyTagRe = regexp.MustCompile(`(?is)</?includeonly\s*>`)
)

// Preprocess implements the Preprocessor (C3): nowiki cookie-wrapping,
// comment stripping. Call this on page bodies before Encode.
func (p *Page) Preprocess(text string) string {
	text = p.wrapNowiki(text)
	text = StripComments(text, false)
	return text
}

// wrapNowiki replaces <nowiki>BODY</nowiki> with a cookie of kind N
// wrapping BODY, and self-closing <nowiki/> with the MAGIC_NOWIKI
// codepoint (spec.md §4.3 step 1).
func (p *Page) wrapNowiki(text string) string {
	text = nowikiPairRe.ReplaceAllStringFunc(text, func(m string) string {
		sub := nowikiPairRe.FindStringSubmatch(m)
		body := sub[1]
		r, err := p.saveCookie(CookieNowiki, []string{body}, true)
		if err != nil {
			p.Diag.Errorf("%s", err)
			return m
		}
		return string(r)
	})

	text = nowikiSelfRe.ReplaceAllString(text, string(MagicNowiki))
	return text
}

// StripComments removes HTML-style comments. When forTemplateBody is
// true, an unterminated comment (no closing "-->" before EOF) is still
// stripped through to end of string, matching spec.md §4.3 step 2's
// note about template bodies specifically.
func StripComments(text string, forTemplateBody bool) string {
	text = commentRe.ReplaceAllString(text, "")
	if forTemplateBody {
		text = commentOpenRe.ReplaceAllString(text, "")
	}
	return text
}

// PrepareTemplateBody applies the template-body-only preprocessing of
// spec.md §4.3 step 3: strip <noinclude>, keep only <onlyinclude>
// content when present, and unwrap <includeonly> (dropping the tags but
// keeping their contents). Comments are stripped with the unterminated-
// at-EOF allowance template bodies get.
func PrepareTemplateBody(raw string) string {
	raw = StripComments(raw, true)

	if onlyincludeRe.MatchString(raw) {
		var kept string
		for _, m := range onlyincludeRe.FindAllStringSubmatch(raw, -1) {
			kept += m[1]
		}
		return includeonlyTagRe.ReplaceAllString(kept, "")
	}

	raw = noincludeRe.ReplaceAllString(raw, "")
	raw = includeonlyTagRe.ReplaceAllString(raw, "")
	return raw
}
