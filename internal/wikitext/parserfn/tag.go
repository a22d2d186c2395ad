package parserfn

import (
	"html"
	"sort"
	"strings"
)

func init() {
	register("tag", pfTag)
	register("lst", pfLst)
}

// nowikiTagEntities quotes #tag:nowiki's special-cased content. It covers
// the characters of the encoder's NowikiQuote table, but spells several
// of them as numeric references where that table uses named entities.
var nowikiTagEntities = map[rune]string{
	';': "&semi;", '&': "&amp;", '=': "&equals;", '<': "&lt;", '>': "&gt;",
	'*': "&#42;", '#': "&#35;", ':': "&#58;", '!': "&#33;", '|': "&#124;",
	'[': "&#91;", ']': "&#93;", '{': "&#123;", '}': "&#125;",
	'"': "&quot;", '\'': "&#39;",
}

func nowikiQuoteTag(s string) string {
	var b strings.Builder
	for _, r := range s {
		if e, ok := nowikiTagEntities[r]; ok {
			b.WriteString(e)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// pfTag implements #tag:name|content|attr=val|... building
// <name attr="val">content</name> with HTML-escaped attribute values; a
// tag named "nowiki" instead character-entity-quotes its content and
// ignores attributes.
func pfTag(ctx *Context, args []string) string {
	name := strings.TrimSpace(arg(args, 0, ""))
	if name == "" {
		return ""
	}
	content := arg(args, 1, "")

	if strings.EqualFold(name, "nowiki") {
		return nowikiQuoteTag(content)
	}

	attrs := map[string]string{}
	var order []string
	for _, raw := range args[minInt(2, len(args)):] {
		eq := strings.Index(raw, "=")
		if eq < 0 {
			continue
		}
		k := strings.TrimSpace(raw[:eq])
		v := raw[eq+1:]
		if _, exists := attrs[k]; !exists {
			order = append(order, k)
		}
		attrs[k] = v
	}
	sort.Strings(order)

	var b strings.Builder
	b.WriteByte('<')
	b.WriteString(name)
	for _, k := range order {
		b.WriteByte(' ')
		b.WriteString(k)
		b.WriteString(`="`)
		b.WriteString(html.EscapeString(attrs[k]))
		b.WriteByte('"')
	}
	if content == "" {
		b.WriteString(" />")
		return b.String()
	}
	b.WriteByte('>')
	b.WriteString(content)
	b.WriteString("</")
	b.WriteString(name)
	b.WriteByte('>')
	return b.String()
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// pfLst implements #lst:page|section — extract and concatenate all
// <section begin=SECTION/>...<section end=SECTION/> spans from the
// target page; an empty result produces a warning, not an error, since
// a missing section is common while editing.
func pfLst(ctx *Context, args []string) string {
	page := trimmedArg(args, 0, "")
	section := trimmedArg(args, 1, "")
	if page == "" || section == "" || ctx.SectionText == nil {
		return ""
	}
	text, ok := ctx.SectionText(page, section)
	if !ok {
		if ctx.Diag != nil {
			ctx.Diag.Warnf("#lst: section %q not found on page %q", section, page)
		}
		return ""
	}
	return text
}
